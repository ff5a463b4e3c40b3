package http

import (
	"github.com/gin-gonic/gin"

	appsvc "chatbot-api/internal/app"
	"chatbot-api/internal/bootstrap"
	"chatbot-api/internal/repository"
	"chatbot-api/internal/transport/http/handler"
	"chatbot-api/internal/transport/http/middleware"
)

func NewRouter(app *bootstrap.App) *gin.Engine {
	gin.SetMode(app.Config.App.GinMode)
	router := gin.New()
	router.Use(gin.Logger(), gin.Recovery(), middleware.CORS(), middleware.RequestID())

	sessionRepo := repository.NewSessionRepository(app.DB)
	messageRepo := repository.NewMessageRepository(app.DB)

	var historyCache appsvc.HistoryCache
	if app.HistoryCache != nil {
		historyCache = app.HistoryCache
	}
	var turnPublisher appsvc.TurnPublisher
	if app.TurnPublisher != nil {
		turnPublisher = app.TurnPublisher
	}

	chatService := appsvc.NewChatService(
		app.DB,
		sessionRepo,
		messageRepo,
		app.Completion,
		historyCache,
		turnPublisher,
		app.Config.Gemini.HistoryWindow,
	)

	healthHandler := handler.NewHealthHandler(app)
	sessionHandler := handler.NewSessionHandler(chatService)
	chatHandler := handler.NewChatHandler(chatService)

	router.GET("/healthz", healthHandler.Check)

	api := router.Group("/api")
	api.GET("/sessions", sessionHandler.List)
	api.POST("/sessions", sessionHandler.Create)
	api.GET("/sessions/:id", sessionHandler.Get)
	api.DELETE("/sessions/:id", sessionHandler.Delete)
	api.POST("/chat", chatHandler.Chat)

	return router
}
