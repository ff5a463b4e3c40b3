package handler

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"chatbot-api/internal/app"
	"chatbot-api/internal/transport/http/response"
)

type SessionHandler struct {
	chatService *app.ChatService
}

func NewSessionHandler(chatService *app.ChatService) *SessionHandler {
	return &SessionHandler{chatService: chatService}
}

// List returns all sessions grouped by date bucket, newest-first.
func (h *SessionHandler) List(c *gin.Context) {
	grouped, err := h.chatService.ListSessions(time.Now())
	if err != nil {
		response.Error(c, http.StatusInternalServerError, err.Error())
		return
	}
	c.JSON(http.StatusOK, grouped)
}

func (h *SessionHandler) Create(c *gin.Context) {
	session, err := h.chatService.CreateSession()
	if err != nil {
		response.Error(c, http.StatusInternalServerError, err.Error())
		return
	}
	c.JSON(http.StatusCreated, app.SessionSummary{
		ID:        session.ID,
		Timestamp: session.Timestamp,
		Title:     session.Title,
	})
}

// Get serves both GET /api/sessions/{id} and GET /api/sessions/latest: gin's
// router cannot register a static "latest" sibling of ":id", so the literal
// is dispatched here.
func (h *SessionHandler) Get(c *gin.Context) {
	raw := c.Param("id")
	if raw == "latest" {
		detail, err := h.chatService.GetLatestSession(c.Request.Context())
		if err != nil {
			response.Error(c, http.StatusInternalServerError, err.Error())
			return
		}
		c.JSON(http.StatusOK, detail)
		return
	}

	sessionID, ok := parseSessionID(raw)
	if !ok {
		response.Error(c, http.StatusNotFound, "Session not found")
		return
	}

	detail, err := h.chatService.GetSession(c.Request.Context(), sessionID)
	if err != nil {
		switch {
		case errors.Is(err, app.ErrSessionNotFound):
			response.Error(c, http.StatusNotFound, "Session not found")
		default:
			response.Error(c, http.StatusInternalServerError, err.Error())
		}
		return
	}
	c.JSON(http.StatusOK, detail)
}

func (h *SessionHandler) Delete(c *gin.Context) {
	sessionID, ok := parseSessionID(c.Param("id"))
	if !ok {
		response.Error(c, http.StatusNotFound, "Session not found")
		return
	}

	if err := h.chatService.DeleteSession(c.Request.Context(), sessionID); err != nil {
		switch {
		case errors.Is(err, app.ErrSessionNotFound):
			response.Error(c, http.StatusNotFound, "Session not found")
		default:
			response.Error(c, http.StatusInternalServerError, err.Error())
		}
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Session deleted"})
}

func parseSessionID(raw string) (uint, bool) {
	id, err := strconv.ParseUint(raw, 10, 64)
	if err != nil || id == 0 {
		return 0, false
	}
	return uint(id), true
}
