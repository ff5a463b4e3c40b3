package bootstrap

import (
	"context"
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"chatbot-api/internal/ai"
	"chatbot-api/internal/cache"
	"chatbot-api/internal/config"
	"chatbot-api/internal/logger"
	dbClient "chatbot-api/internal/platform/db"
	rabbitmqClient "chatbot-api/internal/platform/rabbitmq"
	redisClient "chatbot-api/internal/platform/redis"
	"chatbot-api/internal/repository"
	"chatbot-api/internal/worker"
)

type App struct {
	Config        *config.Config
	DB            *gorm.DB
	Redis         *redis.Client
	MQConn        *amqp.Connection
	HistoryCache  *cache.HistoryCache
	TurnPublisher *rabbitmqClient.TurnPublisher
	CacheWorker   *worker.CacheWarmWorker
	Completion    *ai.GeminiClient

	StartedAt time.Time
}

func New(ctx context.Context) (*App, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config failed: %w", err)
	}
	logger.SetLevel(cfg.App.LogLevel)

	db, err := dbClient.Open(ctx, cfg.Database, cfg.MySQLDSN())
	if err != nil {
		return nil, err
	}
	if err := dbClient.Migrate(db); err != nil {
		return nil, fmt.Errorf("run migrations failed: %w", err)
	}

	app := &App{
		Config:    cfg,
		DB:        db,
		StartedAt: time.Now(),
	}

	// Absence of the API key must not abort startup; the client degrades to
	// fixed diagnostic replies instead.
	app.Completion = ai.NewGeminiClient(ai.Config{
		BaseURL:         cfg.Gemini.BaseURL,
		APIKey:          cfg.Gemini.APIKey,
		Model:           cfg.Gemini.Model,
		Temperature:     cfg.Gemini.Temperature,
		TopP:            cfg.Gemini.TopP,
		TopK:            cfg.Gemini.TopK,
		MaxOutputTokens: cfg.Gemini.MaxOutputTokens,
		Timeout:         time.Duration(cfg.Gemini.TimeoutSeconds) * time.Second,
	})

	if cfg.Redis.Enabled {
		redisCli, err := redisClient.New(ctx, cfg.Redis)
		if err != nil {
			return nil, err
		}
		app.Redis = redisCli
		app.HistoryCache = cache.NewHistoryCache(
			redisCli,
			time.Duration(cfg.Redis.HistoryTTLSeconds)*time.Second,
			time.Duration(cfg.Redis.HistoryDirtyTTLSeconds)*time.Second,
		)
	}

	if cfg.RabbitMQ.Enabled {
		mqConn, err := rabbitmqClient.New(ctx, cfg.RabbitMQ.URL)
		if err != nil {
			_ = app.Close()
			return nil, err
		}
		app.MQConn = mqConn
		app.TurnPublisher = rabbitmqClient.NewTurnPublisher(mqConn, cfg.RabbitMQ.TurnEventQueue)

		if app.HistoryCache != nil {
			messageRepo := repository.NewMessageRepository(db)
			app.CacheWorker = worker.NewCacheWarmWorker(
				mqConn, messageRepo, app.HistoryCache, cfg.RabbitMQ.TurnEventQueue,
			)
			if err := app.CacheWorker.Start(ctx); err != nil {
				_ = app.Close()
				return nil, fmt.Errorf("start cache warm worker failed: %w", err)
			}
		}
	}

	return app, nil
}

func (a *App) Close() error {
	var closeErr error
	if a.CacheWorker != nil {
		a.CacheWorker.Close()
	}
	if a.MQConn != nil {
		if err := a.MQConn.Close(); err != nil {
			closeErr = err
		}
	}
	if a.Redis != nil {
		if err := a.Redis.Close(); err != nil {
			closeErr = err
		}
	}
	if a.DB != nil {
		sqlDB, err := a.DB.DB()
		if err == nil {
			if err := sqlDB.Close(); err != nil {
				closeErr = err
			}
		}
	}
	return closeErr
}
