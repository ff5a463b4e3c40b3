package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	amqp "github.com/rabbitmq/amqp091-go"

	"chatbot-api/internal/cache"
	"chatbot-api/internal/logger"
	"chatbot-api/internal/model"
	"chatbot-api/internal/repository"
)

// CacheWarmWorker consumes turn events and rewrites the session history
// cache from the store, so the first read after a chat turn hits redis.
// Everything here is advisory: a failed warm only costs one cache miss.
type CacheWarmWorker struct {
	conn         *amqp.Connection
	messageRepo  *repository.MessageRepository
	historyCache *cache.HistoryCache
	queueName    string

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func NewCacheWarmWorker(
	conn *amqp.Connection,
	messageRepo *repository.MessageRepository,
	historyCache *cache.HistoryCache,
	queueName string,
) *CacheWarmWorker {
	return &CacheWarmWorker{
		conn:         conn,
		messageRepo:  messageRepo,
		historyCache: historyCache,
		queueName:    queueName,
	}
}

func (w *CacheWarmWorker) Start(ctx context.Context) error {
	if w.cancel != nil {
		return nil
	}

	workerCtx, cancel := context.WithCancel(ctx)
	w.cancel = cancel

	ch, err := w.conn.Channel()
	if err != nil {
		cancel()
		return fmt.Errorf("open worker channel failed: %w", err)
	}

	_, err = ch.QueueDeclare(
		w.queueName,
		true,
		false,
		false,
		false,
		nil,
	)
	if err != nil {
		_ = ch.Close()
		cancel()
		return fmt.Errorf("declare worker queue failed: %w", err)
	}

	deliveries, err := ch.Consume(
		w.queueName,
		"",
		false,
		false,
		false,
		false,
		nil,
	)
	if err != nil {
		_ = ch.Close()
		cancel()
		return fmt.Errorf("consume queue failed: %w", err)
	}

	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		defer ch.Close()

		for {
			select {
			case <-workerCtx.Done():
				return
			case d, ok := <-deliveries:
				if !ok {
					return
				}

				var event model.TurnEvent
				if err := json.Unmarshal(d.Body, &event); err != nil {
					logger.L.Warn("worker decode turn event failed", "error", err)
					_ = d.Nack(false, false)
					continue
				}

				if err := w.warm(workerCtx, event.SessionID); err != nil {
					logger.L.Warn("worker warm history cache failed",
						"session_id", event.SessionID, "error", err)
					_ = d.Nack(false, false)
					continue
				}

				_ = d.Ack(false)
			}
		}
	}()

	return nil
}

func (w *CacheWarmWorker) warm(ctx context.Context, sessionID uint) error {
	// A dirty marker means another turn is in flight; skip rather than race it.
	if dirty, err := w.historyCache.IsDirty(ctx, sessionID); err != nil || dirty {
		return err
	}

	messages, err := w.messageRepo.ListBySessionID(sessionID)
	if err != nil {
		return err
	}
	return w.historyCache.SetHistory(ctx, sessionID, messages)
}

func (w *CacheWarmWorker) Close() {
	if w.cancel != nil {
		w.cancel()
	}
	w.wg.Wait()
}
