package app

import (
	"context"
	"errors"
	"strings"
	"time"

	"gorm.io/gorm"

	"chatbot-api/internal/ai"
	"chatbot-api/internal/logger"
	"chatbot-api/internal/model"
	"chatbot-api/internal/repository"
)

var (
	ErrSessionNotFound = errors.New("session not found")
	ErrMessageEmpty    = errors.New("message cannot be empty")
)

const titleMaxRunes = 50

// CompletionClient produces the assistant reply. Implementations must absorb
// provider failures and always return a displayable string.
type CompletionClient interface {
	Generate(ctx context.Context, userMessage string, history []ai.Message) string
}

// TurnPublisher receives an advisory event after each committed chat turn.
type TurnPublisher interface {
	Publish(ctx context.Context, event model.TurnEvent) error
}

// HistoryCache caches a session's full ordered message list.
type HistoryCache interface {
	GetHistory(ctx context.Context, sessionID uint) ([]model.Message, bool, error)
	SetHistory(ctx context.Context, sessionID uint, messages []model.Message) error
	DeleteHistory(ctx context.Context, sessionID uint) error
	MarkDirty(ctx context.Context, sessionID uint) error
	IsDirty(ctx context.Context, sessionID uint) (bool, error)
}

type ChatService struct {
	db            *gorm.DB
	sessionRepo   *repository.SessionRepository
	messageRepo   *repository.MessageRepository
	completion    CompletionClient
	historyCache  HistoryCache
	turnPublisher TurnPublisher
	historyWindow int
}

type SessionSummary struct {
	ID           uint      `json:"id"`
	Timestamp    time.Time `json:"timestamp"`
	Title        string    `json:"title"`
	MessageCount int64     `json:"message_count"`
}

type SessionDetail struct {
	Session  SessionSummary  `json:"session"`
	Messages []model.Message `json:"messages"`
}

type TurnResult struct {
	UserMessage model.Message `json:"user_message"`
	AIResponse  model.Message `json:"ai_response"`
}

func NewChatService(
	db *gorm.DB,
	sessionRepo *repository.SessionRepository,
	messageRepo *repository.MessageRepository,
	completion CompletionClient,
	historyCache HistoryCache,
	turnPublisher TurnPublisher,
	historyWindow int,
) *ChatService {
	if historyWindow <= 0 {
		historyWindow = 10
	}
	return &ChatService{
		db:            db,
		sessionRepo:   sessionRepo,
		messageRepo:   messageRepo,
		completion:    completion,
		historyCache:  historyCache,
		turnPublisher: turnPublisher,
		historyWindow: historyWindow,
	}
}

func (s *ChatService) CreateSession() (*model.Session, error) {
	session := &model.Session{Title: model.DefaultSessionTitle}
	if err := s.sessionRepo.Create(session); err != nil {
		return nil, err
	}
	return session, nil
}

// ListSessions returns all sessions newest-first, grouped by calendar-date
// bucket ("Today", "Yesterday", or "January 02, 2006").
func (s *ChatService) ListSessions(now time.Time) (map[string][]SessionSummary, error) {
	sessions, err := s.sessionRepo.List()
	if err != nil {
		return nil, err
	}
	counts, err := s.messageRepo.CountPerSession()
	if err != nil {
		return nil, err
	}

	grouped := make(map[string][]SessionSummary)
	for _, session := range sessions {
		key := dateBucket(session.Timestamp, now)
		grouped[key] = append(grouped[key], SessionSummary{
			ID:           session.ID,
			Timestamp:    session.Timestamp,
			Title:        session.Title,
			MessageCount: counts[session.ID],
		})
	}
	return grouped, nil
}

func (s *ChatService) GetSession(ctx context.Context, sessionID uint) (*SessionDetail, error) {
	session, err := s.sessionRepo.GetByID(sessionID)
	if err != nil {
		return nil, err
	}
	if session == nil {
		return nil, ErrSessionNotFound
	}
	return s.detail(ctx, session)
}

// GetLatestSession returns the most recent session, creating one first when
// the store is empty.
func (s *ChatService) GetLatestSession(ctx context.Context) (*SessionDetail, error) {
	session, err := s.sessionRepo.Latest()
	if err != nil {
		return nil, err
	}
	if session == nil {
		session, err = s.CreateSession()
		if err != nil {
			return nil, err
		}
	}
	return s.detail(ctx, session)
}

// DeleteSession removes the session and all of its messages in one
// transaction, so no orphan messages can survive.
func (s *ChatService) DeleteSession(ctx context.Context, sessionID uint) error {
	session, err := s.sessionRepo.GetByID(sessionID)
	if err != nil {
		return err
	}
	if session == nil {
		return ErrSessionNotFound
	}

	err = s.db.Transaction(func(tx *gorm.DB) error {
		if err := repository.NewMessageRepository(tx).DeleteBySessionID(sessionID); err != nil {
			return err
		}
		return repository.NewSessionRepository(tx).DeleteByID(sessionID)
	})
	if err != nil {
		return err
	}

	if s.historyCache != nil {
		_ = s.historyCache.DeleteHistory(ctx, sessionID)
	}
	return nil
}

// SendMessage runs one chat turn: validate, persist the user message
// durably, window the prior history, call the completion client, then commit
// the assistant message together with any title change.
func (s *ChatService) SendMessage(ctx context.Context, sessionID uint, rawMessage string) (*TurnResult, error) {
	content := strings.TrimSpace(rawMessage)
	if content == "" {
		return nil, ErrMessageEmpty
	}

	session, err := s.sessionRepo.GetByID(sessionID)
	if err != nil {
		return nil, err
	}
	if session == nil {
		return nil, ErrSessionNotFound
	}

	prior, err := s.messageRepo.ListBySessionID(sessionID)
	if err != nil {
		return nil, err
	}

	if s.historyCache != nil {
		_ = s.historyCache.MarkDirty(ctx, sessionID)
		_ = s.historyCache.DeleteHistory(ctx, sessionID)
	}

	// The user message commits on its own before the provider call, so the
	// input survives a completion failure. No transaction is held across the
	// slow external call.
	userMessage := &model.Message{
		SessionID: sessionID,
		Role:      model.RoleUser,
		Content:   content,
	}
	if err := s.messageRepo.Create(userMessage); err != nil {
		return nil, err
	}

	history := windowHistory(prior, s.historyWindow)
	reply := s.completion.Generate(ctx, content, history)

	assistantMessage := &model.Message{
		SessionID: sessionID,
		Role:      model.RoleAssistant,
		Content:   reply,
	}
	err = s.db.Transaction(func(tx *gorm.DB) error {
		if err := repository.NewMessageRepository(tx).Create(assistantMessage); err != nil {
			return err
		}
		// First user message of the session: derive the title from it.
		if len(prior) == 0 {
			return repository.NewSessionRepository(tx).UpdateTitle(sessionID, deriveTitle(content))
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.afterTurn(ctx, sessionID, userMessage.ID, assistantMessage.ID)

	return &TurnResult{
		UserMessage: *userMessage,
		AIResponse:  *assistantMessage,
	}, nil
}

// afterTurn performs non-critical post-commit work: cache invalidation and
// the advisory turn event. Failures are logged, never surfaced.
func (s *ChatService) afterTurn(ctx context.Context, sessionID, userMessageID, assistantMessageID uint) {
	if s.historyCache != nil {
		_ = s.historyCache.DeleteHistory(ctx, sessionID)
	}
	if s.turnPublisher != nil {
		event := model.TurnEvent{
			SessionID:          sessionID,
			UserMessageID:      userMessageID,
			AssistantMessageID: assistantMessageID,
			OccurredAt:         time.Now().UTC(),
		}
		if err := s.turnPublisher.Publish(ctx, event); err != nil {
			logger.L.Warn("publish turn event failed", "session_id", sessionID, "error", err)
		}
	}
}

func (s *ChatService) detail(ctx context.Context, session *model.Session) (*SessionDetail, error) {
	messages, err := s.loadHistory(ctx, session.ID)
	if err != nil {
		return nil, err
	}
	return &SessionDetail{
		Session: SessionSummary{
			ID:           session.ID,
			Timestamp:    session.Timestamp,
			Title:        session.Title,
			MessageCount: int64(len(messages)),
		},
		Messages: messages,
	}, nil
}

func (s *ChatService) loadHistory(ctx context.Context, sessionID uint) ([]model.Message, error) {
	if s.historyCache != nil {
		dirty, err := s.historyCache.IsDirty(ctx, sessionID)
		if err == nil && !dirty {
			if cached, hit, cacheErr := s.historyCache.GetHistory(ctx, sessionID); cacheErr == nil && hit {
				return cached, nil
			}
		}
	}

	messages, err := s.messageRepo.ListBySessionID(sessionID)
	if err != nil {
		return nil, err
	}
	if messages == nil {
		messages = []model.Message{}
	}
	if s.historyCache != nil {
		if dirty, dirtyErr := s.historyCache.IsDirty(ctx, sessionID); dirtyErr == nil && !dirty {
			_ = s.historyCache.SetHistory(ctx, sessionID, messages)
		}
	}
	return messages, nil
}

// deriveTitle takes the first 50 characters of the trimmed input, appending
// an ellipsis marker when truncation occurred.
func deriveTitle(content string) string {
	runes := []rune(content)
	if len(runes) <= titleMaxRunes {
		return content
	}
	return string(runes[:titleMaxRunes]) + "..."
}

func dateBucket(ts, now time.Time) string {
	sessionDate := midnightUTC(ts)
	today := midnightUTC(now)

	switch int(today.Sub(sessionDate).Hours() / 24) {
	case 0:
		return "Today"
	case 1:
		return "Yesterday"
	default:
		return sessionDate.Format("January 02, 2006")
	}
}

func midnightUTC(t time.Time) time.Time {
	u := t.UTC()
	return time.Date(u.Year(), u.Month(), u.Day(), 0, 0, 0, 0, time.UTC)
}
