package model

import "time"

// TurnEvent is published after a chat turn commits. It is advisory: consumers
// warm caches or feed analytics, never the primary persistence path.
type TurnEvent struct {
	SessionID          uint      `json:"session_id"`
	UserMessageID      uint      `json:"user_message_id"`
	AssistantMessageID uint      `json:"assistant_message_id"`
	OccurredAt         time.Time `json:"occurred_at"`
}
