package model

import "time"

const DefaultSessionTitle = "New Chat"

type Session struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	Timestamp time.Time `gorm:"not null;index" json:"timestamp"`
	Title     string    `gorm:"size:200;not null;default:'New Chat'" json:"title"`

	Messages []Message `gorm:"foreignKey:SessionID;constraint:OnDelete:CASCADE" json:"-"`
}

func (Session) TableName() string {
	return "chat_sessions"
}
