package app

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"

	"chatbot-api/internal/model"
)

func makeMessages(n int) []model.Message {
	messages := make([]model.Message, 0, n)
	for i := 0; i < n; i++ {
		role := model.RoleUser
		if i%2 == 1 {
			role = model.RoleAssistant
		}
		messages = append(messages, model.Message{
			ID:      uint(i + 1),
			Role:    role,
			Content: fmt.Sprintf("message %d", i+1),
		})
	}
	return messages
}

func TestWindowHistory_ShortPassthrough(t *testing.T) {
	prior := makeMessages(4)
	window := windowHistory(prior, 10)

	assert.Len(t, window, 4)
	for i, msg := range window {
		assert.Equal(t, prior[i].Role, msg.Role)
		assert.Equal(t, prior[i].Content, msg.Content)
	}
}

func TestWindowHistory_TruncatesToMostRecent(t *testing.T) {
	prior := makeMessages(22)
	window := windowHistory(prior, 10)

	assert.Len(t, window, 10)
	// Oldest-first order preserved, entries 13..22 survive.
	assert.Equal(t, "message 13", window[0].Content)
	assert.Equal(t, "message 22", window[9].Content)
}

func TestWindowHistory_ExactLimit(t *testing.T) {
	window := windowHistory(makeMessages(10), 10)
	assert.Len(t, window, 10)
	assert.Equal(t, "message 1", window[0].Content)
}

func TestWindowHistory_Empty(t *testing.T) {
	assert.Empty(t, windowHistory(nil, 10))
}
