package app

import (
	"chatbot-api/internal/ai"
	"chatbot-api/internal/model"
)

// windowHistory bounds the conversational context forwarded with each
// completion call: at most the `limit` most recent prior messages,
// oldest-first order preserved. Older context is dropped, not summarized.
func windowHistory(prior []model.Message, limit int) []ai.Message {
	if limit > 0 && len(prior) > limit {
		prior = prior[len(prior)-limit:]
	}

	history := make([]ai.Message, 0, len(prior))
	for _, msg := range prior {
		history = append(history, ai.Message{
			Role:    msg.Role,
			Content: msg.Content,
		})
	}
	return history
}
