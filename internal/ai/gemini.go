// Package ai wraps the Gemini generateContent API. The client absorbs every
// provider failure into a displayable reply string; callers never see an
// error cross this boundary.
package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"chatbot-api/internal/logger"
)

// Message is the internal prompt vocabulary. Role remapping to the provider
// vocabulary ("assistant" -> "model") happens only here, never in storage.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type Config struct {
	BaseURL         string
	APIKey          string
	Model           string
	Temperature     float64
	TopP            float64
	TopK            int
	MaxOutputTokens int
	Timeout         time.Duration
}

// Fixed user-safe replies returned instead of raw provider errors.
const (
	notConfiguredReply = "Gemini API is not configured. Please check your API key and server logs."
	authErrorReply     = "API key error. Please check your Gemini API key configuration."
	quotaErrorReply    = "API quota exceeded. Please try again later."
	genericErrorReply  = "I apologize, but I encountered an error processing your request."
)

type GeminiClient struct {
	cfg        Config
	httpClient *http.Client
	configured bool
}

// NewGeminiClient builds the client once at process start. A missing API key
// leaves the client in a degraded state instead of failing startup; every
// Generate call then returns the fixed not-configured reply.
func NewGeminiClient(cfg Config) *GeminiClient {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 90 * time.Second
	}
	configured := cfg.APIKey != ""
	if !configured {
		logger.L.Error("no Gemini API key provided, running degraded; set GEMINI_API_KEY")
	} else {
		logger.L.Info("Gemini client configured", "model", cfg.Model)
	}
	return &GeminiClient{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		configured: configured,
	}
}

// Generate produces the assistant reply for userMessage given the prior
// conversation. It always returns a displayable string.
func (c *GeminiClient) Generate(ctx context.Context, userMessage string, history []Message) string {
	if !c.configured {
		return notConfiguredReply
	}

	text, err := c.complete(ctx, userMessage, history)
	if err != nil {
		logger.L.Error("gemini completion failed", "error", err)
		switch classify(err) {
		case failureAuth:
			return authErrorReply
		case failureQuota:
			return quotaErrorReply
		default:
			return genericErrorReply
		}
	}
	return strings.TrimSpace(text)
}

type contentPart struct {
	Text string `json:"text"`
}

type content struct {
	Role  string        `json:"role"`
	Parts []contentPart `json:"parts"`
}

type generationConfig struct {
	Temperature     float64 `json:"temperature"`
	TopP            float64 `json:"topP"`
	TopK            int     `json:"topK"`
	MaxOutputTokens int     `json:"maxOutputTokens"`
}

type generateRequest struct {
	Contents         []content        `json:"contents"`
	GenerationConfig generationConfig `json:"generationConfig"`
}

func (c *GeminiClient) complete(ctx context.Context, userMessage string, history []Message) (string, error) {
	contents := formatHistory(history)
	contents = append(contents, content{
		Role:  "user",
		Parts: []contentPart{{Text: userMessage}},
	})

	reqBody := generateRequest{
		Contents: contents,
		GenerationConfig: generationConfig{
			Temperature:     c.cfg.Temperature,
			TopP:            c.cfg.TopP,
			TopK:            c.cfg.TopK,
			MaxOutputTokens: c.cfg.MaxOutputTokens,
		},
	}

	bodyBytes, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("marshal gemini request failed: %w", err)
	}

	url := strings.TrimRight(c.cfg.BaseURL, "/") + "/models/" + c.cfg.Model + ":generateContent"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(bodyBytes))
	if err != nil {
		return "", fmt.Errorf("build gemini request failed: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-goog-api-key", c.cfg.APIKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("gemini request failed: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read gemini response failed: %w", err)
	}
	if resp.StatusCode >= 300 {
		return "", parseAPIError(resp.StatusCode, raw)
	}

	var parsed struct {
		Candidates []struct {
			Content struct {
				Parts []contentPart `json:"parts"`
			} `json:"content"`
		} `json:"candidates"`
	}
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return "", fmt.Errorf("parse gemini json failed: %w", err)
	}
	if len(parsed.Candidates) == 0 || len(parsed.Candidates[0].Content.Parts) == 0 {
		return "", fmt.Errorf("empty gemini candidates")
	}

	var full strings.Builder
	for _, part := range parsed.Candidates[0].Content.Parts {
		full.WriteString(part.Text)
	}
	return full.String(), nil
}

// formatHistory translates internal roles to the provider vocabulary:
// "assistant" becomes "model", anything else defaults to "user".
func formatHistory(history []Message) []content {
	contents := make([]content, 0, len(history)+1)
	for _, msg := range history {
		role := "user"
		if msg.Role == "assistant" {
			role = "model"
		}
		contents = append(contents, content{
			Role:  role,
			Parts: []contentPart{{Text: msg.Content}},
		})
	}
	return contents
}
