package ai

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

type failureKind int

const (
	failureOther failureKind = iota
	failureAuth
	failureQuota
)

// apiError carries the provider's structured error body so classification
// runs once at this boundary instead of re-inspecting strings downstream.
type apiError struct {
	HTTPStatus int
	Status     string // e.g. "UNAUTHENTICATED", "RESOURCE_EXHAUSTED"
	Message    string
}

func (e *apiError) Error() string {
	return fmt.Sprintf("gemini api error (http %d, %s): %s", e.HTTPStatus, e.Status, e.Message)
}

func parseAPIError(httpStatus int, body []byte) error {
	var wrapper struct {
		Error struct {
			Code    int    `json:"code"`
			Message string `json:"message"`
			Status  string `json:"status"`
		} `json:"error"`
	}
	if err := json.Unmarshal(body, &wrapper); err != nil || wrapper.Error.Message == "" {
		return &apiError{HTTPStatus: httpStatus, Status: "UNKNOWN", Message: string(body)}
	}
	return &apiError{
		HTTPStatus: httpStatus,
		Status:     wrapper.Error.Status,
		Message:    wrapper.Error.Message,
	}
}

// classify tags a completion failure. Structured status codes are preferred;
// the substring checks remain for providers and proxies that return plain
// text bodies.
func classify(err error) failureKind {
	var apiErr *apiError
	if errors.As(err, &apiErr) {
		switch apiErr.Status {
		case "UNAUTHENTICATED", "PERMISSION_DENIED":
			return failureAuth
		case "RESOURCE_EXHAUSTED":
			return failureQuota
		}
	}

	desc := err.Error()
	if strings.Contains(desc, "API key") {
		return failureAuth
	}
	if strings.Contains(strings.ToLower(desc), "quota") {
		return failureQuota
	}
	return failureOther
}
