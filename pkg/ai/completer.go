package ai

import (
	"context"
	"errors"
)

// ChatCompleter turns a system prompt plus user text into a completion.
// The extraction pipeline treats the model as an opaque text-in/text-out
// function, which keeps it substitutable with a stub in tests.
type ChatCompleter interface {
	CompleteChat(ctx context.Context, systemPrompt, userText string) (string, error)
}

// ErrUnavailable marks transport-level failures (connection refused,
// timeout) as opposed to an API-level error response. Callers may retry
// these; API errors are terminal.
var ErrUnavailable = errors.New("chat completion service unavailable")
