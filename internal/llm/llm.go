package llm

import (
	"context"
	"errors"
	"fmt"
)

const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

var ErrUnknownModel = errors.New("unknown model")

type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Delta is one incremental fragment of a streamed completion. A Delta with a
// non-nil Err is always the last value sent before the channel closes.
type Delta struct {
	Content string
	Err     error
}

type Provider interface {
	Name() string
	Complete(ctx context.Context, model string, msgs []Message) (string, error)
	Stream(ctx context.Context, model string, msgs []Message) (<-chan Delta, error)
}

// StatusError is returned by HTTP-backed providers when the upstream answers with a non-2xx status.
type StatusError struct {
	Provider string
	Status   int
	Body     string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s: unexpected status %d: %s", e.Provider, e.Status, e.Body)
}

// SplitSystem separates system instructions from the conversational messages.
// Providers that take the system prompt as a top-level field use it.
func SplitSystem(msgs []Message) (string, []Message) {
	var system string
	rest := make([]Message, 0, len(msgs))
	for _, m := range msgs {
		if m.Role == RoleSystem {
			if system != "" {
				system += "\n\n"
			}
			system += m.Content
			continue
		}
		rest = append(rest, m)
	}
	return system, rest
}

// Send delivers d on ch unless ctx is done first. It reports whether the value was sent.
func Send(ctx context.Context, ch chan<- Delta, d Delta) bool {
	select {
	case ch <- d:
		return true
	case <-ctx.Done():
		return false
	}
}
