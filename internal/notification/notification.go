package notification

import (
	"context"
	"log/slog"
	"sync"
)

const (
	// KindError is a failure the user can retry.
	KindError = "error"
	// KindSuccess confirms a completed action.
	KindSuccess = "success"
	// KindInfo is purely informational.
	KindInfo = "info"
)

// Message describes a user-visible notification.
type Message struct {
	Kind   string
	Title  string
	Detail string
}

// Notifier delivers notifications to whatever surface shows them to the user.
type Notifier interface {
	Send(ctx context.Context, message Message) error
}

// Error sends an error notification, folding err into the detail.
func Error(ctx context.Context, n Notifier, title string, err error) {
	msg := Message{Kind: KindError, Title: title}
	if err != nil {
		msg.Detail = err.Error()
	}
	_ = n.Send(ctx, msg)
}

// Success sends a success notification.
func Success(ctx context.Context, n Notifier, title string) {
	_ = n.Send(ctx, Message{Kind: KindSuccess, Title: title})
}

// LoggerNotifier writes notifications to the structured logger.
type LoggerNotifier struct {
	logger *slog.Logger
}

// NewLoggerNotifier constructs a logging notifier.
func NewLoggerNotifier(logger *slog.Logger) *LoggerNotifier {
	return &LoggerNotifier{logger: logger}
}

// Send writes the message to the structured logger.
func (n *LoggerNotifier) Send(ctx context.Context, message Message) error {
	if n == nil || n.logger == nil {
		return nil
	}
	level := slog.LevelInfo
	if message.Kind == KindError {
		level = slog.LevelWarn
	}
	n.logger.Log(ctx, level, "notification", "kind", message.Kind, "title", message.Title, "detail", message.Detail)
	return nil
}

// Recorder keeps every notification in memory. Tests and the CLI runner use
// it to inspect what the user would have seen.
type Recorder struct {
	mu       sync.Mutex
	messages []Message
}

// Send appends message.
func (r *Recorder) Send(_ context.Context, message Message) error {
	r.mu.Lock()
	r.messages = append(r.messages, message)
	r.mu.Unlock()
	return nil
}

// Messages returns a copy of everything recorded so far.
func (r *Recorder) Messages() []Message {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Message, len(r.messages))
	copy(out, r.messages)
	return out
}

// Titles lists recorded titles of the given kind, in order.
func (r *Recorder) Titles(kind string) []string {
	var out []string
	for _, m := range r.Messages() {
		if m.Kind == kind {
			out = append(out, m.Title)
		}
	}
	return out
}

// Multi fans a message out to several notifiers.
type Multi []Notifier

// Send delivers to every notifier and returns the first error.
func (m Multi) Send(ctx context.Context, message Message) error {
	var first error
	for _, n := range m {
		if err := n.Send(ctx, message); err != nil && first == nil {
			first = err
		}
	}
	return first
}
