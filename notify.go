package careauth

import (
	"context"
	"encoding/json"
	"io"
	"sync"
	"time"
)

// Level is the severity of a [Notification].
type Level string

const (
	LevelSuccess Level = "success"
	LevelInfo    Level = "info"
	LevelWarning Level = "warning"
	LevelError   Level = "error"
)

// Notification is a transient, user-visible message such as "registration
// successful" or the failure text of a rejected login.
type Notification struct {
	Timestamp time.Time         `json:"timestamp"`
	Level     Level             `json:"level"`
	Operation string            `json:"operation"`
	Message   string            `json:"message"`
	UserID    string            `json:"user_id,omitempty"`
	Metadata  map[string]string `json:"metadata,omitempty"`
}

// Notifier displays notifications. Implementations used with async
// delivery must tolerate being called from a background goroutine.
type Notifier interface {
	Notify(ctx context.Context, n Notification)
}

// NotifierFunc adapts a function to [Notifier].
type NotifierFunc func(ctx context.Context, n Notification)

func (f NotifierFunc) Notify(ctx context.Context, n Notification) {
	f(ctx, n)
}

// NoOpNotifier discards everything.
type NoOpNotifier struct{}

func (NoOpNotifier) Notify(context.Context, Notification) {}

// ChannelNotifier forwards notifications to a buffered channel.
type ChannelNotifier struct {
	events chan Notification
}

func NewChannelNotifier(buffer int) *ChannelNotifier {
	if buffer <= 0 {
		buffer = 1
	}
	return &ChannelNotifier{
		events: make(chan Notification, buffer),
	}
}

func (s *ChannelNotifier) Notify(ctx context.Context, n Notification) {
	select {
	case s.events <- n:
	case <-ctx.Done():
	}
}

func (s *ChannelNotifier) Events() <-chan Notification {
	return s.events
}

// JSONWriterNotifier writes one JSON object per line.
type JSONWriterNotifier struct {
	writer io.Writer
	mu     sync.Mutex
}

func NewJSONWriterNotifier(w io.Writer) *JSONWriterNotifier {
	return &JSONWriterNotifier{
		writer: w,
	}
}

func (s *JSONWriterNotifier) Notify(_ context.Context, n Notification) {
	if s == nil || s.writer == nil {
		return
	}
	data, err := json.Marshal(n)
	if err != nil {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	_, _ = s.writer.Write(append(data, '\n'))
}
