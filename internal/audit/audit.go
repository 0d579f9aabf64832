package audit

import (
	"context"
	"encoding/json"
	"io"
	"sync"

	"github.com/MrEthical07/shopAuth/store"
)

// Event is the canonical audit event model shared with the store and root APIs.
type Event = store.AuditEvent

const (
	EventRegisterSuccess        = "REGISTER_SUCCESS"
	EventRegisterFailed         = "REGISTER_FAILED"
	EventLoginSuccess           = "LOGIN_SUCCESS"
	EventLoginFailed            = "LOGIN_FAILED"
	EventRateLimited            = "RATE_LIMITED"
	EventAccountLocked          = "ACCOUNT_LOCKED"
	EventEmailVerificationSent  = "EMAIL_VERIFICATION_SENT"
	EventEmailVerified          = "EMAIL_VERIFIED"
	EventEmailVerifyFailed      = "EMAIL_VERIFICATION_FAILED"
	EventTokenRefreshed         = "TOKEN_REFRESHED"
	EventRefreshFailed          = "TOKEN_REFRESH_FAILED"
	EventPasswordResetRequested = "PASSWORD_RESET_REQUESTED"
	EventPasswordResetCompleted = "PASSWORD_RESET_COMPLETED"
	EventPasswordResetFailed    = "PASSWORD_RESET_FAILED"
	EventPasswordChanged        = "PASSWORD_CHANGED"
	EventPasswordChangeFailed   = "PASSWORD_CHANGE_FAILED"
	EventLogout                 = "LOGOUT"
	EventLogoutAll              = "LOGOUT_ALL"
	EventSuspiciousActivity     = "SUSPICIOUS_ACTIVITY"
)

// Sink receives emitted audit events.
type Sink interface {
	Emit(ctx context.Context, event Event)
}

// NoOpSink drops audit events.
type NoOpSink struct{}

func (NoOpSink) Emit(context.Context, Event) {}

// ChannelSink writes audit events into a buffered channel.
type ChannelSink struct {
	events chan Event
}

func NewChannelSink(buffer int) *ChannelSink {
	if buffer <= 0 {
		buffer = 1
	}
	return &ChannelSink{
		events: make(chan Event, buffer),
	}
}

func (s *ChannelSink) Emit(ctx context.Context, event Event) {
	select {
	case s.events <- event:
	case <-ctx.Done():
	}
}

func (s *ChannelSink) Events() <-chan Event {
	return s.events
}

// JSONWriterSink writes one JSON object per line.
type JSONWriterSink struct {
	writer io.Writer
	mu     sync.Mutex
}

func NewJSONWriterSink(w io.Writer) *JSONWriterSink {
	return &JSONWriterSink{
		writer: w,
	}
}

func (s *JSONWriterSink) Emit(_ context.Context, event Event) {
	if s == nil || s.writer == nil {
		return
	}
	data, err := json.Marshal(event)
	if err != nil {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	_, _ = s.writer.Write(append(data, '\n'))
}

type sinkFunc func(context.Context, Event)

func (f sinkFunc) Emit(ctx context.Context, e Event) { f(ctx, e) }
