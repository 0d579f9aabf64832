package shopAuth

import (
	"io"

	"github.com/MrEthical07/shopAuth/internal/audit"
	"github.com/MrEthical07/shopAuth/store"
)

// AuditEvent is one persisted security event.
type AuditEvent = store.AuditEvent

// AuditQuery filters Engine.AuditTrail.
type AuditQuery = store.AuditQuery

// AuditSink receives a copy of every stored audit event, e.g. to forward
// them to a log pipeline. Emit must not block for long.
type AuditSink = audit.Sink

// Audit event types.
const (
	AuditRegisterSuccess         = audit.EventRegisterSuccess
	AuditRegisterFailed          = audit.EventRegisterFailed
	AuditLoginSuccess            = audit.EventLoginSuccess
	AuditLoginFailed             = audit.EventLoginFailed
	AuditRateLimited             = audit.EventRateLimited
	AuditAccountLocked           = audit.EventAccountLocked
	AuditEmailVerificationSent   = audit.EventEmailVerificationSent
	AuditEmailVerified           = audit.EventEmailVerified
	AuditEmailVerificationFailed = audit.EventEmailVerifyFailed
	AuditTokenRefreshed          = audit.EventTokenRefreshed
	AuditTokenRefreshFailed      = audit.EventRefreshFailed
	AuditPasswordResetRequested  = audit.EventPasswordResetRequested
	AuditPasswordResetCompleted  = audit.EventPasswordResetCompleted
	AuditPasswordResetFailed     = audit.EventPasswordResetFailed
	AuditPasswordChanged         = audit.EventPasswordChanged
	AuditPasswordChangeFailed    = audit.EventPasswordChangeFailed
	AuditLogout                  = audit.EventLogout
	AuditLogoutAll               = audit.EventLogoutAll
	AuditSuspiciousActivity      = audit.EventSuspiciousActivity
)

// NewChannelSink returns a sink that publishes events on a buffered channel.
func NewChannelSink(buffer int) *audit.ChannelSink {
	return audit.NewChannelSink(buffer)
}

// NewJSONWriterSink returns a sink writing one JSON object per line to w.
func NewJSONWriterSink(w io.Writer) *audit.JSONWriterSink {
	return audit.NewJSONWriterSink(w)
}
