package store

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrNotFound is returned when a record does not exist or no longer
	// satisfies the conditional predicate of the operation.
	ErrNotFound = errors.New("store: not found")
	// ErrConflict is returned when a uniqueness constraint rejects a write.
	ErrConflict = errors.New("store: conflict")
)

// TokenPurpose namespaces one-time tokens.
type TokenPurpose string

const (
	PurposeVerifyEmail   TokenPurpose = "verify-email"
	PurposeResetPassword TokenPurpose = "reset-password"
)

// Valid reports whether p is a known purpose.
func (p TokenPurpose) Valid() bool {
	return p == PurposeVerifyEmail || p == PurposeResetPassword
}

// Token is a persisted one-time token. Only the SHA-256 of the secret is kept.
type Token struct {
	ID         string
	OwnerID    string
	Purpose    TokenPurpose
	SecretHash [32]byte
	CreatedAt  time.Time
	ExpiresAt  time.Time
	UsedAt     *time.Time
}

// DeviceMeta is the client metadata captured when a session is created.
type DeviceMeta struct {
	Name      string
	IP        string
	UserAgent string
}

// Session is a refresh-token backed login session.
type Session struct {
	ID          string
	OwnerID     string
	RefreshHash [32]byte
	Device      DeviceMeta
	CreatedAt   time.Time
	LastUsedAt  time.Time
	ExpiresAt   time.Time
	RevokedAt   *time.Time
}

// Active reports whether the session is neither revoked nor expired at now.
func (s *Session) Active(now time.Time) bool {
	return s != nil && s.RevokedAt == nil && now.Before(s.ExpiresAt)
}

// AuditEvent is an append-only security event.
type AuditEvent struct {
	ID         string            `json:"id"`
	Type       string            `json:"type"`
	OwnerID    string            `json:"owner_id,omitempty"`
	ResourceID string            `json:"resource_id,omitempty"`
	Subject    string            `json:"subject,omitempty"`
	IP         string            `json:"ip,omitempty"`
	UserAgent  string            `json:"user_agent,omitempty"`
	Success    bool              `json:"success"`
	Reason     string            `json:"reason,omitempty"`
	Metadata   map[string]string `json:"metadata,omitempty"`
	CreatedAt  time.Time         `json:"created_at"`
}

// AuditQuery filters audit listings. Empty fields match everything.
type AuditQuery struct {
	OwnerID    string
	ResourceID string
	Type       string
	Limit      int
	Offset     int
}

// Profile is the externally owned account profile.
type Profile struct {
	ID              string
	ExternalID      string
	Email           string
	Username        string
	Role            string
	EmailVerified   bool
	SellerProfileID string
	CreatedAt       time.Time
}

// TokenStore persists one-time tokens.
type TokenStore interface {
	CreateToken(ctx context.Context, t Token) error
	GetToken(ctx context.Context, id string) (*Token, error)
	// MarkUsed sets used_at only if it is unset and the token is unexpired at
	// now. It returns ErrNotFound when the predicate does not hold.
	MarkUsed(ctx context.Context, id string, now time.Time) (*Token, error)
	// MarkUsedExclusive marks id and every other unused token of the same
	// owner and purpose used in one atomic step. It returns ErrNotFound when
	// id is not live at now, including when a sibling redemption won.
	MarkUsedExclusive(ctx context.Context, id string, now time.Time) (*Token, error)
	DeleteExpiredTokens(ctx context.Context, before time.Time) (int64, error)
}

// SessionStore persists sessions.
type SessionStore interface {
	CreateSession(ctx context.Context, s Session) error
	GetSession(ctx context.Context, id string) (*Session, error)
	// TouchSession updates last_used_at of an active session.
	TouchSession(ctx context.Context, id string, now time.Time) (*Session, error)
	// RotateRefresh swaps the refresh hash of an active session only when the
	// current hash equals expected.
	RotateRefresh(ctx context.Context, id string, expected, next [32]byte, now time.Time) (*Session, error)
	RevokeSession(ctx context.Context, id string, now time.Time) error
	RevokeAllSessions(ctx context.Context, ownerID string, now time.Time) (int64, error)
	ListActiveSessions(ctx context.Context, ownerID string, now time.Time) ([]Session, error)
	DeleteExpiredSessions(ctx context.Context, now time.Time) (int64, error)
}

// AuditStore persists audit events.
type AuditStore interface {
	AppendAudit(ctx context.Context, e AuditEvent) error
	ListAudit(ctx context.Context, q AuditQuery) ([]AuditEvent, error)
	// DistinctIPs counts distinct non-empty IPs of eventType for subject since.
	DistinctIPs(ctx context.Context, eventType, subject string, since time.Time) (int, error)
	// SubjectsOverIPThreshold returns subjects whose distinct-IP count for
	// eventType since exceeds threshold.
	SubjectsOverIPThreshold(ctx context.Context, eventType string, since time.Time, threshold int) ([]string, error)
	// HasEventSince reports whether an event of eventType exists for subject since.
	HasEventSince(ctx context.Context, eventType, subject string, since time.Time) (bool, error)
}

// ProfileStore is the profile persistence collaborator.
type ProfileStore interface {
	CreateProfile(ctx context.Context, p Profile) error
	GetProfileByID(ctx context.Context, id string) (*Profile, error)
	GetProfileByEmail(ctx context.Context, email string) (*Profile, error)
	GetProfileByUsername(ctx context.Context, username string) (*Profile, error)
	MarkEmailVerified(ctx context.Context, id string) error
}

// Store bundles every persistence interface the engine needs.
type Store interface {
	TokenStore
	SessionStore
	AuditStore
	ProfileStore
}
