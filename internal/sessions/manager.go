package sessions

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/MrEthical07/shopAuth/internal"
	"github.com/MrEthical07/shopAuth/internal/rate"
	"github.com/MrEthical07/shopAuth/store"
)

var (
	// ErrNotFound covers unknown, malformed, revoked and expired sessions.
	ErrNotFound = errors.New("session not found")
	// ErrStoreUnavailable wraps persistence failures.
	ErrStoreUnavailable = errors.New("session store unavailable")
)

// Config controls session lifetime and refresh policy.
type Config struct {
	TTL                 time.Duration
	RotateRefreshTokens bool
	RefreshPolicy       rate.Policy
}

// Manager owns the session lifecycle.
type Manager struct {
	store   store.SessionStore
	limiter *rate.Limiter
	cfg     Config
	now     func() time.Time
}

// New creates a Manager. limiter may be nil to disable refresh throttling.
func New(s store.SessionStore, limiter *rate.Limiter, cfg Config, now func() time.Time) *Manager {
	if now == nil {
		now = time.Now
	}
	if cfg.TTL <= 0 {
		cfg.TTL = 7 * 24 * time.Hour
	}
	return &Manager{store: s, limiter: limiter, cfg: cfg, now: now}
}

// Create persists a new session for ownerID and returns it together with the
// refresh token handed to the client.
func (m *Manager) Create(ctx context.Context, ownerID string, device store.DeviceMeta) (*store.Session, string, error) {
	token, id, hash, err := internal.NewToken()
	if err != nil {
		return nil, "", err
	}

	now := m.now()
	sess := store.Session{
		ID:          id,
		OwnerID:     ownerID,
		RefreshHash: hash,
		Device:      device,
		CreatedAt:   now,
		LastUsedAt:  now,
		ExpiresAt:   now.Add(m.cfg.TTL),
	}
	if err := m.store.CreateSession(ctx, sess); err != nil {
		return nil, "", fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return &sess, token, nil
}

// GetActiveByRefreshToken resolves a refresh token to its session, excluding
// revoked and expired sessions.
func (m *Manager) GetActiveByRefreshToken(ctx context.Context, refreshToken string) (*store.Session, error) {
	id, secret, err := internal.DecodeToken(refreshToken)
	if err != nil {
		return nil, ErrNotFound
	}

	sess, err := m.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !internal.HashEqual(sess.RefreshHash, internal.HashSecret(secret)) {
		return nil, ErrNotFound
	}
	return sess, nil
}

// Get returns the session with id if it is still active.
func (m *Manager) Get(ctx context.Context, id string) (*store.Session, error) {
	sess, err := m.store.GetSession(ctx, id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	if !sess.Active(m.now()) {
		return nil, ErrNotFound
	}
	return sess, nil
}

// Refresh records a use of sess. It is throttled per owner; when rotation is
// enabled the refresh secret is swapped with a compare-and-swap and the new
// token is returned, otherwise the returned token is empty.
func (m *Manager) Refresh(ctx context.Context, sess *store.Session) (*store.Session, string, error) {
	if sess == nil || !sess.Active(m.now()) {
		return nil, "", ErrNotFound
	}

	if m.limiter != nil {
		if _, err := m.limiter.Check(ctx, m.cfg.RefreshPolicy, sess.OwnerID); err != nil {
			return nil, "", err
		}
	}

	now := m.now()
	if !m.cfg.RotateRefreshTokens {
		updated, err := m.store.TouchSession(ctx, sess.ID, now)
		if err != nil {
			return nil, "", mapStoreErr(err)
		}
		return updated, "", nil
	}

	secret, err := internal.NewSecret()
	if err != nil {
		return nil, "", err
	}
	token, err := internal.EncodeToken(sess.ID, secret)
	if err != nil {
		return nil, "", err
	}
	updated, err := m.store.RotateRefresh(ctx, sess.ID, sess.RefreshHash, internal.HashSecret(secret), now)
	if err != nil {
		return nil, "", mapStoreErr(err)
	}
	return updated, token, nil
}

// Revoke terminally revokes one session.
func (m *Manager) Revoke(ctx context.Context, sessionID string) error {
	if err := m.store.RevokeSession(ctx, sessionID, m.now()); err != nil {
		return mapStoreErr(err)
	}
	return nil
}

// RevokeAll revokes every active session of ownerID and returns how many
// were revoked.
func (m *Manager) RevokeAll(ctx context.Context, ownerID string) (int64, error) {
	n, err := m.store.RevokeAllSessions(ctx, ownerID, m.now())
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return n, nil
}

// ListActive returns the active sessions of ownerID, newest first.
func (m *Manager) ListActive(ctx context.Context, ownerID string) ([]store.Session, error) {
	out, err := m.store.ListActiveSessions(ctx, ownerID, m.now())
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return out, nil
}

// CleanupExpired deletes sessions past their expiry. Safe to run
// concurrently and repeatedly.
func (m *Manager) CleanupExpired(ctx context.Context) (int64, error) {
	n, err := m.store.DeleteExpiredSessions(ctx, m.now())
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return n, nil
}

func mapStoreErr(err error) error {
	if errors.Is(err, store.ErrNotFound) {
		return ErrNotFound
	}
	return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
}
