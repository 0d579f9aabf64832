package tokens

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/MrEthical07/shopAuth/internal"
	"github.com/MrEthical07/shopAuth/store"
)

var (
	// ErrInvalidOrExpired covers not found, expired, used, malformed and
	// purpose mismatch.
	ErrInvalidOrExpired = errors.New("token invalid or expired")
	// ErrStoreUnavailable wraps persistence failures.
	ErrStoreUnavailable = errors.New("token store unavailable")
)

// Config sets per-purpose lifetimes.
type Config struct {
	VerifyEmailTTL   time.Duration
	ResetPasswordTTL time.Duration
}

// DefaultConfig returns 24h verification and 15m reset lifetimes.
func DefaultConfig() Config {
	return Config{
		VerifyEmailTTL:   24 * time.Hour,
		ResetPasswordTTL: 15 * time.Minute,
	}
}

// Service is the token lifecycle manager.
type Service struct {
	store store.TokenStore
	cfg   Config
	now   func() time.Time
}

// New creates a Service. A nil now defaults to time.Now.
func New(s store.TokenStore, cfg Config, now func() time.Time) *Service {
	if now == nil {
		now = time.Now
	}
	if cfg.VerifyEmailTTL <= 0 {
		cfg.VerifyEmailTTL = DefaultConfig().VerifyEmailTTL
	}
	if cfg.ResetPasswordTTL <= 0 {
		cfg.ResetPasswordTTL = DefaultConfig().ResetPasswordTTL
	}
	return &Service{store: s, cfg: cfg, now: now}
}

func (s *Service) ttl(purpose store.TokenPurpose) time.Duration {
	if purpose == store.PurposeResetPassword {
		return s.cfg.ResetPasswordTTL
	}
	return s.cfg.VerifyEmailTTL
}

// Create issues a token for ownerID and returns its opaque value.
func (s *Service) Create(ctx context.Context, ownerID string, purpose store.TokenPurpose) (string, error) {
	if ownerID == "" || !purpose.Valid() {
		return "", fmt.Errorf("tokens: invalid create request")
	}

	token, id, hash, err := internal.NewToken()
	if err != nil {
		return "", err
	}

	now := s.now()
	rec := store.Token{
		ID:         id,
		OwnerID:    ownerID,
		Purpose:    purpose,
		SecretHash: hash,
		CreatedAt:  now,
		ExpiresAt:  now.Add(s.ttl(purpose)),
	}
	if err := s.store.CreateToken(ctx, rec); err != nil {
		return "", fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return token, nil
}

// Verify returns the owner of a live token without consuming it.
func (s *Service) Verify(ctx context.Context, token string, purpose store.TokenPurpose) (string, error) {
	rec, err := s.lookup(ctx, token, purpose)
	if err != nil {
		return "", err
	}
	if rec.UsedAt != nil || !s.now().Before(rec.ExpiresAt) {
		return "", ErrInvalidOrExpired
	}
	return rec.OwnerID, nil
}

// Consume atomically marks a live token used and returns its owner. A
// reset-password token retires every other unused reset token of the owner
// in the same store operation, so of two sibling links at most one redeems.
func (s *Service) Consume(ctx context.Context, token string, purpose store.TokenPurpose) (string, error) {
	rec, err := s.lookup(ctx, token, purpose)
	if err != nil {
		return "", err
	}

	now := s.now()
	var consumed *store.Token
	if purpose == store.PurposeResetPassword {
		consumed, err = s.store.MarkUsedExclusive(ctx, rec.ID, now)
	} else {
		consumed, err = s.store.MarkUsed(ctx, rec.ID, now)
	}
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return "", ErrInvalidOrExpired
		}
		return "", fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	return consumed.OwnerID, nil
}

// DeleteExpired garbage-collects tokens that expired before the given time.
func (s *Service) DeleteExpired(ctx context.Context, before time.Time) (int64, error) {
	n, err := s.store.DeleteExpiredTokens(ctx, before)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return n, nil
}

func (s *Service) lookup(ctx context.Context, token string, purpose store.TokenPurpose) (*store.Token, error) {
	id, secret, err := internal.DecodeToken(token)
	if err != nil {
		return nil, ErrInvalidOrExpired
	}

	rec, err := s.store.GetToken(ctx, id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrInvalidOrExpired
		}
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	if !internal.HashEqual(rec.SecretHash, internal.HashSecret(secret)) || rec.Purpose != purpose {
		return nil, ErrInvalidOrExpired
	}
	return rec, nil
}
