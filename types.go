package shopAuth

import (
	"context"
	"log/slog"
	"time"

	"github.com/MrEthical07/shopAuth/idp"
	"github.com/MrEthical07/shopAuth/jwt"
	"github.com/MrEthical07/shopAuth/store"
)

// IdentityProvider verifies and stores credentials. See package idp.
type IdentityProvider = idp.Provider

// Profile is the account profile kept beside the identity provider record.
type Profile = store.Profile

// Session is a login session as returned by ListSessions.
type Session = store.Session

// AccessClaims are the verified claims of an access token.
type AccessClaims = jwt.AccessClaims

// Notifier delivers one-time tokens to the account owner, typically by
// email. Calls are bounded by Config.CallTimeout; failures are logged and
// never change the outcome of the operation.
type Notifier interface {
	SendVerification(ctx context.Context, email, token string) error
	SendPasswordReset(ctx context.Context, email, token string) error
}

// LogNotifier logs delivery requests instead of sending them. The token is
// never logged, only its length.
type LogNotifier struct {
	Logger *slog.Logger
}

func (n LogNotifier) logger() *slog.Logger {
	if n.Logger == nil {
		return slog.Default()
	}
	return n.Logger
}

// SendVerification implements Notifier.
func (n LogNotifier) SendVerification(ctx context.Context, email, token string) error {
	n.logger().InfoContext(ctx, "verification email requested",
		slog.String("email", email),
		slog.Int("token_length", len(token)),
	)
	return nil
}

// SendPasswordReset implements Notifier.
func (n LogNotifier) SendPasswordReset(ctx context.Context, email, token string) error {
	n.logger().InfoContext(ctx, "password reset email requested",
		slog.String("email", email),
		slog.Int("token_length", len(token)),
	)
	return nil
}

// RegisterRequest is the input of Engine.Register.
type RegisterRequest struct {
	Email    string `json:"email"`
	Username string `json:"username"`
	Password string `json:"password"`
}

// RegisterResult describes the created account. The account starts
// unverified and a verification token has been handed to the Notifier.
type RegisterResult struct {
	ProfileID            string `json:"profile_id"`
	Email                string `json:"email"`
	Username             string `json:"username"`
	Role                 string `json:"role"`
	VerificationRequired bool   `json:"verification_required"`
}

// LoginResult is the token pair of a new session.
type LoginResult struct {
	AccessToken      string    `json:"access_token"`
	AccessExpiresAt  time.Time `json:"access_expires_at"`
	RefreshToken     string    `json:"refresh_token"`
	SessionID        string    `json:"session_id"`
	SessionExpiresAt time.Time `json:"session_expires_at"`
	ProfileID        string    `json:"profile_id"`
	Role             string    `json:"role"`
}

// RefreshResult carries the new access token. RefreshToken is the token the
// client must present next time: the rotated one when rotation is enabled,
// otherwise the one it presented.
type RefreshResult struct {
	AccessToken     string    `json:"access_token"`
	AccessExpiresAt time.Time `json:"access_expires_at"`
	RefreshToken    string    `json:"refresh_token"`
	SessionID       string    `json:"session_id"`
	Rotated         bool      `json:"rotated"`
}

// MaintenanceReport summarizes one RunMaintenance pass.
type MaintenanceReport struct {
	SessionsDeleted   int64
	TokensDeleted     int64
	RateRecordsSwept  int
	SuspiciousFlagged int
}
