package flows

import (
	"context"

	"github.com/MrEthical07/shopAuth/jwt"
)

// Service is the centralized flow runner built once by the root engine.
type Service struct {
	deps Deps
}

// New returns a flow service with immutable dependency wiring.
func New(deps Deps) Service {
	deps.normalize()
	return Service{deps: deps}
}

// Initialized reports whether the service has been wired with flow deps.
func (s Service) Initialized() bool {
	return s.deps.Ready()
}

func (s Service) Register(ctx context.Context, in RegisterInput) (*RegisterOutput, error) {
	return RunRegister(ctx, in, s.deps)
}

func (s Service) Login(ctx context.Context, email, password string) (*LoginOutput, error) {
	return RunLogin(ctx, email, password, s.deps)
}

func (s Service) Refresh(ctx context.Context, refreshToken string) (*RefreshOutput, error) {
	return RunRefresh(ctx, refreshToken, s.deps)
}

func (s Service) RequestPasswordReset(ctx context.Context, email string) (string, error) {
	return RunRequestPasswordReset(ctx, email, s.deps)
}

func (s Service) ResetPassword(ctx context.Context, token, newPassword string) error {
	return RunResetPassword(ctx, token, newPassword, s.deps)
}

func (s Service) ChangePassword(ctx context.Context, ownerID, current, next string) error {
	return RunChangePassword(ctx, ownerID, current, next, s.deps)
}

func (s Service) VerifyEmail(ctx context.Context, token string) error {
	return RunVerifyEmail(ctx, token, s.deps)
}

func (s Service) ResendVerification(ctx context.Context, email string) (string, error) {
	return RunResendVerification(ctx, email, s.deps)
}

func (s Service) Logout(ctx context.Context, sessionID string) error {
	return RunLogout(ctx, sessionID, s.deps)
}

func (s Service) LogoutAll(ctx context.Context, ownerID string) (int64, error) {
	return RunLogoutAll(ctx, ownerID, s.deps)
}

func (s Service) Validate(ctx context.Context, token string, strict bool) (*jwt.AccessClaims, error) {
	return RunValidate(ctx, token, strict, s.deps)
}

// StrictByDefault reports the configured validation mode.
func (s Service) StrictByDefault() bool {
	return s.deps.StrictValidation
}
