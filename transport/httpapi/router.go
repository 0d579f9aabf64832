package httpapi

import (
	"context"
	"log/slog"
	"net"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	shopAuth "github.com/MrEthical07/shopAuth"
	"github.com/MrEthical07/shopAuth/middleware"
)

// Auth is the Engine surface the HTTP API needs. *shopAuth.Engine
// satisfies it.
type Auth interface {
	middleware.Validator
	Register(ctx context.Context, req shopAuth.RegisterRequest) (*shopAuth.RegisterResult, error)
	Login(ctx context.Context, email, password string) (*shopAuth.LoginResult, error)
	RefreshAccessToken(ctx context.Context, refreshToken string) (*shopAuth.RefreshResult, error)
	RequestPasswordReset(ctx context.Context, email string) (string, error)
	ResetPassword(ctx context.Context, token, newPassword string) error
	ChangePassword(ctx context.Context, ownerID, current, next string) error
	VerifyEmail(ctx context.Context, token string) error
	ResendVerification(ctx context.Context, email string) (string, error)
	LogoutByAccessToken(ctx context.Context, token string) error
	LogoutAll(ctx context.Context, ownerID string) error
	ListSessions(ctx context.Context, ownerID string) ([]shopAuth.Session, error)
}

// RouterConfig configures NewRouter.
type RouterConfig struct {
	// TrustProxyHeaders takes the client IP from X-Forwarded-For / X-Real-IP.
	TrustProxyHeaders bool
	// GuardMode is the validation mode of authenticated routes. The zero
	// value is ModeJWTOnly.
	GuardMode shopAuth.ValidationMode
	// Edge throttles every route per IP. Nil disables it.
	Edge   *EdgeLimiter
	Logger *slog.Logger
}

// NewRouter mounts the authentication routes.
//
//	POST /auth/register
//	POST /auth/login
//	POST /auth/refresh-token
//	POST /auth/forgot-password
//	POST /auth/reset-password
//	POST /auth/verify-email
//	POST /auth/resend-verification
//	POST /auth/logout              Bearer
//	POST /auth/logout-all          Bearer
//	POST /auth/change-password     Bearer
//	GET  /auth/sessions            Bearer
//	GET  /healthz
func NewRouter(auth Auth, cfg RouterConfig) http.Handler {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	h := &handler{auth: auth, logger: cfg.Logger}

	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	if cfg.TrustProxyHeaders {
		r.Use(chimw.RealIP)
	}
	r.Use(chimw.Recoverer)
	r.Use(requestMeta)
	if cfg.Edge != nil {
		r.Use(cfg.Edge.Middleware)
	}

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Route("/auth", func(r chi.Router) {
		r.Post("/register", h.register)
		r.Post("/login", h.login)
		r.Post("/refresh-token", h.refresh)
		r.Post("/forgot-password", h.forgotPassword)
		r.Post("/reset-password", h.resetPassword)
		r.Post("/verify-email", h.verifyEmail)
		r.Post("/resend-verification", h.resendVerification)
		r.Post("/logout", h.logout)

		r.Group(func(r chi.Router) {
			r.Use(middleware.Guard(auth, cfg.GuardMode))
			r.Post("/logout-all", h.logoutAll)
			r.Post("/change-password", h.changePassword)
			r.Get("/sessions", h.sessions)
		})
	})

	return r
}

// requestMeta copies client IP, User-Agent and X-Device-Name onto the
// request context for the Engine.
func requestMeta(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := shopAuth.WithClientIP(r.Context(), clientIP(r))
		ctx = shopAuth.WithUserAgent(ctx, r.UserAgent())
		if name := strings.TrimSpace(r.Header.Get("X-Device-Name")); name != "" {
			ctx = shopAuth.WithDeviceName(ctx, name)
		}
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
