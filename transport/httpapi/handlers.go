package httpapi

import (
	"log/slog"
	"net/http"
	"time"

	shopAuth "github.com/MrEthical07/shopAuth"
	"github.com/MrEthical07/shopAuth/middleware"
)

type handler struct {
	auth   Auth
	logger *slog.Logger
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type refreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

type emailRequest struct {
	Email string `json:"email"`
}

type tokenRequest struct {
	Token string `json:"token"`
}

type resetRequest struct {
	Token    string `json:"token"`
	Password string `json:"password"`
}

type changePasswordRequest struct {
	CurrentPassword string `json:"current_password"`
	NewPassword     string `json:"new_password"`
}

type sessionView struct {
	ID         string `json:"id"`
	DeviceName string `json:"device_name,omitempty"`
	IP         string `json:"ip,omitempty"`
	UserAgent  string `json:"user_agent,omitempty"`
	CreatedAt  string `json:"created_at"`
	LastUsedAt string `json:"last_used_at"`
	ExpiresAt  string `json:"expires_at"`
	Current    bool   `json:"current"`
}

// fail writes err and logs the ones the client cannot act on.
func (h *handler) fail(w http.ResponseWriter, r *http.Request, err error) {
	if shopAuth.AsError(err).Kind == shopAuth.KindInternal {
		h.logger.ErrorContext(r.Context(), "request failed",
			slog.String("path", r.URL.Path),
			slog.String("error", err.Error()),
		)
	}
	writeError(w, err)
}

func (h *handler) register(w http.ResponseWriter, r *http.Request) {
	var req shopAuth.RegisterRequest
	if !decode(w, r, &req) {
		return
	}
	res, err := h.auth.Register(r.Context(), req)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, res)
}

func (h *handler) login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if !decode(w, r, &req) {
		return
	}
	res, err := h.auth.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (h *handler) refresh(w http.ResponseWriter, r *http.Request) {
	var req refreshRequest
	if !decode(w, r, &req) {
		return
	}
	res, err := h.auth.RefreshAccessToken(r.Context(), req.RefreshToken)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (h *handler) forgotPassword(w http.ResponseWriter, r *http.Request) {
	var req emailRequest
	if !decode(w, r, &req) {
		return
	}
	msg, err := h.auth.RequestPasswordReset(r.Context(), req.Email)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, messageResponse{Message: msg})
}

func (h *handler) resetPassword(w http.ResponseWriter, r *http.Request) {
	var req resetRequest
	if !decode(w, r, &req) {
		return
	}
	if err := h.auth.ResetPassword(r.Context(), req.Token, req.Password); err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, messageResponse{Message: "Password has been reset."})
}

func (h *handler) verifyEmail(w http.ResponseWriter, r *http.Request) {
	var req tokenRequest
	if !decode(w, r, &req) {
		return
	}
	if err := h.auth.VerifyEmail(r.Context(), req.Token); err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, messageResponse{Message: "Email address verified."})
}

func (h *handler) resendVerification(w http.ResponseWriter, r *http.Request) {
	var req emailRequest
	if !decode(w, r, &req) {
		return
	}
	msg, err := h.auth.ResendVerification(r.Context(), req.Email)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, messageResponse{Message: msg})
}

func (h *handler) logout(w http.ResponseWriter, r *http.Request) {
	token, ok := middleware.BearerToken(r.Header.Get("Authorization"))
	if !ok {
		writeError(w, shopAuth.ErrUnauthorized)
		return
	}
	if err := h.auth.LogoutByAccessToken(r.Context(), token); err != nil {
		h.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *handler) logoutAll(w http.ResponseWriter, r *http.Request) {
	claims, _ := middleware.ClaimsFromContext(r.Context())
	if err := h.auth.LogoutAll(r.Context(), claims.UID); err != nil {
		h.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *handler) changePassword(w http.ResponseWriter, r *http.Request) {
	claims, _ := middleware.ClaimsFromContext(r.Context())
	var req changePasswordRequest
	if !decode(w, r, &req) {
		return
	}
	if err := h.auth.ChangePassword(r.Context(), claims.UID, req.CurrentPassword, req.NewPassword); err != nil {
		h.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *handler) sessions(w http.ResponseWriter, r *http.Request) {
	claims, _ := middleware.ClaimsFromContext(r.Context())
	list, err := h.auth.ListSessions(r.Context(), claims.UID)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	out := make([]sessionView, 0, len(list))
	for _, s := range list {
		out = append(out, sessionView{
			ID:         s.ID,
			DeviceName: s.Device.Name,
			IP:         s.Device.IP,
			UserAgent:  s.Device.UserAgent,
			CreatedAt:  s.CreatedAt.UTC().Format(time.RFC3339),
			LastUsedAt: s.LastUsedAt.UTC().Format(time.RFC3339),
			ExpiresAt:  s.ExpiresAt.UTC().Format(time.RFC3339),
			Current:    s.ID == claims.SID,
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{"sessions": out})
}
