package flows

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"github.com/MrEthical07/shopAuth/idp"
	"github.com/MrEthical07/shopAuth/internal/audit"
	"github.com/MrEthical07/shopAuth/store"
)

// RegisterInput is the caller-supplied registration data.
type RegisterInput struct {
	Email    string
	Username string
	Password string
}

// RegisterOutput describes the created, unverified profile.
type RegisterOutput struct {
	ProfileID            string
	Email                string
	Username             string
	Role                 string
	VerificationRequired bool
}

// RunRegister creates an account with the identity provider, stores its
// profile and sends the first verification token.
//
// Duplicates and provider rejections return Errors.RegistrationFailed. A
// duplicate caught before CreateAccount still pays for one password hash
// through idp.Burner, so neither the response nor its latency reveals which
// identifiers already exist. A profile that cannot be stored rolls the
// provider account back so the email stays free to register.
func RunRegister(ctx context.Context, in RegisterInput, d Deps) (*RegisterOutput, error) {
	d.normalize()
	meta := d.Meta(ctx)

	email := NormalizeEmail(in.Email)
	username := strings.TrimSpace(in.Username)

	ipKey := meta.IP
	if ipKey == "" {
		ipKey = "unknown"
	}
	if err := d.checkRate(ctx, d.Policies.Register, ipKey, email, ""); err != nil {
		return nil, err
	}

	fields := map[string]string{}
	if msg := validateEmail(email); msg != "" {
		fields["email"] = msg
	}
	if msg := validateUsername(username); msg != "" {
		fields["username"] = msg
	}
	if msg := CheckPassword(in.Password, d.Password); msg != "" {
		fields["password"] = msg
	}
	if len(fields) > 0 {
		d.registerFailed(ctx, email, "validation")
		return nil, d.Errors.Validation(fields)
	}

	taken, err := d.identifiersTaken(ctx, email, username)
	if err != nil {
		return nil, d.internal(ctx, "register.lookup", err)
	}
	if taken {
		d.burnPassword(in.Password)
		d.registerFailed(ctx, email, "duplicate")
		return nil, d.Errors.RegistrationFailed
	}

	callCtx, cancel := d.bounded(ctx)
	externalID, err := d.Identity.CreateAccount(callCtx, email, in.Password)
	cancel()
	switch {
	case errors.Is(err, idp.ErrAccountExists), errors.Is(err, idp.ErrRejected):
		d.registerFailed(ctx, email, "identity_rejected")
		return nil, d.Errors.RegistrationFailed
	case err != nil:
		return nil, d.internal(ctx, "register.create_account", err)
	}

	profile := store.Profile{
		ID:         d.NewID(),
		ExternalID: externalID,
		Email:      email,
		Username:   username,
		Role:       d.DefaultRole,
		CreatedAt:  d.Now(),
	}
	if err := d.Profiles.CreateProfile(ctx, profile); err != nil {
		d.deleteAccount(ctx, externalID)
		if errors.Is(err, store.ErrConflict) {
			d.registerFailed(ctx, email, "duplicate")
			return nil, d.Errors.RegistrationFailed
		}
		return nil, d.internal(ctx, "register.create_profile", err)
	}

	d.MetricInc(d.Metrics.RegisterSuccess)
	d.emit(ctx, audit.Event{
		Type:    audit.EventRegisterSuccess,
		OwnerID: profile.ID,
		Subject: email,
		Success: true,
	})

	d.sendVerification(ctx, &profile)

	return &RegisterOutput{
		ProfileID:            profile.ID,
		Email:                profile.Email,
		Username:             profile.Username,
		Role:                 profile.Role,
		VerificationRequired: true,
	}, nil
}

func (d *Deps) identifiersTaken(ctx context.Context, email, username string) (bool, error) {
	_, errEmail := d.Profiles.GetProfileByEmail(ctx, email)
	_, errUser := d.Profiles.GetProfileByUsername(ctx, username)

	for _, err := range []error{errEmail, errUser} {
		if err != nil && !errors.Is(err, store.ErrNotFound) {
			return false, err
		}
	}
	return errEmail == nil || errUser == nil, nil
}

func (d *Deps) burnPassword(password string) {
	if b, ok := d.Identity.(idp.Burner); ok {
		b.Burn(password)
	}
}

// deleteAccount undoes a CreateAccount. It runs detached from ctx so a
// cancelled request still releases the email.
func (d *Deps) deleteAccount(ctx context.Context, externalID string) {
	callCtx, cancel := d.bounded(context.WithoutCancel(ctx))
	defer cancel()
	if err := d.Identity.DeleteAccount(callCtx, externalID); err != nil {
		d.Logger.ErrorContext(ctx, "identity account rollback failed",
			slog.String("external_id", externalID),
			slog.String("error", err.Error()),
		)
	}
}

func (d *Deps) registerFailed(ctx context.Context, email, reason string) {
	d.MetricInc(d.Metrics.RegisterFailure)
	d.emit(ctx, audit.Event{
		Type:    audit.EventRegisterFailed,
		Subject: email,
		Reason:  reason,
	})
}
