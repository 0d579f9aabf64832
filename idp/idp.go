// Package idp defines the identity-provider capability the Engine consumes:
// account creation, credential verification, credential update and account
// removal. The
// provider owns credential storage; the Engine never sees a password hash.
package idp

import (
	"context"
	"errors"
)

var (
	// ErrInvalidCredentials is returned by VerifyCredential when the account
	// is unknown or the password does not match. Providers must not
	// distinguish the two.
	ErrInvalidCredentials = errors.New("idp: invalid credentials")
	// ErrAccountExists is returned by CreateAccount for a taken email.
	ErrAccountExists = errors.New("idp: account exists")
	// ErrRejected is returned when the provider refuses the input itself,
	// for example a password its own policy does not accept.
	ErrRejected = errors.New("idp: request rejected")
)

// Provider is the hosted identity capability. Any error other than the
// sentinels above is treated as an outage.
type Provider interface {
	CreateAccount(ctx context.Context, email, password string) (externalID string, err error)
	VerifyCredential(ctx context.Context, email, password string) (externalID string, err error)
	UpdateCredential(ctx context.Context, externalID, newPassword string) error
	// DeleteAccount removes an account. The Engine calls it to undo a
	// CreateAccount whose profile could not be stored. Deleting an unknown
	// account is not an error.
	DeleteAccount(ctx context.Context, externalID string) error
}

// Burner is implemented by providers whose CreateAccount spends measurable
// work hashing the password. Burn performs the same work and discards the
// result, so a registration refused before CreateAccount runs costs the
// same as one that succeeds.
type Burner interface {
	Burn(password string)
}
