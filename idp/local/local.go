// Package local is an in-process identity provider that keeps Argon2id
// hashes in memory. It backs tests, demos and single-node deployments.
package local

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/MrEthical07/shopAuth/idp"
	"github.com/MrEthical07/shopAuth/password"
	"github.com/google/uuid"
)

type account struct {
	id    string
	email string
	hash  string
}

// Provider implements idp.Provider.
type Provider struct {
	hasher *password.Hasher

	mu      sync.RWMutex
	byEmail map[string]*account
	byID    map[string]*account
}

var (
	_ idp.Provider = (*Provider)(nil)
	_ idp.Burner   = (*Provider)(nil)
)

// New returns a Provider hashing with cfg.
func New(cfg password.Config) (*Provider, error) {
	hasher, err := password.NewHasher(cfg)
	if err != nil {
		return nil, err
	}
	return &Provider{
		hasher:  hasher,
		byEmail: make(map[string]*account),
		byID:    make(map[string]*account),
	}, nil
}

func normalize(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func (p *Provider) CreateAccount(ctx context.Context, email, pass string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	hash, err := p.hasher.Hash(pass)
	if err != nil {
		return "", fmt.Errorf("%w: %v", idp.ErrRejected, err)
	}

	key := normalize(email)

	p.mu.Lock()
	defer p.mu.Unlock()

	if _, ok := p.byEmail[key]; ok {
		return "", idp.ErrAccountExists
	}
	acc := &account{id: uuid.NewString(), email: key, hash: hash}
	p.byEmail[key] = acc
	p.byID[acc.id] = acc
	return acc.id, nil
}

func (p *Provider) VerifyCredential(ctx context.Context, email, pass string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	p.mu.RLock()
	acc, ok := p.byEmail[normalize(email)]
	var id, hash string
	if ok {
		id, hash = acc.id, acc.hash
	}
	p.mu.RUnlock()

	if !ok {
		p.hasher.Burn(pass)
		return "", idp.ErrInvalidCredentials
	}

	match, err := p.hasher.Verify(pass, hash)
	if errors.Is(err, password.ErrPasswordTooLong) || (err == nil && !match) {
		return "", idp.ErrInvalidCredentials
	}
	if err != nil {
		return "", fmt.Errorf("verify credential: %w", err)
	}

	p.rehashIfNeeded(id, pass, hash)
	return id, nil
}

func (p *Provider) UpdateCredential(ctx context.Context, externalID, newPassword string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	hash, err := p.hasher.Hash(newPassword)
	if err != nil {
		return fmt.Errorf("%w: %v", idp.ErrRejected, err)
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	acc, ok := p.byID[externalID]
	if !ok {
		return fmt.Errorf("update credential: unknown account %q", externalID)
	}
	acc.hash = hash
	return nil
}

func (p *Provider) DeleteAccount(ctx context.Context, externalID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if acc, ok := p.byID[externalID]; ok {
		delete(p.byEmail, acc.email)
		delete(p.byID, externalID)
	}
	return nil
}

// Burn runs one hash of pass and throws it away.
func (p *Provider) Burn(pass string) {
	_, _ = p.hasher.Hash(pass)
}

func (p *Provider) rehashIfNeeded(id, pass, current string) {
	needs, err := p.hasher.NeedsRehash(current)
	if err != nil || !needs {
		return
	}
	upgraded, err := p.hasher.Hash(pass)
	if err != nil {
		return
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if acc, ok := p.byID[id]; ok && acc.hash == current {
		acc.hash = upgraded
	}
}
