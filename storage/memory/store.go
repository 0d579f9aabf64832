package memory

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/MrEthical07/shopAuth/store"
)

// Store implements store.Store in memory.
type Store struct {
	mu       sync.RWMutex
	tokens   map[string]store.Token
	sessions map[string]store.Session
	audit    []store.AuditEvent
	profiles map[string]store.Profile

	// FailAudit makes AppendAudit fail; tests use it to prove audit
	// failures never reach callers.
	FailAudit error
}

var _ store.Store = (*Store)(nil)

// New returns an empty Store.
func New() *Store {
	return &Store{
		tokens:   make(map[string]store.Token),
		sessions: make(map[string]store.Session),
		profiles: make(map[string]store.Profile),
	}
}

/*
====================================
TOKENS
====================================
*/

func (s *Store) CreateToken(_ context.Context, t store.Token) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.tokens[t.ID]; ok {
		return store.ErrConflict
	}
	s.tokens[t.ID] = cloneToken(t)
	return nil
}

func (s *Store) GetToken(_ context.Context, id string) (*store.Token, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	t, ok := s.tokens[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	out := cloneToken(t)
	return &out, nil
}

func (s *Store) MarkUsed(_ context.Context, id string, now time.Time) (*store.Token, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.tokens[id]
	if !ok || t.UsedAt != nil || !now.Before(t.ExpiresAt) {
		return nil, store.ErrNotFound
	}
	used := now
	t.UsedAt = &used
	s.tokens[id] = t

	out := cloneToken(t)
	return &out, nil
}

func (s *Store) MarkUsedExclusive(_ context.Context, id string, now time.Time) (*store.Token, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	target, ok := s.tokens[id]
	if !ok || target.UsedAt != nil || !now.Before(target.ExpiresAt) {
		return nil, store.ErrNotFound
	}
	for sid, t := range s.tokens {
		if t.OwnerID != target.OwnerID || t.Purpose != target.Purpose || t.UsedAt != nil {
			continue
		}
		used := now
		t.UsedAt = &used
		s.tokens[sid] = t
	}

	out := cloneToken(s.tokens[id])
	return &out, nil
}

func (s *Store) DeleteExpiredTokens(_ context.Context, before time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var n int64
	for id, t := range s.tokens {
		if t.ExpiresAt.Before(before) {
			delete(s.tokens, id)
			n++
		}
	}
	return n, nil
}

/*
====================================
SESSIONS
====================================
*/

func (s *Store) CreateSession(_ context.Context, sess store.Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.sessions[sess.ID]; ok {
		return store.ErrConflict
	}
	s.sessions[sess.ID] = cloneSession(sess)
	return nil
}

func (s *Store) GetSession(_ context.Context, id string) (*store.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sess, ok := s.sessions[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	out := cloneSession(sess)
	return &out, nil
}

func (s *Store) TouchSession(_ context.Context, id string, now time.Time) (*store.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[id]
	if !ok || !sess.Active(now) {
		return nil, store.ErrNotFound
	}
	sess.LastUsedAt = now
	s.sessions[id] = sess

	out := cloneSession(sess)
	return &out, nil
}

func (s *Store) RotateRefresh(_ context.Context, id string, expected, next [32]byte, now time.Time) (*store.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[id]
	if !ok || !sess.Active(now) || sess.RefreshHash != expected {
		return nil, store.ErrNotFound
	}
	sess.RefreshHash = next
	sess.LastUsedAt = now
	s.sessions[id] = sess

	out := cloneSession(sess)
	return &out, nil
}

func (s *Store) RevokeSession(_ context.Context, id string, now time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[id]
	if !ok {
		return store.ErrNotFound
	}
	if sess.RevokedAt == nil {
		revoked := now
		sess.RevokedAt = &revoked
		s.sessions[id] = sess
	}
	return nil
}

func (s *Store) RevokeAllSessions(_ context.Context, ownerID string, now time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var n int64
	for id, sess := range s.sessions {
		if sess.OwnerID != ownerID || sess.RevokedAt != nil {
			continue
		}
		revoked := now
		sess.RevokedAt = &revoked
		s.sessions[id] = sess
		n++
	}
	return n, nil
}

func (s *Store) ListActiveSessions(_ context.Context, ownerID string, now time.Time) ([]store.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]store.Session, 0)
	for _, sess := range s.sessions {
		if sess.OwnerID == ownerID && sess.Active(now) {
			out = append(out, cloneSession(sess))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}

func (s *Store) DeleteExpiredSessions(_ context.Context, now time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var n int64
	for id, sess := range s.sessions {
		if !now.Before(sess.ExpiresAt) {
			delete(s.sessions, id)
			n++
		}
	}
	return n, nil
}

/*
====================================
AUDIT
====================================
*/

func (s *Store) AppendAudit(_ context.Context, e store.AuditEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.FailAudit != nil {
		return s.FailAudit
	}
	s.audit = append(s.audit, cloneEvent(e))
	return nil
}

func (s *Store) ListAudit(_ context.Context, q store.AuditQuery) ([]store.AuditEvent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	matched := make([]store.AuditEvent, 0)
	for i := len(s.audit) - 1; i >= 0; i-- {
		e := s.audit[i]
		if q.OwnerID != "" && e.OwnerID != q.OwnerID {
			continue
		}
		if q.ResourceID != "" && e.ResourceID != q.ResourceID {
			continue
		}
		if q.Type != "" && e.Type != q.Type {
			continue
		}
		matched = append(matched, e)
	}
	// async appends may land out of timestamp order
	sort.SliceStable(matched, func(i, j int) bool {
		return matched[i].CreatedAt.After(matched[j].CreatedAt)
	})

	if q.Offset >= len(matched) {
		return []store.AuditEvent{}, nil
	}
	matched = matched[q.Offset:]
	if q.Limit > 0 && q.Limit < len(matched) {
		matched = matched[:q.Limit]
	}

	out := make([]store.AuditEvent, len(matched))
	for i := range matched {
		out[i] = cloneEvent(matched[i])
	}
	return out, nil
}

func (s *Store) DistinctIPs(_ context.Context, eventType, subject string, since time.Time) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ips := make(map[string]struct{})
	for _, e := range s.audit {
		if e.Type == eventType && e.Subject == subject && e.IP != "" && !e.CreatedAt.Before(since) {
			ips[e.IP] = struct{}{}
		}
	}
	return len(ips), nil
}

func (s *Store) SubjectsOverIPThreshold(_ context.Context, eventType string, since time.Time, threshold int) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	bySubject := make(map[string]map[string]struct{})
	for _, e := range s.audit {
		if e.Type != eventType || e.Subject == "" || e.IP == "" || e.CreatedAt.Before(since) {
			continue
		}
		ips, ok := bySubject[e.Subject]
		if !ok {
			ips = make(map[string]struct{})
			bySubject[e.Subject] = ips
		}
		ips[e.IP] = struct{}{}
	}

	out := make([]string, 0)
	for subject, ips := range bySubject {
		if len(ips) > threshold {
			out = append(out, subject)
		}
	}
	sort.Strings(out)
	return out, nil
}

func (s *Store) HasEventSince(_ context.Context, eventType, subject string, since time.Time) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, e := range s.audit {
		if e.Type == eventType && e.Subject == subject && !e.CreatedAt.Before(since) {
			return true, nil
		}
	}
	return false, nil
}

// AuditLen returns the number of stored audit events.
func (s *Store) AuditLen() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.audit)
}

/*
====================================
PROFILES
====================================
*/

func (s *Store) CreateProfile(_ context.Context, p store.Profile) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, existing := range s.profiles {
		if existing.ID == p.ID ||
			strings.EqualFold(existing.Email, p.Email) ||
			strings.EqualFold(existing.Username, p.Username) {
			return store.ErrConflict
		}
	}
	s.profiles[p.ID] = p
	return nil
}

func (s *Store) GetProfileByID(_ context.Context, id string) (*store.Profile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.profiles[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return &p, nil
}

func (s *Store) GetProfileByEmail(_ context.Context, email string) (*store.Profile, error) {
	return s.findProfile(func(p store.Profile) bool { return strings.EqualFold(p.Email, email) })
}

func (s *Store) GetProfileByUsername(_ context.Context, username string) (*store.Profile, error) {
	return s.findProfile(func(p store.Profile) bool { return strings.EqualFold(p.Username, username) })
}

func (s *Store) MarkEmailVerified(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.profiles[id]
	if !ok {
		return store.ErrNotFound
	}
	p.EmailVerified = true
	s.profiles[id] = p
	return nil
}

func (s *Store) findProfile(match func(store.Profile) bool) (*store.Profile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, p := range s.profiles {
		if match(p) {
			out := p
			return &out, nil
		}
	}
	return nil, store.ErrNotFound
}

func cloneToken(t store.Token) store.Token {
	if t.UsedAt != nil {
		used := *t.UsedAt
		t.UsedAt = &used
	}
	return t
}

func cloneSession(s store.Session) store.Session {
	if s.RevokedAt != nil {
		revoked := *s.RevokedAt
		s.RevokedAt = &revoked
	}
	return s
}

func cloneEvent(e store.AuditEvent) store.AuditEvent {
	if e.Metadata != nil {
		md := make(map[string]string, len(e.Metadata))
		for k, v := range e.Metadata {
			md[k] = v
		}
		e.Metadata = md
	}
	return e
}
