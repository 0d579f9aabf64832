package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/MrEthical07/shopAuth/store"
	"github.com/lib/pq"
)

// Store implements store.Store on PostgreSQL.
type Store struct {
	db *sql.DB
}

var _ store.Store = (*Store)(nil)

// New wraps an open handle.
func New(db *sql.DB) *Store {
	return &Store{db: db}
}

// Ping checks connectivity.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

const uniqueViolation = "23505"

func mapWriteErr(op string, err error) error {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
		return store.ErrConflict
	}
	return fmt.Errorf("failed to %s: %w", op, err)
}

func rowsOrNotFound(res sql.Result, op string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to %s: %w", op, err)
	}
	if n == 0 {
		return store.ErrNotFound
	}
	return nil
}

/*
====================================
TOKENS
====================================
*/

const tokenColumns = `id, owner_id, purpose, secret_hash, created_at, expires_at, used_at`

func scanToken(row interface{ Scan(...any) error }) (*store.Token, error) {
	var (
		t      store.Token
		hash   []byte
		usedAt sql.NullTime
	)
	if err := row.Scan(&t.ID, &t.OwnerID, &t.Purpose, &hash, &t.CreatedAt, &t.ExpiresAt, &usedAt); err != nil {
		return nil, err
	}
	copy(t.SecretHash[:], hash)
	if usedAt.Valid {
		used := usedAt.Time
		t.UsedAt = &used
	}
	return &t, nil
}

func (s *Store) CreateToken(ctx context.Context, t store.Token) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO auth_tokens (`+tokenColumns+`) VALUES ($1, $2, $3, $4, $5, $6, NULL)`,
		t.ID, t.OwnerID, string(t.Purpose), t.SecretHash[:], t.CreatedAt, t.ExpiresAt,
	)
	if err != nil {
		return mapWriteErr("create token", err)
	}
	return nil
}

func (s *Store) GetToken(ctx context.Context, id string) (*store.Token, error) {
	t, err := scanToken(s.db.QueryRowContext(ctx,
		`SELECT `+tokenColumns+` FROM auth_tokens WHERE id = $1`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get token: %w", err)
	}
	return t, nil
}

func (s *Store) MarkUsed(ctx context.Context, id string, now time.Time) (*store.Token, error) {
	t, err := scanToken(s.db.QueryRowContext(ctx,
		`UPDATE auth_tokens SET used_at = $2
		 WHERE id = $1 AND used_at IS NULL AND expires_at > $2
		 RETURNING `+tokenColumns,
		id, now,
	))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to consume token: %w", err)
	}
	return t, nil
}

// MarkUsedExclusive locks every token of the owner and purpose in id order
// before the conditional update, so concurrent sibling redemptions serialize
// and the later one sees its token already used.
func (s *Store) MarkUsedExclusive(ctx context.Context, id string, now time.Time) (*store.Token, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin token consume: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var (
		ownerID string
		purpose string
	)
	err = tx.QueryRowContext(ctx,
		`SELECT owner_id, purpose FROM auth_tokens WHERE id = $1`, id,
	).Scan(&ownerID, &purpose)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read token: %w", err)
	}

	rows, err := tx.QueryContext(ctx,
		`SELECT id FROM auth_tokens WHERE owner_id = $1 AND purpose = $2
		 ORDER BY id FOR UPDATE`,
		ownerID, purpose,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to lock sibling tokens: %w", err)
	}
	for rows.Next() {
	}
	if err := rows.Err(); err != nil {
		_ = rows.Close()
		return nil, fmt.Errorf("failed to lock sibling tokens: %w", err)
	}
	_ = rows.Close()

	t, err := scanToken(tx.QueryRowContext(ctx,
		`UPDATE auth_tokens SET used_at = $2
		 WHERE id = $1 AND used_at IS NULL AND expires_at > $2
		 RETURNING `+tokenColumns,
		id, now,
	))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to consume token: %w", err)
	}

	if _, err := tx.ExecContext(ctx,
		`UPDATE auth_tokens SET used_at = $3
		 WHERE owner_id = $1 AND purpose = $2 AND used_at IS NULL`,
		ownerID, purpose, now,
	); err != nil {
		return nil, fmt.Errorf("failed to invalidate sibling tokens: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit token consume: %w", err)
	}
	return t, nil
}

func (s *Store) DeleteExpiredTokens(ctx context.Context, before time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM auth_tokens WHERE expires_at < $1`, before)
	if err != nil {
		return 0, fmt.Errorf("failed to delete expired tokens: %w", err)
	}
	return res.RowsAffected()
}

/*
====================================
SESSIONS
====================================
*/

const sessionColumns = `id, owner_id, refresh_hash, device_name, ip, user_agent, created_at, last_used_at, expires_at, revoked_at`

func scanSession(row interface{ Scan(...any) error }) (*store.Session, error) {
	var (
		sess      store.Session
		hash      []byte
		revokedAt sql.NullTime
	)
	err := row.Scan(&sess.ID, &sess.OwnerID, &hash, &sess.Device.Name, &sess.Device.IP, &sess.Device.UserAgent,
		&sess.CreatedAt, &sess.LastUsedAt, &sess.ExpiresAt, &revokedAt)
	if err != nil {
		return nil, err
	}
	copy(sess.RefreshHash[:], hash)
	if revokedAt.Valid {
		revoked := revokedAt.Time
		sess.RevokedAt = &revoked
	}
	return &sess, nil
}

func (s *Store) CreateSession(ctx context.Context, sess store.Session) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO auth_sessions (`+sessionColumns+`)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, NULL)`,
		sess.ID, sess.OwnerID, sess.RefreshHash[:], sess.Device.Name, sess.Device.IP, sess.Device.UserAgent,
		sess.CreatedAt, sess.LastUsedAt, sess.ExpiresAt,
	)
	if err != nil {
		return mapWriteErr("create session", err)
	}
	return nil
}

func (s *Store) GetSession(ctx context.Context, id string) (*store.Session, error) {
	sess, err := scanSession(s.db.QueryRowContext(ctx,
		`SELECT `+sessionColumns+` FROM auth_sessions WHERE id = $1`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get session: %w", err)
	}
	return sess, nil
}

func (s *Store) TouchSession(ctx context.Context, id string, now time.Time) (*store.Session, error) {
	sess, err := scanSession(s.db.QueryRowContext(ctx,
		`UPDATE auth_sessions SET last_used_at = $2
		 WHERE id = $1 AND revoked_at IS NULL AND expires_at > $2
		 RETURNING `+sessionColumns,
		id, now,
	))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to touch session: %w", err)
	}
	return sess, nil
}

func (s *Store) RotateRefresh(ctx context.Context, id string, expected, next [32]byte, now time.Time) (*store.Session, error) {
	sess, err := scanSession(s.db.QueryRowContext(ctx,
		`UPDATE auth_sessions SET refresh_hash = $3, last_used_at = $4
		 WHERE id = $1 AND refresh_hash = $2 AND revoked_at IS NULL AND expires_at > $4
		 RETURNING `+sessionColumns,
		id, expected[:], next[:], now,
	))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to rotate refresh token: %w", err)
	}
	return sess, nil
}

func (s *Store) RevokeSession(ctx context.Context, id string, now time.Time) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE auth_sessions SET revoked_at = COALESCE(revoked_at, $2) WHERE id = $1`,
		id, now,
	)
	if err != nil {
		return fmt.Errorf("failed to revoke session: %w", err)
	}
	return rowsOrNotFound(res, "revoke session")
}

func (s *Store) RevokeAllSessions(ctx context.Context, ownerID string, now time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		`UPDATE auth_sessions SET revoked_at = $2 WHERE owner_id = $1 AND revoked_at IS NULL`,
		ownerID, now,
	)
	if err != nil {
		return 0, fmt.Errorf("failed to revoke sessions: %w", err)
	}
	return res.RowsAffected()
}

func (s *Store) ListActiveSessions(ctx context.Context, ownerID string, now time.Time) ([]store.Session, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+sessionColumns+` FROM auth_sessions
		 WHERE owner_id = $1 AND revoked_at IS NULL AND expires_at > $2
		 ORDER BY created_at DESC`,
		ownerID, now,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list sessions: %w", err)
	}
	defer rows.Close()

	out := make([]store.Session, 0)
	for rows.Next() {
		sess, err := scanSession(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan session: %w", err)
		}
		out = append(out, *sess)
	}
	return out, rows.Err()
}

func (s *Store) DeleteExpiredSessions(ctx context.Context, now time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM auth_sessions WHERE expires_at <= $1`, now)
	if err != nil {
		return 0, fmt.Errorf("failed to delete expired sessions: %w", err)
	}
	return res.RowsAffected()
}

/*
====================================
AUDIT
====================================
*/

func (s *Store) AppendAudit(ctx context.Context, e store.AuditEvent) error {
	metadata := e.Metadata
	if metadata == nil {
		metadata = map[string]string{}
	}
	raw, err := json.Marshal(metadata)
	if err != nil {
		return fmt.Errorf("failed to encode audit metadata: %w", err)
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO auth_audit_events
		 (id, event_type, owner_id, resource_id, subject, ip, user_agent, success, reason, metadata, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		e.ID, e.Type, e.OwnerID, e.ResourceID, e.Subject, e.IP, e.UserAgent, e.Success, e.Reason, raw, e.CreatedAt,
	)
	if err != nil {
		return mapWriteErr("append audit event", err)
	}
	return nil
}

func (s *Store) ListAudit(ctx context.Context, q store.AuditQuery) ([]store.AuditEvent, error) {
	var (
		where []string
		args  []any
	)
	add := func(column, value string) {
		if value == "" {
			return
		}
		args = append(args, value)
		where = append(where, column+" = $"+strconv.Itoa(len(args)))
	}
	add("owner_id", q.OwnerID)
	add("resource_id", q.ResourceID)
	add("event_type", q.Type)

	query := `SELECT id, event_type, owner_id, resource_id, subject, ip, user_agent, success, reason, metadata, created_at
		FROM auth_audit_events`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY created_at DESC, id DESC"
	if q.Limit > 0 {
		args = append(args, q.Limit)
		query += " LIMIT $" + strconv.Itoa(len(args))
	}
	if q.Offset > 0 {
		args = append(args, q.Offset)
		query += " OFFSET $" + strconv.Itoa(len(args))
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list audit events: %w", err)
	}
	defer rows.Close()

	out := make([]store.AuditEvent, 0)
	for rows.Next() {
		var (
			e   store.AuditEvent
			raw []byte
		)
		if err := rows.Scan(&e.ID, &e.Type, &e.OwnerID, &e.ResourceID, &e.Subject, &e.IP, &e.UserAgent,
			&e.Success, &e.Reason, &raw, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan audit event: %w", err)
		}
		if len(raw) > 0 {
			if err := json.Unmarshal(raw, &e.Metadata); err != nil {
				return nil, fmt.Errorf("failed to decode audit metadata: %w", err)
			}
			if len(e.Metadata) == 0 {
				e.Metadata = nil
			}
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func (s *Store) DistinctIPs(ctx context.Context, eventType, subject string, since time.Time) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(DISTINCT ip) FROM auth_audit_events
		 WHERE event_type = $1 AND subject = $2 AND ip <> '' AND created_at >= $3`,
		eventType, subject, since,
	).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("failed to count distinct ips: %w", err)
	}
	return n, nil
}

func (s *Store) SubjectsOverIPThreshold(ctx context.Context, eventType string, since time.Time, threshold int) ([]string, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT subject FROM auth_audit_events
		 WHERE event_type = $1 AND created_at >= $2 AND subject <> '' AND ip <> ''
		 GROUP BY subject
		 HAVING COUNT(DISTINCT ip) > $3
		 ORDER BY subject`,
		eventType, since, threshold,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to scan suspicious subjects: %w", err)
	}
	defer rows.Close()

	out := make([]string, 0)
	for rows.Next() {
		var subject string
		if err := rows.Scan(&subject); err != nil {
			return nil, fmt.Errorf("failed to scan subject: %w", err)
		}
		out = append(out, subject)
	}
	return out, rows.Err()
}

func (s *Store) HasEventSince(ctx context.Context, eventType, subject string, since time.Time) (bool, error) {
	var exists bool
	err := s.db.QueryRowContext(ctx,
		`SELECT EXISTS (
			SELECT 1 FROM auth_audit_events
			WHERE event_type = $1 AND subject = $2 AND created_at >= $3
		 )`,
		eventType, subject, since,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check audit history: %w", err)
	}
	return exists, nil
}

/*
====================================
PROFILES
====================================
*/

const profileColumns = `id, external_id, email, username, role, email_verified, seller_profile_id, created_at`

func scanProfile(row interface{ Scan(...any) error }) (*store.Profile, error) {
	var p store.Profile
	err := row.Scan(&p.ID, &p.ExternalID, &p.Email, &p.Username, &p.Role, &p.EmailVerified, &p.SellerProfileID, &p.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (s *Store) CreateProfile(ctx context.Context, p store.Profile) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO auth_profiles (`+profileColumns+`) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		p.ID, p.ExternalID, p.Email, p.Username, p.Role, p.EmailVerified, p.SellerProfileID, p.CreatedAt,
	)
	if err != nil {
		return mapWriteErr("create profile", err)
	}
	return nil
}

func (s *Store) getProfile(ctx context.Context, where string, arg any) (*store.Profile, error) {
	p, err := scanProfile(s.db.QueryRowContext(ctx,
		`SELECT `+profileColumns+` FROM auth_profiles WHERE `+where, arg))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get profile: %w", err)
	}
	return p, nil
}

func (s *Store) GetProfileByID(ctx context.Context, id string) (*store.Profile, error) {
	return s.getProfile(ctx, "id = $1", id)
}

func (s *Store) GetProfileByEmail(ctx context.Context, email string) (*store.Profile, error) {
	return s.getProfile(ctx, "lower(email) = lower($1)", email)
}

func (s *Store) GetProfileByUsername(ctx context.Context, username string) (*store.Profile, error) {
	return s.getProfile(ctx, "lower(username) = lower($1)", username)
}

func (s *Store) MarkEmailVerified(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `UPDATE auth_profiles SET email_verified = TRUE WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to mark email verified: %w", err)
	}
	return rowsOrNotFound(res, "mark email verified")
}
