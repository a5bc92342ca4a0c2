package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// uniqueViolation is the SQLSTATE the users email index raises on duplicates.
const uniqueViolation = "23505"

// PGStore persists users and sessions in the auth schema. Email uniqueness is
// a database constraint, not an in-process check, so concurrent signups for
// the same address serialize at the index.
type PGStore struct {
	pool *pgxpool.Pool
}

func NewPGStore(pool *pgxpool.Pool) *PGStore {
	return &PGStore{pool: pool}
}

// Migrate creates the auth schema and its tables if missing.
func (p *PGStore) Migrate(ctx context.Context) error {
	stmts := []string{
		`CREATE SCHEMA IF NOT EXISTS auth`,
		`CREATE TABLE IF NOT EXISTS auth.users (
			id uuid PRIMARY KEY,
			email text NOT NULL,
			password_hash text NOT NULL,
			password_salt text NOT NULL,
			hash_iterations int NOT NULL,
			metadata jsonb NOT NULL DEFAULT '{}',
			created_at timestamptz NOT NULL DEFAULT now()
		)`,
		`CREATE UNIQUE INDEX IF NOT EXISTS users_email_key ON auth.users (lower(email))`,
		`CREATE TABLE IF NOT EXISTS auth.sessions (
			access_token text PRIMARY KEY,
			refresh_token text NOT NULL UNIQUE,
			user_id uuid NOT NULL REFERENCES auth.users(id) ON DELETE CASCADE,
			expires_at timestamptz NOT NULL
		)`,
	}
	for _, stmt := range stmts {
		if _, err := p.pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("auth migrate: %w", err)
		}
	}
	return nil
}

func (p *PGStore) CreateUser(ctx context.Context, u *User) error {
	_, err := p.pool.Exec(ctx, `
		INSERT INTO auth.users (id, email, password_hash, password_salt, hash_iterations, metadata, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		u.ID, u.Email, u.PasswordHash, u.PasswordSalt, u.HashIterations, u.Metadata, u.CreatedAt)
	if isUniqueViolation(err) {
		return ErrEmailTaken
	}
	return err
}

func (p *PGStore) UserByEmail(ctx context.Context, email string) (*User, error) {
	return p.scanUser(p.pool.QueryRow(ctx, `
		SELECT id, email, password_hash, password_salt, hash_iterations, metadata, created_at
		FROM auth.users WHERE lower(email) = lower($1)`, strings.TrimSpace(email)))
}

func (p *PGStore) UserByID(ctx context.Context, id string) (*User, error) {
	return p.scanUser(p.pool.QueryRow(ctx, `
		SELECT id, email, password_hash, password_salt, hash_iterations, metadata, created_at
		FROM auth.users WHERE id = $1`, id))
}

func (p *PGStore) UpdateUser(ctx context.Context, u *User) error {
	tag, err := p.pool.Exec(ctx, `
		UPDATE auth.users
		SET email = $2, password_hash = $3, password_salt = $4, hash_iterations = $5, metadata = $6
		WHERE id = $1`,
		u.ID, u.Email, u.PasswordHash, u.PasswordSalt, u.HashIterations, u.Metadata)
	if isUniqueViolation(err) {
		return ErrEmailTaken
	}
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrUserNotFound
	}
	return nil
}

func (p *PGStore) CreateSession(ctx context.Context, s *Session) error {
	_, err := p.pool.Exec(ctx, `
		INSERT INTO auth.sessions (access_token, refresh_token, user_id, expires_at)
		VALUES ($1, $2, $3, $4)`,
		s.AccessToken, s.RefreshToken, s.UserID, s.ExpiresAt)
	return err
}

func (p *PGStore) SessionByAccessToken(ctx context.Context, token string) (*Session, error) {
	s, err := p.scanSession(p.pool.QueryRow(ctx, `
		SELECT access_token, refresh_token, user_id, expires_at
		FROM auth.sessions WHERE access_token = $1`, token))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrSessionNotFound
	}
	return s, err
}

func (p *PGStore) SessionByRefreshToken(ctx context.Context, token string) (*Session, error) {
	s, err := p.scanSession(p.pool.QueryRow(ctx, `
		SELECT access_token, refresh_token, user_id, expires_at
		FROM auth.sessions WHERE refresh_token = $1`, token))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrInvalidRefreshToken
	}
	return s, err
}

// RotateSession deletes the old session and inserts the new one in a single
// transaction. The conditional DELETE is the serialization point: when two
// refreshes race, the second DELETE matches zero rows and the rotation aborts.
func (p *PGStore) RotateSession(ctx context.Context, refreshToken string, next *Session) error {
	tx, err := p.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	tag, err := tx.Exec(ctx, `DELETE FROM auth.sessions WHERE refresh_token = $1`, refreshToken)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrInvalidRefreshToken
	}

	if _, err := tx.Exec(ctx, `
		INSERT INTO auth.sessions (access_token, refresh_token, user_id, expires_at)
		VALUES ($1, $2, $3, $4)`,
		next.AccessToken, next.RefreshToken, next.UserID, next.ExpiresAt); err != nil {
		return err
	}

	return tx.Commit(ctx)
}

func (p *PGStore) DeleteSessionByAccessToken(ctx context.Context, token string) error {
	_, err := p.pool.Exec(ctx, `DELETE FROM auth.sessions WHERE access_token = $1`, token)
	return err
}

func (p *PGStore) scanUser(row pgx.Row) (*User, error) {
	var u User
	err := row.Scan(&u.ID, &u.Email, &u.PasswordHash, &u.PasswordSalt, &u.HashIterations, &u.Metadata, &u.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan user: %w", err)
	}
	return &u, nil
}

func (p *PGStore) scanSession(row pgx.Row) (*Session, error) {
	var s Session
	if err := row.Scan(&s.AccessToken, &s.RefreshToken, &s.UserID, &s.ExpiresAt); err != nil {
		return nil, err
	}
	return &s, nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolation
}
