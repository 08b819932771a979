// Package postgres implements the user, game and market stores on PostgreSQL.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"stockgame/internal/auth"
	"stockgame/internal/game"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

const (
	maxAttempts     = 8
	firstRetryDelay = 75 * time.Millisecond
	maxRetryDelay   = 1200 * time.Millisecond
)

type Store struct {
	db  *pgxpool.Pool
	log *slog.Logger
}

func New(db *pgxpool.Pool, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{db: db, log: logger}
}

func (s *Store) CreateUser(ctx context.Context, u auth.User) error {
	cmd, err := s.db.Exec(ctx, `
		INSERT INTO stockgame.users (id, email, password_hash, is_admin, created_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (email) DO NOTHING
	`, u.ID, strings.ToLower(u.Email), u.PasswordHash, u.IsAdmin, u.CreatedAt)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return auth.ErrEmailTaken
	}
	return nil
}

func (s *Store) UserByEmail(ctx context.Context, email string) (auth.User, error) {
	return s.scanUser(s.db.QueryRow(ctx, `
		SELECT id::text, email, password_hash, is_admin, created_at
		FROM stockgame.users
		WHERE email = $1
	`, strings.ToLower(email)))
}

func (s *Store) UserByID(ctx context.Context, id string) (auth.User, error) {
	if _, err := uuid.Parse(id); err != nil {
		return auth.User{}, auth.ErrUserNotFound
	}
	return s.scanUser(s.db.QueryRow(ctx, `
		SELECT id::text, email, password_hash, is_admin, created_at
		FROM stockgame.users
		WHERE id = $1
	`, id))
}

func (s *Store) SetAdmin(ctx context.Context, id string, isAdmin bool) error {
	cmd, err := s.db.Exec(ctx, `
		UPDATE stockgame.users SET is_admin = $1 WHERE id = $2
	`, isAdmin, id)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return auth.ErrUserNotFound
	}
	return nil
}

func (s *Store) scanUser(row pgx.Row) (auth.User, error) {
	var u auth.User
	if err := row.Scan(&u.ID, &u.Email, &u.PasswordHash, &u.IsAdmin, &u.CreatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return auth.User{}, auth.ErrUserNotFound
		}
		return auth.User{}, err
	}
	return u, nil
}

// retrySerializable runs fn in a serializable transaction, retrying with
// backoff while Postgres reports serialization failures.
func (s *Store) retrySerializable(ctx context.Context, op string, fn func(tx pgx.Tx) error) error {
	retryDelay := firstRetryDelay
	for attempt := 0; attempt < maxAttempts; attempt++ {
		err := s.inTx(ctx, pgx.TxOptions{IsoLevel: pgx.Serializable}, fn)
		if err == nil {
			return nil
		}
		if !isSerializationError(err) {
			return err
		}
		s.log.Debug("serialization conflict, retrying", "op", op, "attempt", attempt+1)
		if attempt == maxAttempts-1 {
			break
		}
		if err := sleepWithContext(ctx, retryDelay); err != nil {
			return err
		}
		if retryDelay < maxRetryDelay {
			retryDelay *= 2
		}
	}
	s.log.Warn("transaction retries exhausted", "op", op)
	return game.ErrTxConflict
}

func (s *Store) inTx(ctx context.Context, opts pgx.TxOptions, fn func(tx pgx.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, opts)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)
	if err := fn(tx); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

func isSerializationError(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "40001"
}

func sleepWithContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

func parseDecimal(raw, column string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Zero, fmt.Errorf("parse %s %q: %w", column, raw, err)
	}
	return d, nil
}
