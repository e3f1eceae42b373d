package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"

	"github.com/starfall-project/authcore/internal/server/fop"
	"github.com/starfall-project/authcore/internal/server/migrations"
)

// PostgresStore persists accounts in Postgres. Uniqueness is enforced by
// functional indexes on lower(username) and lower(email); the capacity cap is
// checked inside the insert transaction.
type PostgresStore struct {
	db  *sql.DB
	max int
}

// OpenPostgresStore connects via the pgx stdlib driver and applies the
// embedded migrations.
func OpenPostgresStore(ctx context.Context, dsn string, max int) (*PostgresStore, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("db open: %w", err)
	}

	goose.SetBaseFS(migrations.Migrations)
	if err := goose.UpContext(ctx, db, "."); err != nil {
		db.Close()
		return nil, fmt.Errorf("db migrations: %w", err)
	}

	return &PostgresStore{db: db, max: max}, nil
}

// NewPostgresStore wraps an existing connection without running migrations.
func NewPostgresStore(db *sql.DB, max int) *PostgresStore {
	return &PostgresStore{db: db, max: max}
}

const userColumns = `uid, username, email, password_hash, is_active, is_verified, created_at`

func scanUser(row *sql.Row) (UserRecord, error) {
	var rec UserRecord
	err := row.Scan(&rec.UID, &rec.Username, &rec.Email, &rec.PasswordHash,
		&rec.IsActive, &rec.IsVerified, &rec.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return UserRecord{}, fop.ErrUserNotFound
		}
		return UserRecord{}, fmt.Errorf("db error: %w", err)
	}
	return rec, nil
}

func (s *PostgresStore) Create(ctx context.Context, rec UserRecord) (UserRecord, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return UserRecord{}, fmt.Errorf("db error: %w", err)
	}
	defer tx.Rollback()

	var n int
	if err := tx.QueryRowContext(ctx, `SELECT count(*) FROM users`).Scan(&n); err != nil {
		return UserRecord{}, fmt.Errorf("db error: %w", err)
	}
	if n >= s.max {
		return UserRecord{}, fop.ErrUserTooBig
	}

	query := `INSERT INTO users (username, email, password_hash, is_active, is_verified)
	          VALUES ($1, $2, $3, $4, $5)
	          RETURNING uid, created_at`

	err = tx.QueryRowContext(ctx, query,
		rec.Username, rec.Email, rec.PasswordHash, rec.IsActive, rec.IsVerified).
		Scan(&rec.UID, &rec.CreatedAt)
	if err != nil {
		return UserRecord{}, uniqueViolation(err)
	}

	if err := tx.Commit(); err != nil {
		return UserRecord{}, fmt.Errorf("db error: %w", err)
	}
	return rec, nil
}

// uniqueViolation maps duplicate-key failures onto the validation errors the
// callers expect; anything else stays a wrapped db error.
func uniqueViolation(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		switch pgErr.ConstraintName {
		case "users_username_key":
			return fop.ErrUserNameNotValid
		case "users_email_key":
			return fop.ErrEmailNotValid
		}
	}
	return fmt.Errorf("db error: %w", err)
}

func (s *PostgresStore) FindByUID(ctx context.Context, uid uint32) (UserRecord, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE uid = $1`
	return scanUser(s.db.QueryRowContext(ctx, query, uid))
}

func (s *PostgresStore) FindByUsername(ctx context.Context, username string) (UserRecord, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE lower(username) = lower($1)`
	return scanUser(s.db.QueryRowContext(ctx, query, username))
}

func (s *PostgresStore) FindByEmail(ctx context.Context, email string) (UserRecord, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE lower(email) = lower($1)`
	return scanUser(s.db.QueryRowContext(ctx, query, email))
}

func (s *PostgresStore) UpdatePassword(ctx context.Context, uid uint32, passwordHash string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE users SET password_hash = $1 WHERE uid = $2`, passwordHash, uid)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	if affected == 0 {
		return fop.ErrUserNotFound
	}
	return nil
}

func (s *PostgresStore) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT count(*) FROM users`).Scan(&n); err != nil {
		return 0, fmt.Errorf("db error: %w", err)
	}
	return n, nil
}

func (s *PostgresStore) Close(context.Context) error {
	return s.db.Close()
}

var _ Store = (*PostgresStore)(nil)
