// Package postgres is the credential store on PostgreSQL, reached through
// the pgx database/sql driver. Schema changes ship as embedded goose
// migrations.
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/afromart/gate"
	"github.com/afromart/gate/internal/dbx"
	"github.com/afromart/gate/storage/postgres/migrations"
	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
)

const (
	uniqueViolation    = "23505"
	usernameConstraint = "gate_users_username_key"
	userColumns        = "id, username, email, password_hash, is_active, is_staff, date_joined, last_login"
)

// Store implements gate.UserStore.
type Store struct {
	db *sql.DB
}

var _ gate.UserStore = (*Store)(nil)

func New(db *sql.DB) *Store {
	return &Store{db: db}
}

// Open connects with the pgx driver and verifies the connection.
func Open(ctx context.Context, dsn string) (*sql.DB, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	db.SetMaxOpenConns(10)
	db.SetConnMaxIdleTime(5 * time.Minute)
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("%w: %v", gate.ErrStoreUnavailable, err)
	}
	return db, nil
}

// gooseUpContext is a seam for testing goose.UpContext.
var gooseUpContext = func(ctx context.Context, db *sql.DB, dir string, opts ...goose.OptionsFunc) error {
	return goose.UpContext(ctx, db, dir, opts...)
}

// Migrate applies the embedded migrations.
func Migrate(ctx context.Context, db *sql.DB) error {
	goose.SetBaseFS(migrations.FS)
	if err := goose.SetDialect("pgx"); err != nil {
		return err
	}
	if err := gooseUpContext(ctx, db, "."); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	return nil
}

// CreateUser inserts one account in its own transaction.
func (s *Store) CreateUser(ctx context.Context, u gate.NewUser) (int64, error) {
	const query = `INSERT INTO gate_users (username, email, password_hash, is_active, is_staff)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id`

	var id int64
	err := dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		return tx.QueryRowContext(ctx, query,
			u.Username, u.Email, u.PasswordHash, u.Active, u.Staff).Scan(&id)
	})
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation && pgErr.ConstraintName == usernameConstraint {
			return 0, gate.ErrUsernameTaken
		}
		return 0, storeErr(err)
	}
	return id, nil
}

func (s *Store) GetUserByID(ctx context.Context, id int64) (gate.User, error) {
	return s.getOne(ctx, `SELECT `+userColumns+` FROM gate_users WHERE id = $1`, id)
}

func (s *Store) GetUserByUsername(ctx context.Context, username string) (gate.User, error) {
	return s.getOne(ctx, `SELECT `+userColumns+` FROM gate_users WHERE username = $1`, username)
}

// FindActiveUserByEmail picks the oldest active account when several share
// the address.
func (s *Store) FindActiveUserByEmail(ctx context.Context, email string) (gate.User, error) {
	return s.getOne(ctx,
		`SELECT `+userColumns+` FROM gate_users WHERE email = $1 AND is_active ORDER BY id LIMIT 1`, email)
}

func (s *Store) UsernameExists(ctx context.Context, username string) (bool, error) {
	return s.exists(ctx, `SELECT EXISTS (SELECT 1 FROM gate_users WHERE username = $1)`, username)
}

func (s *Store) EmailExists(ctx context.Context, email string) (bool, error) {
	return s.exists(ctx, `SELECT EXISTS (SELECT 1 FROM gate_users WHERE email = $1)`, email)
}

// Activate marks the account active in its own transaction.
func (s *Store) Activate(ctx context.Context, id int64) error {
	return s.updateOne(ctx, `UPDATE gate_users SET is_active = TRUE WHERE id = $1`, id)
}

func (s *Store) SetPasswordHash(ctx context.Context, id int64, hash string) error {
	return s.updateOne(ctx, `UPDATE gate_users SET password_hash = $2 WHERE id = $1`, id, hash)
}

func (s *Store) TouchLastLogin(ctx context.Context, id int64, at time.Time) error {
	res, err := s.db.ExecContext(ctx, `UPDATE gate_users SET last_login = $2 WHERE id = $1`, id, at.UTC())
	if err != nil {
		return storeErr(err)
	}
	return requireOneRow(res)
}

func (s *Store) Ping(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return storeErr(err)
	}
	return nil
}

func (s *Store) getOne(ctx context.Context, query string, args ...any) (gate.User, error) {
	var (
		u         gate.User
		lastLogin sql.NullTime
	)
	err := s.db.QueryRowContext(ctx, query, args...).Scan(
		&u.ID, &u.Username, &u.Email, &u.PasswordHash, &u.Active, &u.Staff, &u.DateJoined, &lastLogin)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return gate.User{}, gate.ErrUserNotFound
		}
		return gate.User{}, storeErr(err)
	}
	if lastLogin.Valid {
		t := lastLogin.Time
		u.LastLogin = &t
	}
	return u, nil
}

func (s *Store) exists(ctx context.Context, query string, arg any) (bool, error) {
	var ok bool
	if err := s.db.QueryRowContext(ctx, query, arg).Scan(&ok); err != nil {
		return false, storeErr(err)
	}
	return ok, nil
}

func (s *Store) updateOne(ctx context.Context, query string, args ...any) error {
	return dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		res, err := tx.ExecContext(ctx, query, args...)
		if err != nil {
			return storeErr(err)
		}
		return requireOneRow(res)
	})
}

func requireOneRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return storeErr(err)
	}
	if n == 0 {
		return gate.ErrUserNotFound
	}
	return nil
}

func storeErr(err error) error {
	if errors.Is(err, gate.ErrUserNotFound) || errors.Is(err, gate.ErrStoreUnavailable) {
		return err
	}
	return fmt.Errorf("%w: %v", gate.ErrStoreUnavailable, err)
}
