package users

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/gophauth/internal/common"
	"github.com/dmitrijs2005/gophauth/internal/dbx"
	"github.com/dmitrijs2005/gophauth/internal/server/models"
	"github.com/jackc/pgx/v5/pgconn"
)

// uniqueViolation is the PostgreSQL SQLSTATE for unique_violation.
const uniqueViolation = "23505"

const userColumns = `id, email, name, password_hash, is_active, failed_login_attempts, locked_until, created_at, updated_at`

type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanUser(row rowScanner) (*models.User, error) {
	user := &models.User{}
	var lockedUntil sql.NullTime
	err := row.Scan(&user.ID, &user.Email, &user.Name, &user.PasswordHash, &user.IsActive,
		&user.FailedLoginAttempts, &lockedUntil, &user.CreatedAt, &user.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if lockedUntil.Valid {
		t := lockedUntil.Time
		user.LockedUntil = &t
	}
	return user, nil
}

func (r *PostgresRepository) Create(ctx context.Context, email, name, passwordHash string) (*models.User, error) {
	query :=
		`INSERT INTO users (email, name, password_hash)
		 VALUES ($1, $2, $3)
		 RETURNING ` + userColumns

	user, err := scanUser(r.db.QueryRowContext(ctx, query, email, name, passwordHash))
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return nil, common.ErrDuplicateEmail
		}
		return nil, fmt.Errorf("db error: %w", err)
	}

	return user, nil
}

func (r *PostgresRepository) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	query :=
		`SELECT ` + userColumns + ` FROM users
		 WHERE email = $1 AND is_active`

	return r.getOne(ctx, query, email)
}

func (r *PostgresRepository) GetByID(ctx context.Context, id int64) (*models.User, error) {
	query :=
		`SELECT ` + userColumns + ` FROM users
		 WHERE id = $1 AND is_active`

	return r.getOne(ctx, query, id)
}

func (r *PostgresRepository) getOne(ctx context.Context, query string, arg any) (*models.User, error) {
	user, err := scanUser(r.db.QueryRowContext(ctx, query, arg))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return user, nil
}

func (r *PostgresRepository) UpdateName(ctx context.Context, id int64, name string, now time.Time) error {
	query :=
		`UPDATE users SET name = $2, updated_at = $3
		 WHERE id = $1 AND is_active`

	return r.execOne(ctx, query, id, name, now)
}

func (r *PostgresRepository) UpdatePassword(ctx context.Context, id int64, passwordHash string, now time.Time) error {
	query :=
		`UPDATE users SET password_hash = $2, updated_at = $3
		 WHERE id = $1 AND is_active`

	return r.execOne(ctx, query, id, passwordHash, now)
}

func (r *PostgresRepository) Deactivate(ctx context.Context, id int64, now time.Time) error {
	query :=
		`UPDATE users SET is_active = FALSE, updated_at = $2
		 WHERE id = $1 AND is_active`

	return r.execOne(ctx, query, id, now)
}

func (r *PostgresRepository) IncrementFailedLogins(ctx context.Context, id int64, threshold int, lockUntil, now time.Time) (int, *time.Time, error) {
	query :=
		`UPDATE users
		 SET failed_login_attempts = failed_login_attempts + 1,
		     locked_until = CASE WHEN failed_login_attempts + 1 >= $2 THEN $3 ELSE locked_until END,
		     updated_at = $4
		 WHERE id = $1 AND is_active
		 RETURNING failed_login_attempts, locked_until`

	var (
		count       int
		lockedUntil sql.NullTime
	)
	err := r.db.QueryRowContext(ctx, query, id, threshold, lockUntil, now).Scan(&count, &lockedUntil)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, nil, common.ErrorNotFound
		}
		return 0, nil, fmt.Errorf("db error: %w", err)
	}

	if !lockedUntil.Valid {
		return count, nil, nil
	}
	t := lockedUntil.Time
	return count, &t, nil
}

func (r *PostgresRepository) ResetFailedLogins(ctx context.Context, id int64, now time.Time) error {
	query :=
		`UPDATE users SET failed_login_attempts = 0, locked_until = NULL, updated_at = $2
		 WHERE id = $1`

	if _, err := r.db.ExecContext(ctx, query, id, now); err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

// execOne runs an update that must touch exactly one active row.
func (r *PostgresRepository) execOne(ctx context.Context, query string, args ...any) error {
	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	if n == 0 {
		return common.ErrorNotFound
	}
	return nil
}
