package users

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/dmitrijs2005/gophauth/internal/common"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var columns = []string{"id", "email", "name", "password_hash", "is_active", "failed_login_attempts", "locked_until", "created_at", "updated_at"}

func newRepoWithMock(t *testing.T) (*PostgresRepository, sqlmock.Sqlmock, *sql.DB) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	if err != nil {
		t.Fatalf("sqlmock.New error: %v", err)
	}
	return NewPostgresRepository(db), mock, db
}

var ts = time.Date(2025, 5, 1, 12, 0, 0, 0, time.UTC)

func TestCreate_Success(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	q := `(?s)^INSERT\s+INTO\s+users\s*\(email,\s*name,\s*password_hash\)\s*VALUES\s*\(\$1,\s*\$2,\s*\$3\)\s*RETURNING\s+id,`

	rows := sqlmock.NewRows(columns).AddRow(int64(42), "alice@example.com", "Alice", "hash", true, 0, nil, ts, ts)
	mock.ExpectQuery(q).
		WithArgs("alice@example.com", "Alice", "hash").
		WillReturnRows(rows)

	got, err := repo.Create(context.Background(), "alice@example.com", "Alice", "hash")
	require.NoError(t, err)
	assert.Equal(t, int64(42), got.ID)
	assert.True(t, got.IsActive)
	assert.Nil(t, got.LockedUntil)
	assert.Equal(t, ts, got.CreatedAt)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCreate_DuplicateEmail(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectQuery(`INSERT\s+INTO\s+users`).
		WithArgs("alice@example.com", "Alice", "hash").
		WillReturnError(&pgconn.PgError{Code: "23505", ConstraintName: "users_email_key"})

	_, err := repo.Create(context.Background(), "alice@example.com", "Alice", "hash")
	assert.ErrorIs(t, err, common.ErrDuplicateEmail)
}

func TestCreate_DBError(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectQuery(`INSERT\s+INTO\s+users`).
		WithArgs("alice@example.com", "Alice", "hash").
		WillReturnError(errors.New("db down"))

	_, err := repo.Create(context.Background(), "alice@example.com", "Alice", "hash")
	if err == nil || !regexp.MustCompile(`db error: .*db down`).MatchString(err.Error()) {
		t.Fatalf("expected wrapped db error, got %v", err)
	}
	assert.NotErrorIs(t, err, common.ErrDuplicateEmail)
}

func TestGetByEmail_Found(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	locked := ts.Add(30 * time.Minute)
	q := `(?s)^SELECT\s+id,.*FROM\s+users\s+WHERE\s+email\s*=\s*\$1\s+AND\s+is_active$`
	rows := sqlmock.NewRows(columns).AddRow(int64(1), "alice@example.com", "Alice", "hash", true, 5, locked, ts, ts)
	mock.ExpectQuery(q).WithArgs("alice@example.com").WillReturnRows(rows)

	got, err := repo.GetByEmail(context.Background(), "alice@example.com")
	require.NoError(t, err)
	assert.Equal(t, 5, got.FailedLoginAttempts)
	require.NotNil(t, got.LockedUntil)
	assert.True(t, got.LockedUntil.Equal(locked))
}

func TestGetByEmail_NotFound(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectQuery(`FROM\s+users\s+WHERE\s+email`).WithArgs("ghost@example.com").WillReturnError(sql.ErrNoRows)

	_, err := repo.GetByEmail(context.Background(), "ghost@example.com")
	assert.ErrorIs(t, err, common.ErrorNotFound)
}

func TestGetByID(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	q := `(?s)^SELECT\s+id,.*FROM\s+users\s+WHERE\s+id\s*=\s*\$1\s+AND\s+is_active$`
	mock.ExpectQuery(q).WithArgs(int64(9)).
		WillReturnRows(sqlmock.NewRows(columns).AddRow(int64(9), "bob@example.com", "Bob", "hash", true, 0, nil, ts, ts))
	mock.ExpectQuery(q).WithArgs(int64(10)).WillReturnError(sql.ErrNoRows)
	mock.ExpectQuery(q).WithArgs(int64(11)).WillReturnError(errors.New("conn reset"))

	got, err := repo.GetByID(context.Background(), 9)
	require.NoError(t, err)
	assert.Equal(t, "bob@example.com", got.Email)

	_, err = repo.GetByID(context.Background(), 10)
	assert.ErrorIs(t, err, common.ErrorNotFound)

	_, err = repo.GetByID(context.Background(), 11)
	require.Error(t, err)
	assert.NotErrorIs(t, err, common.ErrorNotFound)
	assert.Contains(t, err.Error(), "db error")
}

func TestUpdates(t *testing.T) {
	tests := []struct {
		name string
		q    string
		args []driver.Value
		call func(r *PostgresRepository) error
	}{
		{
			name: "update name",
			q:    `UPDATE\s+users\s+SET\s+name\s*=\s*\$2,\s*updated_at\s*=\s*\$3\s+WHERE\s+id\s*=\s*\$1\s+AND\s+is_active`,
			args: []driver.Value{int64(1), "Alicia", ts},
			call: func(r *PostgresRepository) error { return r.UpdateName(context.Background(), 1, "Alicia", ts) },
		},
		{
			name: "update password",
			q:    `UPDATE\s+users\s+SET\s+password_hash\s*=\s*\$2`,
			args: []driver.Value{int64(1), "newhash", ts},
			call: func(r *PostgresRepository) error { return r.UpdatePassword(context.Background(), 1, "newhash", ts) },
		},
		{
			name: "deactivate",
			q:    `UPDATE\s+users\s+SET\s+is_active\s*=\s*FALSE`,
			args: []driver.Value{int64(1), ts},
			call: func(r *PostgresRepository) error { return r.Deactivate(context.Background(), 1, ts) },
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo, mock, db := newRepoWithMock(t)
			defer db.Close()

			mock.ExpectExec(tt.q).WithArgs(tt.args...).WillReturnResult(sqlmock.NewResult(0, 1))
			require.NoError(t, tt.call(repo))

			mock.ExpectExec(tt.q).WithArgs(tt.args...).WillReturnResult(sqlmock.NewResult(0, 0))
			assert.ErrorIs(t, tt.call(repo), common.ErrorNotFound)

			mock.ExpectExec(tt.q).WithArgs(tt.args...).WillReturnError(errors.New("db down"))
			err := tt.call(repo)
			require.Error(t, err)
			assert.Contains(t, err.Error(), "db error: db down")

			require.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestIncrementFailedLogins(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	lockUntil := ts.Add(30 * time.Minute)
	q := `(?s)UPDATE\s+users\s+SET\s+failed_login_attempts\s*=\s*failed_login_attempts\s*\+\s*1,.*CASE\s+WHEN\s+failed_login_attempts\s*\+\s*1\s*>=\s*\$2\s+THEN\s+\$3.*RETURNING\s+failed_login_attempts,\s*locked_until$`

	mock.ExpectQuery(q).WithArgs(int64(1), 5, lockUntil, ts).
		WillReturnRows(sqlmock.NewRows([]string{"failed_login_attempts", "locked_until"}).AddRow(4, nil))
	mock.ExpectQuery(q).WithArgs(int64(1), 5, lockUntil, ts).
		WillReturnRows(sqlmock.NewRows([]string{"failed_login_attempts", "locked_until"}).AddRow(5, lockUntil))

	count, locked, err := repo.IncrementFailedLogins(context.Background(), 1, 5, lockUntil, ts)
	require.NoError(t, err)
	assert.Equal(t, 4, count)
	assert.Nil(t, locked)

	count, locked, err = repo.IncrementFailedLogins(context.Background(), 1, 5, lockUntil, ts)
	require.NoError(t, err)
	assert.Equal(t, 5, count)
	require.NotNil(t, locked)
	assert.True(t, locked.Equal(lockUntil))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestIncrementFailedLogins_Errors(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectQuery(`UPDATE\s+users`).WillReturnError(sql.ErrNoRows)
	mock.ExpectQuery(`UPDATE\s+users`).WillReturnError(errors.New("timeout"))

	_, _, err := repo.IncrementFailedLogins(context.Background(), 1, 5, ts, ts)
	assert.ErrorIs(t, err, common.ErrorNotFound)

	_, _, err = repo.IncrementFailedLogins(context.Background(), 1, 5, ts, ts)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "db error: timeout")
}

func TestResetFailedLogins(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	q := `UPDATE\s+users\s+SET\s+failed_login_attempts\s*=\s*0,\s*locked_until\s*=\s*NULL`
	mock.ExpectExec(q).WithArgs(int64(3), ts).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(q).WithArgs(int64(3), ts).WillReturnError(errors.New("db down"))

	require.NoError(t, repo.ResetFailedLogins(context.Background(), 3, ts))
	require.Error(t, repo.ResetFailedLogins(context.Background(), 3, ts))
	require.NoError(t, mock.ExpectationsWereMet())
}
