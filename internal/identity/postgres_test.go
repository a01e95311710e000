package identity

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	pgxmock "github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/utafrali/EcommerceGo/authgateway/internal/domain"
	apperrors "github.com/utafrali/EcommerceGo/authgateway/pkg/errors"
)

func newTestRepository(t *testing.T) (*PostgresRepository, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(mock.Close)
	return NewPostgresRepository(mock), mock
}

func userColumns() []string {
	return []string{"id", "phone", "email", "role", "password_hash", "is_active", "created_at", "updated_at"}
}

func sampleUser() *domain.User {
	now := time.Now().UTC().Truncate(time.Microsecond)
	return &domain.User{
		ID:           42,
		Phone:        "+923001234567",
		Email:        "ali@example.com",
		Role:         domain.RoleCustomer,
		PasswordHash: "$2a$12$hash",
		Active:       true,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
}

func userRow(u *domain.User) *pgxmock.Rows {
	return pgxmock.NewRows(userColumns()).AddRow(
		u.ID, u.Phone, u.Email, string(u.Role), u.PasswordHash, u.Active, u.CreatedAt, u.UpdatedAt,
	)
}

func TestGetByPhone_Success(t *testing.T) {
	repo, mock := newTestRepository(t)
	u := sampleUser()

	mock.ExpectQuery("SELECT id, phone").
		WithArgs(u.Phone).
		WillReturnRows(userRow(u))

	got, err := repo.GetByPhone(context.Background(), u.Phone)
	require.NoError(t, err)
	assert.Equal(t, u, got)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetByPhone_NotFound(t *testing.T) {
	repo, mock := newTestRepository(t)

	mock.ExpectQuery("SELECT id, phone").
		WithArgs("+10000000000").
		WillReturnError(pgx.ErrNoRows)

	_, err := repo.GetByPhone(context.Background(), "+10000000000")
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetByPhone_DatabaseError(t *testing.T) {
	repo, mock := newTestRepository(t)

	mock.ExpectQuery("SELECT id, phone").
		WithArgs("+1").
		WillReturnError(errors.New("connection reset"))

	_, err := repo.GetByPhone(context.Background(), "+1")
	require.Error(t, err)
	assert.NotErrorIs(t, err, apperrors.ErrNotFound)
	assert.Contains(t, err.Error(), "scan user")
}

func TestGetByID_UnknownRole(t *testing.T) {
	repo, mock := newTestRepository(t)
	u := sampleUser()
	u.Role = "seller"

	mock.ExpectQuery("WHERE id = \\$1").
		WithArgs(u.ID).
		WillReturnRows(userRow(u))

	_, err := repo.GetByID(context.Background(), u.ID)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown role")
}

func TestGetByID_Success(t *testing.T) {
	repo, mock := newTestRepository(t)
	u := sampleUser()
	u.Role = domain.RoleAdmin

	mock.ExpectQuery("WHERE id = \\$1").
		WithArgs(u.ID).
		WillReturnRows(userRow(u))

	got, err := repo.GetByID(context.Background(), u.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.RoleAdmin, got.Role)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdatePassword(t *testing.T) {
	repo, mock := newTestRepository(t)
	now := time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC)
	repo.now = func() time.Time { return now }

	mock.ExpectExec("UPDATE users").
		WithArgs("$2a$12$new", now, int64(42)).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	require.NoError(t, repo.UpdatePassword(context.Background(), 42, "$2a$12$new"))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdatePassword_NotFound(t *testing.T) {
	repo, mock := newTestRepository(t)

	mock.ExpectExec("UPDATE users").
		WithArgs("h", pgxmock.AnyArg(), int64(9)).
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	err := repo.UpdatePassword(context.Background(), 9, "h")
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}
