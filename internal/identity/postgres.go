package identity

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/utafrali/EcommerceGo/authgateway/internal/domain"
	"github.com/utafrali/EcommerceGo/authgateway/pkg/database"
	apperrors "github.com/utafrali/EcommerceGo/authgateway/pkg/errors"
)

// DBTX is the subset of *pgxpool.Pool the repository uses.
type DBTX interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

const selectUser = `
		SELECT id, phone, COALESCE(email, ''), role, password_hash, is_active, created_at, updated_at
		FROM users`

// PostgresRepository implements Repository on PostgreSQL.
type PostgresRepository struct {
	pool DBTX
	now  func() time.Time
}

// NewPostgresRepository creates a PostgreSQL-backed identity source.
func NewPostgresRepository(pool DBTX) *PostgresRepository {
	return &PostgresRepository{pool: pool, now: time.Now}
}

// GetByPhone retrieves a user by phone number.
func (r *PostgresRepository) GetByPhone(ctx context.Context, phone string) (u *domain.User, err error) {
	query := selectUser + `
		WHERE phone = $1`

	ctx, end := database.TraceQuery(ctx, "GetUserByPhone", query)
	defer func() { end(ignoreNotFound(err)) }()

	return r.scanUser(ctx, phone, query, phone)
}

// GetByID retrieves a user by id.
func (r *PostgresRepository) GetByID(ctx context.Context, id int64) (u *domain.User, err error) {
	query := selectUser + `
		WHERE id = $1`

	ctx, end := database.TraceQuery(ctx, "GetUserByID", query)
	defer func() { end(ignoreNotFound(err)) }()

	return r.scanUser(ctx, strconv.FormatInt(id, 10), query, id)
}

// UpdatePassword replaces the password hash of user id.
func (r *PostgresRepository) UpdatePassword(ctx context.Context, id int64, passwordHash string) (err error) {
	query := `
		UPDATE users
		SET password_hash = $1, updated_at = $2
		WHERE id = $3`

	ctx, end := database.TraceQuery(ctx, "UpdatePassword", query)
	defer func() { end(ignoreNotFound(err)) }()

	ct, err := r.pool.Exec(ctx, query, passwordHash, r.now().UTC(), id)
	if err != nil {
		return fmt.Errorf("update password: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return apperrors.NotFound("user", strconv.FormatInt(id, 10))
	}
	return nil
}

func (r *PostgresRepository) scanUser(ctx context.Context, key, query string, args ...any) (*domain.User, error) {
	var (
		u    domain.User
		role string
	)
	err := r.pool.QueryRow(ctx, query, args...).Scan(
		&u.ID,
		&u.Phone,
		&u.Email,
		&role,
		&u.PasswordHash,
		&u.Active,
		&u.CreatedAt,
		&u.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NotFound("user", key)
		}
		return nil, fmt.Errorf("scan user: %w", err)
	}

	u.Role, err = domain.ParseRole(role)
	if err != nil {
		return nil, fmt.Errorf("user %d: %w", u.ID, err)
	}
	return &u, nil
}

func ignoreNotFound(err error) error {
	if errors.Is(err, apperrors.ErrNotFound) {
		return nil
	}
	return err
}
