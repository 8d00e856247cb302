package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/utafrali/storefront/internal/domain"
	"github.com/utafrali/storefront/pkg/database"
	apperrors "github.com/utafrali/storefront/pkg/errors"
)

const (
	userColumns = `id, email, password_hash, role, is_active, created_at, updated_at`

	insertUserQuery = `
		INSERT INTO users (id, email, password_hash, role, is_active, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`

	insertRefreshTokenQuery = `
		INSERT INTO refresh_tokens (id, user_id, token_hash, expires_at, created_at)
		VALUES (gen_random_uuid(), $1, $2, $3, $4)`

	selectRefreshTokenQuery = `
		SELECT id, user_id, token_hash, expires_at, created_at, revoked_at
		FROM refresh_tokens
		WHERE token_hash = $1`
)

// UserRepository implements repository.UserRepository using PostgreSQL.
type UserRepository struct {
	db database.DBTX
}

// NewUserRepository creates a new PostgreSQL-backed user repository.
func NewUserRepository(db database.DBTX) *UserRepository {
	return &UserRepository{db: db}
}

// Create inserts a user. A taken email, compared case-insensitively by the
// unique index, yields AlreadyExists.
func (r *UserRepository) Create(ctx context.Context, u *domain.User) (err error) {
	ctx, end := database.TraceQuery(ctx, "CreateUser", insertUserQuery)
	defer func() { end(err) }()

	_, err = database.Executor(ctx, r.db).Exec(ctx, insertUserQuery,
		u.ID, u.Email, u.PasswordHash, u.Role, u.IsActive, u.CreatedAt, u.UpdatedAt)
	switch {
	case err == nil:
		return nil
	case isUniqueViolation(err):
		return apperrors.AlreadyExists("user", "email", u.Email)
	default:
		return fmt.Errorf("insert user: %w", err)
	}
}

func (r *UserRepository) GetByID(ctx context.Context, id string) (*domain.User, error) {
	return r.scanUser(ctx, "GetUser", `SELECT `+userColumns+` FROM users WHERE id = $1`, id)
}

// GetByEmail matches email case-insensitively.
func (r *UserRepository) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	return r.scanUser(ctx, "GetUserByEmail", `SELECT `+userColumns+` FROM users WHERE LOWER(email) = LOWER($1)`, email)
}

// UpdatePassword replaces the password hash of an existing user. Outstanding
// reset tokens are bound to the old hash and stop validating.
func (r *UserRepository) UpdatePassword(ctx context.Context, id, passwordHash string) (err error) {
	query := `UPDATE users SET password_hash = $1, updated_at = $2 WHERE id = $3`
	ctx, end := database.TraceQuery(ctx, "UpdateUserPassword", query)
	defer func() { end(err) }()

	ct, err := database.Executor(ctx, r.db).Exec(ctx, query, passwordHash, time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("update user password: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return apperrors.NotFound("user", id)
	}
	return nil
}

func (r *UserRepository) scanUser(ctx context.Context, op, query string, args ...any) (_ *domain.User, err error) {
	ctx, end := database.TraceQuery(ctx, op, query)
	defer func() {
		if errors.Is(err, apperrors.ErrNotFound) {
			end(nil)
			return
		}
		end(err)
	}()

	var u domain.User
	err = database.Executor(ctx, r.db).QueryRow(ctx, query, args...).
		Scan(&u.ID, &u.Email, &u.PasswordHash, &u.Role, &u.IsActive, &u.CreatedAt, &u.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperrors.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan user: %w", err)
	}
	return &u, nil
}

// RefreshTokenRepository stores SHA-256 hashes of issued refresh tokens,
// never the tokens themselves.
type RefreshTokenRepository struct {
	db database.DBTX
}

func NewRefreshTokenRepository(db database.DBTX) *RefreshTokenRepository {
	return &RefreshTokenRepository{db: db}
}

func (r *RefreshTokenRepository) Create(ctx context.Context, userID, tokenHash string, expiresAt time.Time) error {
	if _, err := database.Executor(ctx, r.db).Exec(ctx, insertRefreshTokenQuery,
		userID, tokenHash, expiresAt, time.Now().UTC()); err != nil {
		return fmt.Errorf("insert refresh token: %w", err)
	}
	return nil
}

// GetByHash returns the token row including revoked and expired ones; the
// caller decides whether it is still usable.
func (r *RefreshTokenRepository) GetByHash(ctx context.Context, tokenHash string) (*domain.RefreshToken, error) {
	var rt domain.RefreshToken
	err := database.Executor(ctx, r.db).QueryRow(ctx, selectRefreshTokenQuery, tokenHash).
		Scan(&rt.ID, &rt.UserID, &rt.TokenHash, &rt.ExpiresAt, &rt.CreatedAt, &rt.RevokedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperrors.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan refresh token: %w", err)
	}
	return &rt, nil
}

// Revoke marks one active token revoked. It returns ErrNotFound when the
// token is unknown or was already revoked, which lets a rotation detect that
// a concurrent request consumed the token first.
func (r *RefreshTokenRepository) Revoke(ctx context.Context, tokenHash string) error {
	query := `UPDATE refresh_tokens SET revoked_at = $1 WHERE token_hash = $2 AND revoked_at IS NULL`

	ct, err := database.Executor(ctx, r.db).Exec(ctx, query, time.Now().UTC(), tokenHash)
	if err != nil {
		return fmt.Errorf("revoke refresh token: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return apperrors.ErrNotFound
	}
	return nil
}

// RevokeByUserID revokes every active token of a user, e.g. after a password
// reset.
func (r *RefreshTokenRepository) RevokeByUserID(ctx context.Context, userID string) error {
	query := `UPDATE refresh_tokens SET revoked_at = $1 WHERE user_id = $2 AND revoked_at IS NULL`

	if _, err := database.Executor(ctx, r.db).Exec(ctx, query, time.Now().UTC(), userID); err != nil {
		return fmt.Errorf("revoke refresh tokens by user: %w", err)
	}
	return nil
}
