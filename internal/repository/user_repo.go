package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"go-auth-service/internal/model"
)

const userColumns = `id, username, email, display_name, password_hash, role, avatar,
		is_verified, is_banned, ban_reason, ban_expires_at, last_seen, joined_at, updated_at`

type UserRepository struct {
	pool    *pgxpool.Pool
	timeout time.Duration
}

func NewUserRepository(pool *pgxpool.Pool, timeout time.Duration) *UserRepository {
	return &UserRepository{pool: pool, timeout: timeout}
}

func (r *UserRepository) FindByID(ctx context.Context, id string) (model.User, error) {
	if !validID(id) {
		return model.User{}, model.ErrUserNotFound
	}

	ctx, cancel := withTimeout(ctx, r.timeout)
	defer cancel()

	row := r.pool.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id)
	return scanUser(row, "find user by id")
}

func (r *UserRepository) FindByUsername(ctx context.Context, username string) (model.User, error) {
	ctx, cancel := withTimeout(ctx, r.timeout)
	defer cancel()

	row := r.pool.QueryRow(ctx,
		`SELECT `+userColumns+` FROM users WHERE lower(username) = lower($1)`,
		strings.TrimSpace(username))
	return scanUser(row, "find user by username")
}

// FindByUsernameOrEmail matches identifier against either column,
// case-insensitively.
func (r *UserRepository) FindByUsernameOrEmail(ctx context.Context, identifier string) (model.User, error) {
	ctx, cancel := withTimeout(ctx, r.timeout)
	defer cancel()

	row := r.pool.QueryRow(ctx,
		`SELECT `+userColumns+` FROM users
		 WHERE lower(username) = lower($1) OR lower(email) = lower($1)
		 LIMIT 1`,
		strings.TrimSpace(identifier))
	return scanUser(row, "find user by username or email")
}

// FindConflicts reports which of username and email are already registered.
func (r *UserRepository) FindConflicts(ctx context.Context, username string, email string) (bool, bool, error) {
	ctx, cancel := withTimeout(ctx, r.timeout)
	defer cancel()

	var usernameTaken, emailTaken bool
	err := r.pool.QueryRow(ctx,
		`SELECT
		   EXISTS(SELECT 1 FROM users WHERE lower(username) = lower($1)),
		   EXISTS(SELECT 1 FROM users WHERE lower(email) = lower($2))`,
		strings.TrimSpace(username), strings.TrimSpace(email)).Scan(&usernameTaken, &emailTaken)
	if err != nil {
		return false, false, fmt.Errorf("check user conflicts: %w", err)
	}
	return usernameTaken, emailTaken, nil
}

func (r *UserRepository) Create(ctx context.Context, u model.User) error {
	ctx, cancel := withTimeout(ctx, r.timeout)
	defer cancel()

	_, err := r.pool.Exec(ctx,
		`INSERT INTO users (id, username, email, display_name, password_hash, role, avatar,
		                    is_verified, is_banned, joined_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		u.ID, u.Username, u.Email, u.DisplayName, u.PasswordHash, string(u.Role), u.Avatar,
		u.IsVerified, u.IsBanned, u.JoinedAt, u.UpdatedAt)
	if constraint, ok := uniqueConstraint(err); ok {
		return duplicateUser(constraint)
	}
	if err != nil {
		return fmt.Errorf("create user: %w", err)
	}
	return nil
}

func (r *UserRepository) UpdateLastSeen(ctx context.Context, id string, at time.Time) error {
	if !validID(id) {
		return model.ErrUserNotFound
	}

	ctx, cancel := withTimeout(ctx, r.timeout)
	defer cancel()

	_, err := r.pool.Exec(ctx,
		`UPDATE users SET last_seen = $2, updated_at = $2 WHERE id = $1`, id, at)
	if err != nil {
		return fmt.Errorf("update last seen: %w", err)
	}
	return nil
}

// ClearBan resets every ban field. Safe to run concurrently.
func (r *UserRepository) ClearBan(ctx context.Context, id string) error {
	if !validID(id) {
		return model.ErrUserNotFound
	}

	ctx, cancel := withTimeout(ctx, r.timeout)
	defer cancel()

	_, err := r.pool.Exec(ctx,
		`UPDATE users
		 SET is_banned = FALSE, ban_reason = NULL, ban_expires_at = NULL, updated_at = $2
		 WHERE id = $1`, id, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("clear ban: %w", err)
	}
	return nil
}

func (r *UserRepository) SetBan(ctx context.Context, id string, reason string, expiresAt *time.Time) error {
	if !validID(id) {
		return model.ErrUserNotFound
	}

	ctx, cancel := withTimeout(ctx, r.timeout)
	defer cancel()

	tag, err := r.pool.Exec(ctx,
		`UPDATE users
		 SET is_banned = TRUE, ban_reason = $2, ban_expires_at = $3, updated_at = $4
		 WHERE id = $1`, id, reason, expiresAt, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("set ban: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return model.ErrUserNotFound
	}
	return nil
}

func scanUser(row pgx.Row, op string) (model.User, error) {
	var u model.User
	var role string
	err := row.Scan(&u.ID, &u.Username, &u.Email, &u.DisplayName, &u.PasswordHash, &role, &u.Avatar,
		&u.IsVerified, &u.IsBanned, &u.BanReason, &u.BanExpiresAt, &u.LastSeen, &u.JoinedAt, &u.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return model.User{}, model.ErrUserNotFound
	}
	if err != nil {
		return model.User{}, fmt.Errorf("%s: %w", op, err)
	}
	u.Role = model.Role(role)
	return u, nil
}

// validID keeps malformed ids from reaching a uuid column, where they would
// surface as a query error instead of a miss.
func validID(id string) bool {
	_, err := uuid.Parse(id)
	return err == nil
}

// duplicateUser names the field behind a unique violation on users.
func duplicateUser(constraint string) error {
	if constraint == emailUniqueIndex {
		return model.ErrEmailTaken
	}
	return model.ErrUsernameTaken
}
