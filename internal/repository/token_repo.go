package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"go-auth-service/internal/model"
)

type TokenRepository struct {
	pool    *pgxpool.Pool
	timeout time.Duration
}

func NewTokenRepository(pool *pgxpool.Pool, timeout time.Duration) *TokenRepository {
	return &TokenRepository{pool: pool, timeout: timeout}
}

func (r *TokenRepository) Create(ctx context.Context, record model.RefreshTokenRecord) error {
	ctx, cancel := withTimeout(ctx, r.timeout)
	defer cancel()

	createdAt := record.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}

	_, err := r.pool.Exec(ctx,
		`INSERT INTO refresh_tokens (token_id, token, user_id, expires_at, created_at)
		 VALUES ($1, $2, $3, $4, $5)`,
		record.TokenID, record.Token, record.UserID, record.ExpiresAt, createdAt)
	if err != nil {
		return fmt.Errorf("store refresh token: %w", err)
	}
	return nil
}

// FindByID returns the record even when it has expired; callers decide.
func (r *TokenRepository) FindByID(ctx context.Context, tokenID string) (model.RefreshTokenRecord, error) {
	ctx, cancel := withTimeout(ctx, r.timeout)
	defer cancel()

	var rec model.RefreshTokenRecord
	err := r.pool.QueryRow(ctx,
		`SELECT token_id, token, user_id::text, expires_at, created_at
		 FROM refresh_tokens WHERE token_id = $1`, tokenID).
		Scan(&rec.TokenID, &rec.Token, &rec.UserID, &rec.ExpiresAt, &rec.CreatedAt)

	if errors.Is(err, pgx.ErrNoRows) {
		return model.RefreshTokenRecord{}, model.ErrTokenNotFound
	}
	if err != nil {
		return model.RefreshTokenRecord{}, fmt.Errorf("find refresh token: %w", err)
	}
	return rec, nil
}

func (r *TokenRepository) DeleteByID(ctx context.Context, tokenID string) error {
	ctx, cancel := withTimeout(ctx, r.timeout)
	defer cancel()

	if _, err := r.pool.Exec(ctx, `DELETE FROM refresh_tokens WHERE token_id = $1`, tokenID); err != nil {
		return fmt.Errorf("delete refresh token: %w", err)
	}
	return nil
}

func (r *TokenRepository) DeleteAllForUser(ctx context.Context, userID string) (int64, error) {
	if !validID(userID) {
		return 0, nil
	}

	ctx, cancel := withTimeout(ctx, r.timeout)
	defer cancel()

	tag, err := r.pool.Exec(ctx, `DELETE FROM refresh_tokens WHERE user_id = $1`, userID)
	if err != nil {
		return 0, fmt.Errorf("delete refresh tokens for user: %w", err)
	}
	return tag.RowsAffected(), nil
}

func (r *TokenRepository) CleanExpired(ctx context.Context) (int64, error) {
	ctx, cancel := withTimeout(ctx, r.timeout)
	defer cancel()

	tag, err := r.pool.Exec(ctx, `DELETE FROM refresh_tokens WHERE expires_at <= now()`)
	if err != nil {
		return 0, fmt.Errorf("clean expired tokens: %w", err)
	}
	return tag.RowsAffected(), nil
}
