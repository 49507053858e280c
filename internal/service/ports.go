package service

import (
	"context"
	"time"

	"go-auth-service/internal/model"
)

type UserStore interface {
	FindByID(ctx context.Context, id string) (model.User, error)
	FindByUsername(ctx context.Context, username string) (model.User, error)
	FindByUsernameOrEmail(ctx context.Context, identifier string) (model.User, error)
	FindConflicts(ctx context.Context, username string, email string) (usernameTaken bool, emailTaken bool, err error)
	Create(ctx context.Context, u model.User) error
	UpdateLastSeen(ctx context.Context, id string, at time.Time) error
	ClearBan(ctx context.Context, id string) error
	SetBan(ctx context.Context, id string, reason string, expiresAt *time.Time) error
}

type RefreshTokenStore interface {
	Create(ctx context.Context, record model.RefreshTokenRecord) error
	FindByID(ctx context.Context, tokenID string) (model.RefreshTokenRecord, error)
	DeleteByID(ctx context.Context, tokenID string) error
	DeleteAllForUser(ctx context.Context, userID string) (int64, error)
	CleanExpired(ctx context.Context) (int64, error)
}

// SessionStore is best-effort: implementations swallow their own failures.
type SessionStore interface {
	Write(ctx context.Context, userID string, entry model.SessionEntry, ttl time.Duration)
	Read(ctx context.Context, userID string) (model.SessionEntry, bool)
	Delete(ctx context.Context, userID string)
}

type AuditStore interface {
	Log(ctx context.Context, entry model.AuditEntry) error
	Query(ctx context.Context, query model.AuditQuery) ([]model.AuditEntry, model.Meta, error)
}

// Observer receives auth outcomes for metrics.
type Observer interface {
	LoginAttempt(outcome string)
	Registration(outcome string)
	RefreshAttempt(outcome string)
	TokenRejected(kind string, reason string)
	TokensRevoked(n int64)
	TokensPurged(n int64)
}

type noopObserver struct{}

func (noopObserver) LoginAttempt(string)          {}
func (noopObserver) Registration(string)          {}
func (noopObserver) RefreshAttempt(string)        {}
func (noopObserver) TokenRejected(string, string) {}
func (noopObserver) TokensRevoked(int64)          {}
func (noopObserver) TokensPurged(int64)           {}
