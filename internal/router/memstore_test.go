package router

import (
	"context"
	"strings"
	"sync"
	"time"

	"go-auth-service/internal/model"
)

type memUsers struct {
	mu    sync.Mutex
	users map[string]model.User
}

func (s *memUsers) find(match func(model.User) bool) (model.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range s.users {
		if match(u) {
			return u, nil
		}
	}
	return model.User{}, model.ErrUserNotFound
}

func (s *memUsers) FindByID(_ context.Context, id string) (model.User, error) {
	return s.find(func(u model.User) bool { return u.ID == id })
}

func (s *memUsers) FindByUsername(_ context.Context, username string) (model.User, error) {
	return s.find(func(u model.User) bool { return strings.EqualFold(u.Username, username) })
}

func (s *memUsers) FindByUsernameOrEmail(_ context.Context, identifier string) (model.User, error) {
	return s.find(func(u model.User) bool {
		return strings.EqualFold(u.Username, identifier) || strings.EqualFold(u.Email, identifier)
	})
}

func (s *memUsers) FindConflicts(_ context.Context, username string, email string) (bool, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var usernameTaken, emailTaken bool
	for _, u := range s.users {
		usernameTaken = usernameTaken || strings.EqualFold(u.Username, username)
		emailTaken = emailTaken || strings.EqualFold(u.Email, email)
	}
	return usernameTaken, emailTaken, nil
}

func (s *memUsers) Create(_ context.Context, u model.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.users[u.ID] = u
	return nil
}

func (s *memUsers) update(id string, fn func(*model.User)) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return model.ErrUserNotFound
	}
	fn(&u)
	s.users[id] = u
	return nil
}

func (s *memUsers) UpdateLastSeen(_ context.Context, id string, at time.Time) error {
	return s.update(id, func(u *model.User) { u.LastSeen = &at })
}

func (s *memUsers) ClearBan(_ context.Context, id string) error {
	return s.update(id, func(u *model.User) {
		u.IsBanned = false
		u.BanReason = nil
		u.BanExpiresAt = nil
	})
}

func (s *memUsers) SetBan(_ context.Context, id string, reason string, expiresAt *time.Time) error {
	return s.update(id, func(u *model.User) {
		u.IsBanned = true
		u.BanReason = &reason
		u.BanExpiresAt = expiresAt
	})
}

type memTokens struct {
	mu      sync.Mutex
	records map[string]model.RefreshTokenRecord
}

func (s *memTokens) Create(_ context.Context, record model.RefreshTokenRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records[record.TokenID] = record
	return nil
}

func (s *memTokens) FindByID(_ context.Context, tokenID string) (model.RefreshTokenRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	record, ok := s.records[tokenID]
	if !ok {
		return model.RefreshTokenRecord{}, model.ErrTokenNotFound
	}
	return record, nil
}

func (s *memTokens) DeleteByID(_ context.Context, tokenID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.records, tokenID)
	return nil
}

func (s *memTokens) DeleteAllForUser(_ context.Context, userID string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int64
	for id, record := range s.records {
		if record.UserID == userID {
			delete(s.records, id)
			n++
		}
	}
	return n, nil
}

func (s *memTokens) CleanExpired(_ context.Context) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int64
	for id, record := range s.records {
		if record.ExpiresAt.Before(time.Now()) {
			delete(s.records, id)
			n++
		}
	}
	return n, nil
}

type memAudit struct {
	mu      sync.Mutex
	entries []model.AuditEntry
}

func (s *memAudit) Log(_ context.Context, entry model.AuditEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = append(s.entries, entry)
	return nil
}

func (s *memAudit) Query(_ context.Context, query model.AuditQuery) ([]model.AuditEntry, model.Meta, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []model.AuditEntry
	for _, entry := range s.entries {
		if query.Action == "" || entry.Action == query.Action {
			out = append(out, entry)
		}
	}
	return out, model.Meta{Page: 1, Limit: 50, Total: len(out), TotalPages: 1}, nil
}

type stubPinger struct {
	err error
}

func (p stubPinger) Ping(context.Context) error {
	return p.err
}
