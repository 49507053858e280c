package service

import (
	"context"
	"strings"
	"sync"
	"time"

	"go-auth-service/internal/model"
)

type memUserStore struct {
	mu         sync.Mutex
	users      map[string]model.User
	err        error
	createErr  error
	clearCalls int
}

func newMemUserStore() *memUserStore {
	return &memUserStore{users: map[string]model.User{}}
}

func (s *memUserStore) put(u model.User) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.users[u.ID] = u
}

func (s *memUserStore) get(id string) model.User {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.users[id]
}

func (s *memUserStore) FindByID(_ context.Context, id string) (model.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return model.User{}, s.err
	}
	u, ok := s.users[id]
	if !ok {
		return model.User{}, model.ErrUserNotFound
	}
	return u, nil
}

func (s *memUserStore) FindByUsername(_ context.Context, username string) (model.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return model.User{}, s.err
	}
	for _, u := range s.users {
		if strings.EqualFold(u.Username, username) {
			return u, nil
		}
	}
	return model.User{}, model.ErrUserNotFound
}

func (s *memUserStore) FindByUsernameOrEmail(_ context.Context, identifier string) (model.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return model.User{}, s.err
	}
	for _, u := range s.users {
		if strings.EqualFold(u.Username, identifier) || strings.EqualFold(u.Email, identifier) {
			return u, nil
		}
	}
	return model.User{}, model.ErrUserNotFound
}

func (s *memUserStore) FindConflicts(_ context.Context, username string, email string) (bool, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return false, false, s.err
	}
	var usernameTaken, emailTaken bool
	for _, u := range s.users {
		usernameTaken = usernameTaken || strings.EqualFold(u.Username, username)
		emailTaken = emailTaken || strings.EqualFold(u.Email, email)
	}
	return usernameTaken, emailTaken, nil
}

func (s *memUserStore) Create(_ context.Context, u model.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.createErr != nil {
		return s.createErr
	}
	for _, existing := range s.users {
		if strings.EqualFold(existing.Username, u.Username) {
			return model.ErrUsernameTaken
		}
		if strings.EqualFold(existing.Email, u.Email) {
			return model.ErrEmailTaken
		}
	}
	s.users[u.ID] = u
	return nil
}

func (s *memUserStore) UpdateLastSeen(_ context.Context, id string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return model.ErrUserNotFound
	}
	u.LastSeen = &at
	s.users[id] = u
	return nil
}

func (s *memUserStore) ClearBan(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.clearCalls++
	u, ok := s.users[id]
	if !ok {
		return nil
	}
	u.IsBanned = false
	u.BanReason = nil
	u.BanExpiresAt = nil
	s.users[id] = u
	return nil
}

func (s *memUserStore) SetBan(_ context.Context, id string, reason string, expiresAt *time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return model.ErrUserNotFound
	}
	u.IsBanned = true
	u.BanReason = &reason
	u.BanExpiresAt = expiresAt
	s.users[id] = u
	return nil
}

type memTokenStore struct {
	mu      sync.Mutex
	records map[string]model.RefreshTokenRecord
	findErr error
}

func newMemTokenStore() *memTokenStore {
	return &memTokenStore{records: map[string]model.RefreshTokenRecord{}}
}

func (s *memTokenStore) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.records)
}

func (s *memTokenStore) Create(_ context.Context, record model.RefreshTokenRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records[record.TokenID] = record
	return nil
}

func (s *memTokenStore) FindByID(_ context.Context, tokenID string) (model.RefreshTokenRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.findErr != nil {
		return model.RefreshTokenRecord{}, s.findErr
	}
	rec, ok := s.records[tokenID]
	if !ok {
		return model.RefreshTokenRecord{}, model.ErrTokenNotFound
	}
	return rec, nil
}

func (s *memTokenStore) DeleteByID(_ context.Context, tokenID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.records, tokenID)
	return nil
}

func (s *memTokenStore) DeleteAllForUser(_ context.Context, userID string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int64
	for id, rec := range s.records {
		if rec.UserID == userID {
			delete(s.records, id)
			n++
		}
	}
	return n, nil
}

func (s *memTokenStore) CleanExpired(_ context.Context) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int64
	now := time.Now()
	for id, rec := range s.records {
		if !rec.ExpiresAt.After(now) {
			delete(s.records, id)
			n++
		}
	}
	return n, nil
}

type memSessions struct {
	mu      sync.Mutex
	entries map[string]model.SessionEntry
	ttls    map[string]time.Duration
}

func newMemSessions() *memSessions {
	return &memSessions{entries: map[string]model.SessionEntry{}, ttls: map[string]time.Duration{}}
}

func (s *memSessions) Write(_ context.Context, userID string, entry model.SessionEntry, ttl time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[userID] = entry
	s.ttls[userID] = ttl
}

func (s *memSessions) Read(_ context.Context, userID string) (model.SessionEntry, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	entry, ok := s.entries[userID]
	return entry, ok
}

func (s *memSessions) Delete(_ context.Context, userID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.entries, userID)
}

type memAuditStore struct {
	mu      sync.Mutex
	entries []model.AuditEntry
	logged  chan struct{}
}

func newMemAuditStore() *memAuditStore {
	return &memAuditStore{logged: make(chan struct{}, 100)}
}

func (s *memAuditStore) Log(_ context.Context, entry model.AuditEntry) error {
	s.mu.Lock()
	s.entries = append(s.entries, entry)
	s.mu.Unlock()
	s.logged <- struct{}{}
	return nil
}

func (s *memAuditStore) Query(_ context.Context, query model.AuditQuery) ([]model.AuditEntry, model.Meta, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]model.AuditEntry, 0, len(s.entries))
	for _, e := range s.entries {
		if query.Action != "" && e.Action != query.Action {
			continue
		}
		out = append(out, e)
	}
	return out, model.Meta{Page: 1, Limit: len(out), Total: len(out), TotalPages: 1}, nil
}

func (s *memAuditStore) snapshot() []model.AuditEntry {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]model.AuditEntry(nil), s.entries...)
}
