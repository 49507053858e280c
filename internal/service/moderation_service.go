package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"go-auth-service/internal/event"
	"go-auth-service/internal/model"
	"go-auth-service/pkg/apierror"
)

const maxBanReasonLength = 500

type ModerationService struct {
	users    UserStore
	tokens   RefreshTokenStore
	sessions SessionStore
	bus      event.Bus
	observer Observer
	logger   *slog.Logger
	now      func() time.Time
}

func NewModerationService(users UserStore, tokens RefreshTokenStore, sessions SessionStore, bus event.Bus, observer Observer, logger *slog.Logger) *ModerationService {
	if observer == nil {
		observer = noopObserver{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &ModerationService{
		users:    users,
		tokens:   tokens,
		sessions: sessions,
		bus:      bus,
		observer: observer,
		logger:   logger,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// Ban flags targetID as banned and revokes all of its refresh tokens. A nil
// expiresAt bans permanently.
func (s *ModerationService) Ban(ctx context.Context, actor model.Identity, targetID string, req model.BanRequest, client model.ClientInfo) (model.PublicUser, error) {
	reason := strings.TrimSpace(req.Reason)

	violations := make([]string, 0)
	if reason == "" || len(reason) > maxBanReasonLength {
		violations = append(violations, fmt.Sprintf("Ban reason must be between 1 and %d characters", maxBanReasonLength))
	}
	if req.ExpiresAt != nil && !req.ExpiresAt.After(s.now()) {
		violations = append(violations, "Ban expiry must be in the future")
	}
	if len(violations) > 0 {
		return model.PublicUser{}, apierror.Validation("Validation failed", violations)
	}

	target, err := s.loadTarget(ctx, actor, targetID)
	if err != nil {
		return model.PublicUser{}, err
	}

	var expiresAt *time.Time
	if req.ExpiresAt != nil {
		utc := req.ExpiresAt.UTC()
		expiresAt = &utc
	}

	if err := s.users.SetBan(ctx, target.ID, reason, expiresAt); err != nil {
		if errors.Is(err, model.ErrUserNotFound) {
			return model.PublicUser{}, apierror.NotFound("User not found", targetID)
		}
		return model.PublicUser{}, fmt.Errorf("ban user: %w", err)
	}

	revoked, err := s.tokens.DeleteAllForUser(ctx, target.ID)
	if err != nil {
		return model.PublicUser{}, fmt.Errorf("revoke tokens of banned user: %w", err)
	}
	s.observer.TokensRevoked(revoked)

	if s.sessions != nil {
		s.sessions.Delete(ctx, target.ID)
	}

	detail := "permanent"
	if expiresAt != nil {
		detail = "until " + expiresAt.Format(time.RFC3339)
	}
	s.publish(event.TypeUserBanned, actor, target, client, detail)

	s.logger.InfoContext(ctx, "user banned",
		slog.String("target_id", target.ID),
		slog.String("moderator_id", actor.UserID),
		slog.Int64("revoked_tokens", revoked),
	)

	return target.Public(), nil
}

func (s *ModerationService) Unban(ctx context.Context, actor model.Identity, targetID string, client model.ClientInfo) (model.PublicUser, error) {
	target, err := s.loadTarget(ctx, actor, targetID)
	if err != nil {
		return model.PublicUser{}, err
	}

	if err := s.users.ClearBan(ctx, target.ID); err != nil {
		return model.PublicUser{}, fmt.Errorf("unban user: %w", err)
	}

	s.publish(event.TypeUserUnbanned, actor, target, client, "lifted by moderator")
	return target.Public(), nil
}

// loadTarget enforces that moderators only act on lower-ranked accounts.
func (s *ModerationService) loadTarget(ctx context.Context, actor model.Identity, targetID string) (model.User, error) {
	if actor.UserID == targetID {
		return model.User{}, apierror.Forbidden("You cannot moderate your own account")
	}

	target, err := s.users.FindByID(ctx, targetID)
	if errors.Is(err, model.ErrUserNotFound) {
		return model.User{}, apierror.NotFound("User not found", targetID)
	}
	if err != nil {
		return model.User{}, fmt.Errorf("load moderation target: %w", err)
	}

	if target.Role.Rank() >= actor.Role.Rank() {
		return model.User{}, apierror.Forbidden("Insufficient permissions")
	}

	return target, nil
}

func (s *ModerationService) publish(t event.Type, actor model.Identity, target model.User, client model.ClientInfo, detail string) {
	if s.bus == nil {
		return
	}
	s.bus.Publish(event.New(t, actor.UserID, event.Payload{
		SubjectID: target.ID,
		Username:  actor.Username,
		IP:        client.IP,
		UserAgent: client.UserAgent,
		Status:    outcomeSuccess,
		Detail:    detail,
	}))
}
