package service

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/mail"
	"regexp"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"go-auth-service/internal/event"
	"go-auth-service/internal/model"
	"go-auth-service/pkg/apierror"
)

const (
	minUsernameLength    = 3
	maxUsernameLength    = 30
	maxDisplayNameLength = 50
	refreshTokenIDBytes  = 32

	outcomeSuccess = "success"
	outcomeFailure = "failure"
	outcomeBanned  = "banned"
	outcomeError   = "error"
)

var usernamePattern = regexp.MustCompile(`^[a-zA-Z0-9_]+$`)

type AuthDeps struct {
	Users       UserStore
	Tokens      RefreshTokenStore
	Sessions    SessionStore
	Credentials *CredentialService
	JWT         *TokenService
	Bus         event.Bus
	Observer    Observer
	Logger      *slog.Logger
	// RotateRefresh makes every refresh consume its token and return a new one.
	RotateRefresh bool
}

type AuthService struct {
	users         UserStore
	tokens        RefreshTokenStore
	sessions      SessionStore
	credentials   *CredentialService
	jwt           *TokenService
	bus           event.Bus
	observer      Observer
	logger        *slog.Logger
	rotateRefresh bool
	now           func() time.Time
}

func NewAuthService(deps AuthDeps) *AuthService {
	observer := deps.Observer
	if observer == nil {
		observer = noopObserver{}
	}
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &AuthService{
		users:         deps.Users,
		tokens:        deps.Tokens,
		sessions:      deps.Sessions,
		credentials:   deps.Credentials,
		jwt:           deps.JWT,
		bus:           deps.Bus,
		observer:      observer,
		logger:        logger,
		rotateRefresh: deps.RotateRefresh,
		now:           func() time.Time { return time.Now().UTC() },
	}
}

func (s *AuthService) Register(ctx context.Context, req model.RegisterRequest, client model.ClientInfo) (model.AuthResult, error) {
	username := strings.TrimSpace(req.Username)
	email := strings.TrimSpace(req.Email)
	displayName := strings.TrimSpace(req.DisplayName)

	violations := validateRegistration(username, email, displayName)
	violations = append(violations, s.credentials.ValidateStrength(req.Password).Violations...)
	if len(violations) > 0 {
		s.observer.Registration(outcomeFailure)
		return model.AuthResult{}, apierror.Validation("Validation failed", violations)
	}

	usernameTaken, emailTaken, err := s.users.FindConflicts(ctx, username, email)
	if err != nil {
		s.observer.Registration(outcomeError)
		return model.AuthResult{}, fmt.Errorf("register: %w", err)
	}
	if usernameTaken || emailTaken {
		s.observer.Registration(outcomeFailure)
		return model.AuthResult{}, duplicateUserError(usernameTaken)
	}

	hash, err := s.credentials.Hash(req.Password)
	if err != nil {
		s.observer.Registration(outcomeError)
		return model.AuthResult{}, fmt.Errorf("register: %w", err)
	}

	now := s.now()
	user := model.User{
		ID:           uuid.NewString(),
		Username:     strings.ToLower(username),
		Email:        strings.ToLower(email),
		DisplayName:  displayName,
		PasswordHash: hash,
		Role:         model.RoleMember,
		JoinedAt:     now,
		UpdatedAt:    now,
	}

	if err := s.users.Create(ctx, user); err != nil {
		if errors.Is(err, model.ErrUserAlreadyExists) {
			s.observer.Registration(outcomeFailure)
			return model.AuthResult{}, duplicateUserError(!errors.Is(err, model.ErrEmailTaken))
		}
		s.observer.Registration(outcomeError)
		return model.AuthResult{}, fmt.Errorf("register: %w", err)
	}

	tokens, err := s.issueSession(ctx, user)
	if err != nil {
		s.observer.Registration(outcomeError)
		return model.AuthResult{}, err
	}

	s.observer.Registration(outcomeSuccess)
	s.publish(event.TypeUserRegistered, user.ID, event.Payload{
		SubjectID: user.ID,
		Username:  user.Username,
		IP:        client.IP,
		UserAgent: client.UserAgent,
		Status:    outcomeSuccess,
	})

	return model.AuthResult{User: user.Public(), Tokens: tokens}, nil
}

func (s *AuthService) Login(ctx context.Context, req model.LoginRequest, client model.ClientInfo) (model.AuthResult, error) {
	identifier := strings.TrimSpace(req.UsernameOrEmail)

	violations := make([]string, 0, 2)
	if identifier == "" {
		violations = append(violations, "Username or email is required")
	}
	if req.Password == "" {
		violations = append(violations, "Password is required")
	}
	if len(violations) > 0 {
		return model.AuthResult{}, apierror.Validation("Validation failed", violations)
	}

	user, err := s.users.FindByUsernameOrEmail(ctx, identifier)
	if errors.Is(err, model.ErrUserNotFound) {
		s.loginFailed(ctx, "", "unknown account", client)
		return model.AuthResult{}, invalidCredentials()
	}
	if err != nil {
		s.observer.LoginAttempt(outcomeError)
		return model.AuthResult{}, fmt.Errorf("login: %w", err)
	}

	now := s.now()
	if user.BanActive(now) {
		s.observer.LoginAttempt(outcomeBanned)
		s.publish(event.TypeUserLoginFailed, user.ID, event.Payload{
			SubjectID: user.ID,
			Username:  user.Username,
			IP:        client.IP,
			UserAgent: client.UserAgent,
			Status:    outcomeFailure,
			Detail:    "account banned",
		})
		return model.AuthResult{}, bannedError(user)
	}

	ok, err := s.credentials.Verify(req.Password, user.PasswordHash)
	if err != nil {
		s.observer.LoginAttempt(outcomeError)
		return model.AuthResult{}, fmt.Errorf("login: %w", err)
	}
	if !ok {
		s.loginFailed(ctx, user.ID, "wrong password", client)
		return model.AuthResult{}, invalidCredentials()
	}

	if user.BanLapsed(now) {
		if err := s.liftLapsedBan(ctx, &user); err != nil {
			s.observer.LoginAttempt(outcomeError)
			return model.AuthResult{}, fmt.Errorf("login: %w", err)
		}
	}

	if err := s.users.UpdateLastSeen(ctx, user.ID, now); err != nil {
		s.observer.LoginAttempt(outcomeError)
		return model.AuthResult{}, fmt.Errorf("login: %w", err)
	}
	user.LastSeen = &now

	tokens, err := s.issueSession(ctx, user)
	if err != nil {
		s.observer.LoginAttempt(outcomeError)
		return model.AuthResult{}, err
	}

	if s.sessions != nil {
		s.sessions.Write(ctx, user.ID, model.SessionEntry{
			UserID:    user.ID,
			Username:  user.Username,
			LoginTime: now,
			IP:        client.IP,
			UserAgent: client.UserAgent,
		}, s.jwt.AccessTTL())
	}

	s.observer.LoginAttempt(outcomeSuccess)
	s.publish(event.TypeUserLoggedIn, user.ID, event.Payload{
		SubjectID: user.ID,
		Username:  user.Username,
		IP:        client.IP,
		UserAgent: client.UserAgent,
		Status:    outcomeSuccess,
	})

	return model.AuthResult{User: user.Public(), Tokens: tokens}, nil
}

// Refresh exchanges a stored refresh token for a new access token. The
// refresh token itself is reused unless rotation is enabled.
func (s *AuthService) Refresh(ctx context.Context, refreshToken string, client model.ClientInfo) (model.RefreshResult, error) {
	if strings.TrimSpace(refreshToken) == "" {
		s.observer.RefreshAttempt(outcomeFailure)
		return model.RefreshResult{}, apierror.Unauthenticated("Refresh token required")
	}

	claims, err := s.jwt.VerifyRefresh(refreshToken)
	if err != nil {
		s.observer.TokenRejected("refresh", rejectionReason(err))
		s.observer.RefreshAttempt(outcomeFailure)
		return model.RefreshResult{}, apierror.Unauthenticated("Invalid refresh token")
	}

	record, err := s.tokens.FindByID(ctx, claims.TokenID)
	if errors.Is(err, model.ErrTokenNotFound) {
		s.observer.RefreshAttempt(outcomeFailure)
		return model.RefreshResult{}, apierror.Unauthenticated("Invalid refresh token")
	}
	if err != nil {
		s.observer.RefreshAttempt(outcomeError)
		return model.RefreshResult{}, fmt.Errorf("refresh: %w", err)
	}

	if subtle.ConstantTimeCompare([]byte(record.Token), []byte(refreshToken)) != 1 || record.UserID != claims.UserID {
		s.observer.RefreshAttempt(outcomeFailure)
		return model.RefreshResult{}, apierror.Unauthenticated("Invalid refresh token")
	}

	if !record.ExpiresAt.After(s.now()) {
		if err := s.tokens.DeleteByID(ctx, record.TokenID); err != nil {
			s.logger.WarnContext(ctx, "failed to delete expired refresh token", slog.String("error", err.Error()))
		}
		s.observer.RefreshAttempt(outcomeFailure)
		return model.RefreshResult{}, apierror.Unauthenticated("Refresh token expired")
	}

	user, err := s.users.FindByID(ctx, record.UserID)
	if errors.Is(err, model.ErrUserNotFound) {
		s.observer.RefreshAttempt(outcomeFailure)
		return model.RefreshResult{}, apierror.Unauthenticated("User not found")
	}
	if err != nil {
		s.observer.RefreshAttempt(outcomeError)
		return model.RefreshResult{}, fmt.Errorf("refresh: %w", err)
	}

	accessToken, _, err := s.jwt.IssueAccess(user.Identity())
	if err != nil {
		s.observer.RefreshAttempt(outcomeError)
		return model.RefreshResult{}, err
	}

	result := model.RefreshResult{AccessToken: accessToken}

	if s.rotateRefresh {
		if err := s.tokens.DeleteByID(ctx, record.TokenID); err != nil {
			s.observer.RefreshAttempt(outcomeError)
			return model.RefreshResult{}, fmt.Errorf("refresh: %w", err)
		}
		next, err := s.issueRefresh(ctx, user.ID)
		if err != nil {
			s.observer.RefreshAttempt(outcomeError)
			return model.RefreshResult{}, err
		}
		result.RefreshToken = next
	}

	s.observer.RefreshAttempt(outcomeSuccess)
	s.publish(event.TypeTokenRefreshed, user.ID, event.Payload{
		SubjectID: user.ID,
		Username:  user.Username,
		IP:        client.IP,
		UserAgent: client.UserAgent,
		Status:    outcomeSuccess,
	})

	return result, nil
}

// Logout revokes refreshToken when it belongs to the caller and drops the
// session cache entry. It never fails.
func (s *AuthService) Logout(ctx context.Context, identity model.Identity, refreshToken string, client model.ClientInfo) {
	if strings.TrimSpace(refreshToken) != "" {
		claims, err := s.jwt.VerifyRefresh(refreshToken)
		switch {
		case err != nil:
			s.logger.DebugContext(ctx, "logout with unusable refresh token", slog.String("user_id", identity.UserID))
		case claims.UserID != identity.UserID:
			s.logger.WarnContext(ctx, "logout with another user's refresh token",
				slog.String("user_id", identity.UserID),
				slog.String("ip", client.IP),
			)
		default:
			if err := s.tokens.DeleteByID(ctx, claims.TokenID); err != nil {
				s.logger.WarnContext(ctx, "failed to revoke refresh token on logout", slog.String("error", err.Error()))
			} else {
				s.observer.TokensRevoked(1)
			}
		}
	}

	if s.sessions != nil {
		s.sessions.Delete(ctx, identity.UserID)
	}

	s.publish(event.TypeUserLoggedOut, identity.UserID, event.Payload{
		SubjectID: identity.UserID,
		Username:  identity.Username,
		IP:        client.IP,
		UserAgent: client.UserAgent,
		Status:    outcomeSuccess,
	})
}

func (s *AuthService) LogoutAll(ctx context.Context, identity model.Identity, client model.ClientInfo) (int64, error) {
	revoked, err := s.tokens.DeleteAllForUser(ctx, identity.UserID)
	if err != nil {
		return 0, fmt.Errorf("logout all: %w", err)
	}
	s.observer.TokensRevoked(revoked)

	if s.sessions != nil {
		s.sessions.Delete(ctx, identity.UserID)
	}

	s.publish(event.TypeUserLoggedOutAll, identity.UserID, event.Payload{
		SubjectID: identity.UserID,
		Username:  identity.Username,
		IP:        client.IP,
		UserAgent: client.UserAgent,
		Status:    outcomeSuccess,
		Detail:    fmt.Sprintf("revoked %d refresh tokens", revoked),
	})

	return revoked, nil
}

func (s *AuthService) Me(ctx context.Context, identity model.Identity) (model.PublicUser, error) {
	user, err := s.users.FindByID(ctx, identity.UserID)
	if errors.Is(err, model.ErrUserNotFound) {
		return model.PublicUser{}, apierror.NotFound("User not found", "")
	}
	if err != nil {
		return model.PublicUser{}, fmt.Errorf("load profile: %w", err)
	}
	return user.Public(), nil
}

// Authenticate resolves a bearer access token to the caller's current
// identity. Role and ban state come from the user record, not the token.
func (s *AuthService) Authenticate(ctx context.Context, accessToken string) (model.Identity, error) {
	claims, err := s.jwt.VerifyAccess(accessToken)
	if err != nil {
		s.observer.TokenRejected("access", rejectionReason(err))
		return model.Identity{}, apierror.Unauthenticated("Invalid or expired token")
	}

	user, err := s.users.FindByID(ctx, claims.UserID)
	if errors.Is(err, model.ErrUserNotFound) {
		return model.Identity{}, apierror.Unauthenticated("User not found")
	}
	if err != nil {
		return model.Identity{}, fmt.Errorf("authenticate: %w", err)
	}

	now := s.now()
	if user.BanLapsed(now) {
		if err := s.liftLapsedBan(ctx, &user); err != nil {
			s.logger.WarnContext(ctx, "failed to clear lapsed ban", slog.String("user_id", user.ID), slog.String("error", err.Error()))
		}
	} else if user.BanActive(now) {
		return model.Identity{}, bannedError(user)
	}

	return user.Identity(), nil
}

// PublicProfile returns username's profile. The email is only visible to
// the owner and to moderators.
func (s *AuthService) PublicProfile(ctx context.Context, username string, viewer *model.Identity) (model.PublicUser, error) {
	user, err := s.users.FindByUsername(ctx, username)
	if errors.Is(err, model.ErrUserNotFound) {
		return model.PublicUser{}, apierror.NotFound("User not found", username)
	}
	if err != nil {
		return model.PublicUser{}, fmt.Errorf("load public profile: %w", err)
	}

	profile := user.Public()
	if viewer == nil || (viewer.UserID != user.ID && !viewer.Role.AtLeast(model.RoleMod)) {
		profile.Email = ""
	}
	return profile, nil
}

func (s *AuthService) issueSession(ctx context.Context, user model.User) (model.TokenPair, error) {
	accessToken, _, err := s.jwt.IssueAccess(user.Identity())
	if err != nil {
		return model.TokenPair{}, err
	}

	refreshToken, err := s.issueRefresh(ctx, user.ID)
	if err != nil {
		return model.TokenPair{}, err
	}

	return model.TokenPair{AccessToken: accessToken, RefreshToken: refreshToken}, nil
}

func (s *AuthService) issueRefresh(ctx context.Context, userID string) (string, error) {
	tokenID, err := GenerateSecureToken(refreshTokenIDBytes)
	if err != nil {
		return "", err
	}

	refreshToken, expiresAt, err := s.jwt.IssueRefresh(userID, tokenID)
	if err != nil {
		return "", err
	}

	if err := s.tokens.Create(ctx, model.RefreshTokenRecord{
		TokenID:   tokenID,
		Token:     refreshToken,
		UserID:    userID,
		ExpiresAt: expiresAt,
		CreatedAt: s.now(),
	}); err != nil {
		return "", fmt.Errorf("persist refresh token: %w", err)
	}

	return refreshToken, nil
}

func (s *AuthService) liftLapsedBan(ctx context.Context, user *model.User) error {
	if err := s.users.ClearBan(ctx, user.ID); err != nil {
		return err
	}

	user.IsBanned = false
	user.BanReason = nil
	user.BanExpiresAt = nil

	s.publish(event.TypeUserUnbanned, user.ID, event.Payload{
		SubjectID: user.ID,
		Username:  user.Username,
		Status:    outcomeSuccess,
		Detail:    "ban expired",
	})
	return nil
}

func (s *AuthService) loginFailed(ctx context.Context, userID string, detail string, client model.ClientInfo) {
	s.observer.LoginAttempt(outcomeFailure)
	s.logger.InfoContext(ctx, "login failed",
		slog.String("reason", detail),
		slog.String("ip", client.IP),
		slog.String("user_agent", client.UserAgent),
	)
	s.publish(event.TypeUserLoginFailed, userID, event.Payload{
		SubjectID: userID,
		IP:        client.IP,
		UserAgent: client.UserAgent,
		Status:    outcomeFailure,
		Detail:    detail,
	})
}

func (s *AuthService) publish(t event.Type, actorID string, payload event.Payload) {
	if s.bus == nil {
		return
	}
	s.bus.Publish(event.New(t, actorID, payload))
}

func validateRegistration(username string, email string, displayName string) []string {
	violations := make([]string, 0)

	if n := utf8.RuneCountInString(username); n < minUsernameLength || n > maxUsernameLength {
		violations = append(violations, fmt.Sprintf("Username must be between %d and %d characters", minUsernameLength, maxUsernameLength))
	}
	if !usernamePattern.MatchString(username) {
		violations = append(violations, "Username can only contain letters, numbers, and underscores")
	}

	if !validEmail(email) {
		violations = append(violations, "Please provide a valid email address")
	}

	if n := utf8.RuneCountInString(displayName); n < 1 || n > maxDisplayNameLength {
		violations = append(violations, fmt.Sprintf("Display name must be between 1 and %d characters", maxDisplayNameLength))
	}

	return violations
}

// validEmail accepts a bare RFC 5322 address; display-name forms are rejected.
func validEmail(email string) bool {
	if email == "" {
		return false
	}
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		return false
	}
	at := strings.LastIndex(email, "@")
	return at > 0 && strings.Contains(email[at+1:], ".")
}

func duplicateUserError(usernameTaken bool) *apierror.APIError {
	if usernameTaken {
		return apierror.Duplicate("Username is already taken", "username")
	}
	return apierror.Duplicate("Email is already registered", "email")
}

func invalidCredentials() *apierror.APIError {
	return apierror.Unauthenticated("Invalid credentials")
}

func bannedError(user model.User) *apierror.APIError {
	message := "Your account has been banned"
	reason := ""
	if user.BanReason != nil && *user.BanReason != "" {
		reason = *user.BanReason
		message = reason
	}

	err := apierror.New(apierror.CodeBanned, message, "", http.StatusForbidden).WithField("reason", reason)
	if user.BanExpiresAt != nil {
		return err.WithField("banExpiresAt", user.BanExpiresAt.UTC().Format(time.RFC3339))
	}
	return err.WithField("banExpiresAt", nil)
}

func rejectionReason(err error) string {
	if errors.Is(err, model.ErrTokenExpired) {
		return "expired"
	}
	return "invalid"
}
