package service

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"go-auth-service/internal/model"
)

func newModerationFixture(t *testing.T) (*ModerationService, *authFixture) {
	t.Helper()

	f := newAuthFixture(t, false)
	svc := NewModerationService(f.users, f.tokens, f.sessions, f.bus, nil, slog.New(slog.NewTextHandler(io.Discard, nil)))
	return svc, f
}

func TestBanRevokesSessionsAndBlocksLogin(t *testing.T) {
	t.Parallel()

	svc, f := newModerationFixture(t)
	ctx := context.Background()
	mod := f.seedUser(t, "moderator", model.RoleMod)
	target := f.seedUser(t, "griefer", model.RoleVIP)

	login, err := f.svc.Login(ctx, model.LoginRequest{UsernameOrEmail: "griefer", Password: alicePassword}, model.ClientInfo{})
	require.NoError(t, err)

	expires := time.Now().Add(24 * time.Hour)
	_, err = svc.Ban(ctx, mod.Identity(), target.ID, model.BanRequest{Reason: "griefing", ExpiresAt: &expires}, model.ClientInfo{})
	require.NoError(t, err)

	stored := f.users.get(target.ID)
	require.True(t, stored.IsBanned)
	require.Equal(t, "griefing", *stored.BanReason)

	_, err = f.svc.Refresh(ctx, login.Tokens.RefreshToken, model.ClientInfo{})
	requireStatus(t, err, http.StatusUnauthorized)

	_, err = f.svc.Authenticate(ctx, login.Tokens.AccessToken)
	requireStatus(t, err, http.StatusForbidden)

	_, err = f.svc.Login(ctx, model.LoginRequest{UsernameOrEmail: "griefer", Password: alicePassword}, model.ClientInfo{})
	requireStatus(t, err, http.StatusForbidden)

	_, err = svc.Unban(ctx, mod.Identity(), target.ID, model.ClientInfo{})
	require.NoError(t, err)

	_, err = f.svc.Login(ctx, model.LoginRequest{UsernameOrEmail: "griefer", Password: alicePassword}, model.ClientInfo{})
	require.NoError(t, err)
}

func TestBanRequiresHigherRank(t *testing.T) {
	t.Parallel()

	svc, f := newModerationFixture(t)
	ctx := context.Background()
	mod := f.seedUser(t, "mod_one", model.RoleMod)
	otherMod := f.seedUser(t, "mod_two", model.RoleMod)
	admin := f.seedUser(t, "root", model.RoleAdmin)

	_, err := svc.Ban(ctx, mod.Identity(), otherMod.ID, model.BanRequest{Reason: "x"}, model.ClientInfo{})
	requireStatus(t, err, http.StatusForbidden)

	_, err = svc.Ban(ctx, mod.Identity(), admin.ID, model.BanRequest{Reason: "x"}, model.ClientInfo{})
	requireStatus(t, err, http.StatusForbidden)

	_, err = svc.Ban(ctx, mod.Identity(), mod.ID, model.BanRequest{Reason: "x"}, model.ClientInfo{})
	requireStatus(t, err, http.StatusForbidden)

	_, err = svc.Ban(ctx, admin.Identity(), otherMod.ID, model.BanRequest{Reason: "abuse"}, model.ClientInfo{})
	require.NoError(t, err)
}

func TestBanValidation(t *testing.T) {
	t.Parallel()

	svc, f := newModerationFixture(t)
	ctx := context.Background()
	admin := f.seedUser(t, "admin_user", model.RoleAdmin)
	target := f.seedUser(t, "target", model.RoleMember)

	past := time.Now().Add(-time.Hour)
	_, err := svc.Ban(ctx, admin.Identity(), target.ID, model.BanRequest{Reason: " ", ExpiresAt: &past}, model.ClientInfo{})
	apiErr := requireStatus(t, err, http.StatusBadRequest)
	require.Len(t, apiErr.Fields["violations"], 2)

	_, err = svc.Ban(ctx, admin.Identity(), "00000000-0000-0000-0000-000000000000", model.BanRequest{Reason: "x"}, model.ClientInfo{})
	requireStatus(t, err, http.StatusNotFound)
}
