package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"go-auth-service/internal/model"
)

type purgeCounter struct {
	noopObserver
	purged int64
}

func (p *purgeCounter) TokensPurged(n int64) { p.purged += n }

func TestCleanupPurgesExpiredRecords(t *testing.T) {
	t.Parallel()

	tokens := newMemTokenStore()
	ctx := context.Background()
	require.NoError(t, tokens.Create(ctx, model.RefreshTokenRecord{TokenID: "old", UserID: "u", ExpiresAt: time.Now().Add(-time.Minute)}))
	require.NoError(t, tokens.Create(ctx, model.RefreshTokenRecord{TokenID: "new", UserID: "u", ExpiresAt: time.Now().Add(time.Hour)}))

	observer := &purgeCounter{}
	svc, err := NewCleanupService(tokens, "@every 1h", observer, nil)
	require.NoError(t, err)

	purged, err := svc.PurgeExpired(ctx)
	require.NoError(t, err)
	require.Equal(t, int64(1), purged)
	require.Equal(t, int64(1), observer.purged)
	require.Equal(t, 1, tokens.count())
}

func TestCleanupRejectsBadSchedule(t *testing.T) {
	t.Parallel()

	_, err := NewCleanupService(newMemTokenStore(), "every so often", nil, nil)
	require.Error(t, err)
}

func TestCleanupRunStopsWithContext(t *testing.T) {
	t.Parallel()

	svc, err := NewCleanupService(newMemTokenStore(), "@every 1h", nil, nil)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- svc.Run(ctx) }()
	cancel()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("cleanup scheduler did not stop")
	}
}
