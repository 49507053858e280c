package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"go-auth-service/internal/event"
	"go-auth-service/internal/model"
	"go-auth-service/pkg/apierror"
)

const auditWriteTimeout = 5 * time.Second

// AuditService persists auth events from the bus and serves them back to
// administrators.
type AuditService struct {
	store       AuditStore
	events      <-chan event.Event
	unsubscribe func()
	logger      *slog.Logger
}

// NewAuditService subscribes to bus immediately so events published before
// Run starts are buffered rather than lost.
func NewAuditService(store AuditStore, bus event.Bus, logger *slog.Logger) *AuditService {
	if logger == nil {
		logger = slog.Default()
	}
	events, unsubscribe := bus.Subscribe()
	return &AuditService{store: store, events: events, unsubscribe: unsubscribe, logger: logger}
}

// Run records events until ctx is cancelled. Events already buffered when
// ctx ends are flushed before returning.
func (s *AuditService) Run(ctx context.Context) error {
	defer s.unsubscribe()

	for {
		select {
		case <-ctx.Done():
			s.drain(s.events)
			return nil
		case e, ok := <-s.events:
			if !ok {
				return nil
			}
			s.record(context.WithoutCancel(ctx), e)
		}
	}
}

func (s *AuditService) drain(events <-chan event.Event) {
	for {
		select {
		case e, ok := <-events:
			if !ok {
				return
			}
			s.record(context.Background(), e)
		default:
			return
		}
	}
}

func (s *AuditService) record(ctx context.Context, e event.Event) {
	ctx, cancel := context.WithTimeout(ctx, auditWriteTimeout)
	defer cancel()

	entry := model.AuditEntry{
		ID:         e.ID,
		Action:     string(e.Type),
		OccurredAt: e.Timestamp,
		Actor: model.AuditActor{
			UserID:    e.ActorID,
			Username:  e.Payload.Username,
			IP:        e.Payload.IP,
			UserAgent: e.Payload.UserAgent,
		},
		Status:    e.Payload.Status,
		SubjectID: e.Payload.SubjectID,
		Detail:    e.Payload.Detail,
	}

	if err := s.store.Log(ctx, entry); err != nil {
		s.logger.ErrorContext(ctx, "failed to persist audit entry",
			slog.String("action", entry.Action),
			slog.String("error", err.Error()),
		)
	}
}

func (s *AuditService) Query(ctx context.Context, query model.AuditQuery) ([]model.AuditEntry, model.Meta, error) {
	if _, err := parseOptionalAuditTime(query.From); err != nil {
		return nil, model.Meta{}, apierror.BadRequest("invalid 'from' datetime format", query.From)
	}
	if _, err := parseOptionalAuditTime(query.To); err != nil {
		return nil, model.Meta{}, apierror.BadRequest("invalid 'to' datetime format", query.To)
	}

	items, meta, err := s.store.Query(ctx, query)
	if err != nil {
		return nil, model.Meta{}, fmt.Errorf("query audit entries: %w", err)
	}
	return items, meta, nil
}

func parseOptionalAuditTime(raw string) (time.Time, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return time.Time{}, nil
	}

	if value, err := time.Parse(time.RFC3339Nano, trimmed); err == nil {
		return value.UTC(), nil
	}

	value, err := time.Parse(time.RFC3339, trimmed)
	if err != nil {
		return time.Time{}, err
	}
	return value.UTC(), nil
}
