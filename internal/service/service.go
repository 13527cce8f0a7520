package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"hazelinvoice/backend/internal/domain"
	"hazelinvoice/backend/internal/matrix"
	"hazelinvoice/backend/internal/pricing"
	"hazelinvoice/backend/internal/store"
	"hazelinvoice/backend/internal/xid"
)

type actorContextKey struct{}

func WithActor(ctx context.Context, actor domain.Actor) context.Context {
	return context.WithValue(ctx, actorContextKey{}, actor)
}

func ActorFromContext(ctx context.Context) (domain.Actor, bool) {
	actor, ok := ctx.Value(actorContextKey{}).(domain.Actor)
	return actor, ok
}

// ValidationError carries every problem found in a request. Nothing is
// written when it is returned.
type ValidationError struct {
	Problems []string
}

func (e *ValidationError) Error() string {
	return "validation failed: " + strings.Join(e.Problems, "; ")
}

func (e *ValidationError) Unwrap() error {
	return store.ErrInvalidInput
}

func invalid(problems ...string) error {
	return &ValidationError{Problems: problems}
}

type Service struct {
	repo          store.Repository
	matrix        *matrix.Builder
	logger        logrus.FieldLogger
	contactRegion string
	now           func() time.Time
}

func New(repo store.Repository, builder *matrix.Builder, logger logrus.FieldLogger, contactRegion string) *Service {
	if builder == nil {
		builder = matrix.NewBuilder(nil, 0)
	}
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	if contactRegion == "" {
		contactRegion = "PH"
	}

	return &Service{
		repo:          repo,
		matrix:        builder,
		logger:        logger.WithField("module", "service"),
		contactRegion: contactRegion,
		now:           func() time.Time { return time.Now().UTC() },
	}
}

// SetClock replaces the service clock. Tests use it to pin the sequence year
// and the default date.
func (s *Service) SetClock(now func() time.Time) {
	if now != nil {
		s.now = now
	}
}

func (s *Service) parseDay(raw string) (time.Time, error) {
	day, err := pricing.ParseDay(raw, s.now())
	if err != nil {
		return time.Time{}, invalid(err.Error())
	}
	return day, nil
}

func (s *Service) ListAuditLogs(ctx context.Context, date string, limit int) ([]domain.AuditLog, error) {
	if limit < 1 {
		limit = 100
	}

	var from time.Time
	if strings.TrimSpace(date) == "" {
		from = s.now().Add(-24 * time.Hour)
	} else {
		day, err := s.parseDay(date)
		if err != nil {
			return nil, err
		}
		from = day
	}
	to := from.Add(24 * time.Hour)

	return s.repo.ListAuditLogs(ctx, from, to, limit)
}

func (s *Service) logAudit(ctx context.Context, action string, entityType string, entityID string, detail string) {
	actor, ok := ActorFromContext(ctx)
	if !ok {
		actor = domain.Actor{Username: "system", Role: "system"}
	}

	if err := s.repo.CreateAuditLog(ctx, domain.AuditLog{
		ID:            xid.New("audit"),
		ActorUsername: actor.Username,
		ActorRole:     actor.Role,
		Action:        action,
		EntityType:    entityType,
		EntityID:      entityID,
		Detail:        detail,
		CreatedAt:     s.now(),
	}); err != nil {
		s.logger.WithFields(logrus.Fields{
			"action": action,
			"entity": entityType + "/" + entityID,
		}).WithError(err).Warn("failed to write audit log")
	}
}

func (s *Service) invalidateMatrix(ctx context.Context, day time.Time) {
	if err := s.matrix.Invalidate(ctx, day); err != nil {
		s.logger.WithField("date", day.Format(pricing.DateLayout)).WithError(err).Warn("failed to invalidate matrix cache")
	}
}

func actorName(ctx context.Context) string {
	if actor, ok := ActorFromContext(ctx); ok {
		return actor.Username
	}
	return "system"
}

func wrapNotFound(what string, id int64, err error) error {
	if errors.Is(err, store.ErrNotFound) {
		return fmt.Errorf("%s %d: %w", what, id, store.ErrNotFound)
	}
	return err
}
