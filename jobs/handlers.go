package jobs

import (
	"context"
	"errors"
	"log/slog"

	"github.com/hibiken/asynq"

	"github.com/neuracraft/atlas/internal/auth"
	"github.com/neuracraft/atlas/internal/rbac"
)

// MenuCacheBumpJob invalidates cached resolved menus after grant graph or
// catalog changes.
type MenuCacheBumpJob struct {
	Cache  *rbac.MenuCache
	Logger *slog.Logger
}

// NewMenuCacheBumpJob wires dependencies for the bump handler.
func NewMenuCacheBumpJob(cache *rbac.MenuCache, logger *slog.Logger) *MenuCacheBumpJob {
	return &MenuCacheBumpJob{Cache: cache, Logger: logger}
}

// Handle processes menu cache bump tasks.
func (j *MenuCacheBumpJob) Handle(ctx context.Context, _ *asynq.Task) error {
	if j == nil {
		return errors.New("menu cache bump: handler not configured")
	}
	if err := j.Cache.Bump(ctx); err != nil {
		j.Logger.Error("menu cache bump", slog.Any("error", err))
		return err
	}
	j.Logger.Info("menu cache bumped")
	return nil
}

// SessionPurgeJob removes expired session audit rows.
type SessionPurgeJob struct {
	Auth   *auth.Service
	Logger *slog.Logger
}

// NewSessionPurgeJob wires dependencies for the purge handler.
func NewSessionPurgeJob(authSvc *auth.Service, logger *slog.Logger) *SessionPurgeJob {
	return &SessionPurgeJob{Auth: authSvc, Logger: logger}
}

// Handle processes session purge tasks.
func (j *SessionPurgeJob) Handle(ctx context.Context, _ *asynq.Task) error {
	if j == nil {
		return errors.New("session purge: handler not configured")
	}
	purged, err := j.Auth.PurgeExpiredSessions(ctx)
	if err != nil {
		j.Logger.Error("session purge", slog.Any("error", err))
		return err
	}
	j.Logger.Info("sessions purged", slog.Int64("count", purged))
	return nil
}
