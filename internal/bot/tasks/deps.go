// Package tasks implements the scheduled maintenance tasks of the message
// cache and their registration.
package tasks

import (
	"context"
	"log/slog"
	"time"

	"github.com/edgard/punquote/internal/config"
)

// Store is the part of database.Store the tasks use.
type Store interface {
	DeleteMessagesBefore(ctx context.Context, t time.Time) (int64, error)
	RunSQLMaintenance(ctx context.Context) error
}

// TaskDeps contains all dependencies required by scheduled tasks.
type TaskDeps struct {
	Logger *slog.Logger
	Store  Store
	Config *config.Config

	// Now defaults to time.Now.
	Now func() time.Time
}

func (d TaskDeps) now() time.Time {
	if d.Now != nil {
		return d.Now()
	}
	return time.Now()
}
