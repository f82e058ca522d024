// Package tasks implements the scheduled background tasks of the chat
// service and the registry the scheduler reads them from.
package tasks

import (
	"context"
	"log/slog"

	"github.com/edgard/murailochat/internal/config"
	"github.com/edgard/murailochat/internal/database"
)

// AttachmentProcessor analyzes pending attachments.
type AttachmentProcessor interface {
	ProcessPending(ctx context.Context, limit int) (int, error)
}

// TaskDeps contains all dependencies required by scheduled tasks.
type TaskDeps struct {
	Logger   *slog.Logger
	Store    database.Store
	Analyzer AttachmentProcessor
	Config   *config.Config
}
