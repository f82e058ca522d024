package tasks

import (
	"context"
	"errors"
	"fmt"
	"time"
)

const attachmentAnalysisTimeout = 5 * time.Minute

// newAttachmentAnalysisTask analyzes one batch of pending attachments per run.
func newAttachmentAnalysisTask(deps TaskDeps) ScheduledTaskFunc {
	log := deps.Logger.With("task", AttachmentAnalysis)

	batch := 0
	if deps.Config != nil {
		batch = deps.Config.Attachments.BatchSize
	}

	return func(ctx context.Context) error {
		timeoutCtx, cancel := context.WithTimeout(ctx, attachmentAnalysisTimeout)
		defer cancel()

		startTime := time.Now()
		updated, err := deps.Analyzer.ProcessPending(timeoutCtx, batch)
		duration := time.Since(startTime)

		if err != nil {
			if errors.Is(err, context.DeadlineExceeded) {
				log.WarnContext(ctx, "Attachment analysis timed out", "updated", updated, "duration", duration)
				return fmt.Errorf("attachment analysis timed out after %d updates", updated)
			}
			log.ErrorContext(ctx, "Attachment analysis failed", "error", err, "duration", duration)
			return fmt.Errorf("attachment analysis failed: %w", err)
		}

		if updated > 0 {
			log.InfoContext(ctx, "Attachment analysis completed", "updated", updated, "duration", duration)
		}
		return nil
	}
}
