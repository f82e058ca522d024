package tasks

import "context"

// ScheduledTaskFunc defines the standard signature for all scheduled tasks.
// The context provided by the scheduler should be respected for cancellation.
type ScheduledTaskFunc func(ctx context.Context) error

// Task names, matching the keys of scheduler.tasks in the configuration.
const (
	AttachmentAnalysis  = "attachment_analysis"
	DatabaseMaintenance = "database_maintenance"
)

// RegisterAllTasks returns every task keyed by its configuration name.
func RegisterAllTasks(deps TaskDeps) map[string]ScheduledTaskFunc {
	tasks := map[string]ScheduledTaskFunc{
		DatabaseMaintenance: newDatabaseMaintenanceTask(deps),
	}
	if deps.Analyzer != nil {
		tasks[AttachmentAnalysis] = newAttachmentAnalysisTask(deps)
	}

	deps.Logger.Info("Initialized scheduled tasks", "count", len(tasks))
	return tasks
}
