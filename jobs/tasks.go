// Package jobs defines the background task types processed by cmd/worker.
package jobs

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/hibiken/asynq"

	jobmetrics "github.com/atrium-hq/atrium/internal/jobs"
	"github.com/atrium-hq/atrium/internal/shared"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskTypeAuditRecord is the task type for persisting audit events.
	TaskTypeAuditRecord = "audit:record"
)

// NewAuditRecordTask constructs an Asynq task from an audit event.
func NewAuditRecordTask(event shared.AuditEvent) (*asynq.Task, error) {
	data, err := json.Marshal(event)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskTypeAuditRecord, data), nil
}

// AuditWriter persists audit events delivered by the queue.
type AuditWriter struct {
	logger  shared.AuditRecorder
	slog    *slog.Logger
	metrics *jobmetrics.Metrics
}

// NewAuditWriter constructs the task handler for TaskTypeAuditRecord. The
// recorder is typically a shared.AuditLogger writing to Postgres.
func NewAuditWriter(logger shared.AuditRecorder, log *slog.Logger, metrics *jobmetrics.Metrics) *AuditWriter {
	if log == nil {
		log = slog.Default()
	}
	return &AuditWriter{logger: logger, slog: log, metrics: metrics}
}

// Handle processes one audit:record task. Payloads that fail to decode are
// dropped instead of retried; write failures are retried by Asynq.
func (w *AuditWriter) Handle(ctx context.Context, t *asynq.Task) error {
	tracker := w.metrics.Track("audit_record")
	var event shared.AuditEvent
	if err := json.Unmarshal(t.Payload(), &event); err != nil {
		w.slog.Warn("drop malformed audit task", slog.Any("error", err))
		tracker.Done(err)
		return asynq.SkipRetry
	}
	err := w.logger.Record(ctx, event)
	tracker.Done(err)
	return err
}
