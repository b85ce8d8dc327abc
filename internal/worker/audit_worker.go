package worker

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"circolo/internal/events"
	applog "circolo/internal/log"
	"circolo/internal/sequence"
)

// Auditor runs a read-only membership number audit.
type Auditor interface {
	Audit(ctx context.Context, seasonID int64) (sequence.AuditReport, error)
}

// AuditWorker answers audit requests from the queue and audits the
// configured season on a schedule. Results go out through the publisher.
type AuditWorker struct {
	auditor   Auditor
	publisher events.Publisher
	seasonID  int64
}

func NewAuditWorker(auditor Auditor, publisher events.Publisher, seasonID int64) *AuditWorker {
	if publisher == nil {
		publisher = events.Nop{}
	}
	return &AuditWorker{
		auditor:   auditor,
		publisher: publisher,
		seasonID:  seasonID,
	}
}

// HandleAuditRequest processes a single audit request from AMQP. An error
// leaves the message for redelivery.
func (w *AuditWorker) HandleAuditRequest(ctx context.Context, req *events.AuditRequest) error {
	slog.InfoContext(ctx, "Processing audit request",
		applog.FieldMessageID, req.MessageID,
		applog.FieldSeasonID, req.SeasonID)

	if _, err := w.run(ctx, req.SeasonID, req.MessageID); err != nil {
		return fmt.Errorf("audit season %d: %w", req.SeasonID, err)
	}
	return nil
}

// AuditNow audits the configured season once.
func (w *AuditWorker) AuditNow(ctx context.Context) (*events.AuditResult, error) {
	return w.run(ctx, w.seasonID, "")
}

// RunPeriodic audits the configured season every interval until ctx is done.
func (w *AuditWorker) RunPeriodic(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := w.AuditNow(ctx); err != nil {
				slog.ErrorContext(ctx, "Periodic audit failed",
					applog.FieldSeasonID, w.seasonID,
					applog.FieldError, err)
			}
		}
	}
}

func (w *AuditWorker) run(ctx context.Context, seasonID int64, requestID string) (*events.AuditResult, error) {
	report, err := w.auditor.Audit(ctx, seasonID)
	if err != nil {
		return nil, err
	}

	res := events.NewAuditResult(requestID, report)
	attrs := []any{
		applog.FieldSeasonID, seasonID,
		applog.FieldMessageID, res.MessageID,
		"duplicates", len(report.Duplicates),
		"missing", len(report.Missing),
		"malformed", len(report.Malformed),
	}
	if res.Clean {
		slog.InfoContext(ctx, "Audit completed", attrs...)
	} else {
		slog.WarnContext(ctx, "Audit found problems", attrs...)
	}

	if err := w.publisher.PublishAuditResult(ctx, res); err != nil {
		return res, fmt.Errorf("publish audit result: %w", err)
	}
	return res, nil
}
