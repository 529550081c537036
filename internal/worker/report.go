package worker

import (
	"context"
	"log/slog"
	"time"
)

// ReportExporter writes the audit report to its configured destinations.
type ReportExporter interface {
	Export(ctx context.Context) error
}

// ReportWorker periodically exports the audit report.
type ReportWorker struct {
	exporter ReportExporter
	interval time.Duration
}

// NewReportWorker creates a new ReportWorker.
func NewReportWorker(exporter ReportExporter, interval time.Duration) *ReportWorker {
	return &ReportWorker{
		exporter: exporter,
		interval: interval,
	}
}

// Run starts the report worker loop. It blocks until the context is cancelled.
func (w *ReportWorker) Run(ctx context.Context) {
	slog.Info("ReportWorker: starting")

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			slog.Info("ReportWorker: shutting down")
			return
		case <-ticker.C:
			if err := w.exporter.Export(ctx); err != nil {
				slog.Error("ReportWorker: export failed", "error", err)
			} else {
				slog.Info("ReportWorker: export completed")
			}
		}
	}
}
