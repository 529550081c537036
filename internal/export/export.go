// Package export turns the audit log into a tabular report and writes it to
// the configured destinations (Google Sheets, local XLSX).
package export

import (
	"context"
	"fmt"
	"strconv"

	"github.com/samber/lo"

	"github.com/mtlprog/sale/internal/event"
	"github.com/mtlprog/sale/internal/oracle"
)

// reportLimit caps how many audit events one report includes. A single-unit
// sale produces a handful; the cap only guards against pathological growth.
const reportLimit = 500

// ReportWriter writes report rows to a destination.
type ReportWriter interface {
	Write(ctx context.Context, header []string, rows [][]string) error
}

// Service assembles the audit report and delegates writing.
type Service struct {
	events  event.Log
	quotes  oracle.QuoteRepository
	writers []ReportWriter
}

// NewService creates a new export Service. quotes may be nil.
func NewService(events event.Log, quotes oracle.QuoteRepository, writers ...ReportWriter) *Service {
	return &Service{
		events:  events,
		quotes:  quotes,
		writers: writers,
	}
}

var header = []string{"ID", "Type", "Class", "Serial", "Buyer", "Amount", "Currency", "Occurred At"}

// Export builds the report from the audit log and writes it to every
// configured destination. Implements worker.ReportExporter.
func (s *Service) Export(ctx context.Context) error {
	events, err := s.events.List(ctx, reportLimit)
	if err != nil {
		return fmt.Errorf("loading audit events: %w", err)
	}

	rows := lo.Map(events, func(e event.Event, _ int) []string {
		return []string{
			e.ID,
			string(e.Type),
			string(e.Class),
			strconv.FormatInt(int64(e.Serial), 10),
			string(e.Buyer),
			e.Amount,
			e.Currency,
			e.OccurredAt.Format("2006-01-02 15:04:05"),
		}
	})

	if s.quotes != nil {
		if q, err := s.quotes.LatestQuote(ctx); err == nil {
			rows = append(rows, []string{
				"", "oracle_quote", "", "", "", q.Display.String(), "USD",
				q.ObservedAt.Format("2006-01-02 15:04:05"),
			})
		}
	}

	for _, w := range s.writers {
		if err := w.Write(ctx, header, rows); err != nil {
			return fmt.Errorf("writing report: %w", err)
		}
	}
	return nil
}
