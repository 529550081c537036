package export

import (
	"context"
	"fmt"

	"golang.org/x/oauth2/google"
	"google.golang.org/api/option"
	sheets "google.golang.org/api/sheets/v4"
)

const auditSheet = "AUDIT"

// SheetsWriter implements ReportWriter using the Google Sheets API.
type SheetsWriter struct {
	spreadsheetID string
	svc           *sheets.Service
}

// NewSheetsWriter creates a SheetsWriter authenticated with a service account JSON.
func NewSheetsWriter(ctx context.Context, spreadsheetID, credentialsJSON string) (*SheetsWriter, error) {
	creds, err := google.CredentialsFromJSON(
		ctx,
		[]byte(credentialsJSON),
		sheets.SpreadsheetsScope,
	)
	if err != nil {
		return nil, fmt.Errorf("parsing google credentials: %w", err)
	}

	svc, err := sheets.NewService(ctx, option.WithCredentials(creds))
	if err != nil {
		return nil, fmt.Errorf("creating sheets service: %w", err)
	}

	return &SheetsWriter{spreadsheetID: spreadsheetID, svc: svc}, nil
}

// Write ensures the audit sheet exists, then clears and rewrites it.
func (w *SheetsWriter) Write(ctx context.Context, header []string, rows [][]string) error {
	if err := w.ensureSheet(ctx, auditSheet); err != nil {
		return err
	}

	values := make([][]any, 0, len(rows)+1)
	values = append(values, toAnyRow(header))
	for _, row := range rows {
		values = append(values, toAnyRow(row))
	}

	_, err := w.svc.Spreadsheets.Values.Clear(
		w.spreadsheetID,
		auditSheet+"!A:H",
		&sheets.ClearValuesRequest{},
	).Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("clearing sheet: %w", err)
	}

	_, err = w.svc.Spreadsheets.Values.Update(
		w.spreadsheetID,
		auditSheet+"!A1",
		&sheets.ValueRange{Values: values},
	).ValueInputOption("USER_ENTERED").Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("writing sheet: %w", err)
	}
	return nil
}

// ensureSheet adds the sheet if the spreadsheet doesn't have it yet.
func (w *SheetsWriter) ensureSheet(ctx context.Context, title string) error {
	ss, err := w.svc.Spreadsheets.Get(w.spreadsheetID).Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("getting spreadsheet: %w", err)
	}
	for _, sh := range ss.Sheets {
		if sh.Properties != nil && sh.Properties.Title == title {
			return nil
		}
	}

	_, err = w.svc.Spreadsheets.BatchUpdate(w.spreadsheetID, &sheets.BatchUpdateSpreadsheetRequest{
		Requests: []*sheets.Request{{
			AddSheet: &sheets.AddSheetRequest{
				Properties: &sheets.SheetProperties{Title: title},
			},
		}},
	}).Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("adding sheet %s: %w", title, err)
	}
	return nil
}

func toAnyRow(row []string) []any {
	out := make([]any, len(row))
	for i, v := range row {
		out[i] = v
	}
	return out
}
