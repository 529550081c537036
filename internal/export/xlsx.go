package export

import (
	"context"
	"fmt"

	"github.com/xuri/excelize/v2"
)

// XlsxWriter implements ReportWriter by writing a local XLSX file.
type XlsxWriter struct {
	path string
}

// NewXlsxWriter creates an XlsxWriter targeting the given file path.
func NewXlsxWriter(path string) *XlsxWriter {
	return &XlsxWriter{path: path}
}

// Write creates the workbook from scratch on every export.
func (w *XlsxWriter) Write(_ context.Context, header []string, rows [][]string) error {
	f := excelize.NewFile()
	defer f.Close()

	const sheet = "Sheet1"
	if err := f.SetSheetName(sheet, auditSheet); err != nil {
		return fmt.Errorf("naming sheet: %w", err)
	}

	if err := w.writeRow(f, 1, header); err != nil {
		return err
	}
	for i, row := range rows {
		if err := w.writeRow(f, i+2, row); err != nil {
			return err
		}
	}

	if err := f.SaveAs(w.path); err != nil {
		return fmt.Errorf("saving %s: %w", w.path, err)
	}
	return nil
}

func (w *XlsxWriter) writeRow(f *excelize.File, rowNum int, values []string) error {
	cell, err := excelize.CoordinatesToCellName(1, rowNum)
	if err != nil {
		return fmt.Errorf("computing cell name: %w", err)
	}
	if err := f.SetSheetRow(auditSheet, cell, &values); err != nil {
		return fmt.Errorf("writing row %d: %w", rowNum, err)
	}
	return nil
}
