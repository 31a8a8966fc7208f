package report

import (
	"context"
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"
)

// excelWriter writes sheets row by row.
type excelWriter struct {
	file         *excelize.File
	currentSheet string
	currentRow   int
}

func newExcelWriter() *excelWriter {
	return &excelWriter{file: excelize.NewFile()}
}

func (w *excelWriter) addSheet(name string) error {
	// Excel limits sheet names to 31 characters.
	if len(name) > 31 {
		name = name[:31]
	}

	if w.currentSheet == "" {
		if err := w.file.SetSheetName("Sheet1", name); err != nil {
			return fmt.Errorf("rename sheet %s: %w", name, err)
		}
	} else if _, err := w.file.NewSheet(name); err != nil {
		return fmt.Errorf("create sheet %s: %w", name, err)
	}

	w.currentSheet = name
	w.currentRow = 1
	return nil
}

func (w *excelWriter) writeHeader(columns []string) error {
	if err := w.writeRow(toRow(columns)); err != nil {
		return err
	}

	style, err := w.file.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err == nil {
		startCell, _ := excelize.CoordinatesToCellName(1, w.currentRow-1)
		endCell, _ := excelize.CoordinatesToCellName(len(columns), w.currentRow-1)
		_ = w.file.SetCellStyle(w.currentSheet, startCell, endCell, style)
	}
	return nil
}

func (w *excelWriter) writeRow(row []any) error {
	if w.currentSheet == "" {
		return fmt.Errorf("no active sheet")
	}
	cell, err := excelize.CoordinatesToCellName(1, w.currentRow)
	if err != nil {
		return err
	}
	if err := w.file.SetSheetRow(w.currentSheet, cell, &row); err != nil {
		return err
	}
	w.currentRow++
	return nil
}

func toRow(values []string) []any {
	row := make([]any, len(values))
	for i, v := range values {
		row[i] = v
	}
	return row
}

// WriteHourlyXLSX writes the hourly overview of date as a workbook with an
// hourly sheet and a sheet listing the counted reservations.
func (s *Service) WriteHourlyXLSX(ctx context.Context, date string, out io.Writer) error {
	buckets, reservations, err := s.day(ctx, date)
	if err != nil {
		return err
	}

	w := newExcelWriter()
	defer w.file.Close()

	if err := w.addSheet("Gäste pro Stunde"); err != nil {
		return err
	}
	if err := w.writeHeader([]string{"Stunde", "Gäste", "Reservierungen"}); err != nil {
		return err
	}
	var guests, count int
	for _, b := range buckets {
		if err := w.writeRow([]any{b.Hour + ":00", b.Guests, b.Reservations}); err != nil {
			return err
		}
		guests += b.Guests
		count += b.Reservations
	}
	if err := w.writeRow([]any{"Summe", guests, count}); err != nil {
		return err
	}

	if err := w.addSheet("Reservierungen " + date); err != nil {
		return err
	}
	if err := w.writeHeader([]string{"ID", "Uhrzeit", "Ende", "Personen", "Status", "Event"}); err != nil {
		return err
	}
	for _, r := range reservations {
		if r.Archived || !r.Status.CountsAsGuest() {
			continue
		}
		if err := w.writeRow([]any{r.ID, r.Time, r.EndTime, r.PartySize, string(r.Status), r.EventID}); err != nil {
			return err
		}
	}

	if err := w.file.Write(out); err != nil {
		return fmt.Errorf("write workbook: %w", err)
	}
	return nil
}
