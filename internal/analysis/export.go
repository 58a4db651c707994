package analysis

import (
	"fmt"
	"io"
	"math"

	"github.com/xuri/excelize/v2"
)

// WriteXLSX writes the aggregate and the per-subject points as a workbook
// with "Summary" and "Subjects" sheets. Undefined statistics are left blank.
func (r *Result) WriteXLSX(w io.Writer) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", "Summary"); err != nil {
		return fmt.Errorf("rename sheet: %w", err)
	}
	summary := [][]any{{r.XLabel, "Condition", "Count", "Mean", "SD", "SEM", "Lower", "Upper"}}
	for _, a := range r.Aggregates {
		summary = append(summary, []any{a.Order, a.Condition, a.Count,
			cell(a.Mean), cell(a.SD), cell(a.SEM), cell(a.Lower), cell(a.Upper)})
	}
	if err := writeRows(f, "Summary", summary); err != nil {
		return err
	}

	if _, err := f.NewSheet("Subjects"); err != nil {
		return fmt.Errorf("add sheet: %w", err)
	}
	subjects := [][]any{{"Subject", "Condition", r.XLabel, r.YLabel}}
	for _, s := range r.Subjects {
		for _, p := range s.Points {
			subjects = append(subjects, []any{s.ID, s.Condition, p.Order, p.Value})
		}
	}
	if err := writeRows(f, "Subjects", subjects); err != nil {
		return err
	}

	if err := f.Write(w); err != nil {
		return fmt.Errorf("write xlsx: %w", err)
	}
	return nil
}

func writeRows(f *excelize.File, sheet string, rows [][]any) error {
	for i, row := range rows {
		addr, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			return err
		}
		r := row
		if err := f.SetSheetRow(sheet, addr, &r); err != nil {
			return fmt.Errorf("write %s row %d: %w", sheet, i+1, err)
		}
	}
	return nil
}

func cell(x float64) any {
	if math.IsNaN(x) || math.IsInf(x, 0) {
		return nil
	}
	return x
}
