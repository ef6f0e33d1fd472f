// Package report exports per-date attendance reports.
package report

import (
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"

	"rollbook/internal/aggregate"
)

const (
	summarySheet = "Summary"
	recordSheet  = "Attendance"
)

// WriteXLSX writes rep as a two-sheet workbook: totals, then one row per student.
func WriteXLSX(w io.Writer, rep aggregate.Report) error {
	f := excelize.NewFile()
	defer func() { _ = f.Close() }()

	if err := f.SetSheetName("Sheet1", summarySheet); err != nil {
		return err
	}
	rate := "No data"
	if rep.Rate.Valid {
		rate = fmt.Sprintf("%.2f%%", rep.Rate.Value)
	}
	summary := [][]interface{}{
		{"Date", rep.Date},
		{"Present", rep.Summary.Present},
		{"Absent", rep.Summary.Absent},
		{"Late", rep.Summary.Late},
		{"Attendance rate", rate},
	}
	for i, row := range summary {
		cell, _ := excelize.CoordinatesToCellName(1, i+1)
		if err := f.SetSheetRow(summarySheet, cell, &row); err != nil {
			return err
		}
	}

	if _, err := f.NewSheet(recordSheet); err != nil {
		return err
	}
	header := []interface{}{"Student ID", "Roll", "Name", "Class", "Status"}
	if err := f.SetSheetRow(recordSheet, "A1", &header); err != nil {
		return err
	}
	for i, rec := range rep.Records {
		row := []interface{}{rec.StudentID, rec.Roll, rec.Name, rec.Class, string(rec.Status)}
		cell, _ := excelize.CoordinatesToCellName(1, i+2)
		if err := f.SetSheetRow(recordSheet, cell, &row); err != nil {
			return err
		}
	}

	return f.Write(w)
}

// Filename is the download name for a report.
func Filename(date string) string {
	return "attendance_" + date + ".xlsx"
}
