package patient

import (
	"encoding/csv"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/dentaldesk/dentaldesk/internal/platform/apperr"
)

var exportHeader = []string{"ID", "First Name", "Last Name", "Phone", "Email", "DOB", "Last Visit"}

func exportRow(p *Patient) []string {
	return []string{
		p.ID.String(),
		p.FirstName,
		p.LastName,
		p.Phone,
		deref(p.Email),
		isoDate(p.DateOfBirth),
		isoDate(p.LastVisitDate),
	}
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func isoDate(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.Format("2006-01-02")
}

// WriteCSV renders the export with a header row.
func WriteCSV(w io.Writer, patients []*Patient) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(exportHeader); err != nil {
		return err
	}
	for _, p := range patients {
		if err := cw.Write(exportRow(p)); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteXLSX renders the export as a single-sheet workbook with a bold header.
func WriteXLSX(w io.Writer, patients []*Patient) error {
	f := excelize.NewFile()
	defer f.Close()

	const sheet = "Patients"
	index, err := f.NewSheet(sheet)
	if err != nil {
		return fmt.Errorf("create sheet: %w", err)
	}
	f.DeleteSheet("Sheet1")
	f.SetActiveSheet(index)

	for c, v := range exportHeader {
		cell, _ := excelize.CoordinatesToCellName(c+1, 1)
		_ = f.SetCellValue(sheet, cell, v)
	}
	for r, p := range patients {
		for c, v := range exportRow(p) {
			cell, _ := excelize.CoordinatesToCellName(c+1, r+2)
			_ = f.SetCellValue(sheet, cell, v)
		}
	}

	_ = f.SetColWidth(sheet, "A", "A", 38)
	_ = f.SetColWidth(sheet, "B", "C", 18)
	_ = f.SetColWidth(sheet, "D", "D", 16)
	_ = f.SetColWidth(sheet, "E", "E", 28)
	_ = f.SetColWidth(sheet, "F", "G", 12)

	style, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err == nil {
		_ = f.SetCellStyle(sheet, "A1", "G1", style)
	}

	_, err = f.WriteTo(w)
	return err
}

// importColumns maps accepted CSV header names to Input fields.
var importColumns = map[string]func(r *ImportRow, v string){
	"first name":    func(r *ImportRow, v string) { r.FirstName = v },
	"last name":     func(r *ImportRow, v string) { r.LastName = v },
	"phone":         func(r *ImportRow, v string) { r.Phone = v },
	"email":         func(r *ImportRow, v string) { r.Email = v },
	"dob":           func(r *ImportRow, v string) { r.DateOfBirth = v },
	"date of birth": func(r *ImportRow, v string) { r.DateOfBirth = v },
	"gender":        func(r *ImportRow, v string) { r.Gender = v },
	"address":       func(r *ImportRow, v string) { r.Address = v },
	"notes":         func(r *ImportRow, v string) { r.Notes = v },
	"allergies": func(r *ImportRow, v string) {
		if v != "" {
			r.Allergies = strings.Split(v, ";")
		}
	},
}

// ParseImportCSV reads rows using the header line to locate columns. Unknown
// columns are ignored, so an export file can be imported back.
func ParseImportCSV(r io.Reader) ([]ImportRow, error) {
	cr := csv.NewReader(r)
	cr.TrimLeadingSpace = true
	cr.FieldsPerRecord = -1

	header, err := cr.Read()
	if err == io.EOF {
		return nil, apperr.Validation("csv file is empty")
	}
	if err != nil {
		return nil, apperr.Validation("invalid csv: %v", err)
	}

	setters := make([]func(*ImportRow, string), len(header))
	found := 0
	for i, h := range header {
		if set, ok := importColumns[strings.ToLower(strings.TrimSpace(strings.TrimPrefix(h, "\ufeff")))]; ok {
			setters[i] = set
			found++
		}
	}
	if found == 0 {
		return nil, apperr.Validation("csv header has no recognised columns")
	}

	var rows []ImportRow
	for {
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, apperr.Validation("invalid csv: %v", err)
		}
		var row ImportRow
		for i, v := range rec {
			if i < len(setters) && setters[i] != nil {
				setters[i](&row, strings.TrimSpace(v))
			}
		}
		rows = append(rows, row)
	}
	return rows, nil
}
