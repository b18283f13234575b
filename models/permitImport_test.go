package models_test

import (
	"bytes"
	"fmt"
	"testing"

	"bitbucket.org/mmdatafocus/ptw_backend/models"
	"github.com/xuri/excelize/v2"
)

func buildWorkbook(t *testing.T, rows [][]interface{}) *bytes.Buffer {
	t.Helper()
	f := excelize.NewFile()
	sheet := f.GetSheetName(0)
	for r, row := range rows {
		for c, v := range row {
			cell, err := excelize.CoordinatesToCellName(c+1, r+1)
			if err != nil {
				t.Fatalf("cell name: %v", err)
			}
			if err := f.SetCellValue(sheet, cell, v); err != nil {
				t.Fatalf("set cell: %v", err)
			}
		}
	}
	buf, err := f.WriteToBuffer()
	if err != nil {
		t.Fatalf("write workbook: %v", err)
	}
	return buf
}

func TestParsePermitWorkbookCanonicalHeaders(t *testing.T) {
	buf := buildWorkbook(t, [][]interface{}{
		{"Number", "Description", "Company", "Location", "Type", "Project", "Owner", "Day", "Status"},
		{"PTW-1", "hot work", "Acme", "Unit 1", "H", "TA24", "U Mya", "2024-03-05", "Active"},
	})

	rows, rowErrors, err := models.ParsePermitWorkbook(buf)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if len(rowErrors) != 0 {
		t.Fatalf("unexpected row errors: %+v", rowErrors)
	}
	if len(rows) != 1 {
		t.Fatalf("rows = %d, want 1", len(rows))
	}
	got := rows[0]
	if got.RowNumber != 2 {
		t.Fatalf("first data row should report as spreadsheet row 2, got %d", got.RowNumber)
	}
	if got.Permit.Number != "PTW-1" || got.Permit.Company != "Acme" || got.Permit.Day != "2024-03-05" {
		t.Fatalf("unexpected parse result: %+v", got.Permit)
	}
}

func TestParsePermitWorkbookHeaderAliases(t *testing.T) {
	buf := buildWorkbook(t, [][]interface{}{
		{"PTW No", "Contractor", "Area", "Work Type", "Permit Owner", "Shift", "State"},
		{"PTW-9", "Beta", "Tank Farm", "C", "Daw Hla", "Night", "Closed"},
	})

	rows, rowErrors, err := models.ParsePermitWorkbook(buf)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if len(rowErrors) != 0 {
		t.Fatalf("unexpected row errors: %+v", rowErrors)
	}
	if len(rows) != 1 {
		t.Fatalf("rows = %d, want 1", len(rows))
	}
	p := rows[0].Permit
	if p.Number != "PTW-9" || p.Company != "Beta" || p.Location != "Tank Farm" ||
		p.Type != "C" || p.Owner != "Daw Hla" || p.Day != "Night" || p.Status != "Closed" {
		t.Fatalf("alias mapping failed: %+v", p)
	}
}

func TestParsePermitWorkbookValidation(t *testing.T) {
	buf := buildWorkbook(t, [][]interface{}{
		{"Number", "Company", "Type", "Day", "Status"},
		{"PTW-1", "Acme", "H", "2024-03-05", "Active"}, // row 2: ok
		{"", "Acme", "H", "Day", "Active"},             // row 3: missing number
		{"PTW-3", "", "H", "Night", "Active"},          // row 4: missing company
		{"PTW-4", "Acme", "H", "someday", "Active"},    // row 5: bad day
		{"PTW-5", "Acme", "H", "", "Active"},           // row 6: missing day
	})

	rows, rowErrors, err := models.ParsePermitWorkbook(buf)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if len(rows) != 1 {
		t.Fatalf("valid rows = %d, want 1", len(rows))
	}
	if len(rowErrors) != 4 {
		t.Fatalf("row errors = %d, want 4: %+v", len(rowErrors), rowErrors)
	}
	wantRows := []int{3, 4, 5, 6}
	for i, re := range rowErrors {
		if re.Row != wantRows[i] {
			t.Fatalf("error %d reported row %d, want %d", i, re.Row, wantRows[i])
		}
		if re.Error == "" || re.Data == nil {
			t.Fatalf("error %d missing message or data: %+v", i, re)
		}
	}
}

func TestParsePermitWorkbookHeaderOnly(t *testing.T) {
	buf := buildWorkbook(t, [][]interface{}{
		{"Number", "Company", "Type", "Status"},
	})
	rows, rowErrors, err := models.ParsePermitWorkbook(buf)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if len(rows) != 0 || len(rowErrors) != 0 {
		t.Fatalf("header-only workbook should yield nothing, got %d rows %d errors", len(rows), len(rowErrors))
	}
}

func TestParsePermitWorkbookSkipsBlankRows(t *testing.T) {
	buf := buildWorkbook(t, [][]interface{}{
		{"Number", "Company", "Type", "Day", "Status"},
		{"", "", "", "", ""},
		{"PTW-2", "Acme", "C", "Night", "Active"},
	})
	rows, rowErrors, err := models.ParsePermitWorkbook(buf)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if len(rowErrors) != 0 {
		t.Fatalf("blank rows must not produce errors: %+v", rowErrors)
	}
	if len(rows) != 1 || rows[0].RowNumber != 3 {
		t.Fatalf("expected only row 3, got %+v", rows)
	}
}

func TestParsePermitWorkbookUnknownHeaders(t *testing.T) {
	buf := buildWorkbook(t, [][]interface{}{
		{"Foo", "Bar"},
		{"a", "b"},
	})
	if _, _, err := models.ParsePermitWorkbook(buf); err == nil {
		t.Fatal("a header row with no recognizable columns must fail")
	}
}

func TestParsePermitWorkbookRejectsGarbage(t *testing.T) {
	if _, _, err := models.ParsePermitWorkbook(bytes.NewReader([]byte("not an xlsx"))); err == nil {
		t.Fatal("garbage bytes must fail to parse")
	}
}

func TestErrorReportWorkbook(t *testing.T) {
	rowErrors := []models.RowError{
		{Row: 4, Error: "company is required", Data: map[string]string{"number": "PTW-3", "type": "H"}},
		{Row: 7, Error: "number is required", Data: map[string]string{"company": "Acme"}},
	}
	f, err := models.ErrorReportWorkbook(rowErrors)
	if err != nil {
		t.Fatalf("build workbook: %v", err)
	}

	sheets := f.GetSheetList()
	if len(sheets) != 1 || sheets[0] != "Errors" {
		t.Fatalf("expected single Errors sheet, got %v", sheets)
	}
	rows, err := f.GetRows("Errors")
	if err != nil {
		t.Fatalf("read rows: %v", err)
	}
	if len(rows) != 3 {
		t.Fatalf("rows = %d, want header + 2", len(rows))
	}
	if rows[1][0] != "4" || rows[1][1] != "company is required" {
		t.Fatalf("first error row mismatch: %v", rows[1])
	}
	if rows[2][0] != fmt.Sprint(7) {
		t.Fatalf("second error row mismatch: %v", rows[2])
	}
}
