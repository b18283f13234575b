package models

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"bitbucket.org/mmdatafocus/ptw_backend/config"
	"bitbucket.org/mmdatafocus/ptw_backend/utils"
	"github.com/xuri/excelize/v2"
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"
)

const (
	// ImportModeUpsert merges uploaded rows into the existing set, keyed on
	// permit number. Row failures are isolated.
	ImportModeUpsert = "upsert"
	// ImportModeReplace wipes the table and loads the upload as the new
	// dataset in a single transaction.
	ImportModeReplace = "replace"
)

// importBatchSize bounds concurrency: one goroutine per row within a batch,
// and the pipeline waits for a batch to settle before starting the next.
const importBatchSize = 50

// headerAliases maps each canonical column to the header spellings accepted
// in uploads. Matching is case-insensitive on the trimmed header cell.
var headerAliases = map[string][]string{
	"number":      {"Number", "number", "PTW No"},
	"description": {"Description", "description"},
	"company":     {"Company", "company", "Contractor"},
	"location":    {"Location", "location", "Area"},
	"type":        {"Type", "type", "Work Type", "PTW Type"},
	"project":     {"Project", "project"},
	"owner":       {"Owner", "owner", "Permit Owner"},
	"day":         {"Day", "day", "Date", "Shift"},
	"status":      {"Status", "status", "State"},
}

type RowError struct {
	Row   int               `json:"row"`
	Error string            `json:"error"`
	Data  map[string]string `json:"data"`
}

type UploadReport struct {
	Mode         string     `json:"mode"`
	TotalRows    int        `json:"total_rows"`
	SuccessCount int        `json:"success_count"`
	Errors       []RowError `json:"errors"`
}

type PermitRow struct {
	// RowNumber is the 1-based spreadsheet row (header is row 1, so the
	// first data row reports as 2).
	RowNumber int
	Permit    Permit
	Raw       map[string]string
}

// resolveHeaders maps column index -> canonical field name. Unknown columns
// are ignored so uploads can carry extra bookkeeping columns.
func resolveHeaders(header []string) map[int]string {
	byAlias := make(map[string]string)
	for field, aliases := range headerAliases {
		for _, alias := range aliases {
			byAlias[strings.ToLower(alias)] = field
		}
	}
	resolved := make(map[int]string)
	for idx, cell := range header {
		if field, ok := byAlias[strings.ToLower(strings.TrimSpace(cell))]; ok {
			resolved[idx] = field
		}
	}
	return resolved
}

func validatePermitRow(p *Permit) error {
	if strings.TrimSpace(p.Number) == "" {
		return errors.New("number is required")
	}
	if strings.TrimSpace(p.Company) == "" {
		return errors.New("company is required")
	}
	if strings.TrimSpace(p.Type) == "" {
		return errors.New("type is required")
	}
	if strings.TrimSpace(p.Status) == "" {
		return errors.New("status is required")
	}
	day := ParseDayValue(p.Day)
	if day.Kind == DayRaw {
		if day.Text == "" {
			return errors.New("day is required")
		}
		return fmt.Errorf("day %q is neither a shift (Day/Night) nor a date", p.Day)
	}
	return nil
}

// ParsePermitWorkbook reads the first sheet of an xlsx upload into permit
// rows plus per-row validation errors. An empty or header-only sheet yields
// zero rows and zero errors.
func ParsePermitWorkbook(r io.Reader) ([]PermitRow, []RowError, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, nil, errors.New("file is not a readable xlsx workbook")
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, nil, errors.New("workbook has no sheets")
	}
	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, nil, err
	}
	if len(rows) <= 1 {
		return nil, nil, nil
	}

	columns := resolveHeaders(rows[0])
	if len(columns) == 0 {
		return nil, nil, errors.New("no recognizable columns in header row")
	}

	var (
		parsed    []PermitRow
		rowErrors []RowError
	)
	for idx, row := range rows[1:] {
		rowNumber := idx + 2

		raw := make(map[string]string)
		for col, field := range columns {
			if col < len(row) {
				raw[field] = strings.TrimSpace(row[col])
			}
		}
		if len(raw) == 0 || allEmpty(raw) {
			continue
		}

		permit := Permit{
			Number:      raw["number"],
			Description: raw["description"],
			Company:     raw["company"],
			Location:    raw["location"],
			Type:        raw["type"],
			Project:     raw["project"],
			Owner:       raw["owner"],
			Day:         ParseDayValue(raw["day"]).String(),
			Status:      raw["status"],
		}
		if err := validatePermitRow(&permit); err != nil {
			rowErrors = append(rowErrors, RowError{Row: rowNumber, Error: err.Error(), Data: raw})
			continue
		}
		parsed = append(parsed, PermitRow{RowNumber: rowNumber, Permit: permit, Raw: raw})
	}
	return parsed, rowErrors, nil
}

func allEmpty(raw map[string]string) bool {
	for _, v := range raw {
		if v != "" {
			return false
		}
	}
	return true
}

// ImportPermits ingests an xlsx upload. Upsert mode isolates row failures;
// replace mode is all-or-nothing for the rows that pass validation.
func ImportPermits(ctx context.Context, r io.Reader, mode string) (*UploadReport, error) {
	if mode == "" {
		mode = ImportModeUpsert
	}
	if mode != ImportModeUpsert && mode != ImportModeReplace {
		return nil, fmt.Errorf("unknown import mode %q", mode)
	}

	parsed, rowErrors, err := ParsePermitWorkbook(r)
	if err != nil {
		return nil, err
	}

	report := &UploadReport{
		Mode:      mode,
		TotalRows: len(parsed) + len(rowErrors),
		Errors:    rowErrors,
	}
	if report.TotalRows == 0 {
		// Nothing to do; replace mode must not wipe the table on an empty
		// upload.
		return report, nil
	}

	switch mode {
	case ImportModeReplace:
		if err := importReplace(ctx, parsed, report); err != nil {
			return nil, err
		}
	default:
		if err := importUpsert(ctx, parsed, report); err != nil {
			return nil, err
		}
	}
	return report, nil
}

func importReplace(ctx context.Context, parsed []PermitRow, report *UploadReport) error {
	release, err := utils.ImportLock(ctx, "permits", "models", "importReplace")
	if err != nil {
		return err
	}
	defer release()

	permits := make([]Permit, len(parsed))
	for i, row := range parsed {
		permits[i] = row.Permit
	}
	if err := ReplaceAllPermits(ctx, permits); err != nil {
		return err
	}
	report.SuccessCount = len(permits)
	return nil
}

func importUpsert(ctx context.Context, parsed []PermitRow, report *UploadReport) error {
	logger := config.GetLogger()
	db := config.GetDB()

	for start := 0; start < len(parsed); start += importBatchSize {
		end := start + importBatchSize
		if end > len(parsed) {
			end = len(parsed)
		}
		batch := parsed[start:end]

		// Each slot belongs to exactly one goroutine, so no mutex is needed;
		// a row failure fills its slot instead of failing the batch.
		batchErrors := make([]*RowError, len(batch))
		g, gctx := errgroup.WithContext(ctx)
		for i, row := range batch {
			i, row := i, row
			g.Go(func() error {
				permit := row.Permit
				if err := UpsertPermit(gctx, db, &permit); err != nil {
					config.LogError(logger, "models", "importUpsert", "Row upsert failed", row.Permit.Number, err)
					batchErrors[i] = &RowError{Row: row.RowNumber, Error: err.Error(), Data: row.Raw}
				}
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return err
		}
		for _, rowErr := range batchErrors {
			if rowErr != nil {
				report.Errors = append(report.Errors, *rowErr)
			} else {
				report.SuccessCount++
			}
		}
	}

	if report.SuccessCount > 0 {
		err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			return AppendBulkChange(tx, ctx, ChangeActionUpload, report.SuccessCount)
		})
		if err != nil {
			config.LogError(logger, "models", "importUpsert", "Failed to append bulk change record", report.SuccessCount, err)
		}
	}
	return nil
}

// errorReportColumns fixes the column order of the downloadable error sheet.
var errorReportColumns = []string{"number", "description", "company", "location", "type", "project", "owner", "day", "status"}

// ErrorReportWorkbook renders the failed rows of an upload as a workbook the
// dashboard offers for download (upload_errors.xlsx).
func ErrorReportWorkbook(rowErrors []RowError) (*excelize.File, error) {
	f := excelize.NewFile()
	sheet := "Errors"
	f.SetSheetName(f.GetSheetName(0), sheet)

	headers := append([]string{"Row", "Error"}, []string{
		"Number", "Description", "Company", "Location", "Type", "Project", "Owner", "Day", "Status",
	}...)
	for i, h := range headers {
		cell, err := excelize.CoordinatesToCellName(i+1, 1)
		if err != nil {
			return nil, err
		}
		if err := f.SetCellValue(sheet, cell, h); err != nil {
			return nil, err
		}
	}

	for rowIdx, rowErr := range rowErrors {
		values := []interface{}{rowErr.Row, rowErr.Error}
		for _, field := range errorReportColumns {
			values = append(values, rowErr.Data[field])
		}
		for colIdx, v := range values {
			cell, err := excelize.CoordinatesToCellName(colIdx+1, rowIdx+2)
			if err != nil {
				return nil, err
			}
			if err := f.SetCellValue(sheet, cell, v); err != nil {
				return nil, err
			}
		}
	}
	return f, nil
}
