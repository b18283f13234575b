package models

import (
	"context"
	"time"

	"github.com/xuri/excelize/v2"
)

const exportSheetName = "PTW Records"

// ExportFilename names the download after the day it was generated.
func ExportFilename(now time.Time) string {
	return "ptw-records-" + now.Format("2006-01-02") + ".xlsx"
}

var exportHeaders = []string{
	"Number", "Description", "Company", "Location", "Type", "Project", "Owner", "Day", "Status", "Created At",
}

// PermitsWorkbook renders the filtered record set back into a workbook with
// the same column shape uploads use, so an export can be re-imported.
func PermitsWorkbook(ctx context.Context, filter *PermitFilter) (*excelize.File, error) {
	permits, err := ListPermits(ctx, filter)
	if err != nil {
		return nil, err
	}

	f := excelize.NewFile()
	f.SetSheetName(f.GetSheetName(0), exportSheetName)

	for i, h := range exportHeaders {
		cell, err := excelize.CoordinatesToCellName(i+1, 1)
		if err != nil {
			return nil, err
		}
		if err := f.SetCellValue(exportSheetName, cell, h); err != nil {
			return nil, err
		}
	}

	for rowIdx := range permits {
		p := &permits[rowIdx]
		values := []interface{}{
			p.Number, p.Description, p.Company, p.Location, p.Type,
			p.Project, p.Owner, p.Day, p.Status,
			p.CreatedAt.Format("2006-01-02 15:04:05"),
		}
		for colIdx, v := range values {
			cell, err := excelize.CoordinatesToCellName(colIdx+1, rowIdx+2)
			if err != nil {
				return nil, err
			}
			if err := f.SetCellValue(exportSheetName, cell, v); err != nil {
				return nil, err
			}
		}
	}
	return f, nil
}
