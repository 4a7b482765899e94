package causelist

import (
	"bytes"
	"fmt"

	"github.com/xuri/excelize/v2"
)

var excelHeaders = []string{
	"S. No.",
	"Case No.",
	"Bench",
	"Appellant",
	"Respondent",
	"A.Y.",
	"Disputed Amount",
	"Argued By",
	"Remarks",
}

// WriteExcel renders the cause list as an .xlsx workbook with one sheet
// named after the hearing date.
func WriteExcel(l *CauseList) (*bytes.Buffer, error) {
	f := excelize.NewFile()
	defer f.Close()

	sheet := l.Date
	if sheet == "" {
		sheet = "Cause List"
	}
	f.SetSheetName("Sheet1", sheet)

	f.SetCellValue(sheet, "A1", l.Title())
	titleStyle, _ := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true, Size: 14}})
	f.SetCellStyle(sheet, "A1", "A1", titleStyle)

	headerStyle, err := f.NewStyle(&excelize.Style{
		Font:      &excelize.Font{Bold: true},
		Alignment: &excelize.Alignment{Horizontal: "center"},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create header style: %w", err)
	}

	for i, header := range excelHeaders {
		cell, _ := excelize.CoordinatesToCellName(i+1, 3)
		f.SetCellValue(sheet, cell, header)
	}
	lastHeader, _ := excelize.CoordinatesToCellName(len(excelHeaders), 3)
	f.SetCellStyle(sheet, "A3", lastHeader, headerStyle)

	for i, e := range l.Entries {
		row := i + 4
		values := []interface{}{
			e.SerialNo,
			e.CaseNo,
			string(e.BenchType),
			e.Appellant,
			e.Respondent,
			e.AssessmentYear,
			e.DisputedAmount,
			string(e.ArguedBy),
			e.Remarks,
		}
		for col, v := range values {
			cell, _ := excelize.CoordinatesToCellName(col+1, row)
			f.SetCellValue(sheet, cell, v)
		}
	}

	f.SetColWidth(sheet, "A", "A", 8)
	f.SetColWidth(sheet, "B", "B", 20)
	f.SetColWidth(sheet, "D", "E", 30)
	f.SetColWidth(sheet, "I", "I", 30)

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("failed to write workbook: %w", err)
	}
	return buf, nil
}
