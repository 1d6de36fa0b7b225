package export

import (
	"fmt"
	"strings"

	"github.com/xuri/excelize/v2"
)

const maxSheetName = 31

// XLSXExporter renders each sheet into its own worksheet.
type XLSXExporter struct{}

// NewXLSXExporter constructs an XLSX exporter.
func NewXLSXExporter() *XLSXExporter {
	return &XLSXExporter{}
}

// ContentType implements Renderer.
func (e *XLSXExporter) ContentType() string {
	return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
}

// Extension implements Renderer.
func (e *XLSXExporter) Extension() string { return "xlsx" }

// Render writes the document as a workbook.
func (e *XLSXExporter) Render(doc Document) ([]byte, error) {
	if err := doc.validate("xlsx"); err != nil {
		return nil, err
	}
	f := excelize.NewFile()
	defer f.Close() //nolint:errcheck

	headerStyle, err := f.NewStyle(&excelize.Style{
		Font:      &excelize.Font{Bold: true, Size: 11, Color: "#FFFFFF"},
		Fill:      excelize.Fill{Type: "pattern", Color: []string{"#4472C4"}, Pattern: 1},
		Alignment: &excelize.Alignment{Horizontal: "center", Vertical: "center"},
	})
	if err != nil {
		return nil, fmt.Errorf("xlsx header style: %w", err)
	}
	bodyStyle, err := f.NewStyle(&excelize.Style{
		Alignment: &excelize.Alignment{Horizontal: "center", Vertical: "center", WrapText: true},
	})
	if err != nil {
		return nil, fmt.Errorf("xlsx body style: %w", err)
	}

	used := make(map[string]int)
	for i, sheet := range doc.Sheets {
		name := uniqueSheetName(sheet.Name, i, used)
		if i == 0 {
			if err := f.SetSheetName("Sheet1", name); err != nil {
				return nil, fmt.Errorf("xlsx rename sheet: %w", err)
			}
		} else if _, err := f.NewSheet(name); err != nil {
			return nil, fmt.Errorf("xlsx new sheet: %w", err)
		}

		lastCol, _ := excelize.ColumnNumberToName(len(sheet.Headers))
		_ = f.SetColWidth(name, "A", "A", 12)
		if len(sheet.Headers) > 1 {
			_ = f.SetColWidth(name, "B", lastCol, 24)
		}

		for col, header := range sheet.Headers {
			cell, _ := excelize.CoordinatesToCellName(col+1, 1)
			if err := f.SetCellValue(name, cell, header); err != nil {
				return nil, fmt.Errorf("xlsx header: %w", err)
			}
		}
		_ = f.SetCellStyle(name, "A1", lastCol+"1", headerStyle)

		for r, row := range sheet.Rows {
			for col := range sheet.Headers {
				cell, _ := excelize.CoordinatesToCellName(col+1, r+2)
				if err := f.SetCellValue(name, cell, valueAt(row, col)); err != nil {
					return nil, fmt.Errorf("xlsx cell: %w", err)
				}
			}
		}
		if len(sheet.Rows) > 0 {
			_ = f.SetCellStyle(name, "A2", fmt.Sprintf("%s%d", lastCol, len(sheet.Rows)+1), bodyStyle)
		}
	}
	f.SetActiveSheet(0)

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("write xlsx: %w", err)
	}
	return buf.Bytes(), nil
}

// uniqueSheetName strips characters Excel rejects, truncates and de-duplicates.
func uniqueSheetName(raw string, index int, used map[string]int) string {
	name := strings.Map(func(r rune) rune {
		switch r {
		case ':', '\\', '/', '?', '*', '[', ']':
			return '-'
		}
		return r
	}, strings.TrimSpace(raw))
	if name == "" {
		name = fmt.Sprintf("Sheet %d", index+1)
	}
	if len([]rune(name)) > maxSheetName {
		name = string([]rune(name)[:maxSheetName])
	}
	base := name
	for used[strings.ToLower(name)] > 0 {
		used[strings.ToLower(base)]++
		suffix := fmt.Sprintf(" (%d)", used[strings.ToLower(base)])
		trimmed := []rune(base)
		if len(trimmed)+len(suffix) > maxSheetName {
			trimmed = trimmed[:maxSheetName-len(suffix)]
		}
		name = string(trimmed) + suffix
	}
	used[strings.ToLower(name)]++
	return name
}
