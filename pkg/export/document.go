package export

import "fmt"

// Sheet is one titled table, typically a single timetable grid.
type Sheet struct {
	Name    string
	Headers []string
	Rows    [][]string
}

// Document groups the sheets rendered into one export file.
type Document struct {
	Title  string
	Sheets []Sheet
}

// Renderer turns a Document into file bytes.
type Renderer interface {
	Render(doc Document) ([]byte, error)
	ContentType() string
	Extension() string
}

func (d Document) validate(format string) error {
	if len(d.Sheets) == 0 {
		return fmt.Errorf("%s requires at least one sheet", format)
	}
	for _, sheet := range d.Sheets {
		if len(sheet.Headers) == 0 {
			return fmt.Errorf("%s sheet %q requires at least one header", format, sheet.Name)
		}
	}
	return nil
}

// valueAt returns row[i], or "" when the row is short.
func valueAt(row []string, i int) string {
	if i < len(row) {
		return row[i]
	}
	return ""
}
