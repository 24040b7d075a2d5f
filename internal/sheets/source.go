package sheets

import (
	"context"
	"fmt"
	"strings"

	"github.com/xuri/excelize/v2"
)

// Source supplies worksheet metadata and cell values for a spreadsheet.
// Both reads are point-in-time and are not retried here.
type Source interface {
	GetSpreadsheetMetadata(ctx context.Context, spreadsheetID string) ([]SheetInfo, error)
	GetValues(ctx context.Context, spreadsheetID, rangeNotation string) (Grid, error)
}

// SourceError wraps an upstream failure from a Source
type SourceError struct {
	Operation     string
	SpreadsheetID string
	Range         string
	Cause         error
}

func (e *SourceError) Error() string {
	if e.Range != "" {
		return fmt.Sprintf("source error during %s on %s (range %s): %v", e.Operation, e.SpreadsheetID, e.Range, e.Cause)
	}
	return fmt.Sprintf("source error during %s on %s: %v", e.Operation, e.SpreadsheetID, e.Cause)
}

func (e *SourceError) Unwrap() error {
	return e.Cause
}

// CellRange is a parsed `{sheet}!{A1}:{A1}` reference using 1-based coordinates.
type CellRange struct {
	Sheet    string
	StartRow int
	StartCol int
	EndRow   int
	EndCol   int
}

// ParseRange parses range notation such as `Sales!A1:Z100`, `'My Sheet'!B2:C9`
// or `Sales!C3`. A bare sheet name selects the whole sheet (zero bounds).
func ParseRange(notation string) (CellRange, error) {
	if strings.TrimSpace(notation) == "" {
		return CellRange{}, fmt.Errorf("range cannot be empty")
	}

	sep := strings.LastIndex(notation, "!")
	if sep < 0 {
		return CellRange{Sheet: unquoteSheet(notation)}, nil
	}

	r := CellRange{Sheet: unquoteSheet(notation[:sep])}
	if r.Sheet == "" {
		return CellRange{}, fmt.Errorf("range %q has no sheet name", notation)
	}

	cells := notation[sep+1:]
	parts := strings.Split(cells, ":")
	if len(parts) > 2 {
		return CellRange{}, fmt.Errorf("invalid range format %q, expected 'Sheet!A1:B10'", notation)
	}

	var err error
	r.StartCol, r.StartRow, err = excelize.CellNameToCoordinates(parts[0])
	if err != nil {
		return CellRange{}, fmt.Errorf("invalid start cell in %q: %w", notation, err)
	}
	r.EndCol, r.EndRow = r.StartCol, r.StartRow
	if len(parts) == 2 {
		r.EndCol, r.EndRow, err = excelize.CellNameToCoordinates(parts[1])
		if err != nil {
			return CellRange{}, fmt.Errorf("invalid end cell in %q: %w", notation, err)
		}
	}

	if r.StartRow > r.EndRow || r.StartCol > r.EndCol {
		return CellRange{}, fmt.Errorf("invalid range %q: start cell must be before end cell", notation)
	}
	return r, nil
}

// WholeSheet reports whether the range has no cell bounds
func (r CellRange) WholeSheet() bool {
	return r.StartRow == 0 && r.EndRow == 0
}

func unquoteSheet(s string) string {
	s = strings.TrimSpace(s)
	if len(s) >= 2 && strings.HasPrefix(s, "'") && strings.HasSuffix(s, "'") {
		s = strings.ReplaceAll(s[1:len(s)-1], "''", "'")
	}
	return s
}

// TrimGrid drops trailing empty cells from each row and trailing empty rows,
// matching the shape the Sheets values API returns.
func TrimGrid(g Grid) Grid {
	out := make(Grid, len(g))
	for i, row := range g {
		end := len(row)
		for end > 0 && isUnset(row[end-1]) {
			end--
		}
		out[i] = row[:end]
	}
	last := len(out)
	for last > 0 && len(out[last-1]) == 0 {
		last--
	}
	return out[:last]
}

// isUnset reports a cell the API would omit entirely (nil or empty string)
func isUnset(c Cell) bool {
	return c.value == nil || c.value == ""
}
