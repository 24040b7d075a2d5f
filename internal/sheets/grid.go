package sheets

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// Cell holds a single worksheet value as returned by a Source.
// The raw value is one of string, float64, bool or nil.
type Cell struct {
	value any
}

// NewCell wraps a raw scalar. Integer kinds are normalised to float64 so that
// every source produces the same shapes as the Sheets API JSON decoding.
func NewCell(v any) Cell {
	switch n := v.(type) {
	case int:
		return Cell{value: float64(n)}
	case int64:
		return Cell{value: float64(n)}
	case int32:
		return Cell{value: float64(n)}
	case float32:
		return Cell{value: float64(n)}
	}
	return Cell{value: v}
}

// Raw returns the underlying scalar
func (c Cell) Raw() any {
	return c.value
}

// IsText reports whether the cell holds a string value
func (c Cell) IsText() bool {
	_, ok := c.value.(string)
	return ok
}

// IsEmpty reports whether the cell is null or a blank/whitespace-only string.
func (c Cell) IsEmpty() bool {
	if c.value == nil {
		return true
	}
	return strings.TrimSpace(c.String()) == ""
}

// String returns the stringified value without trimming.
func (c Cell) String() string {
	switch v := c.value.(type) {
	case nil:
		return ""
	case string:
		return v
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(v)
	default:
		return fmt.Sprint(v)
	}
}

// MarshalJSON encodes the raw value
func (c Cell) MarshalJSON() ([]byte, error) {
	return json.Marshal(c.value)
}

// UnmarshalJSON decodes any JSON scalar into the cell
func (c *Cell) UnmarshalJSON(data []byte) error {
	var v any
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	*c = NewCell(v)
	return nil
}

// MarshalYAML encodes the raw value
func (c Cell) MarshalYAML() (any, error) {
	return c.value, nil
}

// Row is an ordered sequence of cells; rows of a grid may differ in length.
type Row []Cell

// Grid is a possibly ragged 2D block of cells. Row 0 is the top row of the
// range it was fetched for.
type Grid []Row

// NewGrid builds a Grid from raw nested values such as the Sheets API returns.
func NewGrid(values [][]any) Grid {
	grid := make(Grid, len(values))
	for i, rawRow := range values {
		row := make(Row, len(rawRow))
		for j, v := range rawRow {
			row[j] = NewCell(v)
		}
		grid[i] = row
	}
	return grid
}

// GridFromStrings builds a Grid from string rows (excelize returns these).
func GridFromStrings(values [][]string) Grid {
	grid := make(Grid, len(values))
	for i, rawRow := range values {
		row := make(Row, len(rawRow))
		for j, v := range rawRow {
			row[j] = NewCell(v)
		}
		grid[i] = row
	}
	return grid
}

// ColumnCount is the length of the widest row
func (g Grid) ColumnCount() int {
	width := 0
	for _, row := range g {
		if len(row) > width {
			width = len(row)
		}
	}
	return width
}

// At returns the cell at (row, col) and whether it exists in the ragged grid.
func (g Grid) At(row, col int) (Cell, bool) {
	if row < 0 || row >= len(g) || col < 0 || col >= len(g[row]) {
		return Cell{}, false
	}
	return g[row][col], true
}

// SheetInfo identifies one worksheet of a spreadsheet
type SheetInfo struct {
	ID    int64  `json:"sheet_id" yaml:"sheet_id"`
	Title string `json:"title" yaml:"title"`
}
