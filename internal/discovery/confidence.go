package discovery

import (
	"strings"
	"unicode"

	"github.com/sammcj/mcp-sheets/internal/sheets"
)

const (
	densityWeight   = 0.6
	headerBonus     = 0.2
	structureBonus  = 0.2
	headerProbeRows = 3
)

// Score rates how plausible it is that region holds a genuine table. The
// result is always within [0,1] and is 0 for a region with no cells.
func Score(grid sheets.Grid, region Region) float64 {
	data := extract(grid, region)

	totalCells := len(data) * region.Columns()
	if totalCells <= 0 {
		return 0
	}

	filled := 0
	for _, row := range data {
		filled += populated(row)
	}
	density := float64(filled) / float64(totalCells)

	confidence := densityWeight * density
	if HasHeaderRow(data) {
		confidence += headerBonus
	}
	if HasConsistentColumns(data) {
		confidence += structureBonus
	}
	return min(confidence, 1.0)
}

// extract returns the region's rows clipped to what the grid actually holds.
// Rows beyond the grid are dropped; short rows stay short.
func extract(grid sheets.Grid, region Region) sheets.Grid {
	var data sheets.Grid
	for i := region.StartRow; i <= region.EndRow && i < len(grid); i++ {
		if i < 0 {
			continue
		}
		row := grid[i]
		if region.StartColumn >= len(row) {
			data = append(data, sheets.Row{})
			continue
		}
		end := min(region.EndColumn+1, len(row))
		data = append(data, row[region.StartColumn:end])
	}
	return data
}

// HasHeaderRow reports whether the first row is mostly text while the next
// few rows carry at least one number. An all-text table with a real header
// is therefore reported as headerless.
func HasHeaderRow(data sheets.Grid) bool {
	if len(data) < 2 || len(data[0]) == 0 {
		return false
	}

	header := data[0]
	textCells := 0
	for _, c := range header {
		if c.IsText() && !c.IsEmpty() && !looksNumeric(c.String()) {
			textCells++
		}
	}

	numericCells := 0
	for _, row := range data[1:min(len(data), 1+headerProbeRows)] {
		for _, c := range row {
			if !c.IsEmpty() && looksNumeric(c.String()) {
				numericCells++
			}
		}
	}

	return float64(textCells) > float64(len(header))*0.5 && numericCells > 0
}

// HasConsistentColumns reports whether at least 60% of columns are dominated
// (80% or more) by either numeric-looking or non-numeric values.
func HasConsistentColumns(data sheets.Grid) bool {
	if len(data) < 2 {
		return false
	}
	width := data.ColumnCount()
	if width == 0 {
		return false
	}

	consistent := 0
	for col := range width {
		values, numeric := 0, 0
		for _, row := range data {
			if col >= len(row) || row[col].IsEmpty() {
				continue
			}
			values++
			if looksNumeric(row[col].String()) {
				numeric++
			}
		}
		if values < 2 {
			continue
		}
		if atLeast(numeric, values, 80) || atLeast(values-numeric, values, 80) {
			consistent++
		}
	}

	return atLeast(consistent, width, 60)
}

// looksNumeric reports whether s is all digits once '.' and '-' are removed
func looksNumeric(s string) bool {
	return allDigits(strings.NewReplacer(".", "", "-", "").Replace(s))
}

func allDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if !unicode.IsDigit(r) {
			return false
		}
	}
	return true
}

// atLeast reports n/total >= pct/100 without floating point rounding
func atLeast(n, total, pct int) bool {
	return total > 0 && n*100 >= total*pct
}
