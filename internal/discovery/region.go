package discovery

import "github.com/sammcj/mcp-sheets/internal/sheets"

// Region is a candidate table area. All bounds are 0-based and inclusive
// offsets into the grid it was found in.
type Region struct {
	StartRow    int `json:"start_row" yaml:"start_row"`
	EndRow      int `json:"end_row" yaml:"end_row"`
	StartColumn int `json:"start_column" yaml:"start_column"`
	EndColumn   int `json:"end_column" yaml:"end_column"`
}

// Rows is the number of rows the region spans
func (r Region) Rows() int {
	return r.EndRow - r.StartRow + 1
}

// Columns is the number of columns the region spans
func (r Region) Columns() int {
	return r.EndColumn - r.StartColumn + 1
}

// FindRegions scans the grid top to bottom and returns each run of
// consecutive rows holding at least minColumns populated cells, provided the
// run is at least minRows long. Columns always span the full grid width.
func FindRegions(grid sheets.Grid, minRows, minColumns int) []Region {
	var regions []Region
	if len(grid) == 0 || len(grid) < minRows {
		return regions
	}

	width := grid.ColumnCount()
	if width == 0 || width < minColumns {
		return regions
	}

	closeRun := func(start, end int) {
		if end-start+1 >= minRows {
			regions = append(regions, Region{StartRow: start, EndRow: end, StartColumn: 0, EndColumn: width - 1})
		}
	}

	start := -1
	for i, row := range grid {
		if populated(row) >= minColumns {
			if start == -1 {
				start = i
			}
			continue
		}
		if start != -1 {
			closeRun(start, i-1)
			start = -1
		}
	}
	if start != -1 {
		closeRun(start, len(grid)-1)
	}

	return regions
}

func populated(row sheets.Row) int {
	n := 0
	for _, c := range row {
		if !c.IsEmpty() {
			n++
		}
	}
	return n
}
