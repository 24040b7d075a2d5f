package discovery

import (
	"testing"

	"github.com/sammcj/mcp-sheets/internal/sheets"
	"github.com/stretchr/testify/assert"
)

func TestScore_HeaderedTable(t *testing.T) {
	grid := strings2grid(
		[]string{"Name", "Age"},
		[]string{"Alice", "30"},
		[]string{"Bob", "25"},
		[]string{"Carol", "40"},
	)
	region := Region{StartRow: 0, EndRow: 3, StartColumn: 0, EndColumn: 1}

	assert.True(t, HasHeaderRow(grid))
	// Age mixes one text header with three numbers, so only Name is consistent
	assert.False(t, HasConsistentColumns(grid))
	assert.InDelta(t, 0.8, Score(grid, region), 1e-9)
	assert.GreaterOrEqual(t, Score(grid, region), DefaultMinConfidence)
}

func TestScore_AllEmptyRegionIsZero(t *testing.T) {
	grid := strings2grid([]string{"", " "}, []string{"\t", ""})

	assert.Equal(t, 0.0, Score(grid, Region{StartRow: 0, EndRow: 1, StartColumn: 0, EndColumn: 1}))
}

func TestScore_RegionOutsideGrid(t *testing.T) {
	grid := strings2grid([]string{"a"}, []string{"b"})

	assert.Equal(t, 0.0, Score(grid, Region{StartRow: 5, EndRow: 9, StartColumn: 0, EndColumn: 3}))
}

func TestScore_RaggedGapsCountAsCells(t *testing.T) {
	grid := strings2grid([]string{"a", "b", "c"}, []string{"d"})

	assert.InDelta(t, 0.6*4.0/6.0, Score(grid, Region{StartRow: 0, EndRow: 1, StartColumn: 0, EndColumn: 2}), 1e-9)
}

func TestScore_AlwaysWithinUnitInterval(t *testing.T) {
	grids := []sheets.Grid{
		strings2grid([]string{"Name", "Qty"}, []string{"a", "1"}, []string{"b", "2"}, []string{"c", "3"}),
		strings2grid([]string{"1", "2"}, []string{"3", "4"}),
		strings2grid([]string{"x"}, []string{}, []string{"", "", "", "y"}),
		sheets.NewGrid([][]any{{"ID", "Active"}, {1, true}, {2, false}}),
		strings2grid([]string{"Name", "Age", "City"}, []string{"a", "1", "NYC"}, []string{"b", "2", "LA"}),
	}

	for _, grid := range grids {
		region := Region{StartRow: 0, EndRow: len(grid) - 1, StartColumn: 0, EndColumn: grid.ColumnCount() - 1}
		score := Score(grid, region)
		assert.GreaterOrEqual(t, score, 0.0)
		assert.LessOrEqual(t, score, 1.0)
	}

	perfect := strings2grid(
		[]string{"Name", "City", "Qty"},
		[]string{"a", "x", "1"},
		[]string{"b", "y", "2"},
		[]string{"c", "z", "3"},
		[]string{"d", "w", "4"},
	)
	assert.InDelta(t, 1.0, Score(perfect, Region{StartRow: 0, EndRow: 4, StartColumn: 0, EndColumn: 2}), 1e-9)
}

func TestHasHeaderRow(t *testing.T) {
	tests := []struct {
		name     string
		grid     sheets.Grid
		expected bool
	}{
		{"text header over numbers", strings2grid([]string{"Item", "Price"}, []string{"pen", "1.50"}), true},
		{"numeric header", strings2grid([]string{"1", "2"}, []string{"3", "4"}), false},
		{"typed numeric header", sheets.NewGrid([][]any{{2023, 2024}, {1, 2}}), false},
		{"all text table", strings2grid([]string{"Name", "City"}, []string{"Alice", "Paris"}), false},
		{"single row", strings2grid([]string{"Name", "Age"}), false},
		{"half text header", strings2grid([]string{"Name", "", "3", "4"}, []string{"a", "1"}), false},
		{"numbers only after third data row", strings2grid(
			[]string{"Name"}, []string{"a"}, []string{"b"}, []string{"c"}, []string{"4"},
		), false},
		{"negative decimal data", strings2grid([]string{"Delta"}, []string{"-0.5"}), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, HasHeaderRow(tt.grid))
		})
	}
}

func TestHasConsistentColumns(t *testing.T) {
	tests := []struct {
		name     string
		grid     sheets.Grid
		expected bool
	}{
		{"typed columns", strings2grid([]string{"1", "a"}, []string{"2", "b"}, []string{"3", "c"}), true},
		{"mixed columns", strings2grid([]string{"1", "a"}, []string{"x", "2"}), false},
		{"single row", strings2grid([]string{"1", "a"}), false},
		{"sparse columns", strings2grid([]string{"a", "", "1"}, []string{"b", "", ""}), false},
		{"three of five consistent", strings2grid(
			[]string{"Name", "Qty", "Price", "City", "Code"},
			[]string{"a", "1", "2.5", "x", "k1"},
			[]string{"b", "2", "3.5", "y", "k2"},
		), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, HasConsistentColumns(tt.grid))
		})
	}
}

func TestLooksNumeric(t *testing.T) {
	for _, s := range []string{"0", "42", "3.14", "-7", "2024-01-15", "1.2.3"} {
		assert.True(t, looksNumeric(s), s)
	}
	for _, s := range []string{"", "-", ".", "1,000", "abc", " 12", "1e5"} {
		assert.False(t, looksNumeric(s), s)
	}
}
