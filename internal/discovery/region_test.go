package discovery

import (
	"testing"

	"github.com/sammcj/mcp-sheets/internal/sheets"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFindRegions_FullGridIsOneRegion(t *testing.T) {
	grid := strings2grid(
		[]string{"Name", "Age"},
		[]string{"Alice", "30"},
		[]string{"Bob", "25"},
		[]string{"Carol", "40"},
	)

	regions := FindRegions(grid, 2, 2)

	require.Len(t, regions, 1)
	assert.Equal(t, Region{StartRow: 0, EndRow: 3, StartColumn: 0, EndColumn: 1}, regions[0])
}

func TestFindRegions_EveryActiveGridSpansWholeGrid(t *testing.T) {
	for rows := 2; rows <= 6; rows++ {
		for minCols := 1; minCols <= 3; minCols++ {
			data := make([][]string, rows)
			for i := range data {
				data[i] = []string{"a", "b", "c"}
			}
			regions := FindRegions(strings2grid(data...), rows, minCols)
			require.Len(t, regions, 1)
			assert.Equal(t, Region{StartRow: 0, EndRow: rows - 1, StartColumn: 0, EndColumn: 2}, regions[0])
		}
	}
}

func TestFindRegions_ShortGrid(t *testing.T) {
	grid := strings2grid([]string{"a", "b"}, []string{"c", "d"})

	assert.Empty(t, FindRegions(grid, 3, 1))
	assert.Empty(t, FindRegions(nil, 1, 1))
}

func TestFindRegions_GapSplitsRegions(t *testing.T) {
	grid := strings2grid(
		[]string{"a", "b"},
		[]string{"c", "d"},
		[]string{},
		[]string{"", "  "},
		[]string{},
		[]string{"e", "f"},
		[]string{"g", "h"},
	)

	regions := FindRegions(grid, 2, 1)

	require.Len(t, regions, 2)
	assert.Equal(t, Region{StartRow: 0, EndRow: 1, StartColumn: 0, EndColumn: 1}, regions[0])
	assert.Equal(t, Region{StartRow: 5, EndRow: 6, StartColumn: 0, EndColumn: 1}, regions[1])
}

func TestFindRegions_ShortBlockDropped(t *testing.T) {
	grid := strings2grid(
		[]string{"lonely"},
		[]string{},
		[]string{"a", "b"},
		[]string{"c", "d"},
		[]string{"e", "f"},
	)

	regions := FindRegions(grid, 2, 1)

	require.Len(t, regions, 1)
	assert.Equal(t, 2, regions[0].StartRow)
	assert.Equal(t, 4, regions[0].EndRow)
}

func TestFindRegions_MinColumnsMakesRowsInactive(t *testing.T) {
	grid := strings2grid(
		[]string{"a", "b", "c"},
		[]string{"d", "e", "f"},
		[]string{"only one"},
		[]string{"g", "h", "i"},
		[]string{"j", "k", "l"},
	)

	regions := FindRegions(grid, 2, 2)

	require.Len(t, regions, 2)
	assert.Equal(t, 1, regions[0].EndRow)
	assert.Equal(t, 3, regions[1].StartRow)
	// columns always span the grid width
	assert.Equal(t, 2, regions[1].EndColumn)
}

func TestFindRegions_NumericZeroIsPopulated(t *testing.T) {
	grid := sheets.NewGrid([][]any{{0, false}, {0.0, true}})

	regions := FindRegions(grid, 2, 2)

	require.Len(t, regions, 1)
}

func TestRegion_Dimensions(t *testing.T) {
	r := Region{StartRow: 3, EndRow: 12, StartColumn: 0, EndColumn: 4}
	assert.Equal(t, 10, r.Rows())
	assert.Equal(t, 5, r.Columns())
}
