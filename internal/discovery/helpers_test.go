package discovery

import (
	"context"

	"github.com/sammcj/mcp-sheets/internal/sheets"
	"github.com/sirupsen/logrus"
)

// fakeSource serves in-memory grids keyed by sheet title
type fakeSource struct {
	sheets  []sheets.SheetInfo
	grids   map[string]sheets.Grid
	failing map[string]error
	metaErr error
	calls   []string
}

func newFakeSource() *fakeSource {
	return &fakeSource{grids: map[string]sheets.Grid{}, failing: map[string]error{}}
}

func (f *fakeSource) addSheet(title string, rows [][]any) *fakeSource {
	f.sheets = append(f.sheets, sheets.SheetInfo{ID: int64(len(f.sheets)), Title: title})
	f.grids[title] = sheets.NewGrid(rows)
	return f
}

func (f *fakeSource) GetSpreadsheetMetadata(ctx context.Context, spreadsheetID string) ([]sheets.SheetInfo, error) {
	f.calls = append(f.calls, "metadata")
	if f.metaErr != nil {
		return nil, f.metaErr
	}
	return f.sheets, nil
}

func (f *fakeSource) GetValues(ctx context.Context, spreadsheetID, rangeNotation string) (sheets.Grid, error) {
	f.calls = append(f.calls, rangeNotation)
	r, err := sheets.ParseRange(rangeNotation)
	if err != nil {
		return nil, err
	}
	if err := f.failing[r.Sheet]; err != nil {
		return nil, err
	}

	grid := f.grids[r.Sheet]
	var out sheets.Grid
	for i := r.StartRow - 1; i < r.EndRow && i < len(grid); i++ {
		row := grid[i]
		if r.StartCol-1 >= len(row) {
			out = append(out, sheets.Row{})
			continue
		}
		out = append(out, row[r.StartCol-1:min(r.EndCol, len(row))])
	}
	return sheets.TrimGrid(out), nil
}

func testLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetLevel(logrus.ErrorLevel)
	return logger
}

func strings2grid(rows ...[]string) sheets.Grid {
	return sheets.GridFromStrings(rows)
}

// mixedSheet has a sparse two-row note block (scores 0.32) followed by a
// well formed five column table (scores 1.0)
func mixedSheet() [][]any {
	return [][]any{
		{"note"},
		{"more"},
		{},
		{"Name", "Qty", "Price", "City", "Code"},
		{"a", "1", "2.5", "x", "k1"},
		{"b", "2", "3.5", "y", "k2"},
	}
}
