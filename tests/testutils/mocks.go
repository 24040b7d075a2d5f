package testutils

import (
	"context"
	"fmt"
	"sync"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/sammcj/mcp-sheets/internal/sheets"
	"github.com/sirupsen/logrus"
)

// MockTool implements the Tool interface for testing
type MockTool struct {
	name       string
	definition mcp.Tool
	executeErr error
	result     *mcp.CallToolResult
}

// NewMockTool creates a new mock tool
func NewMockTool(name string) *MockTool {
	return &MockTool{
		name: name,
		definition: mcp.NewTool(name,
			mcp.WithDescription("Mock tool for testing"),
			mcp.WithString("input",
				mcp.Required(),
				mcp.Description("Test input parameter"),
			),
		),
		result: mcp.NewToolResultText("mock result"),
	}
}

// WithError configures the mock to return an error
func (m *MockTool) WithError(err error) *MockTool {
	m.executeErr = err
	return m
}

// WithResult configures the mock to return a specific result
func (m *MockTool) WithResult(result *mcp.CallToolResult) *MockTool {
	m.result = result
	return m
}

// Definition returns the tool's definition for MCP registration
func (m *MockTool) Definition() mcp.Tool {
	return m.definition
}

// Execute executes the mock tool
func (m *MockTool) Execute(ctx context.Context, logger *logrus.Logger, cache *sync.Map, args map[string]any) (*mcp.CallToolResult, error) {
	if m.executeErr != nil {
		return nil, m.executeErr
	}
	return m.result, nil
}

// MockSource is an in-memory sheets.Source keyed by worksheet title.
// GetValues ignores cell bounds and returns the whole worksheet.
type MockSource struct {
	mu     sync.Mutex
	sheets []sheets.SheetInfo
	grids  map[string]sheets.Grid
	errs   map[string]error
	calls  []string
}

// NewMockSource creates an empty MockSource
func NewMockSource() *MockSource {
	return &MockSource{
		grids: make(map[string]sheets.Grid),
		errs:  make(map[string]error),
	}
}

// WithSheet adds a worksheet built from string rows
func (m *MockSource) WithSheet(title string, rows [][]string) *MockSource {
	m.sheets = append(m.sheets, sheets.SheetInfo{ID: int64(len(m.sheets)), Title: title})
	m.grids[title] = sheets.GridFromStrings(rows)
	return m
}

// WithSheetError makes fetches of a worksheet fail
func (m *MockSource) WithSheetError(title string, err error) *MockSource {
	m.sheets = append(m.sheets, sheets.SheetInfo{ID: int64(len(m.sheets)), Title: title})
	m.errs[title] = err
	return m
}

// Calls returns the ranges requested so far
func (m *MockSource) Calls() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.calls...)
}

// GetSpreadsheetMetadata returns the configured worksheets
func (m *MockSource) GetSpreadsheetMetadata(ctx context.Context, spreadsheetID string) ([]sheets.SheetInfo, error) {
	return m.sheets, nil
}

// GetValues returns the grid of the worksheet named in rangeNotation
func (m *MockSource) GetValues(ctx context.Context, spreadsheetID, rangeNotation string) (sheets.Grid, error) {
	m.mu.Lock()
	m.calls = append(m.calls, rangeNotation)
	m.mu.Unlock()

	r, err := sheets.ParseRange(rangeNotation)
	if err != nil {
		return nil, err
	}
	if err := m.errs[r.Sheet]; err != nil {
		return nil, err
	}
	grid, ok := m.grids[r.Sheet]
	if !ok {
		return nil, fmt.Errorf("unable to parse range: %s", rangeNotation)
	}
	return grid, nil
}
