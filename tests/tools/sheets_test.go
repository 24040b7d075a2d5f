package tools_test

import (
	"errors"
	"testing"

	"github.com/sammcj/mcp-sheets/internal/config"
	"github.com/sammcj/mcp-sheets/internal/discovery"
	sheetsrc "github.com/sammcj/mcp-sheets/internal/sheets"
	"github.com/sammcj/mcp-sheets/internal/tools"
	"github.com/sammcj/mcp-sheets/internal/tools/sheets"
	"github.com/sammcj/mcp-sheets/tests/testutils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newWorkbookTool writes a two-sheet workbook and returns a tool that resolves
// relative paths against its directory
func newWorkbookTool(t *testing.T) *sheets.SheetsTool {
	t.Helper()

	dir := t.TempDir()
	testutils.WriteWorkbook(t, dir, "book.xlsx",
		testutils.Worksheet{Name: "Sales", Rows: [][]any{
			{"Name", "Qty", "Price", "Active", "Joined"},
			{"Alice", 3, 9.99, "yes", "2024-01-05"},
			{"Bob", 5, 4.5, "no", "2024-02-11"},
			{"Cara", 2, 12, "yes", "2024-03-20"},
			{"Dave", 8, 7.25, "yes", "2024-04-02"},
		}},
		testutils.Worksheet{Name: "Notes", Rows: [][]any{
			{"Prepared by finance"},
		}},
	)

	cfg := config.Default()
	cfg.Source = config.SourceAuto
	cfg.WorkbookDir = dir
	return sheets.New(cfg)
}

func TestSheets_Definition(t *testing.T) {
	tool := sheets.New(config.Default())
	definition := tool.Definition()

	testutils.AssertEqual(t, "sheets", definition.Name)
	assert.Contains(t, definition.Description, "list_tables")
	assert.Contains(t, definition.InputSchema.Required, "function")
	assert.Contains(t, definition.InputSchema.Required, "spreadsheet_id")

	require.NotNil(t, definition.Annotations.ReadOnlyHint)
	assert.True(t, *definition.Annotations.ReadOnlyHint)
	require.NotNil(t, definition.Annotations.DestructiveHint)
	assert.False(t, *definition.Annotations.DestructiveHint)

	var provider tools.ExtendedHelpProvider = tool
	help := provider.ProvideExtendedInfo()
	require.NotNil(t, help)
	assert.NotEmpty(t, help.Examples)
	assert.NotEmpty(t, help.Troubleshooting)
}

func TestSheets_ListTables_Workbook(t *testing.T) {
	tool := newWorkbookTool(t)

	result, err := tool.Execute(testutils.CreateTestContext(), testutils.CreateTestLogger(), testutils.CreateTestCache(), map[string]any{
		"function":       "list_tables",
		"spreadsheet_id": "book.xlsx",
	})
	testutils.AssertNoError(t, err)

	var catalog discovery.Catalog
	testutils.DecodeResult(t, result, &catalog)

	assert.Equal(t, "book.xlsx", catalog.SpreadsheetID)
	require.Equal(t, 1, catalog.TotalTables)
	require.Len(t, catalog.Tables, 1)

	table := catalog.Tables[0]
	assert.Equal(t, "Sales_table_1", table.TableID)
	assert.Equal(t, "Sales", table.SheetName)
	assert.Equal(t, "Sales!A1:E5", table.RangeNotation)
	assert.Equal(t, 5, table.RowCount)
	assert.Equal(t, 5, table.ColumnCount)
	assert.InDelta(t, 1.0, table.Confidence, 1e-9)
	assert.Equal(t, discovery.DefaultListOptions(), catalog.AnalysisParameters)
	assert.Empty(t, catalog.SkippedSheets)
}

func TestSheets_ListTables_Thresholds(t *testing.T) {
	tool := newWorkbookTool(t)

	result, err := tool.Execute(testutils.CreateTestContext(), testutils.CreateTestLogger(), testutils.CreateTestCache(), map[string]any{
		"function":       "list_tables",
		"spreadsheet_id": "book.xlsx",
		"options": map[string]any{
			"min_rows": float64(6),
		},
	})
	testutils.AssertNoError(t, err)

	var catalog discovery.Catalog
	testutils.DecodeResult(t, result, &catalog)
	assert.Equal(t, 0, catalog.TotalTables)
	assert.Equal(t, 6, catalog.AnalysisParameters.MinRows)

	_, err = tool.Execute(testutils.CreateTestContext(), testutils.CreateTestLogger(), testutils.CreateTestCache(), map[string]any{
		"function":       "list_tables",
		"spreadsheet_id": "book.xlsx",
		"options": map[string]any{
			"min_confidence": float64(1.5),
		},
	})
	var verr *discovery.ValidationError
	require.True(t, errors.As(err, &verr))
	assert.Equal(t, "min_confidence", verr.Field)
}

func TestSheets_GetTableSchema_Auto(t *testing.T) {
	tool := newWorkbookTool(t)

	result, err := tool.Execute(testutils.CreateTestContext(), testutils.CreateTestLogger(), testutils.CreateTestCache(), map[string]any{
		"function":       "get_table_schema",
		"spreadsheet_id": "book.xlsx",
		"options": map[string]any{
			"table_name": "auto",
		},
	})
	testutils.AssertNoError(t, err)

	var schema discovery.TableSchema
	testutils.DecodeResult(t, result, &schema)

	assert.Equal(t, "Sales", schema.SheetName)
	assert.Equal(t, "Sales!A1:E5", schema.RangeNotation)
	assert.Equal(t, 5, schema.TotalRowCount)
	assert.Equal(t, 5, schema.TotalColumnCount)
	assert.Equal(t, 4, schema.SampleSizeUsed)
	require.Len(t, schema.Columns, 5)

	want := []struct {
		name string
		typ  discovery.ColumnType
	}{
		{"Name", discovery.TypeText},
		{"Qty", discovery.TypeInteger},
		{"Price", discovery.TypeDecimal},
		{"Active", discovery.TypeBoolean},
		{"Joined", discovery.TypeDate},
	}
	for i, w := range want {
		assert.Equal(t, w.name, schema.Columns[i].Name)
		assert.Equal(t, i, schema.Columns[i].Index)
		assert.Equal(t, w.typ, schema.Columns[i].InferredType, "column %s", w.name)
		assert.Equal(t, 0, schema.Columns[i].NullCount)
	}
	assert.Equal(t, 4, schema.Columns[0].UniqueCount)
	assert.Equal(t, 2, schema.Columns[3].UniqueCount)
}

func TestSheets_GetTableSchema_UnknownTable(t *testing.T) {
	tool := newWorkbookTool(t)

	_, err := tool.Execute(testutils.CreateTestContext(), testutils.CreateTestLogger(), testutils.CreateTestCache(), map[string]any{
		"function":       "get_table_schema",
		"spreadsheet_id": "book.xlsx",
		"options": map[string]any{
			"table_name": "Sales_Tabel_1",
		},
	})

	var notFound *discovery.TableNotFoundError
	require.True(t, errors.As(err, &notFound))
	assert.Equal(t, "Sales_Tabel_1", notFound.TableName)
	testutils.AssertErrorContains(t, err, "not found")
}

func TestSheets_GetSpreadsheet(t *testing.T) {
	tool := newWorkbookTool(t)

	result, err := tool.Execute(testutils.CreateTestContext(), testutils.CreateTestLogger(), testutils.CreateTestCache(), map[string]any{
		"function":       "get_spreadsheet",
		"spreadsheet_id": "book.xlsx",
	})
	testutils.AssertNoError(t, err)

	var spreadsheet sheets.SpreadsheetResult
	testutils.DecodeResult(t, result, &spreadsheet)
	require.Len(t, spreadsheet.Sheets, 2)
	assert.Equal(t, "Sales", spreadsheet.Sheets[0].Title)
	assert.Equal(t, "Notes", spreadsheet.Sheets[1].Title)
}

func TestSheets_GetValues(t *testing.T) {
	tool := newWorkbookTool(t)

	result, err := tool.Execute(testutils.CreateTestContext(), testutils.CreateTestLogger(), testutils.CreateTestCache(), map[string]any{
		"function":       "get_values",
		"spreadsheet_id": "book.xlsx",
		"options": map[string]any{
			"ranges": []any{"Sales!A1:B2", "Notes!A1"},
		},
	})
	testutils.AssertNoError(t, err)

	var values struct {
		ValueRanges []struct {
			Range  string     `json:"range"`
			Values [][]string `json:"values"`
		} `json:"value_ranges"`
	}
	testutils.DecodeResult(t, result, &values)

	require.Len(t, values.ValueRanges, 2)
	assert.Equal(t, "Sales!A1:B2", values.ValueRanges[0].Range)
	assert.Equal(t, [][]string{{"Name", "Qty"}, {"Alice", "3"}}, values.ValueRanges[0].Values)
	assert.Equal(t, [][]string{{"Prepared by finance"}}, values.ValueRanges[1].Values)
}

func TestSheets_Validation(t *testing.T) {
	tool := newWorkbookTool(t)
	ctx := testutils.CreateTestContext()
	logger := testutils.CreateTestLogger()

	tests := []struct {
		name    string
		args    map[string]any
		wantErr string
	}{
		{"missing function", map[string]any{"spreadsheet_id": "book.xlsx"}, "function"},
		{"missing spreadsheet", map[string]any{"function": "list_tables"}, "spreadsheet_id"},
		{"unknown function", map[string]any{"function": "write_values", "spreadsheet_id": "book.xlsx"}, "unknown function"},
		{"missing table name", map[string]any{"function": "get_table_schema", "spreadsheet_id": "book.xlsx"}, "table_name"},
		{"missing range", map[string]any{"function": "get_values", "spreadsheet_id": "book.xlsx"}, "range"},
		{"missing workbook", map[string]any{"function": "list_tables", "spreadsheet_id": "absent.xlsx"}, "absent.xlsx"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := tool.Execute(ctx, logger, testutils.CreateTestCache(), tt.args)
			testutils.AssertNil(t, result)
			testutils.AssertErrorContains(t, err, tt.wantErr)
		})
	}
}

func TestSheets_WorkbookOutsideAllowedDirs(t *testing.T) {
	other := t.TempDir()
	secret := testutils.WriteWorkbook(t, other, "secret.xlsx",
		testutils.Worksheet{Name: "Sheet1", Rows: [][]any{{"payroll"}}},
	)

	cfg := config.Default()
	cfg.WorkbookDir = t.TempDir()

	args := map[string]any{
		"function":       "get_values",
		"spreadsheet_id": secret,
		"options":        map[string]any{"range": "Sheet1!A1:A1"},
	}

	result, err := sheets.New(cfg).Execute(testutils.CreateTestContext(), testutils.CreateTestLogger(), testutils.CreateTestCache(), args)
	testutils.AssertNil(t, result)
	testutils.AssertErrorContains(t, err, "outside allowed directories")

	cfg.AllowedDirs = []string{other}
	result, err = sheets.New(cfg).Execute(testutils.CreateTestContext(), testutils.CreateTestLogger(), testutils.CreateTestCache(), args)
	require.NoError(t, err)

	var values struct {
		ValueRanges []struct {
			Values [][]string `json:"values"`
		} `json:"value_ranges"`
	}
	testutils.DecodeResult(t, result, &values)
	require.Len(t, values.ValueRanges, 1)
	assert.Equal(t, [][]string{{"payroll"}}, values.ValueRanges[0].Values)
}

func TestSheets_ListTables_SkippedSheet(t *testing.T) {
	source := testutils.NewMockSource().
		WithSheet("Orders", [][]string{
			{"Order", "Amount"},
			{"A-1", "10"},
			{"A-2", "20"},
		}).
		WithSheetError("Archive", errors.New("quota exceeded"))

	resolver := sheetsrc.NewResolver(sheetsrc.KindGoogle, sheetsrc.GoogleOptions{}, "", testutils.CreateTestLogger())
	resolver.SetGoogleSource(source)
	tool := sheets.NewWithResolver(resolver)

	result, err := tool.Execute(testutils.CreateTestContext(), testutils.CreateTestLogger(), testutils.CreateTestCache(), map[string]any{
		"function":       "list_tables",
		"spreadsheet_id": "1BxiMVs0XRA5nFMdKvBdBZjgmUUqptlbs74OgvE2upms",
	})
	testutils.AssertNoError(t, err)

	var catalog discovery.Catalog
	testutils.DecodeResult(t, result, &catalog)

	require.Len(t, catalog.Tables, 1)
	assert.Equal(t, "Orders_table_1", catalog.Tables[0].TableID)
	require.Len(t, catalog.SkippedSheets, 1)
	assert.Equal(t, "Archive", catalog.SkippedSheets[0].SheetName)
	assert.Contains(t, catalog.SkippedSheets[0].Reason, "quota exceeded")

	assert.Equal(t, []string{"Orders!A1:Z100", "Archive!A1:Z100"}, source.Calls())
}

func TestSheets_ResolverCachedPerConfig(t *testing.T) {
	tool := newWorkbookTool(t)
	cache := testutils.CreateTestCache()
	args := map[string]any{
		"function":       "get_spreadsheet",
		"spreadsheet_id": "book.xlsx",
	}

	_, err := tool.Execute(testutils.CreateTestContext(), testutils.CreateTestLogger(), cache, args)
	testutils.AssertNoError(t, err)
	first, ok := cache.Load("sheets:resolver")
	require.True(t, ok)

	_, err = tool.Execute(testutils.CreateTestContext(), testutils.CreateTestLogger(), cache, args)
	testutils.AssertNoError(t, err)
	second, _ := cache.Load("sheets:resolver")
	assert.Same(t, first, second)
}
