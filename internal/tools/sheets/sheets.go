package sheets

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/sammcj/mcp-sheets/internal/config"
	"github.com/sammcj/mcp-sheets/internal/discovery"
	"github.com/sammcj/mcp-sheets/internal/registry"
	sheetsrc "github.com/sammcj/mcp-sheets/internal/sheets"
	"github.com/sammcj/mcp-sheets/internal/telemetry"
	"github.com/sammcj/mcp-sheets/internal/tools"
	"github.com/sirupsen/logrus"
)

// ToolName is the MCP name of the tool
const ToolName = "sheets"

// Functions dispatched by the tool
const (
	FunctionListTables     = "list_tables"
	FunctionGetTableSchema = "get_table_schema"
	FunctionGetSpreadsheet = "get_spreadsheet"
	FunctionGetValues      = "get_values"
)

const resolverCacheKey = "sheets:resolver"

// SheetsTool discovers tables and infers column schemas in spreadsheets
type SheetsTool struct {
	mu    sync.Mutex
	cfg   *config.Config
	fixed *sheetsrc.Resolver
}

type resolverEntry struct {
	cfg      *config.Config
	resolver *sheetsrc.Resolver
}

var registered = &SheetsTool{}

func init() {
	registry.Register(registered)
}

// Configure sets the configuration used by the registered tool. Without it
// the tool loads config.DefaultPath on first use.
func Configure(cfg *config.Config) {
	registered.mu.Lock()
	defer registered.mu.Unlock()
	registered.cfg = cfg
}

// New creates an unregistered tool bound to cfg
func New(cfg *config.Config) *SheetsTool {
	return &SheetsTool{cfg: cfg}
}

// NewWithResolver creates an unregistered tool that always uses resolver
func NewWithResolver(resolver *sheetsrc.Resolver) *SheetsTool {
	return &SheetsTool{fixed: resolver}
}

// NewResolver builds the grid source resolver for cfg
func NewResolver(cfg *config.Config, logger *logrus.Logger) *sheetsrc.Resolver {
	resolver := sheetsrc.NewResolver(cfg.Source, sheetsrc.GoogleOptions{
		AccessToken:     cfg.AccessToken,
		CredentialsFile: cfg.CredentialsFile,
		Endpoint:        cfg.Endpoint,
		Timeout:         cfg.HTTPTimeout,
	}, cfg.WorkbookDir, logger)
	resolver.Workbook.AllowedDirs = cfg.AllowedDirs
	return resolver
}

// Definition returns the tool's definition for MCP registration
func (t *SheetsTool) Definition() mcp.Tool {
	return mcp.NewTool(
		ToolName,
		mcp.WithDescription(`Discover tables inside spreadsheets and infer their column schemas. Works with Google Sheets (spreadsheet id) and local workbooks (.xlsx/.xlsm path).

Typical workflow:
  list_tables: spreadsheet_id="..." → every table found, with its range, size and a confidence score
  get_table_schema: spreadsheet_id="...", options={"table_name":"Sales_Table_1"} → column names, inferred types (BOOLEAN, INTEGER, DECIMAL, DATE, TEXT), null and unique counts
  Use table_name="auto" to analyse the largest table.

Functions: list_tables, get_table_schema, get_spreadsheet (worksheet list), get_values (raw cell values for one or more ranges).

Use get_tool_help with tool_name="sheets" for examples and troubleshooting.`),
		mcp.WithString("function",
			mcp.Required(),
			mcp.Description("Operation to perform. Start with list_tables, then get_table_schema for a table of interest."),
			mcp.Enum(FunctionListTables, FunctionGetTableSchema, FunctionGetSpreadsheet, FunctionGetValues),
		),
		mcp.WithString("spreadsheet_id",
			mcp.Required(),
			mcp.Description("Google Sheets spreadsheet id, or a path to a local .xlsx/.xlsm workbook"),
		),
		mcp.WithString("sheet_name",
			mcp.Description("Restrict get_table_schema to one worksheet"),
		),
		mcp.WithObject("options",
			mcp.Description("Function-specific options"),
			mcp.Properties(map[string]any{
				"min_rows": map[string]any{
					"type":        "number",
					"description": "list_tables: minimum rows (including header) for a table",
					"default":     discovery.DefaultMinRows,
				},
				"min_columns": map[string]any{
					"type":        "number",
					"description": "list_tables: minimum columns for a table",
					"default":     discovery.DefaultMinColumns,
				},
				"min_confidence": map[string]any{
					"type":        "number",
					"description": "list_tables: minimum confidence score between 0 and 1",
					"default":     discovery.DefaultMinConfidence,
				},
				"table_name": map[string]any{
					"type":        "string",
					"description": "get_table_schema: table name from list_tables, or 'auto' for the largest table",
				},
				"sample_size": map[string]any{
					"type":        "number",
					"description": fmt.Sprintf("get_table_schema: data rows to analyse (1-%d)", discovery.MaxSampleSize),
					"default":     discovery.DefaultSampleSize,
				},
				"range": map[string]any{
					"type":        "string",
					"description": "get_values: range in A1 notation, e.g. 'Sales!A1:D20'",
				},
				"ranges": map[string]any{
					"type":        "array",
					"description": "get_values: several ranges in A1 notation",
					"items": map[string]any{
						"type": "string",
					},
				},
			}),
		),
		mcp.WithReadOnlyHintAnnotation(true),
		mcp.WithDestructiveHintAnnotation(false),
		mcp.WithIdempotentHintAnnotation(true),
		mcp.WithOpenWorldHintAnnotation(true),
	)
}

// Execute dispatches to the requested function
func (t *SheetsTool) Execute(ctx context.Context, logger *logrus.Logger, cache *sync.Map, args map[string]any) (*mcp.CallToolResult, error) {
	function, ok := args["function"].(string)
	if !ok || function == "" {
		return nil, &discovery.ValidationError{Field: "function", Value: args["function"], Message: "function parameter is required"}
	}

	spreadsheetID, _ := args["spreadsheet_id"].(string)
	spreadsheetID = strings.TrimSpace(spreadsheetID)
	if spreadsheetID == "" {
		return nil, &discovery.ValidationError{Field: "spreadsheet_id", Value: args["spreadsheet_id"], Message: "spreadsheet_id is required"}
	}

	options, _ := args["options"].(map[string]any)
	if options == nil {
		options = make(map[string]any)
	}
	sheetName, _ := args["sheet_name"].(string)

	logger.WithFields(logrus.Fields{
		"function":       function,
		"spreadsheet_id": spreadsheetID,
		"sheet":          sheetName,
	}).Debug("Executing sheets function")

	ctx, span := telemetry.StartToolSpan(ctx, ToolName, function, args)
	start := time.Now()

	result, err := t.dispatch(ctx, logger, cache, function, spreadsheetID, sheetName, options)

	telemetry.EndToolSpan(span, err)
	telemetry.RecordToolCall(ctx, ToolName, function, err == nil, float64(time.Since(start).Milliseconds()))
	if err != nil {
		telemetry.RecordToolError(ctx, ToolName, telemetry.CategoriseToolError(err))
	}
	return result, err
}

func (t *SheetsTool) dispatch(ctx context.Context, logger *logrus.Logger, cache *sync.Map, function, spreadsheetID, sheetName string, options map[string]any) (*mcp.CallToolResult, error) {
	switch function {
	case FunctionListTables, FunctionGetTableSchema, FunctionGetSpreadsheet, FunctionGetValues:
	default:
		return nil, fmt.Errorf("unknown function: %s", function)
	}

	resolver, err := t.resolver(logger, cache)
	if err != nil {
		return nil, err
	}
	source, err := resolver.SourceFor(ctx, spreadsheetID)
	if err != nil {
		return nil, err
	}
	kind := resolver.KindFor(spreadsheetID)

	switch function {
	case FunctionListTables:
		return handleListTables(ctx, logger, newEngine(source, kind, logger), spreadsheetID, options)
	case FunctionGetTableSchema:
		return handleGetTableSchema(ctx, logger, newEngine(source, kind, logger), kind, spreadsheetID, sheetName, options)
	case FunctionGetSpreadsheet:
		return handleGetSpreadsheet(ctx, source, spreadsheetID)
	default:
		return handleGetValues(ctx, source, spreadsheetID, options)
	}
}

// newEngine wires worksheet scans into metrics and the active span
func newEngine(source sheetsrc.Source, kind string, logger *logrus.Logger) *discovery.Engine {
	engine := discovery.New(source, logger)
	engine.OnSheetScan = func(ctx context.Context, scan discovery.SheetScan) {
		telemetry.RecordSheetScan(ctx, kind, len(scan.Tables), scan.Skipped)
		telemetry.AddSheetScanEvent(ctx, scan.SheetName, len(scan.Tables), scan.Skipped, scan.Reason)
	}
	return engine
}

// resolver returns the cached resolver for the current configuration
func (t *SheetsTool) resolver(logger *logrus.Logger, cache *sync.Map) (*sheetsrc.Resolver, error) {
	if t.fixed != nil {
		return t.fixed, nil
	}

	cfg, err := t.config()
	if err != nil {
		return nil, err
	}

	if cache != nil {
		if cached, ok := cache.Load(resolverCacheKey); ok {
			if entry, ok := cached.(*resolverEntry); ok && entry.cfg == cfg {
				return entry.resolver, nil
			}
		}
	}

	resolver := NewResolver(cfg, logger)
	if cache != nil {
		cache.Store(resolverCacheKey, &resolverEntry{cfg: cfg, resolver: resolver})
	}
	return resolver, nil
}

func (t *SheetsTool) config() (*config.Config, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.cfg == nil {
		cfg, err := config.Load("")
		if err != nil {
			return nil, fmt.Errorf("failed to load configuration: %w", err)
		}
		t.cfg = cfg
	}
	return t.cfg, nil
}

// ProvideExtendedInfo provides detailed usage information for the sheets tool
func (t *SheetsTool) ProvideExtendedInfo() *tools.ExtendedHelp {
	return &tools.ExtendedHelp{
		Examples: []tools.ToolExample{
			{
				Description: "List every table in a Google spreadsheet",
				Arguments: map[string]any{
					"function":       FunctionListTables,
					"spreadsheet_id": "1BxiMVs0XRA5nFMdKvBdBZjgmUUqptlbs74OgvE2upms",
				},
				ExpectedResult: "total_tables, and one entry per table with table_name, range, rows, columns and confidence",
			},
			{
				Description: "Only keep confident tables with at least three columns",
				Arguments: map[string]any{
					"function":       FunctionListTables,
					"spreadsheet_id": "reports/q3.xlsx",
					"options": map[string]any{
						"min_columns":    3,
						"min_confidence": 0.8,
					},
				},
			},
			{
				Description: "Infer the schema of the largest table",
				Arguments: map[string]any{
					"function":       FunctionGetTableSchema,
					"spreadsheet_id": "reports/q3.xlsx",
					"options": map[string]any{
						"table_name": discovery.AutoTableName,
					},
				},
				ExpectedResult: "columns with inferred_type, constraints, sample_values, null_count and unique_count",
			},
			{
				Description: "Infer the schema of a named table on one worksheet using 200 rows",
				Arguments: map[string]any{
					"function":       FunctionGetTableSchema,
					"spreadsheet_id": "1BxiMVs0XRA5nFMdKvBdBZjgmUUqptlbs74OgvE2upms",
					"sheet_name":     "Sales",
					"options": map[string]any{
						"table_name":  "Sales_Table_1",
						"sample_size": 200,
					},
				},
			},
			{
				Description: "Read raw values from two ranges",
				Arguments: map[string]any{
					"function":       FunctionGetValues,
					"spreadsheet_id": "reports/q3.xlsx",
					"options": map[string]any{
						"ranges": []string{"Sales!A1:D10", "Summary!A1:B5"},
					},
				},
			},
		},
		CommonPatterns: []string{
			"Call list_tables first and pass a returned table_name to get_table_schema",
			"Use table_name='auto' when a worksheet holds a single dataset",
			"Lower min_confidence to surface sparse or text-only tables",
			"Use get_values with a table's range to read its rows after inspecting the schema",
		},
		Troubleshooting: []tools.TroubleshootingTip{
			{
				Problem:  "table not found",
				Solution: "Table names come from list_tables and are case sensitive. The error lists the closest names found.",
			},
			{
				Problem:  "A worksheet appears under skipped_sheets",
				Solution: "Its values could not be fetched. The reason field holds the upstream error. Other worksheets are still analysed.",
			},
			{
				Problem:  "A text-only table is missing from list_tables",
				Solution: "Header detection needs a numeric value in the first data rows. Lower min_confidence to 0.3 or below.",
			},
			{
				Problem:  "Google Sheets requests fail with 401 or 403",
				Solution: "Set GOOGLE_APPLICATION_CREDENTIALS to a service account JSON file or GOOGLE_SHEETS_ACCESS_TOKEN to an OAuth token, and share the spreadsheet with that account.",
			},
		},
		ParameterDetails: map[string]string{
			"spreadsheet_id": "Google spreadsheet id, or a .xlsx/.xlsm path. Relative paths resolve under SHEETS_WORKBOOK_DIR.",
			"sheet_name":     "Worksheet title. Only used by get_table_schema.",
			"min_rows":       "Minimum populated rows including the header (default 2)",
			"min_columns":    "Minimum columns (default 1)",
			"min_confidence": "Confidence blends cell density (60%), a text header over numeric data (20%) and per-column type consistency (20%). Default 0.5.",
			"table_name":     "A table_name from list_tables, or 'auto'. get_table_schema considers tables with confidence of at least 0.3.",
			"sample_size":    "Data rows analysed for type inference (default 50, max 1000)",
			"range":          "A1 notation with the worksheet, e.g. 'Sales!A1:D20' or just 'Sales'",
		},
		WhenToUse:    "Use to understand what data a spreadsheet holds before reading it: where the tables are, what their columns are called and what types they contain.",
		WhenNotToUse: "Don't use to edit spreadsheets. Only the first 100 rows and 26 columns (A-Z) of each worksheet are scanned for tables.",
	}
}
