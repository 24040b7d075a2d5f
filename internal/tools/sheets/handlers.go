package sheets

import (
	"context"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/sammcj/mcp-sheets/internal/discovery"
	sheetsrc "github.com/sammcj/mcp-sheets/internal/sheets"
	"github.com/sammcj/mcp-sheets/internal/telemetry"
	"github.com/sammcj/mcp-sheets/internal/tools"
	"github.com/sirupsen/logrus"
)

// SpreadsheetResult is the get_spreadsheet response
type SpreadsheetResult struct {
	SpreadsheetID string               `json:"spreadsheet_id"`
	Sheets        []sheetsrc.SheetInfo `json:"sheets"`
}

// ValueRange is one range of a get_values response
type ValueRange struct {
	Range  string        `json:"range"`
	Values sheetsrc.Grid `json:"values"`
}

// ValuesResult is the get_values response
type ValuesResult struct {
	SpreadsheetID string       `json:"spreadsheet_id"`
	ValueRanges   []ValueRange `json:"value_ranges"`
}

func handleListTables(ctx context.Context, logger *logrus.Logger, engine *discovery.Engine, spreadsheetID string, options map[string]any) (*mcp.CallToolResult, error) {
	opts, err := listOptions(options)
	if err != nil {
		return nil, err
	}

	catalog, err := engine.ListTables(ctx, spreadsheetID, opts)
	if err != nil {
		return nil, err
	}

	logger.WithFields(logrus.Fields{
		"spreadsheet_id": spreadsheetID,
		"tables":         catalog.TotalTables,
		"skipped":        len(catalog.SkippedSheets),
	}).Debug("Listed tables")

	return tools.NewJSONResult(catalog)
}

func handleGetTableSchema(ctx context.Context, logger *logrus.Logger, engine *discovery.Engine, kind, spreadsheetID, sheetName string, options map[string]any) (*mcp.CallToolResult, error) {
	opts, err := schemaOptions(sheetName, options)
	if err != nil {
		return nil, err
	}

	schema, err := engine.GetTableSchema(ctx, spreadsheetID, opts)
	if err != nil {
		return nil, err
	}
	telemetry.RecordSchemaInferred(ctx, kind, len(schema.Columns))
	telemetry.SetSchemaAttributes(ctx, schema.TableName, len(schema.Columns))

	logger.WithFields(logrus.Fields{
		"spreadsheet_id": spreadsheetID,
		"table":          schema.TableName,
		"range":          schema.RangeNotation,
		"columns":        len(schema.Columns),
	}).Debug("Inferred table schema")

	return tools.NewJSONResult(schema)
}

func handleGetSpreadsheet(ctx context.Context, source sheetsrc.Source, spreadsheetID string) (*mcp.CallToolResult, error) {
	infos, err := source.GetSpreadsheetMetadata(ctx, spreadsheetID)
	if err != nil {
		return nil, err
	}
	if infos == nil {
		infos = []sheetsrc.SheetInfo{}
	}
	return tools.NewJSONResult(&SpreadsheetResult{SpreadsheetID: spreadsheetID, Sheets: infos})
}

func handleGetValues(ctx context.Context, source sheetsrc.Source, spreadsheetID string, options map[string]any) (*mcp.CallToolResult, error) {
	ranges, err := valueRanges(options)
	if err != nil {
		return nil, err
	}

	result := &ValuesResult{SpreadsheetID: spreadsheetID, ValueRanges: make([]ValueRange, 0, len(ranges))}
	for _, rng := range ranges {
		grid, err := source.GetValues(ctx, spreadsheetID, rng)
		if err != nil {
			return nil, err
		}
		if grid == nil {
			grid = sheetsrc.Grid{}
		}
		result.ValueRanges = append(result.ValueRanges, ValueRange{Range: rng, Values: grid})
	}
	return tools.NewJSONResult(result)
}
