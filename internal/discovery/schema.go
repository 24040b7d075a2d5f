package discovery

import (
	"context"
	"errors"
	"fmt"

	"github.com/sammcj/mcp-sheets/internal/sheets"
	"github.com/sirupsen/logrus"
)

// Schema builder defaults
const (
	AutoTableName       = "auto"
	DefaultSampleSize   = 50
	MaxSampleSize       = 1000
	SchemaMinConfidence = 0.3

	sampleValueCount = 5
)

// ColumnSchema describes one inferred column
type ColumnSchema struct {
	Name         string        `json:"name" yaml:"name"`
	Index        int           `json:"index" yaml:"index"`
	InferredType ColumnType    `json:"inferred_type" yaml:"inferred_type"`
	Constraints  Constraints   `json:"constraints" yaml:"constraints"`
	SampleValues []sheets.Cell `json:"sample_values" yaml:"sample_values"`
	NullCount    int           `json:"null_count" yaml:"null_count"`
	UniqueCount  int           `json:"unique_count" yaml:"unique_count"`
}

// TableSchema is the inferred schema of a selected table
type TableSchema struct {
	TableName        string         `json:"table_name" yaml:"table_name"`
	SheetName        string         `json:"sheet_name" yaml:"sheet_name"`
	RangeNotation    string         `json:"range" yaml:"range"`
	TotalRowCount    int            `json:"total_rows" yaml:"total_rows"`
	TotalColumnCount int            `json:"total_columns" yaml:"total_columns"`
	SampleSizeUsed   int            `json:"sample_size_used" yaml:"sample_size_used"`
	Columns          []ColumnSchema `json:"columns" yaml:"columns"`
}

// SchemaOptions selects the table to analyse. TableName "auto" selects the
// largest table; SheetName, when set, restricts the search to one worksheet.
type SchemaOptions struct {
	TableName  string
	SheetName  string
	SampleSize int
}

// Validate rejects missing names and out of range sample sizes
func (o SchemaOptions) Validate() error {
	if o.TableName == "" {
		return &ValidationError{Field: "table_name", Value: o.TableName, Message: "table_name is required"}
	}
	if o.SampleSize < 1 || o.SampleSize > MaxSampleSize {
		return &ValidationError{Field: "sample_size", Value: o.SampleSize, Message: fmt.Sprintf("must be between 1 and %d", MaxSampleSize)}
	}
	return nil
}

// GetTableSchema locates a table and infers its column schema from a sample
// of its rows. Source failures are returned to the caller.
func (e *Engine) GetTableSchema(ctx context.Context, spreadsheetID string, opts SchemaOptions) (*TableSchema, error) {
	if spreadsheetID == "" {
		return nil, &ValidationError{Field: "spreadsheet_id", Value: spreadsheetID, Message: "spreadsheet_id is required"}
	}
	if err := opts.Validate(); err != nil {
		return nil, err
	}

	infos, err := e.source.GetSpreadsheetMetadata(ctx, spreadsheetID)
	if err != nil {
		return nil, err
	}
	if opts.SheetName != "" {
		infos = filterSheets(infos, opts.SheetName)
	}

	var table *TableDescriptor
	if opts.TableName == AutoTableName {
		table, err = e.largestTable(ctx, spreadsheetID, infos)
	} else {
		table, err = e.tableByName(ctx, spreadsheetID, infos, opts.TableName)
	}
	if err != nil {
		var notFound *TableNotFoundError
		if errors.As(err, &notFound) {
			notFound.SheetName = opts.SheetName
		}
		return nil, err
	}

	grid, err := e.source.GetValues(ctx, spreadsheetID, table.RangeNotation)
	if err != nil {
		return nil, err
	}

	schema := buildSchema(*table, grid, opts.SampleSize)

	e.logger.WithFields(logrus.Fields{
		"spreadsheet_id": spreadsheetID,
		"table":          table.TableName,
		"range":          table.RangeNotation,
		"columns":        len(schema.Columns),
	}).Debug("Inferred table schema")

	return schema, nil
}

// candidates rebuilds the table list of one sheet at the schema threshold
func (e *Engine) candidates(ctx context.Context, spreadsheetID string, info sheets.SheetInfo) ([]TableDescriptor, error) {
	grid, err := e.source.GetValues(ctx, spreadsheetID, sampleRange(info.Title))
	if err != nil {
		return nil, err
	}

	var tables []TableDescriptor
	for i, region := range FindRegions(grid, DefaultMinRows, DefaultMinColumns) {
		confidence := Score(grid, region)
		if confidence >= SchemaMinConfidence {
			tables = append(tables, describe(info, i, region, confidence))
		}
	}
	return tables, nil
}

// largestTable scans every sheet and returns the table with the greatest
// row x column area. Ties keep the first table found.
func (e *Engine) largestTable(ctx context.Context, spreadsheetID string, infos []sheets.SheetInfo) (*TableDescriptor, error) {
	var best *TableDescriptor
	for _, info := range infos {
		tables, err := e.candidates(ctx, spreadsheetID, info)
		if err != nil {
			return nil, err
		}
		for i := range tables {
			if best == nil || tables[i].RowCount*tables[i].ColumnCount > best.RowCount*best.ColumnCount {
				best = &tables[i]
			}
		}
	}
	if best == nil {
		return nil, &TableNotFoundError{TableName: AutoTableName}
	}
	return best, nil
}

// tableByName returns the first table named name, stopping at the first match
func (e *Engine) tableByName(ctx context.Context, spreadsheetID string, infos []sheets.SheetInfo, name string) (*TableDescriptor, error) {
	var seen []string
	for _, info := range infos {
		tables, err := e.candidates(ctx, spreadsheetID, info)
		if err != nil {
			return nil, err
		}
		for i := range tables {
			if tables[i].TableName == name {
				return &tables[i], nil
			}
			seen = append(seen, tables[i].TableName)
		}
	}
	return nil, &TableNotFoundError{TableName: name, Suggestions: suggestTables(name, seen)}
}

func filterSheets(infos []sheets.SheetInfo, title string) []sheets.SheetInfo {
	var out []sheets.SheetInfo
	for _, info := range infos {
		if info.Title == title {
			out = append(out, info)
		}
	}
	return out
}

// buildSchema treats row 0 of the fetched range as the header and analyses
// up to sampleSize rows in total.
func buildSchema(table TableDescriptor, grid sheets.Grid, sampleSize int) *TableSchema {
	sample := grid[:min(len(grid), sampleSize)]

	var header sheets.Row
	var rows sheets.Grid
	if len(sample) > 0 {
		header = sample[0]
		rows = sample[1:]
	}

	schema := &TableSchema{
		TableName:        table.TableName,
		SheetName:        table.SheetName,
		RangeNotation:    table.RangeNotation,
		TotalRowCount:    table.RowCount,
		TotalColumnCount: table.ColumnCount,
		SampleSizeUsed:   len(rows),
		Columns:          []ColumnSchema{},
	}

	for col := range sample.ColumnCount() {
		schema.Columns = append(schema.Columns, inferColumn(col, header, rows))
	}
	return schema
}

func inferColumn(col int, header sheets.Row, rows sheets.Grid) ColumnSchema {
	name := fmt.Sprintf("Column_%d", col+1)
	if col < len(header) && !header[col].IsEmpty() {
		name = header[col].String()
	}

	values := make([]sheets.Cell, len(rows))
	for i, row := range rows {
		if col < len(row) {
			values[i] = row[col]
		} else {
			values[i] = sheets.NewCell("")
		}
	}

	nulls := 0
	unique := make(map[string]struct{})
	for _, v := range values {
		if v.IsEmpty() {
			nulls++
			continue
		}
		unique[v.String()] = struct{}{}
	}

	inferred, constraints := InferType(values)
	return ColumnSchema{
		Name:         name,
		Index:        col,
		InferredType: inferred,
		Constraints:  constraints,
		SampleValues: values[:min(len(values), sampleValueCount)],
		NullCount:    nulls,
		UniqueCount:  len(unique),
	}
}
