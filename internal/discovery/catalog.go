package discovery

import (
	"context"
	"fmt"

	"github.com/sammcj/mcp-sheets/internal/sheets"
	"github.com/sirupsen/logrus"
)

// Discovery defaults and the fixed per-sheet sample window
const (
	DefaultMinRows       = 2
	DefaultMinColumns    = 1
	DefaultMinConfidence = 0.5

	SampleRows    = 100
	SampleColumns = 26
)

// TableDescriptor is a discovered table. It is recomputed on every request.
type TableDescriptor struct {
	TableID   string `json:"table_id" yaml:"table_id"`
	TableName string `json:"table_name" yaml:"table_name"`
	SheetID   int64  `json:"sheet_id" yaml:"sheet_id"`
	SheetName string `json:"sheet_name" yaml:"sheet_name"`
	Region    `yaml:",inline"`

	RowCount      int     `json:"rows" yaml:"rows"`
	ColumnCount   int     `json:"columns" yaml:"columns"`
	Confidence    float64 `json:"confidence" yaml:"confidence"`
	RangeNotation string  `json:"range" yaml:"range"`
}

// SheetScan is the outcome of analysing one worksheet. A skipped sheet
// contributes no tables and carries the reason it was skipped.
type SheetScan struct {
	Sheet      sheets.SheetInfo  `json:"-" yaml:"-"`
	SheetName  string            `json:"sheet_name" yaml:"sheet_name"`
	Tables     []TableDescriptor `json:"-" yaml:"-"`
	Candidates int               `json:"-" yaml:"-"`
	Skipped    bool              `json:"-" yaml:"-"`
	Reason     string            `json:"reason" yaml:"reason"`
}

// ListOptions are the ListTables thresholds
type ListOptions struct {
	MinRows       int     `json:"min_rows" yaml:"min_rows"`
	MinColumns    int     `json:"min_columns" yaml:"min_columns"`
	MinConfidence float64 `json:"min_confidence" yaml:"min_confidence"`
}

// DefaultListOptions returns the default ListTables thresholds
func DefaultListOptions() ListOptions {
	return ListOptions{
		MinRows:       DefaultMinRows,
		MinColumns:    DefaultMinColumns,
		MinConfidence: DefaultMinConfidence,
	}
}

// Validate rejects out of range thresholds
func (o ListOptions) Validate() error {
	if o.MinRows < 1 {
		return &ValidationError{Field: "min_rows", Value: o.MinRows, Message: "must be at least 1"}
	}
	if o.MinColumns < 1 {
		return &ValidationError{Field: "min_columns", Value: o.MinColumns, Message: "must be at least 1"}
	}
	if o.MinConfidence < 0 || o.MinConfidence > 1 {
		return &ValidationError{Field: "min_confidence", Value: o.MinConfidence, Message: "must be between 0 and 1"}
	}
	return nil
}

// Catalog is the ListTables result
type Catalog struct {
	SpreadsheetID      string            `json:"spreadsheet_id" yaml:"spreadsheet_id"`
	TotalTables        int               `json:"total_tables" yaml:"total_tables"`
	Tables             []TableDescriptor `json:"tables" yaml:"tables"`
	AnalysisParameters ListOptions       `json:"analysis_parameters" yaml:"analysis_parameters"`
	SkippedSheets      []SheetScan       `json:"skipped_sheets,omitempty" yaml:"skipped_sheets,omitempty"`
}

// Engine runs table discovery and schema inference against a Source
type Engine struct {
	source sheets.Source
	logger *logrus.Logger

	// OnSheetScan, when set, is called after every worksheet analysis
	OnSheetScan func(ctx context.Context, scan SheetScan)
}

// New creates a discovery Engine
func New(source sheets.Source, logger *logrus.Logger) *Engine {
	if logger == nil {
		logger = logrus.New()
	}
	return &Engine{source: source, logger: logger}
}

// ListTables discovers tables on every worksheet of a spreadsheet. A worksheet
// that cannot be fetched is reported in SkippedSheets and never fails the call.
func (e *Engine) ListTables(ctx context.Context, spreadsheetID string, opts ListOptions) (*Catalog, error) {
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

	catalog := &Catalog{
		SpreadsheetID:      spreadsheetID,
		Tables:             []TableDescriptor{},
		AnalysisParameters: opts,
	}

	for _, info := range infos {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		scan := e.scanSheet(ctx, spreadsheetID, info, opts)
		if scan.Skipped {
			catalog.SkippedSheets = append(catalog.SkippedSheets, scan)
			continue
		}
		catalog.Tables = append(catalog.Tables, scan.Tables...)
	}
	catalog.TotalTables = len(catalog.Tables)

	e.logger.WithFields(logrus.Fields{
		"spreadsheet_id": spreadsheetID,
		"tables":         catalog.TotalTables,
		"skipped":        len(catalog.SkippedSheets),
	}).Debug("Listed tables")

	return catalog, nil
}

// scanSheet fetches the sample window of one worksheet and scores its regions
func (e *Engine) scanSheet(ctx context.Context, spreadsheetID string, info sheets.SheetInfo, opts ListOptions) SheetScan {
	scan := SheetScan{Sheet: info, SheetName: info.Title}

	grid, err := e.source.GetValues(ctx, spreadsheetID, sampleRange(info.Title))
	if err != nil {
		scan.Skipped = true
		scan.Reason = err.Error()
		e.logger.WithFields(logrus.Fields{
			"spreadsheet_id": spreadsheetID,
			"sheet":          info.Title,
			"reason":         scan.Reason,
		}).Debug("Skipping worksheet")
		e.report(ctx, scan)
		return scan
	}

	regions := FindRegions(grid, opts.MinRows, opts.MinColumns)
	scan.Candidates = len(regions)
	for i, region := range regions {
		confidence := Score(grid, region)
		if confidence < opts.MinConfidence {
			continue
		}
		scan.Tables = append(scan.Tables, describe(info, i, region, confidence))
	}

	e.report(ctx, scan)
	return scan
}

func (e *Engine) report(ctx context.Context, scan SheetScan) {
	if e.OnSheetScan != nil {
		e.OnSheetScan(ctx, scan)
	}
}

// describe names a region by its position among all regions of the sheet,
// so names are stable regardless of the confidence threshold.
func describe(info sheets.SheetInfo, index int, region Region, confidence float64) TableDescriptor {
	return TableDescriptor{
		TableID:       fmt.Sprintf("%s_table_%d", info.Title, index+1),
		TableName:     fmt.Sprintf("%s_Table_%d", info.Title, index+1),
		SheetID:       info.ID,
		SheetName:     info.Title,
		Region:        region,
		RowCount:      region.Rows(),
		ColumnCount:   region.Columns(),
		Confidence:    confidence,
		RangeNotation: RangeNotation(info.Title, region),
	}
}

func sampleRange(sheetTitle string) string {
	return RangeNotation(sheetTitle, Region{StartRow: 0, EndRow: SampleRows - 1, StartColumn: 0, EndColumn: SampleColumns - 1})
}
