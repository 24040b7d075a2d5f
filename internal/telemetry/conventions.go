package telemetry

// Attribute names recorded on spans and metrics
const (
	AttrMCPToolName     = "mcp.tool.name"
	AttrMCPToolFunction = "mcp.tool.function"
	AttrMCPToolSuccess  = "mcp.tool.result.success"
	AttrMCPToolError    = "mcp.tool.result.error"
	AttrMCPSessionID    = "mcp.session.id"

	// Sheets attributes
	AttrSheetsSource      = "sheets.source"
	AttrSheetsSheet       = "sheets.sheet"
	AttrSheetsTables      = "sheets.tables"
	AttrSheetsSkipped     = "sheets.skipped"
	AttrSheetsSkipReason  = "sheets.skip_reason"
	AttrSheetsTableName   = "sheets.table.name"
	AttrSheetsColumnCount = "sheets.table.columns"
)

// Span and event names
const (
	SpanNameToolExecute = "mcp.tool.execute"
	EventNameSheetScan  = "sheets.worksheet.scan"
)
