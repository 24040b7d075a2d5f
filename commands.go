package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"text/tabwriter"

	"github.com/fatih/color"
	"github.com/sammcj/mcp-sheets/internal/config"
	"github.com/sammcj/mcp-sheets/internal/discovery"
	"github.com/sammcj/mcp-sheets/internal/registry"
	"github.com/sammcj/mcp-sheets/internal/sheets"
	sheetstool "github.com/sammcj/mcp-sheets/internal/tools/sheets"
	"github.com/sirupsen/logrus"
	"github.com/urfave/cli/v3"
	"gopkg.in/yaml.v3"
)

func versionCommand() *cli.Command {
	return &cli.Command{
		Name:  "version",
		Usage: "Print version information",
		Action: func(ctx context.Context, cmd *cli.Command) error {
			w := cmd.Root().Writer
			_, _ = fmt.Fprintf(w, "mcp-sheets version %s\n", Version)
			_, _ = fmt.Fprintf(w, "Commit: %s\n", Commit)
			_, _ = fmt.Fprintf(w, "Built: %s\n", BuildDate)
			return nil
		},
	}
}

func tablesCommand(logger *logrus.Logger) *cli.Command {
	return &cli.Command{
		Name:      "tables",
		Usage:     "List the tables discovered in a spreadsheet",
		ArgsUsage: "<spreadsheet-id-or-xlsx-path>",
		Flags: []cli.Flag{
			&cli.IntFlag{
				Name:  "min-rows",
				Value: discovery.DefaultMinRows,
				Usage: "Minimum rows (including header) for a table",
			},
			&cli.IntFlag{
				Name:  "min-columns",
				Value: discovery.DefaultMinColumns,
				Usage: "Minimum columns for a table",
			},
			&cli.FloatFlag{
				Name:  "min-confidence",
				Value: discovery.DefaultMinConfidence,
				Usage: "Minimum confidence score (0-1)",
			},
			&cli.BoolFlag{
				Name:  "json",
				Usage: "Print the catalog as JSON",
			},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			spreadsheetID := cmd.Args().First()
			if spreadsheetID == "" {
				return fmt.Errorf("spreadsheet id or workbook path is required")
			}

			engine, err := newCLIEngine(ctx, cmd, logger, spreadsheetID)
			if err != nil {
				return err
			}

			catalog, err := engine.ListTables(ctx, spreadsheetID, discovery.ListOptions{
				MinRows:       cmd.Int("min-rows"),
				MinColumns:    cmd.Int("min-columns"),
				MinConfidence: cmd.Float("min-confidence"),
			})
			if err != nil {
				return err
			}

			if cmd.Bool("json") {
				return writeJSON(cmd.Root().Writer, catalog)
			}
			return printTables(cmd.Root().Writer, catalog)
		},
	}
}

func schemaCommand(logger *logrus.Logger) *cli.Command {
	return &cli.Command{
		Name:      "schema",
		Usage:     "Infer the column schema of a table",
		ArgsUsage: "<spreadsheet-id-or-xlsx-path> [table-name]",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "sheet",
				Usage: "Only search this worksheet",
			},
			&cli.IntFlag{
				Name:  "sample-size",
				Value: discovery.DefaultSampleSize,
				Usage: "Data rows to analyse",
			},
			&cli.StringFlag{
				Name:  "format",
				Value: "yaml",
				Usage: "Output format (json or yaml)",
			},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			spreadsheetID := cmd.Args().First()
			if spreadsheetID == "" {
				return fmt.Errorf("spreadsheet id or workbook path is required")
			}
			tableName := cmd.Args().Get(1)
			if tableName == "" {
				tableName = discovery.AutoTableName
			}

			engine, err := newCLIEngine(ctx, cmd, logger, spreadsheetID)
			if err != nil {
				return err
			}

			schema, err := engine.GetTableSchema(ctx, spreadsheetID, discovery.SchemaOptions{
				TableName:  tableName,
				SheetName:  cmd.String("sheet"),
				SampleSize: cmd.Int("sample-size"),
			})
			if err != nil {
				return err
			}

			return printSchema(cmd.Root().Writer, schema, cmd.String("format"))
		},
	}
}

func toolsCommand() *cli.Command {
	return &cli.Command{
		Name:  "tools",
		Usage: "List the MCP tools this server exposes",
		Action: func(ctx context.Context, cmd *cli.Command) error {
			withHelp := registry.GetToolNamesWithExtendedHelp()
			for _, name := range registry.GetEnabledToolNames() {
				suffix := ""
				if slices.Contains(withHelp, name) {
					suffix = " (extended help)"
				}
				_, _ = fmt.Fprintf(cmd.Root().Writer, "%s%s\n", name, suffix)
			}
			return nil
		},
	}
}

// newCLIEngine loads configuration and returns an engine for spreadsheetID.
// CLI commands log to stderr.
func newCLIEngine(ctx context.Context, cmd *cli.Command, logger *logrus.Logger, spreadsheetID string) (*discovery.Engine, error) {
	logger.SetOutput(os.Stderr)
	logger.SetLevel(parseLogLevel())

	cfg, err := config.Load(cmd.String("config"))
	if err != nil {
		return nil, err
	}

	resolver := sheetstool.NewResolver(cfg, logger)
	// A workbook named on the command line is readable wherever it lives
	if resolver.KindFor(spreadsheetID) == sheets.KindWorkbook && filepath.IsAbs(spreadsheetID) {
		resolver.Workbook.AllowedDirs = append(resolver.Workbook.AllowedDirs, filepath.Dir(spreadsheetID))
	}

	source, err := resolver.SourceFor(ctx, spreadsheetID)
	if err != nil {
		return nil, err
	}
	return discovery.New(source, logger), nil
}

// printTables writes a coloured, aligned table listing
func printTables(w io.Writer, catalog *discovery.Catalog) error {
	bold := color.New(color.Bold).SprintFunc()
	name := color.New(color.FgCyan).SprintFunc()

	_, _ = fmt.Fprintf(w, "%s %s (%d tables)\n\n", bold("Spreadsheet:"), catalog.SpreadsheetID, catalog.TotalTables)

	if len(catalog.Tables) > 0 {
		tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
		_, _ = fmt.Fprintln(tw, bold("TABLE")+"\t"+bold("SHEET")+"\t"+bold("RANGE")+"\t"+bold("ROWS")+"\t"+bold("COLUMNS")+"\t"+bold("CONFIDENCE"))
		for _, table := range catalog.Tables {
			_, _ = fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%d\t%s\n",
				name(table.TableName), table.SheetName, table.RangeNotation,
				table.RowCount, table.ColumnCount, confidenceColour(table.Confidence))
		}
		if err := tw.Flush(); err != nil {
			return err
		}
	}

	if len(catalog.SkippedSheets) > 0 {
		warn := color.New(color.FgYellow).SprintFunc()
		_, _ = fmt.Fprintf(w, "\n%s\n", warn("Skipped sheets:"))
		for _, scan := range catalog.SkippedSheets {
			_, _ = fmt.Fprintf(w, "  %s: %s\n", scan.SheetName, scan.Reason)
		}
	}
	return nil
}

func confidenceColour(confidence float64) string {
	text := fmt.Sprintf("%.2f", confidence)
	switch {
	case confidence >= 0.8:
		return color.GreenString(text)
	case confidence >= discovery.DefaultMinConfidence:
		return color.YellowString(text)
	default:
		return color.RedString(text)
	}
}

// printSchema writes the schema as json or yaml
func printSchema(w io.Writer, schema *discovery.TableSchema, format string) error {
	switch strings.ToLower(format) {
	case "json":
		return writeJSON(w, schema)
	case "yaml", "yml":
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(schema); err != nil {
			return fmt.Errorf("failed to encode schema: %w", err)
		}
		return enc.Close()
	default:
		return fmt.Errorf("unsupported format %q (expected json or yaml)", format)
	}
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
