package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"runtime/debug"
	"strconv"
	"strings"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"
	"github.com/sammcj/mcp-sheets/internal/config"
	"github.com/sammcj/mcp-sheets/internal/registry"
	"github.com/sammcj/mcp-sheets/internal/telemetry"
	"github.com/sammcj/mcp-sheets/internal/tools"
	sheetstool "github.com/sammcj/mcp-sheets/internal/tools/sheets"
	"github.com/sirupsen/logrus"
	"github.com/urfave/cli/v3"

	// Import all tool packages to register them
	_ "github.com/sammcj/mcp-sheets/internal/imports"
)

// Version information (set during build)
var (
	Version   = "dev"
	Commit    = "none"
	BuildDate = "unknown"
)

// Global resources that need cleanup
var (
	debugLogFile  atomic.Pointer[os.File]
	isStdioMode   atomic.Bool
	otelShutdowns atomic.Pointer[[]func() error]
)

const (
	// DefaultMemoryLimit is the default soft memory limit (2GB)
	DefaultMemoryLimit = 2 * 1024 * 1024 * 1024
)

// parseLogLevel parses the LOG_LEVEL environment variable.
// Defaults to WarnLevel if not set or invalid.
func parseLogLevel() logrus.Level {
	switch strings.ToLower(strings.TrimSpace(os.Getenv("LOG_LEVEL"))) {
	case "debug":
		return logrus.DebugLevel
	case "info":
		return logrus.InfoLevel
	case "error":
		return logrus.ErrorLevel
	case "fatal":
		return logrus.FatalLevel
	case "panic":
		return logrus.PanicLevel
	default:
		return logrus.WarnLevel
	}
}

// setMemoryLimit configures the Go runtime soft memory limit
func setMemoryLimit() {
	var memLimit int64 = DefaultMemoryLimit
	if parsed, err := strconv.ParseInt(os.Getenv("MCP_SHEETS_MEMORY_LIMIT"), 10, 64); err == nil && parsed > 0 {
		memLimit = parsed
	}
	debug.SetMemoryLimit(memLimit)
}

func main() {
	setMemoryLimit()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Discard output until the transport is known
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	logger.SetLevel(parseLogLevel())
	logger.SetFormatter(&logrus.TextFormatter{
		FullTimestamp: true,
	})

	registry.Init(logger)

	defer performCleanup(logger)

	app := &cli.Command{
		Name:    "mcp-sheets",
		Usage:   "MCP server for spreadsheet table discovery and schema inference",
		Version: fmt.Sprintf("%s (commit: %s, built: %s)", Version, Commit, BuildDate),
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "transport",
				Aliases: []string{"t"},
				Value:   "stdio",
				Usage:   "Transport type (stdio, sse, or http)",
			},
			&cli.StringFlag{
				Name:  "port",
				Value: "18080",
				Usage: "Port to use for HTTP transports (SSE and Streamable HTTP)",
			},
			&cli.StringFlag{
				Name:  "base-url",
				Value: "http://localhost",
				Usage: "Base URL for HTTP transports",
			},
			&cli.StringFlag{
				Name:    "auth-token",
				Usage:   "Bearer token required by the Streamable HTTP transport (optional)",
				Sources: cli.EnvVars("MCP_SHEETS_AUTH_TOKEN"),
			},
			&cli.StringFlag{
				Name:  "endpoint-path",
				Value: "/http",
				Usage: "Endpoint path for Streamable HTTP transport",
			},
			&cli.DurationFlag{
				Name:  "session-timeout",
				Value: 30 * time.Minute,
				Usage: "Session timeout for Streamable HTTP transport",
			},
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Path to the YAML configuration file (default: ~/.mcp-sheets/config.yaml)",
				Sources: cli.EnvVars("MCP_SHEETS_CONFIG"),
			},
		},
		Commands: []*cli.Command{
			versionCommand(),
			tablesCommand(logger),
			schemaCommand(logger),
			toolsCommand(),
		},
		Action: func(cliCtx context.Context, cmd *cli.Command) error {
			transport := cmd.String("transport")
			isStdioMode.Store(transport == "stdio")

			configureLogging(logger, transport == "stdio")

			cfg, err := config.Load(cmd.String("config"))
			if err != nil {
				return err
			}
			sheetstool.Configure(cfg)
			logger.WithFields(logrus.Fields{
				"source":       cfg.Source,
				"workbook_dir": cfg.WorkbookDir,
			}).Debug("Configuration loaded")

			if err := tools.InitGlobalErrorLogger(logger); err != nil {
				logger.WithError(err).Warn("Failed to initialise tool error logger")
			}

			initTelemetry(logger)

			if transport != "stdio" {
				logger.Infof("Starting mcp-sheets version %s (commit: %s, built: %s)", Version, Commit, BuildDate)
			}

			mcpSrv := newMCPServer(logger, transport)

			logger.WithField("transport", transport).Debug("Starting server")
			switch transport {
			case "stdio":
				return mcpserver.ServeStdio(mcpSrv)
			case "sse":
				port := cmd.String("port")
				logger.WithField("port", port).Debug("Starting SSE server")
				sseServer := mcpserver.NewSSEServer(mcpSrv, mcpserver.WithBaseURL(cmd.String("base-url")+"/sse"))
				return sseServer.Start(":" + port)
			case "http":
				return startStreamableHTTPServer(cliCtx, cmd, mcpSrv, logger)
			default:
				return fmt.Errorf("unsupported transport: %s", transport)
			}
		},
	}

	if err := app.Run(ctx, os.Args); err != nil {
		// Nothing may be written outside the protocol in stdio mode
		if !isStdioMode.Load() {
			logger.SetOutput(os.Stderr)
			logger.Fatalf("Error: %v", err)
		}
		os.Exit(1)
	}
}

// configureLogging sends logs to ~/.mcp-sheets/logs/mcp-sheets.log. When the
// file cannot be opened stdio mode discards logs and other modes use stderr.
func configureLogging(logger *logrus.Logger, stdio bool) {
	level := parseLogLevel()

	var out io.Writer = os.Stderr
	if stdio {
		out = io.Discard
	}

	logDir := filepath.Join(config.HomeDir(), "logs")
	if err := os.MkdirAll(logDir, 0700); err == nil {
		logFile := filepath.Join(logDir, "mcp-sheets.log")
		if file, err := os.OpenFile(logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0600); err == nil {
			debugLogFile.Store(file)
			out = file
		}
	}

	logger.SetOutput(out)
	logger.SetLevel(level)
	logrus.SetOutput(out)
	logrus.SetLevel(level)
	logger.WithField("level", level.String()).Debug("Logging configured")
}

// initTelemetry starts tracing and metrics export when OTEL_EXPORTER_OTLP_ENDPOINT is set
func initTelemetry(logger *logrus.Logger) {
	var shutdowns []func() error

	shutdownTracer, err := telemetry.InitTracer(logger)
	if err != nil {
		logger.WithError(err).Warn("Failed to initialise tracing")
	}
	shutdowns = append(shutdowns, shutdownTracer)

	shutdownMetrics, err := telemetry.InitMetrics(logger)
	if err != nil {
		logger.WithError(err).Warn("Failed to initialise metrics")
	}
	shutdowns = append(shutdowns, shutdownMetrics)

	otelShutdowns.Store(&shutdowns)
}

// newMCPServer creates the server and registers every enabled tool
func newMCPServer(logger *logrus.Logger, transport string) *mcpserver.MCPServer {
	mcpSrv := mcpserver.NewMCPServer("mcp-sheets", Version)
	processSessionID := telemetry.GenerateSessionID()

	enabledTools := registry.GetEnabledTools()
	logger.WithField("tool_count", len(enabledTools)).Debug("Registering tools")

	for name, tool := range enabledTools {
		if transport != "stdio" {
			logger.Infof("Registering tool: %s", name)
		}

		mcpSrv.AddTool(tool.Definition(), func(toolCtx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			currentTool, ok := registry.GetTool(name)
			if !ok {
				return nil, fmt.Errorf("tool not found: %s", name)
			}

			args, ok := request.Params.Arguments.(map[string]any)
			if !ok {
				return nil, fmt.Errorf("invalid arguments type: expected map[string]any, got %T", request.Params.Arguments)
			}

			sessionID := processSessionID
			if session := mcpserver.ClientSessionFromContext(toolCtx); session != nil && session.SessionID() != "" {
				sessionID = session.SessionID()
			}
			toolCtx = telemetry.ContextWithSessionID(toolCtx, sessionID)

			result, err := currentTool.Execute(toolCtx, registry.GetLogger(), registry.GetCache(), args)
			if err != nil {
				if transport != "stdio" {
					logger.WithError(err).Errorf("Tool execution failed: %s", name)
				}
				if errorLogger := tools.GetGlobalErrorLogger(); errorLogger.IsEnabled() {
					errorLogger.LogToolError(name, args, err, transport)
				}
				return nil, fmt.Errorf("tool execution failed: %w", err)
			}

			return result, nil
		})
	}

	return mcpSrv
}

// performCleanup releases log files and flushes telemetry on shutdown
func performCleanup(logger *logrus.Logger) {
	if shutdowns := otelShutdowns.Load(); shutdowns != nil {
		for _, shutdown := range *shutdowns {
			if err := shutdown(); err != nil {
				logger.WithError(err).Debug("Telemetry shutdown failed")
			}
		}
	}

	if err := tools.GetGlobalErrorLogger().Close(); err != nil {
		logger.WithError(err).Warn("Failed to close tool error logger")
	}

	// Closed last as the logger may still be writing to it
	if file := debugLogFile.Load(); file != nil {
		_ = file.Close()
	}
}
