package telemetry

import (
	"context"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetrichttp"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
)

const defaultMetricExportInterval = 60 * time.Second

// Metric groups selectable with MCP_METRICS_GROUPS
const (
	MetricGroupTool   = "tool"
	MetricGroupSheets = "sheets"
)

var (
	metricsMutex        sync.RWMutex
	globalMeterProvider *sdkmetric.MeterProvider
	globalMeter         metric.Meter
	metricsEnabled      bool
	enabledMetricGroups map[string]bool

	toolCallsCounter      metric.Int64Counter
	toolDurationHistogram metric.Float64Histogram
	toolErrorsCounter     metric.Int64Counter

	sheetScansCounter      metric.Int64Counter
	tablesDiscoveredCount  metric.Int64Counter
	schemaColumnsHistogram metric.Int64Histogram
)

// InitMetrics configures the OTLP meter provider using the same endpoint as
// tracing. Call after InitTracer.
func InitMetrics(logger *logrus.Logger) (func() error, error) {
	metricsMutex.Lock()
	defer metricsMutex.Unlock()

	noopShutdown := func() error { return nil }

	enabledMetricGroups = parseEnabledMetricGroups()
	if len(enabledMetricGroups) == 0 {
		enabledMetricGroups = map[string]bool{MetricGroupTool: true, MetricGroupSheets: true}
	}

	endpoint := os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT")
	if endpoint == "" || strings.EqualFold(os.Getenv("OTEL_SDK_DISABLED"), "true") {
		logger.Debug("OTEL Metrics: Not configured, using noop meter")
		metricsEnabled = false
		globalMeter = otel.GetMeterProvider().Meter(ServiceName)
		return noopShutdown, nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	var exporter sdkmetric.Exporter
	var err error
	switch protocol := getOTLPProtocol(); protocol {
	case "grpc":
		exporter, err = otlpmetricgrpc.New(ctx)
	case "http/protobuf", "http":
		exporter, err = otlpmetrichttp.New(ctx)
	default:
		logger.WithField("protocol", protocol).Warn("OTEL Metrics: Unknown protocol, defaulting to http")
		exporter, err = otlpmetrichttp.New(ctx)
	}
	if err != nil {
		logger.WithError(err).Warn("OTEL Metrics: Failed to create exporter, falling back to noop meter")
		metricsEnabled = false
		globalMeter = otel.GetMeterProvider().Meter(ServiceName)
		return noopShutdown, err
	}

	provider := sdkmetric.NewMeterProvider(
		sdkmetric.WithReader(sdkmetric.NewPeriodicReader(exporter,
			sdkmetric.WithInterval(getMetricExportInterval(logger)),
		)),
		sdkmetric.WithResource(newResource(ctx, logger)),
	)
	otel.SetMeterProvider(provider)
	globalMeterProvider = provider
	globalMeter = provider.Meter(ServiceName)

	if err := initMetricInstruments(globalMeter, enabledMetricGroups); err != nil {
		logger.WithError(err).Error("OTEL Metrics: Failed to initialise instruments")
		return noopShutdown, err
	}
	metricsEnabled = true
	logger.WithField("endpoint", endpoint).Info("OTEL Metrics: Meter initialised")

	return func() error {
		metricsMutex.Lock()
		defer metricsMutex.Unlock()

		if globalMeterProvider == nil {
			return nil
		}
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutdownCancel()
		err := globalMeterProvider.Shutdown(shutdownCtx)
		globalMeterProvider = nil
		metricsEnabled = false
		return err
	}, nil
}

func initMetricInstruments(meter metric.Meter, groups map[string]bool) error {
	var err error

	if groups[MetricGroupTool] {
		if toolCallsCounter, err = meter.Int64Counter("mcp.tool.calls",
			metric.WithDescription("Total tool invocations"),
			metric.WithUnit("{call}"),
		); err != nil {
			return err
		}
		if toolDurationHistogram, err = meter.Float64Histogram("mcp.tool.duration",
			metric.WithDescription("Tool execution duration"),
			metric.WithUnit("ms"),
		); err != nil {
			return err
		}
		if toolErrorsCounter, err = meter.Int64Counter("mcp.tool.errors",
			metric.WithDescription("Tool errors by category"),
			metric.WithUnit("{error}"),
		); err != nil {
			return err
		}
	}

	if groups[MetricGroupSheets] {
		if sheetScansCounter, err = meter.Int64Counter("sheets.worksheet.scans",
			metric.WithDescription("Worksheets analysed for tables"),
			metric.WithUnit("{worksheet}"),
		); err != nil {
			return err
		}
		if tablesDiscoveredCount, err = meter.Int64Counter("sheets.tables.discovered",
			metric.WithDescription("Tables passing the confidence threshold"),
			metric.WithUnit("{table}"),
		); err != nil {
			return err
		}
		if schemaColumnsHistogram, err = meter.Int64Histogram("sheets.schema.columns",
			metric.WithDescription("Columns per inferred table schema"),
			metric.WithUnit("{column}"),
		); err != nil {
			return err
		}
	}

	return nil
}

// IsMetricsEnabled returns true if metrics collection is enabled
func IsMetricsEnabled() bool {
	metricsMutex.RLock()
	defer metricsMutex.RUnlock()
	return metricsEnabled
}

func isMetricGroupEnabled(group string) bool {
	metricsMutex.RLock()
	defer metricsMutex.RUnlock()
	return metricsEnabled && enabledMetricGroups[group]
}

// RecordToolCall records a tool invocation and its duration
func RecordToolCall(ctx context.Context, toolName, function string, success bool, durationMs float64) {
	if !isMetricGroupEnabled(MetricGroupTool) {
		return
	}

	result := "success"
	if !success {
		result = "error"
	}
	attrs := metric.WithAttributes(
		attribute.String("tool.name", toolName),
		attribute.String("tool.function", function),
	)

	toolCallsCounter.Add(ctx, 1, attrs, metric.WithAttributes(attribute.String("result", result)))
	toolDurationHistogram.Record(ctx, durationMs, attrs)
}

// RecordToolError records a categorised tool error
func RecordToolError(ctx context.Context, toolName, errorType string) {
	if !isMetricGroupEnabled(MetricGroupTool) {
		return
	}
	toolErrorsCounter.Add(ctx, 1, metric.WithAttributes(
		attribute.String("tool.name", toolName),
		attribute.String("error.type", errorType),
	))
}

// RecordSheetScan records one worksheet analysis and the tables it produced
func RecordSheetScan(ctx context.Context, source string, tables int, skipped bool) {
	if !isMetricGroupEnabled(MetricGroupSheets) {
		return
	}
	sheetScansCounter.Add(ctx, 1, metric.WithAttributes(
		attribute.String(AttrSheetsSource, source),
		attribute.Bool("skipped", skipped),
	))
	if tables > 0 {
		tablesDiscoveredCount.Add(ctx, int64(tables), metric.WithAttributes(
			attribute.String(AttrSheetsSource, source),
		))
	}
}

// RecordSchemaInferred records the width of an inferred schema
func RecordSchemaInferred(ctx context.Context, source string, columns int) {
	if !isMetricGroupEnabled(MetricGroupSheets) {
		return
	}
	schemaColumnsHistogram.Record(ctx, int64(columns), metric.WithAttributes(
		attribute.String(AttrSheetsSource, source),
	))
}

// CategoriseToolError maps an error message to a metric-friendly category
func CategoriseToolError(err error) string {
	if err == nil {
		return ""
	}

	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "validation error"):
		return "validation"
	case strings.Contains(msg, "not found"), strings.Contains(msg, "notfound"):
		return "not_found"
	case strings.Contains(msg, "deadline exceeded"), strings.Contains(msg, "timeout"):
		return "timeout"
	case strings.Contains(msg, "dial tcp"), strings.Contains(msg, "connection refused"), strings.Contains(msg, "no such host"):
		return "network"
	case strings.Contains(msg, "permission"), strings.Contains(msg, "forbidden"), strings.Contains(msg, "credentials"):
		return "auth"
	case strings.Contains(msg, "source error"):
		return "upstream"
	default:
		return "internal"
	}
}

func parseEnabledMetricGroups() map[string]bool {
	enabled := make(map[string]bool)
	for group := range strings.SplitSeq(os.Getenv("MCP_METRICS_GROUPS"), ",") {
		if group = strings.TrimSpace(group); group != "" {
			enabled[group] = true
		}
	}
	return enabled
}

func getMetricExportInterval(logger *logrus.Logger) time.Duration {
	raw := os.Getenv("OTEL_METRIC_EXPORT_INTERVAL")
	if raw == "" {
		return defaultMetricExportInterval
	}

	// bare numbers are seconds
	d, err := time.ParseDuration(raw)
	if err != nil {
		if d, err = time.ParseDuration(raw + "s"); err != nil {
			logger.WithField("interval", raw).Warn("OTEL Metrics: Invalid export interval, using default")
			return defaultMetricExportInterval
		}
	}
	return d
}
