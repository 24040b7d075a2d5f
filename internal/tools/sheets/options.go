package sheets

import (
	"strings"

	"github.com/sammcj/mcp-sheets/internal/discovery"
)

// maxRangesPerCall bounds get_values fan-out
const maxRangesPerCall = 50

func listOptions(options map[string]any) (discovery.ListOptions, error) {
	opts := discovery.DefaultListOptions()
	if v, ok := getNumberOption(options, "min_rows"); ok {
		opts.MinRows = v
	}
	if v, ok := getNumberOption(options, "min_columns"); ok {
		opts.MinColumns = v
	}
	if v, ok := getFloatOption(options, "min_confidence"); ok {
		opts.MinConfidence = v
	}
	return opts, opts.Validate()
}

func schemaOptions(sheetName string, options map[string]any) (discovery.SchemaOptions, error) {
	opts := discovery.SchemaOptions{
		TableName:  strings.TrimSpace(getStringOption(options, "table_name")),
		SheetName:  strings.TrimSpace(sheetName),
		SampleSize: discovery.DefaultSampleSize,
	}
	if v, ok := getNumberOption(options, "sample_size"); ok {
		opts.SampleSize = v
	}
	return opts, opts.Validate()
}

// valueRanges collects options.range and options.ranges, in that order
func valueRanges(options map[string]any) ([]string, error) {
	var ranges []string
	if rng := strings.TrimSpace(getStringOption(options, "range")); rng != "" {
		ranges = append(ranges, rng)
	}

	switch list := options["ranges"].(type) {
	case nil:
	case []any:
		for _, item := range list {
			rng, ok := item.(string)
			if !ok || strings.TrimSpace(rng) == "" {
				return nil, &discovery.ValidationError{Field: "ranges", Value: item, Message: "every range must be a non-empty string"}
			}
			ranges = append(ranges, strings.TrimSpace(rng))
		}
	case []string:
		for _, rng := range list {
			if strings.TrimSpace(rng) == "" {
				return nil, &discovery.ValidationError{Field: "ranges", Value: rng, Message: "every range must be a non-empty string"}
			}
			ranges = append(ranges, strings.TrimSpace(rng))
		}
	default:
		return nil, &discovery.ValidationError{Field: "ranges", Value: list, Message: "ranges must be an array of strings"}
	}

	if len(ranges) == 0 {
		return nil, &discovery.ValidationError{Field: "range", Value: "", Message: "range or ranges is required"}
	}
	if len(ranges) > maxRangesPerCall {
		return nil, &discovery.ValidationError{Field: "ranges", Value: len(ranges), Message: "too many ranges in one call"}
	}
	return ranges, nil
}

// getNumberOption safely extracts an integer option
func getNumberOption(options map[string]any, key string) (int, bool) {
	switch v := options[key].(type) {
	case float64:
		return int(v), true
	case int:
		return v, true
	default:
		return 0, false
	}
}

func getFloatOption(options map[string]any, key string) (float64, bool) {
	switch v := options[key].(type) {
	case float64:
		return v, true
	case int:
		return float64(v), true
	default:
		return 0, false
	}
}

func getStringOption(options map[string]any, key string) string {
	s, _ := options[key].(string)
	return s
}
