package discovery

import (
	"fmt"
	"strings"

	"github.com/sahilm/fuzzy"
)

// ValidationError represents rejected input, raised before any source access
type ValidationError struct {
	Field   string
	Value   any
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error for field '%s' (value: %v): %s", e.Field, e.Value, e.Message)
}

// TableNotFoundError is returned when no discovered table matches a schema request
type TableNotFoundError struct {
	TableName   string
	SheetName   string
	Suggestions []string
}

func (e *TableNotFoundError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "table '%s' not found", e.TableName)
	if e.SheetName != "" {
		fmt.Fprintf(&b, " in sheet '%s'", e.SheetName)
	}
	if len(e.Suggestions) > 0 {
		fmt.Fprintf(&b, " (did you mean: %s?)", strings.Join(e.Suggestions, ", "))
	}
	return b.String()
}

const maxSuggestions = 3

// suggestTables returns the closest table names to name, best match first
func suggestTables(name string, candidates []string) []string {
	if name == "" || len(candidates) == 0 {
		return nil
	}

	matches := fuzzy.Find(name, candidates)
	suggestions := make([]string, 0, maxSuggestions)
	for _, m := range matches {
		if len(suggestions) == maxSuggestions {
			break
		}
		suggestions = append(suggestions, m.Str)
	}
	return suggestions
}
