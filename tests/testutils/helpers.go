package testutils

import (
	"context"
	"encoding/json"
	"path/filepath"
	"reflect"
	"strings"
	"sync"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/sirupsen/logrus"
	"github.com/xuri/excelize/v2"
)

// CreateTestLogger creates a logger suitable for testing
func CreateTestLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetLevel(logrus.ErrorLevel) // Reduce noise in tests
	return logger
}

// CreateTestCache creates a cache suitable for testing
func CreateTestCache() *sync.Map {
	return &sync.Map{}
}

// CreateTestContext creates a context suitable for testing
func CreateTestContext() context.Context {
	return context.Background()
}

// AssertNoError fails the test if err is not nil
func AssertNoError(t *testing.T, err error) {
	t.Helper()
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
}

// AssertError fails the test if err is nil
func AssertError(t *testing.T, err error) {
	t.Helper()
	if err == nil {
		t.Fatal("Expected error, got nil")
	}
}

// AssertErrorContains fails the test if err is nil or doesn't contain the expected message
func AssertErrorContains(t *testing.T, err error, expected string) {
	t.Helper()
	if err == nil {
		t.Fatal("Expected error, got nil")
	}
	if !strings.Contains(err.Error(), expected) {
		t.Fatalf("Expected error to contain '%s', got: %v", expected, err)
	}
}

// AssertNotNil fails the test if value is nil
func AssertNotNil(t *testing.T, value any) {
	t.Helper()
	if value == nil {
		t.Fatal("Expected non-nil value")
	}
}

// AssertNil fails the test unless value is nil or a nil pointer
func AssertNil(t *testing.T, value any) {
	t.Helper()
	if value == nil {
		return
	}
	rv := reflect.ValueOf(value)
	if rv.Kind() == reflect.Ptr && rv.IsNil() {
		return
	}
	t.Fatalf("Expected nil value, got %v (type: %T)", value, value)
}

// AssertEqual fails the test if expected != actual
func AssertEqual(t *testing.T, expected, actual any) {
	t.Helper()
	if expected != actual {
		t.Fatalf("Expected %v, got %v", expected, actual)
	}
}

// AssertTrue fails the test if condition is false
func AssertTrue(t *testing.T, condition bool) {
	t.Helper()
	if !condition {
		t.Fatal("Expected condition to be true")
	}
}

// AssertFalse fails the test if condition is true
func AssertFalse(t *testing.T, condition bool) {
	t.Helper()
	if condition {
		t.Fatal("Expected condition to be false")
	}
}

// DecodeResult unmarshals the JSON text content of a tool result into v
func DecodeResult(t *testing.T, result *mcp.CallToolResult, v any) {
	t.Helper()

	if result == nil || len(result.Content) == 0 {
		t.Fatal("Expected content in tool result")
	}

	textContent, ok := mcp.AsTextContent(result.Content[0])
	if !ok {
		t.Fatalf("Expected TextContent, got %T", result.Content[0])
	}

	if err := json.Unmarshal([]byte(textContent.Text), v); err != nil {
		t.Fatalf("Failed to parse tool result JSON: %v", err)
	}
}

// Worksheet is one sheet of a generated workbook
type Worksheet struct {
	Name string
	Rows [][]any
}

// WriteWorkbook saves an .xlsx file named name in dir and returns its path.
// Rows are written from A1; nil values leave the cell blank.
func WriteWorkbook(t *testing.T, dir, name string, worksheets ...Worksheet) string {
	t.Helper()

	f := excelize.NewFile()
	defer func() { _ = f.Close() }()

	for i, ws := range worksheets {
		if i == 0 {
			if err := f.SetSheetName("Sheet1", ws.Name); err != nil {
				t.Fatalf("Failed to rename sheet: %v", err)
			}
		} else if _, err := f.NewSheet(ws.Name); err != nil {
			t.Fatalf("Failed to add sheet %s: %v", ws.Name, err)
		}

		for r, row := range ws.Rows {
			cell, err := excelize.CoordinatesToCellName(1, r+1)
			if err != nil {
				t.Fatalf("Invalid row %d: %v", r+1, err)
			}
			values := row
			if err := f.SetSheetRow(ws.Name, cell, &values); err != nil {
				t.Fatalf("Failed to write row %d of %s: %v", r+1, ws.Name, err)
			}
		}
	}

	path := filepath.Join(dir, name)
	if err := f.SaveAs(path); err != nil {
		t.Fatalf("Failed to save workbook: %v", err)
	}
	return path
}

// Contains checks if a string contains a substring
func Contains(s, substr string) bool {
	return strings.Contains(s, substr)
}
