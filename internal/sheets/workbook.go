package sheets

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/xuri/excelize/v2"
)

// WorkbookSource reads grids from local .xlsx workbooks. The spreadsheet id
// is the workbook path; relative paths resolve under BaseDir. Every path,
// absolute or relative, must end up inside BaseDir or one of AllowedDirs.
type WorkbookSource struct {
	BaseDir     string
	AllowedDirs []string
	logger      *logrus.Logger
}

// NewWorkbookSource creates a local workbook Source
func NewWorkbookSource(baseDir string, logger *logrus.Logger, allowedDirs ...string) *WorkbookSource {
	return &WorkbookSource{BaseDir: baseDir, AllowedDirs: allowedDirs, logger: logger}
}

// ResolvePath resolves a workbook path and checks it against the allowed
// directories, following symlinks.
func (w *WorkbookSource) ResolvePath(path string) (string, error) {
	if strings.TrimSpace(path) == "" {
		return "", fmt.Errorf("workbook path cannot be empty")
	}

	if !filepath.IsAbs(path) {
		clean := filepath.Clean(path)
		if strings.Contains(clean, "..") {
			return "", fmt.Errorf("directory traversal not allowed: %s", path)
		}
		path = filepath.Join(w.BaseDir, clean)
	}
	cleanPath, err := filepath.Abs(path)
	if err != nil {
		return "", fmt.Errorf("failed to resolve workbook path: %w", err)
	}

	for _, dir := range w.roots() {
		if !withinDir(cleanPath, dir) {
			continue
		}

		realPath, err := filepath.EvalSymlinks(cleanPath)
		if err != nil {
			if os.IsNotExist(err) {
				// open reports the missing file
				return cleanPath, nil
			}
			return "", fmt.Errorf("failed to resolve symlinks: %w", err)
		}
		if withinDir(realPath, dir) {
			return realPath, nil
		}
		return "", fmt.Errorf("access denied - symlink target outside allowed directories: %s", path)
	}

	return "", fmt.Errorf("access denied - workbook outside allowed directories: %s", path)
}

func (w *WorkbookSource) roots() []string {
	var roots []string
	for _, dir := range append([]string{w.BaseDir}, w.AllowedDirs...) {
		if strings.TrimSpace(dir) == "" {
			continue
		}
		abs, err := filepath.Abs(dir)
		if err != nil {
			continue
		}
		roots = append(roots, filepath.Clean(abs))
	}
	return roots
}

// withinDir reports whether path is dir or below it, also comparing against
// dir's real path (/tmp is a symlink on macOS)
func withinDir(path, dir string) bool {
	sep := string(filepath.Separator)
	if path == dir || strings.HasPrefix(path+sep, dir+sep) {
		return true
	}
	realDir, err := filepath.EvalSymlinks(dir)
	if err != nil {
		return false
	}
	realDir = filepath.Clean(realDir)
	return path == realDir || strings.HasPrefix(path+sep, realDir+sep)
}

func (w *WorkbookSource) open(spreadsheetID string) (*excelize.File, error) {
	fullPath, err := w.ResolvePath(spreadsheetID)
	if err != nil {
		return nil, err
	}
	f, err := excelize.OpenFile(fullPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open workbook: %w", err)
	}
	return f, nil
}

func (w *WorkbookSource) close(f *excelize.File) {
	if err := f.Close(); err != nil && w.logger != nil {
		w.logger.WithError(err).Warn("Failed to close workbook")
	}
}

// GetSpreadsheetMetadata lists worksheets in workbook order. Sheet ids are
// the workbook's internal sheet ids.
func (w *WorkbookSource) GetSpreadsheetMetadata(ctx context.Context, spreadsheetID string) ([]SheetInfo, error) {
	f, err := w.open(spreadsheetID)
	if err != nil {
		return nil, &SourceError{Operation: "get_spreadsheet", SpreadsheetID: spreadsheetID, Cause: err}
	}
	defer w.close(f)

	ids := make(map[string]int64)
	for id, name := range f.GetSheetMap() {
		ids[name] = int64(id)
	}

	names := f.GetSheetList()
	infos := make([]SheetInfo, 0, len(names))
	for _, name := range names {
		infos = append(infos, SheetInfo{ID: ids[name], Title: name})
	}
	return infos, nil
}

// GetValues returns the cells inside rangeNotation, trimmed like the Sheets API
func (w *WorkbookSource) GetValues(ctx context.Context, spreadsheetID, rangeNotation string) (Grid, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	r, err := ParseRange(rangeNotation)
	if err != nil {
		return nil, &SourceError{Operation: "get_values", SpreadsheetID: spreadsheetID, Range: rangeNotation, Cause: err}
	}

	f, err := w.open(spreadsheetID)
	if err != nil {
		return nil, &SourceError{Operation: "get_values", SpreadsheetID: spreadsheetID, Range: rangeNotation, Cause: err}
	}
	defer w.close(f)

	rows, err := f.GetRows(r.Sheet)
	if err != nil {
		return nil, &SourceError{Operation: "get_values", SpreadsheetID: spreadsheetID, Range: rangeNotation, Cause: err}
	}

	grid := GridFromStrings(sliceRows(rows, r))

	if w.logger != nil {
		w.logger.WithFields(logrus.Fields{
			"workbook": spreadsheetID,
			"range":    rangeNotation,
			"rows":     len(grid),
		}).Debug("Read workbook values")
	}
	return TrimGrid(grid), nil
}

// sliceRows cuts the 1-based inclusive window r out of rows
func sliceRows(rows [][]string, r CellRange) [][]string {
	if r.WholeSheet() {
		return rows
	}

	var out [][]string
	for rowNum := r.StartRow; rowNum <= r.EndRow && rowNum <= len(rows); rowNum++ {
		row := rows[rowNum-1]
		if r.StartCol > len(row) {
			out = append(out, []string{})
			continue
		}
		end := min(r.EndCol, len(row))
		out = append(out, row[r.StartCol-1:end])
	}
	return out
}
