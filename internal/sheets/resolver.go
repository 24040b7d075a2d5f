package sheets

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"sync"

	"github.com/sirupsen/logrus"
)

// Source kinds accepted by Resolver
const (
	KindAuto     = "auto"
	KindGoogle   = "google"
	KindWorkbook = "workbook"
)

// Resolver picks a Source for a spreadsheet id. The Google client is built
// lazily on first use and reused for the life of the Resolver; no values are
// ever retained.
type Resolver struct {
	Kind     string
	Google   GoogleOptions
	Workbook *WorkbookSource

	logger *logrus.Logger

	mu     sync.Mutex
	google Source
}

// NewResolver creates a Resolver
func NewResolver(kind string, google GoogleOptions, workbookDir string, logger *logrus.Logger) *Resolver {
	if kind == "" {
		kind = KindAuto
	}
	return &Resolver{
		Kind:     kind,
		Google:   google,
		Workbook: NewWorkbookSource(workbookDir, logger),
		logger:   logger,
	}
}

// IsWorkbookID reports whether the id looks like a local workbook path
func IsWorkbookID(spreadsheetID string) bool {
	ext := strings.ToLower(filepath.Ext(spreadsheetID))
	return ext == ".xlsx" || ext == ".xlsm"
}

// KindFor reports which source kind serves spreadsheetID
func (r *Resolver) KindFor(spreadsheetID string) string {
	if r.Kind == KindAuto {
		if IsWorkbookID(spreadsheetID) {
			return KindWorkbook
		}
		return KindGoogle
	}
	return r.Kind
}

// SourceFor returns the Source that serves spreadsheetID
func (r *Resolver) SourceFor(ctx context.Context, spreadsheetID string) (Source, error) {
	switch r.KindFor(spreadsheetID) {
	case KindWorkbook:
		return r.Workbook, nil
	case KindGoogle:
		return r.googleSource(ctx)
	default:
		return nil, fmt.Errorf("unknown sheets source %q (expected auto, google or workbook)", r.Kind)
	}
}

func (r *Resolver) googleSource(ctx context.Context) (Source, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.google != nil {
		return r.google, nil
	}
	src, err := NewGoogleSource(ctx, r.Google, r.logger)
	if err != nil {
		return nil, err
	}
	r.google = src
	return src, nil
}

// SetGoogleSource overrides the Google-backed Source
func (r *Resolver) SetGoogleSource(src Source) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.google = src
}
