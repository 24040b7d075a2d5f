package sheets

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/sammcj/mcp-sheets/internal/utils/httpclient"
	"github.com/sirupsen/logrus"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/option"
	gsheets "google.golang.org/api/sheets/v4"
)

const (
	// DefaultHTTPTimeout bounds every Sheets API request
	DefaultHTTPTimeout = 30 * time.Second
)

// GoogleOptions controls how the Sheets API client is built.
// Credentials are resolved in order: AccessToken, CredentialsFile, then
// application default credentials. Anonymous skips authorisation entirely.
type GoogleOptions struct {
	AccessToken     string
	CredentialsFile string
	Endpoint        string
	Timeout         time.Duration
	Anonymous       bool
}

// GoogleSource reads grids from the Google Sheets v4 API
type GoogleSource struct {
	service *gsheets.Service
	logger  *logrus.Logger
}

// NewGoogleSource creates a Sheets API backed Source. The source refreshes
// tokens with ctx's values but never its cancellation, so it may be built
// from a request context and kept after the request ends.
func NewGoogleSource(ctx context.Context, opts GoogleOptions, logger *logrus.Logger) (*GoogleSource, error) {
	ctx = context.WithoutCancel(ctx)

	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = DefaultHTTPTimeout
	}

	client, err := newAuthorisedClient(ctx, opts, timeout, logger)
	if err != nil {
		return nil, err
	}

	clientOpts := []option.ClientOption{option.WithHTTPClient(client)}
	if opts.Endpoint != "" {
		clientOpts = append(clientOpts, option.WithEndpoint(opts.Endpoint))
	}

	service, err := gsheets.NewService(ctx, clientOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create sheets service: %w", err)
	}

	return &GoogleSource{service: service, logger: logger}, nil
}

func newAuthorisedClient(ctx context.Context, opts GoogleOptions, timeout time.Duration, logger *logrus.Logger) (*http.Client, error) {
	base := httpclient.NewHTTPClientWithProxyAndLogger(timeout, logger)
	if opts.Anonymous {
		return base, nil
	}

	// oauth2 picks up the proxy-aware base client from the context
	authCtx := context.WithValue(ctx, oauth2.HTTPClient, base)

	var client *http.Client
	switch {
	case opts.AccessToken != "":
		ts := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: opts.AccessToken})
		client = oauth2.NewClient(authCtx, ts)
	case opts.CredentialsFile != "":
		data, err := os.ReadFile(opts.CredentialsFile)
		if err != nil {
			return nil, fmt.Errorf("failed to read credentials file: %w", err)
		}
		creds, err := google.CredentialsFromJSON(authCtx, data, gsheets.SpreadsheetsReadonlyScope)
		if err != nil {
			return nil, fmt.Errorf("failed to parse credentials file: %w", err)
		}
		client = oauth2.NewClient(authCtx, creds.TokenSource)
	default:
		var err error
		client, err = google.DefaultClient(authCtx, gsheets.SpreadsheetsReadonlyScope)
		if err != nil {
			return nil, fmt.Errorf("no Google credentials available: %w", err)
		}
	}

	client.Timeout = timeout
	return client, nil
}

// GetSpreadsheetMetadata lists the worksheets of a spreadsheet in tab order
func (s *GoogleSource) GetSpreadsheetMetadata(ctx context.Context, spreadsheetID string) ([]SheetInfo, error) {
	resp, err := s.service.Spreadsheets.Get(spreadsheetID).
		Fields("spreadsheetId,sheets.properties(sheetId,title)").
		Context(ctx).
		Do()
	if err != nil {
		return nil, &SourceError{Operation: "get_spreadsheet", SpreadsheetID: spreadsheetID, Cause: err}
	}

	infos := make([]SheetInfo, 0, len(resp.Sheets))
	for _, sheet := range resp.Sheets {
		if sheet == nil || sheet.Properties == nil {
			continue
		}
		infos = append(infos, SheetInfo{
			ID:    sheet.Properties.SheetId,
			Title: sheet.Properties.Title,
		})
	}

	if s.logger != nil {
		s.logger.WithFields(logrus.Fields{
			"spreadsheet_id": spreadsheetID,
			"sheets":         len(infos),
		}).Debug("Fetched spreadsheet metadata")
	}
	return infos, nil
}

// GetValues fetches the cell values for a range
func (s *GoogleSource) GetValues(ctx context.Context, spreadsheetID, rangeNotation string) (Grid, error) {
	resp, err := s.service.Spreadsheets.Values.Get(spreadsheetID, rangeNotation).Context(ctx).Do()
	if err != nil {
		return nil, &SourceError{Operation: "get_values", SpreadsheetID: spreadsheetID, Range: rangeNotation, Cause: err}
	}

	if s.logger != nil {
		s.logger.WithFields(logrus.Fields{
			"spreadsheet_id": spreadsheetID,
			"range":          rangeNotation,
			"rows":           len(resp.Values),
		}).Debug("Fetched values")
	}
	return NewGrid(resp.Values), nil
}
