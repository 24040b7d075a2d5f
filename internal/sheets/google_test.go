package sheets

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newFakeSheetsAPI(t *testing.T) *httptest.Server {
	t.Helper()

	mux := http.NewServeMux()
	mux.HandleFunc("/v4/spreadsheets/", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch {
		case strings.HasPrefix(r.URL.Path, "/v4/spreadsheets/missing"):
			w.WriteHeader(http.StatusNotFound)
			_, _ = w.Write([]byte(`{"error":{"code":404,"message":"Requested entity was not found.","status":"NOT_FOUND"}}`))
		case strings.Contains(r.URL.Path, "/values/"):
			_, _ = w.Write([]byte(`{"range":"Sales!A1:Z100","majorDimension":"ROWS","values":[["Name","Age"],["Alice",30],["Bob",true]]}`))
		default:
			_, _ = w.Write([]byte(`{"spreadsheetId":"abc","sheets":[{"properties":{"sheetId":0,"title":"Sales"}},{"properties":{"sheetId":42,"title":"Notes"}}]}`))
		}
	})

	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)
	return server
}

func TestGoogleSource(t *testing.T) {
	server := newFakeSheetsAPI(t)
	ctx := context.Background()

	src, err := NewGoogleSource(ctx, GoogleOptions{Endpoint: server.URL + "/", Anonymous: true}, quietLogger())
	require.NoError(t, err)

	t.Run("metadata", func(t *testing.T) {
		infos, err := src.GetSpreadsheetMetadata(ctx, "abc")
		require.NoError(t, err)
		assert.Equal(t, []SheetInfo{{ID: 0, Title: "Sales"}, {ID: 42, Title: "Notes"}}, infos)
	})

	t.Run("values keep JSON scalar types", func(t *testing.T) {
		grid, err := src.GetValues(ctx, "abc", "Sales!A1:Z100")
		require.NoError(t, err)
		require.Len(t, grid, 3)
		assert.Equal(t, float64(30), grid[1][1].Raw())
		assert.Equal(t, true, grid[2][1].Raw())
	})

	t.Run("upstream errors are wrapped", func(t *testing.T) {
		_, err := src.GetSpreadsheetMetadata(ctx, "missing")
		var srcErr *SourceError
		require.ErrorAs(t, err, &srcErr)
		assert.Equal(t, "get_spreadsheet", srcErr.Operation)
		assert.Contains(t, err.Error(), "missing")
	})
}

func TestResolver_GoogleSourceOutlivesFirstRequest(t *testing.T) {
	var tokenCalls atomic.Int32

	api := newFakeSheetsAPI(t)
	tokens := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := tokenCalls.Add(1)
		w.Header().Set("Content-Type", "application/json")
		// expires well inside oauth2's refresh margin so every call refreshes
		_, _ = fmt.Fprintf(w, `{"access_token":"token-%d","token_type":"Bearer","expires_in":1}`, n)
	}))
	t.Cleanup(tokens.Close)

	credentials := filepath.Join(t.TempDir(), "credentials.json")
	require.NoError(t, os.WriteFile(credentials, []byte(fmt.Sprintf(
		`{"type":"authorized_user","client_id":"id","client_secret":"secret","refresh_token":"refresh","token_uri":%q}`,
		tokens.URL)), 0o600))

	resolver := NewResolver(KindGoogle, GoogleOptions{
		CredentialsFile: credentials,
		Endpoint:        api.URL + "/",
	}, t.TempDir(), quietLogger())

	first, cancel := context.WithCancel(context.Background())
	src, err := resolver.SourceFor(first, "abc")
	require.NoError(t, err)
	_, err = src.GetSpreadsheetMetadata(first, "abc")
	require.NoError(t, err)
	cancel()

	second := context.Background()
	cached, err := resolver.SourceFor(second, "abc")
	require.NoError(t, err)
	assert.Same(t, src, cached)

	infos, err := cached.GetSpreadsheetMetadata(second, "abc")
	require.NoError(t, err)
	assert.Len(t, infos, 2)
	assert.GreaterOrEqual(t, tokenCalls.Load(), int32(2))
}
