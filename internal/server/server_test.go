package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mcvm-launcher/mcvm-sub000/internal/logging"
	"github.com/mcvm-launcher/mcvm-sub000/internal/repoindex"
	"github.com/mcvm-launcher/mcvm-sub000/internal/resolver"
)

func buildTestResolver(t *testing.T) *resolver.Resolver {
	t.Helper()
	dir := t.TempDir()
	indexJSON := `{"packages":{"sodium":{"path":"sodium.json","content_type":"declarative"}}}`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "index.json"), []byte(indexJSON), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "sodium.json"),
		[]byte(`{"addons":{"sodium-file":{"kind":"mod","versions":[{"url":"https://example.com/sodium.jar"}]}}}`), 0o644))

	repo := &repoindex.Repository{ID: "std", Kind: repoindex.KindStd, Enabled: true, Base: dir}
	idx := repoindex.NewIndex(repo)
	require.NoError(t, idx.SyncAll(context.Background()))
	return resolver.New(idx)
}

func TestHandleHealth(t *testing.T) {
	s := New(buildTestResolver(t), logging.NewLogger("test"))
	req := httptest.NewRequest(http.MethodGet, "/v1/health", nil)
	rec := httptest.NewRecorder()
	s.Engine().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestHandleResolveSuccess(t *testing.T) {
	s := New(buildTestResolver(t), logging.NewLogger("test"))
	body := `{
		"requests": [{"id": "sodium"}],
		"environment": {"minecraft_version": "1.19.3", "side": "client", "modloader": "fabric", "known_versions": ["1.19", "1.19.3"]}
	}`
	req := httptest.NewRequest(http.MethodPost, "/v1/resolve", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	s.Engine().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var resp map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.NotEmpty(t, resp["run_id"])
	packages := resp["packages"].([]interface{})
	require.Len(t, packages, 1)
}

func TestHandleResolveUnknownPackage(t *testing.T) {
	s := New(buildTestResolver(t), logging.NewLogger("test"))
	body := `{"requests": [{"id": "missing"}], "environment": {"minecraft_version": "1.19.3", "side": "client"}}`
	req := httptest.NewRequest(http.MethodPost, "/v1/resolve", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	s.Engine().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
}

func TestHandleMetrics(t *testing.T) {
	s := New(buildTestResolver(t), logging.NewLogger("test"))
	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rec := httptest.NewRecorder()
	s.Engine().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "mcvm_cache_hits_total")
}
