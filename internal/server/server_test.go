package server

import (
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/conneroisu/hpy/internal/config"
	"github.com/conneroisu/hpy/internal/logging"
)

func newSiteServer(t *testing.T) (string, *httptest.Server) {
	t.Helper()
	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, "index.html"), []byte("<html><body>hi</body></html>"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(root, config.ReloadTriggerName), []byte("x"), 0o644))

	ts := httptest.NewServer(logRequests(logging.NopLogger(), noStore(http.FileServer(http.Dir(root)))))
	t.Cleanup(ts.Close)
	return root, ts
}

func TestServeDisablesCaching(t *testing.T) {
	_, ts := newSiteServer(t)

	resp, err := http.Get(ts.URL + "/index.html")
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "no-store, must-revalidate", resp.Header.Get("Cache-Control"))
	assert.Equal(t, "no-cache", resp.Header.Get("Pragma"))
}

func TestReloadTriggerHeadHasLastModified(t *testing.T) {
	_, ts := newSiteServer(t)

	resp, err := http.Head(ts.URL + "/" + config.ReloadTriggerName)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.NotEmpty(t, resp.Header.Get("Last-Modified"))
	assert.Equal(t, "no-store, must-revalidate", resp.Header.Get("Cache-Control"))
}

func TestURLFormat(t *testing.T) {
	s := New("dist", "localhost", 8000, logging.NopLogger())
	assert.Equal(t, "http://localhost:8000", s.URL())
}
