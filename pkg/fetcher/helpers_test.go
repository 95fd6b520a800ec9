package fetcher

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func newScriptedServer(t *testing.T, handler http.HandlerFunc) string {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	return server.URL
}
