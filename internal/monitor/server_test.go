package monitor

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/edgeflow/lccstack/internal/aliasmap"
	"github.com/edgeflow/lccstack/internal/nodeid"
	"github.com/edgeflow/lccstack/internal/telemetry"
)

func newTestServer(t *testing.T) *Server {
	t.Helper()
	am := aliasmap.New(zap.NewNop())
	am.Insert(0x333, nodeid.FromUint64(0x010200000101))

	return New(Config{
		Log:      zap.NewNop(),
		AliasMap: am,
		Counters: telemetry.New(),
		JWT:      JWTConfig{SecretKey: "test-secret"},
	})
}

func TestHandleHealth_ReturnsOK(t *testing.T) {
	s := newTestServer(t)
	resp, err := s.app.Test(httptest.NewRequest(http.MethodGet, "/v1/health", nil))
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestHandleAliases_ReturnsSnapshot(t *testing.T) {
	s := newTestServer(t)
	resp, err := s.app.Test(httptest.NewRequest(http.MethodGet, "/v1/aliases", nil))
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), "333")
}

func TestArbiterRestart_RejectsWithoutToken(t *testing.T) {
	s := newTestServer(t)
	resp, err := s.app.Test(httptest.NewRequest(http.MethodPost, "/v1/arbiter/restart", nil))
	require.NoError(t, err)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestArbiterRestart_AcceptsValidToken(t *testing.T) {
	s := newTestServer(t)
	token, err := GenerateToken("test-operator", JWTConfig{SecretKey: "test-secret"})
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "/v1/arbiter/restart", nil)
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := s.app.Test(req)
	require.NoError(t, err)
	// No arbiter is configured in this test server, so the handler reports
	// unavailable rather than unauthorized — proving the token was accepted.
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
}
