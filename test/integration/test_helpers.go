//go:build integration

package integration

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"tutorhub-portal/internal/app"
	"tutorhub-portal/internal/config"
	"tutorhub-portal/internal/devapi"
	"tutorhub-portal/internal/model"
)

func newBackend(t *testing.T) (*devapi.Server, string) {
	t.Helper()

	api, err := devapi.New(devapi.Options{JWTSecret: "test-secret", BcryptCost: bcrypt.MinCost})
	require.NoError(t, err)
	server := httptest.NewServer(api.Handler())
	t.Cleanup(server.Close)

	return api, server.URL + "/api"
}

func portalConfig(apiBaseURL string) *config.Config {
	return &config.Config{
		APIBaseURL:              apiBaseURL,
		RequestTimeout:          5 * time.Second,
		PortalPort:              "0",
		ServerReadHeaderTimeout: 5 * time.Second,
		ServerWriteTimeout:      30 * time.Second,
		ServerIdleTimeout:       30 * time.Second,
		CORSOrigins:             []string{"*"},
		RateLimitRPM:            1000,
		AuthRateLimitRPM:        1000,
		SessionCookie:           "portal_session",
		SessionIdleTTL:          time.Hour,
		MeetingWarning:          time.Minute,
		TokenStore:              config.StoreMemory,
		TokenTTL:                time.Hour,
		DBMaxConns:              2,
		DBMinConns:              0,
	}
}

func newPortalServer(t *testing.T, cfg *config.Config) *httptest.Server {
	t.Helper()

	if cfg.AuditLogFile == "" {
		cfg.AuditLogFile = filepath.Join(t.TempDir(), "audit.log")
	}
	require.NoError(t, cfg.Validate())
	application, err := app.New(cfg)
	require.NoError(t, err)

	server := httptest.NewServer(application.Handler())
	t.Cleanup(func() {
		server.Close()
		application.Close()
	})
	return server
}

func newBrowser(t *testing.T) *http.Client {
	t.Helper()

	jar, err := cookiejar.New(nil)
	require.NoError(t, err)
	return &http.Client{Jar: jar}
}

func doJSON(t *testing.T, c *http.Client, method string, url string, body any) *http.Response {
	t.Helper()

	var payloadReader io.Reader = http.NoBody
	if body != nil {
		payload, err := json.Marshal(body)
		require.NoError(t, err)
		payloadReader = bytes.NewReader(payload)
	}

	req, err := http.NewRequest(method, url, payloadReader)
	require.NoError(t, err)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { _ = resp.Body.Close() })
	return resp
}

func decodeData(t *testing.T, resp *http.Response, out any) {
	t.Helper()

	var parsed struct {
		Success bool            `json:"success"`
		Data    json.RawMessage `json:"data"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&parsed))
	require.True(t, parsed.Success)
	if out != nil {
		require.NoError(t, json.Unmarshal(parsed.Data, out))
	}
}

func loginAs(t *testing.T, c *http.Client, portalURL string, email string) {
	t.Helper()

	resp := doJSON(t, c, http.MethodPost, portalURL+"/portal/session/login", model.LoginRequest{Email: email, Password: devapi.DefaultPassword})
	require.Equal(t, http.StatusOK, resp.StatusCode)
}
