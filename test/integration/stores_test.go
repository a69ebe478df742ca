//go:build integration

package integration

import (
	"net/http"
	"os"
	"testing"

	"github.com/stretchr/testify/require"

	"tutorhub-portal/internal/config"
)

// A portal restart must not log anybody out when tokens live in a shared store.
func TestSessionSurvivesPortalRestart(t *testing.T) {
	cases := []struct {
		name  string
		store string
		env   string
	}{
		{"postgres", config.StorePostgres, "DATABASE_URL"},
		{"redis", config.StoreRedis, "REDIS_URL"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			url := os.Getenv(tc.env)
			if url == "" {
				t.Skipf("%s not set", tc.env)
			}

			_, apiURL := newBackend(t)
			cfg := portalConfig(apiURL)
			cfg.TokenStore = tc.store
			cfg.DatabaseURL = url
			cfg.RedisURL = url

			browser := newBrowser(t)
			first := newPortalServer(t, cfg)
			loginAs(t, browser, first.URL, "manager@tutorhub.dev")
			first.Close()

			second := newPortalServer(t, cfg)
			var view struct {
				IsAuthenticated bool `json:"is_authenticated"`
				IsManager       bool `json:"is_manager"`
			}
			decodeData(t, doJSON(t, browser, http.MethodGet, second.URL+"/portal/session", nil), &view)
			require.True(t, view.IsAuthenticated)
			require.True(t, view.IsManager)

			require.Equal(t, http.StatusOK, doJSON(t, browser, http.MethodPost, second.URL+"/portal/session/logout", nil).StatusCode)
		})
	}
}
