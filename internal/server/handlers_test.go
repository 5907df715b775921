package server

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/obsidian-tools/plugin-manager/internal/app"
	"github.com/obsidian-tools/plugin-manager/internal/config"
	"github.com/obsidian-tools/plugin-manager/internal/host"
	"github.com/obsidian-tools/plugin-manager/pkg/registry"
	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/require"
)

// newUpstream serves the registries, the release API below /api and the
// release downloads.
func newUpstream(t *testing.T) *httptest.Server {
	mux := http.NewServeMux()
	mux.HandleFunc("/community-plugins.json", func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `[{"id":"demo","repo":"acme/demo"},{"id":"calendar","repo":"acme/calendar"}]`)
	})
	mux.HandleFunc("/community-css-themes.json", func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `[{"name":"Minimal","repo":"acme/minimal"}]`)
	})
	mux.HandleFunc("/api/repos/acme/demo/releases/latest", func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `{"tag_name":"v2.0.0"}`)
	})
	mux.HandleFunc("/api/repos/acme/calendar/releases/latest", func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, "404: Not Found")
	})
	mux.HandleFunc("/api/repos/acme/minimal/releases/latest", func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `{"tag_name":"7.0.0"}`)
	})
	mux.HandleFunc("/acme/demo/releases/download/v2.0.0/main.js", func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, "console.log('v2')")
	})
	mux.HandleFunc("/acme/demo/releases/download/v2.0.0/manifest.json", func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `{"id":"demo","name":"Demo","version":"2.0.0"}`)
	})
	ts := httptest.NewServer(mux)
	t.Cleanup(ts.Close)
	return ts
}

func writeVaultFile(t *testing.T, root, p, content string) {
	fp := filepath.Join(root, filepath.FromSlash(p))
	require.NoError(t, os.MkdirAll(filepath.Dir(fp), 0o755))
	require.NoError(t, os.WriteFile(fp, []byte(content), 0o644))
}

func newTestVault(t *testing.T) string {
	root := t.TempDir()
	writeVaultFile(t, root, ".obsidian/plugins/demo/manifest.json", `{"id":"demo","name":"Demo","version":"1.5.0"}`)
	writeVaultFile(t, root, ".obsidian/plugins/demo/main.js", "console.log('v1')")
	writeVaultFile(t, root, ".obsidian/plugins/calendar/manifest.json", `{"id":"calendar","name":"Calendar","version":"1.0.0"}`)
	writeVaultFile(t, root, ".obsidian/themes/Minimal/manifest.json", `{"name":"Minimal","version":"7.0.0"}`)
	writeVaultFile(t, root, ".obsidian/community-plugins.json", `["demo"]`)
	return root
}

func newTestServer(t *testing.T) (*Server, string) {
	log := logrus.New()
	log.Out = io.Discard

	upstream := newUpstream(t)
	root := newTestVault(t)
	cfg := &config.Config{
		Stage:               "test",
		VaultDir:            root,
		ConfigDir:           ".obsidian",
		PluginRegistryURL:   upstream.URL + "/community-plugins.json",
		ThemeRegistryURL:    upstream.URL + "/community-css-themes.json",
		GitHubAPIURL:        upstream.URL + "/api/",
		GitHubDownloadURL:   upstream.URL,
		HTTPTimeout:         10 * time.Second,
		UpdateConcurrency:   2,
		RegistryCacheTTL:    time.Minute,
		BackupBackend:       config.BackendLocal,
		HistoryBackend:      config.BackendSQLite,
		AdminAccessToken:    "admin-token",
		DisableRequestCache: true,
	}
	a, err := app.New(context.Background(), log, cfg, host.NewLogNotifier(log))
	require.NoError(t, err)
	t.Cleanup(func() { _ = a.Close() })
	return New(log, a), root
}

func sendRequest(s http.Handler, method, path string, body io.Reader, modReqFns ...func(req *http.Request)) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, body)
	for _, f := range modReqFns {
		f(req)
	}
	rr := httptest.NewRecorder()
	s.ServeHTTP(rr, req)
	return rr
}

func withAuth(req *http.Request) {
	req.Header.Set("Authorization", "admin-token")
}

func TestIndex(t *testing.T) {
	s, _ := newTestServer(t)
	rr := sendRequest(s, "GET", "/", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	var info map[string]string
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &info))
	require.Equal(t, "test", info["stage"])
}

func TestNotFound(t *testing.T) {
	s, _ := newTestServer(t)
	rr := sendRequest(s, "GET", "/api/v2/plugins", nil)
	require.Equal(t, http.StatusNotFound, rr.Code)
	require.JSONEq(t, `{"error":"not found"}`, rr.Body.String())
}

func TestListPlugins(t *testing.T) {
	s, _ := newTestServer(t)
	rr := sendRequest(s, "GET", "/api/v1/plugins", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	var plugins []*registry.PluginRecord
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &plugins))
	require.Len(t, plugins, 2)
	require.Equal(t, "calendar", plugins[0].ID)
	require.False(t, plugins[0].Enabled)
	require.Equal(t, "demo", plugins[1].ID)
	require.True(t, plugins[1].Enabled)
}

func TestListThemes(t *testing.T) {
	s, _ := newTestServer(t)
	rr := sendRequest(s, "GET", "/api/v1/themes", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	var themes []*registry.PluginRecord
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &themes))
	require.Len(t, themes, 1)
	require.Equal(t, "Minimal", themes[0].ID)
}

func TestCheckPlugin(t *testing.T) {
	s, _ := newTestServer(t)
	rr := sendRequest(s, "GET", "/api/v1/plugins/demo", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	var res registry.CheckResult
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &res))
	require.Equal(t, "acme/demo", res.Repo)
	require.Equal(t, "v2.0.0", res.LatestTag)
	require.True(t, res.UpdateAvailable)
	require.False(t, res.Updated)

	rr = sendRequest(s, "GET", "/api/v1/plugins/not-installed", nil)
	require.Equal(t, http.StatusNotFound, rr.Code)
}

func TestUpdateRequiresAuth(t *testing.T) {
	s, _ := newTestServer(t)
	rr := sendRequest(s, "PUT", "/api/v1/plugins", nil)
	require.Equal(t, http.StatusUnauthorized, rr.Code)
	rr = sendRequest(s, "PUT", "/api/v1/plugins/demo", nil, func(req *http.Request) {
		req.Header.Set("Authorization", "wrong")
	})
	require.Equal(t, http.StatusUnauthorized, rr.Code)
}

func TestUpdateAllPlugins(t *testing.T) {
	s, root := newTestServer(t)
	rr := sendRequest(s, "PUT", "/api/v1/plugins", nil, withAuth)
	require.Equal(t, http.StatusOK, rr.Code)
	var results []*registry.CheckResult
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &results))
	require.Len(t, results, 2)
	require.Equal(t, "calendar", results[0].ID)
	require.Equal(t, "no-release", results[0].Outcome())
	require.Equal(t, "demo", results[1].ID)
	require.Equal(t, "updated", results[1].Outcome())

	mainJS, err := os.ReadFile(filepath.Join(root, ".obsidian", "plugins", "demo", "main.js"))
	require.NoError(t, err)
	require.Equal(t, "console.log('v2')", string(mainJS))
	backups, err := filepath.Glob(filepath.Join(root, ".obsidian", "plugins", ".backups", "plugins", "demo", "1.5.0-*.tar.gz"))
	require.NoError(t, err)
	require.Len(t, backups, 1)

	rr = sendRequest(s, "GET", "/api/v1/history?limit=10", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	var history []*registry.CheckResult
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &history))
	require.Len(t, history, 2)
}

func TestUpdateAllPluginsFiltered(t *testing.T) {
	s, _ := newTestServer(t)
	rr := sendRequest(s, "PUT", "/api/v1/plugins?filter=cal*", nil, withAuth)
	require.Equal(t, http.StatusOK, rr.Code)
	var results []*registry.CheckResult
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &results))
	require.Len(t, results, 1)
	require.Equal(t, "calendar", results[0].ID)

	rr = sendRequest(s, "PUT", "/api/v1/plugins?filter=[", nil, withAuth)
	require.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestUpdatePlugin(t *testing.T) {
	s, _ := newTestServer(t)
	rr := sendRequest(s, "PUT", "/api/v1/plugins/demo", nil, withAuth)
	require.Equal(t, http.StatusOK, rr.Code)
	var res registry.CheckResult
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &res))
	require.True(t, res.Updated)

	rr = sendRequest(s, "GET", "/api/v1/plugins", nil)
	var plugins []*registry.PluginRecord
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &plugins))
	require.Equal(t, "2.0.0", plugins[1].Version)
}

func TestUpdateThemes(t *testing.T) {
	s, _ := newTestServer(t)
	rr := sendRequest(s, "PUT", "/api/v1/themes", nil, withAuth)
	require.Equal(t, http.StatusOK, rr.Code)
	var results []*registry.CheckResult
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &results))
	require.Len(t, results, 1)
	require.Equal(t, registry.KindTheme, results[0].Kind)
	require.Equal(t, "up-to-date", results[0].Outcome())
}

func TestSetPluginEnabled(t *testing.T) {
	s, _ := newTestServer(t)
	rr := sendRequest(s, "PUT", "/api/v1/plugins/calendar/enabled", nil, withAuth)
	require.Equal(t, http.StatusOK, rr.Code)
	rr = sendRequest(s, "DELETE", "/api/v1/plugins/demo/enabled", nil, withAuth)
	require.Equal(t, http.StatusOK, rr.Code)

	rr = sendRequest(s, "GET", "/api/v1/plugins", nil)
	var plugins []*registry.PluginRecord
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &plugins))
	require.True(t, plugins[0].Enabled)
	require.False(t, plugins[1].Enabled)
}

func TestRequestCache(t *testing.T) {
	s, root := newTestServer(t)
	s.config.DisableRequestCache = false

	rr := sendRequest(s, "GET", "/api/v1/plugins", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	require.Empty(t, rr.Header().Get("X-Go-Cache"))

	writeVaultFile(t, root, ".obsidian/community-plugins.json", `[]`)
	rr = sendRequest(s, "GET", "/api/v1/plugins", nil)
	require.Equal(t, "HIT", rr.Header().Get("X-Go-Cache"))

	rr = sendRequest(s, "PUT", "/api/v1/plugins/calendar/enabled", nil, withAuth)
	require.Equal(t, http.StatusOK, rr.Code)
	rr = sendRequest(s, "GET", "/api/v1/plugins", nil)
	require.Empty(t, rr.Header().Get("X-Go-Cache"))
	var plugins []*registry.PluginRecord
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &plugins))
	require.True(t, plugins[0].Enabled)
	require.False(t, plugins[1].Enabled)
}

func TestHistoryInvalidLimit(t *testing.T) {
	s, _ := newTestServer(t)
	rr := sendRequest(s, "GET", "/api/v1/history?limit=abc", nil)
	require.Equal(t, http.StatusBadRequest, rr.Code)
}

func entriesAt(hook *test.Hook, level logrus.Level) []*logrus.Entry {
	var entries []*logrus.Entry
	for _, e := range hook.AllEntries() {
		if e.Level == level {
			entries = append(entries, e)
		}
	}
	return entries
}

func TestRequestLogFields(t *testing.T) {
	s, _ := newTestServer(t)
	hook := test.NewLocal(s.log)

	rr := sendRequest(s, "GET", "/api/v1/plugins/not-installed", nil)
	require.Equal(t, http.StatusNotFound, rr.Code)

	errs := entriesAt(hook, logrus.ErrorLevel)
	require.Len(t, errs, 1)
	require.Equal(t, registry.KindPlugin, errs[0].Data[LogFieldKind])
	require.Equal(t, "not-installed", errs[0].Data[LogFieldPlugin])
	require.Equal(t, http.StatusNotFound, errs[0].Data[LogFieldHTTPRequest].(map[string]any)["status"])

	// the access line is written after the handler with the final status
	access := hook.LastEntry()
	require.Equal(t, logrus.InfoLevel, access.Level)
	require.Equal(t, "not-installed", access.Data[LogFieldPlugin])
	require.Equal(t, http.StatusNotFound, access.Data[LogFieldHTTPRequest].(map[string]any)["status"])
	require.Contains(t, access.Data, "duration")

	hook.Reset()
	rr = sendRequest(s, "PUT", "/api/v1/themes", nil)
	require.Equal(t, http.StatusUnauthorized, rr.Code)
	warns := entriesAt(hook, logrus.WarnLevel)
	require.Len(t, warns, 1)
	require.Equal(t, registry.KindTheme, warns[0].Data[LogFieldKind])
	require.NotContains(t, warns[0].Data, LogFieldPlugin)

	hook.Reset()
	rr = sendRequest(s, "GET", "/", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	access = hook.LastEntry()
	require.NotContains(t, access.Data, LogFieldKind)
	require.Equal(t, http.StatusOK, access.Data[LogFieldHTTPRequest].(map[string]any)["status"])
}
