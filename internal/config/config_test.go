package config

import (
	"net/http"
	"testing"
	"time"

	"github.com/obsidian-tools/plugin-manager/pkg/registry"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"
)

func TestNewConfigFromEnvDefaults(t *testing.T) {
	t.Setenv("VAULT_DIR", "/tmp/vault")
	cfg, err := NewConfigFromEnv()
	require.NoError(t, err)
	require.Equal(t, "/tmp/vault", cfg.VaultDir)
	require.Equal(t, ".obsidian", cfg.ConfigDir)
	require.Equal(t, DefaultPluginRegistryURL, cfg.PluginRegistryURL)
	require.Equal(t, DefaultThemeRegistryURL, cfg.ThemeRegistryURL)
	require.Equal(t, 0, cfg.HTTPRetryMax)
	require.Equal(t, int64(4), cfg.UpdateConcurrency)
	require.Equal(t, 5*time.Minute, cfg.RegistryCacheTTL)
	require.Equal(t, "127.0.0.1:8080", cfg.GetServerAddr())
}

func TestTargets(t *testing.T) {
	cfg := &Config{ConfigDir: ".obsidian", PluginRegistryURL: "p", ThemeRegistryURL: "t"}

	pt := cfg.PluginTarget()
	require.Equal(t, registry.KindPlugin, pt.Kind)
	require.Equal(t, ".obsidian/plugins", pt.Dir)
	require.Equal(t, []string{"main.js", "manifest.json", "styles.css"}, pt.FileNames())

	tt := cfg.ThemeTarget()
	require.Equal(t, registry.KindTheme, tt.Kind)
	require.Equal(t, ".obsidian/themes", tt.Dir)
	require.Equal(t, []string{"theme.css", "manifest.json"}, tt.FileNames())

	cfg.SettingsPluginID = "plugin-manager"
	require.Equal(t, ".obsidian/plugins/plugin-manager/data.json", cfg.SettingsPath())
}

func TestCreateGitHubClient(t *testing.T) {
	cfg := &Config{GitHubAPIURL: "http://127.0.0.1:1234/api"}
	ghClient, err := cfg.CreateGitHubClient(http.DefaultClient)
	require.NoError(t, err)
	require.Equal(t, "http://127.0.0.1:1234/api/", ghClient.BaseURL.String())

	cfg.GitHubToken = "token"
	ghClient, err = cfg.CreateGitHubClient(http.DefaultClient)
	require.NoError(t, err)
	require.NotNil(t, ghClient)
}

func TestNewLogger(t *testing.T) {
	log := (&Config{LogLevel: "debug"}).NewLogger()
	require.Equal(t, logrus.DebugLevel, log.GetLevel())
	log = (&Config{LogLevel: "nope"}).NewLogger()
	require.Equal(t, logrus.InfoLevel, log.GetLevel())
}

func TestCreateS3ClientRequiresBucket(t *testing.T) {
	_, err := (&Config{}).CreateS3Client()
	require.ErrorContains(t, err, "S3_BUCKET")
}
