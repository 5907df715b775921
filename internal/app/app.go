package app

import (
	"context"
	"fmt"
	"time"

	"github.com/obsidian-tools/plugin-manager/internal/config"
	"github.com/obsidian-tools/plugin-manager/internal/history"
	"github.com/obsidian-tools/plugin-manager/internal/host"
	"github.com/obsidian-tools/plugin-manager/internal/installer"
	"github.com/obsidian-tools/plugin-manager/internal/updater"
	"github.com/obsidian-tools/plugin-manager/internal/vault"
	"github.com/obsidian-tools/plugin-manager/pkg/registry"
	"github.com/patrickmn/go-cache"
	"github.com/sirupsen/logrus"
)

// App holds the components shared by the CLI and the server.
type App struct {
	Config    *config.Config
	Log       *logrus.Logger
	Vault     *vault.Vault
	Installer *installer.Installer
	Plugins   *updater.Updater
	Themes    *updater.Updater
	History   history.Store
}

func New(ctx context.Context, log *logrus.Logger, cfg *config.Config, notifier host.Notifier) (*App, error) {
	dir, err := vault.NewDir(cfg.VaultDir)
	if err != nil {
		return nil, err
	}
	backups, err := cfg.CreateBackupStore(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to set up backup store: %w", err)
	}
	hist, err := cfg.CreateHistoryStore(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to set up history store: %w", err)
	}

	fetchClient := cfg.CreateFetchClient()
	ghClient, err := cfg.CreateGitHubClient(fetchClient.StandardClient())
	if err != nil {
		return nil, err
	}
	inst := installer.New(log, dir, backups)
	registryCache := cache.New(cfg.RegistryCacheTTL, 2*cfg.RegistryCacheTTL+time.Minute)

	newUpdater := func(target *config.Target) *updater.Updater {
		return updater.New(log, &updater.Options{
			Target:      target,
			Fetcher:     fetchClient,
			GitHub:      ghClient,
			DownloadURL: cfg.GitHubDownloadURL,
			Installer:   inst,
			Notifier:    notifier,
			History:     hist,
			Cache:       registryCache,
			Concurrency: cfg.UpdateConcurrency,
		})
	}

	return &App{
		Config:    cfg,
		Log:       log,
		Vault:     vault.New(log, dir, cfg.ConfigDir),
		Installer: inst,
		Plugins:   newUpdater(cfg.PluginTarget()),
		Themes:    newUpdater(cfg.ThemeTarget()),
		History:   hist,
	}, nil
}

func (a *App) Updater(kind registry.Kind) *updater.Updater {
	if kind == registry.KindTheme {
		return a.Themes
	}
	return a.Plugins
}

// Installed returns the installed records of kind.
func (a *App) Installed(ctx context.Context, kind registry.Kind) ([]*registry.PluginRecord, error) {
	if kind == registry.KindTheme {
		return a.Vault.InstalledThemes(ctx)
	}
	return a.Vault.InstalledPlugins(ctx)
}

func (a *App) Close() error {
	if a.History != nil {
		return a.History.Close()
	}
	return nil
}
