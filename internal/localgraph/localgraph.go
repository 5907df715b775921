package localgraph

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"path"

	"github.com/obsidian-tools/plugin-manager/internal/host"
	"github.com/obsidian-tools/plugin-manager/internal/vault"
	"github.com/sirupsen/logrus"
	"github.com/spf13/viper"
)

const (
	ViewType             = "localgraph"
	ConvertToPopoverCmd  = "obsidian-hover-editor:convert-active-pane-to-popover"
	TypePopover          = "popover"
	defaultScale         = 0.38
	defaultNotice        = "show current note graph view"
	settingsKey          = "localGraph"
	graphConfigFileName  = "graph.json"
	colorGroupsOptionKey = "colorGroups"
)

type Settings struct {
	Notice       string `mapstructure:"notice"`
	Type         string `mapstructure:"type"`
	Depth        int    `mapstructure:"depth"`
	ShowTags     bool   `mapstructure:"showTags"`
	ShowAttach   bool   `mapstructure:"showAttach"`
	ShowNeighbor bool   `mapstructure:"showNeighbor"`
	Collapse     bool   `mapstructure:"collapse"`
	Debug        bool   `mapstructure:"debug"`
}

func newSettingsViper() *viper.Viper {
	v := viper.New()
	v.SetConfigType("json")
	v.SetDefault(settingsKey+".notice", defaultNotice)
	v.SetDefault(settingsKey+".type", TypePopover)
	v.SetDefault(settingsKey+".depth", 1)
	v.SetDefault(settingsKey+".showTags", false)
	v.SetDefault(settingsKey+".showAttach", false)
	v.SetDefault(settingsKey+".showNeighbor", false)
	v.SetDefault(settingsKey+".collapse", false)
	v.SetDefault(settingsKey+".debug", false)
	return v
}

// LoadSettings reads the local graph section of the add-on's data.json.
// Missing keys, or a missing file, fall back to the defaults.
func LoadSettings(ctx context.Context, adapter vault.Adapter, settingsPath string) (*Settings, error) {
	v := newSettingsViper()
	raw, err := adapter.Read(ctx, settingsPath)
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, err
	}
	if err == nil {
		if err := v.ReadConfig(bytes.NewReader(raw)); err != nil {
			return nil, fmt.Errorf("failed to parse %s: %w", settingsPath, err)
		}
	}
	// UnmarshalKey ignores defaults for keys missing from a partial section
	var data struct {
		LocalGraph Settings `mapstructure:"localGraph"`
	}
	if err := v.Unmarshal(&data); err != nil {
		return nil, fmt.Errorf("failed to decode %s settings: %w", settingsKey, err)
	}
	return &data.LocalGraph, nil
}

// ViewOptions maps the settings onto local graph view options.
func (s *Settings) ViewOptions(colorGroups any) host.ViewOptions {
	opts := host.ViewOptions{
		"localJumps":      s.Depth,
		"showTags":        s.ShowTags,
		"showAttachments": s.ShowAttach,
		"localInterlinks": s.ShowNeighbor,
		"showArrow":       true,
		"close":           s.Collapse,
		"scale":           defaultScale,
	}
	if colorGroups != nil {
		opts[colorGroupsOptionKey] = colorGroups
	}
	return opts
}

type LocalGraph struct {
	log       *logrus.Logger
	adapter   vault.Adapter
	configDir string
	settings  *Settings
	workspace host.Workspace
	commands  host.CommandDispatcher
	notifier  host.Notifier
}

func New(log *logrus.Logger, adapter vault.Adapter, configDir string, settings *Settings, workspace host.Workspace, commands host.CommandDispatcher, notifier host.Notifier) *LocalGraph {
	return &LocalGraph{
		log:       log,
		adapter:   adapter,
		configDir: configDir,
		settings:  settings,
		workspace: workspace,
		commands:  commands,
		notifier:  notifier,
	}
}

func (g *LocalGraph) colorGroups(ctx context.Context) (any, error) {
	graphPath := path.Join(g.configDir, graphConfigFileName)
	data, err := g.adapter.Read(ctx, graphPath)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var graphConfig map[string]any
	if err := json.Unmarshal(data, &graphConfig); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", graphPath, err)
	}
	return graphConfig[colorGroupsOptionKey], nil
}

// SyncOptions copies the global graph color groups and the settings onto
// every open local graph.
func (g *LocalGraph) SyncOptions(ctx context.Context) error {
	colorGroups, err := g.colorGroups(ctx)
	if err != nil {
		return err
	}
	for _, leaf := range g.workspace.LeavesOfType(ViewType) {
		opts := leaf.Options()
		if opts == nil {
			opts = host.ViewOptions{}
		}
		if g.settings.Debug {
			g.log.Debugf("local graph options before sync: %v", opts)
		}
		for k, v := range g.settings.ViewOptions(colorGroups) {
			opts[k] = v
		}
		if err := leaf.SetOptions(ctx, opts); err != nil {
			return err
		}
	}
	return nil
}

// Startup opens a local graph of the active file, syncs its options and
// moves it into a popover if configured.
func (g *LocalGraph) Startup(ctx context.Context) error {
	if file := g.workspace.ActiveFile(); file != "" {
		if err := g.workspace.OpenLocalGraph(ctx, file); err != nil {
			return err
		}
		if err := g.SyncOptions(ctx); err != nil {
			return err
		}
	} else {
		g.log.Debug("no active file, skipping local graph")
	}
	if g.settings.Type == TypePopover {
		if err := g.commands.ExecuteCommandByID(ctx, ConvertToPopoverCmd); err != nil {
			return err
		}
	}
	g.notifier.Notify(g.settings.Notice, 0)
	return nil
}
