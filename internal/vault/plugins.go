package vault

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"path"
	"slices"
	"sort"

	"github.com/obsidian-tools/plugin-manager/pkg/registry"
	"github.com/sirupsen/logrus"
)

// Manifest is the subset of a plugin or theme manifest.json we read.
type Manifest struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Version     string `json:"version"`
	Description string `json:"description"`
}

// Vault exposes the installed add-ons of one vault config directory.
type Vault struct {
	adapter   Adapter
	configDir string
	log       *logrus.Logger
}

func New(log *logrus.Logger, adapter Adapter, configDir string) *Vault {
	return &Vault{
		adapter:   adapter,
		configDir: NormalizePath(configDir),
		log:       log,
	}
}

func (v *Vault) Adapter() Adapter {
	return v.adapter
}

func (v *Vault) ConfigDir() string {
	return v.configDir
}

func (v *Vault) enabledPluginsPath() string {
	return path.Join(v.configDir, "community-plugins.json")
}

// readManifests parses <dir>/*/manifest.json. Folders without a readable
// manifest are skipped.
func (v *Vault) readManifests(ctx context.Context, dir string) ([]*Manifest, error) {
	exists, err := v.adapter.Exists(ctx, dir)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, nil
	}
	listing, err := v.adapter.List(ctx, dir)
	if err != nil {
		return nil, fmt.Errorf("failed to list %s: %w", dir, err)
	}
	manifests := make([]*Manifest, 0, len(listing.Folders))
	for _, folder := range listing.Folders {
		manifestPath := path.Join(folder, "manifest.json")
		data, err := v.adapter.Read(ctx, manifestPath)
		if err != nil {
			if !errors.Is(err, fs.ErrNotExist) {
				v.log.Warnf("could not read %s: %v", manifestPath, err)
			}
			continue
		}
		var m Manifest
		if err := json.Unmarshal(data, &m); err != nil {
			v.log.Warnf("could not parse %s: %v", manifestPath, err)
			continue
		}
		manifests = append(manifests, &m)
	}
	return manifests, nil
}

// InstalledPlugins lists the plugins whose manifests can be parsed, sorted by id.
func (v *Vault) InstalledPlugins(ctx context.Context) ([]*registry.PluginRecord, error) {
	manifests, err := v.readManifests(ctx, path.Join(v.configDir, "plugins"))
	if err != nil {
		return nil, err
	}
	enabled, err := v.EnabledPlugins(ctx)
	if err != nil {
		return nil, err
	}
	records := make([]*registry.PluginRecord, 0, len(manifests))
	for _, m := range manifests {
		if m.ID == "" {
			continue
		}
		records = append(records, &registry.PluginRecord{
			ID:          m.ID,
			Name:        m.Name,
			Version:     m.Version,
			Description: m.Description,
			Enabled:     slices.Contains(enabled, m.ID),
		})
	}
	sort.Slice(records, func(i, j int) bool { return records[i].ID < records[j].ID })
	return records, nil
}

// InstalledThemes lists the themes, keyed by their manifest name.
func (v *Vault) InstalledThemes(ctx context.Context) ([]*registry.PluginRecord, error) {
	manifests, err := v.readManifests(ctx, path.Join(v.configDir, "themes"))
	if err != nil {
		return nil, err
	}
	records := make([]*registry.PluginRecord, 0, len(manifests))
	for _, m := range manifests {
		if m.Name == "" {
			continue
		}
		records = append(records, &registry.PluginRecord{
			ID:      m.Name,
			Name:    m.Name,
			Version: m.Version,
		})
	}
	sort.Slice(records, func(i, j int) bool { return records[i].ID < records[j].ID })
	return records, nil
}

// EnabledPlugins returns the ids listed in community-plugins.json.
func (v *Vault) EnabledPlugins(ctx context.Context) ([]string, error) {
	data, err := v.adapter.Read(ctx, v.enabledPluginsPath())
	if errors.Is(err, fs.ErrNotExist) {
		return []string{}, nil
	}
	if err != nil {
		return nil, err
	}
	var ids []string
	if err := json.Unmarshal(data, &ids); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", v.enabledPluginsPath(), err)
	}
	return ids, nil
}

func (v *Vault) IsPluginEnabled(ctx context.Context, id string) (bool, error) {
	ids, err := v.EnabledPlugins(ctx)
	if err != nil {
		return false, err
	}
	return slices.Contains(ids, id), nil
}

// SetPluginEnabled adds or removes id from community-plugins.json.
func (v *Vault) SetPluginEnabled(ctx context.Context, id string, enabled bool) error {
	ids, err := v.EnabledPlugins(ctx)
	if err != nil {
		return err
	}
	idx := slices.Index(ids, id)
	switch {
	case enabled && idx == -1:
		ids = append(ids, id)
	case !enabled && idx != -1:
		ids = slices.Delete(ids, idx, idx+1)
	default:
		return nil
	}
	data, err := json.MarshalIndent(ids, "", "  ")
	if err != nil {
		return err
	}
	if err := v.adapter.Mkdir(ctx, v.configDir); err != nil {
		return err
	}
	return v.adapter.Write(ctx, v.enabledPluginsPath(), data)
}
