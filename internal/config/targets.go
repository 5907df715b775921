package config

import "github.com/obsidian-tools/plugin-manager/pkg/registry"

// Target describes where a kind of add-on is published and how it is laid
// out on disk.
type Target struct {
	Kind         registry.Kind
	RegistryURL  string
	Dir          string
	PrimaryFile  string
	ManifestFile string
	StyleFile    string
}

// FileNames lists the release assets to download, optional style file last.
func (t *Target) FileNames() []string {
	names := []string{t.PrimaryFile, t.ManifestFile}
	if t.StyleFile != "" {
		names = append(names, t.StyleFile)
	}
	return names
}

func (c *Config) PluginTarget() *Target {
	return &Target{
		Kind:         registry.KindPlugin,
		RegistryURL:  c.PluginRegistryURL,
		Dir:          c.ConfigPath("plugins"),
		PrimaryFile:  "main.js",
		ManifestFile: "manifest.json",
		StyleFile:    "styles.css",
	}
}

func (c *Config) ThemeTarget() *Target {
	return &Target{
		Kind:         registry.KindTheme,
		RegistryURL:  c.ThemeRegistryURL,
		Dir:          c.ConfigPath("themes"),
		PrimaryFile:  "theme.css",
		ManifestFile: "manifest.json",
	}
}
