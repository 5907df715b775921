package registry

import (
	"strings"
	"time"
)

type Kind string

const (
	KindPlugin Kind = "plugin"
	KindTheme  Kind = "theme"
)

// PluginRecord is the declared identity of an installed plugin or theme.
type PluginRecord struct {
	ID          string `json:"id"`
	Name        string `json:"name,omitempty"`
	Version     string `json:"version"`
	Description string `json:"description,omitempty"`
	Enabled     bool   `json:"enabled"`
}

// Entry is one element of a community registry document. Plugin registries
// are keyed by id, theme registries by name.
type Entry struct {
	ID   string `json:"id,omitempty"`
	Name string `json:"name,omitempty"`
	Repo string `json:"repo"`
}

func (e *Entry) Key() string {
	if e.ID != "" {
		return e.ID
	}
	return e.Name
}

type Entries []*Entry

// Find returns the repo of the first entry whose key equals key.
func (l Entries) Find(key string) string {
	for _, e := range l {
		if e.Key() == key {
			return e.Repo
		}
	}
	return ""
}

// AssetSet holds the release files needed to install one target.
type AssetSet struct {
	Primary  []byte
	Manifest []byte
	Style    []byte
}

func (a *AssetSet) Complete() bool {
	return a != nil && a.Primary != nil && a.Manifest != nil
}

// CheckResult is the outcome of checking (and possibly updating) one record.
type CheckResult struct {
	ID               string    `json:"id"`
	Kind             Kind      `json:"kind"`
	Repo             string    `json:"repo,omitempty"`
	InstalledVersion string    `json:"installedVersion"`
	LatestTag        string    `json:"latestTag,omitempty"`
	UpdateAvailable  bool      `json:"updateAvailable"`
	Updated          bool      `json:"updated"`
	Error            string    `json:"error,omitempty"`
	CheckedAt        time.Time `json:"checkedAt"`
}

// Outcome summarises the result for logs and metrics.
func (r *CheckResult) Outcome() string {
	switch {
	case r.Error != "":
		return "error"
	case r.Updated:
		return "updated"
	case r.UpdateAvailable:
		return "available"
	case r.Repo == "":
		return "unregistered"
	case r.LatestTag == "":
		return "no-release"
	default:
		return "up-to-date"
	}
}

func (r *CheckResult) String() string {
	var sb strings.Builder
	sb.WriteString(r.ID)
	sb.WriteString("@")
	sb.WriteString(r.InstalledVersion)
	if r.LatestTag != "" {
		sb.WriteString(" -> ")
		sb.WriteString(r.LatestTag)
	}
	sb.WriteString(" (")
	sb.WriteString(r.Outcome())
	sb.WriteString(")")
	return sb.String()
}
