package picker

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/charmbracelet/huh"
	"github.com/obsidian-tools/plugin-manager/internal/host"
	"github.com/obsidian-tools/plugin-manager/pkg/registry"
)

var ErrNoMatch = errors.New("no matching plugin")

type Plugins interface {
	InstalledPlugins(ctx context.Context) ([]*registry.PluginRecord, error)
	SetPluginEnabled(ctx context.Context, id string, enabled bool) error
}

// Picker enables disabled plugins or disables enabled ones, depending on
// its mode.
type Picker struct {
	plugins  Plugins
	notifier host.Notifier
	enable   bool
	// selectFn asks the user to pick one of several suggestions
	selectFn func(title string, suggestions []*registry.PluginRecord) (*registry.PluginRecord, error)
}

func New(plugins Plugins, notifier host.Notifier, enable bool) *Picker {
	return &Picker{
		plugins:  plugins,
		notifier: notifier,
		enable:   enable,
		selectFn: huhSelect,
	}
}

func (p *Picker) action() string {
	if p.enable {
		return "enable"
	}
	return "disable"
}

// Suggestions lists the plugins that can be toggled whose name contains
// query, ignoring case.
func (p *Picker) Suggestions(ctx context.Context, query string) ([]*registry.PluginRecord, error) {
	records, err := p.plugins.InstalledPlugins(ctx)
	if err != nil {
		return nil, err
	}
	query = strings.ToLower(query)
	suggestions := make([]*registry.PluginRecord, 0)
	for _, r := range records {
		if r.Enabled == p.enable {
			continue
		}
		if strings.Contains(strings.ToLower(r.Name), query) {
			suggestions = append(suggestions, r)
		}
	}
	return suggestions, nil
}

// Choose toggles record and reports the outcome through the notifier.
func (p *Picker) Choose(ctx context.Context, record *registry.PluginRecord) error {
	if err := p.plugins.SetPluginEnabled(ctx, record.ID, p.enable); err != nil {
		p.notifier.Notify(fmt.Sprintf("%s plugin[%s] failed, try it again", p.action(), record.Name), 0)
		return err
	}
	p.notifier.Notify(fmt.Sprintf("%s plugin[%s] successfully", p.action(), record.Name), 0)
	return nil
}

// Run picks a plugin matching query, prompting when more than one matches,
// and toggles it.
func (p *Picker) Run(ctx context.Context, query string) (*registry.PluginRecord, error) {
	suggestions, err := p.Suggestions(ctx, query)
	if err != nil {
		return nil, err
	}
	var chosen *registry.PluginRecord
	switch len(suggestions) {
	case 0:
		return nil, fmt.Errorf("%w to %s for %q", ErrNoMatch, p.action(), query)
	case 1:
		chosen = suggestions[0]
	default:
		chosen, err = p.selectFn(fmt.Sprintf("Plugin to %s", p.action()), suggestions)
		if err != nil {
			return nil, err
		}
	}
	return chosen, p.Choose(ctx, chosen)
}

func huhSelect(title string, suggestions []*registry.PluginRecord) (*registry.PluginRecord, error) {
	options := make([]huh.Option[string], 0, len(suggestions))
	for _, s := range suggestions {
		label := s.Name
		if s.Description != "" {
			label = fmt.Sprintf("%s - %s", s.Name, s.Description)
		}
		options = append(options, huh.NewOption(label, s.ID))
	}
	var id string
	err := huh.NewSelect[string]().
		Title(title).
		Options(options...).
		Value(&id).
		Run()
	if err != nil {
		return nil, err
	}
	for _, s := range suggestions {
		if s.ID == id {
			return s, nil
		}
	}
	return nil, ErrNoMatch
}
