package memos

import (
	"context"
	"fmt"

	"github.com/obsidian-tools/plugin-manager/internal/host"
)

const (
	MemosPluginID       = "obsidian-memos"
	HoverEditorPluginID = "obsidian-hover-editor"
	ShowInPopoverCmd    = "obsidian-memos:show-memos-in-popover"
)

type PluginStatus interface {
	IsPluginEnabled(ctx context.Context, id string) (bool, error)
}

// Bridge opens the memos view in a hover editor popover.
type Bridge struct {
	plugins  PluginStatus
	commands host.CommandDispatcher
	notifier host.Notifier
}

func New(plugins PluginStatus, commands host.CommandDispatcher, notifier host.Notifier) *Bridge {
	return &Bridge{plugins: plugins, commands: commands, notifier: notifier}
}

func missingMessage(memos, hover bool) string {
	var msg string
	switch {
	case memos == hover:
		msg = "Memos and Hover are"
	case memos:
		msg = "Hover is"
	default:
		msg = "Memos is"
	}
	return fmt.Sprintf("Can't work correctly! Plugin %s missing", msg)
}

// Startup runs the popover command when both plugins are enabled and
// otherwise tells the user which one is missing.
func (b *Bridge) Startup(ctx context.Context) error {
	memos, err := b.plugins.IsPluginEnabled(ctx, MemosPluginID)
	if err != nil {
		return err
	}
	hover, err := b.plugins.IsPluginEnabled(ctx, HoverEditorPluginID)
	if err != nil {
		return err
	}
	if !memos || !hover {
		b.notifier.Notify(missingMessage(memos, hover), 0)
		return nil
	}
	return b.commands.ExecuteCommandByID(ctx, ShowInPopoverCmd)
}
