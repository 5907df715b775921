package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"

	"github.com/obsidian-tools/plugin-manager/internal/host"
	"github.com/obsidian-tools/plugin-manager/internal/localgraph"
	"github.com/obsidian-tools/plugin-manager/internal/memos"
	"github.com/obsidian-tools/plugin-manager/internal/picker"
	"github.com/obsidian-tools/plugin-manager/internal/updater"
	"github.com/obsidian-tools/plugin-manager/pkg/registry"
	"github.com/spf13/cobra"
)

func printResults(out io.Writer, results []*registry.CheckResult) {
	for _, res := range results {
		if res.Error != "" {
			fmt.Fprintf(out, "%s: %s\n", res, res.Error)
			continue
		}
		fmt.Fprintln(out, res)
	}
}

// batch runs fn over the installed records of kind matching the --filter
// globs and prints the results.
func (c *cli) batch(kind registry.Kind, fn func(u *updater.Updater) func(context.Context, []*registry.PluginRecord) []*registry.CheckResult) func(ctx context.Context, cmd *cobra.Command, args []string) error {
	return func(ctx context.Context, cmd *cobra.Command, _ []string) error {
		a, err := c.newApp(ctx)
		if err != nil {
			return err
		}
		defer a.Close()

		records, err := a.Installed(ctx, kind)
		if err != nil {
			return err
		}
		records, err = updater.Filter(records, must(cmd.Flags().GetStringArray("filter")))
		if err != nil {
			return err
		}
		c.log.Infof("checking %d %ss...", len(records), kind)
		printResults(cmd.OutOrStdout(), fn(a.Updater(kind))(ctx, records))
		return nil
	}
}

func addFilterFlag(cmd *cobra.Command) {
	cmd.Flags().StringArrayP("filter", "f", nil, "only process add-ons whose id matches the glob (repeatable)")
}

func (c *cli) updateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "update",
		Short: "Update all installed plugins to their latest release",
		Args:  cobra.NoArgs,
		Run: c.runE(c.batch(registry.KindPlugin, func(u *updater.Updater) func(context.Context, []*registry.PluginRecord) []*registry.CheckResult {
			return u.UpdateAll
		})),
	}
	addFilterFlag(cmd)
	return cmd
}

func (c *cli) checkCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "check",
		Short: "Report plugins with a newer release without installing it",
		Args:  cobra.NoArgs,
		Run: c.runE(c.batch(registry.KindPlugin, func(u *updater.Updater) func(context.Context, []*registry.PluginRecord) []*registry.CheckResult {
			return u.CheckAll
		})),
	}
	addFilterFlag(cmd)
	return cmd
}

func (c *cli) themesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "themes",
		Short: "Update all installed themes to their latest release",
		Args:  cobra.NoArgs,
		Run: c.runE(c.batch(registry.KindTheme, func(u *updater.Updater) func(context.Context, []*registry.PluginRecord) []*registry.CheckResult {
			return u.UpdateAll
		})),
	}
	addFilterFlag(cmd)
	return cmd
}

func (c *cli) toggleCmd(enable bool) *cobra.Command {
	use, short := "disable [query]", "Disable an enabled plugin by name"
	if enable {
		use, short = "enable [query]", "Enable a disabled plugin by name"
	}
	return &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.MaximumNArgs(1),
		Run: c.runE(func(ctx context.Context, cmd *cobra.Command, args []string) error {
			a, err := c.newApp(ctx)
			if err != nil {
				return err
			}
			defer a.Close()
			query := ""
			if len(args) > 0 {
				query = args[0]
			}
			_, err = picker.New(a.Vault, host.NewLogNotifier(c.log), enable).Run(ctx, query)
			return err
		}),
	}
}

func (c *cli) uriDispatcher(cmd *cobra.Command) *host.AdvancedURIDispatcher {
	vaultName := filepath.Base(must(filepath.Abs(c.cfg.VaultDir)))
	return &host.AdvancedURIDispatcher{Vault: vaultName, Out: cmd.OutOrStdout()}
}

func (c *cli) memosCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "memos",
		Short: "Print the link that opens memos in a hover editor popover",
		Args:  cobra.NoArgs,
		Run: c.runE(func(ctx context.Context, cmd *cobra.Command, _ []string) error {
			a, err := c.newApp(ctx)
			if err != nil {
				return err
			}
			defer a.Close()
			return memos.New(a.Vault, c.uriDispatcher(cmd), host.NewLogNotifier(c.log)).Startup(ctx)
		}),
	}
}

func (c *cli) localGraphCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "local-graph [file]",
		Short: "Open a local graph of the active (or given) note in the saved workspace",
		Args:  cobra.MaximumNArgs(1),
		Run: c.runE(func(ctx context.Context, cmd *cobra.Command, args []string) error {
			a, err := c.newApp(ctx)
			if err != nil {
				return err
			}
			defer a.Close()
			adapter := a.Vault.Adapter()
			workspace := host.NewFileWorkspace(adapter, c.cfg.ConfigDir)
			if err := workspace.Load(ctx); err != nil {
				return err
			}
			if len(args) > 0 {
				workspace.SetActiveFile(args[0])
			}
			settings, err := localgraph.LoadSettings(ctx, adapter, c.cfg.SettingsPath())
			if err != nil {
				return err
			}
			graph := localgraph.New(c.log, adapter, c.cfg.ConfigDir, settings, workspace, c.uriDispatcher(cmd), host.NewLogNotifier(c.log))
			return graph.Startup(ctx)
		}),
	}
}

func (c *cli) historyCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show the most recent update checks",
		Args:  cobra.NoArgs,
		Run: c.runE(func(ctx context.Context, cmd *cobra.Command, _ []string) error {
			a, err := c.newApp(ctx)
			if err != nil {
				return err
			}
			defer a.Close()
			if a.History == nil {
				return errors.New("history is disabled")
			}
			results, err := a.History.List(ctx, must(cmd.Flags().GetInt("limit")))
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			for _, res := range results {
				fmt.Fprintf(out, "%s  %s\n", res.CheckedAt.Format("2006-01-02 15:04:05"), res)
			}
			return nil
		}),
	}
	cmd.Flags().IntP("limit", "n", 0, "number of entries to show")
	return cmd
}

func kindFromFlag(cmd *cobra.Command) registry.Kind {
	if must(cmd.Flags().GetBool("theme")) {
		return registry.KindTheme
	}
	return registry.KindPlugin
}

func (c *cli) backupCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "backup <id>",
		Short: "Store a snapshot of an installed plugin or theme",
		Args:  cobra.ExactArgs(1),
		Run: c.runE(func(ctx context.Context, cmd *cobra.Command, args []string) error {
			a, err := c.newApp(ctx)
			if err != nil {
				return err
			}
			defer a.Close()
			kind := kindFromFlag(cmd)
			key, err := a.Installer.Backup(ctx, a.Updater(kind).Target(), args[0])
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), key)
			return nil
		}),
	}
	cmd.Flags().Bool("theme", false, "the id names a theme")
	return cmd
}

func (c *cli) restoreCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "restore <id> <backup-key>",
		Short: "Restore a plugin or theme from a backup",
		Args:  cobra.ExactArgs(2),
		Run: c.runE(func(ctx context.Context, cmd *cobra.Command, args []string) error {
			a, err := c.newApp(ctx)
			if err != nil {
				return err
			}
			defer a.Close()
			kind := kindFromFlag(cmd)
			if err := a.Installer.Restore(ctx, a.Updater(kind).Target(), args[0], args[1]); err != nil {
				return err
			}
			c.log.Infof("restored %s %s from %s", kind, args[0], args[1])
			return nil
		}),
	}
	cmd.Flags().Bool("theme", false, "the id names a theme")
	return cmd
}
