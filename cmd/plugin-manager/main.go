package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/obsidian-tools/plugin-manager/internal/app"
	"github.com/obsidian-tools/plugin-manager/internal/config"
	"github.com/obsidian-tools/plugin-manager/internal/host"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var version = "dev"

func must[T any](v T, err error) T {
	if err != nil {
		panic(err)
	}
	return v
}

// cli carries the state shared by all subcommands.
type cli struct {
	log *logrus.Logger
	cfg *config.Config
}

func (c *cli) setup(cmd *cobra.Command) error {
	cfg, err := config.NewConfigFromEnv()
	if err != nil {
		return err
	}
	cfg.Version = version
	if vaultDir := must(cmd.Flags().GetString("vault")); vaultDir != "" {
		cfg.VaultDir = vaultDir
	}
	if must(cmd.Flags().GetBool("debug")) {
		cfg.LogLevel = logrus.DebugLevel.String()
	}
	c.cfg = cfg
	c.log = cfg.NewLogger()
	return nil
}

func (c *cli) newApp(ctx context.Context) (*app.App, error) {
	return app.New(ctx, c.log, c.cfg, host.NewLogNotifier(c.log))
}

// runE wraps a subcommand so that errors are logged and the process exits
// with status 1.
func (c *cli) runE(fn func(ctx context.Context, cmd *cobra.Command, args []string) error) func(cmd *cobra.Command, args []string) {
	return func(cmd *cobra.Command, args []string) {
		ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()
		if err := fn(ctx, cmd, args); err != nil {
			c.log.Errorf("ERROR: %v", err)
			stop()
			os.Exit(1)
		}
	}
}

func newRootCmd() *cobra.Command {
	c := &cli{log: logrus.New()}
	cmd := &cobra.Command{
		Use:     "plugin-manager",
		Short:   "Keep the community plugins and themes of a vault up to date",
		Version: version,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return c.setup(cmd)
		},
		CompletionOptions: cobra.CompletionOptions{
			DisableDefaultCmd: true,
		},
		SilenceUsage: true,
	}
	cmd.PersistentFlags().String("vault", "", "the vault directory (defaults to $VAULT_DIR)")
	cmd.PersistentFlags().Bool("debug", false, "enable debug logging")
	cmd.PersistentFlags().SortFlags = false

	cmd.AddCommand(
		c.updateCmd(),
		c.checkCmd(),
		c.themesCmd(),
		c.toggleCmd(true),
		c.toggleCmd(false),
		c.memosCmd(),
		c.localGraphCmd(),
		c.historyCmd(),
		c.backupCmd(),
		c.restoreCmd(),
	)
	return cmd
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
