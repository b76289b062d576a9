package commands

import (
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/bloombuilt/qb/internal/credentials"
	"github.com/bloombuilt/qb/internal/logging"
	"github.com/bloombuilt/qb/internal/metrics"
)

// NewRootCommand builds the qb command tree.
func NewRootCommand(app *App, version string) *cobra.Command {
	var (
		debug   bool
		noColor bool
	)
	cfg := app.Config

	rootCmd := &cobra.Command{
		Use:   "qb",
		Short: "Quarterback - call the plays for your Ansible fields",
		Long: `qb keeps one field (staging, production, ...) active per project, stores
its vault password in your credential store, and drives ansible-vault and
ansible-playbook with it.`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg.Logger = logging.NewWithWriter(app.Stderr, debug, noColor || color.NoColor)
			if cfg.Metrics == nil {
				cfg.Metrics = metrics.New()
			}
			return cfg.Load()
		},
	}

	flags := rootCmd.PersistentFlags()
	flags.BoolVar(&debug, "debug", false, "Enable debug logging")
	flags.BoolVar(&noColor, "no-color", false, "Disable colored output")
	flags.BoolVar(&cfg.NonInteractive, "non-interactive", false, "Never prompt; fail when input is missing")
	flags.StringVar(&cfg.Backend.Name, "backend", "", "Credential backend: "+strings.Join(credentials.Backends(), ", "))
	flags.StringVar(&cfg.MetricsFile, "metrics-file", "", "Write Prometheus metrics to this file on exit")

	rootCmd.AddCommand(
		NewInitCommand(app),
		NewFieldCommand(app),
		NewRunCommand(app),
		NewCICommand(app),
		NewInstallCommand(app),
		NewEnvCommand(app),
		NewEditCommand(app),
		NewShowCommand(app),
		NewProtectCommand(app),
		NewProtectStringCommand(app),
		NewExposeCommand(app),
		NewStatusCommand(app),
		NewVersionCommand(app, version),
	)

	return rootCmd
}
