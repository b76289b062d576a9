package commands

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/bloombuilt/qb/internal/credentials"
	"github.com/bloombuilt/qb/internal/field"
)

func NewStatusCommand(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show the active field and whether its password resolves",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := app.Config
			out := app.Stdout

			fmt.Fprintf(out, "Workspace: %s\n", cfg.Workspace)
			fmt.Fprintf(out, "Backend:   %s\n", cfg.Backend.Name)

			name := cfg.ActiveField()
			if name == "" {
				fmt.Fprintln(out, "Field:     (none) - run 'qb init'")
				return nil
			}

			suffix := ""
			if cfg.State.Overridden {
				suffix = " (from QB_FIELD)"
			}
			fmt.Fprintf(out, "Field:     %s%s\n", name, suffix)
			if cfg.State.AppName != "" {
				fmt.Fprintf(out, "App:       %s\n", cfg.State.AppName)
			}
			if !field.New(cfg.WorkDir, name, "").Exists() {
				fmt.Fprintln(out, "Directory: missing")
			}

			m, err := app.manager(cmd.Context())
			if err != nil {
				fmt.Fprintf(out, "Password:  unavailable (%v)\n", err)
				return nil
			}
			source, err := m.Probe(cmd.Context())
			switch {
			case err == nil:
				fmt.Fprintf(out, "Password:  found (%s)\n", source)
			case errors.Is(err, credentials.ErrNotResolved):
				fmt.Fprintln(out, "Password:  not stored - run 'qb field switch' or set QB_PASS")
			default:
				fmt.Fprintf(out, "Password:  error (%v)\n", err)
			}
			return nil
		},
	}
}

func NewVersionCommand(app *App, version string) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the qb version",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(app.Stdout, "qb %s\n", version)
		},
	}
}
