package commands

import (
	"bufio"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	qberrors "github.com/bloombuilt/qb/internal/errors"
	"github.com/bloombuilt/qb/internal/field"
)

func NewInitCommand(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Create a new field or activate an existing one",
		Args:  cobra.NoArgs,
		RunE: app.tracked("init", func(cmd *cobra.Command, args []string) error {
			m, err := app.manager(cmd.Context())
			if err != nil {
				return err
			}
			_, err = m.Init(cmd.Context())
			return err
		}),
	}
}

func NewFieldCommand(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "field",
		Short: "Create or switch the active field",
	}
	cmd.AddCommand(newFieldNewCommand(app), newFieldSwitchCommand(app))
	return cmd
}

func newFieldNewCommand(app *App) *cobra.Command {
	var (
		opts          field.CreateOptions
		passwordStdin bool
	)

	cmd := &cobra.Command{
		Use:   "new",
		Short: "Scaffold a new field and make it active",
		Long: `Scaffold a new field directory and make it the active field.

The field password is stored in the credential backend. It comes from
--password-stdin or a prompt. With QB_PASS set and no other password,
the field is encrypted with QB_PASS and nothing is stored.

Examples:
  qb field new
  qb field new --name staging --app shop
  echo "$PASS" | qb field new --name ci --password-stdin --non-interactive`,
		Args: cobra.NoArgs,
		RunE: app.tracked("field_new", func(cmd *cobra.Command, args []string) error {
			if passwordStdin {
				password, err := readLine(app)
				if err != nil {
					return err
				}
				opts.Password = password
			}

			m, err := app.manager(cmd.Context())
			if err != nil {
				return err
			}
			_, err = m.Create(cmd.Context(), opts)
			return err
		}),
	}

	cmd.Flags().StringVar(&opts.Name, "name", "", "Field name (e.g. staging)")
	cmd.Flags().StringVar(&opts.AppName, "app", "", "App name")
	cmd.Flags().BoolVar(&passwordStdin, "password-stdin", false, "Read the field password from stdin")

	return cmd
}

func newFieldSwitchCommand(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "switch [name]",
		Short: "Activate an existing field",
		Args:  cobra.MaximumNArgs(1),
		RunE: app.tracked("field_switch", func(cmd *cobra.Command, args []string) error {
			name := ""
			if len(args) == 1 {
				name = args[0]
			}
			m, err := app.manager(cmd.Context())
			if err != nil {
				return err
			}
			_, err = m.Activate(cmd.Context(), name)
			return err
		}),
	}
}

func readLine(app *App) (string, error) {
	line, err := bufio.NewReader(app.Stdin).ReadString('\n')
	line = strings.TrimRight(line, "\r\n")
	if line == "" {
		if err != nil {
			return "", fmt.Errorf("failed to read password from stdin: %w", err)
		}
		return "", qberrors.UserError{
			Message:    "Empty password on stdin",
			Suggestion: "Pipe the password followed by a newline",
		}
	}
	app.Config.Logger.Redact(line)
	return line, nil
}
