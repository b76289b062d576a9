package commands

import (
	"github.com/spf13/cobra"

	qberrors "github.com/bloombuilt/qb/internal/errors"
)

func NewEnvCommand(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "env",
		Short: "Work with the active field's encrypted app_env",
		Long: `Work with the active field's app_env, which stays encrypted at rest.

Examples:
  qb env show                     # Print the decrypted app_env
  qb env edit                     # Edit it in $EDITOR and re-encrypt
  qb env set NODE_ENV production  # Add or replace one variable`,
	}
	cmd.AddCommand(newEnvShowCommand(app), newEnvEditCommand(app), newEnvSetCommand(app))
	return cmd
}

func newEnvShowCommand(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Print the decrypted app_env",
		Args:  cobra.NoArgs,
		RunE: app.tracked("env_show", func(cmd *cobra.Command, args []string) error {
			session, err := app.ready(cmd.Context())
			if err != nil {
				return err
			}
			defer session.Secret.Wipe()

			f := session.Field
			return app.editor(f).Show(cmd.Context(), f.EnvFile(), app.Stdout)
		}),
	}
}

func newEnvEditCommand(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "edit",
		Short: "Edit app_env and re-encrypt it",
		Args:  cobra.NoArgs,
		RunE: app.tracked("env_edit", func(cmd *cobra.Command, args []string) error {
			session, err := app.ready(cmd.Context())
			if err != nil {
				return err
			}
			defer session.Secret.Wipe()

			f := session.Field
			return app.editor(f).Edit(cmd.Context(), f.EnvFile())
		}),
	}
}

func newEnvSetCommand(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "set <NAME> <VALUE>",
		Short: "Add or replace one variable in app_env",
		Args: func(cmd *cobra.Command, args []string) error {
			if len(args) != 2 || args[0] == "" || args[1] == "" {
				return qberrors.UserError{
					Message:    "env set needs a variable name and a value",
					Suggestion: "qb env set NODE_ENV production",
				}
			}
			return nil
		},
		RunE: app.tracked("env_set", func(cmd *cobra.Command, args []string) error {
			session, err := app.ready(cmd.Context())
			if err != nil {
				return err
			}
			defer session.Secret.Wipe()

			f := session.Field
			change, err := app.editor(f).SetVariable(cmd.Context(), f.EnvFile(), args[0], args[1])
			if err != nil {
				return err
			}
			if change.Replaced {
				app.Config.Logger.Info("Updated %s in %s", args[0], f.EnvFile())
			} else {
				app.Config.Logger.Info("Added %s to %s", args[0], f.EnvFile())
			}
			return nil
		}),
	}
}
