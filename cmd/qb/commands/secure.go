package commands

import (
	"context"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	qberrors "github.com/bloombuilt/qb/internal/errors"
	"github.com/bloombuilt/qb/internal/vault"
)

type fileAction func(ctx context.Context, v vault.Encryptor, path string) error

// newFileCommand builds a verb that applies one vault operation to a file
// with the active field's password.
func newFileCommand(app *App, use, short, op string, action fileAction) *cobra.Command {
	return &cobra.Command{
		Use:   use + " <file>",
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: app.tracked(op, func(cmd *cobra.Command, args []string) error {
			session, err := app.ready(cmd.Context())
			if err != nil {
				return err
			}
			defer session.Secret.Wipe()

			path := args[0]
			if !filepath.IsAbs(path) {
				path = filepath.Join(app.Config.WorkDir, path)
			}
			if _, err := os.Stat(path); err != nil {
				return qberrors.TargetMissing("file", args[0])
			}
			return action(cmd.Context(), app.vaultFor(session.Field.Name), path)
		}),
	}
}

func NewEditCommand(app *App) *cobra.Command {
	return newFileCommand(app, "edit", "Edit an encrypted file", "edit",
		func(ctx context.Context, v vault.Encryptor, path string) error {
			return v.Edit(ctx, path)
		})
}

func NewShowCommand(app *App) *cobra.Command {
	return newFileCommand(app, "show", "Print the decrypted contents of an encrypted file", "show",
		func(ctx context.Context, v vault.Encryptor, path string) error {
			return v.View(ctx, path, app.Stdout)
		})
}

func NewProtectCommand(app *App) *cobra.Command {
	return newFileCommand(app, "protect", "Encrypt a file in place", "protect",
		func(ctx context.Context, v vault.Encryptor, path string) error {
			encrypted, err := vault.IsEncrypted(path)
			if err != nil {
				return err
			}
			if encrypted {
				return qberrors.UserError{
					Message:    path + " is already encrypted",
					Suggestion: "Use 'qb edit' to change it",
				}
			}
			return v.Protect(ctx, path)
		})
}

func NewExposeCommand(app *App) *cobra.Command {
	return newFileCommand(app, "expose", "Decrypt a file in place", "expose",
		func(ctx context.Context, v vault.Encryptor, path string) error {
			encrypted, err := vault.IsEncrypted(path)
			if err != nil {
				return err
			}
			if !encrypted {
				return qberrors.UserError{Message: path + " is not encrypted"}
			}
			if err := v.Expose(ctx, path); err != nil {
				return err
			}
			app.Config.Logger.Warn("%s is now plaintext. Run 'qb protect' before committing it.", path)
			return nil
		})
}

func NewProtectStringCommand(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "protect_string <string>",
		Short: "Encrypt a string and print it as an inline vault value",
		Args:  cobra.ExactArgs(1),
		RunE: app.tracked("protect_string", func(cmd *cobra.Command, args []string) error {
			session, err := app.ready(cmd.Context())
			if err != nil {
				return err
			}
			defer session.Secret.Wipe()

			app.Config.Logger.Redact(args[0])
			return app.vaultFor(session.Field.Name).EncryptString(cmd.Context(), args[0], app.Stdout)
		}),
	}
}
