package commands

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	qberrors "github.com/bloombuilt/qb/internal/errors"
	"github.com/bloombuilt/qb/internal/field"
	"github.com/bloombuilt/qb/internal/playbook"
)

func NewRunCommand(app *App) *cobra.Command {
	var (
		force   bool
		verbose bool
	)

	cmd := &cobra.Command{
		Use:   "run <infra|provision|deploy> [-- ansible-playbook args]",
		Short: "Run one of the active field's playbooks",
		Long: `Run <field>/<playbook>.yml with ansible-playbook.

Every playbook except infra runs against <field>/inventory. deploy is
refused when the git tree has uncommitted or unpushed changes, unless
--force is given.

Examples:
  qb run provision
  qb run deploy -- --limit web`,
		ValidArgs: field.Playbooks,
		Args:      playbookArgs,
		RunE: app.tracked("run", func(cmd *cobra.Command, args []string) error {
			session, err := app.ready(cmd.Context())
			if err != nil {
				return err
			}
			defer session.Secret.Wipe()

			r, err := app.runner(verbose)
			if err != nil {
				return err
			}
			return r.Run(cmd.Context(), session.Field, args[0], playbook.Options{
				Force:     force,
				ExtraArgs: extraArgs(cmd, args),
			})
		}),
	}

	cmd.Flags().BoolVar(&force, "force", false, "Skip the git checks before deploy")
	cmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "Run ansible-playbook with -vvvvv")

	return cmd
}

func NewCICommand(app *App) *cobra.Command {
	var (
		force   bool
		verbose bool
	)

	cmd := &cobra.Command{
		Use:   "ci <infra|provision|deploy> [-- ansible-playbook args]",
		Short: "Install requirements and run a playbook without prompting",
		Long: `Install the field's Galaxy requirements, then run the playbook.

ci never prompts: the password must come from QB_PASS or the credential
backend. The git checks apply to every playbook unless --force is given.`,
		ValidArgs: field.Playbooks,
		Args:      playbookArgs,
		RunE: app.tracked("ci", func(cmd *cobra.Command, args []string) error {
			app.Config.NonInteractive = true

			session, err := app.ready(cmd.Context())
			if err != nil {
				return err
			}
			defer session.Secret.Wipe()

			r, err := app.runner(verbose)
			if err != nil {
				return err
			}
			return r.CI(cmd.Context(), session.Field, args[0], playbook.Options{
				Force:     force,
				ExtraArgs: extraArgs(cmd, args),
			})
		}),
	}

	cmd.Flags().BoolVar(&force, "force", false, "Skip the git checks")
	cmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "Run ansible-playbook with -vvvvv")

	return cmd
}

func NewInstallCommand(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "install",
		Short: "Install the Ansible Galaxy roles listed in the field's requirements.yml",
		Args:  cobra.NoArgs,
		RunE: app.tracked("install", func(cmd *cobra.Command, args []string) error {
			session, err := app.ready(cmd.Context())
			if err != nil {
				return err
			}
			defer session.Secret.Wipe()

			r, err := app.runner(false)
			if err != nil {
				return err
			}
			return r.Install(cmd.Context(), session.Field)
		}),
	}
}

// playbookArgs accepts one known playbook followed only by arguments
// after "--".
func playbookArgs(cmd *cobra.Command, args []string) error {
	if len(args) == 0 {
		return qberrors.UserError{
			Message:    "No playbook given",
			Suggestion: "Use one of: " + strings.Join(field.Playbooks, ", "),
		}
	}
	if !playbook.ValidPlaybook(args[0]) {
		return qberrors.UserError{
			Message:    fmt.Sprintf("Unknown playbook %q", args[0]),
			Suggestion: "Use one of: " + strings.Join(field.Playbooks, ", "),
		}
	}
	dash := cmd.ArgsLenAtDash()
	if len(args) > 1 && dash != 1 {
		return qberrors.UserError{
			Message:    "Too many arguments",
			Suggestion: "Pass ansible-playbook arguments after --, e.g. qb run deploy -- --check",
		}
	}
	return nil
}

func extraArgs(cmd *cobra.Command, args []string) []string {
	if dash := cmd.ArgsLenAtDash(); dash >= 1 && dash < len(args) {
		return args[dash:]
	}
	return nil
}
