package commands

import (
	"context"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/bloombuilt/qb/internal/config"
	"github.com/bloombuilt/qb/internal/credentials"
	"github.com/bloombuilt/qb/internal/envfile"
	"github.com/bloombuilt/qb/internal/field"
	"github.com/bloombuilt/qb/internal/gitcheck"
	"github.com/bloombuilt/qb/internal/playbook"
	"github.com/bloombuilt/qb/internal/prompt"
	"github.com/bloombuilt/qb/internal/vault"
	"github.com/bloombuilt/qb/pkg/exec"
)

// App carries the configuration and collaborators shared by every
// command. Nil collaborators fall back to the production ones.
type App struct {
	Config *config.Config

	OpenStore func(ctx context.Context) (credentials.Store, error)
	Prompter  prompt.Prompter
	NewVault  func(field string) vault.Encryptor
	Exec      exec.Runner
	Git       playbook.Deployability

	Stdin  io.Reader
	Stdout io.Writer
	Stderr io.Writer
}

// NewApp returns an App bound to the process stdio.
func NewApp(cfg *config.Config) *App {
	return &App{Config: cfg, Stdin: os.Stdin, Stdout: os.Stdout, Stderr: os.Stderr}
}

func (a *App) store(ctx context.Context) (credentials.Store, error) {
	if a.OpenStore != nil {
		return a.OpenStore(ctx)
	}
	return credentials.Open(ctx, a.Config.Backend.StoreOptions())
}

func (a *App) prompter() prompt.Prompter {
	if a.Config.NonInteractive {
		return prompt.Disabled{}
	}
	if a.Prompter != nil {
		return a.Prompter
	}
	return prompt.For(prompt.Interactive())
}

func (a *App) vaultFor(name string) vault.Encryptor {
	if a.NewVault != nil {
		return a.NewVault(name)
	}
	passGetter, err := vault.PassGetter(a.Config.PassGetter)
	if err != nil {
		return unavailableVault{err: err}
	}
	v := vault.New(a.Config.VaultBinary, passGetter, name)
	v.Env = a.Config.ChildEnv()
	v.Logger = a.Config.Logger
	v.Metrics = a.Config.Metrics
	v.Stdin, v.Stdout, v.Stderr = a.Stdin, a.Stdout, a.Stderr
	if a.Exec != nil {
		v.Runner = a.Exec
	}
	return v
}

func (a *App) manager(ctx context.Context) (*field.Manager, error) {
	store, err := a.store(ctx)
	if err != nil {
		return nil, err
	}
	return field.NewManager(a.Config, store, a.prompter(), a.vaultFor), nil
}

// ready resolves the active field and its password, as every
// field-scoped verb requires.
func (a *App) ready(ctx context.Context) (field.Session, error) {
	m, err := a.manager(ctx)
	if err != nil {
		return field.Session{}, err
	}
	return m.EnsureReady(ctx)
}

func (a *App) editor(f field.Field) *envfile.Editor {
	return envfile.NewEditor(a.vaultFor(f.Name), a.Config.Logger)
}

func (a *App) runner(verbose bool) (*playbook.Runner, error) {
	passGetter, err := vault.PassGetter(a.Config.PassGetter)
	if err != nil {
		return nil, err
	}

	git := a.Git
	if git == nil {
		git = gitcheck.New(a.Config.WorkDir)
	}
	r := playbook.New(passGetter, git)
	r.Verbose = verbose
	r.Env = a.Config.ChildEnv()
	r.Logger = a.Config.Logger
	r.Metrics = a.Config.Metrics
	r.Stdin, r.Stdout, r.Stderr = a.Stdin, a.Stdout, a.Stderr
	if a.Exec != nil {
		r.Exec = a.Exec
	}
	return r, nil
}

// unavailableVault reports why ansible-vault cannot be driven.
type unavailableVault struct {
	err error
}

func (u unavailableVault) Protect(context.Context, string) error { return u.err }

func (u unavailableVault) Expose(context.Context, string) error { return u.err }

func (u unavailableVault) View(context.Context, string, io.Writer) error { return u.err }

func (u unavailableVault) Edit(context.Context, string) error { return u.err }

func (u unavailableVault) EncryptString(context.Context, string, io.Writer) error { return u.err }

// tracked wraps run so every outcome of the command, precondition
// failures included, is counted under name.
func (a *App) tracked(name string, run func(cmd *cobra.Command, args []string) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		return a.track(name, run(cmd, args))
	}
}

// track records the outcome of an operation.
func (a *App) track(name string, err error) error {
	a.Config.Metrics.Operation(name, err)
	return err
}
