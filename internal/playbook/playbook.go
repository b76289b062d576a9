// Package playbook runs ansible-playbook and ansible-galaxy for a field.
package playbook

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	qberrors "github.com/bloombuilt/qb/internal/errors"
	"github.com/bloombuilt/qb/internal/field"
	"github.com/bloombuilt/qb/internal/logging"
	"github.com/bloombuilt/qb/internal/metrics"
	"github.com/bloombuilt/qb/pkg/exec"
)

// Tool binaries.
const (
	PlaybookBinary = "ansible-playbook"
	GalaxyBinary   = "ansible-galaxy"
)

// Deploy is the playbook guarded by the git checks.
const Deploy = "deploy"

// Deployability is satisfied by gitcheck.Repo.
type Deployability interface {
	EnsureDeployable(ctx context.Context) error
}

// Options tune a single run.
type Options struct {
	// Force skips the git checks.
	Force bool
	// ExtraArgs are appended to the ansible-playbook command line.
	ExtraArgs []string
}

// Runner executes Ansible for the active field.
type Runner struct {
	PassGetter string
	Verbose    bool

	// Env is appended to the ansible-playbook environment so the password
	// callback sees the same backend settings.
	Env []string

	Exec    exec.Runner
	Git     Deployability
	Logger  *logging.Logger
	Metrics *metrics.Recorder

	Stdin  io.Reader
	Stdout io.Writer
	Stderr io.Writer
}

// New returns a Runner wired to the terminal.
func New(passGetter string, git Deployability) *Runner {
	return &Runner{
		PassGetter: passGetter,
		Exec:       exec.DefaultExecutor(),
		Git:        git,
		Stdin:      os.Stdin,
		Stdout:     os.Stdout,
		Stderr:     os.Stderr,
	}
}

// ValidPlaybook reports whether name is one of the scaffolded playbooks.
func ValidPlaybook(name string) bool {
	for _, p := range field.Playbooks {
		if p == name {
			return true
		}
	}
	return false
}

// Run runs <field>/<name>.yml. Every playbook except infra gets the
// field inventory. deploy is refused on a dirty tree unless forced.
func (r *Runner) Run(ctx context.Context, f field.Field, name string, opts Options) error {
	if !ValidPlaybook(name) {
		return qberrors.UserError{
			Message:    fmt.Sprintf("Unknown playbook %q", name),
			Suggestion: "Use one of: " + strings.Join(field.Playbooks, ", "),
		}
	}
	path := f.Playbook(name)
	if _, err := os.Stat(path); err != nil {
		return qberrors.TargetMissing("playbook", path)
	}

	if name == Deploy && !opts.Force {
		if err := r.checkGit(ctx); err != nil {
			return err
		}
	}

	args := []string{path, "--vault-password-file", r.PassGetter}
	if name != "infra" {
		args = append(args, "-i", f.Inventory())
	}
	if r.Verbose {
		args = append(args, "-vvvvv")
	}
	args = append(args, opts.ExtraArgs...)

	return r.run(ctx, exec.Command{
		Name: PlaybookBinary,
		Args: args,
		Dir:  filepath.Dir(f.Dir),
		Env: append([]string{
			"ANSIBLE_FORCE_COLOR=true",
			"ANSIBLE_HOST_KEY_CHECKING=false",
			"QB_FIELD=" + f.Name,
		}, r.Env...),
	})
}

// Install installs the Galaxy roles listed in the field's requirements.yml.
func (r *Runner) Install(ctx context.Context, f field.Field) error {
	if _, err := os.Stat(f.Requirements()); err != nil {
		return qberrors.TargetMissing("requirements file", f.Requirements())
	}
	return r.run(ctx, exec.Command{
		Name: GalaxyBinary,
		Args: []string{"install", "-r", "requirements.yml"},
		Dir:  f.Dir,
	})
}

// CI installs requirements and then runs name without prompting. The git
// checks apply to every playbook unless forced.
func (r *Runner) CI(ctx context.Context, f field.Field, name string, opts Options) error {
	if !ValidPlaybook(name) {
		return r.Run(ctx, f, name, opts)
	}
	if !opts.Force {
		if err := r.checkGit(ctx); err != nil {
			return err
		}
	}
	if err := r.Install(ctx, f); err != nil {
		return err
	}
	opts.Force = true
	return r.Run(ctx, f, name, opts)
}

func (r *Runner) checkGit(ctx context.Context) error {
	if r.Git == nil {
		return nil
	}
	return r.Git.EnsureDeployable(ctx)
}

func (r *Runner) run(ctx context.Context, cmd exec.Command) error {
	if r.PassGetter == "" && cmd.Name == PlaybookBinary {
		return fmt.Errorf("no password callback configured for %s", PlaybookBinary)
	}
	cmd.Stdin, cmd.Stdout, cmd.Stderr = r.Stdin, r.Stdout, r.Stderr
	if r.Logger != nil {
		r.Logger.Debug("Running %s", cmd.String())
	}

	start := time.Now()
	err := r.Exec.Run(ctx, cmd)
	r.Metrics.Command(cmd.Name, start)
	return qberrors.CommandFailed(cmd.Name, cmd.String(), err)
}
