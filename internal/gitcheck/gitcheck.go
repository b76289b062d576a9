// Package gitcheck inspects the workspace's git repository before
// deploy-class playbook runs.
package gitcheck

import (
	"context"
	"errors"
	"fmt"
	"strings"

	qberrors "github.com/bloombuilt/qb/internal/errors"
	"github.com/bloombuilt/qb/pkg/exec"
)

// Repo runs git against a single working directory.
type Repo struct {
	Dir      string
	Executor exec.CommandExecutor
}

// New returns a Repo for dir using the real executor.
func New(dir string) *Repo {
	return &Repo{Dir: dir, Executor: exec.DefaultExecutor()}
}

func (r *Repo) git(ctx context.Context, args ...string) (string, error) {
	args = append([]string{"-C", r.Dir}, args...)
	stdout, stderr, err := r.Executor.Execute(ctx, "git", args...)
	if err != nil {
		failed := qberrors.CommandFailed("git", "git "+strings.Join(args, " "), err)
		var cmdErr qberrors.CommandError
		if errors.As(failed, &cmdErr) && cmdErr.Message == "" {
			cmdErr.Message = strings.TrimSpace(string(stderr))
			return "", cmdErr
		}
		return "", failed
	}
	return strings.TrimSpace(string(stdout)), nil
}

// CurrentBranch returns the checked-out branch name.
func (r *Repo) CurrentBranch(ctx context.Context) (string, error) {
	return r.git(ctx, "rev-parse", "--abbrev-ref", "HEAD")
}

// IsClean reports whether the tree has no uncommitted or untracked changes.
func (r *Repo) IsClean(ctx context.Context) (bool, error) {
	out, err := r.git(ctx, "status", "--porcelain")
	if err != nil {
		return false, err
	}
	return out == "", nil
}

// Unpushed lists commits not yet on the upstream branch, one per line.
func (r *Repo) Unpushed(ctx context.Context) ([]string, error) {
	out, err := r.git(ctx, "cherry", "-v")
	if err != nil {
		return nil, err
	}
	if out == "" {
		return nil, nil
	}
	return strings.Split(out, "\n"), nil
}

// EnsureDeployable fails with ErrDirtyTree when the tree has local changes
// or commits that have not been pushed.
func (r *Repo) EnsureDeployable(ctx context.Context) error {
	clean, err := r.IsClean(ctx)
	if err != nil {
		return err
	}
	if !clean {
		return qberrors.UserError{
			Message:    "The working tree has uncommitted changes",
			Suggestion: "Commit or stash your changes, or pass --force",
			Err:        qberrors.ErrDirtyTree,
		}
	}

	commits, err := r.Unpushed(ctx)
	if err != nil {
		return err
	}
	if len(commits) > 0 {
		branch, _ := r.CurrentBranch(ctx)
		return qberrors.UserError{
			Message:    fmt.Sprintf("Branch %s has %d unpushed commit(s)", branch, len(commits)),
			Details:    strings.Join(commits, "\n"),
			Suggestion: "Push your commits first, or pass --force",
			Err:        qberrors.ErrDirtyTree,
		}
	}
	return nil
}
