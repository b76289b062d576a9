// Command qb-pass prints the active field's vault password. ansible-vault
// runs it through --vault-password-file; it never prompts.
package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/bloombuilt/qb/internal/config"
	"github.com/bloombuilt/qb/internal/credentials"
	"github.com/bloombuilt/qb/internal/logging"
	"github.com/bloombuilt/qb/internal/secure"
)

func main() {
	os.Exit(run())
}

func run() int {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	defer secure.Purge()

	cfg := &config.Config{Logger: logging.New(os.Getenv("QB_DEBUG") != "", true), NonInteractive: true}
	return passwordMain(ctx, cfg, nil, os.Stdout, os.Stderr)
}

// passwordMain resolves the password with override and store only and
// returns the process exit code. A nil store opens the configured backend.
func passwordMain(ctx context.Context, cfg *config.Config, store credentials.Store, stdout, stderr io.Writer) int {
	secret, err := resolve(ctx, cfg, store)
	if err != nil {
		cfg.Logger.Debug("qb-pass: %v", err)
		fmt.Fprintln(stderr, "No password found")
		return 1
	}
	defer secret.Wipe()

	value, err := secret.Reveal()
	if err != nil {
		fmt.Fprintln(stderr, "No password found")
		return 1
	}
	if _, err := fmt.Fprintln(stdout, value); err != nil {
		return 1
	}
	return 0
}

func resolve(ctx context.Context, cfg *config.Config, store credentials.Store) (*credentials.Secret, error) {
	if err := cfg.Load(); err != nil {
		return nil, err
	}
	name := cfg.ActiveField()
	if name == "" {
		return nil, fmt.Errorf("no active field")
	}

	if store == nil {
		var err error
		store, err = credentials.Open(ctx, cfg.Backend.StoreOptions())
		if err != nil {
			return nil, err
		}
	}

	key := credentials.Key{Workspace: cfg.Workspace, Field: name, AppName: cfg.State.AppName}
	return credentials.NewChain(cfg.PasswordOverride, store, nil).Resolve(ctx, key)
}
