package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/bloombuilt/qb/cmd/qb/commands"
	"github.com/bloombuilt/qb/internal/config"
	qberrors "github.com/bloombuilt/qb/internal/errors"
	"github.com/bloombuilt/qb/internal/secure"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	os.Exit(run())
}

func run() int {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	defer secure.Purge()

	cfg := &config.Config{}
	app := commands.NewApp(cfg)
	rootCmd := commands.NewRootCommand(app, fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, date))

	err := rootCmd.ExecuteContext(ctx)
	if werr := cfg.Metrics.WriteFile(cfg.MetricsFile); werr != nil && cfg.Logger != nil {
		cfg.Logger.Warn("Failed to write metrics: %v", werr)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", qberrors.SimplifyError(err))
		return qberrors.ExitCode(err)
	}
	return 0
}
