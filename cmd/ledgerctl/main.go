// Command ledgerctl runs operator tasks against the debt ledger.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/vanshika/debtbook/internal/app"
	"github.com/vanshika/debtbook/internal/config"
	"github.com/vanshika/debtbook/internal/logging"
)

type rootOptions struct {
	timeout time.Duration
	verbose bool

	cfg    config.Config
	logger *slog.Logger
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}

	root := &cobra.Command{
		Use:           "ledgerctl",
		Short:         "Operate the debt ledger",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			if opts.verbose {
				cfg.Logging.Level = "debug"
			}
			opts.cfg = cfg
			opts.logger = logging.NewWithWriter(cfg.Logging, cmd.ErrOrStderr())
			return nil
		},
	}
	root.PersistentFlags().DurationVar(&opts.timeout, "timeout", 2*time.Minute, "Operation timeout")
	root.PersistentFlags().BoolVarP(&opts.verbose, "verbose", "v", false, "Enable debug logging")

	root.AddCommand(
		newMigrateCmd(opts),
		newSweepCmd(opts),
		newReconcileCmd(opts),
		newParseCmd(opts),
		newBalanceCmd(opts),
		newTrustPathCmd(opts),
		newDatagenCmd(opts),
		newIngestCmd(opts),
	)
	return root
}

// withApp builds the application for the duration of fn.
func (o *rootOptions) withApp(ctx context.Context, fn func(ctx context.Context, a *app.App) error) error {
	ctx, cancel := context.WithTimeout(ctx, o.timeout)
	defer cancel()

	a, err := app.New(ctx, o.cfg, o.logger, app.Options{})
	if err != nil {
		return err
	}
	runErr := fn(ctx, a)

	closeCtx, closeCancel := context.WithTimeout(context.Background(), o.cfg.HTTP.ShutdownTimeout)
	defer closeCancel()
	if err := a.Close(closeCtx); err != nil && runErr == nil {
		runErr = err
	}
	return runErr
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		stop()
		os.Exit(1)
	}
}
