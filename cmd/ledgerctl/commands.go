package main

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/vanshika/debtbook/internal/amount"
	"github.com/vanshika/debtbook/internal/app"
	"github.com/vanshika/debtbook/internal/domain"
	"github.com/vanshika/debtbook/internal/parser"
	"github.com/vanshika/debtbook/internal/store/postgres"
)

func newMigrateCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending database migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if opts.cfg.Postgres.URL == "" {
				return errors.New("DATABASE_URL is required")
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), opts.timeout)
			defer cancel()

			pool, err := postgres.Connect(ctx, opts.cfg.Postgres.URL)
			if err != nil {
				return err
			}
			defer pool.Close()

			applied, err := postgres.Migrate(ctx, pool)
			if err != nil {
				return err
			}
			if len(applied) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "schema is up to date")
				return nil
			}
			for _, name := range applied {
				fmt.Fprintln(cmd.OutOrStdout(), "applied", name)
			}
			return nil
		},
	}
}

func newSweepCmd(opts *rootOptions) *cobra.Command {
	var expireOnly bool
	cmd := &cobra.Command{
		Use:   "sweep",
		Short: "Run one scheduler pass: expire overdue debts and send due reminders",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.withApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
				run := a.Scheduler.RunOnce
				if expireOnly {
					run = a.Scheduler.ExpireOverdue
				}
				report, err := run(ctx)
				fmt.Fprintf(cmd.OutOrStdout(), "expired=%d reminded=%d pruned=%d failed=%d\n",
					report.Expired, report.Reminded, report.Pruned, report.Failed)
				return err
			})
		},
	}
	cmd.Flags().BoolVar(&expireOnly, "expire-only", false, "Skip reminder jobs")
	return cmd
}

func newReconcileCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "reconcile DEBT_ID...",
		Short: "Re-run settlement for debts whose payments were changed outside the service",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ids := make([]int64, 0, len(args))
			for _, arg := range args {
				id, err := strconv.ParseInt(arg, 10, 64)
				if err != nil {
					return fmt.Errorf("invalid debt id %q", arg)
				}
				ids = append(ids, id)
			}
			return opts.withApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
				var errs []error
				for _, id := range ids {
					d, settled, err := a.Ledger.Reconcile(ctx, id)
					if err != nil {
						errs = append(errs, err)
						continue
					}
					fmt.Fprintf(cmd.OutOrStdout(), "debt %d: status=%s settled=%t\n", d.ID, d.Status, settled)
				}
				return errors.Join(errs...)
			})
		},
	}
}

func newParseCmd(opts *rootOptions) *cobra.Command {
	var sender string
	cmd := &cobra.Command{
		Use:   "parse MESSAGE",
		Short: "Show the debts a message would create, without touching the ledger",
		Long: `Parse a message with the configured amount, rounding and split policy.

Every mention resolves to a distinct placeholder id, so the output shows the
amounts and descriptions only; unknown users are not reported.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			popts, err := opts.cfg.ParserOptions()
			if err != nil {
				return err
			}
			resolver := newPreviewResolver(sender)
			intents, err := parser.Parse(cmd.Context(), args[0], resolver.senderID, resolver, popts)
			if err != nil {
				return err
			}
			writePreview(cmd, intents, popts.Amount.MinorDigits)
			return nil
		},
	}
	cmd.Flags().StringVar(&sender, "as", "me", "Handle of the message sender")
	return cmd
}

func writePreview(cmd *cobra.Command, intents []domain.DebtIntent, minorDigits int32) {
	tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "DEBTOR\tAMOUNT\tMINOR\tDESCRIPTION")
	for _, in := range intents {
		fmt.Fprintf(tw, "@%s\t%s\t%d\t%s\n", in.DebtorHandle, amount.Format(in.Amount, minorDigits), in.Amount, in.Description)
	}
	tw.Flush()
}

// previewResolver hands out ids in first-seen order; the sender is always id 1.
type previewResolver struct {
	senderID int64
	ids      map[string]int64
}

func newPreviewResolver(sender string) *previewResolver {
	return &previewResolver{
		senderID: 1,
		ids:      map[string]int64{domain.NormalizeUsername(sender): 1},
	}
}

func (r *previewResolver) Resolve(_ context.Context, handle string) (int64, bool, error) {
	name := domain.NormalizeUsername(handle)
	if id, ok := r.ids[name]; ok {
		return id, true, nil
	}
	id := int64(len(r.ids) + 1)
	r.ids[name] = id
	return id, true, nil
}

func newBalanceCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "balance USER_ID",
		Short: "Print a user's net balances over active debts",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			userID, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid user id %q", args[0])
			}
			return opts.withApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
				b, err := a.Service.Balances(ctx, userID)
				if err != nil {
					return err
				}
				digits := int32(opts.cfg.Ledger.MinorDigits)
				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "owed to user: %s\nowed by user: %s\nnet: %s\n",
					amount.Format(b.Summary.OwedToUser, digits),
					amount.Format(b.Summary.OwedByUser, digits),
					amount.Format(b.Summary.Net(), digits))
				if len(b.Rows) == 0 {
					return nil
				}
				tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
				fmt.Fprintln(tw, "CREDITOR\tDEBTOR\tTOTAL")
				for _, row := range b.Rows {
					fmt.Fprintf(tw, "%d\t%d\t%s\n", row.CreditorID, row.DebtorID, amount.Format(row.TotalDebt, digits))
				}
				return tw.Flush()
			})
		},
	}
}

func newTrustPathCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "trust-path FROM_ID TO_ID",
		Short: "Length of the shortest trust chain between two users (graph backend)",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ids := make([]int64, 2)
			for i, arg := range args {
				id, err := strconv.ParseInt(strings.TrimSpace(arg), 10, 64)
				if err != nil {
					return fmt.Errorf("invalid user id %q", arg)
				}
				ids[i] = id
			}
			return opts.withApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
				if a.TrustGraph == nil {
					return errors.New("trust-path needs TRUST_BACKEND=graph")
				}
				hops, ok, err := a.TrustGraph.PathLength(ctx, ids[0], ids[1], opts.cfg.Trust.MaxHops)
				if err != nil {
					return err
				}
				if !ok {
					fmt.Fprintf(cmd.OutOrStdout(), "no trust path within %d hops\n", opts.cfg.Trust.MaxHops)
					return nil
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%d hops\n", hops)
				return nil
			})
		},
	}
}
