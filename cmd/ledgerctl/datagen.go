package main

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/vanshika/debtbook/internal/app"
	"github.com/vanshika/debtbook/internal/generator"
)

func newDatagenCmd(opts *rootOptions) *cobra.Command {
	cfg := generator.DefaultConfig()
	var (
		outputDir   string
		writeStdout bool
	)
	cmd := &cobra.Command{
		Use:   "datagen",
		Short: "Generate synthetic users and chat messages",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg.SplitChance = clampProbability(cfg.SplitChance)
			cfg.DivisorChance = clampProbability(cfg.DivisorChance)
			cfg.DecimalChance = clampProbability(cfg.DecimalChance)
			cfg.MultiLineChance = clampProbability(cfg.MultiLineChance)
			cfg.MinorDigits = int32(opts.cfg.Ledger.MinorDigits)

			ctx, cancel := context.WithTimeout(cmd.Context(), opts.timeout)
			defer cancel()

			dataset, err := generator.New(cfg).Generate(ctx)
			if err != nil {
				return fmt.Errorf("generation failed: %w", err)
			}

			if writeStdout {
				return json.NewEncoder(cmd.OutOrStdout()).Encode(dataset)
			}
			if err := generator.WriteDataset(dataset, outputDir); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Generated %d users and %d messages into %s\n",
				len(dataset.Users), len(dataset.Messages), outputDir)
			return nil
		},
	}

	f := cmd.Flags()
	f.IntVar(&cfg.NumUsers, "users", cfg.NumUsers, "number of users to generate")
	f.IntVar(&cfg.NumMessages, "messages", cfg.NumMessages, "number of messages to generate")
	f.Float64Var(&cfg.SplitChance, "split-chance", cfg.SplitChance, "probability of a message naming several debtors")
	f.Float64Var(&cfg.DivisorChance, "divisor-chance", cfg.DivisorChance, "probability of a split message spelling out the divisor")
	f.Float64Var(&cfg.DecimalChance, "decimal-chance", cfg.DecimalChance, "probability of an amount written in major units")
	f.Float64Var(&cfg.MultiLineChance, "multiline-chance", cfg.MultiLineChance, "probability of a two-line message")
	f.Int64Var(&cfg.Seed, "seed", cfg.Seed, "random seed for deterministic generation")
	f.StringVar(&outputDir, "output-dir", "data", "directory to write users.json and messages.json")
	f.BoolVar(&writeStdout, "stdout", false, "write the combined dataset to stdout instead of files")
	return cmd
}

func newIngestCmd(opts *rootOptions) *cobra.Command {
	var (
		datasetDir string
		workers    int
	)
	cmd := &cobra.Command{
		Use:   "ingest",
		Short: "Register users and submit messages from a generated dataset",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			dataset, err := generator.LoadDataset(datasetDir)
			if err != nil {
				return err
			}
			if len(dataset.Users) == 0 {
				return fmt.Errorf("users dataset in %s is empty", datasetDir)
			}

			return opts.withApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
				start := time.Now()
				opts.logger.Info("ingesting dataset", "users", len(dataset.Users), "messages", len(dataset.Messages), "workers", workers)

				report, err := generator.Ingest(ctx, a.Service, dataset, workers)
				fmt.Fprintf(cmd.OutOrStdout(), "users=%d messages=%d debts=%d rejected=%d duration=%s\n",
					report.Users, report.Messages, report.Debts, report.Rejected, time.Since(start).Round(time.Millisecond))
				return err
			})
		},
	}
	cmd.Flags().StringVar(&datasetDir, "dataset-dir", "data", "directory containing users.json and messages.json")
	cmd.Flags().IntVar(&workers, "workers", 4, "number of concurrent submitters")
	return cmd
}

func clampProbability(value float64) float64 {
	if value < 0 {
		return 0
	}
	if value > 1 {
		return 1
	}
	return value
}
