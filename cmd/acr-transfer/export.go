// Copyright (c) 2026 HMCTS
// Licensed under the MIT License. See LICENSE file in the project root for details.

package main

import (
	"context"
	"errors"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	apperrors "github.com/hmcts/acr-transfer/internal/pkg/errors"
	"github.com/hmcts/acr-transfer/internal/pkg/validator"
	"github.com/hmcts/acr-transfer/internal/registry/azcli"
	"github.com/hmcts/acr-transfer/internal/service"
	"github.com/hmcts/acr-transfer/internal/types"
)

// newBatchExportCmd creates the batch-export command: partition a registry's
// artifacts into batches and drive export pipeline runs.
func newBatchExportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "batch-export",
		Short: "Export a registry's artifacts in batches through an export pipeline",
		Long: `Discovers every repository:tag in the source registry, splits them into
fixed-size batches, and submits one export pipeline run per batch. Re-running
skips batches an existing run already handled, so an interrupted export can be
resumed.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := bindFlags(cmd); err != nil {
				return err
			}
			return runBatchExport()
		},
	}

	cmd.Flags().String("registry", "", "Source registry name (required)")
	cmd.Flags().String("subscription", "", "Subscription ID of the source registry")
	cmd.Flags().String("resource-group", "", "Resource group of the export pipeline (required)")
	cmd.Flags().String("pipeline-name", "", "Export pipeline name (required)")
	cmd.Flags().String("prefix", "export-batch", "Pipeline run name prefix")
	cmd.Flags().Int("batch-size", 50, "Artifacts per pipeline run")
	cmd.Flags().Int("max-concurrent", 5, "Concurrent pipeline run cap")
	cmd.Flags().Int("poll-seconds", 30, "Run status poll interval in seconds")
	cmd.Flags().String("skip-policy", "non-failed", "Which existing runs to skip: non-failed or succeeded")
	cmd.Flags().String("ignore-tags", "", "JSON file with artifacts to exclude from export")
	cmd.Flags().Bool("dry-run", false, "Plan without submitting pipeline runs")

	return cmd
}

func runBatchExport() error {
	cfg := &types.BatchExportConfig{
		Registry:      viper.GetString("registry"),
		Subscription:  viper.GetString("subscription"),
		ResourceGroup: viper.GetString("resource-group"),
		Pipeline:      viper.GetString("pipeline-name"),
		Prefix:        viper.GetString("prefix"),
		BatchSize:     viper.GetInt("batch-size"),
		MaxConcurrent: viper.GetInt("max-concurrent"),
		PollSeconds:   viper.GetInt("poll-seconds"),
		SkipPolicy:    viper.GetString("skip-policy"),
		IgnoreTags:    viper.GetString("ignore-tags"),
		DryRun:        viper.GetBool("dry-run"),
	}
	log := newLogger()

	if err := validator.ValidateRegistryName(cfg.Registry); err != nil {
		return apperrors.WrapInvalidInput(err, "Invalid --registry")
	}
	if cfg.ResourceGroup == "" {
		return apperrors.WrapInvalidInput(errors.New("--resource-group is required"), "Missing --resource-group")
	}
	if cfg.Pipeline == "" {
		return apperrors.WrapInvalidInput(errors.New("--pipeline-name is required"), "Missing --pipeline-name")
	}
	if cfg.BatchSize < 1 {
		return apperrors.WrapInvalidInput(errors.New("--batch-size must be at least 1"), "Invalid --batch-size")
	}
	skipPolicy, err := service.ParseSkipPolicy(cfg.SkipPolicy)
	if err != nil {
		return apperrors.WrapInvalidInput(err, "Invalid --skip-policy")
	}

	client := azcli.NewClient(log, azcli.WithSubscription(cfg.Registry, cfg.Subscription))
	tracker := azcli.NewTracker(log, cfg.ResourceGroup, cfg.Registry, cfg.Pipeline, cfg.Subscription)

	svc := service.NewBatchExportService(client, tracker, log)
	opts := &service.ExportOptions{
		BatchOptions: service.BatchOptions{
			Prefix:        cfg.Prefix,
			MaxConcurrent: cfg.MaxConcurrent,
			PollInterval:  time.Duration(cfg.PollSeconds) * time.Second,
			SubmitDelay:   2 * time.Second,
			DryRun:        cfg.DryRun,
			SkipPolicy:    skipPolicy,
		},
		Registry:      cfg.Registry,
		BatchSize:     cfg.BatchSize,
		IgnoreEntries: service.LoadIgnoreEntriesFromFile(cfg.IgnoreTags, log),
	}

	summary, err := svc.Run(context.Background(), opts)
	if err != nil {
		return err
	}
	log.Info("Batch export finished: %d batches, %d skipped, %d submitted, %d succeeded, %d failed, %d canceled",
		summary.Batches, summary.SkippedExisting, summary.Submitted, summary.Succeeded, summary.Failed, summary.Canceled)
	if summary.HasFailures() {
		return errors.New("one or more export pipeline runs failed")
	}
	return nil
}
