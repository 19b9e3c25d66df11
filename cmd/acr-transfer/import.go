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

// newBatchImportCmd creates the batch-import command: drive import pipeline
// runs over previously exported storage blobs.
func newBatchImportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "batch-import",
		Short: "Import exported blobs through an import pipeline",
		Long: `Lists the blobs produced by a batch export and submits one import
pipeline run per blob. Run names follow the blob listing order, so a re-run
skips blobs whose runs already succeeded.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := bindFlags(cmd); err != nil {
				return err
			}
			return runBatchImport()
		},
	}

	cmd.Flags().String("registry", "", "Target registry name (required)")
	cmd.Flags().String("subscription", "", "Subscription ID of the target registry")
	cmd.Flags().String("resource-group", "", "Resource group of the import pipeline (required)")
	cmd.Flags().String("pipeline-name", "", "Import pipeline name (required)")
	cmd.Flags().String("prefix", "import-batch", "Pipeline run name prefix")
	cmd.Flags().Int("max-concurrent", 5, "Concurrent pipeline run cap")
	cmd.Flags().Int("poll-seconds", 30, "Run status poll interval in seconds")
	cmd.Flags().String("skip-policy", "succeeded", "Which existing runs to skip: non-failed or succeeded")
	cmd.Flags().String("storage-account", "", "Storage account holding exported blobs (required)")
	cmd.Flags().String("container", "", "Blob container name (required)")
	cmd.Flags().String("sas-token", "", "SAS token for blob listing")
	cmd.Flags().Bool("dry-run", false, "Plan without submitting pipeline runs")

	return cmd
}

func runBatchImport() error {
	cfg := &types.BatchImportConfig{
		Registry:       viper.GetString("registry"),
		Subscription:   viper.GetString("subscription"),
		ResourceGroup:  viper.GetString("resource-group"),
		Pipeline:       viper.GetString("pipeline-name"),
		Prefix:         viper.GetString("prefix"),
		MaxConcurrent:  viper.GetInt("max-concurrent"),
		PollSeconds:    viper.GetInt("poll-seconds"),
		SkipPolicy:     viper.GetString("skip-policy"),
		StorageAccount: viper.GetString("storage-account"),
		Container:      viper.GetString("container"),
		SASToken:       viper.GetString("sas-token"),
		DryRun:         viper.GetBool("dry-run"),
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
	if cfg.StorageAccount == "" || cfg.Container == "" {
		return apperrors.WrapInvalidInput(errors.New("--storage-account and --container are required"), "Missing storage configuration")
	}
	skipPolicy, err := service.ParseSkipPolicy(cfg.SkipPolicy)
	if err != nil {
		return apperrors.WrapInvalidInput(err, "Invalid --skip-policy")
	}

	tracker := azcli.NewTracker(log, cfg.ResourceGroup, cfg.Registry, cfg.Pipeline, cfg.Subscription)
	blobs := azcli.NewStorageLister(log, cfg.StorageAccount, cfg.Container, cfg.SASToken, cfg.Subscription)

	svc := service.NewBatchImportService(blobs, tracker, log)
	opts := &service.BatchOptions{
		Prefix:        cfg.Prefix,
		MaxConcurrent: cfg.MaxConcurrent,
		PollInterval:  time.Duration(cfg.PollSeconds) * time.Second,
		SubmitDelay:   2 * time.Second,
		DryRun:        cfg.DryRun,
		SkipPolicy:    skipPolicy,
	}

	summary, err := svc.Run(context.Background(), opts)
	if err != nil {
		return err
	}
	log.Info("Batch import finished: %d blobs, %d skipped, %d submitted, %d succeeded, %d failed, %d canceled",
		summary.Batches, summary.SkippedExisting, summary.Submitted, summary.Succeeded, summary.Failed, summary.Canceled)
	if summary.HasFailures() {
		return errors.New("one or more import pipeline runs failed")
	}
	return nil
}
