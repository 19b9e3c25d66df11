// Copyright (c) 2026 HMCTS
// Licensed under the MIT License. See LICENSE file in the project root for details.

package main

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/hmcts/acr-transfer/internal/filter"
	apperrors "github.com/hmcts/acr-transfer/internal/pkg/errors"
	"github.com/hmcts/acr-transfer/internal/pkg/logger"
	"github.com/hmcts/acr-transfer/internal/pkg/validator"
	"github.com/hmcts/acr-transfer/internal/registry"
	"github.com/hmcts/acr-transfer/internal/registry/azcli"
	"github.com/hmcts/acr-transfer/internal/registry/oras"
	"github.com/hmcts/acr-transfer/internal/service"
	"github.com/hmcts/acr-transfer/internal/types"
)

// newTransferCmd creates the transfer command: direct repository/tag migration
// between two registries.
func newTransferCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "transfer",
		Short: "Transfer repositories and tags between two registries",
		Long: `Compares the tag inventories of the source and target registry and
imports every tag that is missing or re-tagged in the source. Repositories can
be filtered by first letter and by ignore patterns (glob or "re:" regex).`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := bindFlags(cmd); err != nil {
				return err
			}
			return runTransfer()
		},
	}

	cmd.Flags().String("source-registry", "", "Source registry name (required)")
	cmd.Flags().String("target-registry", "", "Target registry name (required)")
	cmd.Flags().String("source-subscription", "", "Subscription ID of the source registry")
	cmd.Flags().String("target-subscription", "", "Subscription ID of the target registry")
	cmd.Flags().StringSlice("repository", nil, "Transfer only these repositories (skips discovery)")
	cmd.Flags().String("letters", "", "Letter filter, e.g. \"a-c,x\" (empty = all)")
	cmd.Flags().StringSlice("ignore-pattern", nil, "Repository ignore pattern (glob, or regex with \"re:\" prefix)")
	cmd.Flags().String("ignore-config", "", "JSON file with additional ignore patterns")
	cmd.Flags().Int("max-repositories", 0, "Stop after this many repositories needed work (0 = unlimited)")
	cmd.Flags().Int("delay-seconds", 0, "Delay between imports in seconds")
	cmd.Flags().Int("parallel-imports", 1, "Concurrent imports per repository")
	cmd.Flags().Bool("dry-run", false, "Plan without importing")
	cmd.Flags().Bool("force", false, "Overwrite every target tag")
	cmd.Flags().Bool("force-on-retry", false, "Retry conflicting imports once with overwrite")
	cmd.Flags().Bool("use-oras", false, "Use the ORAS registry client instead of the az CLI")
	cmd.Flags().Bool("plain-http", false, "ORAS: connect to registries without TLS")
	cmd.Flags().String("registry-username", "", "ORAS: registry username")
	cmd.Flags().String("registry-password", "", "ORAS: registry password")

	return cmd
}

func transferConfigFromViper() *types.TransferConfig {
	return &types.TransferConfig{
		SourceRegistry:     viper.GetString("source-registry"),
		TargetRegistry:     viper.GetString("target-registry"),
		SourceSubscription: viper.GetString("source-subscription"),
		TargetSubscription: viper.GetString("target-subscription"),
		Repositories:       viper.GetStringSlice("repository"),
		Letters:            viper.GetString("letters"),
		IgnorePatterns:     viper.GetStringSlice("ignore-pattern"),
		IgnoreConfig:       viper.GetString("ignore-config"),
		MaxRepositories:    viper.GetInt("max-repositories"),
		DelaySeconds:       viper.GetInt("delay-seconds"),
		ParallelImports:    viper.GetInt("parallel-imports"),
		DryRun:             viper.GetBool("dry-run"),
		Force:              viper.GetBool("force"),
		ForceOnRetry:       viper.GetBool("force-on-retry"),
		UseORAS:            viper.GetBool("use-oras"),
		PlainHTTP:          viper.GetBool("plain-http"),
	}
}

func runTransfer() error {
	cfg := transferConfigFromViper()
	log := newLogger()

	// The ORAS client accepts dotted hosts (and ports) for local registries;
	// the az adapter only ever sees bare ACR names.
	validateRegistry := validator.ValidateRegistryName
	if cfg.UseORAS {
		validateRegistry = validator.ValidateRegistryHost
	}
	if err := validateRegistry(cfg.SourceRegistry); err != nil {
		return apperrors.WrapInvalidInput(err, "Invalid --source-registry")
	}
	if err := validateRegistry(cfg.TargetRegistry); err != nil {
		return apperrors.WrapInvalidInput(err, "Invalid --target-registry")
	}
	if cfg.SourceRegistry == cfg.TargetRegistry {
		return apperrors.WrapInvalidInput(
			fmt.Errorf("source and target registry are both %q", cfg.SourceRegistry),
			"Source and target registry must differ")
	}
	for _, repo := range cfg.Repositories {
		if err := validator.ValidateRepositoryName(repo); err != nil {
			return apperrors.WrapInvalidInput(err, "Invalid --repository")
		}
	}
	if cfg.ParallelImports < 1 {
		cfg.ParallelImports = 1
	}

	letterFilter, err := filter.ParseLetterFilter(cfg.Letters)
	if err != nil {
		return apperrors.WrapInvalidInput(err, "Invalid --letters")
	}

	patterns := filter.NormalizeIgnorePatterns(cfg.IgnorePatterns)
	if cfg.IgnoreConfig != "" {
		filePatterns, err := filter.LoadIgnorePatternsFromFile(cfg.IgnoreConfig)
		if err != nil {
			return apperrors.WrapInvalidInput(err, "Invalid --ignore-config")
		}
		patterns = append(patterns, filePatterns...)
	}
	ignoreFilter := filter.CompileIgnoreFilter(patterns)

	client := newRegistryClient(cfg, log)
	ctx := context.Background()

	endpoint, err := client.ResolveEndpoint(ctx, cfg.SourceRegistry)
	if err != nil {
		return fmt.Errorf("failed to resolve source registry: %w", err)
	}
	log.Info("Source registry: %s (%s)", cfg.SourceRegistry, endpoint.LoginServer)

	transfers := service.NewTransferService(client, log)

	repositories := cfg.Repositories
	var ignored []string
	if len(repositories) == 0 {
		selection, err := transfers.SelectRepositories(ctx, cfg.SourceRegistry, letterFilter, ignoreFilter)
		if err != nil {
			return err
		}
		log.Info("Selected %d of %d repositories (%d ignored)",
			len(selection.Eligible), selection.Total, len(selection.Ignored))
		repositories = selection.Eligible
		ignored = selection.Ignored
	}
	if len(repositories) == 0 {
		log.Info("No repositories matched the filters. Nothing to do.")
		return nil
	}

	tctx := &service.TransferContext{
		SourceRegistry:     cfg.SourceRegistry,
		TargetRegistry:     cfg.TargetRegistry,
		SourceEndpoint:     endpoint,
		TargetSubscription: cfg.TargetSubscription,
		Ignored:            ignored,
		DryRun:             cfg.DryRun,
		Force:              cfg.Force,
		ForceOnRetry:       cfg.ForceOnRetry,
		Delay:              time.Duration(cfg.DelaySeconds) * time.Second,
	}

	summary, err := transfers.PerformTransfer(ctx, tctx, repositories, cfg.MaxRepositories, cfg.ParallelImports)
	if err != nil {
		return err
	}
	if summary.Failed() {
		return apperrors.ErrTransferIncomplete
	}
	return nil
}

// newRegistryClient builds the registry client selected by the configuration:
// the az CLI adapter by default, the ORAS SDK client with --use-oras.
func newRegistryClient(cfg *types.TransferConfig, log logger.Logger) registry.Client {
	if cfg.UseORAS {
		opts := []oras.Option{oras.WithPlainHTTP(cfg.PlainHTTP)}
		if username := viper.GetString("registry-username"); username != "" {
			password := viper.GetString("registry-password")
			opts = append(opts,
				oras.WithCredentials(registryHost(cfg.SourceRegistry), username, password),
				oras.WithCredentials(registryHost(cfg.TargetRegistry), username, password))
		}
		return oras.NewClient(log, opts...)
	}
	return azcli.NewClient(log,
		azcli.WithSubscription(cfg.SourceRegistry, cfg.SourceSubscription),
		azcli.WithSubscription(cfg.TargetRegistry, cfg.TargetSubscription))
}

// registryHost maps a bare ACR name to its login server.
func registryHost(name string) string {
	if strings.Contains(name, ".") {
		return name
	}
	return name + ".azurecr.io"
}
