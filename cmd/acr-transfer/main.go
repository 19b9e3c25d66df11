// Copyright (c) 2026 HMCTS
// Licensed under the MIT License. See LICENSE file in the project root for details.

// Package main is the entry point for the acr-transfer CLI.
// It wires the transfer, batch-export, batch-import, and serve commands.
package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	apperrors "github.com/hmcts/acr-transfer/internal/pkg/errors"
	"github.com/hmcts/acr-transfer/internal/pkg/logger"
)

// rootCmd is the root command for the CLI application.
var rootCmd = &cobra.Command{
	Use:   "acr-transfer",
	Short: "ACR Transfer - container registry migration tool",
	Long: `A tool for migrating repositories and tags between Azure Container
Registries: direct transfers with digest comparison, batched pipeline
export/import for air-gapped moves, and an optional HTTP task API.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// init initializes global flags and environment variable bindings.
// Environment variables are supported with ACR_ prefix and underscores
// replacing hyphens. For example: ACR_SOURCE_REGISTRY for --source-registry.
func init() {
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "Enable debug logging")

	viper.SetEnvPrefix("ACR")
	viper.AutomaticEnv()
	// Replace hyphens with underscores in environment variable names
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))

	rootCmd.AddCommand(newTransferCmd())
	rootCmd.AddCommand(newBatchExportCmd())
	rootCmd.AddCommand(newBatchImportCmd())
	rootCmd.AddCommand(newServeCmd())
}

// newLogger creates the process logger honoring the --verbose flag.
func newLogger() logger.Logger {
	if viper.GetBool("verbose") {
		return logger.NewWithLevel(logger.LevelDebug)
	}
	return logger.New()
}

// bindFlags binds the command's flags into viper so every flag can also be
// set through the environment. Called per command at execution time to keep
// same-named flags on sibling commands from colliding.
func bindFlags(cmd *cobra.Command) error {
	if err := viper.BindPFlags(cmd.Flags()); err != nil {
		return err
	}
	return viper.BindPFlags(cmd.Root().PersistentFlags())
}

// main runs the CLI and maps the resulting error to the process exit code:
// 0 on success or nothing to do, 2 on configuration/validation failures,
// 1 when any transfer unit or pipeline run failed.
func main() {
	err := rootCmd.Execute()
	if err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
	}
	os.Exit(apperrors.ExitCode(err))
}
