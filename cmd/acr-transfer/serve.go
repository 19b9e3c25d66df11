// Copyright (c) 2026 HMCTS
// Licensed under the MIT License. See LICENSE file in the project root for details.

package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/hmcts/acr-transfer/internal/handler"
	"github.com/hmcts/acr-transfer/internal/registry/azcli"
	"github.com/hmcts/acr-transfer/internal/repository"
	"github.com/hmcts/acr-transfer/internal/router"
	"github.com/hmcts/acr-transfer/internal/service"
	"github.com/hmcts/acr-transfer/internal/types"
)

// newServeCmd creates the serve command: the HTTP task API.
func newServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP task API",
		Long: `Starts an HTTP server exposing transfer runs as asynchronous tasks with
live log streaming (SSE), repository inspection, and optional OIDC login.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := bindFlags(cmd); err != nil {
				return err
			}
			return runServe()
		},
	}

	cmd.Flags().String("host", "0.0.0.0", "Server host")
	cmd.Flags().IntP("port", "p", 8080, "Server port")
	cmd.Flags().IntP("timeout", "t", 3600, "Transfer run timeout in seconds")
	cmd.Flags().String("default-source-registry", "", "Default source registry")
	cmd.Flags().String("default-target-registry", "", "Default target registry")
	cmd.Flags().StringSlice("cors-allowed-origins", []string{"*"}, "CORS allowed origins")
	cmd.Flags().String("oidc-client-id", "", "OIDC client ID")
	cmd.Flags().String("oidc-client-secret", "", "OIDC client secret")
	cmd.Flags().String("oidc-issuer", "", "OIDC issuer URL")
	cmd.Flags().String("oidc-redirect-url", "", "OIDC redirect URL")

	return cmd
}

// runServe wires the task API: in-memory task storage, the az CLI registry
// client, the task and session services, handlers, and routing.
func runServe() error {
	oidcClientID := viper.GetString("oidc-client-id")
	oidcClientSecret := viper.GetString("oidc-client-secret")
	oidcIssuer := viper.GetString("oidc-issuer")

	cfg := &types.Config{
		Server: types.ServerConfig{
			Host: viper.GetString("host"),
			Port: viper.GetInt("port"),
		},
		Registry: types.RegistryConfig{
			DefaultSourceRegistry: viper.GetString("default-source-registry"),
			DefaultTargetRegistry: viper.GetString("default-target-registry"),
		},
		Task: types.TaskConfig{
			Timeout: viper.GetInt("timeout"),
		},
		CORS: types.CORSConfig{
			AllowedOrigins: viper.GetStringSlice("cors-allowed-origins"),
		},
		OIDC: types.OIDCConfig{
			ClientID:     oidcClientID,
			ClientSecret: oidcClientSecret,
			Issuer:       oidcIssuer,
			RedirectURL:  viper.GetString("oidc-redirect-url"),
			Enabled:      oidcClientID != "" && oidcClientSecret != "" && oidcIssuer != "",
		},
	}

	log := newLogger()

	if cfg.OIDC.Enabled {
		log.Info("OIDC authentication enabled")
		log.Info("  Issuer: %s", cfg.OIDC.Issuer)
		log.Info("  Client ID: %s", cfg.OIDC.ClientID)
		log.Info("  Redirect URL: %s", cfg.OIDC.RedirectURL)
		log.Info("  Client Secret: %s", maskSecret(cfg.OIDC.ClientSecret))
	} else {
		log.Info("OIDC authentication disabled")
	}

	taskRepo := repository.NewInMemoryTaskRepository()
	client := azcli.NewClient(log)

	taskService := service.NewTaskService(taskRepo, client, log, cfg.Task.Timeout)
	sessionService := service.NewSessionService(7 * 24 * time.Hour) // 7 days session TTL

	transferHandler := handler.NewTransferHandler(taskService, cfg, log)
	inspectHandler := handler.NewInspectHandler(client, log)

	authHandler, err := handler.NewAuthHandler(&cfg.OIDC, sessionService, log)
	if err != nil {
		return fmt.Errorf("failed to initialize auth handler: %w", err)
	}

	r := router.New(transferHandler, inspectHandler, authHandler, sessionService)
	engine := r.Setup(cfg)

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	log.Info("Server starting on %s (task timeout: %ds)", addr, cfg.Task.Timeout)
	return engine.Run(addr)
}

// maskSecret masks a secret string for logging.
// Shows first 4 characters if length > 8, otherwise shows masked string.
func maskSecret(secret string) string {
	if secret == "" {
		return "(empty)"
	}
	if len(secret) <= 8 {
		return "***"
	}
	return secret[:4] + "***"
}
