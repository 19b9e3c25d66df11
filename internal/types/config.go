// Copyright (c) 2026 HMCTS
// Licensed under the MIT License. See LICENSE file in the project root for details.

// Package types defines configuration types for the ACR Transfer application.
package types

// Config represents the serve-mode application configuration.
type Config struct {
	Server   ServerConfig   // HTTP server configuration
	Registry RegistryConfig // Default registry configuration
	Task     TaskConfig     // Transfer task execution configuration
	CORS     CORSConfig     // CORS policy configuration
	OIDC     OIDCConfig     // OIDC authentication configuration
}

// ServerConfig defines HTTP server listening configuration.
type ServerConfig struct {
	Host string // Server listening address (e.g., "0.0.0.0", "127.0.0.1")
	Port int    // Server listening port (e.g., 8080)
}

// RegistryConfig defines default registry names used to pre-fill requests.
type RegistryConfig struct {
	DefaultSourceRegistry string // Default source registry name
	DefaultTargetRegistry string // Default target registry name
}

// TaskConfig defines transfer task execution behavior.
type TaskConfig struct {
	Timeout int // Transfer run timeout in seconds (default: 3600)
}

// CORSConfig defines Cross-Origin Resource Sharing policy.
type CORSConfig struct {
	AllowedOrigins []string // Allowed origins (e.g., ["*"], ["https://app.example.com"])
}

// OIDCConfig defines OIDC authentication configuration.
type OIDCConfig struct {
	ClientID     string // OIDC client ID
	ClientSecret string // OIDC client secret
	Issuer       string // OIDC issuer URL
	RedirectURL  string // OIDC redirect URL after authentication
	Enabled      bool   // Whether OIDC authentication is enabled
}

// TransferConfig collects the transfer command's flags.
type TransferConfig struct {
	SourceRegistry     string   // Source registry name
	TargetRegistry     string   // Target registry name
	SourceSubscription string   // Subscription ID of the source registry
	TargetSubscription string   // Subscription ID of the target registry
	Repositories       []string // Explicit repository list (skips discovery when set)
	Letters            string   // Letter filter expression (e.g., "a-c,x")
	IgnorePatterns     []string // Ignore patterns (glob or "re:" regex)
	IgnoreConfig       string   // Path to JSON ignore pattern file
	MaxRepositories    int      // Repository processing cap (0 = unlimited)
	DelaySeconds       int      // Delay between imports
	ParallelImports    int      // Per-repository import workers
	DryRun             bool     // Plan without importing
	Force              bool     // Overwrite every target tag
	ForceOnRetry       bool     // Retry conflicts once with overwrite
	UseORAS            bool     // Use the ORAS client instead of the az CLI
	PlainHTTP          bool     // ORAS: registries without TLS
}

// BatchExportConfig collects the batch-export command's flags.
type BatchExportConfig struct {
	Registry      string // Source registry name
	Subscription  string // Subscription ID of the source registry
	ResourceGroup string // Resource group of the export pipeline
	Pipeline      string // Export pipeline name
	Prefix        string // Pipeline run name prefix
	BatchSize     int    // Artifacts per batch
	MaxConcurrent int    // Global cap on concurrent pipeline runs
	PollSeconds   int    // Slot/completion poll interval
	SkipPolicy    string // "non-failed" or "succeeded"
	IgnoreTags    string // Path to JSON ignore entries file
	DryRun        bool   // Plan without submitting
}

// BatchImportConfig collects the batch-import command's flags.
type BatchImportConfig struct {
	Registry       string // Target registry name
	Subscription   string // Subscription ID of the target registry
	ResourceGroup  string // Resource group of the import pipeline
	Pipeline       string // Import pipeline name
	Prefix         string // Pipeline run name prefix
	MaxConcurrent  int    // Global cap on concurrent pipeline runs
	PollSeconds    int    // Slot/completion poll interval
	SkipPolicy     string // "non-failed" or "succeeded"
	StorageAccount string // Storage account holding exported blobs
	Container      string // Blob container name
	SASToken       string // SAS token for blob listing (optional)
	DryRun         bool   // Plan without submitting
}
