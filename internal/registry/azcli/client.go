// Copyright (c) 2026 HMCTS
// Licensed under the MIT License. See LICENSE file in the project root for details.

package azcli

import (
	"context"
	"errors"
	"strings"

	"github.com/opencontainers/go-digest"

	"github.com/hmcts/acr-transfer/internal/pkg/logger"
	"github.com/hmcts/acr-transfer/internal/registry"
)

// Client implements registry.Client over the az CLI.
type Client struct {
	runner        commandRunner
	logger        logger.Logger
	subscriptions map[string]string // registry name -> subscription scope
}

// Option configures a Client.
type Option func(*Client)

// WithSubscription scopes az calls for one registry to a subscription. This
// replaces the CLI's ambient "az account set" state with explicit per-call
// scoping.
func WithSubscription(registryName, subscription string) Option {
	return func(c *Client) {
		if subscription != "" {
			c.subscriptions[registryName] = subscription
		}
	}
}

// NewClient creates an az CLI registry client.
func NewClient(log logger.Logger, opts ...Option) *Client {
	c := &Client{
		runner:        newExecRunner(),
		logger:        log,
		subscriptions: make(map[string]string),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// scoped appends the subscription flag for the registry when one is mapped.
func (c *Client) scoped(registryName string, args []string) []string {
	if sub, ok := c.subscriptions[registryName]; ok {
		args = append(args, "--subscription", sub)
	}
	return args
}

func (c *Client) runJSON(ctx context.Context, out interface{}, args ...string) error {
	c.logger.Debug("%s", sanitizeArgs(args))
	stdout, err := c.runner.run(ctx, args...)
	if err != nil {
		return err
	}
	stdout = strings.TrimSpace(stdout)
	if stdout == "" {
		return nil
	}
	return unmarshalJSON(stdout, out)
}

// acrShowResponse is the subset of `az acr show` output the tool needs.
type acrShowResponse struct {
	LoginServer string `json:"loginServer"`
	ID          string `json:"id"`
}

// ResolveEndpoint resolves a registry name to its login server and resource ID.
func (c *Client) ResolveEndpoint(ctx context.Context, name string) (*registry.Endpoint, error) {
	args := c.scoped(name, []string{"acr", "show", "--name", name, "--output", "json"})

	var resp acrShowResponse
	if err := c.runJSON(ctx, &resp, args...); err != nil {
		return nil, &registry.QueryError{Registry: name, Err: err}
	}
	if resp.LoginServer == "" || resp.ID == "" {
		return nil, &registry.QueryError{Registry: name, Err: errors.New("az acr show returned no login server or resource ID")}
	}
	return &registry.Endpoint{LoginServer: resp.LoginServer, ResourceID: resp.ID}, nil
}

// ListRepositories lists all repository names in a registry.
func (c *Client) ListRepositories(ctx context.Context, registryName string) ([]string, error) {
	args := c.scoped(registryName, []string{"acr", "repository", "list", "--name", registryName, "--output", "json"})

	var repos []string
	if err := c.runJSON(ctx, &repos, args...); err != nil {
		return nil, &registry.QueryError{Registry: registryName, Err: err}
	}
	return repos, nil
}

// manifestMetadata is one entry of `az acr manifest list-metadata` output.
type manifestMetadata struct {
	Digest string   `json:"digest"`
	Tags   []string `json:"tags"`
}

// ListTagDigests returns the tag to digest mapping for one repository. A
// repository the registry does not know yields an empty map.
func (c *Client) ListTagDigests(ctx context.Context, registryName, repository string) (registry.TagDigestMap, error) {
	args := c.scoped(registryName, []string{
		"acr", "manifest", "list-metadata",
		"--registry", registryName,
		"--name", repository,
		"--output", "json",
	})

	var manifests []manifestMetadata
	if err := c.runJSON(ctx, &manifests, args...); err != nil {
		if isRepositoryNotFound(err) {
			return registry.TagDigestMap{}, nil
		}
		return nil, &registry.QueryError{Registry: registryName, Repository: repository, Err: err}
	}

	tags := make(registry.TagDigestMap)
	for _, m := range manifests {
		for _, tag := range m.Tags {
			tags[tag] = digest.Digest(m.Digest)
		}
	}
	return tags, nil
}

// Import copies one tagged artifact into the target registry via
// `az acr import`.
func (c *Client) Import(ctx context.Context, spec *registry.ImportSpec) error {
	args := []string{
		"acr", "import",
		"--name", spec.TargetRegistry,
		"--source", spec.SourceRef,
		"--image", spec.TargetRef,
		"--registry", spec.SourceID,
	}
	if spec.Overwrite {
		args = append(args, "--force")
	}
	if spec.Subscription != "" {
		args = append(args, "--subscription", spec.Subscription)
	}

	c.logger.Debug("%s", sanitizeArgs(args))
	if _, err := c.runner.run(ctx, args...); err != nil {
		return &registry.ImportError{
			Ref:        spec.TargetRef,
			Diagnostic: diagnosticOf(err),
			Err:        err,
		}
	}
	return nil
}

// diagnosticOf extracts the raw CLI output for error classification.
func diagnosticOf(err error) string {
	var cliErr *CliError
	if errors.As(err, &cliErr) {
		return cliErr.Diagnostic()
	}
	return err.Error()
}

// isRepositoryNotFound classifies listing failures caused by the repository
// not existing yet in the target registry.
func isRepositoryNotFound(err error) bool {
	var cliErr *CliError
	if !errors.As(err, &cliErr) {
		return false
	}
	diag := strings.ToLower(cliErr.Diagnostic())
	return strings.Contains(diag, "repositorynotfound") || strings.Contains(diag, "not found")
}
