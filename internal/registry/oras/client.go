// Copyright (c) 2026 HMCTS
// Licensed under the MIT License. See LICENSE file in the project root for details.

// Package oras implements the registry client over the OCI distribution API
// using ORAS. It is the SDK alternative to the az CLI adapter: listing uses
// the catalog and tag endpoints, digests come from manifest resolution, and
// imports are registry-to-registry copies.
package oras

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"strings"

	oraslib "oras.land/oras-go/v2"
	"oras.land/oras-go/v2/errdef"
	"oras.land/oras-go/v2/registry/remote"
	"oras.land/oras-go/v2/registry/remote/auth"
	"oras.land/oras-go/v2/registry/remote/errcode"
	"oras.land/oras-go/v2/registry/remote/retry"

	"github.com/hmcts/acr-transfer/internal/pkg/logger"
	"github.com/hmcts/acr-transfer/internal/registry"
)

// Client implements registry.Client over the OCI distribution API.
type Client struct {
	logger     logger.Logger
	plainHTTP  bool
	userAgent  string
	authClient *auth.Client
	creds      map[string]auth.Credential
}

// Option configures a Client.
type Option func(*Client)

// WithPlainHTTP uses HTTP instead of HTTPS, for local test registries.
func WithPlainHTTP(plainHTTP bool) Option {
	return func(c *Client) {
		c.plainHTTP = plainHTTP
	}
}

// WithCredentials registers a username/password for one registry host.
func WithCredentials(host, username, password string) Option {
	return func(c *Client) {
		c.creds[host] = auth.Credential{Username: username, Password: password}
	}
}

// NewClient creates an OCI registry client with a shared auth client so
// tokens are reused across requests.
func NewClient(log logger.Logger, opts ...Option) *Client {
	c := &Client{
		logger:    log,
		userAgent: "acr-transfer/1.0",
		creds:     make(map[string]auth.Credential),
	}
	for _, opt := range opts {
		opt(c)
	}

	c.authClient = &auth.Client{
		Client: retry.DefaultClient,
		Cache:  auth.NewCache(),
		Credential: func(ctx context.Context, hostport string) (auth.Credential, error) {
			if cred, ok := c.creds[hostport]; ok {
				return cred, nil
			}
			return auth.EmptyCredential, nil
		},
		Header: http.Header{
			"User-Agent": []string{c.userAgent},
		},
	}
	return c
}

// hostOf maps a registry name to its login server host. Bare names follow the
// Azure Container Registry convention; names containing a dot are used as-is.
func hostOf(name string) string {
	if strings.Contains(name, ".") {
		return name
	}
	return name + ".azurecr.io"
}

// ResolveEndpoint resolves a registry name to its login server. The OCI
// distribution API has no resource IDs, so the login server stands in for
// both fields.
func (c *Client) ResolveEndpoint(ctx context.Context, name string) (*registry.Endpoint, error) {
	host := hostOf(name)
	reg, err := c.remoteRegistry(host)
	if err != nil {
		return nil, &registry.QueryError{Registry: name, Err: err}
	}
	if err := reg.Ping(ctx); err != nil {
		return nil, &registry.QueryError{Registry: name, Err: fmt.Errorf("ping %s: %w", host, err)}
	}
	return &registry.Endpoint{LoginServer: host, ResourceID: host}, nil
}

func (c *Client) remoteRegistry(host string) (*remote.Registry, error) {
	reg, err := remote.NewRegistry(host)
	if err != nil {
		return nil, fmt.Errorf("parse registry %q: %w", host, err)
	}
	reg.PlainHTTP = c.plainHTTP
	reg.Client = c.authClient
	return reg, nil
}

func (c *Client) remoteRepository(host, repository string) (*remote.Repository, error) {
	repo, err := remote.NewRepository(host + "/" + repository)
	if err != nil {
		return nil, fmt.Errorf("parse reference %q: %w", host+"/"+repository, err)
	}
	repo.PlainHTTP = c.plainHTTP
	repo.Client = c.authClient
	return repo, nil
}

// ListRepositories lists all repository names via the catalog endpoint.
func (c *Client) ListRepositories(ctx context.Context, registryName string) ([]string, error) {
	reg, err := c.remoteRegistry(hostOf(registryName))
	if err != nil {
		return nil, &registry.QueryError{Registry: registryName, Err: err}
	}

	var repos []string
	err = reg.Repositories(ctx, "", func(page []string) error {
		repos = append(repos, page...)
		return nil
	})
	if err != nil {
		return nil, &registry.QueryError{Registry: registryName, Err: err}
	}
	sort.Strings(repos)
	return repos, nil
}

// ListTagDigests lists tags and resolves each to its manifest digest. An
// unknown repository yields an empty map.
func (c *Client) ListTagDigests(ctx context.Context, registryName, repository string) (registry.TagDigestMap, error) {
	repo, err := c.remoteRepository(hostOf(registryName), repository)
	if err != nil {
		return nil, &registry.QueryError{Registry: registryName, Repository: repository, Err: err}
	}

	var tags []string
	err = repo.Tags(ctx, "", func(page []string) error {
		tags = append(tags, page...)
		return nil
	})
	if err != nil {
		if isNotFound(err) {
			return registry.TagDigestMap{}, nil
		}
		return nil, &registry.QueryError{Registry: registryName, Repository: repository, Err: err}
	}

	digests := make(registry.TagDigestMap, len(tags))
	for _, tag := range tags {
		desc, err := repo.Resolve(ctx, tag)
		if err != nil {
			if isNotFound(err) {
				// Tag list and manifest store can disagree mid-cleanup;
				// a tag without a manifest is not transferable.
				c.logger.Warn("Tag %s/%s:%s has no resolvable manifest, skipping", registryName, repository, tag)
				continue
			}
			return nil, &registry.QueryError{Registry: registryName, Repository: repository, Err: err}
		}
		digests[tag] = desc.Digest
	}
	return digests, nil
}

// Import copies one tagged artifact from the source registry into the target.
// Without Overwrite, an existing target tag fails with a conflict diagnostic
// so the retry policy can classify it the same way as the CLI adapter's 409s.
func (c *Client) Import(ctx context.Context, spec *registry.ImportSpec) error {
	srcRepoName, srcTag, err := splitRef(spec.SourceRef)
	if err != nil {
		return &registry.ImportError{Ref: spec.SourceRef, Diagnostic: err.Error(), Err: err}
	}
	dstRepoName, dstTag, err := splitRef(spec.TargetRef)
	if err != nil {
		return &registry.ImportError{Ref: spec.TargetRef, Diagnostic: err.Error(), Err: err}
	}

	src, err := c.remoteRepository(spec.SourceID, srcRepoName)
	if err != nil {
		return &registry.ImportError{Ref: spec.SourceRef, Diagnostic: err.Error(), Err: err}
	}
	dst, err := c.remoteRepository(hostOf(spec.TargetRegistry), dstRepoName)
	if err != nil {
		return &registry.ImportError{Ref: spec.TargetRef, Diagnostic: err.Error(), Err: err}
	}

	if !spec.Overwrite {
		if _, err := dst.Resolve(ctx, dstTag); err == nil {
			conflict := fmt.Errorf("tag already exists in target repository")
			return &registry.ImportError{Ref: spec.TargetRef, Diagnostic: conflict.Error(), Err: conflict}
		} else if !isNotFound(err) {
			return &registry.ImportError{Ref: spec.TargetRef, Diagnostic: err.Error(), Err: err}
		}
	}

	if _, err := oraslib.Copy(ctx, src, srcTag, dst, dstTag, oraslib.DefaultCopyOptions); err != nil {
		return &registry.ImportError{Ref: spec.TargetRef, Diagnostic: err.Error(), Err: err}
	}
	return nil
}

// splitRef splits "repository:tag" on the last colon.
func splitRef(ref string) (repository, tag string, err error) {
	idx := strings.LastIndex(ref, ":")
	if idx <= 0 || idx == len(ref)-1 {
		return "", "", fmt.Errorf("reference %q is not repository:tag", ref)
	}
	return ref[:idx], ref[idx+1:], nil
}

// isNotFound classifies 404-family errors from the distribution API.
func isNotFound(err error) bool {
	if errors.Is(err, errdef.ErrNotFound) {
		return true
	}
	var respErr *errcode.ErrorResponse
	if errors.As(err, &respErr) {
		return respErr.StatusCode == http.StatusNotFound
	}
	return false
}
