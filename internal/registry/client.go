// Copyright (c) 2026 HMCTS
// Licensed under the MIT License. See LICENSE file in the project root for details.

// Package registry defines the collaborator interfaces the transfer engine
// drives: a registry client for listing and importing artifacts, a run tracker
// for external pipeline runs, and a blob lister for the bulk-import variant.
// Implementations live in the azcli (process-exec) and oras (SDK) subpackages.
package registry

import (
	"context"
	"fmt"

	"github.com/opencontainers/go-digest"
)

// TagDigestMap maps tag names to the content digest each tag points at.
// Tags are unique within a repository; a digest may be shared by several tags.
type TagDigestMap map[string]digest.Digest

// Tags returns the tag names in unspecified order.
func (m TagDigestMap) Tags() []string {
	tags := make([]string, 0, len(m))
	for tag := range m {
		tags = append(tags, tag)
	}
	return tags
}

// Endpoint identifies a resolved registry: its login server host and the
// resource ID used as the import source reference.
type Endpoint struct {
	LoginServer string
	ResourceID  string
}

// ImportSpec describes one artifact import into the target registry.
type ImportSpec struct {
	TargetRegistry string // target registry name
	SourceRef      string // repository:tag relative to the source registry
	TargetRef      string // repository:tag to create in the target registry
	SourceID       string // source registry resource ID or login server
	Subscription   string // target subscription scope, empty for the default
	Overwrite      bool   // replace an existing target tag
}

// Client is the registry collaborator used by the transfer engine. All calls
// block; failures carry enough diagnostic text for conflict classification.
type Client interface {
	// ResolveEndpoint resolves a registry name to its login server and
	// resource ID.
	ResolveEndpoint(ctx context.Context, name string) (*Endpoint, error)

	// ListRepositories lists all repository names in a registry.
	ListRepositories(ctx context.Context, registryName string) ([]string, error)

	// ListTagDigests returns the tag to digest mapping for one repository.
	// A repository missing from the registry yields an empty map, not an
	// error.
	ListTagDigests(ctx context.Context, registryName, repository string) (TagDigestMap, error)

	// Import copies one tagged artifact from the source into the target
	// registry. Failures are returned as *ImportError.
	Import(ctx context.Context, spec *ImportSpec) error
}

// QueryError reports a failed listing call against a registry.
type QueryError struct {
	Registry   string
	Repository string
	Err        error
}

func (e *QueryError) Error() string {
	if e.Repository != "" {
		return fmt.Sprintf("registry %s: repository %s: %v", e.Registry, e.Repository, e.Err)
	}
	return fmt.Sprintf("registry %s: %v", e.Registry, e.Err)
}

func (e *QueryError) Unwrap() error {
	return e.Err
}

// ImportError reports a failed import. Diagnostic carries the raw error text
// the conflict-retry policy scans for conflict markers.
type ImportError struct {
	Ref        string
	Diagnostic string
	Err        error
}

func (e *ImportError) Error() string {
	return fmt.Sprintf("import %s: %s", e.Ref, e.Diagnostic)
}

func (e *ImportError) Unwrap() error {
	return e.Err
}
