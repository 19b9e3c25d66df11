// Copyright (c) 2026 HMCTS
// Licensed under the MIT License. See LICENSE file in the project root for details.

// Package validator validates user-supplied registry and repository names
// before they reach command construction or API calls.
package validator

import (
	"fmt"
	"regexp"
)

var (
	// ACR registry names: 5-50 alphanumerics. Accept shorter here so tests
	// and local registries are not rejected; Azure enforces its own rules.
	registryNamePattern = regexp.MustCompile(`^[a-zA-Z0-9]{1,50}$`)

	// OCI repository names: lowercase path segments separated by slashes.
	repositoryNamePattern = regexp.MustCompile(`^[a-z0-9]+(?:[._-][a-z0-9]+)*(?:/[a-z0-9]+(?:[._-][a-z0-9]+)*)*$`)

	// Registry hosts: a bare registry name or a dotted hostname, with an
	// optional port for local test registries.
	registryHostPattern = regexp.MustCompile(`^[a-zA-Z0-9](?:[a-zA-Z0-9.-]{0,253}[a-zA-Z0-9])?(?::[0-9]{1,5})?$`)
)

// ValidateRegistryName checks that a registry name is plausible and safe to
// pass as a command argument.
func ValidateRegistryName(name string) error {
	if name == "" {
		return fmt.Errorf("registry name is required")
	}
	if !registryNamePattern.MatchString(name) {
		return fmt.Errorf("registry name %q contains invalid characters", name)
	}
	return nil
}

// ValidateRegistryHost checks a registry reference for clients that talk to
// the endpoint directly: either a bare registry name or a dotted host, with
// an optional port.
func ValidateRegistryHost(name string) error {
	if name == "" {
		return fmt.Errorf("registry name is required")
	}
	if !registryHostPattern.MatchString(name) {
		return fmt.Errorf("registry host %q contains invalid characters", name)
	}
	return nil
}

// ValidateRepositoryName checks that a repository name is a valid OCI
// repository path.
func ValidateRepositoryName(name string) error {
	if name == "" {
		return fmt.Errorf("repository name is required")
	}
	if len(name) > 256 {
		return fmt.Errorf("repository name exceeds 256 characters")
	}
	if !repositoryNamePattern.MatchString(name) {
		return fmt.Errorf("repository name %q is not a valid OCI repository path", name)
	}
	return nil
}
