// Copyright (c) 2026 HMCTS
// Licensed under the MIT License. See LICENSE file in the project root for details.

package azcli

import (
	"context"
	"strings"

	"github.com/hmcts/acr-transfer/internal/pkg/logger"
)

// StorageLister implements registry.BlobLister over `az storage blob list`.
type StorageLister struct {
	runner       commandRunner
	logger       logger.Logger
	account      string
	container    string
	sasToken     string
	subscription string
}

// NewStorageLister creates a blob lister for one storage container. The SAS
// token takes precedence over the subscription when both are set.
func NewStorageLister(log logger.Logger, account, container, sasToken, subscription string) *StorageLister {
	return &StorageLister{
		runner:       newExecRunner(),
		logger:       log,
		account:      account,
		container:    container,
		sasToken:     sasToken,
		subscription: subscription,
	}
}

// storageBlob is the subset of blob metadata the lister reads.
type storageBlob struct {
	Name string `json:"name"`
}

// ListBlobs returns the blob names in the container, in listing order.
func (l *StorageLister) ListBlobs(ctx context.Context) ([]string, error) {
	args := []string{
		"storage", "blob", "list",
		"--account-name", l.account,
		"--container-name", l.container,
		"--output", "json",
	}
	switch {
	case l.sasToken != "":
		args = append(args, "--sas-token", l.sasToken)
	case l.subscription != "":
		args = append(args, "--subscription", l.subscription)
	}

	l.logger.Debug("%s", sanitizeArgs(args))
	stdout, err := l.runner.run(ctx, args...)
	if err != nil {
		return nil, err
	}

	var blobs []storageBlob
	if strings.TrimSpace(stdout) != "" {
		if err := unmarshalJSON(strings.TrimSpace(stdout), &blobs); err != nil {
			return nil, err
		}
	}

	names := make([]string, 0, len(blobs))
	for _, blob := range blobs {
		names = append(names, blob.Name)
	}
	return names, nil
}
