// Copyright (c) 2026 HMCTS
// Licensed under the MIT License. See LICENSE file in the project root for details.

package registry

import (
	"context"
	"strings"
)

// RunState is the provisioning state an external pipeline run reports.
type RunState string

const (
	RunSucceeded RunState = "Succeeded"
	RunFailed    RunState = "Failed"
	RunCanceled  RunState = "Canceled"
	RunCreating  RunState = "Creating"
	RunRunning   RunState = "Running"
	RunPending   RunState = "Pending"
	RunUpdating  RunState = "Updating"
	RunUnknown   RunState = ""
)

// Terminal reports whether the run has finished, successfully or not.
func (s RunState) Terminal() bool {
	switch s.normalize() {
	case RunSucceeded, RunFailed, RunCanceled:
		return true
	}
	return false
}

// Failed reports whether the run ended without success.
func (s RunState) Failed() bool {
	switch s.normalize() {
	case RunFailed, RunCanceled:
		return true
	}
	return false
}

// normalize maps the service's case variations onto the canonical constants.
func (s RunState) normalize() RunState {
	switch strings.ToLower(string(s)) {
	case "succeeded":
		return RunSucceeded
	case "failed", "timedout":
		return RunFailed
	case "canceled", "cancelled":
		return RunCanceled
	case "creating":
		return RunCreating
	case "running":
		return RunRunning
	case "pending":
		return RunPending
	case "updating":
		return RunUpdating
	}
	return RunUnknown
}

// ExportRunSpec describes one export pipeline run covering a batch of
// artifacts written to a single storage blob.
type ExportRunSpec struct {
	Name      string
	Artifacts []string // repository:tag references
	Blob      string   // storage blob the batch is exported to
}

// ImportRunSpec describes one import pipeline run consuming a storage blob.
type ImportRunSpec struct {
	Name string
	Blob string
}

// RunHandle tracks an asynchronously submitted pipeline run. Wait blocks
// until the submission command completes; it does not wait for the pipeline
// run itself to finish.
type RunHandle interface {
	Name() string
	Wait() error
}

// RunTracker is the pipeline-run collaborator for the bulk-transfer variant.
type RunTracker interface {
	// ListRuns returns the provisioning state of every run whose name starts
	// with prefix.
	ListRuns(ctx context.Context, prefix string) (map[string]RunState, error)

	// CreateExportRun submits an export pipeline run without waiting for it.
	CreateExportRun(ctx context.Context, spec *ExportRunSpec) (RunHandle, error)

	// CreateImportRun submits an import pipeline run without waiting for it.
	CreateImportRun(ctx context.Context, spec *ImportRunSpec) (RunHandle, error)

	// GetRunState fetches the current provisioning state of one run.
	GetRunState(ctx context.Context, name string) (RunState, error)
}

// BlobLister lists blob names in a storage container, used by the
// bulk-import variant to enumerate exported batches.
type BlobLister interface {
	ListBlobs(ctx context.Context) ([]string, error)
}
