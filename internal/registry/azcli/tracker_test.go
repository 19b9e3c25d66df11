// Copyright (c) 2026 HMCTS
// Licensed under the MIT License. See LICENSE file in the project root for details.

package azcli

import (
	"context"
	"strings"
	"testing"

	"github.com/hmcts/acr-transfer/internal/pkg/logger"
	"github.com/hmcts/acr-transfer/internal/registry"
)

func newTestTracker(runner commandRunner) *Tracker {
	t := NewTracker(logger.NewWithLevel(logger.LevelError), "rg", "src", "exportpipeline", "")
	t.runner = runner
	return t
}

func TestListRunsFiltersByPrefix(t *testing.T) {
	runner := newFakeRunner()
	runner.responses["pipeline-run list"] = `[
		{"name": "export-batch001", "provisioningState": "Succeeded"},
		{"name": "export-batch002", "provisioningState": "Running"},
		{"name": "other-run", "provisioningState": "Failed"}
	]`

	tracker := newTestTracker(runner)
	runs, err := tracker.ListRuns(context.Background(), "export-batch")
	if err != nil {
		t.Fatalf("ListRuns failed: %v", err)
	}
	if len(runs) != 2 {
		t.Fatalf("Expected 2 runs, got %d: %v", len(runs), runs)
	}
	if runs["export-batch001"] != registry.RunSucceeded {
		t.Errorf("Expected Succeeded, got %s", runs["export-batch001"])
	}
	if runs["export-batch002"] != registry.RunRunning {
		t.Errorf("Expected Running, got %s", runs["export-batch002"])
	}
}

func TestCreateExportRunArgs(t *testing.T) {
	runner := newFakeRunner()
	tracker := newTestTracker(runner)

	handle, err := tracker.CreateExportRun(context.Background(), &registry.ExportRunSpec{
		Name:      "export-batch003",
		Artifacts: []string{"app:v1", "app:v2"},
		Blob:      "export-batch003",
	})
	if err != nil {
		t.Fatalf("CreateExportRun failed: %v", err)
	}
	if handle.Name() != "export-batch003" {
		t.Errorf("Expected handle name 'export-batch003', got %q", handle.Name())
	}

	joined := strings.Join(runner.calls[0], " ")
	for _, want := range []string{
		"pipeline-run create",
		"--pipeline-type export",
		"--storage-blob export-batch003",
		"--artifacts app:v1 app:v2",
	} {
		if !strings.Contains(joined, want) {
			t.Errorf("Expected %q in args: %s", want, joined)
		}
	}
}

func TestGetRunState(t *testing.T) {
	runner := newFakeRunner()
	runner.responses["pipeline-run show"] = `{"name": "import-batch001", "provisioningState": "Pending"}`

	tracker := newTestTracker(runner)
	state, err := tracker.GetRunState(context.Background(), "import-batch001")
	if err != nil {
		t.Fatalf("GetRunState failed: %v", err)
	}
	if state != registry.RunPending {
		t.Errorf("Expected Pending, got %s", state)
	}
}

func TestRunStateClassification(t *testing.T) {
	tests := []struct {
		state    registry.RunState
		terminal bool
		failed   bool
	}{
		{registry.RunSucceeded, true, false},
		{registry.RunFailed, true, true},
		{registry.RunCanceled, true, true},
		{registry.RunState("cancelled"), true, true},
		{registry.RunState("TimedOut"), true, true},
		{registry.RunRunning, false, false},
		{registry.RunCreating, false, false},
		{registry.RunPending, false, false},
		{registry.RunUpdating, false, false},
		{registry.RunUnknown, false, false},
	}

	for _, tt := range tests {
		if got := tt.state.Terminal(); got != tt.terminal {
			t.Errorf("%q.Terminal() = %v, want %v", tt.state, got, tt.terminal)
		}
		if got := tt.state.Failed(); got != tt.failed {
			t.Errorf("%q.Failed() = %v, want %v", tt.state, got, tt.failed)
		}
	}
}
