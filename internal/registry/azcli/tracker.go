// Copyright (c) 2026 HMCTS
// Licensed under the MIT License. See LICENSE file in the project root for details.

package azcli

import (
	"context"
	"strings"

	"github.com/hmcts/acr-transfer/internal/pkg/logger"
	"github.com/hmcts/acr-transfer/internal/registry"
)

// Tracker implements registry.RunTracker over `az acr pipeline-run`.
type Tracker struct {
	runner        commandRunner
	logger        logger.Logger
	resourceGroup string
	registryName  string
	pipeline      string
	subscription  string
}

// NewTracker creates a pipeline-run tracker for one registry and pipeline.
func NewTracker(log logger.Logger, resourceGroup, registryName, pipeline, subscription string) *Tracker {
	return &Tracker{
		runner:        newExecRunner(),
		logger:        log,
		resourceGroup: resourceGroup,
		registryName:  registryName,
		pipeline:      pipeline,
		subscription:  subscription,
	}
}

// pipelineRun is the subset of pipeline-run metadata the tracker reads.
type pipelineRun struct {
	Name              string `json:"name"`
	ProvisioningState string `json:"provisioningState"`
}

func (t *Tracker) scoped(args []string) []string {
	if t.subscription != "" {
		args = append(args, "--subscription", t.subscription)
	}
	return args
}

func (t *Tracker) runJSON(ctx context.Context, out interface{}, args ...string) error {
	t.logger.Debug("%s", sanitizeArgs(args))
	stdout, err := t.runner.run(ctx, args...)
	if err != nil {
		return err
	}
	stdout = strings.TrimSpace(stdout)
	if stdout == "" {
		return nil
	}
	return unmarshalJSON(stdout, out)
}

// ListRuns returns the provisioning state of every pipeline run whose name
// starts with prefix.
func (t *Tracker) ListRuns(ctx context.Context, prefix string) (map[string]registry.RunState, error) {
	args := t.scoped([]string{
		"acr", "pipeline-run", "list",
		"--resource-group", t.resourceGroup,
		"--registry", t.registryName,
		"--output", "json",
	})

	var runs []pipelineRun
	if err := t.runJSON(ctx, &runs, args...); err != nil {
		return nil, &registry.QueryError{Registry: t.registryName, Err: err}
	}

	states := make(map[string]registry.RunState)
	for _, run := range runs {
		if strings.HasPrefix(run.Name, prefix) {
			states[run.Name] = registry.RunState(run.ProvisioningState)
		}
	}
	return states, nil
}

// CreateExportRun submits an export pipeline run without waiting for it.
func (t *Tracker) CreateExportRun(ctx context.Context, spec *registry.ExportRunSpec) (registry.RunHandle, error) {
	args := t.scoped([]string{
		"acr", "pipeline-run", "create",
		"--resource-group", t.resourceGroup,
		"--registry", t.registryName,
		"--pipeline", t.pipeline,
		"--name", spec.Name,
		"--pipeline-type", "export",
		"--storage-blob", spec.Blob,
		"--output", "json",
	})
	args = append(args, "--artifacts")
	args = append(args, spec.Artifacts...)

	return t.submit(ctx, spec.Name, args)
}

// CreateImportRun submits an import pipeline run without waiting for it.
func (t *Tracker) CreateImportRun(ctx context.Context, spec *registry.ImportRunSpec) (registry.RunHandle, error) {
	args := t.scoped([]string{
		"acr", "pipeline-run", "create",
		"--resource-group", t.resourceGroup,
		"--registry", t.registryName,
		"--pipeline", t.pipeline,
		"--name", spec.Name,
		"--pipeline-type", "import",
		"--storage-blob", spec.Blob,
		"--output", "json",
	})

	return t.submit(ctx, spec.Name, args)
}

func (t *Tracker) submit(ctx context.Context, name string, args []string) (registry.RunHandle, error) {
	t.logger.Debug("%s", sanitizeArgs(args))
	p, err := t.runner.start(ctx, args...)
	if err != nil {
		return nil, err
	}
	return &runHandle{name: name, process: p}, nil
}

// GetRunState fetches the current provisioning state of one pipeline run.
func (t *Tracker) GetRunState(ctx context.Context, name string) (registry.RunState, error) {
	args := t.scoped([]string{
		"acr", "pipeline-run", "show",
		"--resource-group", t.resourceGroup,
		"--registry", t.registryName,
		"--name", name,
		"--output", "json",
	})

	var run pipelineRun
	if err := t.runJSON(ctx, &run, args...); err != nil {
		return registry.RunUnknown, &registry.QueryError{Registry: t.registryName, Err: err}
	}
	return registry.RunState(run.ProvisioningState), nil
}

// runHandle tracks one asynchronously submitted pipeline run.
type runHandle struct {
	name    string
	process waiter
}

func (h *runHandle) Name() string {
	return h.name
}

func (h *runHandle) Wait() error {
	return h.process.wait()
}
