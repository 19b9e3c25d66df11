// Copyright (c) 2026 HMCTS
// Licensed under the MIT License. See LICENSE file in the project root for details.

// Package azcli implements the registry, run-tracker, and blob-lister
// collaborators by shelling out to the Azure CLI.
package azcli

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
	"strings"
)

// CliError reports a failed az invocation with its captured output.
type CliError struct {
	Args     []string
	ExitCode int
	Stdout   string
	Stderr   string
}

func (e *CliError) Error() string {
	return fmt.Sprintf("az %s failed with exit code %d: %s",
		strings.Join(e.Args, " "), e.ExitCode, strings.TrimSpace(e.Stderr))
}

// Diagnostic returns the combined output used for error classification.
func (e *CliError) Diagnostic() string {
	return strings.TrimSpace(e.Stdout + "\n" + e.Stderr)
}

// commandRunner executes one az command and returns its stdout. Tests
// substitute a fake; production code uses execRunner.
type commandRunner interface {
	run(ctx context.Context, args ...string) (string, error)
	start(ctx context.Context, args ...string) (waiter, error)
}

// waiter collects the completion of an asynchronously started command.
type waiter interface {
	wait() error
}

// unmarshalJSON decodes az output into out.
func unmarshalJSON(data string, out interface{}) error {
	if err := json.Unmarshal([]byte(data), out); err != nil {
		return fmt.Errorf("parse az output: %w", err)
	}
	return nil
}

// execRunner invokes the real az binary.
type execRunner struct {
	azPath string
}

func newExecRunner() *execRunner {
	return &execRunner{azPath: "az"}
}

func (r *execRunner) run(ctx context.Context, args ...string) (string, error) {
	cmd := exec.CommandContext(ctx, r.azPath, args...)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return "", &CliError{
			Args:     args,
			ExitCode: cmd.ProcessState.ExitCode(),
			Stdout:   stdout.String(),
			Stderr:   stderr.String(),
		}
	}
	return stdout.String(), nil
}

// start launches an az command without waiting for it, used for asynchronous
// pipeline-run submissions.
func (r *execRunner) start(ctx context.Context, args ...string) (waiter, error) {
	cmd := exec.CommandContext(ctx, r.azPath, args...)

	p := &process{cmd: cmd, args: args}
	cmd.Stdout = &p.stdout
	cmd.Stderr = &p.stderr

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("start az %s: %w", strings.Join(args, " "), err)
	}
	return p, nil
}

// process is a started az command whose completion is collected later.
type process struct {
	cmd    *exec.Cmd
	args   []string
	stdout bytes.Buffer
	stderr bytes.Buffer
}

// wait blocks until the command exits.
func (p *process) wait() error {
	if err := p.cmd.Wait(); err != nil {
		return &CliError{
			Args:     p.args,
			ExitCode: p.cmd.ProcessState.ExitCode(),
			Stdout:   p.stdout.String(),
			Stderr:   p.stderr.String(),
		}
	}
	return nil
}

// sanitizeArgs masks SAS tokens in command arguments for safe logging.
func sanitizeArgs(args []string) string {
	sanitized := make([]string, len(args))
	skipNext := false
	for i, arg := range args {
		switch {
		case skipNext:
			sanitized[i] = "***"
			skipNext = false
		case arg == "--sas-token":
			sanitized[i] = arg
			skipNext = true
		case strings.HasPrefix(arg, "--sas-token="):
			sanitized[i] = "--sas-token=***"
		default:
			sanitized[i] = arg
		}
	}
	return "az " + strings.Join(sanitized, " ")
}
