// Copyright (c) 2026 HMCTS
// Licensed under the MIT License. See LICENSE file in the project root for details.

package azcli

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/hmcts/acr-transfer/internal/pkg/logger"
	"github.com/hmcts/acr-transfer/internal/registry"
)

// fakeRunner records invocations and replays canned responses keyed on a
// substring of the joined arguments.
type fakeRunner struct {
	calls     [][]string
	responses map[string]string
	errs      map[string]error
}

func newFakeRunner() *fakeRunner {
	return &fakeRunner{
		responses: make(map[string]string),
		errs:      make(map[string]error),
	}
}

func (f *fakeRunner) run(ctx context.Context, args ...string) (string, error) {
	f.calls = append(f.calls, args)
	joined := strings.Join(args, " ")
	for key, err := range f.errs {
		if strings.Contains(joined, key) {
			return "", err
		}
	}
	for key, out := range f.responses {
		if strings.Contains(joined, key) {
			return out, nil
		}
	}
	return "", nil
}

func (f *fakeRunner) start(ctx context.Context, args ...string) (waiter, error) {
	f.calls = append(f.calls, args)
	return fakeWaiter{}, nil
}

type fakeWaiter struct{}

func (fakeWaiter) wait() error { return nil }

func newTestClient(runner commandRunner, opts ...Option) *Client {
	c := NewClient(logger.NewWithLevel(logger.LevelError), opts...)
	c.runner = runner
	return c
}

func TestResolveEndpoint(t *testing.T) {
	runner := newFakeRunner()
	runner.responses["acr show"] = `{"loginServer": "src.azurecr.io", "id": "/subscriptions/s/resourceGroups/rg/providers/Microsoft.ContainerRegistry/registries/src"}`

	client := newTestClient(runner)
	endpoint, err := client.ResolveEndpoint(context.Background(), "src")
	if err != nil {
		t.Fatalf("ResolveEndpoint failed: %v", err)
	}
	if endpoint.LoginServer != "src.azurecr.io" {
		t.Errorf("Expected login server 'src.azurecr.io', got %q", endpoint.LoginServer)
	}
	if !strings.HasSuffix(endpoint.ResourceID, "/registries/src") {
		t.Errorf("Unexpected resource ID %q", endpoint.ResourceID)
	}
}

func TestListRepositories(t *testing.T) {
	runner := newFakeRunner()
	runner.responses["repository list"] = `["app-one", "app-two"]`

	client := newTestClient(runner)
	repos, err := client.ListRepositories(context.Background(), "src")
	if err != nil {
		t.Fatalf("ListRepositories failed: %v", err)
	}
	if len(repos) != 2 || repos[0] != "app-one" || repos[1] != "app-two" {
		t.Errorf("Unexpected repositories: %v", repos)
	}
}

func TestListRepositoriesSubscriptionScoping(t *testing.T) {
	runner := newFakeRunner()
	runner.responses["repository list"] = `[]`

	client := newTestClient(runner, WithSubscription("src", "sub-id"))
	if _, err := client.ListRepositories(context.Background(), "src"); err != nil {
		t.Fatalf("ListRepositories failed: %v", err)
	}

	joined := strings.Join(runner.calls[0], " ")
	if !strings.Contains(joined, "--subscription sub-id") {
		t.Errorf("Expected subscription scoping in args: %s", joined)
	}
}

func TestListTagDigests(t *testing.T) {
	runner := newFakeRunner()
	runner.responses["manifest list-metadata"] = `[
		{"digest": "sha256:aaa", "tags": ["v1", "stable"]},
		{"digest": "sha256:bbb", "tags": ["v2"]},
		{"digest": "sha256:ccc", "tags": null}
	]`

	client := newTestClient(runner)
	tags, err := client.ListTagDigests(context.Background(), "src", "app")
	if err != nil {
		t.Fatalf("ListTagDigests failed: %v", err)
	}
	if len(tags) != 3 {
		t.Fatalf("Expected 3 tags, got %d: %v", len(tags), tags)
	}
	if tags["v1"] != "sha256:aaa" || tags["stable"] != "sha256:aaa" {
		t.Errorf("Re-tagged digest not shared: %v", tags)
	}
	if tags["v2"] != "sha256:bbb" {
		t.Errorf("Expected v2 -> sha256:bbb, got %s", tags["v2"])
	}
}

func TestListTagDigestsRepositoryNotFound(t *testing.T) {
	runner := newFakeRunner()
	runner.errs["manifest list-metadata"] = &CliError{
		Args:     []string{"acr", "manifest", "list-metadata"},
		ExitCode: 1,
		Stderr:   "ERROR: RepositoryNotFound: repository 'app' not found",
	}

	client := newTestClient(runner)
	tags, err := client.ListTagDigests(context.Background(), "target", "app")
	if err != nil {
		t.Fatalf("Expected empty map for missing repository, got error: %v", err)
	}
	if len(tags) != 0 {
		t.Errorf("Expected empty map, got %v", tags)
	}
}

func TestListTagDigestsQueryError(t *testing.T) {
	runner := newFakeRunner()
	runner.errs["manifest list-metadata"] = &CliError{
		Args:     []string{"acr", "manifest", "list-metadata"},
		ExitCode: 1,
		Stderr:   "ERROR: authentication required",
	}

	client := newTestClient(runner)
	_, err := client.ListTagDigests(context.Background(), "target", "app")
	var queryErr *registry.QueryError
	if !errors.As(err, &queryErr) {
		t.Fatalf("Expected QueryError, got %v", err)
	}
	if queryErr.Repository != "app" {
		t.Errorf("Expected repository 'app' in error, got %q", queryErr.Repository)
	}
}

func TestImportArgs(t *testing.T) {
	runner := newFakeRunner()
	client := newTestClient(runner)

	spec := &registry.ImportSpec{
		TargetRegistry: "target",
		SourceRef:      "app:v1",
		TargetRef:      "app:v1",
		SourceID:       "/subscriptions/s/registries/src",
		Subscription:   "target-sub",
		Overwrite:      true,
	}
	if err := client.Import(context.Background(), spec); err != nil {
		t.Fatalf("Import failed: %v", err)
	}

	joined := strings.Join(runner.calls[0], " ")
	for _, want := range []string{
		"acr import",
		"--name target",
		"--source app:v1",
		"--image app:v1",
		"--registry /subscriptions/s/registries/src",
		"--force",
		"--subscription target-sub",
	} {
		if !strings.Contains(joined, want) {
			t.Errorf("Expected %q in import args: %s", want, joined)
		}
	}
}

func TestImportNoForceWithoutOverwrite(t *testing.T) {
	runner := newFakeRunner()
	client := newTestClient(runner)

	spec := &registry.ImportSpec{
		TargetRegistry: "target",
		SourceRef:      "app:v1",
		TargetRef:      "app:v1",
		SourceID:       "src-id",
	}
	if err := client.Import(context.Background(), spec); err != nil {
		t.Fatalf("Import failed: %v", err)
	}

	joined := strings.Join(runner.calls[0], " ")
	if strings.Contains(joined, "--force") {
		t.Errorf("Did not expect --force in args: %s", joined)
	}
}

func TestImportErrorCarriesDiagnostic(t *testing.T) {
	runner := newFakeRunner()
	runner.errs["acr import"] = &CliError{
		Args:     []string{"acr", "import"},
		ExitCode: 1,
		Stderr:   "ERROR: The image 'app:v1' already exists (409 Conflict)",
	}

	client := newTestClient(runner)
	err := client.Import(context.Background(), &registry.ImportSpec{
		TargetRegistry: "target",
		SourceRef:      "app:v1",
		TargetRef:      "app:v1",
		SourceID:       "src-id",
	})

	var importErr *registry.ImportError
	if !errors.As(err, &importErr) {
		t.Fatalf("Expected ImportError, got %v", err)
	}
	if !strings.Contains(importErr.Diagnostic, "409") {
		t.Errorf("Expected diagnostic to carry raw CLI output, got %q", importErr.Diagnostic)
	}
	if importErr.Ref != "app:v1" {
		t.Errorf("Expected ref 'app:v1', got %q", importErr.Ref)
	}
}

func TestSanitizeArgs(t *testing.T) {
	got := sanitizeArgs([]string{"storage", "blob", "list", "--sas-token", "secret"})
	if strings.Contains(got, "secret") {
		t.Errorf("SAS token leaked into log line: %s", got)
	}
	if !strings.Contains(got, "--sas-token ***") {
		t.Errorf("Expected masked token, got: %s", got)
	}
}
