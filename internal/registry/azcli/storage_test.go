// Copyright (c) 2026 HMCTS
// Licensed under the MIT License. See LICENSE file in the project root for details.

package azcli

import (
	"context"
	"reflect"
	"strings"
	"testing"

	"github.com/hmcts/acr-transfer/internal/pkg/logger"
)

func newTestStorageLister(runner commandRunner, sasToken, subscription string) *StorageLister {
	l := NewStorageLister(logger.NewWithLevel(logger.LevelError), "acct", "exports", sasToken, subscription)
	l.runner = runner
	return l
}

func TestListBlobs(t *testing.T) {
	runner := newFakeRunner()
	runner.responses["storage blob list"] = `[
		{"name": "import-batch001"},
		{"name": "import-batch002"}
	]`

	lister := newTestStorageLister(runner, "", "")
	names, err := lister.ListBlobs(context.Background())
	if err != nil {
		t.Fatalf("ListBlobs failed: %v", err)
	}
	if !reflect.DeepEqual(names, []string{"import-batch001", "import-batch002"}) {
		t.Errorf("Unexpected blob names: %v", names)
	}

	joined := strings.Join(runner.calls[0], " ")
	for _, want := range []string{"--account-name acct", "--container-name exports"} {
		if !strings.Contains(joined, want) {
			t.Errorf("Expected %q in args: %s", want, joined)
		}
	}
}

func TestListBlobsSASTokenPrecedence(t *testing.T) {
	runner := newFakeRunner()
	lister := newTestStorageLister(runner, "sv=2024&sig=x", "sub-id")

	if _, err := lister.ListBlobs(context.Background()); err != nil {
		t.Fatalf("ListBlobs failed: %v", err)
	}

	joined := strings.Join(runner.calls[0], " ")
	if !strings.Contains(joined, "--sas-token") {
		t.Errorf("Expected --sas-token in args: %s", joined)
	}
	if strings.Contains(joined, "--subscription") {
		t.Errorf("SAS token must take precedence over the subscription: %s", joined)
	}
}

func TestListBlobsSubscriptionFallback(t *testing.T) {
	runner := newFakeRunner()
	lister := newTestStorageLister(runner, "", "sub-id")

	if _, err := lister.ListBlobs(context.Background()); err != nil {
		t.Fatalf("ListBlobs failed: %v", err)
	}

	joined := strings.Join(runner.calls[0], " ")
	if !strings.Contains(joined, "--subscription sub-id") {
		t.Errorf("Expected --subscription sub-id in args: %s", joined)
	}
	if strings.Contains(joined, "--sas-token") {
		t.Errorf("Unexpected --sas-token in args: %s", joined)
	}
}

func TestListBlobsEmptyOutput(t *testing.T) {
	runner := newFakeRunner()
	runner.responses["storage blob list"] = "  \n"

	lister := newTestStorageLister(runner, "", "")
	names, err := lister.ListBlobs(context.Background())
	if err != nil {
		t.Fatalf("ListBlobs failed: %v", err)
	}
	if len(names) != 0 {
		t.Errorf("Expected no blob names, got %v", names)
	}
}
