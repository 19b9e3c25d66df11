// Copyright (c) 2026 HMCTS
// Licensed under the MIT License. See LICENSE file in the project root for details.

package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/hmcts/acr-transfer/internal/filter"
	"github.com/hmcts/acr-transfer/internal/pkg/logger"
	"github.com/hmcts/acr-transfer/internal/registry"
)

// TransferContext is the immutable per-run configuration passed to every
// operation. Subscription scoping is explicit here; nothing relies on ambient
// CLI account state.
type TransferContext struct {
	SourceRegistry     string
	TargetRegistry     string
	SourceEndpoint     *registry.Endpoint
	TargetSubscription string
	Ignored            []string // repositories excluded by ignore patterns, for the run summary
	DryRun             bool
	Force              bool
	ForceOnRetry       bool
	Delay              time.Duration
}

// UnitStatus is the outcome of one (repository, tag) unit of work.
type UnitStatus string

const (
	UnitDryRun  UnitStatus = "dry-run"
	UnitSuccess UnitStatus = "success"
	UnitFailure UnitStatus = "failure"
)

// UnitResult is the result of importing one tag.
type UnitResult struct {
	Repository string
	Tag        string
	Status     UnitStatus
	Err        error
}

// Failure identifies one failed unit or repository in the final summary.
type Failure struct {
	Repository string
	Tag        string // empty for repository-level failures
	Detail     string
}

func (f Failure) String() string {
	ref := f.Repository
	if f.Tag != "" {
		ref = f.Repository + ":" + f.Tag
	}
	return fmt.Sprintf("%s: %s", ref, f.Detail)
}

// Summary aggregates the outcome of a transfer run.
type Summary struct {
	Scanned   int      // repositories processed
	Planned   int      // units scheduled (dry-run counts these)
	Succeeded int      // units imported successfully
	Scheduled []string // repositories that produced at least one unit
	UpToDate  []string // repositories already fully synchronized
	NoTags    []string // repositories with no source tags
	Failures  []Failure
}

// Failed reports whether any unit or repository failed.
func (s *Summary) Failed() bool {
	return len(s.Failures) > 0
}

// Selection is the repository set chosen by the filter engine.
type Selection struct {
	Total    int      // repositories available in the source registry
	Eligible []string // sorted candidates after letter and ignore filters
	Ignored  []string // sorted repositories excluded by ignore patterns
}

// TransferService selects repositories and executes transfer runs.
type TransferService interface {
	SelectRepositories(ctx context.Context, registryName string, letterFilter, ignoreFilter filter.Predicate) (*Selection, error)
	PerformTransfer(ctx context.Context, tctx *TransferContext, repositories []string, maxRepositories, parallelImports int) (*Summary, error)
}

// transferService implements TransferService against a registry client.
type transferService struct {
	client registry.Client
	logger logger.Logger
}

// NewTransferService creates a TransferService.
func NewTransferService(client registry.Client, log logger.Logger) TransferService {
	return &transferService{client: client, logger: log}
}

// SelectRepositories lists the source registry and applies the letter and
// ignore filters. The result is sorted for deterministic processing order.
func (s *transferService) SelectRepositories(ctx context.Context, registryName string, letterFilter, ignoreFilter filter.Predicate) (*Selection, error) {
	repos, err := s.client.ListRepositories(ctx, registryName)
	if err != nil {
		return nil, fmt.Errorf("failed to list repositories: %w", err)
	}

	selection := &Selection{Total: len(repos)}
	for _, repo := range repos {
		if !letterFilter(repo) {
			continue
		}
		if ignoreFilter(repo) {
			selection.Ignored = append(selection.Ignored, repo)
			continue
		}
		selection.Eligible = append(selection.Eligible, repo)
	}
	sort.Strings(selection.Eligible)
	sort.Strings(selection.Ignored)
	return selection, nil
}

// PerformTransfer processes repositories in the supplied order. Each
// repository's inventory is compared and its pending tags are imported,
// sequentially or through a bounded worker pool. Processing stops once
// maxRepositories repositories have produced at least one unit (0 means
// unlimited). Repository-level listing failures are recorded and skipped;
// they never abort the run.
func (s *transferService) PerformTransfer(ctx context.Context, tctx *TransferContext, repositories []string, maxRepositories, parallelImports int) (*Summary, error) {
	summary := &Summary{}

	for i, repo := range repositories {
		if maxRepositories > 0 && len(summary.Scheduled) >= maxRepositories {
			s.logger.Info("Reached repository processing limit. Stopping early as requested.")
			break
		}
		summary.Scanned++
		s.logger.Info("Processing repository '%s' (%d/%d)", repo, i+1, len(repositories))

		sourceTags, err := s.client.ListTagDigests(ctx, tctx.SourceRegistry, repo)
		if err != nil {
			s.logger.Error("Failed to list tags for '%s': %v", repo, err)
			summary.Failures = append(summary.Failures, Failure{Repository: repo, Detail: "tag listing failed"})
			continue
		}
		if len(sourceTags) == 0 {
			summary.NoTags = append(summary.NoTags, repo)
			s.logger.Info("No tags found for '%s'. Skipping.", repo)
			continue
		}

		targetTags, err := s.client.ListTagDigests(ctx, tctx.TargetRegistry, repo)
		if err != nil {
			s.logger.Error("Failed to inspect target registry for '%s': %v", repo, err)
			summary.Failures = append(summary.Failures, Failure{Repository: repo, Detail: "target inspection failed"})
			continue
		}

		plan := BuildTagPlan(sourceTags, targetTags, tctx.Force)
		if plan.Empty() {
			summary.UpToDate = append(summary.UpToDate, repo)
			s.logger.Info("No tags to import for '%s'. Skipping repository.", repo)
			continue
		}
		summary.Scheduled = append(summary.Scheduled, repo)

		if !tctx.Force && len(plan.UpToDate) > 0 {
			s.logger.Info("Skipping %d existing tag(s) for '%s': %s", len(plan.UpToDate), repo, preview(plan.UpToDate, 3))
		}
		if len(plan.Retagged) > 0 {
			s.logger.Info("%d tag(s) re-tagged in source for '%s': %s", len(plan.Retagged), repo, preview(plan.Retagged, 3))
		}

		s.processRepository(ctx, tctx, repo, plan.Transfer, parallelImports, summary)
	}

	s.report(tctx, summary)
	return summary, nil
}

// processRepository imports one repository's pending tags and folds the
// results into the summary.
func (s *transferService) processRepository(ctx context.Context, tctx *TransferContext, repo string, tags []string, parallelImports int, summary *Summary) {
	if tctx.DryRun || parallelImports <= 1 {
		for _, tag := range tags {
			summary.Planned++
			result := s.importTag(ctx, tctx, repo, tag)
			s.record(summary, result)
			if !tctx.DryRun && tctx.Delay > 0 {
				time.Sleep(tctx.Delay)
			}
		}
		return
	}

	// Bounded worker pool for one repository; results are aggregated by the
	// single collecting goroutine below so the counters need no lock.
	jobs := make(chan string)
	results := make(chan UnitResult)

	var wg sync.WaitGroup
	for w := 0; w < parallelImports; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for tag := range jobs {
				results <- s.importTag(ctx, tctx, repo, tag)
			}
		}()
	}
	go func() {
		for _, tag := range tags {
			jobs <- tag
		}
		close(jobs)
		wg.Wait()
		close(results)
	}()

	for result := range results {
		summary.Planned++
		s.record(summary, result)
		if tctx.Delay > 0 {
			time.Sleep(tctx.Delay)
		}
	}
}

// record folds one unit result into the summary.
func (s *transferService) record(summary *Summary, result UnitResult) {
	switch result.Status {
	case UnitSuccess:
		summary.Succeeded++
	case UnitFailure:
		summary.Failures = append(summary.Failures, Failure{
			Repository: result.Repository,
			Tag:        result.Tag,
			Detail:     result.Err.Error(),
		})
	}
}

// importTag imports one tag, applying the conflict-retry policy on failure.
func (s *transferService) importTag(ctx context.Context, tctx *TransferContext, repo, tag string) UnitResult {
	ref := repo + ":" + tag
	if tctx.DryRun {
		s.logger.Info("DRY-RUN would import %s", ref)
		return UnitResult{Repository: repo, Tag: tag, Status: UnitDryRun}
	}

	s.logger.Info("Importing %s", ref)
	err := s.doImport(ctx, tctx, ref, tctx.Force)
	if err != nil && tctx.ForceOnRetry && !tctx.Force && IsConflictError(err) {
		s.logger.Warn("Import of %s hit a conflict, retrying once with overwrite", ref)
		err = s.doImport(ctx, tctx, ref, true)
	}
	if err != nil {
		s.logger.Error("Failed to import %s: %v", ref, err)
		return UnitResult{Repository: repo, Tag: tag, Status: UnitFailure, Err: err}
	}

	s.logger.Info("Successfully imported %s", ref)
	return UnitResult{Repository: repo, Tag: tag, Status: UnitSuccess}
}

func (s *transferService) doImport(ctx context.Context, tctx *TransferContext, ref string, overwrite bool) error {
	return s.client.Import(ctx, &registry.ImportSpec{
		TargetRegistry: tctx.TargetRegistry,
		SourceRef:      ref,
		TargetRef:      ref,
		SourceID:       tctx.SourceEndpoint.ResourceID,
		Subscription:   tctx.TargetSubscription,
		Overwrite:      overwrite,
	})
}

// report logs the final run summary: the repository selection breakdown with
// sorted previews, then the unit counts and failures.
func (s *transferService) report(tctx *TransferContext, summary *Summary) {
	s.logger.Info("=== Repository selection summary ===")
	if len(tctx.Ignored) > 0 {
		s.logger.Info("Ignored %d repository(ies) matching patterns:%s",
			len(tctx.Ignored), previewList(tctx.Ignored))
	}
	if len(summary.NoTags) > 0 {
		s.logger.Info("Skipped %d repository(ies) (no tags found in source):%s",
			len(summary.NoTags), previewList(summary.NoTags))
	}
	if len(summary.UpToDate) > 0 {
		s.logger.Info("Skipped %d repository(ies) (all tags already present in target):%s",
			len(summary.UpToDate), previewList(summary.UpToDate))
	}
	if len(summary.Scheduled) > 0 {
		s.logger.Info("Repositories processed this run:%s", previewList(summary.Scheduled))
	} else {
		s.logger.Info("No repositories required migration based on current criteria.")
	}

	s.logger.Info("Transfer complete.")
	s.logger.Info("Repositories scanned: %d", summary.Scanned)
	s.logger.Info("Repositories requiring action: %d", len(summary.Scheduled))
	if tctx.DryRun {
		s.logger.Info("Planned imports: %d", summary.Planned)
	} else {
		s.logger.Info("Successful imports: %d", summary.Succeeded)
	}
	if summary.Failed() {
		s.logger.Error("Failed imports:")
		for _, failure := range summary.Failures {
			s.logger.Error("  - %s", failure)
		}
	}
}

// conflictMarkers are the diagnostic substrings that identify an import
// failure as an overwrite conflict worth a single forced retry.
var conflictMarkers = []string{
	"409",
	"already exists",
	"tag already exists",
	"manifest unknown",
	"manifest does not exist",
	"conflict",
}

// IsConflictError classifies an import failure by scanning its diagnostic
// text, case-insensitively, for known conflict markers.
func IsConflictError(err error) bool {
	if err == nil {
		return false
	}
	diagnostic := err.Error()
	var importErr *registry.ImportError
	if errors.As(err, &importErr) {
		diagnostic = importErr.Diagnostic
	}
	diagnostic = strings.ToLower(diagnostic)
	for _, marker := range conflictMarkers {
		if strings.Contains(diagnostic, marker) {
			return true
		}
	}
	return false
}

// preview formats up to limit items for log lines, with an ellipsis when
// truncated.
func preview(items []string, limit int) string {
	if len(items) <= limit {
		return strings.Join(items, ", ")
	}
	return strings.Join(items[:limit], ", ") + ", ..."
}

// previewWindow caps the repository previews in the selection summary.
const previewWindow = 10

// previewList formats a sorted, preview-limited repository list as indented
// log lines.
func previewList(items []string) string {
	sorted := make([]string, len(items))
	copy(sorted, items)
	sort.Strings(sorted)
	if len(sorted) > previewWindow {
		sorted = append(sorted[:previewWindow], "...")
	}
	return "\n  - " + strings.Join(sorted, "\n  - ")
}
