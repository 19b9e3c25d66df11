// Copyright (c) 2026 HMCTS
// Licensed under the MIT License. See LICENSE file in the project root for details.

package service

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/hmcts/acr-transfer/internal/pkg/logger"
	"github.com/hmcts/acr-transfer/internal/registry"
)

// SplitBatches partitions items into fixed-size slices in order; the last
// slice may be shorter.
func SplitBatches(items []string, batchSize int) [][]string {
	if batchSize <= 0 || len(items) == 0 {
		return nil
	}
	batches := make([][]string, 0, (len(items)+batchSize-1)/batchSize)
	for start := 0; start < len(items); start += batchSize {
		end := start + batchSize
		if end > len(items) {
			end = len(items)
		}
		batches = append(batches, items[start:end])
	}
	return batches
}

// RunName names one externally tracked run: prefix plus a zero-padded
// sequence number, starting at 1.
func RunName(prefix string, sequence int) string {
	return fmt.Sprintf("%s%03d", prefix, sequence)
}

// SkipPolicy decides which existing run states count as already handled when
// resuming a batch run. The two observed operational conventions differ, so
// the choice is explicit.
type SkipPolicy int

const (
	// SkipNonFailed treats every run that is not Failed/Canceled as handled:
	// succeeded and in-flight runs are both skipped. Used by batch export.
	SkipNonFailed SkipPolicy = iota
	// SkipSucceededOnly treats only Succeeded runs as handled, so stuck or
	// in-flight runs are resubmitted. Used by batch import.
	SkipSucceededOnly
)

// ParseSkipPolicy parses the --skip-policy flag value.
func ParseSkipPolicy(value string) (SkipPolicy, error) {
	switch value {
	case "non-failed":
		return SkipNonFailed, nil
	case "succeeded":
		return SkipSucceededOnly, nil
	}
	return 0, fmt.Errorf("unknown skip policy %q (expected \"non-failed\" or \"succeeded\")", value)
}

// AlreadyHandled reports whether an existing run in the given state makes
// resubmission unnecessary.
func (p SkipPolicy) AlreadyHandled(state registry.RunState) bool {
	switch p {
	case SkipSucceededOnly:
		return state == registry.RunSucceeded
	default:
		return !state.Failed()
	}
}

// IgnoreEntry excludes one artifact, or a whole repository when Tag is empty,
// from batch export.
type IgnoreEntry struct {
	Repository string `json:"repository"`
	Tag        string `json:"tag"`
}

// BatchSummary aggregates the outcome of a batch export or import run.
type BatchSummary struct {
	Batches         int      // batches produced by the partitioner
	SkippedExisting int      // batches skipped because a run already handled them
	Submitted       int      // runs submitted this invocation
	SubmitFailures  []string // run names whose submission command failed
	Succeeded       int
	Failed          int
	Canceled        int
}

// HasFailures reports whether any submission or run failed.
func (s *BatchSummary) HasFailures() bool {
	return len(s.SubmitFailures) > 0 || s.Failed > 0 || s.Canceled > 0
}

// BatchOptions is the shared configuration of both batch variants.
type BatchOptions struct {
	Prefix        string
	MaxConcurrent int
	PollInterval  time.Duration
	SubmitDelay   time.Duration
	DryRun        bool
	SkipPolicy    SkipPolicy
}

// batchRunner carries the run-tracking machinery shared by the export and
// import services: slot-limited asynchronous submission, submission
// collection, and terminal-state polling.
type batchRunner struct {
	tracker registry.RunTracker
	logger  logger.Logger
}

// waitForSlot blocks until the count of non-terminal runs under the prefix
// drops below maxConcurrent, polling on the configured interval.
func (b *batchRunner) waitForSlot(ctx context.Context, opts *BatchOptions) error {
	for {
		runs, err := b.tracker.ListRuns(ctx, opts.Prefix)
		if err != nil {
			b.logger.Warn("Could not count active runs: %v", err)
			return nil
		}
		active := 0
		for _, state := range runs {
			if !state.Terminal() {
				active++
			}
		}
		if active < opts.MaxConcurrent {
			return nil
		}
		b.logger.Info("%d/%d runs active. Waiting %s...", active, opts.MaxConcurrent, opts.PollInterval)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(opts.PollInterval):
		}
	}
}

// collectSubmissions waits for each submission command to complete. Failed
// submissions are recorded and dropped from the tracked set so the final
// polling phase only waits on runs that exist.
func (b *batchRunner) collectSubmissions(handles []registry.RunHandle, summary *BatchSummary) []string {
	if len(handles) == 0 {
		return nil
	}
	b.logger.Info("Waiting for all %d submission commands to complete...", len(handles))

	var tracked []string
	for _, handle := range handles {
		if err := handle.Wait(); err != nil {
			b.logger.Error("Failed to create %s: %v", handle.Name(), err)
			summary.SubmitFailures = append(summary.SubmitFailures, handle.Name())
			continue
		}
		b.logger.Info("%s creation command completed.", handle.Name())
		tracked = append(tracked, handle.Name())
	}
	return tracked
}

// awaitRuns polls until every tracked run reaches a terminal state, then
// folds the terminal counts into the summary. Runs the tracker cannot see
// yet are treated as still pending.
func (b *batchRunner) awaitRuns(ctx context.Context, opts *BatchOptions, tracked []string, summary *BatchSummary) error {
	if len(tracked) == 0 {
		return nil
	}
	b.logger.Info("All %d runs submitted. Waiting for pipeline completion...", len(tracked))

	for {
		states, err := b.tracker.ListRuns(ctx, opts.Prefix)
		if err != nil {
			b.logger.Warn("Error checking run status: %v", err)
		} else {
			var pending, succeeded, failed, canceled int
			for _, name := range tracked {
				switch state := states[name]; {
				case state == registry.RunSucceeded:
					succeeded++
				case state == registry.RunCanceled:
					canceled++
				case state.Failed():
					failed++
				default:
					pending++
				}
			}
			b.logger.Info("Status: %d running, %d succeeded, %d failed, %d canceled (total: %d)",
				pending, succeeded, failed, canceled, len(tracked))
			if pending == 0 {
				summary.Succeeded = succeeded
				summary.Failed = failed
				summary.Canceled = canceled
				return nil
			}
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(opts.PollInterval):
		}
	}
}

// pace sleeps briefly after a submission to avoid bursting the service API.
func (b *batchRunner) pace(ctx context.Context, opts *BatchOptions) error {
	if opts.SubmitDelay <= 0 {
		return nil
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(opts.SubmitDelay):
		return nil
	}
}

// BatchExportService partitions a registry's artifacts into batches and
// drives export pipeline runs.
type BatchExportService struct {
	batchRunner
	client registry.Client
}

// NewBatchExportService creates a BatchExportService.
func NewBatchExportService(client registry.Client, tracker registry.RunTracker, log logger.Logger) *BatchExportService {
	return &BatchExportService{
		batchRunner: batchRunner{tracker: tracker, logger: log},
		client:      client,
	}
}

// discoveryWorkers bounds the parallel per-repository inventory fetches.
const discoveryWorkers = 10

// DiscoverArtifacts enumerates every repository:tag in the registry whose tag
// has a resolvable manifest. Repositories are fetched in parallel; the result
// is sorted so repeated invocations produce identical batches.
func (s *BatchExportService) DiscoverArtifacts(ctx context.Context, registryName string) ([]string, error) {
	repos, err := s.client.ListRepositories(ctx, registryName)
	if err != nil {
		return nil, err
	}
	s.logger.Info("Discovered %d repositories in %s.", len(repos), registryName)

	var mu sync.Mutex
	var artifacts []string
	var processed int

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(discoveryWorkers)
	for _, repo := range repos {
		repo := repo
		g.Go(func() error {
			tags, err := s.client.ListTagDigests(gctx, registryName, repo)
			if err != nil {
				return err
			}
			mu.Lock()
			for tag := range tags {
				artifacts = append(artifacts, repo+":"+tag)
			}
			processed++
			if processed%25 == 0 || processed == len(repos) {
				s.logger.Info("Processed %d/%d repositories...", processed, len(repos))
			}
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	sort.Strings(artifacts)
	return artifacts, nil
}

// ExportOptions configures one batch export run.
type ExportOptions struct {
	BatchOptions
	Registry      string
	BatchSize     int
	IgnoreEntries []IgnoreEntry
}

// Run discovers artifacts, partitions them, and submits one export pipeline
// run per batch, skipping batches an existing run already handles. Re-running
// against an unchanged registry is idempotent.
func (s *BatchExportService) Run(ctx context.Context, opts *ExportOptions) (*BatchSummary, error) {
	artifacts, err := s.DiscoverArtifacts(ctx, opts.Registry)
	if err != nil {
		return nil, fmt.Errorf("failed to discover artifacts: %w", err)
	}
	s.logger.Info("Found %d artifacts.", len(artifacts))

	artifacts = filterIgnored(artifacts, opts.IgnoreEntries, s.logger)

	batches := SplitBatches(artifacts, opts.BatchSize)
	s.logger.Info("Splitting into %d batches of up to %d.", len(batches), opts.BatchSize)

	summary := &BatchSummary{Batches: len(batches)}

	existing, err := s.tracker.ListRuns(ctx, opts.Prefix)
	if err != nil {
		s.logger.Warn("Could not fetch existing pipeline runs: %v", err)
		existing = map[string]registry.RunState{}
	}

	var handles []registry.RunHandle
	for i, batch := range batches {
		name := RunName(opts.Prefix, i+1)
		s.logger.Info("Batch %d: %d artifacts. Run name: %s", i+1, len(batch), name)

		if state, ok := existing[name]; ok && opts.SkipPolicy.AlreadyHandled(state) {
			summary.SkippedExisting++
			s.logger.Info("Skipping %s: already handled (state %s).", name, state)
			continue
		}
		if opts.DryRun {
			s.logger.Info("DRY-RUN would export %v", batch)
			continue
		}

		if err := s.waitForSlot(ctx, &opts.BatchOptions); err != nil {
			return summary, err
		}
		handle, err := s.tracker.CreateExportRun(ctx, &registry.ExportRunSpec{
			Name:      name,
			Artifacts: batch,
			Blob:      name,
		})
		if err != nil {
			s.logger.Error("Failed to submit %s: %v", name, err)
			summary.SubmitFailures = append(summary.SubmitFailures, name)
			continue
		}
		summary.Submitted++
		handles = append(handles, handle)

		if err := s.pace(ctx, &opts.BatchOptions); err != nil {
			return summary, err
		}
	}

	tracked := s.collectSubmissions(handles, summary)
	if err := s.awaitRuns(ctx, &opts.BatchOptions, tracked, summary); err != nil {
		return summary, err
	}
	return summary, nil
}

// filterIgnored drops artifacts excluded by the ignore entries.
func filterIgnored(artifacts []string, entries []IgnoreEntry, log logger.Logger) []string {
	if len(entries) == 0 {
		return artifacts
	}

	ignoreRepos := make(map[string]bool)
	ignoreTags := make(map[IgnoreEntry]bool)
	for _, entry := range entries {
		if entry.Repository == "" {
			continue
		}
		if entry.Tag == "" {
			ignoreRepos[entry.Repository] = true
		} else {
			ignoreTags[entry] = true
		}
	}

	kept := artifacts[:0:0]
	for _, artifact := range artifacts {
		repo, tag, err := splitArtifact(artifact)
		if err == nil && (ignoreRepos[repo] || ignoreTags[IgnoreEntry{Repository: repo, Tag: tag}]) {
			continue
		}
		kept = append(kept, artifact)
	}
	if dropped := len(artifacts) - len(kept); dropped > 0 {
		log.Info("Filtered out %d artifacts using ignore entries.", dropped)
	}
	return kept
}

// splitArtifact splits "repository:tag" on the last colon.
func splitArtifact(artifact string) (repo, tag string, err error) {
	for i := len(artifact) - 1; i >= 0; i-- {
		if artifact[i] == ':' {
			if i == 0 || i == len(artifact)-1 {
				break
			}
			return artifact[:i], artifact[i+1:], nil
		}
	}
	return "", "", fmt.Errorf("artifact %q is not repository:tag", artifact)
}

// BatchImportService drives import pipeline runs over exported storage blobs.
type BatchImportService struct {
	batchRunner
	blobs registry.BlobLister
}

// NewBatchImportService creates a BatchImportService.
func NewBatchImportService(blobs registry.BlobLister, tracker registry.RunTracker, log logger.Logger) *BatchImportService {
	return &BatchImportService{
		batchRunner: batchRunner{tracker: tracker, logger: log},
		blobs:       blobs,
	}
}

// Run lists the exported blobs and submits one import pipeline run per blob,
// skipping blobs whose run the skip policy treats as handled. Run names are
// derived from blob listing order, matching the export side's numbering.
func (s *BatchImportService) Run(ctx context.Context, opts *BatchOptions) (*BatchSummary, error) {
	blobs, err := s.blobs.ListBlobs(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list blobs: %w", err)
	}
	if len(blobs) == 0 {
		s.logger.Info("No blobs found. Nothing to do.")
		return &BatchSummary{}, nil
	}
	s.logger.Info("Found %d blobs.", len(blobs))

	summary := &BatchSummary{Batches: len(blobs)}

	existing, err := s.tracker.ListRuns(ctx, opts.Prefix)
	if err != nil {
		s.logger.Warn("Could not fetch existing pipeline runs: %v", err)
		existing = map[string]registry.RunState{}
	}

	var handles []registry.RunHandle
	for i, blob := range blobs {
		name := RunName(opts.Prefix, i+1)

		if state, ok := existing[name]; ok && opts.SkipPolicy.AlreadyHandled(state) {
			summary.SkippedExisting++
			s.logger.Info("Skipping blob %s (run %s): already handled (state %s).", blob, name, state)
			continue
		}
		if opts.DryRun {
			s.logger.Info("DRY-RUN would import blob %s as run %s", blob, name)
			continue
		}

		if err := s.waitForSlot(ctx, opts); err != nil {
			return summary, err
		}
		s.logger.Info("Submitting import pipeline run %s for blob %s", name, blob)
		handle, err := s.tracker.CreateImportRun(ctx, &registry.ImportRunSpec{Name: name, Blob: blob})
		if err != nil {
			s.logger.Error("Failed to submit %s: %v", name, err)
			summary.SubmitFailures = append(summary.SubmitFailures, name)
			continue
		}
		summary.Submitted++
		handles = append(handles, handle)

		if err := s.pace(ctx, opts); err != nil {
			return summary, err
		}
	}

	tracked := s.collectSubmissions(handles, summary)
	if err := s.awaitRuns(ctx, opts, tracked, summary); err != nil {
		return summary, err
	}
	return summary, nil
}

// LoadIgnoreEntriesFromFile reads export ignore entries from a JSON file:
// a list of {"repository": ..., "tag": ...} objects. An unreadable or
// malformed file is a warning, not a fatal error.
func LoadIgnoreEntriesFromFile(path string, log logger.Logger) []IgnoreEntry {
	if path == "" {
		return nil
	}
	entries, err := readIgnoreEntries(path)
	if err != nil {
		log.Warn("Could not load ignore-tags file: %v", err)
		return nil
	}
	return entries
}

func readIgnoreEntries(path string) ([]IgnoreEntry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var entries []IgnoreEntry
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return entries, nil
}
