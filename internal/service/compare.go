// Copyright (c) 2026 HMCTS
// Licensed under the MIT License. See LICENSE file in the project root for details.

// Package service provides the transfer engine: digest comparison, the
// bounded-parallel import scheduler, the conflict-retry policy, and the
// batch pipeline-run services.
package service

import (
	"sort"

	"github.com/hmcts/acr-transfer/internal/registry"
)

// TagPlan is the outcome of comparing source and target inventories for one
// repository. All slices are lexicographically sorted for deterministic runs.
type TagPlan struct {
	Transfer []string // tags to import: missing plus re-tagged (all tags under force)
	Missing  []string // subset of Transfer absent from the target
	Retagged []string // subset of Transfer whose target digest differs from source
	UpToDate []string // tags whose digests already match; skipped unless forced
}

// Empty reports whether the plan contains no work.
func (p *TagPlan) Empty() bool {
	return len(p.Transfer) == 0
}

// BuildTagPlan decides which tags must be transferred. A tag is transferred
// when it is absent from the target or its target digest differs from the
// source. Force transfers every source tag unconditionally.
func BuildTagPlan(source, target registry.TagDigestMap, force bool) *TagPlan {
	plan := &TagPlan{}

	for tag, srcDigest := range source {
		dstDigest, exists := target[tag]
		switch {
		case force:
			plan.Transfer = append(plan.Transfer, tag)
			if !exists {
				plan.Missing = append(plan.Missing, tag)
			} else if dstDigest != srcDigest {
				plan.Retagged = append(plan.Retagged, tag)
			}
		case !exists:
			plan.Transfer = append(plan.Transfer, tag)
			plan.Missing = append(plan.Missing, tag)
		case dstDigest != srcDigest:
			plan.Transfer = append(plan.Transfer, tag)
			plan.Retagged = append(plan.Retagged, tag)
		default:
			plan.UpToDate = append(plan.UpToDate, tag)
		}
	}

	sort.Strings(plan.Transfer)
	sort.Strings(plan.Missing)
	sort.Strings(plan.Retagged)
	sort.Strings(plan.UpToDate)
	return plan
}
