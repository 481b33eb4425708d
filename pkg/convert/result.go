// Copyright (C) 2022  Ambassador Labs
//
// SPDX-License-Identifier: Apache-2.0

package convert

import (
	"sort"
	"strings"

	"github.com/datawire/pypi2spack/pkg/spack/spackspec"
)

// ResultKind discriminates Result.
type ResultKind int

const (
	// KindFalse: the marker can never hold; the edge is dropped.
	KindFalse ResultKind = iota
	// KindTrue: the marker always holds; the edge is unconditional.
	KindTrue
	// KindUnknown: the marker cannot be resolved statically; the edge is
	// kept, annotated with the original marker text, for human review.
	KindUnknown
	// KindConstrained: the marker compiles to one or more when-spec
	// disjuncts.
	KindConstrained
)

// Result is what evaluating a marker expression yields.  It is a tagged
// union of four variants; Specs is meaningful only for KindConstrained, and
// is then non-empty, deduplicated, and sorted.
type Result struct {
	Kind  ResultKind
	Specs []spackspec.Spec
}

// StaticResult returns the True or False result.
func StaticResult(b bool) Result {
	if b {
		return Result{Kind: KindTrue}
	}
	return Result{Kind: KindFalse}
}

// UnknownResult returns the Unknown result.
func UnknownResult() Result {
	return Result{Kind: KindUnknown}
}

// ConstrainedResult normalizes a disjunct list into a Result: duplicates
// are dropped, the order is canonicalized, an empty list degrades to False,
// and a list containing an unconstrained spec collapses to True.
func ConstrainedResult(specs []spackspec.Spec) Result {
	if len(specs) == 0 {
		return Result{Kind: KindFalse}
	}
	seen := make(map[string]struct{}, len(specs))
	uniq := make([]spackspec.Spec, 0, len(specs))
	for _, spec := range specs {
		if spec.IsUnconstrained() {
			return Result{Kind: KindTrue}
		}
		key := spec.String()
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		uniq = append(uniq, spec)
	}
	sortSpecs(uniq)
	return Result{Kind: KindConstrained, Specs: uniq}
}

func sortSpecs(specs []spackspec.Spec) {
	sort.Slice(specs, func(i, j int) bool {
		return spackspec.Cmp(specs[i], specs[j]) < 0
	})
}

// String implements fmt.Stringer, for diagnostics and test failures.
func (r Result) String() string {
	switch r.Kind {
	case KindFalse:
		return "false"
	case KindTrue:
		return "true"
	case KindUnknown:
		return "unknown"
	default:
		strs := make([]string, 0, len(r.Specs))
		for _, spec := range r.Specs {
			strs = append(strs, spec.String())
		}
		return "[" + strings.Join(strs, " | ") + "]"
	}
}
