// Copyright (C) 2022  Ambassador Labs
//
// SPDX-License-Identifier: Apache-2.0

package spackver

import (
	"context"
	"sort"
	"strings"

	"k8s.io/apimachinery/pkg/util/intstr"

	"github.com/datawire/pypi2spack/pkg/python/pep440"
)

// Range is an inclusive version range.  A nil bound is unbounded ("1.2:"
// admits everything from 1.2 on).  The upper bound has prefix semantics, as
// in Spack: the range ":1.2" contains 1.2.9, because 1.2 is a release prefix
// of it.
type Range struct {
	Lo *Version
	Hi *Version
}

// Contains reports whether the range contains v.
func (r Range) Contains(v Version) bool {
	if r.Lo != nil && Cmp(v, *r.Lo) < 0 {
		return false
	}
	if r.Hi != nil && Cmp(v, *r.Hi) > 0 && !r.Hi.ReleasePrefixOf(v) {
		return false
	}
	return true
}

// String implements fmt.Stringer, rendering in Spack's range spelling:
// "1.2:1.4", ":1.4", "1.2:", ":"; a range whose bounds coincide collapses
// to the bare version.
func (r Range) String() string {
	if r.Lo != nil && r.Hi != nil && Cmp(*r.Lo, *r.Hi) == 0 {
		return r.Lo.String()
	}
	var ret strings.Builder
	if r.Lo != nil {
		ret.WriteString(r.Lo.String())
	}
	ret.WriteString(":")
	if r.Hi != nil {
		ret.WriteString(r.Hi.String())
	}
	return ret.String()
}

// cmpLoBound compares two lower bounds; nil is negative infinity.
func cmpLoBound(a, b *Version) int {
	switch {
	case a == nil && b == nil:
		return 0
	case a == nil:
		return -1
	case b == nil:
		return 1
	default:
		return Cmp(*a, *b)
	}
}

// cmpHiBound compares two upper bounds; nil is positive infinity.  Prefix
// semantics make a shorter bound the greater one: the bound 1.2 reaches past
// 1.2.5, because it admits every 1.2.x.
func cmpHiBound(a, b *Version) int {
	switch {
	case a == nil && b == nil:
		return 0
	case a == nil:
		return 1
	case b == nil:
		return -1
	case a.ReleasePrefixOf(*b) && !b.ReleasePrefixOf(*a):
		return 1
	case b.ReleasePrefixOf(*a) && !a.ReleasePrefixOf(*b):
		return -1
	default:
		return Cmp(*a, *b)
	}
}

// nonEmpty reports whether an inclusive range with these bounds contains
// anything.
func nonEmpty(lo, hi *Version) bool {
	if lo == nil || hi == nil {
		return true
	}
	return Cmp(*lo, *hi) <= 0 || hi.ReleasePrefixOf(*lo)
}

// List is a union of disjoint ranges in ascending order.  The zero value is
// the empty list, which contains nothing.
type List []Range

// Any is the list containing every version.
func Any() List {
	return List{{}}
}

// IsEmpty reports whether the list contains no versions.
func (l List) IsEmpty() bool {
	return len(l) == 0
}

// IsAny reports whether the list contains every version.
func (l List) IsAny() bool {
	return len(l) == 1 && l[0].Lo == nil && l[0].Hi == nil
}

// Contains reports whether any range in the list contains v.
func (l List) Contains(v Version) bool {
	for _, r := range l {
		if r.Contains(v) {
			return true
		}
	}
	return false
}

// normalize sorts the ranges and merges overlapping or adjacent ones,
// restoring the disjoint-ascending invariant.
func normalize(ranges []Range) List {
	if len(ranges) == 0 {
		return nil
	}
	sort.SliceStable(ranges, func(i, j int) bool {
		if d := cmpLoBound(ranges[i].Lo, ranges[j].Lo); d != 0 {
			return d < 0
		}
		return cmpHiBound(ranges[i].Hi, ranges[j].Hi) > 0
	})
	ret := List{ranges[0]}
	for _, r := range ranges[1:] {
		last := &ret[len(ret)-1]
		// r overlaps last if r.Lo does not exceed last.Hi.
		mergeable := last.Hi == nil || r.Lo == nil ||
			Cmp(*r.Lo, *last.Hi) <= 0 || last.Hi.ReleasePrefixOf(*r.Lo)
		if !mergeable &&
			len(last.Hi.Tail) == 0 && len(last.Hi.Local) == 0 &&
			len(r.Lo.Tail) == 0 && len(r.Lo.Local) == 0 {
			// A plain-release hi abuts the next plain release, so
			// ":3.7,3.8:" collapses to ":".
			mergeable = Cmp(*r.Lo, nextAfter(*last.Hi)) <= 0
		}
		if mergeable {
			if cmpHiBound(r.Hi, last.Hi) > 0 {
				last.Hi = r.Hi
			}
			continue
		}
		ret = append(ret, r)
	}
	return ret
}

// Union returns the union of the two lists.
func (l List) Union(o List) List {
	ranges := make([]Range, 0, len(l)+len(o))
	ranges = append(ranges, l...)
	ranges = append(ranges, o...)
	return normalize(ranges)
}

// Intersect returns the intersection of the two lists.
func (l List) Intersect(o List) List {
	var ranges []Range
	for _, a := range l {
		for _, b := range o {
			lo := a.Lo
			if cmpLoBound(b.Lo, lo) > 0 {
				lo = b.Lo
			}
			hi := a.Hi
			if cmpHiBound(b.Hi, hi) < 0 {
				hi = b.Hi
			}
			if nonEmpty(lo, hi) {
				ranges = append(ranges, Range{Lo: lo, Hi: hi})
			}
		}
	}
	return normalize(ranges)
}

// Satisfies reports whether the two lists have any version in common.
func (l List) Satisfies(o List) bool {
	return !l.Intersect(o).IsEmpty()
}

// CmpList is an arbitrary total order over lists, for deterministic output.
// Lists sort by their ranges, lowest bound first.
func CmpList(a, b List) int {
	for i := 0; i < len(a) && i < len(b); i++ {
		if d := cmpLoBound(a[i].Lo, b[i].Lo); d != 0 {
			return d
		}
		if d := cmpHiBound(a[i].Hi, b[i].Hi); d != 0 {
			return d
		}
	}
	return len(a) - len(b)
}

// String implements fmt.Stringer; ranges are comma-joined, as in Spack's
// "@:1.2,2.0:" spelling.
func (l List) String() string {
	strs := make([]string, 0, len(l))
	for _, r := range l {
		strs = append(strs, r.String())
	}
	return strings.Join(strs, ",")
}

// Condense compresses subset into the minimal List of contiguous ranges,
// judged against the full known-version timeline all.  subset must be
// non-empty and a subset of all.  Range boundaries are computed between
// neighboring known versions (BestUpperBound/BestLowerBound) rather than
// taken from the members themselves, so that point releases published after
// generation still land inside the ranges.  If the subset includes the
// oldest known version the first range is unbounded below, and if it
// includes the newest the last range is unbounded above: the known-version
// list is a snapshot, and support is assumed to extend beyond its edges.
func Condense(ctx context.Context, subset, all []pep440.Version) List {
	sub := make([]Version, 0, len(subset))
	for _, v := range subset {
		sub = append(sub, FromPEP440(ctx, v))
	}
	univ := make([]Version, 0, len(all))
	for _, v := range all {
		univ = append(univ, FromPEP440(ctx, v))
	}
	Sort(sub)
	Sort(univ)

	indexOf := func(from int, v Version) int {
		for i := from; i < len(univ); i++ {
			if Cmp(univ[i], v) == 0 {
				return i
			}
		}
		return -1
	}

	var ret List
	i := indexOf(0, sub[0])
	var lo *Version
	if i > 0 {
		b := BestLowerBound(univ[i-1], sub[0])
		lo = &b
	}
	for j := 1; j < len(sub); j++ {
		i++
		if Cmp(univ[i], sub[j]) == 0 {
			continue
		}
		// The contiguous run ended at sub[j-1]; close it off against
		// the first known version not in the subset.
		hi := BestUpperBound(sub[j-1], univ[i])
		ret = append(ret, Range{Lo: lo, Hi: &hi})
		i = indexOf(i+1, sub[j])
		b := BestLowerBound(univ[i-1], sub[j])
		lo = &b
	}
	var hi *Version
	if i < len(univ)-1 {
		b := BestUpperBound(sub[len(sub)-1], univ[i+1])
		hi = &b
	}
	ret = append(ret, Range{Lo: lo, Hi: hi})
	return ret
}

// SimplifyPythonConstraint simplifies an interpreter-version List against
// the fixed floor of supported interpreters: ranges entirely below the floor
// are dropped, and a lowest range that reaches down into the unsupported
// region loses its lower bound, so that "3.7:3.11" with a 3.7 floor renders
// as ":3.11" instead of carrying a redundant bound.  Idempotent.
func SimplifyPythonConstraint(l List, floor Version) List {
	unsupportedHi := floorPredecessor(floor)
	for len(l) > 0 && cmpHiBound(l[0].Hi, &unsupportedHi) <= 0 {
		l = l[1:]
	}
	if len(l) > 0 && l[0].Lo != nil {
		// The unsupported region ends right where the floor begins;
		// a lower bound at or below the floor is implied.
		if Cmp(*l[0].Lo, nextAfter(unsupportedHi)) <= 0 {
			l[0].Lo = nil
		}
	}
	return l
}

// floorPredecessor returns the greatest upper bound strictly below the
// floor: the last release component decremented (floor 3.7 gives 3.6).
func floorPredecessor(floor Version) Version {
	release := make([]intstr.IntOrString, len(floor.Release))
	copy(release, floor.Release)
	for len(release) > 0 {
		last := &release[len(release)-1]
		if last.Type == intstr.Int && last.IntValue() > 0 {
			*last = intstr.FromInt(last.IntValue() - 1)
			return Version{Release: release}
		}
		release = release[:len(release)-1]
	}
	return Version{Release: release}
}
