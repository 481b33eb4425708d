// Copyright (C) 2022  Ambassador Labs
//
// SPDX-License-Identifier: Apache-2.0

// Package spackver implements Spack's version model: dotted versions with
// dev/alpha/beta/rc/post tails, inclusive prefix-aware version ranges, and
// lists of disjoint ranges.
//
// The model is chosen so that converting a pep440.Version to a
// spackver.Version preserves ordering for every combination of release,
// pre-release, post-release, and dev-release segments; the range-condensation
// in this package is unsound otherwise.
package spackver

import (
	"context"
	"sort"
	"strconv"
	"strings"

	"k8s.io/apimachinery/pkg/util/intstr"

	"github.com/datawire/dlib/dlog"
	"github.com/datawire/pypi2spack/pkg/python/pep440"
)

// TagKind identifies a version-tail tag.  The numeric values are the sort
// order relative to a final release (which has no tag at that position).
type TagKind int

const (
	TagDev   TagKind = -4
	TagAlpha TagKind = -3
	TagBeta  TagKind = -2
	TagRC    TagKind = -1
	tagFinal TagKind = 0
	TagPost  TagKind = 1
)

func (k TagKind) String() string {
	switch k {
	case TagDev:
		return "dev"
	case TagAlpha:
		return "alpha"
	case TagBeta:
		return "beta"
	case TagRC:
		return "rc"
	case TagPost:
		return "post"
	default:
		return "final"
	}
}

// Tag is one tail segment, such as "alpha1" or "post2".
type Tag struct {
	Kind TagKind
	N    int
}

// Version is a Spack version:
//
//   - Release: the dotted components ("1.2.3"); usually numbers, but string
//     components are allowed and sort before any number.
//   - Tail: dev/pre/post tags in canonical order (pre-release, then post,
//     then dev); empty for a final release.
//   - Local: the local/build segments ("+ubuntu.1" in PEP 440 spelling).
type Version struct {
	Release []intstr.IntOrString
	Tail    []Tag
	Local   []intstr.IntOrString
}

// MkVersion builds a final-release Version from numeric components; it
// exists because composite literals full of intstr.FromInt calls are
// unreadable.
func MkVersion(release ...int) Version {
	ret := Version{
		Release: make([]intstr.IntOrString, 0, len(release)),
	}
	for _, n := range release {
		ret.Release = append(ret.Release, intstr.FromInt(n))
	}
	return ret
}

// cmpComponent compares two dotted components.  A string component sorts
// before any numeric component.
func cmpComponent(a, b intstr.IntOrString) int {
	switch {
	case a.Type == intstr.Int && b.Type == intstr.Int:
		switch {
		case a.IntValue() < b.IntValue():
			return -1
		case a.IntValue() > b.IntValue():
			return 1
		default:
			return 0
		}
	case a.Type == intstr.String && b.Type == intstr.String:
		return strings.Compare(a.StrVal, b.StrVal)
	case a.Type == intstr.String:
		return -1
	default:
		return 1
	}
}

func cmpComponents(a, b []intstr.IntOrString) int {
	for i := 0; i < len(a) && i < len(b); i++ {
		if d := cmpComponent(a[i], b[i]); d != 0 {
			return d
		}
	}
	// A strict prefix sorts first: 1.2 < 1.2.0.
	return len(a) - len(b)
}

func cmpTag(a, b Tag) int {
	if a.Kind != b.Kind {
		return int(a.Kind) - int(b.Kind)
	}
	return a.N - b.N
}

func cmpTail(a, b []Tag) int {
	n := len(a)
	if len(b) > n {
		n = len(b)
	}
	for i := 0; i < n; i++ {
		// A missing tag position compares as "final".
		ta, tb := Tag{Kind: tagFinal}, Tag{Kind: tagFinal}
		if i < len(a) {
			ta = a[i]
		}
		if i < len(b) {
			tb = b[i]
		}
		if d := cmpTag(ta, tb); d != 0 {
			return d
		}
	}
	return 0
}

// Cmp returns a value <0, 0, or >0 depending on whether a sorts before,
// equal to, or after b.  The order is total and transitive.
func Cmp(a, b Version) int {
	if d := cmpComponents(a.Release, b.Release); d != 0 {
		return d
	}
	if d := cmpTail(a.Tail, b.Tail); d != 0 {
		return d
	}
	return cmpComponents(a.Local, b.Local)
}

// Sort sorts versions in ascending order.
func Sort(vers []Version) {
	sort.Slice(vers, func(i, j int) bool {
		return Cmp(vers[i], vers[j]) < 0
	})
}

// UpTo returns the version truncated to the first n release components, with
// the tail and local segments dropped; "1.2.9".UpTo(2) is "1.2".
func (v Version) UpTo(n int) Version {
	return Version{
		Release: v.Release[:n:n],
	}
}

// ReleasePrefixOf reports whether v is a pure release (no tail, no local
// segments) whose components are a leading prefix of o's.  A range whose
// upper bound is such a prefix contains o: the bound "1.2" admits "1.2.9".
func (v Version) ReleasePrefixOf(o Version) bool {
	if len(v.Tail) > 0 || len(v.Local) > 0 {
		return false
	}
	if len(v.Release) > len(o.Release) {
		return false
	}
	for i := range v.Release {
		if cmpComponent(v.Release[i], o.Release[i]) != 0 {
			return false
		}
	}
	return true
}

// String implements fmt.Stringer, rendering in Spack's spelling:
// "1.2.3", "1.2.3-alpha1", "1.2.3-rc1.dev2", "1.0-foo.1".
func (v Version) String() string {
	var ret strings.Builder
	for i, c := range v.Release {
		if i > 0 {
			ret.WriteString(".")
		}
		ret.WriteString(c.String())
	}
	for i, tag := range v.Tail {
		if i == 0 {
			ret.WriteString("-")
		} else {
			ret.WriteString(".")
		}
		ret.WriteString(tag.Kind.String())
		ret.WriteString(strconv.Itoa(tag.N))
	}
	for i, c := range v.Local {
		if i == 0 {
			ret.WriteString("-")
		} else {
			ret.WriteString(".")
		}
		ret.WriteString(c.String())
	}
	return ret.String()
}

// GoString implements fmt.GoStringer.
func (v Version) GoString() string {
	return "spackver.Version{" + v.String() + "}"
}

// FromPEP440 translates a PEP 440 version.  The translation is total and
// order-preserving: for any two PEP 440 versions a < b, the translated
// versions compare the same way.  The one exception is release tuples that
// PEP 440 equates by zero-padding ("1.2" vs "1.2.0"): the target model
// sorts a strict prefix first, so versions hanging off such a pair ("1.2"
// vs "1.2.0.dev1") may flip.  Epochs do not exist in the target model;
// a nonzero epoch is prepended as a leading release component, which keeps
// versions within one epoch ordered but not across epochs, so it is logged.
func FromPEP440(ctx context.Context, v pep440.Version) Version {
	var ret Version

	if v.Epoch > 0 {
		dlog.Warnf(ctx, "version %q: epochs have no spack equivalent; prepending %d as a leading component",
			v.String(), v.Epoch)
		ret.Release = append(ret.Release, intstr.FromInt(v.Epoch))
	}
	for _, n := range v.Release {
		ret.Release = append(ret.Release, intstr.FromInt(n))
	}

	if v.Pre != nil {
		kind := TagRC
		switch v.Pre.L {
		case "a", "alpha":
			kind = TagAlpha
		case "b", "beta":
			kind = TagBeta
		}
		ret.Tail = append(ret.Tail, Tag{Kind: kind, N: v.Pre.N})
	}
	if v.Post != nil {
		ret.Tail = append(ret.Tail, Tag{Kind: TagPost, N: *v.Post})
	}
	if v.Dev != nil {
		ret.Tail = append(ret.Tail, Tag{Kind: TagDev, N: *v.Dev})
	}

	ret.Local = append(ret.Local, v.Local...)

	return ret
}

// IsFinal reports whether the version is a final release (it may still carry
// local segments).
func (v Version) IsFinal() bool {
	for _, tag := range v.Tail {
		if tag.Kind < tagFinal {
			return false
		}
	}
	return true
}

// divergeIndex returns the index of the first release component where a and
// b differ; if one release is a prefix of the other, this is the shorter
// length.
func divergeIndex(a, b Version) int {
	i := 0
	for i < len(a.Release) && i < len(b.Release) &&
		cmpComponent(a.Release[i], b.Release[i]) == 0 {
		i++
	}
	return i
}

// BestUpperBound returns the most general bound that is an upper bound for
// curr but excludes next; curr < next must hold.  "Most general" means the
// shortest release prefix past the point of divergence: separating 1.2.9
// from 1.3.0 yields 1.2, so that a 1.2.10 added to the index later still
// falls inside the range.
func BestUpperBound(curr, next Version) Version {
	i := divergeIndex(curr, next)
	switch {
	case i == len(curr.Release) && i < len(next.Release):
		// curr's release is a strict prefix of next's (1.2 vs 1.2.3).
		// The truncated prefix would contain next; pad with explicit
		// zeros instead (1.2.0).
		release := curr.Release[:i:i]
		for n := len(next.Release) - len(curr.Release); n > 0; n-- {
			release = append(release, intstr.FromInt(0))
		}
		return Version{Release: release}
	case i == len(curr.Release):
		// Identical releases, differing tails (1.2-alpha1 vs 1.2):
		// only curr itself separates them.
		return curr
	default:
		return curr.UpTo(i + 1)
	}
}

// BestLowerBound returns the most general bound that is a lower bound for
// curr but excludes prev; prev < curr must hold.
func BestLowerBound(prev, curr Version) Version {
	i := divergeIndex(prev, curr)
	if i+1 >= len(curr.Release) {
		// Truncation cannot shorten the bound without admitting prev
		// (1.2 vs 1.2.1, or 1.2-alpha1 vs 1.2).
		return curr
	}
	return curr.UpTo(i + 1)
}

// nextAfter returns the smallest "interesting" version greater than every
// version having v as a release prefix: the last release component
// incremented, tail and local dropped.  Used to detect adjacency against an
// upper bound.
func nextAfter(v Version) Version {
	release := make([]intstr.IntOrString, len(v.Release))
	copy(release, v.Release)
	last := &release[len(release)-1]
	if last.Type == intstr.Int {
		*last = intstr.FromInt(last.IntValue() + 1)
	}
	return Version{Release: release}
}
