// Copyright (C) 2022  Ambassador Labs
//
// SPDX-License-Identifier: Apache-2.0

// Package spackspec implements the subset of Spack's spec language that
// environment markers can compile down to: a version range on the package
// itself, boolean variants, a platform, and a version range on the python
// dependency.
package spackspec

import (
	"fmt"
	"sort"
	"strings"

	"github.com/datawire/pypi2spack/pkg/spack/spackver"
)

// Spec is a constraint on a package.  A nil Versions/Python list and an
// empty Platform mean "unconstrained"; an explicitly empty list never
// appears in a valid Spec (an unsatisfiable constraint is an error, not a
// value).
type Spec struct {
	Name     string
	Versions spackver.List
	Variants map[string]bool
	Platform string
	Python   spackver.List
}

// ErrUnsatisfiable is returned by Constrain when two constraints exclude
// each other.
type ErrUnsatisfiable struct {
	A, B Spec
}

func (e ErrUnsatisfiable) Error() string {
	return fmt.Sprintf("spackspec: unsatisfiable: %q does not intersect %q", e.A.String(), e.B.String())
}

// Constrain returns the conjunction of the two specs, or an
// ErrUnsatisfiable if they exclude each other.
func (s Spec) Constrain(o Spec) (Spec, error) {
	ret := Spec{
		Name:     s.Name,
		Versions: s.Versions,
		Platform: s.Platform,
		Python:   s.Python,
	}
	if ret.Name == "" {
		ret.Name = o.Name
	} else if o.Name != "" && o.Name != ret.Name {
		return Spec{}, ErrUnsatisfiable{A: s, B: o}
	}

	switch {
	case ret.Versions == nil:
		ret.Versions = o.Versions
	case o.Versions != nil:
		ret.Versions = ret.Versions.Intersect(o.Versions)
		if ret.Versions.IsEmpty() {
			return Spec{}, ErrUnsatisfiable{A: s, B: o}
		}
	}

	switch {
	case ret.Python == nil:
		ret.Python = o.Python
	case o.Python != nil:
		ret.Python = ret.Python.Intersect(o.Python)
		if ret.Python.IsEmpty() {
			return Spec{}, ErrUnsatisfiable{A: s, B: o}
		}
	}

	switch {
	case ret.Platform == "":
		ret.Platform = o.Platform
	case o.Platform != "" && o.Platform != ret.Platform:
		return Spec{}, ErrUnsatisfiable{A: s, B: o}
	}

	if len(s.Variants) > 0 || len(o.Variants) > 0 {
		ret.Variants = make(map[string]bool, len(s.Variants)+len(o.Variants))
		for name, val := range s.Variants {
			ret.Variants[name] = val
		}
		for name, val := range o.Variants {
			if have, conflict := ret.Variants[name]; conflict && have != val {
				return Spec{}, ErrUnsatisfiable{A: s, B: o}
			}
			ret.Variants[name] = val
		}
	}

	return ret, nil
}

// IsUnconstrained reports whether the spec constrains nothing (an
// unconditional when-spec, which is omitted from output).
func (s Spec) IsUnconstrained() bool {
	return (s.Versions == nil || s.Versions.IsAny()) &&
		len(s.Variants) == 0 &&
		s.Platform == "" &&
		(s.Python == nil || s.Python.IsAny())
}

// String implements fmt.Stringer, rendering in Spack's spec spelling:
// "py-requests@2.8: +socks platform=linux ^python@3.8:".
func (s Spec) String() string {
	var parts []string
	name := s.Name
	if s.Versions != nil && !s.Versions.IsAny() {
		name += "@" + s.Versions.String()
	}
	if name != "" {
		parts = append(parts, name)
	}
	variants := make([]string, 0, len(s.Variants))
	for variant := range s.Variants {
		variants = append(variants, variant)
	}
	sort.Strings(variants)
	for _, variant := range variants {
		if s.Variants[variant] {
			parts = append(parts, "+"+variant)
		} else {
			parts = append(parts, "~"+variant)
		}
	}
	if s.Platform != "" {
		parts = append(parts, "platform="+s.Platform)
	}
	if s.Python != nil && !s.Python.IsAny() {
		parts = append(parts, "^python@"+s.Python.String())
	}
	return strings.Join(parts, " ")
}

// Cmp is an arbitrary total order over specs, for deterministic output; it
// is the lexicographic order of the rendered form.
func Cmp(a, b Spec) int {
	return strings.Compare(a.String(), b.String())
}

// Equal reports whether two specs render identically.
func Equal(a, b Spec) bool {
	return Cmp(a, b) == 0
}
