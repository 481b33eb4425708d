// Copyright (C) 2022  Ambassador Labs
//
// SPDX-License-Identifier: Apache-2.0

package convert

import (
	"context"
	"strings"

	"github.com/datawire/dlib/dlog"
	"github.com/datawire/pypi2spack/pkg/pypi"
	"github.com/datawire/pypi2spack/pkg/python/pep440"
	"github.com/datawire/pypi2spack/pkg/python/pep508"
	"github.com/datawire/pypi2spack/pkg/spack/spackspec"
	"github.com/datawire/pypi2spack/pkg/spack/spackver"
)

// Platforms is the fixed set of platforms the target system can express a
// constraint on.  Marker comparisons against anything else resolve
// statically (an unrepresentable platform is simply never the platform).
var Platforms = []string{"linux", "cray", "darwin", "windows", "freebsd"}

// Evaluator statically resolves marker expressions into Results, and
// translates version specifiers into condensed version-range lists.  Its
// caches live for one run; the same marker text and the same
// (package, specifier) pair recur across many releases and call sites, and
// referential stability of the answers matters as much as the speedup.
type Evaluator struct {
	Lookup *pypi.Lookup
	Floor  spackver.Version

	markerCache map[string]Result
	listCache   map[string]spackver.List
}

// VersionList resolves a specifier set against the package's known
// versions: filter, then condense the surviving subset into ranges judged
// against the full version list.  An empty List means no known version
// matches.  Memoized per (name, specifier).
func (e *Evaluator) VersionList(ctx context.Context, name string, spec pep440.Specifier) (spackver.List, error) {
	key := name + "\x00" + spec.String()
	if list, ok := e.listCache[key]; ok {
		return list, nil
	}

	all, err := e.Lookup.Versions(ctx, name)
	if err != nil {
		return nil, err
	}
	var list spackver.List
	if len(all) > 0 {
		if subset := spec.Filter(all); len(subset) > 0 {
			list = spackver.Condense(ctx, subset, all)
		}
	}

	if e.listCache == nil {
		e.listCache = make(map[string]spackver.List)
	}
	e.listCache[key] = list
	return list, nil
}

// PythonConstraint resolves an interpreter-version specifier to a Result:
// statically False when no supported interpreter matches, statically True
// when every supported interpreter matches, a single ^python constraint
// otherwise.
func (e *Evaluator) PythonConstraint(ctx context.Context, spec pep440.Specifier) (Result, error) {
	list, err := e.VersionList(ctx, "python", spec)
	if err != nil {
		return Result{}, err
	}
	list = spackver.SimplifyPythonConstraint(list, e.Floor)
	switch {
	case list.IsEmpty():
		return StaticResult(false), nil
	case list.IsAny():
		return StaticResult(true), nil
	default:
		return ConstrainedResult([]spackspec.Spec{{Python: list}}), nil
	}
}

// Eval resolves a marker expression.  Memoized on the marker text.
func (e *Evaluator) Eval(ctx context.Context, marker *pep508.Marker) Result {
	if marker == nil {
		return StaticResult(true)
	}
	if result, ok := e.markerCache[marker.Text]; ok {
		return result
	}
	result := e.evalExpr(ctx, marker.Expr)
	if e.markerCache == nil {
		e.markerCache = make(map[string]Result)
	}
	e.markerCache[marker.Text] = result
	return result
}

func (e *Evaluator) evalExpr(ctx context.Context, expr pep508.Expr) Result {
	switch expr := expr.(type) {
	case pep508.Leaf:
		return e.evalLeaf(ctx, expr)
	case pep508.And:
		ret := StaticResult(true)
		for _, child := range expr.Children {
			ret = andResults(ret, e.evalExpr(ctx, child))
			if ret.Kind == KindFalse {
				break
			}
		}
		return ret
	case pep508.Or:
		ret := StaticResult(false)
		for _, child := range expr.Children {
			ret = orResults(ret, e.evalExpr(ctx, child))
			if ret.Kind == KindTrue {
				break
			}
		}
		return ret
	default:
		return UnknownResult()
	}
}

//nolint:gochecknoglobals // Would be 'const'.
var flippedOps = map[string]string{
	"<":  ">",
	">":  "<",
	"<=": ">=",
	">=": "<=",
	"==": "==",
	"!=": "!=",
}

func (e *Evaluator) evalLeaf(ctx context.Context, leaf pep508.Leaf) Result {
	variable, op, value := leaf.LHS, leaf.Op, leaf.RHS

	// Membership tests need string-containment semantics; there is
	// nothing to translate them to.
	if op == "in" || op == "not in" {
		dlog.Warnf(ctx, "marker %q: membership tests are not statically resolvable", leaf.String())
		return UnknownResult()
	}

	// Canonicalize reversed comparisons ('"3.8" <= python_version').
	if !variable.IsVariable && value.IsVariable {
		flipped, ok := flippedOps[op]
		if !ok {
			dlog.Warnf(ctx, "marker %q: unsupported reversed comparison", leaf.String())
			return UnknownResult()
		}
		variable, value, op = value, variable, flipped
	}
	if !variable.IsVariable || value.IsVariable {
		return UnknownResult()
	}

	switch variable.V {
	case "implementation_name", "platform_python_implementation":
		// cpython is the only implementation the target ecosystem
		// packages.  implementation_name is the exact runtime value
		// "cpython"; platform_python_implementation is conventionally
		// cased ("CPython") and compared case-insensitively.
		isCPython := value.V == "cpython"
		if variable.V == "platform_python_implementation" {
			isCPython = strings.ToLower(value.V) == "cpython"
		}
		switch op {
		case "==", "===":
			return StaticResult(isCPython)
		case "!=":
			return StaticResult(!isCPython)
		}
		return UnknownResult()

	case "platform_system", "sys_platform":
		platform := strings.ToLower(value.V)
		switch platform {
		case "win32":
			platform = "windows"
		case "linux2":
			platform = "linux"
		}
		recognized := false
		for _, p := range Platforms {
			if p == platform {
				recognized = true
				break
			}
		}
		if !recognized {
			// The target system cannot express this platform, so
			// the comparison resolves statically.
			switch op {
			case "==":
				return StaticResult(false)
			case "!=":
				return StaticResult(true)
			}
			return UnknownResult()
		}
		switch op {
		case "==":
			return ConstrainedResult([]spackspec.Spec{{Platform: platform}})
		case "!=":
			specs := make([]spackspec.Spec, 0, len(Platforms)-1)
			for _, p := range Platforms {
				if p != platform {
					specs = append(specs, spackspec.Spec{Platform: p})
				}
			}
			return ConstrainedResult(specs)
		}
		return UnknownResult()

	case "extra":
		switch op {
		case "==":
			return ConstrainedResult([]spackspec.Spec{{Variants: map[string]bool{value.V: true}}})
		case "!=":
			return ConstrainedResult([]spackspec.Spec{{Variants: map[string]bool{value.V: false}}})
		}
		return UnknownResult()

	case "python_version", "python_full_version":
		specStr := op + value.V
		// python_version is the truncated major.minor, so equality
		// against it is a prefix match on the full version.
		if variable.V == "python_version" && (op == "==" || op == "!=") &&
			!strings.HasSuffix(value.V, ".*") && strings.Count(value.V, ".") < 2 {
			specStr += ".*"
		}
		spec, err := pep440.ParseSpecifier(specStr)
		if err != nil {
			dlog.Warnf(ctx, "marker %q: %v", leaf.String(), err)
			return UnknownResult()
		}
		result, err := e.PythonConstraint(ctx, spec)
		if err != nil {
			dlog.Warnf(ctx, "marker %q: %v", leaf.String(), err)
			return UnknownResult()
		}
		return result
	}

	return UnknownResult()
}

// andResults conjoins per the tri-valued truth table: False is absorbing,
// Unknown absorbs unless the other side is False, True is identity, and two
// constraint lists combine by pairwise intersection with unsatisfiable
// pairs dropped.
func andResults(a, b Result) Result {
	if a.Kind == KindFalse || b.Kind == KindFalse {
		return StaticResult(false)
	}
	if a.Kind == KindUnknown || b.Kind == KindUnknown {
		return UnknownResult()
	}
	if a.Kind == KindTrue {
		return b
	}
	if b.Kind == KindTrue {
		return a
	}
	var specs []spackspec.Spec
	for _, sa := range a.Specs {
		for _, sb := range b.Specs {
			merged, err := sa.Constrain(sb)
			if err != nil {
				// Unsatisfiable pair; this disjunct combination
				// contributes nothing.
				continue
			}
			specs = append(specs, merged)
		}
	}
	return ConstrainedResult(specs)
}

// orResults disjoins per the tri-valued truth table: True is absorbing,
// Unknown absorbs unless the other side is True, False is identity, and two
// constraint lists combine by union.  When the right side is a single pure
// interpreter-version constraint and so is every left disjunct, the union
// folds down to one python range per disjunct instead of branching.
func orResults(a, b Result) Result {
	if a.Kind == KindTrue || b.Kind == KindTrue {
		return StaticResult(true)
	}
	if a.Kind == KindUnknown || b.Kind == KindUnknown {
		return UnknownResult()
	}
	if a.Kind == KindFalse {
		return b
	}
	if b.Kind == KindFalse {
		return a
	}
	if len(b.Specs) == 1 && isPurePython(b.Specs[0]) {
		foldable := true
		for _, sa := range a.Specs {
			if !isPurePython(sa) {
				foldable = false
				break
			}
		}
		if foldable {
			specs := make([]spackspec.Spec, 0, len(a.Specs))
			for _, sa := range a.Specs {
				merged := sa
				merged.Python = sa.Python.Union(b.Specs[0].Python)
				if merged.Python.IsAny() {
					merged.Python = nil
				}
				specs = append(specs, merged)
			}
			return ConstrainedResult(specs)
		}
	}
	return ConstrainedResult(append(append([]spackspec.Spec{}, a.Specs...), b.Specs...))
}

func isPurePython(s spackspec.Spec) bool {
	return s.Versions == nil && len(s.Variants) == 0 && s.Platform == "" && s.Python != nil
}
