// Copyright (C) 2022  Ambassador Labs
//
// SPDX-License-Identifier: Apache-2.0

package convert_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/datawire/dlib/dlog"
	"github.com/datawire/pypi2spack/pkg/convert"
	"github.com/datawire/pypi2spack/pkg/pypi"
	"github.com/datawire/pypi2spack/pkg/python/pep508"
	"github.com/datawire/pypi2spack/pkg/spack/spackver"
)

type fakeIndex map[string][]pypi.Release

func (f fakeIndex) Releases(_ context.Context, name string) ([]pypi.Release, error) {
	return f[name], nil
}

func (f fakeIndex) NamesWithPrefix(_ context.Context, prefix string) ([]string, error) {
	var ret []string
	for name := range f {
		if len(name) >= len(prefix) && name[:len(prefix)] == prefix {
			ret = append(ret, name)
		}
	}
	return ret, nil
}

func (f fakeIndex) Counts(_ context.Context) (int, int, error) {
	packages, versions := 0, 0
	for _, rels := range f {
		packages++
		versions += len(rels)
	}
	return packages, versions, nil
}

func newEvaluator(index pypi.Index) *convert.Evaluator {
	return &convert.Evaluator{
		Lookup: &pypi.Lookup{
			Index:        index,
			KnownPythons: pypi.KnownPythonVersions(),
		},
		Floor: spackver.MkVersion(3, 7),
	}
}

func TestEvalMarker(t *testing.T) {
	t.Parallel()
	type testcase struct {
		Marker string
		Kind   convert.ResultKind
		Specs  []string // rendered, in canonical order
	}
	testcases := map[string]testcase{
		"implementation-match": {
			Marker: `implementation_name == "cpython"`,
			Kind:   convert.KindTrue,
		},
		"implementation-mismatch": {
			Marker: `implementation_name == "jython"`,
			Kind:   convert.KindFalse,
		},
		"implementation-negated": {
			Marker: `platform_python_implementation != "CPython"`,
			Kind:   convert.KindFalse,
		},
		"implementation-name-is-case-sensitive": {
			// The runtime value is exactly "cpython"; a cased literal
			// can never compare equal.
			Marker: `implementation_name == "CPython"`,
			Kind:   convert.KindFalse,
		},
		"platform-implementation-ignores-case": {
			Marker: `platform_python_implementation == "CPython"`,
			Kind:   convert.KindTrue,
		},
		"platform-eq": {
			Marker: `sys_platform == "win32"`,
			Kind:   convert.KindConstrained,
			Specs:  []string{"platform=windows"},
		},
		"platform-neq": {
			Marker: `platform_system != "Darwin"`,
			Kind:   convert.KindConstrained,
			Specs: []string{
				"platform=cray", "platform=freebsd", "platform=linux", "platform=windows",
			},
		},
		"platform-unrepresentable-eq": {
			Marker: `sys_platform == "emscripten"`,
			Kind:   convert.KindFalse,
		},
		"platform-unrepresentable-neq": {
			Marker: `sys_platform != "emscripten"`,
			Kind:   convert.KindTrue,
		},
		"extra-eq": {
			Marker: `extra == "socks"`,
			Kind:   convert.KindConstrained,
			Specs:  []string{"+socks"},
		},
		"extra-neq": {
			Marker: `extra != "socks"`,
			Kind:   convert.KindConstrained,
			Specs:  []string{"~socks"},
		},
		"python-lower-bound": {
			Marker: `python_version >= "3.8"`,
			Kind:   convert.KindConstrained,
			Specs:  []string{"^python@3.8:"},
		},
		"python-upper-bound": {
			Marker: `python_version < "3.12"`,
			Kind:   convert.KindConstrained,
			Specs:  []string{"^python@:3.11"},
		},
		"python-reversed": {
			Marker: `"3.8" <= python_version`,
			Kind:   convert.KindConstrained,
			Specs:  []string{"^python@3.8:"},
		},
		"python-empty": {
			Marker: `python_version < "3"`,
			Kind:   convert.KindFalse,
		},
		"python-everything": {
			Marker: `python_version >= "3.6"`,
			Kind:   convert.KindTrue,
		},
		"python-patch-upper-bound": {
			Marker: `python_full_version < "3.9.7"`,
			Kind:   convert.KindConstrained,
			Specs:  []string{"^python@:3.9.6"},
		},
		"python-patch-lower-bound": {
			Marker: `python_full_version >= "3.9.7"`,
			Kind:   convert.KindConstrained,
			Specs:  []string{"^python@3.9.7:"},
		},
		"python-exact-minor": {
			Marker: `python_version == "3.10"`,
			Kind:   convert.KindConstrained,
			Specs:  []string{"^python@3.10"},
		},
		"tautology": {
			Marker: `python_version < "3.6" or python_version >= "3.6"`,
			Kind:   convert.KindTrue,
		},
		"or-of-adjacent-python-ranges": {
			// ":3.7" and "3.8:" abut, so together they cover every
			// interpreter.
			Marker: `python_version < "3.8" or python_version >= "3.8"`,
			Kind:   convert.KindTrue,
		},
		"or-folds-python-ranges": {
			Marker: `python_version < "3.8" or python_version >= "3.10"`,
			Kind:   convert.KindConstrained,
			Specs:  []string{"^python@:3.7,3.10:"},
		},
		"or-keeps-mixed-disjuncts": {
			Marker: `python_version >= "3.8" or sys_platform == "linux"`,
			Kind:   convert.KindConstrained,
			Specs:  []string{"^python@3.8:", "platform=linux"},
		},
		"and-merges-extras": {
			Marker: `extra == "test" and extra == "docs"`,
			Kind:   convert.KindConstrained,
			Specs:  []string{"+docs +test"},
		},
		"and-platform-python": {
			Marker: `sys_platform == "linux" and python_version >= "3.9"`,
			Kind:   convert.KindConstrained,
			Specs:  []string{"platform=linux ^python@3.9:"},
		},
		"and-contradictory-platforms": {
			Marker: `sys_platform == "linux" and sys_platform == "darwin"`,
			Kind:   convert.KindFalse,
		},
		"and-false-absorbs": {
			Marker: `os_name == "nt" and python_version < "3"`,
			Kind:   convert.KindFalse,
		},
		"and-unknown-absorbs": {
			Marker: `os_name == "nt" and sys_platform == "linux"`,
			Kind:   convert.KindUnknown,
		},
		"or-true-absorbs": {
			Marker: `os_name == "nt" or implementation_name == "cpython"`,
			Kind:   convert.KindTrue,
		},
		"or-unknown-absorbs": {
			Marker: `os_name == "nt" or sys_platform == "linux"`,
			Kind:   convert.KindUnknown,
		},
		"unknown-variable": {
			Marker: `platform_machine == "x86_64"`,
			Kind:   convert.KindUnknown,
		},
		"membership-test": {
			Marker: `sys_platform in "linux darwin"`,
			Kind:   convert.KindUnknown,
		},
		"parenthesized": {
			Marker: `(extra == "a" or extra == "b") and python_version >= "3.8"`,
			Kind:   convert.KindConstrained,
			Specs:  []string{"+a ^python@3.8:", "+b ^python@3.8:"},
		},
	}
	for tcName, tc := range testcases {
		tc := tc
		t.Run(tcName, func(t *testing.T) {
			t.Parallel()
			ctx := dlog.NewTestContext(t, false)
			eval := newEvaluator(fakeIndex{})
			marker, err := pep508.ParseMarker(tc.Marker)
			require.NoError(t, err)
			result := eval.Eval(ctx, marker)
			require.Equal(t, tc.Kind, result.Kind, "result: %v", result)
			rendered := make([]string, 0, len(result.Specs))
			for _, spec := range result.Specs {
				rendered = append(rendered, spec.String())
			}
			if len(tc.Specs) > 0 {
				assert.Equal(t, tc.Specs, rendered)
			}
			// Memoized: the same marker text yields the identical
			// result.
			again := eval.Eval(ctx, marker)
			assert.Equal(t, result, again)
		})
	}
}

func TestEvalNilMarker(t *testing.T) {
	t.Parallel()
	ctx := dlog.NewTestContext(t, false)
	eval := newEvaluator(fakeIndex{})
	assert.Equal(t, convert.KindTrue, eval.Eval(ctx, nil).Kind)
}
