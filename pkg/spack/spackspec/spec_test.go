// Copyright (C) 2022  Ambassador Labs
//
// SPDX-License-Identifier: Apache-2.0

package spackspec_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/datawire/dlib/dlog"
	"github.com/datawire/pypi2spack/pkg/python/pep440"
	"github.com/datawire/pypi2spack/pkg/spack/spackspec"
	"github.com/datawire/pypi2spack/pkg/spack/spackver"
	"github.com/datawire/pypi2spack/pkg/testutil"
)

func list(t *testing.T, lo, hi string) spackver.List {
	t.Helper()
	ctx := dlog.NewTestContext(t, false)
	var r spackver.Range
	if lo != "" {
		ver, err := pep440.ParseVersion(lo)
		require.NoError(t, err)
		v := spackver.FromPEP440(ctx, *ver)
		r.Lo = &v
	}
	if hi != "" {
		ver, err := pep440.ParseVersion(hi)
		require.NoError(t, err)
		v := spackver.FromPEP440(ctx, *ver)
		r.Hi = &v
	}
	return spackver.List{r}
}

func TestSpecString(t *testing.T) {
	t.Parallel()
	testcases := map[string]struct {
		Spec   spackspec.Spec
		Output string
	}{
		"empty": {
			Spec:   spackspec.Spec{},
			Output: "",
		},
		"name-only": {
			Spec:   spackspec.Spec{Name: "py-requests"},
			Output: "py-requests",
		},
		"versions": {
			Spec:   spackspec.Spec{Name: "py-requests", Versions: list(t, "2.8", "")},
			Output: "py-requests@2.8:",
		},
		"anonymous-versions": {
			Spec:   spackspec.Spec{Versions: list(t, "1.0", "2.0")},
			Output: "@1.0:2.0",
		},
		"variants-sorted": {
			Spec: spackspec.Spec{
				Variants: map[string]bool{"socks": true, "security": true, "brotli": false},
			},
			Output: "~brotli +security +socks",
		},
		"everything": {
			Spec: spackspec.Spec{
				Name:     "py-requests",
				Versions: list(t, "2.8", ""),
				Variants: map[string]bool{"socks": true},
				Platform: "linux",
				Python:   list(t, "3.8", ""),
			},
			Output: "py-requests@2.8: +socks platform=linux ^python@3.8:",
		},
		"any-versions-omitted": {
			Spec:   spackspec.Spec{Name: "py-requests", Versions: spackver.Any()},
			Output: "py-requests",
		},
	}
	for tcName, tc := range testcases {
		tc := tc
		t.Run(tcName, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tc.Output, tc.Spec.String())
		})
	}
}

func TestSpecConstrain(t *testing.T) {
	t.Parallel()
	t.Run("merge", func(t *testing.T) {
		t.Parallel()
		a := spackspec.Spec{
			Versions: list(t, "1.0", ""),
			Variants: map[string]bool{"socks": true},
		}
		b := spackspec.Spec{
			Versions: list(t, "", "2.0"),
			Platform: "linux",
			Python:   list(t, "3.8", ""),
		}
		merged, err := a.Constrain(b)
		require.NoError(t, err)
		testutil.AssertEqualDump(t, spackspec.Spec{
			Versions: list(t, "1.0", "2.0"),
			Variants: map[string]bool{"socks": true},
			Platform: "linux",
			Python:   list(t, "3.8", ""),
		}, merged)
	})
	t.Run("variant-conflict", func(t *testing.T) {
		t.Parallel()
		a := spackspec.Spec{Variants: map[string]bool{"socks": true}}
		b := spackspec.Spec{Variants: map[string]bool{"socks": false}}
		_, err := a.Constrain(b)
		assert.Error(t, err)
	})
	t.Run("platform-conflict", func(t *testing.T) {
		t.Parallel()
		a := spackspec.Spec{Platform: "linux"}
		b := spackspec.Spec{Platform: "darwin"}
		_, err := a.Constrain(b)
		assert.Error(t, err)
	})
	t.Run("version-conflict", func(t *testing.T) {
		t.Parallel()
		a := spackspec.Spec{Versions: list(t, "", "1.0")}
		b := spackspec.Spec{Versions: list(t, "2.0", "")}
		_, err := a.Constrain(b)
		assert.Error(t, err)
	})
	t.Run("python-conflict", func(t *testing.T) {
		t.Parallel()
		a := spackspec.Spec{Python: list(t, "", "3.6")}
		b := spackspec.Spec{Python: list(t, "3.8", "")}
		_, err := a.Constrain(b)
		assert.Error(t, err)
	})
	t.Run("unconstrained-identity", func(t *testing.T) {
		t.Parallel()
		a := spackspec.Spec{}
		b := spackspec.Spec{Platform: "linux", Variants: map[string]bool{"x": true}}
		merged, err := a.Constrain(b)
		require.NoError(t, err)
		assert.Equal(t, b.String(), merged.String())
	})
}

func TestSpecIsUnconstrained(t *testing.T) {
	t.Parallel()
	assert.True(t, spackspec.Spec{}.IsUnconstrained())
	assert.True(t, spackspec.Spec{Versions: spackver.Any()}.IsUnconstrained())
	assert.False(t, spackspec.Spec{Platform: "linux"}.IsUnconstrained())
	assert.False(t, spackspec.Spec{Versions: list(t, "1.0", "")}.IsUnconstrained())
	assert.False(t, spackspec.Spec{Variants: map[string]bool{"x": false}}.IsUnconstrained())
}
