// Copyright (C) 2022  Ambassador Labs
//
// SPDX-License-Identifier: Apache-2.0

package pep508_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/datawire/pypi2spack/pkg/python/pep508"
)

func TestParseRequirement(t *testing.T) {
	t.Parallel()
	type testcase struct {
		Input     string
		Name      string
		Extras    []string
		Specifier string
		Marker    string
		Err       bool
	}
	testcases := map[string]testcase{
		"bare": {
			Input: "requests",
			Name:  "requests",
		},
		"specifier": {
			Input:     "requests>=2.8.1",
			Name:      "requests",
			Specifier: ">=2.8.1",
		},
		"multi-clause": {
			Input:     "requests >= 2.8.1, == 2.8.*",
			Name:      "requests",
			Specifier: ">=2.8.1,==2.8.*",
		},
		"parenthesized": {
			Input:     "requests (>=2.8.1)",
			Name:      "requests",
			Specifier: ">=2.8.1",
		},
		"extras": {
			Input:  "requests[security,socks]",
			Name:   "requests",
			Extras: []string{"security", "socks"},
		},
		"extras-sorted": {
			Input:  "requests[socks,security]",
			Name:   "requests",
			Extras: []string{"security", "socks"},
		},
		"marker": {
			Input:  `requests ; python_version >= "3.8"`,
			Name:   "requests",
			Marker: `python_version >= "3.8"`,
		},
		"everything": {
			Input:     `requests[security] >= 2.8.1 ; python_version < "2.7" and extra == "test"`,
			Name:      "requests",
			Extras:    []string{"security"},
			Specifier: ">=2.8.1",
			Marker:    `python_version < "2.7" and extra == "test"`,
		},
		"name-case-preserved": {
			Input: "Django>=3.2",
			Name:  "Django",
			Specifier: ">=3.2",
		},
		"url-requirement": {
			Input: "pip @ https://github.com/pypa/pip/archive/22.0.2.zip",
			Err:   true,
		},
		"bad-name": {
			Input: "-requests",
			Err:   true,
		},
		"bad-specifier": {
			Input: "requests >= bogus!",
			Err:   true,
		},
		"bad-marker": {
			Input: "requests ; python_version >",
			Err:   true,
		},
		"empty": {
			Input: "",
			Err:   true,
		},
	}
	for tcName, tc := range testcases {
		tc := tc
		t.Run(tcName, func(t *testing.T) {
			t.Parallel()
			req, err := pep508.ParseRequirement(tc.Input)
			if tc.Err {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			require.NotNil(t, req)
			assert.Equal(t, tc.Name, req.Name)
			assert.Equal(t, tc.Extras, req.Extras)
			assert.Equal(t, tc.Specifier, req.Specifier.String())
			if tc.Marker == "" {
				assert.Nil(t, req.Marker)
			} else {
				require.NotNil(t, req.Marker)
				assert.Equal(t, tc.Marker, req.Marker.Text)
			}
		})
	}
}
