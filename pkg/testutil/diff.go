// Copyright (C) 2022  Ambassador Labs
//
// SPDX-License-Identifier: Apache-2.0

package testutil

import (
	"testing"

	"github.com/davecgh/go-spew/spew"
	"github.com/pmezard/go-difflib/difflib"
)

//nolint:gochecknoglobals // Would be 'const'.
var spewConfig = spew.ConfigState{
	Indent:                  "  ",
	DisableMethods:          true,
	DisableCapacities:       true,
	DisablePointerAddresses: true,
	SortKeys:                true,
}

func unifiedDiff(exp, act string) string {
	diff, _ := difflib.GetUnifiedDiffString(difflib.UnifiedDiff{
		A:        difflib.SplitLines(exp),
		B:        difflib.SplitLines(act),
		FromFile: "Expected",
		FromDate: "",
		ToFile:   "Actual",
		ToDate:   "",
		Context:  1,
	})
	return diff
}

// AssertEqualText compares two multi-line strings, reporting a unified diff
// on mismatch; testify's one-line mismatch dump is unreadable for whole
// generated manifests.
func AssertEqualText(t *testing.T, exp, act string) bool {
	t.Helper()
	if exp == act {
		return true
	}
	t.Errorf("Text diff:\n%s", unifiedDiff(exp, act))
	return false
}

// AssertEqualDump compares two values by their full structural dump,
// reporting a unified diff of the dumps on mismatch.
func AssertEqualDump(t *testing.T, exp, act interface{}) bool {
	t.Helper()
	expStr := spewConfig.Sdump(exp)
	actStr := spewConfig.Sdump(act)
	if expStr == actStr {
		return true
	}
	t.Errorf("Dump diff:\n%s", unifiedDiff(expStr, actStr))
	return false
}
