// Copyright (C) 2022  Ambassador Labs
//
// SPDX-License-Identifier: Apache-2.0

package pypi

import (
	"context"
	"fmt"

	"github.com/datawire/dlib/dlog"
	"github.com/datawire/pypi2spack/pkg/python/pep440"
)

// KnownPythonVersions returns the CPython releases assumed to exist:
// every patch level from .0 up to the newest at the time the table was
// last refreshed, for each supported minor line.  The interpreter is not
// in the index (it is not a package), so interpreter-version constraints
// are resolved against this table instead, and patch-level bounds like
// `python_full_version < "3.9.7"` need the intermediate patch releases
// present to resolve precisely.
func KnownPythonVersions() []pep440.Version {
	table := [][3]int{ // {major, minor, newest patch}
		{3, 7, 17},
		{3, 8, 18},
		{3, 9, 18},
		{3, 10, 13},
		{3, 11, 7},
		{3, 12, 1},
		{3, 13, 0},
	}
	var ret []pep440.Version
	for _, t := range table {
		for p := 0; p <= t[2]; p++ {
			ret = append(ret, pep440.Version{
				PublicVersion: pep440.PublicVersion{Release: []int{t[0], t[1], p}},
			})
		}
	}
	return ret
}

// Lookup memoizes the sorted, parseable versions of each package for the
// lifetime of one run.  The same name is looked up once per distinct
// constraint per release that declares it; the snapshot is read-only, so
// entries never go stale.
type Lookup struct {
	Index        Index
	KnownPythons []pep440.Version

	memo map[string][]pep440.Version
}

// Versions returns the package's versions in ascending order.  Versions
// that do not parse are dropped with a diagnostic.  The name "python"
// resolves to the known-CPython table.
func (l *Lookup) Versions(ctx context.Context, name string) ([]pep440.Version, error) {
	if name == "python" {
		return l.KnownPythons, nil
	}
	if vers, ok := l.memo[name]; ok {
		return vers, nil
	}

	releases, err := l.Index.Releases(ctx, name)
	if err != nil {
		return nil, err
	}
	seen := make(map[string]struct{}, len(releases))
	vers := make([]pep440.Version, 0, len(releases))
	for _, rel := range releases {
		if _, dup := seen[rel.Version]; dup {
			continue
		}
		seen[rel.Version] = struct{}{}
		ver, err := pep440.ParseVersion(rel.Version)
		if err != nil {
			dlog.Warnf(ctx, "%s: skipping unparseable version %q: %v", name, rel.Version, err)
			continue
		}
		vers = append(vers, *ver)
	}
	pep440.Sort(vers)

	if l.memo == nil {
		l.memo = make(map[string][]pep440.Version)
	}
	l.memo[name] = vers
	return vers, nil
}

// Sanity check that the known-python table is ascending; it is edited by
// hand.
func init() {
	vers := KnownPythonVersions()
	for i := 1; i < len(vers); i++ {
		if vers[i-1].Cmp(vers[i]) >= 0 {
			panic(fmt.Sprintf("pypi: known python versions out of order at %v", vers[i]))
		}
	}
}
