// Copyright (C) 2022  Ambassador Labs
//
// SPDX-License-Identifier: Apache-2.0

// Package convert builds Spack package recipes from package-index metadata:
// it statically evaluates environment markers into when-specs, condenses
// release subsets into version ranges, and renders deterministic
// package.py manifests.
package convert

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/datawire/dlib/dlog"
	"github.com/datawire/pypi2spack/pkg/pypi"
	"github.com/datawire/pypi2spack/pkg/python/pep440"
	"github.com/datawire/pypi2spack/pkg/python/pep503"
	"github.com/datawire/pypi2spack/pkg/python/pep508"
	"github.com/datawire/pypi2spack/pkg/spack/spackspec"
	"github.com/datawire/pypi2spack/pkg/spack/spackver"
)

// Options are the tunables of a generation run.
type Options struct {
	// MaxVersions caps how many of the newest matching releases of each
	// package are processed.  Older matching releases are silently
	// ignored; no real resolver is likely to select them, and processing
	// the full history of large packages is prohibitively noisy.  This
	// is a deliberate recency bias, and it is configurable.
	MaxVersions int
	// Prefix is prepended to normalized names to form target package
	// names ("py-").
	Prefix string
	// Recurse walks the whole transitive dependency graph instead of
	// only the requested packages.
	Recurse bool
}

// ReleaseInfo is one emitted version of a Node.
type ReleaseInfo struct {
	Version pep440.Version
	SHA256  string
	Path    string
}

// PythonGroup collects the releases of a package that impose one distinct
// interpreter-version constraint.
type PythonGroup struct {
	Constraint spackver.List
	Owners     []pep440.Version
}

// EdgeItem records, for one release of the owning package, how the edge's
// marker resolved: When carries a compiled constraint, Marker carries the
// unresolved original for commented emission, and both nil means the edge
// holds unconditionally for that release.
type EdgeItem struct {
	Owner  pep440.Version
	Marker *pep508.Marker
	When   *spackspec.Spec
}

// Edge is a dependency declaration, keyed by (target name, specifier,
// requested extras), accumulated across the owning package's releases.
type Edge struct {
	Name      string
	Specifier pep440.Specifier
	Extras    []string
	Items     []EdgeItem

	seen map[string]struct{}
}

// Node is a package under generation.
type Node struct {
	Name     string
	Releases []ReleaseInfo // finals first, newest first
	Variants map[string]struct{}
	Python   map[string]*PythonGroup // keyed by rendered constraint
	Edges    map[string]*Edge

	seenVersions map[string]struct{}
}

type workItem struct {
	name   string
	spec   pep440.Specifier
	extras []string
	depth  int
}

func workKey(name string, spec pep440.Specifier, extras []string) string {
	return name + "\x00" + spec.String() + "\x00" + strings.Join(extras, ",")
}

// Generator drives the traversal.  It is single-threaded; the caches in
// Evaluator and the visited set are not safe for concurrent use.
type Generator struct {
	Index pypi.Index
	Eval  *Evaluator
	Opts  Options

	Nodes   map[string]*Node
	queue   []workItem
	visited map[string]struct{}
}

// NewGenerator assembles a Generator with fresh caches over the given
// index.
func NewGenerator(index pypi.Index, eval *Evaluator, opts Options) *Generator {
	return &Generator{
		Index:   index,
		Eval:    eval,
		Opts:    opts,
		Nodes:   make(map[string]*Node),
		visited: make(map[string]struct{}),
	}
}

// Request seeds the traversal with a requirement.  The requirement's marker
// is ignored; markers constrain edges, and a root has none.
func (g *Generator) Request(req pep508.Requirement) {
	g.enqueue(pep503.NormalizeName(req.Name), req.Specifier, req.Extras, 0)
}

func (g *Generator) enqueue(name string, spec pep440.Specifier, extras []string, depth int) {
	key := workKey(name, spec, extras)
	if _, done := g.visited[key]; done {
		return
	}
	g.visited[key] = struct{}{}
	g.queue = append(g.queue, workItem{name: name, spec: spec, extras: extras, depth: depth})
}

// Run processes the worklist to exhaustion.  Store failures are fatal;
// malformed per-release metadata is skipped with a diagnostic.
func (g *Generator) Run(ctx context.Context) error {
	for len(g.queue) > 0 {
		item := g.queue[0]
		g.queue = g.queue[1:]
		if err := g.process(ctx, item); err != nil {
			return err
		}
	}
	return nil
}

// NodeNames returns the generated package names in ascending order.
func (g *Generator) NodeNames() []string {
	names := make([]string, 0, len(g.Nodes))
	for name := range g.Nodes {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (g *Generator) node(name string) *Node {
	node, ok := g.Nodes[name]
	if !ok {
		node = &Node{
			Name:         name,
			Variants:     make(map[string]struct{}),
			Python:       make(map[string]*PythonGroup),
			Edges:        make(map[string]*Edge),
			seenVersions: make(map[string]struct{}),
		}
		g.Nodes[name] = node
	}
	return node
}

func (n *Node) addRelease(rel ReleaseInfo) {
	key := rel.Version.String()
	if _, dup := n.seenVersions[key]; dup {
		return
	}
	n.seenVersions[key] = struct{}{}
	n.Releases = append(n.Releases, rel)
}

func (n *Node) addPython(constraint spackver.List, owner pep440.Version) {
	key := constraint.String()
	group, ok := n.Python[key]
	if !ok {
		group = &PythonGroup{Constraint: constraint}
		n.Python[key] = group
	}
	for _, have := range group.Owners {
		if have.Cmp(owner) == 0 {
			return
		}
	}
	group.Owners = append(group.Owners, owner)
}

func (n *Node) edge(name string, spec pep440.Specifier, extras []string) *Edge {
	key := workKey(name, spec, extras)
	e, ok := n.Edges[key]
	if !ok {
		e = &Edge{
			Name:      name,
			Specifier: spec,
			Extras:    extras,
			seen:      make(map[string]struct{}),
		}
		n.Edges[key] = e
	}
	return e
}

func (e *Edge) add(item EdgeItem) {
	key := item.Owner.String() + "\x00"
	if item.Marker != nil {
		key += item.Marker.Text
	}
	key += "\x00"
	if item.When != nil {
		key += item.When.String()
	}
	if _, dup := e.seen[key]; dup {
		return
	}
	e.seen[key] = struct{}{}
	e.Items = append(e.Items, item)
}

func (g *Generator) process(ctx context.Context, item workItem) error {
	display := item.name
	if len(item.extras) > 0 {
		display += "[" + strings.Join(item.extras, ",") + "]"
	}
	if str := item.spec.String(); str != "" {
		display += " " + str
	}
	dlog.Infof(ctx, "%s%s", strings.Repeat("  ", item.depth), display)

	releases, err := g.Index.Releases(ctx, item.name)
	if err != nil {
		return err
	}
	if len(releases) == 0 {
		dlog.Warnf(ctx, "%s: no releases in the index", item.name)
		return nil
	}

	// Newest upload wins when the same version was uploaded repeatedly.
	byVersion := make(map[string]pypi.Release, len(releases))
	vers := make([]pep440.Version, 0, len(releases))
	for _, rel := range releases {
		if _, dup := byVersion[rel.Version]; !dup {
			ver, err := pep440.ParseVersion(rel.Version)
			if err != nil {
				dlog.Warnf(ctx, "%s: skipping unparseable version %q: %v", item.name, rel.Version, err)
				continue
			}
			vers = append(vers, *ver)
		}
		byVersion[rel.Version] = rel
	}

	// Finals before pre-releases, newest first; then apply the recency
	// cap.
	retained := make([]pep440.Version, 0, len(vers))
	for _, ver := range vers {
		if item.spec.Match(ver) {
			retained = append(retained, ver)
		}
	}
	sort.SliceStable(retained, func(i, j int) bool {
		fi, fj := !retained[i].IsPreRelease(), !retained[j].IsPreRelease()
		if fi != fj {
			return fi
		}
		return retained[i].Cmp(retained[j]) > 0
	})
	if g.Opts.MaxVersions > 0 && len(retained) > g.Opts.MaxVersions {
		dlog.Debugf(ctx, "%s: capping %d matching releases to the newest %d",
			item.name, len(retained), g.Opts.MaxVersions)
		retained = retained[:g.Opts.MaxVersions]
	}
	if len(retained) == 0 {
		dlog.Warnf(ctx, "%s: no release matches %q", item.name, item.spec.String())
		return nil
	}

	node := g.node(item.name)
	for _, extra := range item.extras {
		node.Variants[extra] = struct{}{}
	}

	for _, ver := range retained {
		rel := byVersion[ver.String()]
		if err := g.processRelease(ctx, node, item, ver, rel); err != nil {
			return err
		}
	}
	return nil
}

func (g *Generator) processRelease(
	ctx context.Context,
	node *Node,
	item workItem,
	ver pep440.Version,
	rel pypi.Release,
) error {
	// All of the release's requirements must parse before any of its
	// data is committed: a single malformed requirement drops the whole
	// release, not just the edge, since its metadata cannot be trusted.
	reqs := make([]*pep508.Requirement, 0, len(rel.RequiresDist))
	for _, str := range rel.RequiresDist {
		req, err := pep508.ParseRequirement(str)
		if err != nil {
			dlog.Warnf(ctx, "%s %s: dropping release: %v", item.name, rel.Version, err)
			return nil
		}
		reqs = append(reqs, req)
	}

	var pythonConstraint spackver.List
	if rel.RequiresPython != "" {
		spec, err := pep440.ParseSpecifier(rel.RequiresPython)
		if err != nil {
			dlog.Warnf(ctx, "%s %s: dropping release: requires_python: %v", item.name, rel.Version, err)
			return nil
		}
		result, err := g.Eval.PythonConstraint(ctx, spec)
		if err != nil {
			return err
		}
		switch result.Kind {
		case KindFalse:
			dlog.Warnf(ctx, "%s %s: dropping release: no supported interpreter satisfies %q",
				item.name, rel.Version, rel.RequiresPython)
			return nil
		case KindConstrained:
			pythonConstraint = result.Specs[0].Python
		}
	}

	node.addRelease(ReleaseInfo{Version: ver, SHA256: rel.SHA256, Path: rel.Path})
	if pythonConstraint != nil {
		node.addPython(pythonConstraint, ver)
	}

	for _, req := range reqs {
		g.processRequirement(ctx, node, item, ver, req)
	}
	return nil
}

func (g *Generator) processRequirement(
	ctx context.Context,
	node *Node,
	item workItem,
	ver pep440.Version,
	req *pep508.Requirement,
) {
	result := g.Eval.Eval(ctx, req.Marker)
	if result.Kind == KindFalse {
		return
	}

	var items []EdgeItem
	switch result.Kind {
	case KindTrue:
		items = []EdgeItem{{Owner: ver}}
	case KindUnknown:
		items = []EdgeItem{{Owner: ver, Marker: req.Marker}}
	case KindConstrained:
		for _, spec := range result.Specs {
			// A disjunct gated on a feature nobody requested does
			// not produce an edge.
			requested := true
			for variant, enabled := range spec.Variants {
				if !enabled {
					continue
				}
				if !containsString(item.extras, variant) {
					requested = false
					break
				}
			}
			if !requested {
				continue
			}
			spec := spec
			items = append(items, EdgeItem{Owner: ver, When: &spec})
			for variant := range spec.Variants {
				node.Variants[variant] = struct{}{}
			}
		}
		if len(items) == 0 {
			return
		}
	}

	depName := pep503.NormalizeName(req.Name)
	edge := node.edge(depName, req.Specifier, req.Extras)
	for _, it := range items {
		edge.add(it)
	}

	if g.Opts.Recurse {
		g.enqueue(depName, req.Specifier, req.Extras, item.depth+1)
	}
}

func containsString(haystack []string, needle string) bool {
	for _, straw := range haystack {
		if straw == needle {
			return true
		}
	}
	return false
}

// DependencyNames returns the normalized names of every package that any
// non-statically-false edge points at, in ascending order; the "list"
// command's answer.
func (g *Generator) DependencyNames() []string {
	seen := make(map[string]struct{})
	for _, node := range g.Nodes {
		for _, edge := range node.Edges {
			seen[edge.Name] = struct{}{}
		}
	}
	names := make([]string, 0, len(seen))
	for name := range seen {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// condenseOwners turns a set of owning releases into a when-range against
// the package's full known-version timeline.
func (g *Generator) condenseOwners(ctx context.Context, name string, owners []pep440.Version) (spackver.List, error) {
	if len(owners) == 0 {
		return nil, fmt.Errorf("convert: %s: no owning releases", name)
	}
	all, err := g.Eval.Lookup.Versions(ctx, name)
	if err != nil {
		return nil, err
	}
	return spackver.Condense(ctx, owners, all), nil
}
