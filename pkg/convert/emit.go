// Copyright (C) 2022  Ambassador Labs
//
// SPDX-License-Identifier: Apache-2.0

package convert

import (
	"context"
	"fmt"
	"path"
	"sort"
	"strings"

	"github.com/datawire/dlib/dlog"
	"github.com/datawire/pypi2spack/pkg/python/pep440"
	"github.com/datawire/pypi2spack/pkg/spack/spackspec"
	"github.com/datawire/pypi2spack/pkg/spack/spackver"
)

// ClassName converts a target package name to its recipe class name:
// "py-typing-extensions" becomes "PyTypingExtensions".
func ClassName(target string) string {
	var ret strings.Builder
	for _, part := range strings.Split(target, "-") {
		if part == "" {
			continue
		}
		ret.WriteString(strings.ToUpper(part[:1]))
		ret.WriteString(part[1:])
	}
	return ret.String()
}

func sourceURL(rel ReleaseInfo) string {
	if strings.HasPrefix(rel.Path, "http://") || strings.HasPrefix(rel.Path, "https://") {
		return rel.Path
	}
	return "https://files.pythonhosted.org/packages/" + rel.Path
}

// depLine is one rendered depends_on declaration, with the keys it sorts
// on.
type depLine struct {
	name    string
	target  string
	when    string
	comment string // unresolved marker text; non-empty means commented out
}

func (l depLine) render() string {
	var ret strings.Builder
	if l.comment != "" {
		ret.WriteString("# ")
	}
	ret.WriteString(`depends_on("`)
	ret.WriteString(l.target)
	ret.WriteString(`"`)
	if l.when != "" {
		ret.WriteString(`, when="`)
		ret.WriteString(l.when)
		ret.WriteString(`"`)
	}
	ret.WriteString(")")
	if l.comment != "" {
		ret.WriteString("  # ")
		ret.WriteString(l.comment)
	}
	return ret.String()
}

// Manifest renders the package.py recipe for a generated node.  The output
// is deterministic: versions newest first, variants sorted, dependency
// declarations ordered by target name ascending, then when-spec descending,
// then target spec descending, independent of traversal order.
func (g *Generator) Manifest(ctx context.Context, name string) (string, error) {
	node, ok := g.Nodes[name]
	if !ok {
		return "", fmt.Errorf("convert: no generated package %q", name)
	}

	releases := append([]ReleaseInfo(nil), node.Releases...)
	sort.SliceStable(releases, func(i, j int) bool {
		return releases[i].Version.Cmp(releases[j].Version) > 0
	})

	var b strings.Builder
	b.WriteString("# Generated by pypi2spack; review before committing.\n")
	b.WriteString("\nfrom spack.package import *\n\n\n")
	fmt.Fprintf(&b, "class %s(PythonPackage):\n", ClassName(g.Opts.Prefix+name))

	if len(releases) > 0 && releases[0].Path != "" {
		fmt.Fprintf(&b, "    pypi = %q\n\n", name+"/"+path.Base(releases[0].Path))
	}

	for _, rel := range releases {
		ver := spackver.FromPEP440(ctx, rel.Version)
		fmt.Fprintf(&b, "    version(%q, sha256=%q, url=%q)\n",
			ver.String(), rel.SHA256, sourceURL(rel))
	}

	variants := make([]string, 0, len(node.Variants))
	for variant := range node.Variants {
		variants = append(variants, variant)
	}
	sort.Strings(variants)
	if len(variants) > 0 {
		b.WriteString("\n")
		for _, variant := range variants {
			fmt.Fprintf(&b, "    variant(%q, default=False)\n", variant)
		}
	}

	pythonLines, err := g.pythonLines(ctx, node)
	if err != nil {
		return "", err
	}
	depLines, err := g.depLines(ctx, node)
	if err != nil {
		return "", err
	}
	if len(pythonLines) > 0 || len(depLines) > 0 {
		b.WriteString("\n    with default_args(deptype=(\"build\", \"run\")):\n")
		for _, line := range pythonLines {
			b.WriteString("        " + line.render() + "\n")
		}
		for _, line := range depLines {
			b.WriteString("        " + line.render() + "\n")
		}
	}

	return b.String(), nil
}

// pythonLines renders the per-constraint interpreter dependencies, each
// scoped by condensing its owning releases into a when-range.
func (g *Generator) pythonLines(ctx context.Context, node *Node) ([]depLine, error) {
	lines := make([]depLine, 0, len(node.Python))
	for _, group := range node.Python {
		whenList, err := g.condenseOwners(ctx, node.Name, group.Owners)
		if err != nil {
			return nil, err
		}
		line := depLine{
			name:   "python",
			target: "python@" + group.Constraint.String(),
		}
		if !whenList.IsAny() {
			line.when = "@" + whenList.String()
		}
		lines = append(lines, line)
	}
	sort.Slice(lines, func(i, j int) bool {
		if lines[i].when != lines[j].when {
			return lines[i].when > lines[j].when
		}
		return lines[i].target > lines[j].target
	})
	return lines, nil
}

func (g *Generator) depLines(ctx context.Context, node *Node) ([]depLine, error) {
	var lines []depLine
	for _, edge := range node.Edges {
		edgeLines, err := g.edgeLines(ctx, node, edge)
		if err != nil {
			return nil, err
		}
		lines = append(lines, edgeLines...)
	}
	sort.Slice(lines, func(i, j int) bool {
		if lines[i].name != lines[j].name {
			return lines[i].name < lines[j].name
		}
		if lines[i].when != lines[j].when {
			return lines[i].when > lines[j].when
		}
		return lines[i].target > lines[j].target
	})
	return lines, nil
}

func (g *Generator) edgeLines(ctx context.Context, node *Node, edge *Edge) ([]depLine, error) {
	targetList, err := g.Eval.VersionList(ctx, edge.Name, edge.Specifier)
	if err != nil {
		return nil, err
	}
	if targetList.IsEmpty() && edge.Specifier.String() != "" {
		dlog.Warnf(ctx, "%s: no version of %s satisfies %q; omitting the range",
			node.Name, edge.Name, edge.Specifier.String())
		targetList = nil
	}
	target := spackspec.Spec{
		Name: g.Opts.Prefix + edge.Name,
	}
	if targetList != nil && !targetList.IsAny() {
		target.Versions = targetList
	}
	if len(edge.Extras) > 0 {
		target.Variants = make(map[string]bool, len(edge.Extras))
		for _, extra := range edge.Extras {
			target.Variants[extra] = true
		}
	}
	targetStr := target.String()

	// Group the per-release records by how the marker resolved, and
	// condense each group's owners into a when-range.
	type groupKey struct {
		marker string
		when   string
	}
	groups := make(map[groupKey]*struct {
		item   EdgeItem
		owners []pep440.Version
	})
	for _, item := range edge.Items {
		key := groupKey{}
		if item.Marker != nil {
			key.marker = item.Marker.Text
		}
		if item.When != nil {
			key.when = item.When.String()
		}
		group, ok := groups[key]
		if !ok {
			group = &struct {
				item   EdgeItem
				owners []pep440.Version
			}{item: item}
			groups[key] = group
		}
		group.owners = append(group.owners, item.Owner)
	}

	lines := make([]depLine, 0, len(groups))
	for _, group := range groups {
		whenList, err := g.condenseOwners(ctx, node.Name, group.owners)
		if err != nil {
			return nil, err
		}
		when := spackspec.Spec{}
		if !whenList.IsAny() {
			when.Versions = whenList
		}
		if group.item.When != nil {
			when, err = when.Constrain(*group.item.When)
			if err != nil {
				dlog.Warnf(ctx, "%s -> %s: dropping unsatisfiable condition: %v",
					node.Name, edge.Name, err)
				continue
			}
		}
		line := depLine{
			name:   edge.Name,
			target: targetStr,
		}
		if !when.IsUnconstrained() {
			line.when = when.String()
		}
		if group.item.Marker != nil {
			line.comment = group.item.Marker.Text
		}
		lines = append(lines, line)
	}
	return lines, nil
}
