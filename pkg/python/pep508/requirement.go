// Copyright (C) 2022  Ambassador Labs
//
// SPDX-License-Identifier: Apache-2.0

// Package pep508 implements PEP 508 -- Dependency specification for Python
// Software Packages; the requirement-string syntax used by the
// "Requires-Dist" metadata field, including environment markers.
//
// https://www.python.org/dev/peps/pep-0508/
package pep508

import (
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/datawire/pypi2spack/pkg/python/pep440"
)

// Requirement is a parsed dependency specification:
//
//	name [extras] specifier [; marker]
type Requirement struct {
	Name      string
	Extras    []string
	Specifier pep440.Specifier
	Marker    *Marker
}

//nolint:gochecknoglobals // Would be 'const'.
var reRequirement = regexp.MustCompile(`^\s*` +
	`(?P<name>[A-Za-z0-9](?:[A-Za-z0-9._-]*[A-Za-z0-9])?)` +
	`\s*(?:\[(?P<extras>[^\]]*)\])?` +
	`\s*(?P<spec>[^;]*?)` +
	`\s*(?:;\s*(?P<marker>.+?)\s*)?$`)

// ParseRequirement parses a requirement string.  URL requirements
// ("name @ url") are not supported; neither is the "===" arbitrary-equality
// operator, because neither can be mapped onto an ordered version scheme.
func ParseRequirement(str string) (*Requirement, error) {
	match := reRequirement.FindStringSubmatch(str)
	if match == nil {
		return nil, fmt.Errorf("pep508.ParseRequirement: invalid requirement: %q", str)
	}

	ret := &Requirement{
		Name: match[reRequirement.SubexpIndex("name")],
	}

	if extras := match[reRequirement.SubexpIndex("extras")]; extras != "" {
		for _, extra := range strings.Split(extras, ",") {
			extra = strings.TrimSpace(extra)
			if extra == "" {
				continue
			}
			ret.Extras = append(ret.Extras, extra)
		}
		sort.Strings(ret.Extras)
	}

	specStr := match[reRequirement.SubexpIndex("spec")]
	if strings.HasPrefix(specStr, "@") {
		return nil, fmt.Errorf("pep508.ParseRequirement: URL requirements are not supported: %q", str)
	}
	// The specifier may be parenthesized: "name (>=1.0)".
	specStr = strings.TrimSpace(specStr)
	if strings.HasPrefix(specStr, "(") && strings.HasSuffix(specStr, ")") {
		specStr = specStr[1 : len(specStr)-1]
	}
	spec, err := pep440.ParseSpecifier(specStr)
	if err != nil {
		return nil, fmt.Errorf("pep508.ParseRequirement: %q: %w", str, err)
	}
	ret.Specifier = spec

	if markerStr := match[reRequirement.SubexpIndex("marker")]; markerStr != "" {
		marker, err := ParseMarker(markerStr)
		if err != nil {
			return nil, fmt.Errorf("pep508.ParseRequirement: %q: %w", str, err)
		}
		ret.Marker = marker
	}

	return ret, nil
}

// String implements fmt.Stringer.
func (r Requirement) String() string {
	var ret strings.Builder
	ret.WriteString(r.Name)
	if len(r.Extras) > 0 {
		ret.WriteString("[")
		ret.WriteString(strings.Join(r.Extras, ","))
		ret.WriteString("]")
	}
	if len(r.Specifier) > 0 {
		ret.WriteString(r.Specifier.String())
	}
	if r.Marker != nil {
		ret.WriteString("; ")
		ret.WriteString(r.Marker.Text)
	}
	return ret.String()
}
