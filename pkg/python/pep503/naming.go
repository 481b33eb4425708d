// Copyright (C) 2022  Ambassador Labs
//
// SPDX-License-Identifier: Apache-2.0

// Package pep503 implements PEP 503 -- Simple Repository API.
//
// Well, just the part of PEP 503 that outlives the repository API itself: the
// package-name normalization rule that every index and every tool must agree
// on.
//
// https://www.python.org/dev/peps/pep-0503/
package pep503

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

//nolint:gochecknoglobals // Would be 'const'.
var reNameSeparators = regexp.MustCompile("[-_.]+")

// NormalizeName normalizes a package name: case-folded, with runs of ".",
// "-", and "_" collapsed to a single "-".
func NormalizeName(str string) string {
	return strings.ToLower(reNameSeparators.ReplaceAllLiteralString(str, "-"))
}

// ValidateName returns an error if the name contains characters that are not
// legal in a package name; "the only valid characters in a name are the ASCII
// alphabet, ASCII numbers, `.`, `-`, and `_`."
func ValidateName(pkgname string) error {
	for _, char := range pkgname {
		if !(('a' <= char && char <= 'z') ||
			('A' <= char && char <= 'Z') ||
			('0' <= char && char <= '9') ||
			char == '.' ||
			char == '-' ||
			char == '_') {
			return fmt.Errorf("illegal character in pkgname: %q: %s",
				pkgname, strconv.QuoteRuneToASCII(char))
		}
	}
	return nil
}
