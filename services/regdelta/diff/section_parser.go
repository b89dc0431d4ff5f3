// Copyright (C) 2026 RegDelta AI (contact@regdelta.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package diff implements the pure change-detection core: section parsing,
// numeric section-key ordering, paragraph alignment, detection and
// classification. Everything in this package is a pure function of its
// inputs; there is no I/O and no shared state.
package diff

import (
	"strings"
	"unicode"
)

// DuplicatePolicy controls what happens when the same section key appears
// more than once in a single document version.
type DuplicatePolicy int

const (
	// DuplicateOverwrite keeps only the last occurrence of a repeated key.
	DuplicateOverwrite DuplicatePolicy = iota

	// DuplicateAppend appends later blocks to the earlier body.
	DuplicateAppend
)

// ParseDuplicatePolicy maps a config string to a DuplicatePolicy.
// Unknown values fall back to overwrite.
func ParseDuplicatePolicy(s string) DuplicatePolicy {
	if strings.EqualFold(strings.TrimSpace(s), "append") {
		return DuplicateAppend
	}
	return DuplicateOverwrite
}

// ParseSectionHeader returns the section key when line begins with one, i.e.
// a run of digits, zero or more ".digits" groups, followed by whitespace or
// end-of-line. A trailing dot with no digit after it invalidates the whole
// match and the line is treated as body text.
func ParseSectionHeader(line string) (string, bool) {
	i, n := 0, len(line)
	if i >= n || line[i] < '0' || line[i] > '9' {
		return "", false
	}
	for i < n && line[i] >= '0' && line[i] <= '9' {
		i++
	}
	for i < n && line[i] == '.' {
		i++
		if i >= n || line[i] < '0' || line[i] > '9' {
			// malformed, e.g. "1.2." or "3.x"
			return "", false
		}
		for i < n && line[i] >= '0' && line[i] <= '9' {
			i++
		}
	}
	if i == n || unicode.IsSpace(rune(line[i])) {
		return line[:i], true
	}
	return "", false
}

// ParseSections splits raw text into a mapping of section key to text block.
//
// A section starts on a line where ParseSectionHeader matches; every line
// from the header (inclusive) up to the next header belongs to that section,
// verbatim except trailing-newline trimming. Lines before the first header
// are discarded. Single forward scan, linear in input size.
func ParseSections(text string, policy DuplicatePolicy) map[string]string {
	sections := make(map[string]string)
	lines := strings.Split(text, "\n")

	var current string
	var buf []string

	flush := func() {
		if current == "" {
			return
		}
		block := strings.TrimRight(strings.Join(buf, "\n"), "\n")
		if prev, seen := sections[current]; seen && policy == DuplicateAppend {
			sections[current] = prev + "\n" + block
		} else {
			sections[current] = block
		}
		buf = nil
	}

	for _, line := range lines {
		if key, ok := ParseSectionHeader(line); ok {
			flush()
			current = key
			buf = []string{line}
			continue
		}
		if current != "" {
			buf = append(buf, line)
		}
	}
	flush()

	return sections
}
