// Copyright (C) 2026 RegDelta AI (contact@regdelta.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package diff

import (
	"strings"

	"github.com/pmezard/go-difflib/difflib"

	"github.com/RegDeltaAI/RegDeltaLocal/services/regdelta/datatypes"
)

// SplitParagraphs splits a section body into paragraphs: blank-line-separated
// runs of non-blank lines, trimmed at the edges. Empty paragraphs are dropped.
func SplitParagraphs(text string) []string {
	var paragraphs []string
	var buf []string

	flush := func() {
		if len(buf) == 0 {
			return
		}
		p := strings.TrimSpace(strings.Join(buf, "\n"))
		if p != "" {
			paragraphs = append(paragraphs, p)
		}
		buf = nil
	}

	for _, line := range strings.Split(text, "\n") {
		if strings.TrimSpace(line) == "" {
			flush()
			continue
		}
		buf = append(buf, line)
	}
	flush()

	return paragraphs
}

// DiffParagraphs aligns two paragraph sequences with a minimal-edit matcher
// and reports added, removed and changed paragraphs with their positional
// indices. Within a replace block, paragraphs are paired positionally; the
// surplus on either side is reported as pure additions or removals.
func DiffParagraphs(oldParas, newParas []string) []datatypes.ParagraphChange {
	matcher := difflib.NewMatcher(oldParas, newParas)

	var changes []datatypes.ParagraphChange
	for _, op := range matcher.GetOpCodes() {
		switch op.Tag {
		case 'e':
			// equal run, nothing to report
		case 'd':
			for i := op.I1; i < op.I2; i++ {
				changes = append(changes, removedParagraph(i, oldParas[i]))
			}
		case 'i':
			for j := op.J1; j < op.J2; j++ {
				changes = append(changes, addedParagraph(j, newParas[j]))
			}
		case 'r':
			oldLen := op.I2 - op.I1
			newLen := op.J2 - op.J1
			paired := oldLen
			if newLen < paired {
				paired = newLen
			}
			for k := 0; k < paired; k++ {
				oi, nj := op.I1+k, op.J1+k
				if oldParas[oi] == newParas[nj] {
					continue
				}
				changes = append(changes, datatypes.ParagraphChange{
					Kind:     datatypes.KindModified,
					OldIndex: intPtr(oi),
					NewIndex: intPtr(nj),
					Old:      oldParas[oi],
					New:      newParas[nj],
				})
			}
			for i := op.I1 + paired; i < op.I2; i++ {
				changes = append(changes, removedParagraph(i, oldParas[i]))
			}
			for j := op.J1 + paired; j < op.J2; j++ {
				changes = append(changes, addedParagraph(j, newParas[j]))
			}
		}
	}

	return changes
}

func addedParagraph(index int, text string) datatypes.ParagraphChange {
	return datatypes.ParagraphChange{
		Kind:     datatypes.KindAdded,
		NewIndex: intPtr(index),
		New:      text,
	}
}

func removedParagraph(index int, text string) datatypes.ParagraphChange {
	return datatypes.ParagraphChange{
		Kind:     datatypes.KindRemoved,
		OldIndex: intPtr(index),
		Old:      text,
	}
}

func intPtr(v int) *int { return &v }
