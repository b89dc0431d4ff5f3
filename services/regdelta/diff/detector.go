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
	"github.com/RegDeltaAI/RegDeltaLocal/services/regdelta/datatypes"
)

// DetectOptions configures a detection pass.
type DetectOptions struct {
	// Policy decides how repeated section headers inside one version merge.
	Policy DuplicatePolicy

	// ParagraphDetail attaches paragraph-level changes to Modified records.
	ParagraphDetail bool
}

// DetectChanges compares two document versions and returns the ordered list
// of section-level changes. Every key present in either version is covered;
// sections with identical bodies are dropped. Order is always numeric
// section-key order, so the result is deterministic for a given input pair.
//
// This is pure computation: no I/O, no external calls, idempotent.
func DetectChanges(oldText, newText string, opts DetectOptions) []datatypes.ChangeRecord {
	oldMap := ParseSections(oldText, opts.Policy)
	newMap := ParseSections(newText, opts.Policy)

	keys := make([]string, 0, len(oldMap)+len(newMap))
	for key := range oldMap {
		keys = append(keys, key)
	}
	for key := range newMap {
		if _, inOld := oldMap[key]; !inOld {
			keys = append(keys, key)
		}
	}
	SortSectionKeys(keys)

	var records []datatypes.ChangeRecord
	for _, key := range keys {
		rec := datatypes.ChangeRecord{
			Section: key,
			Old:     oldMap[key],
			New:     newMap[key],
		}
		if ClassifyRecord(&rec) == datatypes.KindUnchanged {
			continue
		}
		if opts.ParagraphDetail && rec.Kind == datatypes.KindModified {
			rec.Paragraphs = DiffParagraphs(SplitParagraphs(rec.Old), SplitParagraphs(rec.New))
		}
		records = append(records, rec)
	}

	return records
}
