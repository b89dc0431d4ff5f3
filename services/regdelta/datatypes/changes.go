// Copyright (C) 2026 RegDelta AI (contact@regdelta.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package datatypes holds the shared data model for the RegDelta pipeline:
// detected section changes, paragraph-level detail, and analyzer results.
package datatypes

// ChangeKind is the internal change category derived purely from the old and
// new text of a section. It drives control flow (which records are analyzed,
// which get canned results) and never appears on the wire verbatim.
type ChangeKind string

const (
	KindAdded     ChangeKind = "Added"
	KindRemoved   ChangeKind = "Removed"
	KindModified  ChangeKind = "Modified"
	KindUnchanged ChangeKind = "Unchanged"
)

// ParagraphChange is fine-grained detail inside a Modified section.
// Indices are positions in the old/new paragraph sequences; a pure addition
// has no old index and a pure removal has no new index.
type ParagraphChange struct {
	Kind     ChangeKind `json:"kind"`
	OldIndex *int       `json:"old_index,omitempty"`
	NewIndex *int       `json:"new_index,omitempty"`
	Old      string     `json:"old,omitempty"`
	New      string     `json:"new,omitempty"`
}

// ChangeRecord is one detected difference tied to a single section key.
// Old and New carry the full section bodies; exactly one of them is empty
// for Added/Removed records.
type ChangeRecord struct {
	Section    string            `json:"section"`
	Kind       ChangeKind        `json:"change_type"`
	Old        string            `json:"old"`
	New        string            `json:"new"`
	Paragraphs []ParagraphChange `json:"paragraphs,omitempty"`
}

// Classification is the external, domain-specific taxonomy produced by the
// analyzer (or its canned substitute). Kept separate from ChangeKind on
// purpose: the two namespaces must never be conflated.
type Classification string

const (
	ClassificationNewRequirement Classification = "New Requirement"
	ClassificationClarification  Classification = "Clarification of Existing Requirement"
	ClassificationDeletion       Classification = "Deletion of Requirement"
	ClassificationMinorEdit      Classification = "Minor Edit"
	ClassificationError          Classification = "Error"
)

// AnalysisResult is what the analyzer returns for a single change.
type AnalysisResult struct {
	Summary        string         `json:"change_summary"`
	Classification Classification `json:"change_type"`
	Impact         string         `json:"potential_impact"`
}

// EnrichedChange is the unit actually emitted to the caller: a change record
// merged with its analysis result. The wire change_type is the analyzer
// classification, matching the response contract.
type EnrichedChange struct {
	Section        string            `json:"section"`
	Classification Classification    `json:"change_type"`
	Old            string            `json:"old"`
	New            string            `json:"new"`
	Summary        string            `json:"change_summary"`
	Impact         string            `json:"potential_impact"`
	Paragraphs     []ParagraphChange `json:"paragraphs,omitempty"`
}

// Enrich merges a change record with its analysis result.
func Enrich(rec ChangeRecord, res AnalysisResult) EnrichedChange {
	return EnrichedChange{
		Section:        rec.Section,
		Classification: res.Classification,
		Old:            rec.Old,
		New:            rec.New,
		Summary:        res.Summary,
		Impact:         res.Impact,
		Paragraphs:     rec.Paragraphs,
	}
}
