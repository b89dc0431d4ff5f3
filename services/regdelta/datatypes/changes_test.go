// Copyright (C) 2026 RegDelta AI (contact@regdelta.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package datatypes

import (
	"encoding/json"
	"strings"
	"testing"
)

func TestEnrich_MergesRecordAndResult(t *testing.T) {
	rec := ChangeRecord{
		Section: "2.1",
		Kind:    KindModified,
		Old:     "old body",
		New:     "new body",
		Paragraphs: []ParagraphChange{
			{Kind: KindModified, Old: "a", New: "b"},
		},
	}
	res := AnalysisResult{
		Summary:        "reworded",
		Classification: ClassificationMinorEdit,
		Impact:         "none",
	}

	enriched := Enrich(rec, res)

	if enriched.Section != "2.1" {
		t.Errorf("expected section 2.1, got %s", enriched.Section)
	}
	if enriched.Classification != ClassificationMinorEdit {
		t.Errorf("expected analyzer classification on the wire, got %s", enriched.Classification)
	}
	if enriched.Old != "old body" || enriched.New != "new body" {
		t.Error("old/new bodies must carry over unchanged")
	}
	if enriched.Summary != "reworded" || enriched.Impact != "none" {
		t.Error("analysis fields must carry over unchanged")
	}
	if len(enriched.Paragraphs) != 1 {
		t.Errorf("expected 1 paragraph change, got %d", len(enriched.Paragraphs))
	}
}

// The response contract puts the analyzer classification under change_type;
// the internal kind never appears on an enriched change.
func TestEnrichedChange_WireFieldNames(t *testing.T) {
	enriched := Enrich(
		ChangeRecord{Section: "1", Kind: KindAdded, New: "text"},
		AnalysisResult{Summary: "s", Classification: ClassificationNewRequirement, Impact: "i"},
	)

	data, err := json.Marshal(enriched)
	if err != nil {
		t.Fatalf("marshal failed: %v", err)
	}

	body := string(data)
	for _, field := range []string{
		`"section":"1"`,
		`"change_type":"New Requirement"`,
		`"change_summary":"s"`,
		`"potential_impact":"i"`,
	} {
		if !strings.Contains(body, field) {
			t.Errorf("expected %s in %s", field, body)
		}
	}
	if strings.Contains(body, "Added") {
		t.Errorf("internal kind leaked onto the wire: %s", body)
	}
}

func TestParagraphChange_OmitsAbsentIndices(t *testing.T) {
	idx := 3
	added := ParagraphChange{Kind: KindAdded, NewIndex: &idx, New: "text"}

	data, err := json.Marshal(added)
	if err != nil {
		t.Fatalf("marshal failed: %v", err)
	}
	if strings.Contains(string(data), "old_index") {
		t.Errorf("pure addition must omit old_index: %s", data)
	}
	if !strings.Contains(string(data), `"new_index":3`) {
		t.Errorf("expected new_index in %s", data)
	}
}
