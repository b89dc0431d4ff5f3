// Copyright (C) 2026 RegDelta AI (contact@regdelta.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package analysis

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/RegDeltaAI/RegDeltaLocal/services/llm"
	"github.com/RegDeltaAI/RegDeltaLocal/services/regdelta/datatypes"
)

// =============================================================================
// Test Doubles
// =============================================================================

// scriptedLLM returns a fixed response or error for every Generate call.
type scriptedLLM struct {
	response string
	err      error
	prompts  []string
}

func (s *scriptedLLM) Generate(ctx context.Context, prompt string,
	params llm.GenerationParams) (string, error) {
	s.prompts = append(s.prompts, prompt)
	if s.err != nil {
		return "", s.err
	}
	return s.response, nil
}

// =============================================================================
// Response Parsing Tests
// =============================================================================

func TestParseAnalysisResponse_CleanJSON(t *testing.T) {
	policy, err := LoadPolicy()
	require.NoError(t, err)

	raw := `{"change_summary":"Added audit rule","change_type":"New Requirement","potential_impact":"Update audit SOP"}`

	result, err := parseAnalysisResponse(raw, policy)

	require.NoError(t, err)
	assert.Equal(t, "Added audit rule", result.Summary)
	assert.Equal(t, datatypes.ClassificationNewRequirement, result.Classification)
	assert.Equal(t, "Update audit SOP", result.Impact)
}

func TestParseAnalysisResponse_FencedJSON(t *testing.T) {
	policy, err := LoadPolicy()
	require.NoError(t, err)

	raw := "Here is the analysis:\n```json\n" +
		`{"change_summary":"Reworded","change_type":"Minor Edit","potential_impact":"None"}` +
		"\n```\nLet me know if you need more."

	result, err := parseAnalysisResponse(raw, policy)

	require.NoError(t, err)
	assert.Equal(t, datatypes.ClassificationMinorEdit, result.Classification)
}

func TestParseAnalysisResponse_NoJSONObject(t *testing.T) {
	policy, err := LoadPolicy()
	require.NoError(t, err)

	_, err = parseAnalysisResponse("I could not analyze this change.", policy)

	assert.Error(t, err)
}

func TestParseAnalysisResponse_MissingSummary(t *testing.T) {
	policy, err := LoadPolicy()
	require.NoError(t, err)

	_, err = parseAnalysisResponse(`{"change_type":"Minor Edit","potential_impact":"x"}`, policy)

	assert.Error(t, err)
}

func TestParseAnalysisResponse_UnknownClassification(t *testing.T) {
	policy, err := LoadPolicy()
	require.NoError(t, err)

	raw := `{"change_summary":"s","change_type":"Totally Made Up","potential_impact":"x"}`
	_, err = parseAnalysisResponse(raw, policy)

	assert.Error(t, err)
}

// =============================================================================
// LLMAnalyzer Tests
// =============================================================================

func TestLLMAnalyzer_AnalyzeChange_Success(t *testing.T) {
	policy, err := LoadPolicy()
	require.NoError(t, err)

	client := &scriptedLLM{
		response: `{"change_summary":"Stricter retention","change_type":"Clarification of Existing Requirement","potential_impact":"Update records SOP"}`,
	}
	analyzer := NewLLMAnalyzer(client, policy, 0)

	rec := datatypes.ChangeRecord{
		Section: "3",
		Kind:    datatypes.KindModified,
		Old:     "two years",
		New:     "five years",
	}
	result, err := analyzer.AnalyzeChange(context.Background(), rec)

	require.NoError(t, err)
	assert.Equal(t, datatypes.ClassificationClarification, result.Classification)
	require.Len(t, client.prompts, 1)
	assert.Contains(t, client.prompts[0], "Section.Key: 3")
	assert.Contains(t, client.prompts[0], "five years")
}

func TestLLMAnalyzer_AnalyzeChange_BackendError(t *testing.T) {
	policy, err := LoadPolicy()
	require.NoError(t, err)

	client := &scriptedLLM{err: errors.New("connection refused")}
	analyzer := NewLLMAnalyzer(client, policy, 0)

	_, err = analyzer.AnalyzeChange(context.Background(), datatypes.ChangeRecord{Section: "1"})

	require.Error(t, err)
	assert.Contains(t, err.Error(), "analyzer call failed")
}

func TestLLMAnalyzer_AnalyzeChange_GarbageResponse(t *testing.T) {
	policy, err := LoadPolicy()
	require.NoError(t, err)

	client := &scriptedLLM{response: "not json at all"}
	analyzer := NewLLMAnalyzer(client, policy, 0)

	_, err = analyzer.AnalyzeChange(context.Background(), datatypes.ChangeRecord{Section: "1"})

	assert.Error(t, err)
}

func TestErrorResult(t *testing.T) {
	result := ErrorResult(errors.New("timeout waiting for backend"))

	assert.Equal(t, "Error during analysis", result.Summary)
	assert.Equal(t, datatypes.ClassificationError, result.Classification)
	assert.Equal(t, "timeout waiting for backend", result.Impact)
}
