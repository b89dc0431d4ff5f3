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
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/RegDeltaAI/RegDeltaLocal/services/llm"
	"github.com/RegDeltaAI/RegDeltaLocal/services/regdelta/datatypes"
	"github.com/RegDeltaAI/RegDeltaLocal/services/regdelta/observability"
)

var tracer = otel.Tracer("regdelta.analysis")

// Analyzer is the external semantic-analysis collaborator. It is opaque,
// possibly slow and possibly flaky; a returned error is never fatal to the
// pipeline, the caller folds it into the per-record result instead.
type Analyzer interface {
	AnalyzeChange(ctx context.Context, rec datatypes.ChangeRecord) (datatypes.AnalysisResult, error)
}

// LLMAnalyzer implements Analyzer over an LLM backend. Each call builds a
// self-contained prompt from the policy template, runs one Generate with a
// bounded timeout, and parses the response as a JSON AnalysisResult.
type LLMAnalyzer struct {
	client  llm.LLMClient
	policy  *Policy
	timeout time.Duration
}

// DefaultAnalyzerTimeout matches the upstream analyzer client timeout.
const DefaultAnalyzerTimeout = 120 * time.Second

func NewLLMAnalyzer(client llm.LLMClient, policy *Policy, timeout time.Duration) *LLMAnalyzer {
	if timeout <= 0 {
		timeout = DefaultAnalyzerTimeout
	}
	return &LLMAnalyzer{client: client, policy: policy, timeout: timeout}
}

// AnalyzeChange implements Analyzer.
func (a *LLMAnalyzer) AnalyzeChange(ctx context.Context, rec datatypes.ChangeRecord) (datatypes.AnalysisResult, error) {
	ctx, span := tracer.Start(ctx, "LLMAnalyzer.AnalyzeChange")
	defer span.End()
	span.SetAttributes(
		attribute.String("change.section", rec.Section),
		attribute.String("change.kind", string(rec.Kind)),
	)

	ctx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	start := time.Now()
	prompt := a.policy.BuildPrompt(rec)
	raw, err := a.client.Generate(ctx, prompt, llm.GenerationParams{})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		observability.RecordAnalyzerCall(false, time.Since(start))
		return datatypes.AnalysisResult{}, fmt.Errorf("analyzer call failed: %w", err)
	}

	result, err := parseAnalysisResponse(raw, a.policy)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		slog.Error("Failed to parse analyzer response", "section", rec.Section, "error", err)
		observability.RecordAnalyzerCall(false, time.Since(start))
		return datatypes.AnalysisResult{}, err
	}

	observability.RecordAnalyzerCall(true, time.Since(start))
	slog.Debug("Analyzer completed", "section", rec.Section, "classification", result.Classification)
	return result, nil
}

// ErrorResult is the substitute emitted for a record whose analysis failed.
// Failure is data here, not an abort condition.
func ErrorResult(err error) datatypes.AnalysisResult {
	return datatypes.AnalysisResult{
		Summary:        "Error during analysis",
		Classification: datatypes.ClassificationError,
		Impact:         err.Error(),
	}
}

// parseAnalysisResponse extracts a JSON AnalysisResult from raw model
// output. Models wrap JSON in code fences or prose often enough that we
// slice from the first '{' to the last '}' before unmarshaling.
func parseAnalysisResponse(raw string, policy *Policy) (datatypes.AnalysisResult, error) {
	start := strings.Index(raw, "{")
	end := strings.LastIndex(raw, "}")
	if start < 0 || end < start {
		return datatypes.AnalysisResult{}, fmt.Errorf("analyzer response contains no JSON object")
	}

	var result datatypes.AnalysisResult
	if err := json.Unmarshal([]byte(raw[start:end+1]), &result); err != nil {
		return datatypes.AnalysisResult{}, fmt.Errorf("malformed analyzer response: %w", err)
	}
	if result.Summary == "" {
		return datatypes.AnalysisResult{}, fmt.Errorf("analyzer response missing change_summary")
	}
	if !policy.ValidClassification(string(result.Classification)) {
		return datatypes.AnalysisResult{}, fmt.Errorf("analyzer returned unknown classification %q", result.Classification)
	}
	return result, nil
}
