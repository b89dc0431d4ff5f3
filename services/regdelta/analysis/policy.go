// Copyright (C) 2026 RegDelta AI (contact@regdelta.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package analysis turns detected change records into enriched changes by
// calling an external LLM analyzer, and streams the results to the caller in
// detection order. The prompt template, allowed classification labels, and
// the canned result for removed sections are loaded from a policy file
// embedded in the binary.
package analysis

import (
	_ "embed"
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/RegDeltaAI/RegDeltaLocal/services/regdelta/datatypes"
)

//go:embed analysis_policy.yaml
var defaultPolicyYAML []byte

// Policy holds the analyzer configuration loaded from the embedded YAML.
type Policy struct {
	PromptTemplate  string   `yaml:"prompt_template"`
	Classifications []string `yaml:"classifications"`
	Removed         struct {
		Summary        string `yaml:"change_summary"`
		Classification string `yaml:"change_type"`
		Impact         string `yaml:"potential_impact"`
	} `yaml:"removed_result"`
}

// LoadPolicy parses the policy definitions embedded in the binary.
func LoadPolicy() (*Policy, error) {
	var p Policy
	if err := yaml.Unmarshal(defaultPolicyYAML, &p); err != nil {
		return nil, fmt.Errorf("failed to unmarshal the embedded analysis policy: %w", err)
	}
	if strings.TrimSpace(p.PromptTemplate) == "" {
		return nil, fmt.Errorf("analysis policy has an empty prompt template")
	}
	if len(p.Classifications) == 0 {
		return nil, fmt.Errorf("analysis policy has no classification labels")
	}
	return &p, nil
}

// BuildPrompt renders the analyzer prompt for one change record. The prompt
// carries only this record's data; calls are stateless by design.
func (p *Policy) BuildPrompt(rec datatypes.ChangeRecord) string {
	quoted := make([]string, len(p.Classifications))
	for i, c := range p.Classifications {
		quoted[i] = "'" + c + "'"
	}
	replacer := strings.NewReplacer(
		"{{section}}", rec.Section,
		"{{change_kind}}", string(rec.Kind),
		"{{old}}", rec.Old,
		"{{new}}", rec.New,
		"{{classifications}}", strings.Join(quoted, ","),
	)
	return replacer.Replace(p.PromptTemplate)
}

// ValidClassification reports whether the analyzer returned one of the
// labels the policy allows.
func (p *Policy) ValidClassification(label string) bool {
	for _, c := range p.Classifications {
		if c == label {
			return true
		}
	}
	return false
}

// RemovedResult is the canned analysis substituted for removed sections,
// which are never sent to the analyzer.
func (p *Policy) RemovedResult() datatypes.AnalysisResult {
	return datatypes.AnalysisResult{
		Summary:        p.Removed.Summary,
		Classification: datatypes.Classification(p.Removed.Classification),
		Impact:         p.Removed.Impact,
	}
}
