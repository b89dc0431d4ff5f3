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
	"errors"
	"fmt"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/RegDeltaAI/RegDeltaLocal/services/regdelta/datatypes"
)

// =============================================================================
// Test Doubles
// =============================================================================

// fakeAnalyzer resolves each section with a configurable delay, an error, or
// a canned result. It counts calls so tests can assert which records reached
// the analyzer at all.
type fakeAnalyzer struct {
	delays map[string]time.Duration
	fail   map[string]error
	calls  atomic.Int64
}

func (f *fakeAnalyzer) AnalyzeChange(ctx context.Context,
	rec datatypes.ChangeRecord) (datatypes.AnalysisResult, error) {

	f.calls.Add(1)
	if d, ok := f.delays[rec.Section]; ok {
		select {
		case <-time.After(d):
		case <-ctx.Done():
			return datatypes.AnalysisResult{}, ctx.Err()
		}
	}
	if err, ok := f.fail[rec.Section]; ok {
		return datatypes.AnalysisResult{}, err
	}
	return datatypes.AnalysisResult{
		Summary:        "analysis of section " + rec.Section,
		Classification: datatypes.ClassificationMinorEdit,
		Impact:         "none",
	}, nil
}

func testPolicy(t *testing.T) *Policy {
	t.Helper()
	policy, err := LoadPolicy()
	require.NoError(t, err)
	return policy
}

func modifiedRecords(sections ...string) []datatypes.ChangeRecord {
	records := make([]datatypes.ChangeRecord, len(sections))
	for i, s := range sections {
		records[i] = datatypes.ChangeRecord{
			Section: s,
			Kind:    datatypes.KindModified,
			Old:     "old " + s,
			New:     "new " + s,
		}
	}
	return records
}

func decodeStream(t *testing.T, body string) []datatypes.EnrichedChange {
	t.Helper()
	var out struct {
		Changes []datatypes.EnrichedChange `json:"changes"`
	}
	require.NoError(t, json.Unmarshal([]byte(body), &out),
		"stream body must be valid JSON once complete: %s", body)
	return out.Changes
}

// =============================================================================
// Streaming Tests
// =============================================================================

func TestStreamer_EmitsInDetectionOrder(t *testing.T) {
	// Section 1 resolves last; with concurrency 2 both run at once and the
	// fast result for section 2 must wait in its slot.
	analyzer := &fakeAnalyzer{delays: map[string]time.Duration{
		"1": 80 * time.Millisecond,
		"2": 5 * time.Millisecond,
	}}
	streamer := NewStreamer(analyzer, testPolicy(t), StreamerConfig{Concurrency: 2})

	var buf strings.Builder
	err := streamer.Stream(context.Background(), modifiedRecords("1", "2"), &buf, func() {})

	require.NoError(t, err)
	changes := decodeStream(t, buf.String())
	require.Len(t, changes, 2)
	assert.Equal(t, "1", changes[0].Section)
	assert.Equal(t, "2", changes[1].Section)
}

func TestStreamer_FailureIsolatedToItsRecord(t *testing.T) {
	analyzer := &fakeAnalyzer{fail: map[string]error{
		"2": errors.New("backend exploded"),
	}}
	streamer := NewStreamer(analyzer, testPolicy(t), StreamerConfig{Concurrency: 1})

	var buf strings.Builder
	err := streamer.Stream(context.Background(), modifiedRecords("1", "2", "3"), &buf, func() {})

	require.NoError(t, err, "an analyzer failure must not abort the stream")
	changes := decodeStream(t, buf.String())
	require.Len(t, changes, 3)

	assert.Equal(t, datatypes.ClassificationMinorEdit, changes[0].Classification)
	assert.Equal(t, datatypes.ClassificationError, changes[1].Classification)
	assert.Equal(t, "Error during analysis", changes[1].Summary)
	assert.Contains(t, changes[1].Impact, "backend exploded")
	assert.Equal(t, datatypes.ClassificationMinorEdit, changes[2].Classification)
}

func TestStreamer_RemovedSkipsAnalyzer(t *testing.T) {
	analyzer := &fakeAnalyzer{}
	streamer := NewStreamer(analyzer, testPolicy(t), StreamerConfig{Concurrency: 1})

	records := []datatypes.ChangeRecord{
		{Section: "2", Kind: datatypes.KindRemoved, Old: "gone body"},
	}

	var buf strings.Builder
	err := streamer.Stream(context.Background(), records, &buf, func() {})

	require.NoError(t, err)
	assert.Equal(t, int64(0), analyzer.calls.Load(), "removed records never reach the analyzer")

	changes := decodeStream(t, buf.String())
	require.Len(t, changes, 1)
	assert.Equal(t, "Section removed", changes[0].Summary)
	assert.Equal(t, datatypes.ClassificationDeletion, changes[0].Classification)
	assert.Equal(t, "Verify removal in SOPs.", changes[0].Impact)
	assert.Equal(t, "gone body", changes[0].Old)
}

func TestStreamer_EmptyRecordsProduceEmptyArray(t *testing.T) {
	streamer := NewStreamer(&fakeAnalyzer{}, testPolicy(t), StreamerConfig{Concurrency: 1})

	var buf strings.Builder
	err := streamer.Stream(context.Background(), nil, &buf, func() {})

	require.NoError(t, err)
	assert.Equal(t, `{"changes":[]}`, buf.String())
}

func TestStreamer_CancellationStopsStream(t *testing.T) {
	analyzer := &fakeAnalyzer{delays: map[string]time.Duration{
		"1": 5 * time.Second,
	}}
	streamer := NewStreamer(analyzer, testPolicy(t), StreamerConfig{Concurrency: 1})

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()

	var buf strings.Builder
	err := streamer.Stream(ctx, modifiedRecords("1", "2"), &buf, func() {})

	require.ErrorIs(t, err, context.Canceled)
	assert.False(t, strings.HasSuffix(buf.String(), "]}"), "stream must be cut off, not closed")
}

func TestStreamer_IncrementalFlushing(t *testing.T) {
	analyzer := &fakeAnalyzer{}
	streamer := NewStreamer(analyzer, testPolicy(t), StreamerConfig{Concurrency: 1})

	flushes := 0
	var buf strings.Builder
	err := streamer.Stream(context.Background(), modifiedRecords("1", "2", "3"), &buf,
		func() { flushes++ })

	require.NoError(t, err)
	// Opening frame, one flush per element, closing frame.
	assert.Equal(t, 5, flushes)
}

func TestStreamer_PacingDelaysDispatch(t *testing.T) {
	analyzer := &fakeAnalyzer{}
	streamer := NewStreamer(analyzer, testPolicy(t), StreamerConfig{
		Concurrency: 1,
		Pacing:      30 * time.Millisecond,
	})

	start := time.Now()
	var buf strings.Builder
	err := streamer.Stream(context.Background(), modifiedRecords("1", "2", "3"), &buf, func() {})

	require.NoError(t, err)
	// First dispatch is immediate, the next two wait one interval each.
	assert.GreaterOrEqual(t, time.Since(start), 60*time.Millisecond)
}

func TestStreamer_ConcurrencyBoundRespected(t *testing.T) {
	var inFlight, peak atomic.Int64
	analyzer := &gaugeAnalyzer{inFlight: &inFlight, peak: &peak}
	streamer := NewStreamer(analyzer, testPolicy(t), StreamerConfig{Concurrency: 2})

	var buf strings.Builder
	err := streamer.Stream(context.Background(), modifiedRecords("1", "2", "3", "4", "5"), &buf, func() {})

	require.NoError(t, err)
	assert.LessOrEqual(t, peak.Load(), int64(2))
}

// gaugeAnalyzer tracks the peak number of concurrent AnalyzeChange calls.
type gaugeAnalyzer struct {
	inFlight *atomic.Int64
	peak     *atomic.Int64
}

func (g *gaugeAnalyzer) AnalyzeChange(ctx context.Context,
	rec datatypes.ChangeRecord) (datatypes.AnalysisResult, error) {

	cur := g.inFlight.Add(1)
	defer g.inFlight.Add(-1)
	for {
		old := g.peak.Load()
		if cur <= old || g.peak.CompareAndSwap(old, cur) {
			break
		}
	}
	time.Sleep(10 * time.Millisecond)
	return datatypes.AnalysisResult{
		Summary:        fmt.Sprintf("analysis of section %s", rec.Section),
		Classification: datatypes.ClassificationMinorEdit,
		Impact:         "none",
	}, nil
}
