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
	"io"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/RegDeltaAI/RegDeltaLocal/services/regdelta/datatypes"
)

// StreamerConfig configures the streaming enrichment loop.
type StreamerConfig struct {
	// Concurrency is the maximum number of in-flight analyzer calls.
	// Values below 1 are treated as 1.
	Concurrency int

	// Pacing is the minimum interval between analyzer dispatches, used to
	// avoid overwhelming the backend. Zero disables pacing.
	Pacing time.Duration
}

// Streamer turns an ordered list of change records into an ordered stream of
// enriched changes. Analyzer calls for Added/Modified records run under the
// configured concurrency bound; Removed records get the policy's canned
// result without an analyzer call. Emission always follows detection order:
// a completed result waits in its buffered slot until all predecessors have
// been written.
//
// A Streamer holds no cross-request state and is safe for concurrent use.
type Streamer struct {
	analyzer Analyzer
	policy   *Policy
	cfg      StreamerConfig
}

func NewStreamer(analyzer Analyzer, policy *Policy, cfg StreamerConfig) *Streamer {
	if cfg.Concurrency < 1 {
		cfg.Concurrency = 1
	}
	return &Streamer{analyzer: analyzer, policy: policy, cfg: cfg}
}

// Enrich produces the enriched change for a single record. Analyzer failure
// is folded into an Error-classified result, never returned as an error.
func (s *Streamer) Enrich(ctx context.Context, rec datatypes.ChangeRecord) datatypes.EnrichedChange {
	if rec.Kind == datatypes.KindRemoved {
		return datatypes.Enrich(rec, s.policy.RemovedResult())
	}

	result, err := s.analyzer.AnalyzeChange(ctx, rec)
	if err != nil {
		slog.Warn("Analysis failed, substituting error result",
			"section", rec.Section, "change_kind", rec.Kind, "error", err)
		return datatypes.Enrich(rec, ErrorResult(err))
	}
	return datatypes.Enrich(rec, result)
}

// Stream writes the full {"changes":[...]} JSON body to w, one element at a
// time as soon as it is ready in order, calling flush after every write so
// the caller can consume the body progressively. The byte stream is valid
// JSON once the final close is written.
//
// On context cancellation (consumer disconnect, request timeout) Stream
// stops dispatching, abandons in-flight analyzer calls and returns the
// context error; buffered-but-unemitted results are discarded.
func (s *Streamer) Stream(ctx context.Context, records []datatypes.ChangeRecord,
	w io.Writer, flush func()) error {

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	// One buffered slot per record so workers never block on emission and
	// can be abandoned without leaking goroutines.
	slots := make([]chan datatypes.EnrichedChange, len(records))
	for i := range slots {
		slots[i] = make(chan datatypes.EnrichedChange, 1)
	}

	var limiter *rate.Limiter
	if s.cfg.Pacing > 0 {
		limiter = rate.NewLimiter(rate.Every(s.cfg.Pacing), 1)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.cfg.Concurrency)
	go func() {
		for i, rec := range records {
			if limiter != nil {
				if err := limiter.Wait(gctx); err != nil {
					return
				}
			}
			if gctx.Err() != nil {
				return
			}
			slot, rec := slots[i], rec
			// Go blocks while Concurrency workers are in flight, which is
			// exactly the dispatch bound we want.
			g.Go(func() error {
				slot <- s.Enrich(gctx, rec)
				return nil
			})
		}
	}()

	if _, err := io.WriteString(w, `{"changes":[`); err != nil {
		return fmt.Errorf("stream write failed: %w", err)
	}
	flush()

	for i := range records {
		// A slot can be ready at the same instant the context dies; the
		// cancellation must win or the stream could close as if complete.
		if err := ctx.Err(); err != nil {
			return err
		}
		select {
		case enriched := <-slots[i]:
			if i > 0 {
				if _, err := io.WriteString(w, ","); err != nil {
					return fmt.Errorf("stream write failed: %w", err)
				}
			}
			element, err := json.Marshal(enriched)
			if err != nil {
				return fmt.Errorf("failed to marshal enriched change for section %s: %w", enriched.Section, err)
			}
			if _, err := w.Write(element); err != nil {
				return fmt.Errorf("stream write failed: %w", err)
			}
			flush()
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	if _, err := io.WriteString(w, "]}"); err != nil {
		return fmt.Errorf("stream write failed: %w", err)
	}
	flush()

	return nil
}
