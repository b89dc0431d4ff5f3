// Copyright (C) 2026 RegDelta AI (contact@regdelta.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package handlers

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/RegDeltaAI/RegDeltaLocal/services/regdelta/analysis"
	"github.com/RegDeltaAI/RegDeltaLocal/services/regdelta/datatypes"
	"github.com/RegDeltaAI/RegDeltaLocal/services/regdelta/diff"
	"github.com/RegDeltaAI/RegDeltaLocal/services/regdelta/observability"
)

// HandleAnalyze accepts two document versions as multipart uploads
// (file_v1, file_v2), detects section-level changes, and streams the
// analyzer-enriched result as a single incrementally written JSON body.
//
// Optional form/query field granularity=paragraph attaches paragraph-level
// detail to Modified records. When no changes are detected the handler
// short-circuits with an empty changes array and never touches the analyzer.
func HandleAnalyze(streamer *analysis.Streamer, policy diff.DuplicatePolicy) gin.HandlerFunc {
	return func(c *gin.Context) {
		oldText, newText, ok := readUploadedPair(c)
		if !ok {
			observability.RecordRequest(observability.EndpointAnalyzeStream, false)
			return
		}

		opts := diff.DetectOptions{
			Policy:          policy,
			ParagraphDetail: granularity(c) == "paragraph",
		}
		records := diff.DetectChanges(oldText, newText, opts)
		recordChangeMetrics(records)

		streamID := uuid.NewString()
		slog.Info("Detected section changes",
			"stream_id", streamID, "change_count", len(records))

		if len(records) == 0 {
			c.JSON(http.StatusOK, gin.H{"changes": []datatypes.EnrichedChange{}})
			observability.RecordRequest(observability.EndpointAnalyzeStream, true)
			return
		}

		c.Header("Content-Type", "application/json")
		c.Status(http.StatusOK)

		observability.StreamStarted(observability.EndpointAnalyzeStream)
		start := time.Now()

		err := streamer.Stream(c.Request.Context(), records, c.Writer, func() {
			c.Writer.Flush()
		})

		success := err == nil
		observability.StreamEnded(observability.EndpointAnalyzeStream, time.Since(start), success)
		observability.RecordRequest(observability.EndpointAnalyzeStream, success)

		if err != nil {
			if errors.Is(err, context.Canceled) {
				observability.RecordClientDisconnect(observability.EndpointAnalyzeStream)
				slog.Warn("Client disconnected during analysis stream", "stream_id", streamID)
			} else {
				slog.Error("Analysis stream aborted", "stream_id", streamID, "error", err)
			}
			// The body is torn down mid-stream; nothing more can be written.
			c.Abort()
			return
		}

		slog.Info("Analysis stream completed",
			"stream_id", streamID,
			"change_count", len(records),
			"duration_ms", time.Since(start).Milliseconds())
	}
}

// HandleDetect runs pure change detection on the uploaded pair and returns
// the plain records without any analyzer involvement.
func HandleDetect(policy diff.DuplicatePolicy) gin.HandlerFunc {
	return func(c *gin.Context) {
		oldText, newText, ok := readUploadedPair(c)
		if !ok {
			observability.RecordRequest(observability.EndpointDetect, false)
			return
		}

		opts := diff.DetectOptions{
			Policy:          policy,
			ParagraphDetail: granularity(c) == "paragraph",
		}
		records := diff.DetectChanges(oldText, newText, opts)
		recordChangeMetrics(records)

		if records == nil {
			records = []datatypes.ChangeRecord{}
		}
		c.JSON(http.StatusOK, gin.H{"changes": records})
		observability.RecordRequest(observability.EndpointDetect, true)
	}
}

// readUploadedPair pulls both document versions out of the multipart form.
// Uploads are passed through byte-for-byte; invalid UTF-8 is not rejected.
func readUploadedPair(c *gin.Context) (oldText, newText string, ok bool) {
	oldText, err := readFormFile(c, "file_v1")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return "", "", false
	}
	newText, err = readFormFile(c, "file_v2")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return "", "", false
	}
	return oldText, newText, true
}

func readFormFile(c *gin.Context, field string) (string, error) {
	fileHeader, err := c.FormFile(field)
	if err != nil {
		return "", fmt.Errorf("missing upload %q", field)
	}
	f, err := fileHeader.Open()
	if err != nil {
		return "", fmt.Errorf("failed to open upload %q: %w", field, err)
	}
	defer f.Close()
	data, err := io.ReadAll(f)
	if err != nil {
		return "", fmt.Errorf("failed to read upload %q: %w", field, err)
	}
	return string(data), nil
}

func granularity(c *gin.Context) string {
	if v := c.Query("granularity"); v != "" {
		return v
	}
	return c.PostForm("granularity")
}

func recordChangeMetrics(records []datatypes.ChangeRecord) {
	kinds := make([]string, len(records))
	for i, rec := range records {
		kinds[i] = string(rec.Kind)
	}
	observability.RecordChanges(kinds)
}
