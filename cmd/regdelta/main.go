// Copyright (C) 2026 RegDelta AI (contact@regdelta.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Command regdelta runs the RegDelta service or performs one-off change
// detection from the command line.
package main

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/RegDeltaAI/RegDeltaLocal/services/regdelta"
	"github.com/RegDeltaAI/RegDeltaLocal/services/regdelta/diff"
)

func main() {
	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stdout, nil)))

	rootCmd := &cobra.Command{
		Use:   "regdelta",
		Short: "Regulatory document change detection and analysis",
		Long: `RegDelta compares two versions of a numbered regulatory document,
detects section-level changes, and enriches each change with an LLM
analysis of its compliance impact.`,
		SilenceUsage: true,
	}

	rootCmd.AddCommand(newServeCmd())
	rootCmd.AddCommand(newDiffCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// =============================================================================
// serve
// =============================================================================

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the RegDelta HTTP server",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := configFromEnv()

			svc, err := regdelta.New(cfg)
			if err != nil {
				return fmt.Errorf("failed to create service: %w", err)
			}
			return svc.Run()
		},
	}
}

// configFromEnv builds the service configuration from environment
// variables. Unset variables fall back to the service defaults.
func configFromEnv() regdelta.Config {
	cfg := regdelta.Config{
		Port:            getEnvInt("REGDELTA_PORT", 12220),
		LLMBackend:      getEnvString("LLM_BACKEND_TYPE", "ollama"),
		OTelEndpoint:    getEnvString("OTEL_EXPORTER_OTLP_ENDPOINT", ""),
		EnableTracing:   getEnvBool("ENABLE_TRACING", true),
		EnableMetrics:   getEnvBool("ENABLE_METRICS", true),
		GinMode:         getEnvString("GIN_MODE", "release"),
		AnalyzerTimeout: getEnvDuration("ANALYZER_TIMEOUT", 120*time.Second),
		Concurrency:     getEnvInt("ANALYZER_CONCURRENCY", 1),
		DuplicatePolicy: getEnvString("DUPLICATE_SECTION_POLICY", "overwrite"),
	}
	if raw, ok := os.LookupEnv("STREAM_PACING"); ok {
		if d, err := time.ParseDuration(raw); err == nil && d >= 0 {
			cfg.Pacing = d
			cfg.PacingSet = true
		} else {
			slog.Warn("Invalid STREAM_PACING, using default", "value", raw)
		}
	}
	return cfg
}

// =============================================================================
// diff
// =============================================================================

func newDiffCmd() *cobra.Command {
	var paragraphs bool
	var policyName string

	cmd := &cobra.Command{
		Use:   "diff <old-file> <new-file>",
		Short: "Detect section changes between two document versions",
		Long: `Compares two versions of a numbered document and prints the detected
section-level changes as JSON. No LLM analysis is performed.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			oldData, err := os.ReadFile(args[0])
			if err != nil {
				return fmt.Errorf("failed to read %s: %w", args[0], err)
			}
			newData, err := os.ReadFile(args[1])
			if err != nil {
				return fmt.Errorf("failed to read %s: %w", args[1], err)
			}

			opts := diff.DetectOptions{
				Policy:          diff.ParseDuplicatePolicy(policyName),
				ParagraphDetail: paragraphs,
			}
			records := diff.DetectChanges(string(oldData), string(newData), opts)

			out, err := json.MarshalIndent(map[string]any{"changes": records}, "", "  ")
			if err != nil {
				return fmt.Errorf("failed to encode result: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), string(out))
			return nil
		},
	}

	cmd.Flags().BoolVar(&paragraphs, "paragraphs", false,
		"attach paragraph-level detail to modified sections")
	cmd.Flags().StringVar(&policyName, "duplicate-policy", "overwrite",
		"how repeated section headers merge: overwrite or append")
	return cmd
}

// =============================================================================
// Environment Helpers
// =============================================================================

func getEnvString(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	raw := os.Getenv(key)
	if raw == "" {
		return defaultValue
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		slog.Warn("Invalid integer environment variable, using default",
			"key", key, "value", raw, "default", defaultValue)
		return defaultValue
	}
	return value
}

func getEnvBool(key string, defaultValue bool) bool {
	raw := os.Getenv(key)
	if raw == "" {
		return defaultValue
	}
	value, err := strconv.ParseBool(raw)
	if err != nil {
		slog.Warn("Invalid boolean environment variable, using default",
			"key", key, "value", raw, "default", defaultValue)
		return defaultValue
	}
	return value
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	raw := os.Getenv(key)
	if raw == "" {
		return defaultValue
	}
	value, err := time.ParseDuration(raw)
	if err != nil {
		slog.Warn("Invalid duration environment variable, using default",
			"key", key, "value", raw, "default", defaultValue)
		return defaultValue
	}
	return value
}
