// Copyright (C) 2026 RegDelta AI (contact@regdelta.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package regdelta provides the RegDelta service: it compares two versions
// of a numbered regulatory document and streams section-level changes,
// each enriched through an LLM analyzer.
//
// The package wires together HTTP routing, the LLM backend client, the
// analysis streamer, OpenTelemetry tracing and Prometheus metrics. The
// pipeline itself is stateless: nothing is shared between requests.
//
// # Usage
//
//	cfg := regdelta.Config{Port: 12220, LLMBackend: "ollama"}
//	svc, err := regdelta.New(cfg)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	log.Fatal(svc.Run())
package regdelta

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.21.0"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/RegDeltaAI/RegDeltaLocal/services/llm"
	"github.com/RegDeltaAI/RegDeltaLocal/services/regdelta/analysis"
	"github.com/RegDeltaAI/RegDeltaLocal/services/regdelta/diff"
	"github.com/RegDeltaAI/RegDeltaLocal/services/regdelta/middleware"
	"github.com/RegDeltaAI/RegDeltaLocal/services/regdelta/observability"
	"github.com/RegDeltaAI/RegDeltaLocal/services/regdelta/routes"
)

// =============================================================================
// Interface Definition
// =============================================================================

// Service abstracts the RegDelta service lifecycle, enabling testing and
// alternative implementations.
//
// # Thread Safety
//
// Implementations must be safe for concurrent use. Run() blocks and should
// only be called once per instance.
type Service interface {
	// Run starts the HTTP server and blocks until shutdown or error.
	Run() error

	// Router returns the underlying gin engine for testing.
	Router() *gin.Engine
}

// =============================================================================
// Configuration
// =============================================================================

// Config holds RegDelta service configuration. Zero values use defaults.
type Config struct {
	// Port is the HTTP server port. Default: 12220
	Port int

	// LLMBackend specifies the analyzer LLM provider.
	// Valid values: "ollama", "openai", "local". Default: "ollama"
	LLMBackend string

	// OTelEndpoint is the OpenTelemetry collector endpoint.
	// Default: "regdelta-otel-collector:4317". Empty string after defaulting
	// is not possible; set EnableTracing false to skip the exporter.
	OTelEndpoint string

	// EnableTracing controls OTLP span export. The serve command enables
	// it by default; leave false for tests and offline CLI runs.
	EnableTracing bool

	// EnableMetrics enables the Prometheus /metrics endpoint. The serve
	// command enables it by default.
	EnableMetrics bool

	// GinMode sets the gin framework mode ("debug", "release", "test").
	GinMode string

	// AnalyzerTimeout bounds each external analyzer call. Default: 120s
	AnalyzerTimeout time.Duration

	// Concurrency is the maximum number of in-flight analyzer calls per
	// request. Default: 1 (strict sequential dispatch).
	Concurrency int

	// Pacing is the minimum interval between analyzer dispatches.
	// Default: 100ms. Zero is honored (no pacing) when PacingSet is true.
	Pacing time.Duration

	// PacingSet marks Pacing as explicitly configured, so a zero value
	// means "no pacing" rather than "use the default".
	PacingSet bool

	// DuplicatePolicy decides how a repeated section header inside one
	// document version merges: "overwrite" (default) or "append".
	DuplicatePolicy string
}

// =============================================================================
// Implementation
// =============================================================================

// service implements Service for production use.
type service struct {
	config        Config
	router        *gin.Engine
	llmClient     llm.LLMClient
	streamer      *analysis.Streamer
	policy        diff.DuplicatePolicy
	tracerCleanup func(context.Context)
}

// New creates a ready-to-run RegDelta service.
//
// Initialization order: defaults, tracing, metrics, LLM client, analysis
// policy and streamer, router. Any failure returns a wrapped error with
// already-acquired resources released.
func New(cfg Config) (Service, error) {
	s := &service{config: applyConfigDefaults(cfg)}

	if s.config.EnableTracing {
		cleanup, err := s.initTracer()
		if err != nil {
			return nil, fmt.Errorf("failed to initialize tracer: %w", err)
		}
		s.tracerCleanup = cleanup
	}

	if s.config.EnableMetrics && observability.DefaultMetrics == nil {
		observability.InitMetrics()
		slog.Info("Initialized Prometheus metrics for the analysis pipeline")
	}

	if err := s.initLLMClient(); err != nil {
		s.cleanup()
		return nil, fmt.Errorf("failed to initialize LLM client: %w", err)
	}

	if err := s.initStreamer(); err != nil {
		s.cleanup()
		return nil, fmt.Errorf("failed to initialize analysis streamer: %w", err)
	}

	s.policy = diff.ParseDuplicatePolicy(s.config.DuplicatePolicy)
	s.initRouter()

	return s, nil
}

// Run starts the HTTP server and blocks until shutdown or error.
func (s *service) Run() error {
	defer s.cleanup()

	addr := fmt.Sprintf(":%d", s.config.Port)
	slog.Info("Starting RegDelta server", "port", s.config.Port)

	return s.router.Run(addr)
}

// Router returns the underlying gin engine for testing.
func (s *service) Router() *gin.Engine {
	return s.router
}

// =============================================================================
// Private Initialization Methods
// =============================================================================

func applyConfigDefaults(cfg Config) Config {
	if cfg.Port == 0 {
		cfg.Port = 12220
	}
	if cfg.LLMBackend == "" {
		cfg.LLMBackend = "ollama"
	}
	if cfg.OTelEndpoint == "" {
		cfg.OTelEndpoint = "regdelta-otel-collector:4317"
	}
	if cfg.AnalyzerTimeout == 0 {
		cfg.AnalyzerTimeout = analysis.DefaultAnalyzerTimeout
	}
	if cfg.Concurrency == 0 {
		cfg.Concurrency = 1
	}
	if cfg.Pacing == 0 && !cfg.PacingSet {
		cfg.Pacing = 100 * time.Millisecond
	}
	return cfg
}

// initTracer sets up the OTLP trace exporter with a batch span processor.
// Uses an insecure gRPC connection, appropriate for internal networks.
func (s *service) initTracer() (func(context.Context), error) {
	ctx := context.Background()

	conn, err := grpc.NewClient(s.config.OTelEndpoint,
		grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, fmt.Errorf("failed to create gRPC connection: %w", err)
	}

	traceExporter, err := otlptracegrpc.New(ctx, otlptracegrpc.WithGRPCConn(conn))
	if err != nil {
		return nil, fmt.Errorf("failed to create trace exporter: %w", err)
	}

	res, err := resource.New(ctx,
		resource.WithAttributes(semconv.ServiceNameKey.String("regdelta-service")))
	if err != nil {
		return nil, fmt.Errorf("failed to create resource: %w", err)
	}

	bsp := sdktrace.NewBatchSpanProcessor(traceExporter)
	traceProvider := sdktrace.NewTracerProvider(
		sdktrace.WithSampler(sdktrace.AlwaysSample()),
		sdktrace.WithResource(res),
		sdktrace.WithSpanProcessor(bsp))

	otel.SetTracerProvider(traceProvider)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{}, propagation.Baggage{}))

	cleanup := func(ctx context.Context) {
		ctx, cancel := context.WithTimeout(ctx, time.Second*5)
		defer cancel()
		if err := traceExporter.Shutdown(ctx); err != nil {
			slog.Error("failed to shutdown OTLP exporter", "error", err)
		}
	}

	return cleanup, nil
}

func (s *service) initLLMClient() error {
	var err error

	switch s.config.LLMBackend {
	case "ollama":
		s.llmClient, err = llm.NewOllamaClient()
		slog.Info("Using Ollama analyzer backend")
	case "openai":
		s.llmClient, err = llm.NewOpenAIClient()
		slog.Info("Using OpenAI analyzer backend")
	case "local":
		s.llmClient, err = llm.NewLocalLlamaCppClient()
		slog.Info("Using local llama.cpp analyzer backend")
	default:
		slog.Warn("Unknown LLM backend, defaulting to ollama", "backend", s.config.LLMBackend)
		s.llmClient, err = llm.NewOllamaClient()
	}

	return err
}

func (s *service) initStreamer() error {
	policy, err := analysis.LoadPolicy()
	if err != nil {
		return err
	}
	analyzer := analysis.NewLLMAnalyzer(s.llmClient, policy, s.config.AnalyzerTimeout)
	s.streamer = analysis.NewStreamer(analyzer, policy, analysis.StreamerConfig{
		Concurrency: s.config.Concurrency,
		Pacing:      s.config.Pacing,
	})
	return nil
}

func (s *service) initRouter() {
	if s.config.GinMode != "" {
		gin.SetMode(s.config.GinMode)
	}

	s.router = gin.New()
	s.router.Use(gin.Logger())
	s.router.Use(gin.CustomRecovery(func(c *gin.Context, recovered any) {
		slog.Error("Unhandled panic in request handler", "panic", recovered)
		c.AbortWithStatusJSON(http.StatusInternalServerError,
			gin.H{"detail": "Internal server error"})
	}))
	s.router.Use(middleware.CORS())
	s.router.Use(otelgin.Middleware("regdelta-service"))

	routes.SetupRoutes(s.router, s.streamer, s.policy, s.config.EnableMetrics)
}

func (s *service) cleanup() {
	if s.tracerCleanup != nil {
		s.tracerCleanup(context.Background())
	}
}

// =============================================================================
// Compile-time Interface Compliance
// =============================================================================

var _ Service = (*service)(nil)
