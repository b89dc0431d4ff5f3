// Copyright (C) 2026 RegDelta AI (contact@regdelta.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewOllamaClient_RequiresBaseURL(t *testing.T) {
	t.Setenv("OLLAMA_BASE_URL", "")

	_, err := NewOllamaClient()

	assert.Error(t, err)
}

func TestOllamaClient_Generate_Success(t *testing.T) {
	var gotReq ollamaGenerateRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/generate", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotReq))
		json.NewEncoder(w).Encode(ollamaGenerateResponse{
			Model:    gotReq.Model,
			Response: `{"change_summary":"ok"}`,
			Done:     true,
		})
	}))
	defer server.Close()

	t.Setenv("OLLAMA_BASE_URL", server.URL)
	t.Setenv("OLLAMA_MODEL", "mistral")

	client, err := NewOllamaClient()
	require.NoError(t, err)

	out, err := client.Generate(context.Background(), "analyze this", GenerationParams{})

	require.NoError(t, err)
	assert.Equal(t, `{"change_summary":"ok"}`, out)
	assert.Equal(t, "mistral", gotReq.Model)
	assert.Equal(t, "analyze this", gotReq.Prompt)
	assert.False(t, gotReq.Stream, "analyzer calls use non-streaming generation")
	assert.Equal(t, float64(0.2), gotReq.Options["temperature"].(float64))
}

func TestOllamaClient_Generate_ModelNotFound(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		json.NewEncoder(w).Encode(map[string]string{"error": "model 'mistral' not found"})
	}))
	defer server.Close()

	t.Setenv("OLLAMA_BASE_URL", server.URL)
	t.Setenv("OLLAMA_MODEL", "mistral")

	client, err := NewOllamaClient()
	require.NoError(t, err)

	_, err = client.Generate(context.Background(), "prompt", GenerationParams{})

	require.Error(t, err)
	assert.Contains(t, err.Error(), "ollama pull")
}

func TestOllamaClient_Generate_ServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer server.Close()

	t.Setenv("OLLAMA_BASE_URL", server.URL)
	t.Setenv("OLLAMA_MODEL", "mistral")

	client, err := NewOllamaClient()
	require.NoError(t, err)

	_, err = client.Generate(context.Background(), "prompt", GenerationParams{})

	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 500")
}

func TestOllamaClient_Generate_ContextCancellation(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	}))
	defer server.Close()

	t.Setenv("OLLAMA_BASE_URL", server.URL)
	t.Setenv("OLLAMA_MODEL", "mistral")

	client, err := NewOllamaClient()
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err = client.Generate(ctx, "prompt", GenerationParams{})

	assert.Error(t, err)
}
