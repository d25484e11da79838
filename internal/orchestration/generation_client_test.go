package orchestration

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewGenerationClient(t *testing.T) {
	client := NewGenerationClient("http://example.test:8100", nil)

	assert.NotNil(t, client)
	assert.NotNil(t, client.httpClient)
	assert.NotNil(t, client.tracer)
	assert.NotNil(t, client.breaker)
	assert.Equal(t, "http://example.test:8100", client.baseURL)
}

func TestGenerationClient_Generate(t *testing.T) {
	tests := []struct {
		name           string
		serverResponse func(w http.ResponseWriter, r *http.Request)
		expectedError  string
		expectedImage  string
	}{
		{
			name: "successful_generation",
			serverResponse: func(w http.ResponseWriter, r *http.Request) {
				assert.Equal(t, "POST", r.Method)
				assert.Equal(t, "/v1/generations", r.URL.Path)
				assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

				var req GenerationRequest
				err := json.NewDecoder(r.Body).Decode(&req)
				assert.NoError(t, err)
				assert.Equal(t, "a red bicycle", req.Prompt)
				assert.Equal(t, "img://reference", req.ReferenceImage)

				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusOK)
				json.NewEncoder(w).Encode(GenerationResult{
					Image: "img://generated",
				})
			},
			expectedImage: "img://generated",
		},
		{
			name: "server_error",
			serverResponse: func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusInternalServerError)
				w.Write([]byte("Internal server error"))
			},
			expectedError: "generation service returned status 500",
		},
		{
			name: "service_reported_error",
			serverResponse: func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusOK)
				json.NewEncoder(w).Encode(GenerationResult{
					Error: "prompt rejected",
				})
			},
			expectedError: "generation service reported error: prompt rejected",
		},
		{
			name: "empty_image",
			serverResponse: func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusOK)
				json.NewEncoder(w).Encode(GenerationResult{})
			},
			expectedError: "empty image",
		},
		{
			name: "invalid_json_response",
			serverResponse: func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusOK)
				w.Write([]byte("invalid json"))
			},
			expectedError: "failed to decode response",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(tt.serverResponse))
			defer server.Close()

			client := NewGenerationClient(server.URL, nil)

			result, err := client.Generate(context.Background(), GenerationRequest{
				TraceID:        "test-trace-id",
				Prompt:         "a red bicycle",
				ReferenceImage: "img://reference",
			})

			if tt.expectedError != "" {
				assert.Error(t, err)
				assert.Contains(t, err.Error(), tt.expectedError)
			} else {
				assert.NoError(t, err)
				require.NotNil(t, result)
				assert.Equal(t, tt.expectedImage, result.Image)
			}
		})
	}
}

func TestGenerationClient_IdenticalRequestsShareOneFlight(t *testing.T) {
	var hits int64
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt64(&hits, 1)
		time.Sleep(50 * time.Millisecond)
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(GenerationResult{Image: "img://shared"})
	}))
	defer server.Close()

	client := NewGenerationClient(server.URL, nil)

	var wg sync.WaitGroup
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			result, err := client.Generate(context.Background(), GenerationRequest{
				TraceID: "per-call-trace",
				Prompt:  "same prompt",
			})
			assert.NoError(t, err)
			assert.Equal(t, "img://shared", result.Image)
		}()
	}
	wg.Wait()

	assert.Equal(t, int64(1), atomic.LoadInt64(&hits), "identical concurrent prompts share one request")
}

func TestGenerationClient_IsHealthy(t *testing.T) {
	tests := []struct {
		name           string
		serverResponse func(w http.ResponseWriter, r *http.Request)
		expectedHealth bool
	}{
		{
			name: "healthy_service",
			serverResponse: func(w http.ResponseWriter, r *http.Request) {
				assert.Equal(t, "GET", r.Method)
				assert.Equal(t, "/health", r.URL.Path)
				w.WriteHeader(http.StatusOK)
				w.Write([]byte(`{"status": "healthy"}`))
			},
			expectedHealth: true,
		},
		{
			name: "unhealthy_service",
			serverResponse: func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusServiceUnavailable)
				w.Write([]byte(`{"status": "unhealthy"}`))
			},
			expectedHealth: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(tt.serverResponse))
			defer server.Close()

			client := NewGenerationClient(server.URL, nil)

			result := client.IsHealthy(context.Background())
			assert.Equal(t, tt.expectedHealth, result)
		})
	}
}

func TestGenerationClient_CircuitBreaker(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte("Service unavailable"))
	}))
	defer server.Close()

	client := NewGenerationClient(server.URL, nil)

	req := GenerationRequest{
		TraceID: "test-trace-id",
		Prompt:  "a red bicycle",
	}

	// Consecutive failures trip the breaker; subsequent calls fail fast.
	tripped := false
	for i := 0; i < 10; i++ {
		// Vary the prompt so singleflight never collapses the calls.
		req.Prompt = req.Prompt + "!"
		_, err := client.Generate(context.Background(), req)
		assert.Error(t, err)
		if err != nil && strings.Contains(err.Error(), "circuit breaker is open") {
			tripped = true
			break
		}
	}
	assert.True(t, tripped, "circuit breaker should open after consecutive failures")
}

func TestGenerationClient_ContextCancellation(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(100 * time.Millisecond)
		w.WriteHeader(http.StatusOK)
		json.NewEncoder(w).Encode(GenerationResult{Image: "img://late"})
	}))
	defer server.Close()

	client := NewGenerationClient(server.URL, nil)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := client.Generate(ctx, GenerationRequest{
		TraceID: "test-trace-id",
		Prompt:  "a red bicycle",
	})
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "context deadline exceeded")
}
