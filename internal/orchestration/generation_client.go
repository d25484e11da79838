package orchestration

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/sony/gobreaker"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

// GenerationClientInterface defines the interface for the external image
// generation service. The service is an opaque I/O boundary with
// unspecified latency; callers must tolerate out-of-order and duplicate
// completions.
type GenerationClientInterface interface {
	Generate(ctx context.Context, req GenerationRequest) (*GenerationResult, error)
	IsHealthy(ctx context.Context) bool
}

// GenerationClient handles communication with the generation service
type GenerationClient struct {
	baseURL    string
	httpClient *http.Client
	tracer     trace.Tracer
	breaker    *gobreaker.CircuitBreaker
	group      singleflight.Group
	logger     *zap.Logger
}

// GenerationRequest is a single fill-content request: a text prompt plus an
// optional base64 reference image anchoring iterative refinement.
type GenerationRequest struct {
	TraceID        string `json:"trace_id"`
	Prompt         string `json:"prompt"`
	ReferenceImage string `json:"reference_image,omitempty"`
}

// GenerationResult is the service's terminal response for one request.
type GenerationResult struct {
	Image string `json:"image,omitempty"`
	Error string `json:"error,omitempty"`
}

// NewGenerationClient creates a new generation service client. An empty
// baseURL falls back to GENERATION_SERVICE_URL and then the in-cluster
// default.
func NewGenerationClient(baseURL string, logger *zap.Logger) *GenerationClient {
	if logger == nil {
		logger = zap.NewNop()
	}
	if baseURL == "" {
		baseURL = os.Getenv("GENERATION_SERVICE_URL")
	}
	if baseURL == "" {
		baseURL = "http://generation-service:8100"
		logger.Warn("GENERATION_SERVICE_URL not set, using default", zap.String("base_url", baseURL))
	}

	settings := gobreaker.Settings{
		Name:        "generation-service",
		MaxRequests: 3,
		Interval:    60 * time.Second,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures > 5
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			logger.Warn("circuit breaker state changed",
				zap.String("breaker", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()),
			)
		},
	}

	return &GenerationClient{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: 120 * time.Second, // generation is slow
		},
		tracer:  otel.Tracer("generation-client"),
		breaker: gobreaker.NewCircuitBreaker(settings),
		logger:  logger,
	}
}

// SetBaseURL sets the base URL for testing purposes
func (c *GenerationClient) SetBaseURL(baseURL string) {
	c.baseURL = baseURL
}

// Generate submits a generation request and blocks until the service
// produces an image or an error. There is no hard cancellation: a caller
// abandoning the request relies on the stale guard to discard the eventual
// completion.
func (c *GenerationClient) Generate(ctx context.Context, req GenerationRequest) (*GenerationResult, error) {
	ctx, span := c.tracer.Start(ctx, "generation_service.generate")
	defer span.End()

	span.SetAttributes(
		attribute.String("trace_id", req.TraceID),
		attribute.Int("prompt.length", len(req.Prompt)),
		attribute.Bool("has_reference", req.ReferenceImage != ""),
	)

	// Identical concurrent requests share one round trip. The key ignores
	// the trace id: same prompt and reference means the same image.
	flightKey := req.Prompt + "\x00" + req.ReferenceImage
	result, err, shared := c.group.Do(flightKey, func() (interface{}, error) {
		return c.breaker.Execute(func() (interface{}, error) {
			return c.generateInternal(ctx, req)
		})
	})
	span.SetAttributes(attribute.Bool("flight.shared", shared))

	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to invoke generation service: %w", err)
	}

	return result.(*GenerationResult), nil
}

// generateInternal performs the actual HTTP request
func (c *GenerationClient) generateInternal(ctx context.Context, req GenerationRequest) (*GenerationResult, error) {
	jsonData, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	url := fmt.Sprintf("%s/v1/generations", c.baseURL)
	httpReq, err := http.NewRequestWithContext(ctx, "POST", url, bytes.NewBuffer(jsonData))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	httpReq.Header.Set("Content-Type", "application/json")

	// Inject trace context
	otel.GetTextMapPropagator().Inject(ctx, propagation.HeaderCarrier(httpReq.Header))

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("failed to make request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		bodyBytes, err := io.ReadAll(resp.Body)
		if err != nil {
			return nil, fmt.Errorf("generation service returned status %d (failed to read body: %w)", resp.StatusCode, err)
		}
		return nil, fmt.Errorf("generation service returned status %d: %s", resp.StatusCode, string(bodyBytes))
	}

	var result GenerationResult
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}

	if result.Error != "" {
		return nil, fmt.Errorf("generation service reported error: %s", result.Error)
	}
	if result.Image == "" {
		return nil, fmt.Errorf("generation service returned an empty image")
	}

	return &result, nil
}

// IsHealthy checks if the generation service is healthy
func (c *GenerationClient) IsHealthy(ctx context.Context) bool {
	ctx, span := c.tracer.Start(ctx, "generation_service.health_check")
	defer span.End()

	// Use circuit breaker state as a quick health indicator
	if c.breaker.State() == gobreaker.StateOpen {
		span.SetAttributes(attribute.Bool("healthy", false), attribute.String("reason", "circuit_breaker_open"))
		return false
	}

	url := fmt.Sprintf("%s/health", c.baseURL)
	httpReq, err := http.NewRequestWithContext(ctx, "GET", url, nil)
	if err != nil {
		span.RecordError(err)
		return false
	}

	// Short timeout for health checks
	client := &http.Client{Timeout: 5 * time.Second}
	resp, err := client.Do(httpReq)
	if err != nil {
		span.RecordError(err)
		return false
	}
	defer resp.Body.Close()

	healthy := resp.StatusCode == http.StatusOK
	span.SetAttributes(attribute.Bool("healthy", healthy))

	return healthy
}
