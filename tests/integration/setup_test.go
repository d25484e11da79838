package integration

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/draftforge/template-studio/remap-orchestrator/internal/auth"
	"github.com/draftforge/template-studio/remap-orchestrator/internal/events"
	"github.com/draftforge/template-studio/remap-orchestrator/internal/gateway"
	"github.com/draftforge/template-studio/remap-orchestrator/internal/orchestration"
	"github.com/draftforge/template-studio/remap-orchestrator/internal/reconcile"
)

// TestMain lets in-cluster runs reach the cluster database without extra
// flags; local runs still opt in through TEST_DATABASE_URL.
func TestMain(m *testing.M) {
	cluster := SetupInClusterEnvironment()
	if cluster.IsInCluster && os.Getenv("TEST_DATABASE_URL") == "" {
		os.Setenv("TEST_DATABASE_URL", cluster.DatabaseURL)
	}
	os.Exit(m.Run())
}

// testEnv wires the full service stack behind a Gin router, the same shape
// the api binary assembles. A nil pool leaves persistence off, which keeps
// the in-memory flow tests independent of any database.
type testEnv struct {
	router     *gin.Engine
	service    *orchestration.Service
	registry   *reconcile.Registry
	bus        *events.Bus
	jwtManager *auth.JWTManager
}

func newTestEnv(t *testing.T, pool *pgxpool.Pool, generationURL string) *testEnv {
	t.Helper()

	logger := zap.NewNop()
	bus := events.NewBus(logger)
	t.Cleanup(bus.Close)

	registry := reconcile.NewRegistry(bus, logger)
	client := orchestration.NewGenerationClient(generationURL, logger)
	orch := orchestration.NewOrchestrator(registry, client, nil, logger)
	service := orchestration.NewService(pool, registry, orch, logger)

	jwtManager, err := auth.NewJWTManager("integration-test-secret")
	require.NoError(t, err)

	handler := gateway.NewHandler(service, jwtManager, pool, logger)
	eventStream := gateway.NewEventStream(bus, logger)

	gin.SetMode(gin.TestMode)
	router := gin.New()

	api := router.Group("/api")
	api.POST("/auth/login", handler.Login)

	protected := api.Group("")
	protected.Use(auth.RequireAuth(jwtManager, logger))
	protected.POST("/auth/refresh", handler.RefreshToken)
	protected.POST("/documents", handler.RegisterDocument)
	protected.GET("/documents", handler.ListDocuments)
	protected.POST("/documents/:id/resolve", handler.ResolveContainer)
	protected.POST("/slots/:nodeId/:slotId/layout", handler.ApplyLayout)
	protected.GET("/slots/:nodeId/:slotId", handler.GetSlot)
	protected.POST("/slots/:nodeId/:slotId/seek", handler.SeekHistory)
	protected.POST("/slots/:nodeId/:slotId/confirm", handler.ConfirmSlot)
	protected.POST("/slots/:nodeId/:slotId/generation", handler.SetSlotGeneration)
	protected.POST("/generation", handler.SetGlobalGeneration)
	protected.DELETE("/nodes/:nodeId", handler.DeleteNode)
	protected.GET("/ws/events", eventStream.Stream)

	return &testEnv{
		router:     router,
		service:    service,
		registry:   registry,
		bus:        bus,
		jwtManager: jwtManager,
	}
}

// authToken mints a valid bearer token without going through the login
// endpoint, for tests that are not about authentication itself.
func (e *testEnv) authToken(t *testing.T) string {
	t.Helper()
	token, err := e.jwtManager.GenerateToken(
		context.Background(), "test-user-1", "designer@example.com", []string{"user"}, time.Hour)
	require.NoError(t, err)
	return token
}

// do performs an authenticated JSON request against the router.
func (e *testEnv) do(t *testing.T, method, path, token string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()

	var buf *bytes.Buffer
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		buf = bytes.NewBuffer(data)
	} else {
		buf = bytes.NewBuffer(nil)
	}

	req := httptest.NewRequest(method, path, buf)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}

// decode unmarshals a recorded JSON response body into out.
func decode(t *testing.T, w *httptest.ResponseRecorder, out interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), out))
}
