package integration

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/draftforge/template-studio/remap-orchestrator/internal/models"
	"github.com/draftforge/template-studio/remap-orchestrator/tests/helpers"
)

// newFakeGenerationServer stands in for the external synthesis service. It
// answers every generation request with a unique image reference.
func newFakeGenerationServer(t *testing.T) (*httptest.Server, *atomic.Int64) {
	t.Helper()
	var calls atomic.Int64
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/generations", r.URL.Path)
		n := calls.Add(1)
		json.NewEncoder(w).Encode(helpers.MockGenerationResponse(fmt.Sprintf("img://gen/%d", n)))
	}))
	t.Cleanup(server.Close)
	return server, &calls
}

// getSlot fetches the current slot view, failing the test on a non-200.
func getSlot(t *testing.T, env *testEnv, token, nodeID, slotID string) models.SlotView {
	t.Helper()
	w := env.do(t, http.MethodGet, fmt.Sprintf("/api/slots/%s/%s", nodeID, slotID), token, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var view models.SlotView
	decode(t, w, &view)
	return view
}

// waitForStatus polls the slot until the asynchronous dispatch settles.
func waitForStatus(t *testing.T, env *testEnv, token, nodeID, slotID string, status models.SlotStatus) models.SlotView {
	t.Helper()
	var view models.SlotView
	require.Eventually(t, func() bool {
		view = getSlot(t, env, token, nodeID, slotID)
		return view.Status == status && !view.Synthesizing
	}, 5*time.Second, 20*time.Millisecond, "slot never reached status %s", status)
	return view
}

func TestDocumentRegistrationAndResolution(t *testing.T) {
	gen, _ := newFakeGenerationServer(t)
	env := newTestEnv(t, nil, gen.URL)
	token := env.authToken(t)

	w := env.do(t, http.MethodPost, "/api/documents", token, helpers.CreateRegisterDocumentRequest("Campaign PSD"))
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	var doc models.Document
	decode(t, w, &doc)
	require.NotEmpty(t, doc.ID)
	assert.Equal(t, "Campaign PSD", doc.Name)

	t.Run("Listing Includes Registered Document", func(t *testing.T) {
		w := env.do(t, http.MethodGet, "/api/documents", token, nil)
		require.Equal(t, http.StatusOK, w.Code)

		var docs []models.DocumentSummary
		decode(t, w, &docs)
		require.Len(t, docs, 1)
		assert.Equal(t, doc.ID, docs[0].ID)
	})

	t.Run("Exact Name Resolves", func(t *testing.T) {
		w := env.do(t, http.MethodPost, fmt.Sprintf("/api/documents/%s/resolve", doc.ID),
			token, models.ResolveRequest{Name: "Hero Banner"})
		require.Equal(t, http.StatusOK, w.Code)

		var resp models.ResolveResponse
		decode(t, w, &resp)
		assert.Equal(t, models.ResolveResolved, resp.Status)
		assert.Equal(t, "grp-hero", resp.MatchedID)
		assert.Equal(t, 2, resp.ChildCount)
	})

	t.Run("Case Insensitive Lookup", func(t *testing.T) {
		w := env.do(t, http.MethodPost, fmt.Sprintf("/api/documents/%s/resolve", doc.ID),
			token, models.ResolveRequest{Name: "hero banner"})
		require.Equal(t, http.StatusOK, w.Code)

		var resp models.ResolveResponse
		decode(t, w, &resp)
		assert.Equal(t, "grp-hero", resp.MatchedID)
	})

	t.Run("Missing Group Reported", func(t *testing.T) {
		w := env.do(t, http.MethodPost, fmt.Sprintf("/api/documents/%s/resolve", doc.ID),
			token, models.ResolveRequest{Name: "No Such Group"})
		require.Equal(t, http.StatusOK, w.Code)

		var resp models.ResolveResponse
		decode(t, w, &resp)
		assert.Equal(t, models.ResolveMissingDesignGroup, resp.Status)
	})

	t.Run("Unknown Document Is 404", func(t *testing.T) {
		w := env.do(t, http.MethodPost, "/api/documents/does-not-exist/resolve",
			token, models.ResolveRequest{Name: "Hero Banner"})
		assert.Equal(t, http.StatusNotFound, w.Code)
	})
}

func TestGeometricLayoutFlow(t *testing.T) {
	gen, calls := newFakeGenerationServer(t)
	env := newTestEnv(t, nil, gen.URL)
	token := env.authToken(t)

	w := env.do(t, http.MethodPost, "/api/slots/node-1/slot-a/layout", token, helpers.CreateGeometricLayout())
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var view models.SlotView
	decode(t, w, &view)
	assert.Equal(t, models.StatusSuccess, view.Status)
	require.Len(t, view.Layers, 2)
	assert.Greater(t, view.ScaleFactor, 0.0)
	assert.False(t, view.Synthesizing)

	// Pure geometry never reaches the synthesis service.
	assert.Equal(t, int64(0), calls.Load())

	t.Run("Empty Source Resets To Idle", func(t *testing.T) {
		empty := helpers.CreateGeometricLayout()
		empty.SourceLayers = nil
		w := env.do(t, http.MethodPost, "/api/slots/node-1/slot-a/layout", token, empty)
		require.Equal(t, http.StatusOK, w.Code)

		var view models.SlotView
		decode(t, w, &view)
		assert.Equal(t, models.StatusIdle, view.Status)
		assert.Empty(t, view.Layers)
	})
}

func TestGenerativeLayoutFlow(t *testing.T) {
	gen, calls := newFakeGenerationServer(t)
	env := newTestEnv(t, nil, gen.URL)
	token := env.authToken(t)

	w := env.do(t, http.MethodPost, "/api/slots/node-1/slot-a/layout", token,
		helpers.CreateGenerativeLayout("sunset gradient backdrop"))
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	view := waitForStatus(t, env, token, "node-1", "slot-a", models.StatusSuccess)
	assert.Equal(t, "img://gen/1", view.PreviewURL)
	assert.Equal(t, "img://gen/1", view.DisplayedPreview)
	assert.True(t, view.Transient)
	assert.False(t, view.ViewConfirmed)
	assert.NotZero(t, view.GenerationID)

	t.Run("Repeated Layout Same Prompt Does Not Redispatch", func(t *testing.T) {
		w := env.do(t, http.MethodPost, "/api/slots/node-1/slot-a/layout", token,
			helpers.CreateGenerativeLayout("sunset gradient backdrop"))
		require.Equal(t, http.StatusOK, w.Code)

		time.Sleep(200 * time.Millisecond)
		assert.Equal(t, int64(1), calls.Load())
	})

	t.Run("New Prompt Appends History", func(t *testing.T) {
		w := env.do(t, http.MethodPost, "/api/slots/node-1/slot-a/layout", token,
			helpers.CreateGenerativeLayout("midnight city skyline"))
		require.Equal(t, http.StatusOK, w.Code)

		var view models.SlotView
		require.Eventually(t, func() bool {
			view = getSlot(t, env, token, "node-1", "slot-a")
			return view.PreviewURL == "img://gen/2"
		}, 5*time.Second, 20*time.Millisecond)

		require.Len(t, view.History, 1)
		assert.Equal(t, "img://gen/1", view.History[0])
	})

	t.Run("Seek And Confirm Historical Draft", func(t *testing.T) {
		w := env.do(t, http.MethodPost, "/api/slots/node-1/slot-a/seek", token,
			models.SeekRequest{Direction: -1})
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())

		var view models.SlotView
		decode(t, w, &view)
		assert.Equal(t, "img://gen/1", view.DisplayedPreview)
		assert.False(t, view.ViewConfirmed)

		w = env.do(t, http.MethodPost, "/api/slots/node-1/slot-a/confirm", token, nil)
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())

		decode(t, w, &view)
		assert.Equal(t, "img://gen/1", view.PreviewURL)
		assert.True(t, view.Confirmed)
		assert.True(t, view.ViewConfirmed)
		assert.False(t, view.Transient)
	})

	t.Run("Delete Node Clears Slot", func(t *testing.T) {
		w := env.do(t, http.MethodDelete, "/api/nodes/node-1", token, nil)
		require.Equal(t, http.StatusOK, w.Code)

		var resp map[string]int
		decode(t, w, &resp)
		assert.Equal(t, 1, resp["slots_removed"])

		w = env.do(t, http.MethodGet, "/api/slots/node-1/slot-a", token, nil)
		assert.Equal(t, http.StatusNotFound, w.Code)
	})
}

func TestGenerationGates(t *testing.T) {
	gen, calls := newFakeGenerationServer(t)
	env := newTestEnv(t, nil, gen.URL)
	token := env.authToken(t)

	t.Run("Global Gate Blocks Dispatch", func(t *testing.T) {
		w := env.do(t, http.MethodPost, "/api/generation", token,
			map[string]interface{}{"allowed": false})
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())

		w = env.do(t, http.MethodPost, "/api/slots/node-2/slot-a/layout", token,
			helpers.CreateGenerativeLayout("ocean waves"))
		require.Equal(t, http.StatusOK, w.Code)

		time.Sleep(200 * time.Millisecond)
		assert.Equal(t, int64(0), calls.Load())

		view := getSlot(t, env, token, "node-2", "slot-a")
		assert.False(t, view.GenerationAllowed)
		assert.Empty(t, view.PreviewURL)
	})

	t.Run("Reopening Gate Allows Dispatch", func(t *testing.T) {
		w := env.do(t, http.MethodPost, "/api/generation", token,
			map[string]interface{}{"allowed": true})
		require.Equal(t, http.StatusOK, w.Code)

		w = env.do(t, http.MethodPost, "/api/slots/node-2/slot-a/layout", token,
			helpers.CreateGenerativeLayout("ocean waves"))
		require.Equal(t, http.StatusOK, w.Code)

		view := waitForStatus(t, env, token, "node-2", "slot-a", models.StatusSuccess)
		assert.NotEmpty(t, view.PreviewURL)
	})

	t.Run("Slot Gate Blocks Only That Slot", func(t *testing.T) {
		w := env.do(t, http.MethodPost, "/api/slots/node-2/slot-a/generation", token,
			map[string]interface{}{"allowed": false})
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())

		before := calls.Load()
		w = env.do(t, http.MethodPost, "/api/slots/node-2/slot-a/layout", token,
			helpers.CreateGenerativeLayout("forest canopy"))
		require.Equal(t, http.StatusOK, w.Code)

		w = env.do(t, http.MethodPost, "/api/slots/node-2/slot-b/layout", token,
			helpers.CreateGenerativeLayout("forest canopy"))
		require.Equal(t, http.StatusOK, w.Code)

		waitForStatus(t, env, token, "node-2", "slot-b", models.StatusSuccess)
		assert.Equal(t, before+1, calls.Load())
	})
}

func TestExplicitIntentRequiresConfirmation(t *testing.T) {
	gen, calls := newFakeGenerationServer(t)
	env := newTestEnv(t, nil, gen.URL)
	token := env.authToken(t)

	layout := helpers.CreateGenerativeLayout("replace the product shot entirely")
	layout.Strategy.ExplicitIntent = true

	w := env.do(t, http.MethodPost, "/api/slots/node-3/slot-a/layout", token, layout)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	view := getSlot(t, env, token, "node-3", "slot-a")
	assert.Equal(t, models.StatusAwaitingConfirmation, view.Status)

	time.Sleep(200 * time.Millisecond)
	assert.Equal(t, int64(0), calls.Load())

	// Confirming approves the pending prompt; the next layout dispatches.
	w = env.do(t, http.MethodPost, "/api/slots/node-3/slot-a/confirm", token,
		models.ConfirmRequest{ImageRef: "img://approved"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = env.do(t, http.MethodPost, "/api/slots/node-3/slot-a/layout", token, layout)
	require.Equal(t, http.StatusOK, w.Code)

	require.Eventually(t, func() bool {
		return calls.Load() == 1
	}, 5*time.Second, 20*time.Millisecond)
}

func TestGenerationServiceFailureKeepsLastKnownGood(t *testing.T) {
	var failing atomic.Bool
	var calls atomic.Int64
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := calls.Add(1)
		if failing.Load() {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		json.NewEncoder(w).Encode(helpers.MockGenerationResponse(fmt.Sprintf("img://gen/%d", n)))
	}))
	defer server.Close()

	env := newTestEnv(t, nil, server.URL)
	token := env.authToken(t)

	w := env.do(t, http.MethodPost, "/api/slots/node-4/slot-a/layout", token,
		helpers.CreateGenerativeLayout("first draft"))
	require.Equal(t, http.StatusOK, w.Code)

	good := waitForStatus(t, env, token, "node-4", "slot-a", models.StatusSuccess)
	require.NotEmpty(t, good.PreviewURL)

	failing.Store(true)
	w = env.do(t, http.MethodPost, "/api/slots/node-4/slot-a/layout", token,
		helpers.CreateGenerativeLayout("second draft"))
	require.Equal(t, http.StatusOK, w.Code)

	view := waitForStatus(t, env, token, "node-4", "slot-a", models.StatusError)
	assert.Equal(t, good.PreviewURL, view.PreviewURL)
	assert.NotEmpty(t, view.ErrorMessage)
	assert.True(t, view.GenerationAllowed)
}
