package gateway

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/draftforge/template-studio/remap-orchestrator/internal/auth"
	"github.com/draftforge/template-studio/remap-orchestrator/internal/models"
	"github.com/draftforge/template-studio/remap-orchestrator/internal/orchestration"
	"github.com/draftforge/template-studio/remap-orchestrator/internal/reconcile"
)

// Handler handles HTTP requests for the gateway layer
type Handler struct {
	service    *orchestration.Service
	jwtManager *auth.JWTManager
	pool       *pgxpool.Pool
	logger     *zap.Logger
}

// NewHandler creates a new gateway handler
func NewHandler(service *orchestration.Service, jwtManager *auth.JWTManager, pool *pgxpool.Pool, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{
		service:    service,
		jwtManager: jwtManager,
		pool:       pool,
		logger:     logger,
	}
}

// LoginRequest represents a login request
type LoginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

// LoginResponse represents a login response
type LoginResponse struct {
	Token  string `json:"token"`
	UserID string `json:"user_id"`
}

// Login godoc
// @Summary User login
// @Description Authenticate user and return JWT token
// @Tags auth
// @Accept json
// @Produce json
// @Param request body LoginRequest true "Login credentials"
// @Success 200 {object} LoginResponse
// @Failure 400 {object} models.ErrorResponse
// @Failure 401 {object} models.ErrorResponse
// @Router /auth/login [post]
func (h *Handler) Login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.badRequest(c, "Invalid request")
		return
	}

	var userID string
	var hashedPassword string
	err := h.pool.QueryRow(c.Request.Context(),
		`SELECT id, hashed_password FROM users WHERE email = $1`,
		req.Email,
	).Scan(&userID, &hashedPassword)

	if err != nil {
		h.logger.Warn("user not found", zap.String("email", req.Email))
		h.unauthorized(c, "Invalid email or password")
		return
	}

	if err := bcrypt.CompareHashAndPassword([]byte(hashedPassword), []byte(req.Password)); err != nil {
		h.logger.Warn("invalid password", zap.String("email", req.Email))
		h.unauthorized(c, "Invalid email or password")
		return
	}

	token, err := h.jwtManager.GenerateToken(
		c.Request.Context(),
		userID,
		req.Email,
		[]string{"user"},
		24*time.Hour,
	)
	if err != nil {
		h.internalError(c, "Failed to generate token")
		return
	}

	c.JSON(http.StatusOK, LoginResponse{
		Token:  token,
		UserID: userID,
	})
}

// RefreshToken godoc
// @Summary Refresh JWT token
// @Description Exchange a valid token for a fresh one
// @Tags auth
// @Produce json
// @Success 200 {object} LoginResponse
// @Failure 401 {object} models.ErrorResponse
// @Security BearerAuth
// @Router /auth/refresh [post]
func (h *Handler) RefreshToken(c *gin.Context) {
	const prefix = "Bearer "
	header := c.GetHeader("Authorization")
	if len(header) <= len(prefix) {
		h.unauthorized(c, "Missing authorization header")
		return
	}
	token, err := h.jwtManager.RefreshToken(c.Request.Context(), header[len(prefix):], 24*time.Hour)
	if err != nil {
		h.unauthorized(c, "Invalid or expired token")
		return
	}

	userID, _ := c.Get("user_id")
	c.JSON(http.StatusOK, LoginResponse{Token: token, UserID: userID.(string)})
}

// RegisterDocument godoc
// @Summary Register design document
// @Description Register a parsed design-document layer tree
// @Tags documents
// @Accept json
// @Produce json
// @Param request body models.RegisterDocumentRequest true "Parsed layer tree"
// @Success 201 {object} models.Document
// @Failure 400 {object} models.ErrorResponse
// @Security BearerAuth
// @Router /documents [post]
func (h *Handler) RegisterDocument(c *gin.Context) {
	var req models.RegisterDocumentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.badRequest(c, "Invalid request")
		return
	}

	doc, err := h.service.RegisterDocument(c.Request.Context(), &req)
	if err != nil {
		h.logger.Error("failed to register document", zap.Error(err))
		h.internalError(c, "Failed to register document")
		return
	}

	c.JSON(http.StatusCreated, doc)
}

// ListDocuments godoc
// @Summary List documents
// @Description List registered design documents
// @Tags documents
// @Produce json
// @Success 200 {array} models.DocumentSummary
// @Security BearerAuth
// @Router /documents [get]
func (h *Handler) ListDocuments(c *gin.Context) {
	docs, err := h.service.ListDocuments(c.Request.Context())
	if err != nil {
		h.logger.Error("failed to list documents", zap.Error(err))
		h.internalError(c, "Failed to list documents")
		return
	}
	c.JSON(http.StatusOK, docs)
}

// ResolveContainer godoc
// @Summary Resolve container name
// @Description Resolve a requested container group name inside a registered document
// @Tags documents
// @Accept json
// @Produce json
// @Param id path string true "Document ID"
// @Param request body models.ResolveRequest true "Requested name"
// @Success 200 {object} models.ResolveResponse
// @Failure 404 {object} models.ErrorResponse
// @Security BearerAuth
// @Router /documents/{id}/resolve [post]
func (h *Handler) ResolveContainer(c *gin.Context) {
	var req models.ResolveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.badRequest(c, "Invalid request")
		return
	}

	resp, err := h.service.ResolveContainer(c.Request.Context(), c.Param("id"), req.Name)
	if err != nil {
		c.JSON(http.StatusNotFound, models.ErrorResponse{
			Error: "Document not found",
			Code:  models.ErrCodeDocumentNotFound,
		})
		return
	}

	c.JSON(http.StatusOK, resp)
}

// ApplyLayout godoc
// @Summary Apply slot layout
// @Description Run the transform engine and reconcile the result for one slot
// @Tags slots
// @Accept json
// @Produce json
// @Param nodeId path string true "Node ID"
// @Param slotId path string true "Slot ID"
// @Param request body models.LayoutRequest true "Source, target and strategy"
// @Success 200 {object} models.SlotView
// @Failure 400 {object} models.ErrorResponse
// @Security BearerAuth
// @Router /slots/{nodeId}/{slotId}/layout [post]
func (h *Handler) ApplyLayout(c *gin.Context) {
	var req models.LayoutRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.badRequest(c, "Invalid request")
		return
	}

	view, err := h.service.ApplyLayout(c.Request.Context(), h.slotKey(c), &req)
	if err != nil {
		h.logger.Error("failed to apply layout",
			zap.String("node_id", c.Param("nodeId")),
			zap.String("slot_id", c.Param("slotId")),
			zap.Error(err),
		)
		h.internalError(c, "Failed to apply layout")
		return
	}

	c.JSON(http.StatusOK, view)
}

// GetSlot godoc
// @Summary Get slot state
// @Description Current reconciled view for one slot
// @Tags slots
// @Produce json
// @Param nodeId path string true "Node ID"
// @Param slotId path string true "Slot ID"
// @Success 200 {object} models.SlotView
// @Failure 404 {object} models.ErrorResponse
// @Security BearerAuth
// @Router /slots/{nodeId}/{slotId} [get]
func (h *Handler) GetSlot(c *gin.Context) {
	view, err := h.service.GetSlot(h.slotKey(c))
	if err != nil {
		h.slotNotFound(c)
		return
	}
	c.JSON(http.StatusOK, view)
}

// SeekHistory godoc
// @Summary Navigate preview history
// @Description Move the slot's history cursor one step back or forward
// @Tags slots
// @Accept json
// @Produce json
// @Param nodeId path string true "Node ID"
// @Param slotId path string true "Slot ID"
// @Param request body models.SeekRequest true "Direction (-1 or 1)"
// @Success 200 {object} models.SlotView
// @Failure 404 {object} models.ErrorResponse
// @Security BearerAuth
// @Router /slots/{nodeId}/{slotId}/seek [post]
func (h *Handler) SeekHistory(c *gin.Context) {
	var req models.SeekRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.badRequest(c, "Invalid request")
		return
	}

	view, err := h.service.Seek(h.slotKey(c), req.Direction)
	if err != nil {
		h.slotNotFound(c)
		return
	}
	c.JSON(http.StatusOK, view)
}

// ConfirmSlot godoc
// @Summary Confirm slot content
// @Description Promote the displayed (or named) image to canonical slot content
// @Tags slots
// @Accept json
// @Produce json
// @Param nodeId path string true "Node ID"
// @Param slotId path string true "Slot ID"
// @Param request body models.ConfirmRequest false "Image to confirm"
// @Success 200 {object} models.SlotView
// @Failure 404 {object} models.ErrorResponse
// @Security BearerAuth
// @Router /slots/{nodeId}/{slotId}/confirm [post]
func (h *Handler) ConfirmSlot(c *gin.Context) {
	var req models.ConfirmRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			h.badRequest(c, "Invalid request")
			return
		}
	}

	view, err := h.service.Confirm(c.Request.Context(), h.slotKey(c), req.ImageRef)
	if err != nil {
		if err == reconcile.ErrSlotNotFound {
			h.slotNotFound(c)
			return
		}
		h.badRequest(c, err.Error())
		return
	}
	c.JSON(http.StatusOK, view)
}

// SetSlotGeneration godoc
// @Summary Set per-slot generation gate
// @Description Open or close AI generation for one slot
// @Tags slots
// @Accept json
// @Produce json
// @Param nodeId path string true "Node ID"
// @Param slotId path string true "Slot ID"
// @Param request body models.GenerationGateRequest true "Gate state"
// @Success 200 {object} models.SlotView
// @Failure 404 {object} models.ErrorResponse
// @Security BearerAuth
// @Router /slots/{nodeId}/{slotId}/generation [post]
func (h *Handler) SetSlotGeneration(c *gin.Context) {
	var req models.GenerationGateRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.Allowed == nil {
		h.badRequest(c, "Invalid request")
		return
	}

	view, err := h.service.SetSlotGeneration(h.slotKey(c), *req.Allowed)
	if err != nil {
		h.slotNotFound(c)
		return
	}
	c.JSON(http.StatusOK, view)
}

// SetGlobalGeneration godoc
// @Summary Set global generation gate
// @Description Open or close AI generation service-wide
// @Tags generation
// @Accept json
// @Produce json
// @Param request body models.GenerationGateRequest true "Gate state"
// @Success 200 {object} map[string]bool
// @Failure 400 {object} models.ErrorResponse
// @Security BearerAuth
// @Router /generation [post]
func (h *Handler) SetGlobalGeneration(c *gin.Context) {
	var req models.GenerationGateRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.Allowed == nil {
		h.badRequest(c, "Invalid request")
		return
	}

	h.service.SetGlobalGeneration(*req.Allowed)
	c.JSON(http.StatusOK, gin.H{"allowed": *req.Allowed})
}

// DeleteNode godoc
// @Summary Delete node
// @Description Tear down every slot owned by an editor node
// @Tags nodes
// @Produce json
// @Param nodeId path string true "Node ID"
// @Success 200 {object} map[string]int
// @Security BearerAuth
// @Router /nodes/{nodeId} [delete]
func (h *Handler) DeleteNode(c *gin.Context) {
	removed, err := h.service.RemoveNode(c.Request.Context(), c.Param("nodeId"))
	if err != nil {
		h.logger.Error("failed to remove node",
			zap.String("node_id", c.Param("nodeId")),
			zap.Error(err),
		)
		h.internalError(c, "Failed to remove node")
		return
	}
	c.JSON(http.StatusOK, gin.H{"slots_removed": removed})
}

func (h *Handler) slotKey(c *gin.Context) reconcile.SlotKey {
	return reconcile.SlotKey{
		NodeID: c.Param("nodeId"),
		SlotID: c.Param("slotId"),
	}
}

func (h *Handler) badRequest(c *gin.Context, msg string) {
	c.JSON(http.StatusBadRequest, models.ErrorResponse{Error: msg, Code: models.ErrCodeInvalidRequest})
}

func (h *Handler) unauthorized(c *gin.Context, msg string) {
	c.JSON(http.StatusUnauthorized, models.ErrorResponse{Error: msg, Code: models.ErrCodeUnauthorized})
}

func (h *Handler) internalError(c *gin.Context, msg string) {
	c.JSON(http.StatusInternalServerError, models.ErrorResponse{Error: msg, Code: models.ErrCodeInternalError})
}

func (h *Handler) slotNotFound(c *gin.Context) {
	c.JSON(http.StatusNotFound, models.ErrorResponse{Error: "Slot not found", Code: models.ErrCodeSlotNotFound})
}
