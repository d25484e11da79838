package gateway

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/draftforge/template-studio/remap-orchestrator/internal/events"
)

var wsTracer = otel.Tracer("event-stream")

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		// TODO: Implement proper origin checking for production
		return true
	},
}

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = 50 * time.Second
)

// EventStream pushes slot lifecycle events to connected editor clients.
// Each connection gets its own bus subscription; a client that cannot keep
// up loses events rather than blocking the reconciler.
type EventStream struct {
	bus    *events.Bus
	logger *zap.Logger
}

// NewEventStream creates the websocket event stream handler.
func NewEventStream(bus *events.Bus, logger *zap.Logger) *EventStream {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &EventStream{bus: bus, logger: logger}
}

// Stream handles GET /api/ws/events
// @Summary Stream slot lifecycle events
// @Description WebSocket endpoint streaming draft-refreshed and related slot events
// @Tags events
// @Param Authorization header string true "Bearer token"
// @Success 101 "Switching Protocols"
// @Failure 401 {object} map[string]string
// @Security BearerAuth
// @Router /ws/events [get]
func (s *EventStream) Stream(c *gin.Context) {
	_, span := wsTracer.Start(c.Request.Context(), "event_stream.connect")
	defer span.End()

	userID, exists := c.Get("user_id")
	if !exists {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "User not authenticated"})
		return
	}
	span.SetAttributes(attribute.String("user.id", userID.(string)))

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		span.RecordError(err)
		s.logger.Warn("websocket upgrade failed", zap.Error(err))
		return
	}
	defer conn.Close()

	ch, cancel := s.bus.Subscribe(64)
	defer cancel()

	s.logger.Info("event stream connected", zap.String("user_id", userID.(string)))

	// Reader goroutine: the stream is one-way, client messages are drained
	// only to detect disconnects and service pongs.
	done := make(chan struct{})
	go func() {
		defer close(done)
		conn.SetReadDeadline(time.Now().Add(pongWait))
		conn.SetPongHandler(func(string) error {
			return conn.SetReadDeadline(time.Now().Add(pongWait))
		})
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case evt, ok := <-ch:
			if !ok {
				conn.SetWriteDeadline(time.Now().Add(writeWait))
				conn.WriteMessage(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseGoingAway, "shutting down"))
				return
			}
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteJSON(evt); err != nil {
				s.logger.Debug("event stream write failed", zap.Error(err))
				return
			}
		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-done:
			s.logger.Info("event stream disconnected", zap.String("user_id", userID.(string)))
			return
		}
	}
}
