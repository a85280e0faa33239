package ws

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"chat-backend/internal/auth"
	"chat-backend/internal/middleware"
	"chat-backend/internal/models"
	"chat-backend/internal/observability"
	"chat-backend/internal/rabbitmq"
	"chat-backend/internal/repositories"
)

// SessionHandler owns the websocket entry point: it authenticates the
// user, registers the connection and runs the per-connection read loop.
// Frames on one connection are processed strictly in arrival order.
type SessionHandler struct {
	registry    *Registry
	dispatcher  *Dispatcher
	chatRepo    repositories.ChatRepository
	messageRepo repositories.MessageRepository
	userRepo    repositories.UserRepository
	jwtManager  *auth.JWTManager
	publisher   rabbitmq.Publisher
}

// NewSessionHandler constructs a SessionHandler.
func NewSessionHandler(
	registry *Registry,
	dispatcher *Dispatcher,
	chatRepo repositories.ChatRepository,
	messageRepo repositories.MessageRepository,
	userRepo repositories.UserRepository,
	jwtManager *auth.JWTManager,
	publisher rabbitmq.Publisher,
) *SessionHandler {
	return &SessionHandler{
		registry:    registry,
		dispatcher:  dispatcher,
		chatRepo:    chatRepo,
		messageRepo: messageRepo,
		userRepo:    userRepo,
		jwtManager:  jwtManager,
		publisher:   publisher,
	}
}

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// Handle upgrades the connection, registers it and starts the read loop.
func (h *SessionHandler) Handle(c *gin.Context) {
	ctx, span := otel.Tracer("chat-backend/ws").Start(c.Request.Context(), "ws.handshake")
	defer span.End()
	c.Request = c.Request.WithContext(ctx)

	userID, err := h.jwtManager.ValidateToken(tokenFromRequest(c))
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
		return
	}

	wsConn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		return
	}

	conn := NewConn(wsConn)
	info := ConnInfo{
		ConnID:      newConnID(),
		UserID:      userID,
		IP:          observability.IPFromRequest(c.Request),
		RequestID:   observability.RequestIDFromRequest(c.Request),
		TraceID:     trace.SpanContextFromContext(ctx).TraceID().String(),
		ConnectedAt: time.Now(),
	}
	h.registry.Register(userID, conn)

	observability.IncWSActive()
	observability.IncWSEvent("ws_connect")
	h.publishWSEvent(ctx, "ws_connect", info, "")

	// The request context is canceled once this handler returns, but the
	// session outlives it; detach while keeping trace values.
	go h.readLoop(context.WithoutCancel(ctx), conn, info)
}

func (h *SessionHandler) readLoop(ctx context.Context, conn *Conn, info ConnInfo) {
	var closeReason string
	defer func() {
		h.registry.Unregister(info.UserID, conn)
		conn.Close()
		observability.DecWSActive()
		observability.IncWSEvent("ws_disconnect")
		h.publishWSEvent(ctx, "ws_disconnect", info, closeReason)
	}()

	for {
		data, err := conn.ReadMessage()
		if err != nil {
			closeReason = err.Error()
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				observability.IncWSEvent("ws_error")
				h.publishWSEvent(ctx, "ws_error", info, closeReason)
			}
			return
		}
		h.handleFrame(ctx, info.UserID, conn, data)
	}
}

func (h *SessionHandler) handleFrame(ctx context.Context, userID int, conn *Conn, data []byte) {
	f, err := decodeFrame(data)
	if err != nil {
		// Undecodable frames get an error envelope; the connection stays open.
		if sendErr := conn.SendEnvelope(models.ErrorEvent{Error: "invalid JSON"}); sendErr != nil {
			log.Printf("send error envelope to user %d: %v", userID, sendErr)
		}
		return
	}

	switch {
	case f.Message != nil:
		h.handleMessage(ctx, userID, conn, *f.Message)
	case f.CreateChat != nil:
		h.handleCreateChat(ctx, userID, *f.CreateChat)
	default:
		// Unrecognized frame types are dropped; see decodeFrame.
	}
}

func (h *SessionHandler) handleMessage(ctx context.Context, userID int, conn *Conn, f messageFrame) {
	if f.ChatID == 0 || f.Content == "" {
		// Incomplete frames are dropped without a reply.
		return
	}

	member, err := h.chatRepo.IsParticipant(ctx, f.ChatID, userID)
	if err != nil {
		log.Printf("membership check for chat %d: %v", f.ChatID, err)
		return
	}
	if !member {
		// Same membership policy as the HTTP endpoints.
		if sendErr := conn.SendEnvelope(models.ErrorEvent{Error: "not a chat participant"}); sendErr != nil {
			log.Printf("send error envelope to user %d: %v", userID, sendErr)
		}
		return
	}

	msg, err := h.messageRepo.AppendMessage(ctx, f.ChatID, userID, f.Content)
	if err != nil {
		log.Printf("store message for chat %d: %v", f.ChatID, err)
		return
	}

	event := models.NewMessageEvent(msg, h.senderName(ctx, userID))
	h.dispatcher.BroadcastToChat(ctx, f.ChatID, event, userID)
	// Echo the event back to the sender as the local acknowledgment.
	h.dispatcher.SendToUser(userID, event)
}

func (h *SessionHandler) handleCreateChat(ctx context.Context, userID int, f createChatFrame) {
	participantIDs := f.ParticipantIDs
	included := false
	for _, id := range participantIDs {
		if id == userID {
			included = true
			break
		}
	}
	if !included {
		participantIDs = append(participantIDs, userID)
	}

	chat, err := h.chatRepo.CreateChat(ctx, f.Name, participantIDs)
	if err != nil {
		log.Printf("create chat: %v", err)
		return
	}

	// Offline participants miss the notification; they see the chat on
	// their next listing fetch.
	event := models.NewChatCreatedEvent(chat)
	for _, participantID := range participantIDs {
		h.dispatcher.SendToUser(participantID, event)
	}
}

func (h *SessionHandler) senderName(ctx context.Context, userID int) string {
	user, err := h.userRepo.GetUser(ctx, userID)
	if err != nil {
		return fmt.Sprintf("User%d", userID)
	}
	return user.Name
}

func (h *SessionHandler) publishWSEvent(ctx context.Context, event string, info ConnInfo, reason string) {
	if h.publisher == nil {
		return
	}
	envelope := rabbitmq.EventEnvelope{
		EventType: "ws_events",
		EventName: event,
		Payload: map[string]any{
			"ws": map[string]any{
				"event":       event,
				"conn_id":     info.ConnID,
				"duration_ms": time.Since(info.ConnectedAt).Milliseconds(),
				"reason":      reason,
			},
			"identity": map[string]any{
				"user_id":    info.UserID,
				"ip":         info.IP,
				"request_id": info.RequestID,
				"trace_id":   info.TraceID,
			},
		},
	}
	if err := h.publisher.Publish(ctx, "ws_events.sessions", envelope); err != nil {
		log.Printf("publish %s event: %v", event, err)
	}
}

func tokenFromRequest(c *gin.Context) string {
	if header := c.GetHeader("Authorization"); header != "" {
		parts := strings.SplitN(header, " ", 2)
		if len(parts) == 2 && strings.EqualFold(parts[0], "bearer") {
			return parts[1]
		}
		return ""
	}
	if token := c.Query("token"); token != "" {
		return token
	}
	if cookie, err := c.Cookie(middleware.AccessTokenCookie); err == nil {
		return cookie
	}
	return ""
}
