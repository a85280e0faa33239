package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"chat-backend/internal/models"
	"chat-backend/internal/repositories"
	"chat-backend/internal/telemetry"
	"chat-backend/internal/ws"
)

// ChatHandler manages chat and message endpoints. Membership is
// enforced on every chat-scoped route: non-participants get a 404, the
// same policy the websocket entry point applies.
type ChatHandler struct {
	chatRepo    repositories.ChatRepository
	messageRepo repositories.MessageRepository
	userRepo    repositories.UserRepository
	dispatcher  *ws.Dispatcher
	audit       *telemetry.AuditEmitter
}

// NewChatHandler builds a ChatHandler.
func NewChatHandler(
	chatRepo repositories.ChatRepository,
	messageRepo repositories.MessageRepository,
	userRepo repositories.UserRepository,
	dispatcher *ws.Dispatcher,
	audit *telemetry.AuditEmitter,
) *ChatHandler {
	return &ChatHandler{
		chatRepo:    chatRepo,
		messageRepo: messageRepo,
		userRepo:    userRepo,
		dispatcher:  dispatcher,
		audit:       audit,
	}
}

// ListChats returns the chats the authenticated user participates in.
func (h *ChatHandler) ListChats(c *gin.Context) {
	userID := c.GetInt("userID")

	chats, err := h.chatRepo.ListChatsForUser(c.Request.Context(), userID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load chats"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"chats": chats})
}

// CreateChat creates a chat; the caller is always added as a participant.
func (h *ChatHandler) CreateChat(c *gin.Context) {
	userID := c.GetInt("userID")

	var req struct {
		Name           *string `json:"name"`
		ParticipantIDs []int   `json:"participant_ids" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	participantIDs := req.ParticipantIDs
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

	chat, err := h.chatRepo.CreateChat(c.Request.Context(), req.Name, participantIDs)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not create chat"})
		return
	}

	// Online participants learn about the chat immediately, same as the
	// websocket create_chat path.
	event := models.NewChatCreatedEvent(chat)
	for _, participantID := range participantIDs {
		h.dispatcher.SendToUser(participantID, event)
	}

	emitAudit(c, h.audit, "INFO", "chat created")
	c.JSON(http.StatusCreated, gin.H{
		"id":                chat.ID,
		"name":              chat.Name,
		"created_at":        chat.CreatedAt,
		"participant_count": len(participantIDs),
	})
}

// GetChatMessages returns a chat's history in creation-time order.
func (h *ChatHandler) GetChatMessages(c *gin.Context) {
	chatID, userID, ok := chatScope(c)
	if !ok {
		return
	}
	if !h.requireParticipant(c, chatID, userID) {
		return
	}

	msgs, err := h.messageRepo.ListMessages(c.Request.Context(), chatID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load messages"})
		return
	}

	names, err := h.userNames(c)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load senders"})
		return
	}

	type messageResponse struct {
		models.Message
		SenderName string `json:"sender_name,omitempty"`
	}
	responses := make([]messageResponse, 0, len(msgs))
	for _, m := range msgs {
		responses = append(responses, messageResponse{Message: m, SenderName: names[m.SenderID]})
	}

	c.JSON(http.StatusOK, gin.H{"messages": responses})
}

// PostChatMessage stores a message and fans it out to online participants.
func (h *ChatHandler) PostChatMessage(c *gin.Context) {
	chatID, userID, ok := chatScope(c)
	if !ok {
		return
	}
	if !h.requireParticipant(c, chatID, userID) {
		return
	}

	var req struct {
		Content string `json:"content" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	msg, err := h.messageRepo.AppendMessage(c.Request.Context(), chatID, userID, req.Content)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to store message"})
		return
	}

	senderName := ""
	if user, err := h.userRepo.GetUser(c.Request.Context(), userID); err == nil {
		senderName = user.Name
	}

	event := models.NewMessageEvent(msg, senderName)
	h.dispatcher.BroadcastToChat(c.Request.Context(), chatID, event, userID)

	c.JSON(http.StatusCreated, event)
}

// AddParticipant appends a user to the chat's participant set.
func (h *ChatHandler) AddParticipant(c *gin.Context) {
	chatID, userID, ok := chatScope(c)
	if !ok {
		return
	}
	if !h.requireParticipant(c, chatID, userID) {
		return
	}

	var req struct {
		UserID int `json:"user_id" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if _, err := h.userRepo.GetUser(c.Request.Context(), req.UserID); err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, repositories.ErrUserNotFound) {
			status = http.StatusNotFound
		}
		c.JSON(status, gin.H{"error": "user not found"})
		return
	}

	if err := h.chatRepo.AddParticipant(c.Request.Context(), chatID, req.UserID); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not add participant"})
		return
	}

	emitAudit(c, h.audit, "INFO", "participant added")
	c.Status(http.StatusNoContent)
}

func chatScope(c *gin.Context) (int, int, bool) {
	chatID, err := strconv.Atoi(c.Param("chat_id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid chat id"})
		return 0, 0, false
	}
	return chatID, c.GetInt("userID"), true
}

// requireParticipant answers 404 for unknown chats and non-members
// alike, so membership cannot be probed.
func (h *ChatHandler) requireParticipant(c *gin.Context, chatID, userID int) bool {
	member, err := h.chatRepo.IsParticipant(c.Request.Context(), chatID, userID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to verify membership"})
		return false
	}
	if !member {
		c.JSON(http.StatusNotFound, gin.H{"error": "chat not found"})
		return false
	}
	return true
}

func (h *ChatHandler) userNames(c *gin.Context) (map[int]string, error) {
	users, err := h.userRepo.ListUsers(c.Request.Context())
	if err != nil {
		return nil, err
	}
	names := make(map[int]string, len(users))
	for _, u := range users {
		names[u.ID] = u.Name
	}
	return names, nil
}
