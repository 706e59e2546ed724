package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"messaging-service/internal/models"
	"messaging-service/internal/observability"
	"messaging-service/internal/repositories"
	"messaging-service/internal/telemetry"
	"messaging-service/internal/ws"
)

// MessageHandler is the delivery fan-out engine: it expands one inbound
// message into per-recipient ledger rows and triggers the realtime
// notification after the rows commit.
type MessageHandler struct {
	chatRepo    repositories.ChatRepository
	messageRepo repositories.MessageRepository
	hub         *ws.Hub
	audit       *telemetry.AuditEmitter
}

// NewMessageHandler constructs a MessageHandler.
func NewMessageHandler(chatRepo repositories.ChatRepository, messageRepo repositories.MessageRepository, hub *ws.Hub, audit *telemetry.AuditEmitter) *MessageHandler {
	return &MessageHandler{
		chatRepo:    chatRepo,
		messageRepo: messageRepo,
		hub:         hub,
		audit:       audit,
	}
}

// GetMessages returns the caller's message history. Membership in the named
// chat gates access, but the rows returned are the caller's whole flat inbox:
// ledger rows carry no chat identifier, so there is nothing narrower to
// filter on.
func (h *MessageHandler) GetMessages(c *gin.Context) {
	chatID := c.Param("chat_id")
	userID := c.GetString("userID")

	if _, err := h.chatRepo.GetChat(c.Request.Context(), chatID); err != nil {
		if errors.Is(err, repositories.ErrChatNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Chat not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load chat"})
		return
	}

	member, err := h.chatRepo.IsParticipant(c.Request.Context(), chatID, userID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to verify membership"})
		return
	}
	if !member {
		c.JSON(http.StatusForbidden, gin.H{"error": "Unauthorized access to chat"})
		return
	}

	msgs, err := h.messageRepo.ListForUser(c.Request.Context(), userID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load messages"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"messages": msgs})
}

// SendMessage handles POST /api/chats/:chat_id/messages. One ledger row is
// written per recipient in a single transaction, then the chat room is
// notified with a lightweight event that skips the sender's connections.
func (h *MessageHandler) SendMessage(c *gin.Context) {
	chatID := c.Param("chat_id")
	userID := c.GetString("userID")

	var req struct {
		EncryptedContent string  `json:"encrypted_content" binding:"required"`
		BlobHash         *string `json:"ipfs_hash"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Missing required fields"})
		return
	}

	if _, err := h.chatRepo.GetChat(c.Request.Context(), chatID); err != nil {
		if errors.Is(err, repositories.ErrChatNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Chat not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load chat"})
		return
	}

	member, err := h.chatRepo.IsParticipant(c.Request.Context(), chatID, userID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to verify membership"})
		return
	}
	if !member {
		c.JSON(http.StatusForbidden, gin.H{"error": "Unauthorized access to chat"})
		return
	}

	participants, err := h.chatRepo.ListParticipants(c.Request.Context(), chatID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load participants"})
		return
	}
	recipientIDs := make([]string, 0, len(participants)-1)
	for _, p := range participants {
		if p.ID != userID {
			recipientIDs = append(recipientIDs, p.ID)
		}
	}
	if len(recipientIDs) == 0 {
		c.JSON(http.StatusNotFound, gin.H{"error": "Recipient not found"})
		return
	}

	msgs, err := h.messageRepo.CreateFanout(c.Request.Context(), userID, recipientIDs, req.EncryptedContent, req.BlobHash)
	if err != nil {
		h.emitAudit(c, "ERROR", "message fan-out failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to store message"})
		return
	}

	observability.ObserveFanout(len(msgs))
	h.emitAudit(c, "INFO", "Message sent")

	h.hub.NotifyMessage(chatID, models.MessageEvent{
		Type:      "message",
		ChatID:    chatID,
		MessageID: msgs[0].ID,
		SenderID:  userID,
	}, userID)

	ids := make([]string, 0, len(msgs))
	for _, m := range msgs {
		ids = append(ids, m.ID)
	}
	c.JSON(http.StatusCreated, gin.H{
		"message":     "Message sent successfully",
		"message_id":  ids[0],
		"message_ids": ids,
	})
}

// MarkRead handles POST /api/messages/:message_id/read. Only the recipient
// of a ledger row may flip its read flag.
func (h *MessageHandler) MarkRead(c *gin.Context) {
	messageID := c.Param("message_id")
	userID := c.GetString("userID")

	msg, err := h.messageRepo.GetMessage(c.Request.Context(), messageID)
	if err != nil {
		if errors.Is(err, repositories.ErrMessageNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Message not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load message"})
		return
	}
	if msg.RecipientID != userID {
		c.JSON(http.StatusForbidden, gin.H{"error": "only the recipient can mark a message read"})
		return
	}

	if err := h.messageRepo.MarkRead(c.Request.Context(), messageID, userID); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not update message"})
		return
	}

	c.Status(http.StatusNoContent)
}

func (h *MessageHandler) emitAudit(c *gin.Context, level, text string) {
	if h.audit == nil {
		return
	}
	h.audit.Emit(c.Request.Context(), level, text, requestIDFromContext(c), userIDFromContext(c))
}
