package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"messaging-service/internal/models"
	"messaging-service/internal/repositories"
	"messaging-service/internal/telemetry"
)

// ChatHandler manages conversation endpoints.
type ChatHandler struct {
	chatRepo repositories.ChatRepository
	userRepo repositories.UserRepository
	audit    *telemetry.AuditEmitter
}

// NewChatHandler builds a ChatHandler.
func NewChatHandler(chatRepo repositories.ChatRepository, userRepo repositories.UserRepository, audit *telemetry.AuditEmitter) *ChatHandler {
	return &ChatHandler{
		chatRepo: chatRepo,
		userRepo: userRepo,
		audit:    audit,
	}
}

// ListChats returns every chat the caller participates in, with the display
// name derived per chat: the group name, or the other participant's username
// for direct chats.
func (h *ChatHandler) ListChats(c *gin.Context) {
	userID := c.GetString("userID")

	chats, err := h.chatRepo.ListChatsForUser(c.Request.Context(), userID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load chats"})
		return
	}

	summaries := make([]models.ChatSummary, 0, len(chats))
	for _, chat := range chats {
		participants, err := h.chatRepo.ListParticipants(c.Request.Context(), chat.ID)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load participants"})
			return
		}
		summaries = append(summaries, summarizeChat(chat, participants, userID))
	}

	c.JSON(http.StatusOK, gin.H{"chats": summaries})
}

// CreateChat handles POST /api/chats. Direct-chat creation is idempotent: a
// second request for the same pair returns the existing chat with 200.
func (h *ChatHandler) CreateChat(c *gin.Context) {
	userID := c.GetString("userID")

	var req struct {
		Participants []string `json:"participants"`
		Name         string   `json:"name"`
	}
	if err := c.ShouldBindJSON(&req); err != nil || len(req.Participants) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "No participants specified"})
		return
	}

	isGroup := len(req.Participants) > 1 || req.Name != ""
	if !isGroup {
		otherID := req.Participants[0]
		if _, err := h.userRepo.GetUser(c.Request.Context(), otherID); err != nil {
			if errors.Is(err, repositories.ErrUserNotFound) {
				c.JSON(http.StatusNotFound, gin.H{"error": "Participant not found"})
				return
			}
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load participant"})
			return
		}

		existing, err := h.chatRepo.FindDirectChat(c.Request.Context(), userID, otherID)
		if err == nil {
			h.respondWithChat(c, http.StatusOK, "Chat already exists", existing, userID)
			return
		}
		if !errors.Is(err, repositories.ErrChatNotFound) {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to look up chat"})
			return
		}
	}

	chat, err := h.chatRepo.CreateChat(c.Request.Context(), userID, req.Participants, req.Name)
	if err != nil {
		if errors.Is(err, repositories.ErrUserNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Participant not found"})
			return
		}
		h.emitAudit(c, "ERROR", "chat creation failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not create chat"})
		return
	}

	h.emitAudit(c, "INFO", "Chat created")
	h.respondWithChat(c, http.StatusCreated, "Chat created successfully", chat, userID)
}

func (h *ChatHandler) respondWithChat(c *gin.Context, status int, message string, chat models.Chat, userID string) {
	participants, err := h.chatRepo.ListParticipants(c.Request.Context(), chat.ID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load participants"})
		return
	}
	c.JSON(status, gin.H{
		"message": message,
		"chat":    summarizeChat(chat, participants, userID),
	})
}

// summarizeChat builds the per-user chat view.
func summarizeChat(chat models.Chat, participants []models.User, userID string) models.ChatSummary {
	name := ""
	if chat.IsGroup {
		if chat.Name != nil {
			name = *chat.Name
		}
	} else {
		name = "Unknown"
		for _, p := range participants {
			if p.ID != userID {
				name = p.Username
				break
			}
		}
	}
	return models.ChatSummary{
		ID:           chat.ID,
		Name:         name,
		IsGroup:      chat.IsGroup,
		CreatedAt:    chat.CreatedAt,
		Participants: publicUsers(participants),
	}
}

func (h *ChatHandler) emitAudit(c *gin.Context, level, text string) {
	if h.audit == nil {
		return
	}
	h.audit.Emit(c.Request.Context(), level, text, requestIDFromContext(c), userIDFromContext(c))
}
