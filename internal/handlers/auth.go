package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"messaging-service/internal/models"
	"messaging-service/internal/repositories"
	"messaging-service/internal/telemetry"
	"messaging-service/internal/token"
	"messaging-service/internal/wallet"
)

// AuthHandler manages registration and login. Identity is anchored to a
// wallet: proving control of the wallet key is the only credential.
type AuthHandler struct {
	userRepo repositories.UserRepository
	verifier wallet.SignatureVerifier
	tokens   *token.Manager
	audit    *telemetry.AuditEmitter
}

// NewAuthHandler constructs an AuthHandler.
func NewAuthHandler(userRepo repositories.UserRepository, verifier wallet.SignatureVerifier, tokens *token.Manager, audit *telemetry.AuditEmitter) *AuthHandler {
	return &AuthHandler{
		userRepo: userRepo,
		verifier: verifier,
		tokens:   tokens,
		audit:    audit,
	}
}

// Register handles POST /api/auth/register.
func (h *AuthHandler) Register(c *gin.Context) {
	var req struct {
		Username      string `json:"username" binding:"required"`
		WalletAddress string `json:"wallet_address" binding:"required"`
		PublicKey     string `json:"public_key" binding:"required"`
		Signature     string `json:"signature" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Missing required fields"})
		return
	}

	if err := h.verifier.Verify(c.Request.Context(), req.WalletAddress, req.Signature); err != nil {
		h.emitAudit(c, "ERROR", "registration signature rejected")
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid signature"})
		return
	}

	if err := wallet.ValidatePublicKey(req.PublicKey); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid encryption key"})
		return
	}

	user, err := h.userRepo.CreateUser(c.Request.Context(), req.Username, req.WalletAddress, req.PublicKey)
	if err != nil {
		switch {
		case errors.Is(err, repositories.ErrUsernameTaken):
			c.JSON(http.StatusBadRequest, gin.H{"error": "Username already exists"})
		case errors.Is(err, repositories.ErrWalletTaken):
			c.JSON(http.StatusBadRequest, gin.H{"error": "Wallet address already exists"})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{"error": "could not create user"})
		}
		return
	}

	tok, err := h.tokens.Issue(user.ID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not issue token"})
		return
	}

	h.emitAudit(c, "INFO", "User registered")
	c.JSON(http.StatusCreated, gin.H{
		"message": "User registered successfully",
		"token":   tok,
		"user":    user.Public(),
	})
}

// Login handles POST /api/auth/login.
func (h *AuthHandler) Login(c *gin.Context) {
	var req struct {
		WalletAddress string `json:"wallet_address" binding:"required"`
		Signature     string `json:"signature" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Missing required fields"})
		return
	}

	user, err := h.userRepo.GetUserByWallet(c.Request.Context(), req.WalletAddress)
	if err != nil {
		if errors.Is(err, repositories.ErrUserNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "User not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not load user"})
		return
	}

	if err := h.verifier.Verify(c.Request.Context(), req.WalletAddress, req.Signature); err != nil {
		h.emitAudit(c, "ERROR", "login signature rejected")
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid signature"})
		return
	}

	if err := h.userRepo.TouchLastSeen(c.Request.Context(), user.ID); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not update user"})
		return
	}

	tok, err := h.tokens.Issue(user.ID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not issue token"})
		return
	}

	h.emitAudit(c, "INFO", "User logged in")
	c.JSON(http.StatusOK, gin.H{
		"message": "Login successful",
		"token":   tok,
		"user":    user.Public(),
	})
}

func (h *AuthHandler) emitAudit(c *gin.Context, level, text string) {
	if h.audit == nil {
		return
	}
	h.audit.Emit(c.Request.Context(), level, text, requestIDFromContext(c), userIDFromContext(c))
}

// publicUsers maps users to their API shape.
func publicUsers(users []models.User) []models.PublicUser {
	out := make([]models.PublicUser, 0, len(users))
	for _, u := range users {
		out = append(out, u.Public())
	}
	return out
}
