package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"studio-session/internal/auth"
	"studio-session/internal/log"
	"studio-session/internal/middleware"
	"studio-session/internal/session"
	"studio-session/internal/store"
)

type AuthHandler struct {
	Store       *store.Store
	Sessions    *session.Manager
	TokenConfig auth.TokenConfig
}

type authBody struct {
	auth.Proof
	Email string `json:"email"`
}

// Auth verifies the signed challenge, issues a token and starts the
// activity session for the account.
func (h *AuthHandler) Auth(c *gin.Context) {
	var body authBody
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
		return
	}

	publicKey, err := body.Proof.Verify()
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
		return
	}

	account, created := h.Store.GetOrCreateAccount(publicKey, body.Email, time.Now().UnixMilli())
	id := auth.Identity{UserID: account.ID, Email: account.Email, IsAdmin: account.IsAdmin}
	token, err := auth.CreateToken(id, h.TokenConfig)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Token creation failed"})
		return
	}

	status, err := h.Sessions.Login(c.Request.Context(), id.UserID, id.Email, id.IsAdmin)
	if err != nil {
		log.Error().Err(err).Str("user", id.UserID).Msg("auth: start session")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Session start failed"})
		return
	}
	if created {
		log.Info().Str("user", id.UserID).Msg("auth: account created")
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "token": token, "userId": id.UserID, "session": status})
}

// Logout ends the caller's session in every tab.
func (h *AuthHandler) Logout(c *gin.Context) {
	userID, ok := middleware.UserIDFromContext(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid authentication token"})
		return
	}
	h.Sessions.Logout(userID)
	c.JSON(http.StatusOK, gin.H{"success": true})
}
