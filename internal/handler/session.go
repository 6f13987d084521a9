package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"studio-session/internal/middleware"
	"studio-session/internal/session"
)

type SessionHandler struct {
	Sessions *session.Manager
}

type activityBody struct {
	Page string `json:"page"`
}

func (h *SessionHandler) Activity(c *gin.Context) {
	userID, ok := middleware.UserIDFromContext(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid authentication token"})
		return
	}
	var body activityBody
	// An empty body is a plain "still here".
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&body); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
			return
		}
	}
	if err := h.Sessions.Touch(userID, body.Page); err != nil {
		sessionError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *SessionHandler) Get(c *gin.Context) {
	userID, ok := middleware.UserIDFromContext(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid authentication token"})
		return
	}
	status, err := h.Sessions.Status(userID)
	if err != nil {
		sessionError(c, err)
		return
	}
	c.JSON(http.StatusOK, status)
}

func (h *SessionHandler) Extend(c *gin.Context) {
	userID, ok := middleware.UserIDFromContext(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid authentication token"})
		return
	}
	if err := h.Sessions.Extend(userID); err != nil {
		sessionError(c, err)
		return
	}
	status, err := h.Sessions.Status(userID)
	if err != nil {
		sessionError(c, err)
		return
	}
	c.JSON(http.StatusOK, status)
}

func (h *SessionHandler) Config(c *gin.Context) {
	userID, ok := middleware.UserIDFromContext(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid authentication token"})
		return
	}
	cfg, err := h.Sessions.Config(userID)
	if err != nil {
		sessionError(c, err)
		return
	}
	c.JSON(http.StatusOK, cfg)
}

func sessionError(c *gin.Context, err error) {
	if errors.Is(err, session.ErrNoSession) {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Session expired"})
		return
	}
	c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal error"})
}
