package handler

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/hashicorp/go-multierror"

	"studio-session/internal/draft"
	"studio-session/internal/keyspace"
	"studio-session/internal/log"
	"studio-session/internal/middleware"
	"studio-session/internal/model"
	"studio-session/internal/opencard"
)

type DraftHandler struct {
	Drafts *draft.Manager
	Cards  *opencard.Tracker
}

func (h *DraftHandler) GetClient(c *gin.Context) {
	userID, ok := middleware.UserIDFromContext(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid authentication token"})
		return
	}
	d, found := h.Drafts.LoadClientDraft(userID, time.Now().UnixMilli())
	if !found {
		c.JSON(http.StatusOK, gin.H{"draft": nil})
		return
	}
	c.JSON(http.StatusOK, gin.H{"draft": d})
}

func (h *DraftHandler) PutClient(c *gin.Context) {
	userID, ok := middleware.UserIDFromContext(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid authentication token"})
		return
	}
	var body model.ClientDraft
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
		return
	}
	if err := h.Drafts.SaveClientDraft(userID, body, time.Now().UnixMilli()); err != nil {
		storageError(c, err, "save client draft")
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "cleared": body.Empty()})
}

func (h *DraftHandler) DeleteClient(c *gin.Context) {
	userID, ok := middleware.UserIDFromContext(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid authentication token"})
		return
	}
	if err := h.Drafts.ClearClientDraft(userID); err != nil {
		storageError(c, err, "clear client draft")
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

func (h *DraftHandler) GetProject(c *gin.Context) {
	userID, ok := middleware.UserIDFromContext(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid authentication token"})
		return
	}
	clientID := c.Param("clientId")
	if !keyspace.ValidID(clientID) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid client id"})
		return
	}
	d, found := h.Drafts.LoadProjectDraft(userID, clientID, time.Now().UnixMilli())
	if !found {
		c.JSON(http.StatusOK, gin.H{"draft": nil})
		return
	}
	c.JSON(http.StatusOK, gin.H{"draft": d})
}

func (h *DraftHandler) PutProject(c *gin.Context) {
	userID, ok := middleware.UserIDFromContext(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid authentication token"})
		return
	}
	var body model.ProjectDraft
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
		return
	}
	if err := h.Drafts.SaveProjectDraft(userID, c.Param("clientId"), body, time.Now().UnixMilli()); err != nil {
		storageError(c, err, "save project draft")
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "cleared": body.Empty()})
}

func (h *DraftHandler) DeleteProject(c *gin.Context) {
	userID, ok := middleware.UserIDFromContext(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid authentication token"})
		return
	}
	if err := h.Drafts.ClearProjectDraft(userID, c.Param("clientId")); err != nil {
		storageError(c, err, "clear project draft")
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

func (h *DraftHandler) ListProjects(c *gin.Context) {
	userID, ok := middleware.UserIDFromContext(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid authentication token"})
		return
	}
	entries, err := h.Drafts.ListProjectDrafts(userID, time.Now().UnixMilli())
	if err != nil {
		storageError(c, err, "list project drafts")
		return
	}
	if entries == nil {
		entries = []draft.ProjectEntry{}
	}
	c.JSON(http.StatusOK, gin.H{"drafts": entries})
}

func (h *DraftHandler) PendingProject(c *gin.Context) {
	userID, ok := middleware.UserIDFromContext(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid authentication token"})
		return
	}
	c.JSON(http.StatusOK, h.Drafts.HasAnyUnsavedProject(userID, time.Now().UnixMilli()))
}

// Sweep evicts every expired draft and open-card marker of the caller.
func (h *DraftHandler) Sweep(c *gin.Context) {
	userID, ok := middleware.UserIDFromContext(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid authentication token"})
		return
	}
	now := time.Now().UnixMilli()

	var errs *multierror.Error
	drafts, err := h.Drafts.EvictExpired(userID, now)
	errs = multierror.Append(errs, err)
	cards, err := h.Cards.EvictExpired(userID, now)
	errs = multierror.Append(errs, err)
	if err := errs.ErrorOrNil(); err != nil {
		log.Warn().Err(err).Str("user", userID).Msg("drafts: sweep incomplete")
	}
	c.JSON(http.StatusOK, gin.H{"drafts": drafts, "openCards": cards, "complete": errs.ErrorOrNil() == nil})
}

type openCardBody struct {
	ClientName string `json:"clientName"`
}

func (h *DraftHandler) MarkOpen(c *gin.Context) {
	userID, ok := middleware.UserIDFromContext(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid authentication token"})
		return
	}
	var body openCardBody
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
		return
	}
	if err := h.Cards.MarkOpen(userID, c.Param("clientId"), body.ClientName, time.Now().UnixMilli()); err != nil {
		storageError(c, err, "mark open card")
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

func (h *DraftHandler) ClearOpen(c *gin.Context) {
	userID, ok := middleware.UserIDFromContext(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid authentication token"})
		return
	}
	if err := h.Cards.ClearOpen(userID, c.Param("clientId")); err != nil {
		storageError(c, err, "clear open card")
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

func (h *DraftHandler) PendingOpen(c *gin.Context) {
	userID, ok := middleware.UserIDFromContext(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid authentication token"})
		return
	}
	c.JSON(http.StatusOK, h.Cards.HasAnyOpenCard(userID, time.Now().UnixMilli()))
}

func storageError(c *gin.Context, err error, op string) {
	if errors.Is(err, keyspace.ErrInvalidID) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid client id"})
		return
	}
	log.Warn().Err(err).Str("op", op).Msg("drafts: storage failure")
	c.JSON(http.StatusInternalServerError, gin.H{"error": "Storage unavailable"})
}
