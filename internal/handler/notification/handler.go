package notification

import (
	"io"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/csssit/club-api/internal/handler"
	"github.com/csssit/club-api/internal/middleware"
	"github.com/csssit/club-api/internal/model"
	"github.com/csssit/club-api/internal/repository"
	notificationService "github.com/csssit/club-api/internal/service/notification"
	"github.com/csssit/club-api/pkg/errors"
)

const (
	defaultListLimit    = 50
	maxListLimit        = 100
	defaultPreviewLimit = 5
)

type Handler struct {
	repo    repository.NotificationRepository
	service notificationService.Service
}

func NewHandler(repo repository.NotificationRepository, service notificationService.Service) *Handler {
	return &Handler{repo: repo, service: service}
}

func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	notifications := r.Group("/notifications")
	{
		notifications.GET("", h.ListNotifications)
		notifications.GET("/unread", h.UnreadPreview)
		notifications.GET("/:id", h.GetNotification)
		notifications.POST("/read", h.MarkAsRead)
	}
}

// RegisterAdminRoutes mounts the announce endpoint; the caller wraps the
// group in the admin role check.
func (h *Handler) RegisterAdminRoutes(r *gin.RouterGroup) {
	r.POST("/notifications", h.Announce)
}

func (h *Handler) ListNotifications(c *gin.Context) {
	recipientID := middleware.UserIDFromContext(c)
	limit := parseLimit(c.Query("limit"), defaultListLimit)

	notifications, err := h.repo.ListForRecipient(c.Request.Context(), recipientID, limit, false)
	if err != nil {
		c.JSON(http.StatusInternalServerError, handler.NewErrorResponse("failed to list notifications"))
		return
	}

	c.JSON(http.StatusOK, handler.NewSuccessResponse(gin.H{"notifications": notifications}))
}

// UnreadPreview powers the notification bell: a small newest-first unread
// slice plus the total unread count.
func (h *Handler) UnreadPreview(c *gin.Context) {
	recipientID := middleware.UserIDFromContext(c)
	limit := parseLimit(c.Query("limit"), defaultPreviewLimit)

	notifications, err := h.repo.ListForRecipient(c.Request.Context(), recipientID, limit, true)
	if err != nil {
		c.JSON(http.StatusInternalServerError, handler.NewErrorResponse("failed to list notifications"))
		return
	}

	count, err := h.repo.CountUnread(c.Request.Context(), recipientID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, handler.NewErrorResponse("failed to count notifications"))
		return
	}

	c.JSON(http.StatusOK, handler.NewSuccessResponse(gin.H{
		"notifications": notifications,
		"count":         count,
	}))
}

// GetNotification returns one notification and marks it read as a side
// effect; viewing the detail is reading it. Idempotent for already-read
// records.
func (h *Handler) GetNotification(c *gin.Context) {
	recipientID := middleware.UserIDFromContext(c)

	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, handler.NewErrorResponse("invalid notification ID"))
		return
	}

	n, err := h.repo.MarkRead(c.Request.Context(), id, recipientID)
	if err != nil {
		if errors.IsNotFound(err) {
			c.JSON(http.StatusNotFound, handler.NewErrorResponse("notification not found"))
			return
		}
		c.JSON(http.StatusInternalServerError, handler.NewErrorResponse("failed to get notification"))
		return
	}

	c.JSON(http.StatusOK, handler.NewSuccessResponse(gin.H{"notification": n}))
}

type markAsReadRequest struct {
	// Count bounds how many of the oldest unread to mark; nil marks all.
	Count *int `json:"count" binding:"omitempty,gt=0"`
}

func (h *Handler) MarkAsRead(c *gin.Context) {
	recipientID := middleware.UserIDFromContext(c)

	// An absent body means "mark everything read", same as an empty object.
	var req markAsReadRequest
	if err := c.ShouldBindJSON(&req); err != nil && err != io.EOF {
		c.JSON(http.StatusBadRequest, handler.NewErrorResponse(err.Error()))
		return
	}

	affected, err := h.repo.MarkManyRead(c.Request.Context(), recipientID, req.Count)
	if err != nil {
		c.JSON(http.StatusInternalServerError, handler.NewErrorResponse("failed to mark notifications read"))
		return
	}

	c.JSON(http.StatusOK, handler.NewSuccessResponse(gin.H{"affected": affected}))
}

type announceRequest struct {
	RecipientIDs []string `json:"recipient_ids" binding:"required,min=1,dive,uuid"`
	Title        string   `json:"title" binding:"required,max=50"`
	Description  string   `json:"description" binding:"required"`
	Code         string   `json:"code"`
	URL          string   `json:"url" binding:"omitempty,url"`
	IsPush       bool     `json:"is_push"`
}

// Announce fans one message out to many members. The calling admin is the
// actor, so their own entry in the recipient list is dropped.
func (h *Handler) Announce(c *gin.Context) {
	actorID := middleware.UserIDFromContext(c)

	var req announceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, handler.NewErrorResponse(err.Error()))
		return
	}

	recipientIDs := make([]uuid.UUID, 0, len(req.RecipientIDs))
	for _, raw := range req.RecipientIDs {
		id, err := uuid.Parse(raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, handler.NewErrorResponse("invalid recipient ID"))
			return
		}
		recipientIDs = append(recipientIDs, id)
	}

	notifications, err := h.service.NotifyMany(c.Request.Context(), recipientIDs, req.Title, req.Description, notificationService.Options{
		Code:    model.NotificationCode(req.Code),
		ActorID: &actorID,
		URL:     req.URL,
		IsPush:  req.IsPush,
	})
	if err != nil {
		if errors.IsValidation(err) {
			c.JSON(http.StatusBadRequest, handler.NewErrorResponse(err.Error()))
			return
		}
		c.JSON(http.StatusInternalServerError, handler.NewErrorResponse("failed to send notifications"))
		return
	}

	c.JSON(http.StatusCreated, handler.NewSuccessResponse(gin.H{
		"notifications": notifications,
		"sent":          len(notifications),
	}))
}

func parseLimit(raw string, fallback int) int {
	if raw == "" {
		return fallback
	}
	limit, err := strconv.Atoi(raw)
	if err != nil || limit < 0 {
		return fallback
	}
	if limit > maxListLimit {
		return maxListLimit
	}
	return limit
}
