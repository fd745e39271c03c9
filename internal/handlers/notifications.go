package handlers

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/nferrante/accesshub/internal/services"
	appErrors "github.com/nferrante/accesshub/pkg/errors"
	"github.com/nferrante/accesshub/pkg/response"
)

// NotificationHandler exposes a user's in-app notifications.
type NotificationHandler struct {
	notifications *services.NotificationService
}

// NewNotificationHandler constructs a NotificationHandler.
func NewNotificationHandler(notifications *services.NotificationService) (*NotificationHandler, error) {
	if notifications == nil {
		return nil, errors.New("notification handler: notification service is required")
	}
	return &NotificationHandler{notifications: notifications}, nil
}

// GET /api/notifications?limit=25
func (h *NotificationHandler) List(c *gin.Context) {
	userID := strings.TrimSpace(c.GetHeader(actorHeader))
	if userID == "" {
		response.Error(c, appErrors.NewBadRequest("the "+actorHeader+" header is required"))
		return
	}

	limit := 0
	if raw := c.Query("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil {
			response.Error(c, appErrors.NewBadRequest("limit must be an integer"))
			return
		}
		limit = parsed
	}

	rows, err := h.notifications.ListForUser(requestContext(c), userID, limit)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"notifications": rows})
}

// POST /api/notifications/:notificationID/read
func (h *NotificationHandler) MarkRead(c *gin.Context) {
	userID := strings.TrimSpace(c.GetHeader(actorHeader))
	if userID == "" {
		response.Error(c, appErrors.NewBadRequest("the "+actorHeader+" header is required"))
		return
	}

	if err := h.notifications.MarkRead(requestContext(c), userID, c.Param("notificationID")); err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"read": true})
}
