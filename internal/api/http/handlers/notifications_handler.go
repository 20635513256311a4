package handlers

import (
	"strconv"

	"github.com/gofiber/fiber/v2"

	"github.com/campusdesk/servicedesk/internal/api/dto"
	"github.com/campusdesk/servicedesk/internal/auth"
	"github.com/campusdesk/servicedesk/internal/service"
	apperrors "github.com/campusdesk/servicedesk/pkg/util"
)

// NotificationsHandler exposes the caller's notification inbox.
type NotificationsHandler struct {
	notifications *service.NotificationService
}

// NewNotificationsHandler returns a new handler instance.
func NewNotificationsHandler(notifications *service.NotificationService) *NotificationsHandler {
	return &NotificationsHandler{notifications: notifications}
}

// List handles GET /notifications.
func (h *NotificationsHandler) List(c *fiber.Ctx) error {
	user, ok := auth.UserFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("authentication required")
	}
	result, err := h.notifications.ListForUser(c.UserContext(), user.ID,
		c.QueryBool("unread_only", false),
		c.QueryInt("limit", 50),
		c.QueryInt("offset", 0))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"notifications": dto.FromNotifications(result)})
}

// MarkRead handles POST /notifications/:id/read.
func (h *NotificationsHandler) MarkRead(c *fiber.Ctx) error {
	user, ok := auth.UserFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("authentication required")
	}
	id, err := strconv.ParseInt(c.Params("id"), 10, 64)
	if err != nil || id <= 0 {
		return apperrors.NewValidationError("invalid notification id", nil)
	}
	if err := h.notifications.MarkRead(c.UserContext(), id, user.ID); err != nil {
		return err
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// MarkAllRead handles POST /notifications/read-all.
func (h *NotificationsHandler) MarkAllRead(c *fiber.Ctx) error {
	user, ok := auth.UserFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("authentication required")
	}
	if err := h.notifications.MarkAllRead(c.UserContext(), user.ID); err != nil {
		return err
	}
	return c.SendStatus(fiber.StatusNoContent)
}
