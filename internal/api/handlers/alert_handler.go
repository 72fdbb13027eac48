package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/crosspost-app/crosspost/internal/repository"
)

type AlertHandler struct {
	ar repository.AlertRepository
}

func NewAlertHandler(ar repository.AlertRepository) *AlertHandler {
	return &AlertHandler{ar: ar}
}

func (h *AlertHandler) ListAlerts(c *fiber.Ctx) error {
	userID := GetUserID(c)

	alerts, err := h.ar.GetByUserID(c.Context(), userID)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Unable to list alerts",
		})
	}

	unread, err := h.ar.CountUnread(c.Context(), userID)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Unable to count unread alerts",
		})
	}

	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"alerts": alerts,
		"unread": unread,
	})
}

func (h *AlertHandler) MarkRead(c *fiber.Ctx) error {
	userID := GetUserID(c)
	alertID := c.QueryInt("id", 0)

	if alertID == 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Missing alert id",
		})
	}

	if err := h.ar.MarkRead(c.Context(), userID, int64(alertID)); err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Unable to mark alert as read",
		})
	}

	return c.SendStatus(fiber.StatusOK)
}
