package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/crosspost-app/crosspost/internal/repository"
)

type AccountHandler struct {
	sa repository.SocialAccountRepository
}

func NewAccountHandler(sa repository.SocialAccountRepository) *AccountHandler {
	return &AccountHandler{sa: sa}
}

func (h *AccountHandler) ListSocialAccounts(c *fiber.Ctx) error {
	userID := GetUserID(c)

	accounts, err := h.sa.GetByUserID(c.Context(), userID)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Unable to list social accounts",
		})
	}

	// Tokens never leave the API.
	for _, acc := range accounts {
		acc.AccessToken = ""
		acc.RefreshToken = ""
	}

	return c.Status(fiber.StatusOK).JSON(accounts)
}

func (h *AccountHandler) DeleteSocialAccount(c *fiber.Ctx) error {
	userID := GetUserID(c)
	accountID := c.QueryInt("id", 0)

	exists, err := h.sa.CheckByUserID(c.Context(), int64(accountID), userID)
	if err != nil || !exists {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Social account doesn't exist",
		})
	}

	if err := h.sa.Remove(c.Context(), int64(accountID)); err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Unable to remove social account",
		})
	}

	return c.SendStatus(fiber.StatusOK)
}
