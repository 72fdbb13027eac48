package handlers

import (
	"io"
	"log/slog"

	"github.com/gofiber/fiber/v2"

	"github.com/crosspost-app/crosspost/internal/service"
)

type MediaHandler struct {
	storage *service.StorageService
}

func NewMediaHandler(storage *service.StorageService) *MediaHandler {
	return &MediaHandler{storage: storage}
}

func (h *MediaHandler) Upload(c *fiber.Ctx) error {
	fileHeader, err := c.FormFile("file")
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "No file provided",
		})
	}

	file, err := fileHeader.Open()
	if err != nil {
		slog.Error(err.Error())
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Unable to open file",
		})
	}
	defer file.Close()

	fileBytes, err := io.ReadAll(file)
	if err != nil {
		slog.Error(err.Error())
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Unable to read file",
		})
	}

	url, err := h.storage.Upload(c.Context(), fileBytes)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": err.Error(),
		})
	}

	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"media_url": url,
	})
}
