package handlers

import (
	"strconv"

	"github.com/gofiber/fiber/v2"
)

// GetUserID reads the user id the auth middleware stored on the request.
// Zero means no authenticated user; every repository lookup is scoped by
// user id, so a zero matches nothing.
func GetUserID(c *fiber.Ctx) int64 {
	raw, _ := c.Locals("user_id").(string)
	id, _ := strconv.ParseInt(raw, 10, 64)
	return id
}
