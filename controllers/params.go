package controllers

import (
	"github.com/gofiber/fiber/v2"
	fiberutils "github.com/gofiber/fiber/v2/utils"
)

// param returns a route parameter that stays valid after the request ends.
// Fiber hands out strings backed by the reusable request buffer, and ids
// end up as keys in the long-lived store.
func param(c *fiber.Ctx, key string) string {
	return fiberutils.CopyString(c.Params(key))
}
