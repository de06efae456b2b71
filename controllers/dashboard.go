package controllers

import (
	"gradebook_go/services"

	"github.com/gofiber/fiber/v2"
)

type DashboardController struct {
	dashboard *services.DashboardService
}

func NewDashboardController(dashboard *services.DashboardService) *DashboardController {
	return &DashboardController{dashboard: dashboard}
}

func (dc *DashboardController) GetStats(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{"stats": dc.dashboard.Stats()})
}
