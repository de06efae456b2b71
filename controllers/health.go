package controllers

import (
	"gradebook_go/services"

	"github.com/gofiber/fiber/v2"
)

type HealthController struct {
	service *services.HealthService
}

func NewHealthController(service *services.HealthService) *HealthController {
	return &HealthController{service: service}
}

// GET /health
// 200 while the gradebook can serve requests, 503 when the mirror or its
// database is unavailable.
func (hc *HealthController) GetHealthStatus(c *fiber.Ctx) error {
	report := hc.service.GetHealthReport()
	return c.Status(hc.service.HTTPStatusForOverall(report.Status)).JSON(report)
}
