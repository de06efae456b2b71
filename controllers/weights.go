package controllers

import (
	"gradebook_go/middleware"
	"gradebook_go/services"

	"github.com/gofiber/fiber/v2"
)

type WeightController struct {
	weights *services.WeightService
}

func NewWeightController(weights *services.WeightService) *WeightController {
	return &WeightController{weights: weights}
}

// UpdateWeightsRequest maps category ids to whole percentages.
type UpdateWeightsRequest struct {
	Weights map[string]int `json:"weights"`
}

// GetWeights returns the weight form of a subject: every category with its
// current percentage (0 when unset) and the running total.
func (wc *WeightController) GetWeights(c *fiber.Ctx) error {
	form, err := wc.weights.Form(param(c, "subject_id"))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{"weights": form})
}

// UpdateWeights replaces the subject's weights. They must total 100.
func (wc *WeightController) UpdateWeights(c *fiber.Ctx) error {
	var req UpdateWeightsRequest
	if err := parseBody(c, &req); err != nil {
		return respondError(c, err)
	}
	subjectID := param(c, "subject_id")
	if err := wc.weights.SetWeights(c.UserContext(), subjectID, req.Weights); err != nil {
		return respondError(c, err)
	}
	form, err := wc.weights.Form(subjectID)
	if err != nil {
		return respondError(c, err)
	}
	middleware.LogActivity(c, "UPDATE", "weights", subjectID, req.Weights)
	return c.JSON(fiber.Map{
		"message": "Weights saved successfully",
		"weights": form,
	})
}
