package controllers

import (
	"gradebook_go/models"
	"gradebook_go/store"

	"github.com/gofiber/fiber/v2"
)

type CategoryController struct {
	store *store.Store
}

func NewCategoryController(st *store.Store) *CategoryController {
	return &CategoryController{store: st}
}

func (cc *CategoryController) GetCategories(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{"categories": cc.store.Categories()})
}

func (cc *CategoryController) GetCategory(c *fiber.Ctx) error {
	cat, ok := cc.store.Category(param(c, "id"))
	if !ok {
		return respondError(c, models.NotFoundError("category", param(c, "id")))
	}
	return c.JSON(fiber.Map{"category": cat})
}

func (cc *CategoryController) CreateCategory(c *fiber.Ctx) error {
	var cat models.Category
	if err := parseBody(c, &cat); err != nil {
		return respondError(c, err)
	}
	saved, err := cc.store.SaveCategory(c.UserContext(), cat)
	if err != nil {
		return respondError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"message":  "Category saved successfully",
		"category": saved,
	})
}

func (cc *CategoryController) UpdateCategory(c *fiber.Ctx) error {
	id := param(c, "id")
	if _, ok := cc.store.Category(id); !ok {
		return respondError(c, models.NotFoundError("category", id))
	}
	var cat models.Category
	if err := parseBody(c, &cat); err != nil {
		return respondError(c, err)
	}
	cat.ID = id
	saved, err := cc.store.SaveCategory(c.UserContext(), cat)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{
		"message":  "Category updated successfully",
		"category": saved,
	})
}

// DeleteCategory deletes a category. Scores and weights that reference it are kept.
func (cc *CategoryController) DeleteCategory(c *fiber.Ctx) error {
	if err := cc.store.DeleteCategory(c.UserContext(), param(c, "id")); err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{"message": "Category deleted successfully"})
}
