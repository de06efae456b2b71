package controllers

import (
	"gradebook_go/models"
	"gradebook_go/store"

	"github.com/gofiber/fiber/v2"
)

type ClassController struct {
	store *store.Store
}

func NewClassController(st *store.Store) *ClassController {
	return &ClassController{store: st}
}

// ClassView is a class with its student count
type ClassView struct {
	models.Class
	StudentCount int `json:"student_count"`
}

// GetClasses returns all classes
func (cc *ClassController) GetClasses(c *fiber.Ctx) error {
	classes := cc.store.Classes()
	views := make([]ClassView, 0, len(classes))
	for _, cl := range classes {
		views = append(views, ClassView{Class: cl, StudentCount: len(cc.store.StudentsInClass(cl.ID))})
	}
	return c.JSON(fiber.Map{"classes": views})
}

// GetClass returns a specific class by ID
func (cc *ClassController) GetClass(c *fiber.Ctx) error {
	cl, ok := cc.store.Class(param(c, "id"))
	if !ok {
		return respondError(c, models.NotFoundError("class", param(c, "id")))
	}
	return c.JSON(fiber.Map{"class": cl})
}

// CreateClass creates a class, or overwrites it when the body carries an existing id
func (cc *ClassController) CreateClass(c *fiber.Ctx) error {
	var cl models.Class
	if err := parseBody(c, &cl); err != nil {
		return respondError(c, err)
	}
	saved, err := cc.store.SaveClass(c.UserContext(), cl)
	if err != nil {
		return respondError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"message": "Class saved successfully",
		"class":   saved,
	})
}

// UpdateClass overwrites the class with the given ID
func (cc *ClassController) UpdateClass(c *fiber.Ctx) error {
	id := param(c, "id")
	if _, ok := cc.store.Class(id); !ok {
		return respondError(c, models.NotFoundError("class", id))
	}
	var cl models.Class
	if err := parseBody(c, &cl); err != nil {
		return respondError(c, err)
	}
	cl.ID = id
	saved, err := cc.store.SaveClass(c.UserContext(), cl)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{
		"message": "Class updated successfully",
		"class":   saved,
	})
}

// DeleteClass deletes a class. Its students become unassigned.
func (cc *ClassController) DeleteClass(c *fiber.Ctx) error {
	if err := cc.store.DeleteClass(c.UserContext(), param(c, "id")); err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{"message": "Class deleted successfully"})
}
