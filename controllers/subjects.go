package controllers

import (
	"gradebook_go/models"
	"gradebook_go/store"

	"github.com/gofiber/fiber/v2"
)

type SubjectController struct {
	store *store.Store
}

func NewSubjectController(st *store.Store) *SubjectController {
	return &SubjectController{store: st}
}

// GetSubjects returns all subjects
func (sc *SubjectController) GetSubjects(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{"subjects": sc.store.Subjects()})
}

// GetSubject returns a specific subject by ID
func (sc *SubjectController) GetSubject(c *fiber.Ctx) error {
	sub, ok := sc.store.Subject(param(c, "id"))
	if !ok {
		return respondError(c, models.NotFoundError("subject", param(c, "id")))
	}
	return c.JSON(fiber.Map{"subject": sub})
}

// CreateSubject creates or overwrites a subject
func (sc *SubjectController) CreateSubject(c *fiber.Ctx) error {
	var sub models.Subject
	if err := parseBody(c, &sub); err != nil {
		return respondError(c, err)
	}
	saved, err := sc.store.SaveSubject(c.UserContext(), sub)
	if err != nil {
		return respondError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"message": "Subject saved successfully",
		"subject": saved,
	})
}

// UpdateSubject overwrites the subject with the given ID
func (sc *SubjectController) UpdateSubject(c *fiber.Ctx) error {
	id := param(c, "id")
	if _, ok := sc.store.Subject(id); !ok {
		return respondError(c, models.NotFoundError("subject", id))
	}
	var sub models.Subject
	if err := parseBody(c, &sub); err != nil {
		return respondError(c, err)
	}
	sub.ID = id
	saved, err := sc.store.SaveSubject(c.UserContext(), sub)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{
		"message": "Subject updated successfully",
		"subject": saved,
	})
}

// DeleteSubject deletes a subject together with its weights
func (sc *SubjectController) DeleteSubject(c *fiber.Ctx) error {
	if err := sc.store.DeleteSubject(c.UserContext(), param(c, "id")); err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{"message": "Subject deleted successfully"})
}
