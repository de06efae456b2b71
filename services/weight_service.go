package services

import (
	"context"
	"strings"

	"gradebook_go/models"
	"gradebook_go/store"

	"github.com/sirupsen/logrus"
)

// RequiredWeightTotal is the sum a subject's weights must reach when saved.
const RequiredWeightTotal = 100

// WeightService manages per-subject category weights.
type WeightService struct {
	store *store.Store
}

func NewWeightService(st *store.Store) *WeightService {
	return &WeightService{store: st}
}

// WeightRow is one category of the weight form.
type WeightRow struct {
	CategoryID   string `json:"category_id"`
	CategoryName string `json:"category_name"`
	Percent      int    `json:"percent"`
}

// WeightForm lists every category with the subject's percent for it.
type WeightForm struct {
	SubjectID   string      `json:"subject_id"`
	SubjectName string      `json:"subject_name"`
	Rows        []WeightRow `json:"rows"`
	Total       int         `json:"total"`
}

// Form builds the weight form of a subject; unset categories show 0.
func (s *WeightService) Form(subjectID string) (WeightForm, error) {
	subject, ok := s.store.Subject(subjectID)
	if !ok {
		return WeightForm{}, models.NotFoundError("subject", subjectID)
	}
	weights := s.store.Weights(subjectID)
	form := WeightForm{SubjectID: subject.ID, SubjectName: subject.Name, Rows: []WeightRow{}}
	for _, cat := range s.store.Categories() {
		p := weights[cat.ID]
		form.Rows = append(form.Rows, WeightRow{CategoryID: cat.ID, CategoryName: cat.Name, Percent: p})
		form.Total += p
	}
	return form, nil
}

// SetWeights replaces the subject's weight mapping. The percentages must be
// within [0,100] and sum to exactly 100; otherwise nothing is written.
// Categories that had a weight and are missing from mapping are stored as 0.
func (s *WeightService) SetWeights(ctx context.Context, subjectID string, mapping map[string]int) error {
	subjectID = strings.TrimSpace(subjectID)
	if subjectID == "" {
		return models.NewValidationError("subject_id", "is required")
	}
	if _, ok := s.store.Subject(subjectID); !ok {
		return models.NotFoundError("subject", subjectID)
	}

	total := 0
	rows := make([]models.Weight, 0, len(mapping))
	for categoryID, percent := range mapping {
		if _, ok := s.store.Category(categoryID); !ok {
			return models.NewValidationError("category_id", "%q does not exist", categoryID)
		}
		w := models.Weight{SubjectID: subjectID, CategoryID: categoryID, Percent: percent}
		if err := models.Validate(w); err != nil {
			return err
		}
		total += percent
		rows = append(rows, w)
	}
	if total != RequiredWeightTotal {
		return models.NewValidationError("weights", "must total %d%%, got %d%%", RequiredWeightTotal, total)
	}

	for categoryID := range s.store.Weights(subjectID) {
		if _, ok := mapping[categoryID]; !ok {
			rows = append(rows, models.Weight{SubjectID: subjectID, CategoryID: categoryID, Percent: 0})
		}
	}

	if err := s.store.UpsertWeights(ctx, rows); err != nil {
		logrus.WithError(err).WithField("subject_id", subjectID).Error("Failed to save weights")
		return err
	}
	logrus.WithFields(logrus.Fields{"subject_id": subjectID, "categories": len(rows)}).Info("Weights saved")
	return nil
}
