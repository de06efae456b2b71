package services

import (
	"context"
	"math"
	"strconv"
	"strings"

	"gradebook_go/models"
	"gradebook_go/store"

	"github.com/sirupsen/logrus"
)

// GradeService is the grade ledger: one score per student, subject and category.
type GradeService struct {
	store *store.Store
}

func NewGradeService(st *store.Store) *GradeService {
	return &GradeService{store: st}
}

// ParseScore converts a form cell into a score. ok is false for a blank
// cell, which means "no input" rather than zero.
func ParseScore(raw string) (value float64, ok bool, err error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, false, nil
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, false, models.NewValidationError("value", "%q is not a number", raw)
	}
	return v, true, nil
}

// SetScore stores or overwrites a single cell. A blank value is skipped and
// reported with stored=false.
func (s *GradeService) SetScore(ctx context.Context, studentID, subjectID, categoryID, raw string) (stored bool, err error) {
	v, ok, err := ParseScore(raw)
	if err != nil || !ok {
		return false, err
	}
	sc := models.Score{StudentID: studentID, SubjectID: subjectID, CategoryID: categoryID, Value: v}
	if err := models.Validate(sc); err != nil {
		return false, err
	}
	if err := s.store.UpsertScores(ctx, []models.Score{sc}); err != nil {
		return false, err
	}
	return true, nil
}

// SaveScores batch-saves the filled cells of a grade entry form keyed by
// student id. Blank cells are skipped; a form with no filled cells is rejected.
func (s *GradeService) SaveScores(ctx context.Context, subjectID, categoryID string, values map[string]string) (int, error) {
	if strings.TrimSpace(subjectID) == "" {
		return 0, models.NewValidationError("subject_id", "is required")
	}
	if strings.TrimSpace(categoryID) == "" {
		return 0, models.NewValidationError("category_id", "is required")
	}

	rows := make([]models.Score, 0, len(values))
	for studentID, raw := range values {
		v, ok, err := ParseScore(raw)
		if err != nil {
			return 0, err
		}
		if !ok {
			continue
		}
		rows = append(rows, models.Score{StudentID: studentID, SubjectID: subjectID, CategoryID: categoryID, Value: v})
	}
	if len(rows) == 0 {
		return 0, models.NewValidationError("", "no scores entered")
	}
	for _, r := range rows {
		if err := models.Validate(r); err != nil {
			return 0, err
		}
	}

	if err := s.store.UpsertScores(ctx, rows); err != nil {
		logrus.WithError(err).WithFields(logrus.Fields{
			"subject_id":  subjectID,
			"category_id": categoryID,
		}).Error("Failed to save scores")
		return 0, err
	}
	return len(rows), nil
}

// GetScore returns the stored value, or ok=false when the cell is ungraded.
func (s *GradeService) GetScore(studentID, subjectID, categoryID string) (float64, bool) {
	return s.store.Score(models.ScoreKey{StudentID: studentID, SubjectID: subjectID, CategoryID: categoryID})
}

// GradeSheetRow is a student's current score in the entry form, nil when ungraded.
type GradeSheetRow struct {
	StudentID   string   `json:"student_id"`
	StudentName string   `json:"student_name"`
	IDNumber    string   `json:"id_number"`
	Score       *float64 `json:"score"`
}

// GradeSheet is the grade entry form for one class, subject and category.
type GradeSheet struct {
	ClassID    string          `json:"class_id"`
	SubjectID  string          `json:"subject_id"`
	CategoryID string          `json:"category_id"`
	Rows       []GradeSheetRow `json:"rows"`
}

func (s *GradeService) Sheet(classID, subjectID, categoryID string) (GradeSheet, error) {
	if _, ok := s.store.Class(classID); !ok {
		return GradeSheet{}, models.NotFoundError("class", classID)
	}
	if _, ok := s.store.Subject(subjectID); !ok {
		return GradeSheet{}, models.NotFoundError("subject", subjectID)
	}
	if _, ok := s.store.Category(categoryID); !ok {
		return GradeSheet{}, models.NotFoundError("category", categoryID)
	}

	sheet := GradeSheet{ClassID: classID, SubjectID: subjectID, CategoryID: categoryID, Rows: []GradeSheetRow{}}
	for _, st := range s.store.StudentsInClass(classID) {
		row := GradeSheetRow{StudentID: st.ID, StudentName: st.Name, IDNumber: st.IDNumber}
		if v, ok := s.GetScore(st.ID, subjectID, categoryID); ok {
			row.Score = &v
		}
		sheet.Rows = append(sheet.Rows, row)
	}
	return sheet, nil
}
