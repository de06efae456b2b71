package services

import (
	"math"
	"strconv"

	"gradebook_go/models"
)

// FinalScore is a student's weighted score for a subject. When the subject
// has no weights it is the literal 0, distinct from a computed 0.00.
type FinalScore struct {
	Value    float64
	Weighted bool
}

func (f FinalScore) String() string {
	if !f.Weighted {
		return "0"
	}
	return strconv.FormatFloat(f.Value, 'f', 2, 64)
}

func (f FinalScore) MarshalJSON() ([]byte, error) {
	return []byte(f.String()), nil
}

// letterThresholds is evaluated top-down; the first lower bound reached wins.
var letterThresholds = []struct {
	min   float64
	grade string
}{
	{90, "A"},
	{80, "B"},
	{70, "C"},
	{60, "D"},
}

// LetterGrade maps a final score to A..E.
func LetterGrade(score float64) string {
	for _, t := range letterThresholds {
		if score >= t.min {
			return t.grade
		}
	}
	return "E"
}

// WeightedScore combines per-category scores with per-category weights over
// the given categories. Missing scores and weights count as 0.
func WeightedScore(categoryIDs []string, scores map[string]float64, weights map[string]int) (FinalScore, int) {
	weightedSum := 0.0
	weightSum := 0
	for _, id := range categoryIDs {
		w := weights[id]
		weightedSum += scores[id] * float64(w) / 100
		weightSum += w
	}
	if weightSum <= 0 {
		return FinalScore{}, weightSum
	}
	return FinalScore{Value: roundTo(weightedSum, 2), Weighted: true}, weightSum
}

func roundTo(v float64, places int) float64 {
	p := math.Pow(10, float64(places))
	return math.Round(v*p) / p
}

// RecapRow is one student's line of a grade recap. Scores holds nil for
// ungraded categories.
type RecapRow struct {
	StudentID   string              `json:"student_id"`
	StudentName string              `json:"student_name"`
	IDNumber    string              `json:"id_number"`
	Scores      map[string]*float64 `json:"scores"`
	FinalScore  FinalScore          `json:"final_score"`
	Grade       string              `json:"grade"`
}

// GradeRecap is the computed table of final scores for a class and subject.
type GradeRecap struct {
	ClassID     string            `json:"class_id"`
	ClassName   string            `json:"class_name"`
	SubjectID   string            `json:"subject_id"`
	SubjectName string            `json:"subject_name"`
	Categories  []models.Category `json:"categories"`
	Weights     map[string]int    `json:"weights"`
	WeightSum   int               `json:"weight_sum"`
	Rows        []RecapRow        `json:"rows"`
}

// Recap computes every student's final score and letter grade for the subject.
func (s *GradeService) Recap(classID, subjectID string) (GradeRecap, error) {
	class, ok := s.store.Class(classID)
	if !ok {
		return GradeRecap{}, models.NotFoundError("class", classID)
	}
	subject, ok := s.store.Subject(subjectID)
	if !ok {
		return GradeRecap{}, models.NotFoundError("subject", subjectID)
	}

	categories := s.store.Categories()
	categoryIDs := make([]string, len(categories))
	for i, c := range categories {
		categoryIDs[i] = c.ID
	}
	weights := s.store.Weights(subjectID)

	recap := GradeRecap{
		ClassID:     class.ID,
		ClassName:   class.Name,
		SubjectID:   subject.ID,
		SubjectName: subject.Name,
		Categories:  categories,
		Weights:     map[string]int{},
		Rows:        []RecapRow{},
	}
	for _, id := range categoryIDs {
		recap.Weights[id] = weights[id]
		recap.WeightSum += weights[id]
	}

	for _, st := range s.store.StudentsInClass(classID) {
		row := RecapRow{StudentID: st.ID, StudentName: st.Name, IDNumber: st.IDNumber, Scores: map[string]*float64{}}
		values := map[string]float64{}
		for _, catID := range categoryIDs {
			v, ok := s.store.Score(models.ScoreKey{StudentID: st.ID, SubjectID: subjectID, CategoryID: catID})
			if !ok {
				row.Scores[catID] = nil
				continue
			}
			row.Scores[catID] = &v
			values[catID] = v
		}
		row.FinalScore, _ = WeightedScore(categoryIDs, values, weights)
		row.Grade = LetterGrade(row.FinalScore.Value)
		recap.Rows = append(recap.Rows, row)
	}
	return recap, nil
}
