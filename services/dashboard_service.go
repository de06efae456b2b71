package services

import (
	"strconv"

	"gradebook_go/store"
)

// DashboardStats is the summary shown on the landing page.
type DashboardStats struct {
	Students     int    `json:"students"`
	Classes      int    `json:"classes"`
	Subjects     int    `json:"subjects"`
	Categories   int    `json:"categories"`
	AverageScore string `json:"average_score"`
}

type DashboardService struct {
	store *store.Store
}

func NewDashboardService(st *store.Store) *DashboardService {
	return &DashboardService{store: st}
}

// Stats counts the master data and averages every stored score.
func (s *DashboardService) Stats() DashboardStats {
	stats := DashboardStats{
		Students:   len(s.store.Students()),
		Classes:    len(s.store.Classes()),
		Subjects:   len(s.store.Subjects()),
		Categories: len(s.store.Categories()),
	}
	stats.AverageScore = AverageScore(s.store.ScoreValues())
	return stats
}

// AverageScore formats the mean to one decimal, or "0" with no values.
func AverageScore(values []float64) string {
	if len(values) == 0 {
		return "0"
	}
	sum := 0.0
	for _, v := range values {
		sum += v
	}
	return strconv.FormatFloat(sum/float64(len(values)), 'f', 1, 64)
}
