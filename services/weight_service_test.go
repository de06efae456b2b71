package services

import (
	"context"
	"testing"

	"gradebook_go/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSetWeightsRequiresTotalOf100(t *testing.T) {
	st := seeded(t)
	svc := NewWeightService(st)
	ctx := context.Background()

	require.NoError(t, svc.SetWeights(ctx, "math", map[string]int{"tugas": 30, "uts": 30, "uas": 40}))

	tests := []struct {
		name    string
		mapping map[string]int
	}{
		{"under", map[string]int{"tugas": 30, "uts": 30, "uas": 30}},
		{"over", map[string]int{"tugas": 50, "uts": 30, "uas": 40}},
		{"negative", map[string]int{"tugas": -10, "uts": 60, "uas": 50}},
		{"empty", map[string]int{}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			err := svc.SetWeights(ctx, "math", tc.mapping)
			assert.ErrorIs(t, err, models.ErrValidation)
			assert.Equal(t, map[string]int{"tugas": 30, "uts": 30, "uas": 40}, st.Weights("math"))
		})
	}
}

func TestSetWeightsRejectsUnknownReferences(t *testing.T) {
	st := seeded(t)
	svc := NewWeightService(st)
	ctx := context.Background()

	err := svc.SetWeights(ctx, "physics", map[string]int{"tugas": 100})
	assert.ErrorIs(t, err, models.ErrNotFound)

	err = svc.SetWeights(ctx, "math", map[string]int{"quiz": 100})
	assert.ErrorIs(t, err, models.ErrValidation)
	assert.Empty(t, st.Weights("math"))
}

func TestSetWeightsZeroesOmittedCategories(t *testing.T) {
	st := seeded(t)
	svc := NewWeightService(st)
	ctx := context.Background()

	require.NoError(t, svc.SetWeights(ctx, "math", map[string]int{"tugas": 50, "uts": 50}))
	require.NoError(t, svc.SetWeights(ctx, "math", map[string]int{"tugas": 40, "uas": 60}))

	assert.Equal(t, map[string]int{"tugas": 40, "uts": 0, "uas": 60}, st.Weights("math"))
}

func TestWeightForm(t *testing.T) {
	st := seeded(t)
	svc := NewWeightService(st)
	require.NoError(t, svc.SetWeights(context.Background(), "math", map[string]int{"tugas": 60, "uas": 40}))

	form, err := svc.Form("math")
	require.NoError(t, err)
	assert.Equal(t, "Mathematics", form.SubjectName)
	assert.Equal(t, 100, form.Total)
	require.Len(t, form.Rows, 3)
	assert.Equal(t, WeightRow{CategoryID: "uts", CategoryName: "UTS", Percent: 0}, form.Rows[1])

	_, err = svc.Form("nope")
	assert.ErrorIs(t, err, models.ErrNotFound)
}
