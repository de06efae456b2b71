package services

import (
	"context"
	"errors"
	"testing"

	"gradebook_go/models"
	"gradebook_go/store"

	"github.com/stretchr/testify/require"
)

var errInjected = errors.New("injected failure")

// failingBackend fails every Insert into one collection. Embedding only the
// interface hides the memory backend's Transaction method.
type failingBackend struct {
	store.Backend
	insertInto models.Collection
}

func (f *failingBackend) Insert(ctx context.Context, c models.Collection, rows interface{}) error {
	if c == f.insertInto {
		return errInjected
	}
	return f.Backend.Insert(ctx, c, rows)
}

func newStore(t *testing.T) *store.Store {
	t.Helper()
	st := store.New(store.NewMemoryBackend())
	require.NoError(t, st.Load(context.Background()))
	return st
}

// seeded returns a store with two classes, three students, one subject and
// three categories.
func seeded(t *testing.T) *store.Store {
	t.Helper()
	st := newStore(t)
	seed(t, st)
	return st
}

func seed(t *testing.T, st *store.Store) {
	t.Helper()
	ctx := context.Background()
	for _, c := range []models.Class{{ID: "c1", Name: "VII-A"}, {ID: "c2", Name: "VII-B"}} {
		_, err := st.SaveClass(ctx, c)
		require.NoError(t, err)
	}
	for _, s := range []models.Student{
		{ID: "s1", Name: "Alice", IDNumber: "001", ClassID: "c1"},
		{ID: "s2", Name: "Bob", IDNumber: "002", ClassID: "c1"},
		{ID: "s3", Name: "Cara", IDNumber: "003", ClassID: "c2"},
	} {
		_, err := st.SaveStudent(ctx, s)
		require.NoError(t, err)
	}
	_, err := st.SaveSubject(ctx, models.Subject{ID: "math", Name: "Mathematics"})
	require.NoError(t, err)
	for _, c := range []models.Category{{ID: "tugas", Name: "Tugas"}, {ID: "uts", Name: "UTS"}, {ID: "uas", Name: "UAS"}} {
		_, err := st.SaveCategory(ctx, c)
		require.NoError(t, err)
	}
}
