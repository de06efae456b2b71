package services

import (
	"context"
	"testing"

	"gradebook_go/models"
	"gradebook_go/store"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var march1 = models.SessionKey{Date: "2024-03-01", ClassID: "c1", SubjectID: "math"}

func TestAttendancePercentage(t *testing.T) {
	assert.Equal(t, 75, AttendancePercentage(3, 4))
	assert.Equal(t, 0, AttendancePercentage(0, 0))
	assert.Equal(t, 67, AttendancePercentage(2, 3))
	assert.Equal(t, 13, AttendancePercentage(1, 8))
	assert.Equal(t, 100, AttendancePercentage(5, 5))
}

func TestBuildSessionRecords(t *testing.T) {
	records, err := BuildSessionRecords(march1, []AttendanceMark{
		{StudentID: "s1", Status: "h"},
		{StudentID: "s2", Status: ""},
		{StudentID: "s1", Status: "S", Remark: " flu "},
	})
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, models.StatusSick, records[0].Status)
	assert.Equal(t, "flu", records[0].Remark)
	assert.Equal(t, march1, records[0].Session())
	assert.NotEmpty(t, records[0].ID)

	_, err = BuildSessionRecords(march1, []AttendanceMark{{StudentID: "s1", Status: "X"}})
	assert.ErrorIs(t, err, models.ErrValidation)

	_, err = BuildSessionRecords(models.SessionKey{Date: "01/03/2024", ClassID: "c1", SubjectID: "math"}, nil)
	assert.ErrorIs(t, err, models.ErrValidation)
}

func TestReplaceSessionTwiceKeepsSecondSet(t *testing.T) {
	st := seeded(t)
	svc := NewAttendanceService(st)
	ctx := context.Background()

	n, err := svc.ReplaceSession(ctx, march1, []AttendanceMark{
		{StudentID: "s1", Status: models.StatusPresent},
		{StudentID: "s2", Status: models.StatusAbsent},
	})
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	n, err = svc.ReplaceSession(ctx, march1, []AttendanceMark{{StudentID: "s2", Status: models.StatusExcused}})
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	records := st.SessionRecords(march1)
	require.Len(t, records, 1)
	assert.Equal(t, "s2", records[0].StudentID)
	assert.Equal(t, models.StatusExcused, records[0].Status)
}

func TestReplaceSessionRejectsStudentsOutsideClass(t *testing.T) {
	st := seeded(t)
	svc := NewAttendanceService(st)
	ctx := context.Background()

	_, err := svc.ReplaceSession(ctx, march1, []AttendanceMark{{StudentID: "s1", Status: models.StatusPresent}})
	require.NoError(t, err)

	for _, id := range []string{"s3", "nobody"} {
		_, err = svc.ReplaceSession(ctx, march1, []AttendanceMark{
			{StudentID: "s2", Status: models.StatusPresent},
			{StudentID: id, Status: models.StatusAbsent},
		})
		assert.ErrorIs(t, err, models.ErrValidation, id)
	}

	// The earlier session is untouched.
	records := st.SessionRecords(march1)
	require.Len(t, records, 1)
	assert.Equal(t, "s1", records[0].StudentID)

	// A blank status for an outsider is skipped, not rejected.
	n, err := svc.ReplaceSession(ctx, march1, []AttendanceMark{
		{StudentID: "s2", Status: models.StatusPresent},
		{StudentID: "s3", Status: ""},
	})
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestReplaceSessionPartialReplaceIsDistinct(t *testing.T) {
	backend := &failingBackend{Backend: store.NewMemoryBackend(), insertInto: models.CollectionAttendance}
	st := store.New(backend)
	require.NoError(t, st.Load(context.Background()))
	seed(t, st)
	svc := NewAttendanceService(st)

	_, err := svc.ReplaceSession(context.Background(), march1, []AttendanceMark{{StudentID: "s1", Status: models.StatusPresent}})
	require.Error(t, err)
	assert.ErrorIs(t, err, store.ErrPartialReplace)
	assert.ErrorIs(t, err, errInjected)
	assert.Empty(t, st.SessionRecords(march1))
}

func TestSessionSheet(t *testing.T) {
	st := seeded(t)
	svc := NewAttendanceService(st)
	_, err := svc.ReplaceSession(context.Background(), march1, []AttendanceMark{{StudentID: "s2", Status: models.StatusSick, Remark: "fever"}})
	require.NoError(t, err)

	rows, err := svc.SessionSheet(march1)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, models.AttendanceStatus(""), rows[0].Status)
	assert.Equal(t, models.StatusSick, rows[1].Status)
	assert.Equal(t, "fever", rows[1].Remark)

	_, err = svc.SessionSheet(models.SessionKey{Date: "2024-03-01", ClassID: "c9", SubjectID: "math"})
	assert.ErrorIs(t, err, models.ErrNotFound)
}

func TestAttendanceRecap(t *testing.T) {
	st := seeded(t)
	svc := NewAttendanceService(st)
	ctx := context.Background()

	days := []struct {
		date   string
		status models.AttendanceStatus
	}{
		{"2024-03-01", models.StatusPresent},
		{"2024-03-02", models.StatusPresent},
		{"2024-03-03", models.StatusPresent},
		{"2024-03-04", models.StatusAbsent},
		{"2024-04-01", models.StatusSick},
	}
	for _, d := range days {
		key := models.SessionKey{Date: d.date, ClassID: "c1", SubjectID: "math"}
		_, err := svc.ReplaceSession(ctx, key, []AttendanceMark{{StudentID: "s1", Status: d.status}})
		require.NoError(t, err)
	}
	// s3 is in c2 and must not appear in the c1 recap.
	_, err := svc.ReplaceSession(ctx, models.SessionKey{Date: "2024-03-01", ClassID: "c2", SubjectID: "math"},
		[]AttendanceMark{{StudentID: "s3", Status: models.StatusAbsent}})
	require.NoError(t, err)

	recap, err := svc.Recap("c1", "math", DateRange{Start: "2024-03-01", End: "2024-03-31"})
	require.NoError(t, err)
	require.Len(t, recap.Rows, 2)

	alice := recap.Rows[0]
	assert.Equal(t, 3, alice.Present)
	assert.Equal(t, 1, alice.Absent)
	assert.Equal(t, 0, alice.Sick)
	assert.Equal(t, 4, alice.Total)
	assert.Equal(t, 75, alice.Percentage)

	bob := recap.Rows[1]
	assert.Equal(t, 0, bob.Total)
	assert.Equal(t, 0, bob.Percentage)

	open, err := svc.Recap("c1", "math", DateRange{})
	require.NoError(t, err)
	assert.Equal(t, 5, open.Rows[0].Total)

	_, err = svc.Recap("c1", "math", DateRange{Start: "March"})
	assert.ErrorIs(t, err, models.ErrValidation)
}

func TestDateRangeContains(t *testing.T) {
	r := DateRange{Start: "2024-01-01", End: "2024-01-31"}
	assert.True(t, r.Contains("2024-01-01"))
	assert.True(t, r.Contains("2024-01-31"))
	assert.False(t, r.Contains("2023-12-31"))
	assert.False(t, r.Contains("2024-02-01"))
	assert.True(t, DateRange{End: "2024-01-31"}.Contains("1999-01-01"))
}
