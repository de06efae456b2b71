package services

import (
	"archive/zip"
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"io"
	"testing"
	"time"

	"gradebook_go/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestToArchivedLog(t *testing.T) {
	at := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
	l := models.ActivityLog{
		BaseModel:  models.BaseModel{ID: 7, CreatedAt: at},
		UserID:     "p1",
		Action:     "UPDATE",
		Resource:   "students",
		ResourceID: "s1",
		Details:    models.JSON(`{"path":"/api/students/s1"}`),
		IPAddress:  "10.0.0.1",
	}
	a := toArchivedLog(l)
	assert.Equal(t, uint(7), a.ID)
	assert.Equal(t, "s1", a.ResourceID)
	assert.Equal(t, "/api/students/s1", a.Details["path"])
	assert.Equal(t, at, a.CreatedAt)

	l.Details = nil
	assert.Nil(t, toArchivedLog(l).Details)
}

func TestCreateLogZipArchive(t *testing.T) {
	at := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
	logs := []ArchivedLog{
		{ID: 1, UserID: "p1", Action: "CREATE", Resource: "classes", ResourceID: "c1", CreatedAt: at, Details: map[string]any{"note": `say "hi", ok`}},
		{ID: 2, UserID: "p1", Action: "DELETE", Resource: "classes", ResourceID: "c1", CreatedAt: at.Add(time.Hour)},
	}
	buf, err := createLogZipArchive(logs, "activity_logs_2024-01-01.zip", at)
	require.NoError(t, err)

	zr, err := zip.NewReader(bytes.NewReader(buf.Bytes()), int64(buf.Len()))
	require.NoError(t, err)
	files := map[string][]byte{}
	for _, f := range zr.File {
		rc, err := f.Open()
		require.NoError(t, err)
		data, err := io.ReadAll(rc)
		require.NoError(t, err)
		rc.Close()
		files[f.Name] = data
	}
	require.Contains(t, files, "activity_logs.json")
	require.Contains(t, files, "metadata.json")
	require.Contains(t, files, "activity_logs.csv")

	var payload struct {
		RecordCount int           `json:"record_count"`
		Logs        []ArchivedLog `json:"logs"`
	}
	require.NoError(t, json.Unmarshal(files["activity_logs.json"], &payload))
	assert.Equal(t, 2, payload.RecordCount)
	assert.Equal(t, "DELETE", payload.Logs[1].Action)

	records, err := csv.NewReader(bytes.NewReader(files["activity_logs.csv"])).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 3)
	assert.Equal(t, "ID", records[0][0])
	assert.Equal(t, `{"note":"say \"hi\", ok"}`, records[1][8])
	assert.Equal(t, "2024-01-02 04:04:05", records[2][7])
}

func TestLogArchiveServiceWithoutBackends(t *testing.T) {
	las := &LogArchiveService{now: time.Now}
	ctx := context.Background()

	_, err := las.ArchiveOldLogs(ctx, 3)
	assert.ErrorIs(t, err, models.ErrValidation)
	_, err = las.ArchiveOldLogs(ctx, 30)
	assert.Error(t, err)

	_, err = las.FlushCachedLogsToDatabase(ctx)
	assert.Error(t, err)

	logs, total, err := las.ListLogs(ctx, LogFilter{})
	require.NoError(t, err)
	assert.Empty(t, logs)
	assert.Zero(t, total)

	archives, err := las.GetArchivedLogs(ctx)
	require.NoError(t, err)
	assert.Empty(t, archives)

	assert.Error(t, RecordActivity(ctx, nil, nil, models.ActivityLog{Action: "CREATE"}))
	las.RunMaintenance(ctx, 30)
}

func TestLogFilterNormalize(t *testing.T) {
	f := LogFilter{Page: 0, Limit: 500}
	f.normalize()
	assert.Equal(t, 1, f.Page)
	assert.Equal(t, 50, f.Limit)

	f = LogFilter{Page: 3, Limit: 20}
	f.normalize()
	assert.Equal(t, 3, f.Page)
	assert.Equal(t, 20, f.Limit)
}
