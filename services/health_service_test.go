package services

import (
	"os"
	"path/filepath"
	"testing"

	"gradebook_go/config"
	"gradebook_go/store"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func withConfig(t *testing.T, cfg *config.Config) {
	t.Helper()
	prev := config.AppConfig
	config.AppConfig = cfg
	t.Cleanup(func() { config.AppConfig = prev })
}

func dependency(r HealthReport, name string) (DependencyStatus, bool) {
	for _, d := range r.Dependencies {
		if d.Name == name {
			return d, true
		}
	}
	return DependencyStatus{}, false
}

func TestHealthReportOffline(t *testing.T) {
	path := filepath.Join(t.TempDir(), "gradebook.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"classes":[]}`), 0o644))
	withConfig(t, &config.Config{
		AppEnv:          "test",
		DBDriver:        config.DriverMySQL,
		StoreMode:       config.StoreModeOffline,
		OfflineDataFile: path,
	})
	svc := NewHealthService(seeded(t), "", "")

	report := svc.GetHealthReport()
	assert.Equal(t, overallStatusOK, report.Status)
	assert.Equal(t, "Gradebook API", report.Service)
	assert.Equal(t, "test", report.Environment)
	assert.Equal(t, config.StoreModeOffline, report.StoreMode)
	assert.Equal(t, 200, svc.HTTPStatusForOverall(report.Status))

	gb := report.Gradebook
	assert.True(t, gb.Loaded)
	require.NotNil(t, gb.LoadedAt)
	assert.Equal(t, 3, gb.Collections["students"])

	require.NotNil(t, gb.OfflineFile)
	assert.Equal(t, path, gb.OfflineFile.Path)
	assert.True(t, gb.OfflineFile.Exists)
	assert.EqualValues(t, len(`{"classes":[]}`), gb.OfflineFile.SizeBytes)
	assert.NotNil(t, gb.OfflineFile.ModifiedAt)

	_, ok := dependency(report, config.DriverMySQL)
	assert.False(t, ok, "no database is pinged offline")
	redis, ok := dependency(report, "redis")
	require.True(t, ok)
	assert.Equal(t, dependencyStatusDisabled, redis.Status)
}

func TestHealthReportOfflineFileStates(t *testing.T) {
	dir := t.TempDir()

	withConfig(t, &config.Config{StoreMode: config.StoreModeOffline, OfflineDataFile: filepath.Join(dir, "missing.json")})
	report := NewHealthService(seeded(t), "", "").GetHealthReport()
	assert.Equal(t, overallStatusOK, report.Status)
	assert.False(t, report.Gradebook.OfflineFile.Exists)
	assert.Empty(t, report.Gradebook.OfflineFile.Error)

	withConfig(t, &config.Config{StoreMode: config.StoreModeOffline, OfflineDataFile: dir})
	report = NewHealthService(seeded(t), "", "").GetHealthReport()
	assert.Equal(t, overallStatusDegraded, report.Status)
	assert.Equal(t, "path is a directory", report.Gradebook.OfflineFile.Error)
}

func TestHealthReportUnloadedStoreIsDegraded(t *testing.T) {
	withConfig(t, &config.Config{StoreMode: config.StoreModeOffline})
	report := NewHealthService(store.New(store.NewMemoryBackend()), "", "").GetHealthReport()

	assert.Equal(t, overallStatusDegraded, report.Status)
	assert.False(t, report.Gradebook.Loaded)
	assert.Nil(t, report.Gradebook.LoadedAt)
	assert.NotEmpty(t, report.Gradebook.Error)
}

func TestHealthReportWithoutStoreIsCritical(t *testing.T) {
	withConfig(t, &config.Config{StoreMode: config.StoreModeOffline})
	svc := NewHealthService(nil, "", "")

	report := svc.GetHealthReport()
	assert.Equal(t, overallStatusCritical, report.Status)
	assert.Equal(t, 503, svc.HTTPStatusForOverall(report.Status))
}

func TestHealthReportWithoutDatabaseIsCritical(t *testing.T) {
	withConfig(t, &config.Config{DBDriver: config.DriverPostgres, StoreMode: config.StoreModeDatabase})
	svc := NewHealthService(seeded(t), "", "")

	report := svc.GetHealthReport()
	assert.Equal(t, overallStatusCritical, report.Status)
	assert.Nil(t, report.Gradebook.OfflineFile)
	db, ok := dependency(report, config.DriverPostgres)
	require.True(t, ok)
	assert.Equal(t, dependencyStatusDown, db.Status)
	assert.Equal(t, 503, svc.HTTPStatusForOverall(report.Status))
}

func TestCombineStatus(t *testing.T) {
	assert.Equal(t, overallStatusDegraded, combineStatus(overallStatusOK, overallStatusDegraded))
	assert.Equal(t, overallStatusCritical, combineStatus(overallStatusCritical, overallStatusOK))
	assert.Equal(t, overallStatusOK, combineStatus("bogus", "also bogus"))
}
