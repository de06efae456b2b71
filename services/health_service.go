package services

import (
	"context"
	"errors"
	"os"
	"strings"
	"time"

	"gradebook_go/config"
	"gradebook_go/database"
	"gradebook_go/store"
)

const (
	overallStatusOK       = "ok"
	overallStatusDegraded = "degraded"
	overallStatusCritical = "critical"

	dependencyStatusUp       = "up"
	dependencyStatusDown     = "down"
	dependencyStatusDisabled = "disabled"

	defaultServiceName = "Gradebook API"
	defaultVersion     = "1.0.0"
	healthTimeout      = 1500 * time.Millisecond
)

// HealthService reports whether the gradebook can serve reads and accept
// writes: the mirror must be loaded and its backend reachable.
type HealthService struct {
	store       *store.Store
	serviceName string
	version     string
	startTime   time.Time
}

// HealthReport is the body of GET /health.
type HealthReport struct {
	Status       string             `json:"status"`
	Service      string             `json:"service"`
	Version      string             `json:"version"`
	Environment  string             `json:"environment"`
	StoreMode    string             `json:"store_mode"`
	Time         time.Time          `json:"time"`
	Uptime       string             `json:"uptime"`
	Gradebook    GradebookHealth    `json:"gradebook"`
	Dependencies []DependencyStatus `json:"dependencies"`
}

// GradebookHealth describes the in-memory mirror.
type GradebookHealth struct {
	Loaded      bool               `json:"loaded"`
	LoadedAt    *time.Time         `json:"loaded_at,omitempty"`
	Collections map[string]int     `json:"collections"`
	OfflineFile *OfflineFileStatus `json:"offline_file,omitempty"`
	Error       string             `json:"error,omitempty"`
}

// OfflineFileStatus is the state of the offline data file on disk. A missing
// file is normal before the first write.
type OfflineFileStatus struct {
	Path       string     `json:"path"`
	Exists     bool       `json:"exists"`
	SizeBytes  int64      `json:"size_bytes"`
	ModifiedAt *time.Time `json:"modified_at,omitempty"`
	Error      string     `json:"error,omitempty"`
}

// DependencyStatus is the result of pinging one external service.
type DependencyStatus struct {
	Name      string `json:"name"`
	Status    string `json:"status"`
	LatencyMs int64  `json:"latency_ms"`
	Error     string `json:"error,omitempty"`
}

func NewHealthService(st *store.Store, serviceName, version string) *HealthService {
	if strings.TrimSpace(serviceName) == "" {
		serviceName = defaultServiceName
	}
	if strings.TrimSpace(version) == "" {
		version = defaultVersion
	}
	return &HealthService{store: st, serviceName: serviceName, version: version, startTime: time.Now()}
}

// GetHealthReport inspects the mirror and pings the configured backends.
func (s *HealthService) GetHealthReport() HealthReport {
	ctx, cancel := context.WithTimeout(context.Background(), healthTimeout)
	defer cancel()

	cfg := config.AppConfig
	if cfg == nil {
		cfg = &config.Config{}
	}

	report := HealthReport{
		Status:      overallStatusOK,
		Service:     s.serviceName,
		Version:     s.version,
		Environment: strings.TrimSpace(cfg.AppEnv),
		StoreMode:   cfg.StoreMode,
		Time:        time.Now().UTC(),
		Uptime:      time.Since(s.startTime).Round(time.Second).String(),
	}
	if report.Environment == "" {
		report.Environment = "unknown"
	}

	var status string
	report.Gradebook, status = s.gradebook(cfg)
	report.Status = combineStatus(report.Status, status)

	if !cfg.Offline() {
		db := pingDatabase(ctx, cfg.DBDriver)
		if db.Status != dependencyStatusUp {
			report.Status = combineStatus(report.Status, overallStatusCritical)
		}
		report.Dependencies = append(report.Dependencies, db)
	}

	// Redis only backs the activity log buffer and the token blacklist.
	rdb := pingRedis(ctx)
	if rdb.Status == dependencyStatusDown {
		report.Status = combineStatus(report.Status, overallStatusDegraded)
	}
	report.Dependencies = append(report.Dependencies, rdb)

	return report
}

// HTTPStatusForOverall maps a health status to an HTTP status code.
func (s *HealthService) HTTPStatusForOverall(status string) int {
	if status == overallStatusCritical {
		return 503
	}
	return 200
}

func (s *HealthService) gradebook(cfg *config.Config) (GradebookHealth, string) {
	gb := GradebookHealth{Collections: map[string]int{}}
	if s.store == nil {
		gb.Error = "store not configured"
		return gb, overallStatusCritical
	}

	status := overallStatusOK
	gb.Loaded = s.store.Loaded()
	if gb.Loaded {
		at := s.store.LoadedAt().UTC()
		gb.LoadedAt = &at
	} else {
		gb.Error = "data not loaded; reload or restore required"
		status = overallStatusDegraded
	}
	for c, n := range s.store.Counts() {
		gb.Collections[string(c)] = n
	}

	if cfg.Offline() {
		gb.OfflineFile = offlineFileStatus(cfg.OfflineDataFile)
		if gb.OfflineFile.Error != "" {
			status = combineStatus(status, overallStatusDegraded)
		}
	}
	return gb, status
}

func offlineFileStatus(path string) *OfflineFileStatus {
	fs := &OfflineFileStatus{Path: path}
	info, err := os.Stat(path)
	switch {
	case errors.Is(err, os.ErrNotExist):
	case err != nil:
		fs.Error = err.Error()
	case info.IsDir():
		fs.Error = "path is a directory"
	default:
		mod := info.ModTime().UTC()
		fs.Exists = true
		fs.SizeBytes = info.Size()
		fs.ModifiedAt = &mod
	}
	return fs
}

func pingDatabase(ctx context.Context, driver string) DependencyStatus {
	dep := DependencyStatus{Name: driver}
	if dep.Name == "" {
		dep.Name = "database"
	}
	if database.DB == nil {
		dep.Status = dependencyStatusDown
		dep.Error = "database connection not initialised"
		return dep
	}
	sqlDB, err := database.DB.DB()
	if err != nil {
		dep.Status = dependencyStatusDown
		dep.Error = err.Error()
		return dep
	}

	start := time.Now()
	err = sqlDB.PingContext(ctx)
	dep.LatencyMs = time.Since(start).Milliseconds()
	if err != nil {
		dep.Status = dependencyStatusDown
		dep.Error = err.Error()
		return dep
	}
	dep.Status = dependencyStatusUp
	return dep
}

func pingRedis(ctx context.Context) DependencyStatus {
	dep := DependencyStatus{Name: "redis"}
	client := database.GetRedisClient()
	if client == nil {
		dep.Status = dependencyStatusDisabled
		return dep
	}

	pingCtx, cancel := context.WithTimeout(ctx, 500*time.Millisecond)
	defer cancel()
	start := time.Now()
	err := client.Ping(pingCtx).Err()
	dep.LatencyMs = time.Since(start).Milliseconds()
	if err != nil {
		dep.Status = dependencyStatusDown
		dep.Error = err.Error()
		return dep
	}
	dep.Status = dependencyStatusUp
	return dep
}

func combineStatus(current, candidate string) string {
	order := map[string]int{
		overallStatusOK:       0,
		overallStatusDegraded: 1,
		overallStatusCritical: 2,
	}
	if _, ok := order[current]; !ok {
		current = overallStatusOK
	}
	if v, ok := order[candidate]; ok && v > order[current] {
		return candidate
	}
	return current
}
