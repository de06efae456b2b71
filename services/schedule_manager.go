package services

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
)

// jobTimeout bounds a single scheduled run.
const jobTimeout = 10 * time.Minute

// ScheduleSettings selects which background jobs run and when.
type ScheduleSettings struct {
	BackupEnabled  bool
	BackupCron     string
	LogArchiveCron string
	LogArchiveDays int
}

// ScheduleManager runs the nightly backup archive and log maintenance jobs
type ScheduleManager struct {
	cron     *cron.Cron
	backups  *BackupService
	logs     *LogArchiveService
	settings ScheduleSettings
}

// NewScheduleManager builds the manager. Either service may be nil, which
// disables its job.
func NewScheduleManager(backups *BackupService, logs *LogArchiveService, settings ScheduleSettings) *ScheduleManager {
	return &ScheduleManager{
		cron:     cron.New(cron.WithChain(cron.Recover(cronLogger{}))),
		backups:  backups,
		logs:     logs,
		settings: settings,
	}
}

// Start registers the jobs and starts the cron runner.
func (sm *ScheduleManager) Start() error {
	if sm.settings.BackupEnabled && sm.backups != nil {
		if _, err := sm.cron.AddFunc(sm.settings.BackupCron, sm.runBackupArchive); err != nil {
			return err
		}
		logrus.WithField("cron", sm.settings.BackupCron).Info("Scheduled backup archive job")
	}
	if sm.logs != nil && sm.settings.LogArchiveCron != "" {
		if _, err := sm.cron.AddFunc(sm.settings.LogArchiveCron, sm.runLogMaintenance); err != nil {
			return err
		}
		logrus.WithField("cron", sm.settings.LogArchiveCron).Info("Scheduled log maintenance job")
	}
	sm.cron.Start()
	return nil
}

// Stop waits for running jobs to finish.
func (sm *ScheduleManager) Stop() {
	<-sm.cron.Stop().Done()
}

// Jobs returns how many jobs are registered.
func (sm *ScheduleManager) Jobs() int {
	return len(sm.cron.Entries())
}

func (sm *ScheduleManager) runBackupArchive() {
	ctx, cancel := context.WithTimeout(context.Background(), jobTimeout)
	defer cancel()
	if _, err := sm.backups.Archive(ctx, "scheduled"); err != nil {
		logrus.WithError(err).Error("Scheduled backup archive failed")
	}
}

func (sm *ScheduleManager) runLogMaintenance() {
	ctx, cancel := context.WithTimeout(context.Background(), jobTimeout)
	defer cancel()
	sm.logs.RunMaintenance(ctx, sm.settings.LogArchiveDays)
}

// cronLogger routes cron's own messages through logrus.
type cronLogger struct{}

func (cronLogger) Info(msg string, keysAndValues ...interface{}) {
	logrus.WithFields(kvFields(keysAndValues)).Debug("cron: " + msg)
}

func (cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	logrus.WithError(err).WithFields(kvFields(keysAndValues)).Error("cron: " + msg)
}

func kvFields(kv []interface{}) logrus.Fields {
	fields := logrus.Fields{}
	for i := 0; i+1 < len(kv); i += 2 {
		if k, ok := kv[i].(string); ok {
			fields[k] = kv[i+1]
		}
	}
	return fields
}
