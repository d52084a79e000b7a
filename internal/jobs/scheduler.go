// Package jobs runs the suite's scheduled maintenance work. The only job in
// this deployment is the staging purge: previewed statement batches that were
// never confirmed are deleted after a retention window.
package jobs

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/robfig/cron/v3"

	"LedgerCorpSuite/api/recon/statement"
	"LedgerCorpSuite/internal/config"
	"LedgerCorpSuite/internal/logger"
	"LedgerCorpSuite/internal/serviceiface"
)

type CronService struct {
	config map[string]interface{}
	db     *pgxpool.Pool
	cron   *cron.Cron
}

func audit(msg string) {
	if logger.GlobalLogger != nil {
		logger.GlobalLogger.LogAudit(msg)
		return
	}
	log.Println("[AUDIT]", msg)
}

func NewCronService(cfg map[string]interface{}, db *pgxpool.Pool) serviceiface.Service {
	return &CronService{
		config: cfg,
		db:     db,
	}
}

func (s *CronService) Name() string {
	return "cron"
}

func (s *CronService) Start() error {
	log.Println("Starting cron service...")

	schedule := config.DefaultStagingPurgeSchedule
	retentionDays := config.DefaultStagingRetentionDays
	if s.config != nil {
		if v, ok := s.config["staging_purge_schedule"].(string); ok && v != "" {
			schedule = v
		}
		if v, ok := s.config["staging_retention_days"].(int); ok && v > 0 {
			retentionDays = v
		}
	}

	s.cron = cron.New()
	_, err := s.cron.AddFunc(schedule, func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
		defer cancel()
		purged, err := statement.PurgeStaleBatches(ctx, s.db, retentionDays)
		if err != nil {
			audit(fmt.Sprintf("Staging purge failed: %v", err))
			return
		}
		audit(fmt.Sprintf("Staging purge removed %d rows at %s", purged, time.Now().Format(time.RFC3339)))
	})
	if err != nil {
		return fmt.Errorf("failed to schedule staging purge: %v", err)
	}
	s.cron.Start()

	audit("Cron service started with staging purge scheduled " + schedule)
	log.Println("Cron service started, staging purge scheduled")
	return nil
}

func (s *CronService) Stop() error {
	if s.cron != nil {
		s.cron.Stop()
	}
	log.Println("Cron service stopped.")
	return nil
}
