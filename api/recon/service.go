package recon

import (
	"github.com/jackc/pgx/v5/pgxpool"

	"LedgerCorpSuite/internal/config"
	"LedgerCorpSuite/internal/serviceiface"
)

type ReconService struct {
	config map[string]interface{}
	pool   *pgxpool.Pool
}

func NewReconService(cfg map[string]interface{}, pool *pgxpool.Pool) serviceiface.Service {
	return &ReconService{config: cfg, pool: pool}
}

func (s *ReconService) Name() string {
	return "recon"
}

func (s *ReconService) Start() error {
	tuning := config.TuningFromServiceConfig(s.config)
	go StartReconService(s.pool, tuning)
	return nil
}

func (s *ReconService) Stop() error {
	return nil
}
