package jobs

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"LedgerCorpSuite/internal/logger"
)

func TestCronServiceStartsWithoutGlobalLogger(t *testing.T) {
	saved := logger.GlobalLogger
	logger.GlobalLogger = nil
	defer func() { logger.GlobalLogger = saved }()

	svc := NewCronService(nil, nil)
	assert.Equal(t, "cron", svc.Name())
	assert.NoError(t, svc.Start())
	assert.NoError(t, svc.Stop())
}

func TestCronServiceRejectsBadSchedule(t *testing.T) {
	svc := NewCronService(map[string]interface{}{
		"staging_purge_schedule": "not a cron spec",
	}, nil)
	assert.Error(t, svc.Start())
}
