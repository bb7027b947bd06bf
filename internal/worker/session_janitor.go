package worker

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// IdleEvictor drops conversations that have been idle too long.
type IdleEvictor interface {
	EvictIdle(ctx context.Context, now time.Time) int
}

// SessionJanitor periodically evicts idle conversations.
type SessionJanitor struct {
	cron    *cron.Cron
	evictor IdleEvictor
	logger  *zap.Logger
	now     func() time.Time
}

// NewSessionJanitor schedules eviction sweeps. The schedule is a standard
// 5-field cron expression or a descriptor such as "@every 1m".
func NewSessionJanitor(schedule string, evictor IdleEvictor, logger *zap.Logger) (*SessionJanitor, error) {
	j := &SessionJanitor{
		cron:    cron.New(),
		evictor: evictor,
		logger:  logger,
		now:     time.Now,
	}
	if _, err := j.cron.AddFunc(schedule, j.sweep); err != nil {
		return nil, fmt.Errorf("janitor: invalid schedule %q: %w", schedule, err)
	}
	return j, nil
}

// Run starts the sweeps and blocks until ctx is done.
func (j *SessionJanitor) Run(ctx context.Context) {
	j.cron.Start()
	j.logger.Info("session janitor started")

	<-ctx.Done()
	<-j.cron.Stop().Done()
	j.logger.Info("session janitor stopped")
}

func (j *SessionJanitor) sweep() {
	evicted := j.evictor.EvictIdle(context.Background(), j.now())
	if evicted > 0 {
		j.logger.Debug("janitor sweep", zap.Int("evicted", evicted))
	}
}
