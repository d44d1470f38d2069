package worker

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/garyjia/store-ops/internal/domain/entity"
)

// SessionExpirer drops idle scan sessions
type SessionExpirer interface {
	ExpireSessions(now time.Time) int
}

// WorkdayPlanner makes sure upcoming days have a bulletin Document
type WorkdayPlanner interface {
	EnsureWorkdays(ctx context.Context, from time.Time, days int) ([]*entity.Document, error)
}

// NewSessionJanitor expires idle returns scan sessions every interval
func NewSessionJanitor(sessions SessionExpirer, interval time.Duration, logger *zap.Logger) *Periodic {
	return NewPeriodic("SessionJanitor", interval, false, func(ctx context.Context) error {
		if n := sessions.ExpireSessions(time.Now()); n > 0 {
			logger.Info("Expired idle scan sessions", zap.Int("count", n))
		}
		return nil
	}, logger)
}

// NewWorkdayScheduler creates the Documents for the next days workdays, once at start
// and then every interval
func NewWorkdayScheduler(planner WorkdayPlanner, days int, interval time.Duration, logger *zap.Logger) *Periodic {
	return NewPeriodic("WorkdayScheduler", interval, true, func(ctx context.Context) error {
		docs, err := planner.EnsureWorkdays(ctx, time.Now(), days)
		if err != nil {
			return err
		}
		logger.Debug("Workday documents ensured", zap.Int("days", len(docs)))
		return nil
	}, logger)
}
