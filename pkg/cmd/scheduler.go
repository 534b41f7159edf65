package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/dukex/leadflow/pkg/scheduler"
	"github.com/dukex/leadflow/pkg/scheduler/redis"
	"github.com/jonboulle/clockwork"
)

// NewDelayScheduler selects the delay scheduler: "memory" keeps timers in the process and loses
// them on restart, a redis:// URL stores continuations in Redis.
func NewDelayScheduler(ctx context.Context, logger *slog.Logger, clock clockwork.Clock, value string) (scheduler.DelayScheduler, error) {
	switch {
	case value == "" || value == "memory":
		return scheduler.NewTimerScheduler(logger, clock), nil
	case strings.HasPrefix(value, "redis://"), strings.HasPrefix(value, "rediss://"):
		return redis.NewScheduler(ctx, logger, value, redis.WithClock(clock))
	default:
		return nil, fmt.Errorf("%w: scheduler %q", ErrUnsupportedProvider, value)
	}
}
