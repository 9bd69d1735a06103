package orchestrator

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"
)

// startMaintenance runs the metrics, health and cache loops until ctx ends
func (c *Coordinator) startMaintenance(ctx context.Context) {
	c.every(ctx, "metrics", c.config.MetricsInterval, func(ctx context.Context) {
		c.metrics.Refresh()
	})

	c.every(ctx, "health", c.config.HealthInterval, func(ctx context.Context) {
		health := c.GetSystemHealth(ctx)
		if health.OverallHealth < 0.5 {
			log.Warn().Float64("overall_health", health.OverallHealth).Msg("System health degraded")
		}
	})

	c.every(ctx, "cache", c.config.CacheCleanupInterval, func(ctx context.Context) {
		if n := c.cache.Cleanup(); n > 0 {
			log.Info().Int("removed", n).Msg("Cleaned up expired cache entries")
		}
	})
}

// every runs fn on a ticker; a zero interval disables the loop
func (c *Coordinator) every(ctx context.Context, name string, interval time.Duration, fn func(context.Context)) {
	if interval <= 0 {
		return
	}

	c.loops.Add(1)
	go func() {
		defer c.loops.Done()

		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				log.Debug().Str("loop", name).Msg("Running maintenance")
				c.runGuarded(ctx, name, fn)
			}
		}
	}()
}

// runGuarded keeps a panicking cycle from ending its loop
func (c *Coordinator) runGuarded(ctx context.Context, name string, fn func(context.Context)) {
	defer func() {
		if r := recover(); r != nil {
			log.Error().Str("loop", name).Interface("panic", r).Msg("Maintenance cycle failed")
		}
	}()
	fn(ctx)
}
