// Package collector runs registry collection passes on a timer.
package collector

import (
	"context"
	"log"
	"time"

	"tiergc/domain/registry"
)

// Collector is satisfied by service.RegistryService.
type Collector interface {
	Collect() (registry.CollectStats, error)
}

type Job struct {
	target   Collector
	interval time.Duration
	log      *log.Logger
}

func New(target Collector, interval time.Duration, logger *log.Logger) *Job {
	if interval <= 0 {
		interval = time.Second
	}
	if logger == nil {
		logger = log.Default()
	}
	return &Job{target: target, interval: interval, log: logger}
}

// Start runs the job in a goroutine.
func (j *Job) Start(ctx context.Context) {
	go j.Run(ctx)
}

// Run collects on every tick until ctx is done. A failed pass is
// logged and the next tick tries again.
func (j *Job) Run(ctx context.Context) error {
	j.log.Printf("[collector] started (every %v)", j.interval)

	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			j.log.Println("[collector] stopped")
			return ctx.Err()
		case <-ticker.C:
			st, err := j.target.Collect()
			if err != nil {
				j.log.Printf("[collector] collect failed: %v", err)
				continue
			}
			if st.Swept > 0 || st.YoungToMiddle > 0 || st.MiddleToOld > 0 {
				j.log.Printf("[collector] %v", st)
			}
		}
	}
}
