package monitoring

import (
	"context"
	"os"
	"runtime"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/shirou/gopsutil/v3/process"
)

// StatsSnapshot holds the most recent process resource measurements.
type StatsSnapshot struct {
	CPUPercent float64   `json:"cpu_percent"`
	RSSBytes   uint64    `json:"rss_bytes"`
	Goroutines int       `json:"goroutines"`
	Timestamp  time.Time `json:"timestamp"`
}

// StatsCollector periodically samples process CPU/RSS and goroutine count,
// publishing them to the prometheus gauges and keeping a snapshot for the
// health endpoint. Measure once, query many times.
type StatsCollector struct {
	proc     *process.Process
	interval time.Duration
	log      zerolog.Logger

	mu       sync.RWMutex
	snapshot StatsSnapshot
}

func NewStatsCollector(interval time.Duration, log zerolog.Logger) (*StatsCollector, error) {
	proc, err := process.NewProcess(int32(os.Getpid()))
	if err != nil {
		return nil, err
	}
	return &StatsCollector{
		proc:     proc,
		interval: interval,
		log:      log.With().Str("component", "stats_collector").Logger(),
	}, nil
}

// Run samples on a fixed period until ctx is cancelled.
func (c *StatsCollector) Run(ctx context.Context) {
	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.sample()
		}
	}
}

// Snapshot returns the latest measurements.
func (c *StatsCollector) Snapshot() StatsSnapshot {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.snapshot
}

func (c *StatsCollector) sample() {
	snap := StatsSnapshot{
		Goroutines: runtime.NumGoroutine(),
		Timestamp:  time.Now(),
	}

	if cpu, err := c.proc.CPUPercent(); err == nil {
		snap.CPUPercent = cpu
	} else {
		c.log.Debug().Err(err).Msg("CPU sample failed")
	}

	if mem, err := c.proc.MemoryInfo(); err == nil {
		snap.RSSBytes = mem.RSS
	} else {
		c.log.Debug().Err(err).Msg("Memory sample failed")
	}

	ProcessCPUPercent.Set(snap.CPUPercent)
	ProcessRSSBytes.Set(float64(snap.RSSBytes))
	Goroutines.Set(float64(snap.Goroutines))

	c.mu.Lock()
	c.snapshot = snap
	c.mu.Unlock()
}
