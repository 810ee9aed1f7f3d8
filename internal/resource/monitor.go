package resource

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"shrinkray/internal/logging"
)

// Snapshot is a point-in-time reading of host resource usage. Snapshots are
// ephemeral; they gate scheduling decisions and are never persisted.
type Snapshot struct {
	Timestamp     time.Time
	CPUPercent    float64
	MemPercent    float64
	DiskFreeBytes uint64
}

// Monitor periodically samples resource usage for a watched path.
type Monitor struct {
	path     string
	interval time.Duration
	logger   *slog.Logger

	statfs  func(path string) (total, free uint64, err error)
	cpuRead func() (idle, total uint64, err error)
	memRead func() (usedPct float64, err error)

	mu       sync.RWMutex
	last     Snapshot
	prevIdle uint64
	prevBusy uint64
}

// NewMonitor constructs a monitor watching the filesystem containing path.
func NewMonitor(path string, interval time.Duration, logger *slog.Logger) *Monitor {
	if interval <= 0 {
		interval = 5 * time.Second
	}
	return &Monitor{
		path:     path,
		interval: interval,
		logger:   logging.NewComponentLogger(logger, "resource-monitor"),
		statfs:   realStatfs,
		cpuRead:  readCPUCounters,
		memRead:  readMemPercent,
	}
}

// Start launches the sampling loop until ctx is cancelled. An initial sample
// is taken synchronously so Current never returns a zero snapshot after Start.
func (m *Monitor) Start(ctx context.Context) {
	m.sample()
	go func() {
		ticker := time.NewTicker(m.interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				m.sample()
			}
		}
	}()
}

// Current returns the most recent snapshot.
func (m *Monitor) Current() Snapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.last
}

// DiskLow reports whether free space on the watched volume is below min.
func (m *Monitor) DiskLow(min uint64) bool {
	if min == 0 {
		return false
	}
	return m.Current().DiskFreeBytes < min
}

// CPUHigh reports whether the last CPU sample exceeds the given percentage.
func (m *Monitor) CPUHigh(pct float64) bool {
	if pct <= 0 {
		return false
	}
	return m.Current().CPUPercent > pct
}

func (m *Monitor) sample() {
	snap := Snapshot{Timestamp: time.Now().UTC()}

	if _, free, err := m.statfs(m.path); err != nil {
		m.logger.Warn("disk sample failed",
			logging.Error(err),
			logging.String("path", m.path),
			logging.String(logging.FieldEventType, "resource_sample_failed"),
		)
	} else {
		snap.DiskFreeBytes = free
	}

	if idle, total, err := m.cpuRead(); err == nil {
		m.mu.Lock()
		if m.prevIdle > 0 || m.prevBusy > 0 {
			idleDelta := float64(idle - m.prevIdle)
			totalDelta := float64(total - (m.prevIdle + m.prevBusy))
			if totalDelta > 0 {
				snap.CPUPercent = 100 * (1 - idleDelta/totalDelta)
			}
		}
		m.prevIdle = idle
		m.prevBusy = total - idle
		m.mu.Unlock()
	}

	if used, err := m.memRead(); err == nil {
		snap.MemPercent = used
	}

	m.mu.Lock()
	m.last = snap
	m.mu.Unlock()
}
