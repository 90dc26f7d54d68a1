package metrics

import (
	"context"
	"os"
	"time"

	"github.com/shirou/gopsutil/v3/process"
)

// ProcessSampler periodically samples this process's CPU and memory usage
// into the Metrics process gauges, using gopsutil. Grounded on the spec's
// ambient "self-monitoring" need for the Consumer Runtime and Periodic
// Analyzers to be observable the same way external dependencies are.
type ProcessSampler struct {
	metrics *Metrics
	proc    *process.Process
}

// NewProcessSampler builds a sampler for the current process.
func NewProcessSampler(m *Metrics) (*ProcessSampler, error) {
	proc, err := process.NewProcess(int32(os.Getpid()))
	if err != nil {
		return nil, err
	}
	return &ProcessSampler{metrics: m, proc: proc}, nil
}

// Run samples at the given interval until ctx is cancelled.
func (s *ProcessSampler) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.sample()
		}
	}
}

func (s *ProcessSampler) sample() {
	if cpuPct, err := s.proc.CPUPercent(); err == nil {
		s.metrics.ProcessCPUPercent.Set(cpuPct)
	}
	if memInfo, err := s.proc.MemoryInfo(); err == nil && memInfo != nil {
		s.metrics.ProcessMemoryBytes.Set(float64(memInfo.RSS))
	}
}
