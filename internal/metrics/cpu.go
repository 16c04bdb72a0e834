package metrics

import (
	"context"
	"log/slog"
	"os"
	"time"

	"github.com/shirou/gopsutil/v4/process"
)

// CPUSampler feeds the aggregator's CPU gauge on a fixed wall-clock
// interval. Each tick it reads the process CPU time and reports
// (deltaCPU/deltaWall)*100, clamped by the aggregator.
type CPUSampler struct {
	proc     *process.Process
	agg      *Aggregator
	logger   *slog.Logger
	interval time.Duration
}

// NewCPUSampler creates a sampler bound to the current process.
func NewCPUSampler(agg *Aggregator, logger *slog.Logger) (*CPUSampler, error) {
	proc, err := process.NewProcess(int32(os.Getpid()))
	if err != nil {
		return nil, err
	}

	return &CPUSampler{
		proc:     proc,
		agg:      agg,
		logger:   logger,
		interval: CPUSampleInterval,
	}, nil
}

// Run samples until the context is cancelled. Intended to run in its own
// goroutine.
func (s *CPUSampler) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	lastCPU, err := s.cpuSeconds()
	if err != nil {
		s.logger.Warn("CPU sampler unavailable", slog.String("error", err.Error()))
		return
	}
	lastWall := time.Now()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			cpu, err := s.cpuSeconds()
			if err != nil {
				s.logger.Warn("Failed to read process CPU time", slog.String("error", err.Error()))
				continue
			}

			wall := now.Sub(lastWall).Seconds()
			if wall > 0 {
				s.agg.SetCPUPercent((cpu - lastCPU) / wall * 100)
			}
			lastCPU = cpu
			lastWall = now
		}
	}
}

func (s *CPUSampler) cpuSeconds() (float64, error) {
	times, err := s.proc.Times()
	if err != nil {
		return 0, err
	}
	return times.User + times.System, nil
}
