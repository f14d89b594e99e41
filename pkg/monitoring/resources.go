package monitoring

import (
	"context"
	"log/slog"
	"time"

	"github.com/shirou/gopsutil/v4/cpu"
	"github.com/shirou/gopsutil/v4/disk"
	"github.com/shirou/gopsutil/v4/mem"
)

const defaultSampleInterval = 30 * time.Second

// ResourceSampler feeds host resource gauges into a collector on a fixed
// interval.
type ResourceSampler struct {
	collector *MetricsCollector
	interval  time.Duration
	logger    *slog.Logger
}

func NewResourceSampler(collector *MetricsCollector, interval time.Duration, logger *slog.Logger) *ResourceSampler {
	if interval <= 0 {
		interval = defaultSampleInterval
	}

	if logger == nil {
		logger = slog.Default()
	}

	return &ResourceSampler{
		collector: collector,
		interval:  interval,
		logger:    logger,
	}
}

// Run samples until ctx is cancelled. Always returns nil so it can sit in
// an errgroup without taking the process down.
func (s *ResourceSampler) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			s.sample(ctx)
		}
	}
}

func (s *ResourceSampler) sample(ctx context.Context) {
	var memoryMB, cpuPercent, diskPercent float64

	if vm, err := mem.VirtualMemoryWithContext(ctx); err == nil {
		memoryMB = float64(vm.Used) / 1024 / 1024
	} else {
		s.logger.Debug("memory sample failed", "error", err)
	}

	if percents, err := cpu.PercentWithContext(ctx, 0, false); err == nil && len(percents) > 0 {
		cpuPercent = percents[0]
	} else if err != nil {
		s.logger.Debug("cpu sample failed", "error", err)
	}

	if usage, err := disk.UsageWithContext(ctx, "/"); err == nil {
		diskPercent = usage.UsedPercent
	} else {
		s.logger.Debug("disk sample failed", "error", err)
	}

	s.collector.UpdateResourceUsage(memoryMB, cpuPercent, diskPercent)
}
