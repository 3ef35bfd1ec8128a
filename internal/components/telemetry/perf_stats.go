package telemetry

import (
	"context"
	"os"
	"runtime"
	"time"

	"github.com/shirou/gopsutil/v4/process"
	"go.opentelemetry.io/otel"
)

// InstrumentPerfStats records cpu, memory and goroutine gauges for the current process
// every interval until ctx is done.
func InstrumentPerfStats(ctx context.Context, tel API, interval time.Duration) {
	meter := otel.Meter("nadlan.perf_stats")
	cpuGauge, _ := meter.Float64Gauge("cpu_percent")
	rssGauge, _ := meter.Int64Gauge("rss_mb")
	goroutineGauge, _ := meter.Int64Gauge("goroutine_count")

	self, err := process.NewProcessWithContext(ctx, int32(os.Getpid()))
	if err != nil {
		tel.ReportWarning("perf-stats", err)
		return
	}

	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				cpu, err := self.PercentWithContext(ctx, 0)
				if err == nil {
					cpuGauge.Record(ctx, cpu)
				} else {
					tel.ReportWarning("perf-stats", err)
				}
				mem, err := self.MemoryInfoWithContext(ctx)
				if err == nil {
					rssGauge.Record(ctx, int64(mem.RSS/1_000_000))
				}
				goroutineGauge.Record(ctx, int64(runtime.NumGoroutine()))
			case <-ctx.Done():
				return
			}
		}
	}()
}
