package runtime

import (
	"runtime"
	"runtime/metrics"
	"sync"
	"time"
)

const (
	metricUserCPU    = "/cpu/classes/user:cpu-seconds"
	metricGoroutines = "/sched/goroutines:goroutines"
	metricHeapBytes  = "/memory/classes/heap/objects:bytes"
	metricGCCycles   = "/gc/cycles/total:gc-cycles"
)

// ResourceUsage is a coarse view of the process at capture time.
type ResourceUsage struct {
	CPUPercent  float64
	MemoryBytes uint64
	Goroutines  int
	GCCycles    uint64
}

// resourceTracker samples runtime/metrics, which unlike ReadMemStats does
// not stop the world. CPU usage is the delta since the previous snapshot.
type resourceTracker struct {
	mu             sync.Mutex
	samples        []metrics.Sample
	lastCPUSeconds float64
	lastSample     time.Time
	numCPU         float64
}

func newResourceTracker() *resourceTracker {
	return &resourceTracker{
		samples: newResourceSamples(),
		numCPU:  float64(runtime.NumCPU()),
	}
}

func newResourceSamples() []metrics.Sample {
	return []metrics.Sample{
		{Name: metricUserCPU},
		{Name: metricGoroutines},
		{Name: metricHeapBytes},
		{Name: metricGCCycles},
	}
}

func (r *resourceTracker) Snapshot() ResourceUsage {
	if r == nil {
		return ResourceUsage{}
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if len(r.samples) == 0 {
		r.samples = newResourceSamples()
	}
	metrics.Read(r.samples)

	var usage ResourceUsage
	cpuSeconds, haveCPU := 0.0, false
	for _, s := range r.samples {
		switch s.Value.Kind() {
		case metrics.KindFloat64:
			if s.Name == metricUserCPU {
				cpuSeconds, haveCPU = s.Value.Float64(), true
			}
		case metrics.KindUint64:
			switch s.Name {
			case metricGoroutines:
				usage.Goroutines = int(s.Value.Uint64())
			case metricHeapBytes:
				usage.MemoryBytes = s.Value.Uint64()
			case metricGCCycles:
				usage.GCCycles = s.Value.Uint64()
			}
		}
	}
	if usage.Goroutines == 0 {
		usage.Goroutines = runtime.NumGoroutine()
	}

	now := time.Now()
	if haveCPU && !r.lastSample.IsZero() {
		deltaCPU := cpuSeconds - r.lastCPUSeconds
		deltaWall := now.Sub(r.lastSample).Seconds()
		if deltaWall > 0 && r.numCPU > 0 && deltaCPU >= 0 {
			usage.CPUPercent = (deltaCPU / deltaWall) / r.numCPU * 100
		}
	}
	if haveCPU {
		r.lastCPUSeconds = cpuSeconds
	}
	r.lastSample = now

	return usage
}
