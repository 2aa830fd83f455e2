package typegraph

import (
	"sort"
	"sync"
	"sync/atomic"
	"time"
)

// Stage names recorded by the Generator.
const (
	StageLoad     = "load"
	StageDecode   = "decode"
	StageFilter   = "filter"
	StageCompile  = "compile"
	StageManifest = "manifest"
)

// Metrics tracks compilation metrics using lock-free atomic operations.
// All methods are safe for concurrent use.
type Metrics struct {
	releasesTotal     atomic.Uint64
	releasesSucceeded atomic.Uint64

	// Timing (stored as nanoseconds)
	compileTimeTotal atomic.Uint64
	compileTimeMin   atomic.Uint64
	compileTimeMax   atomic.Uint64

	fragmentsTotal atomic.Uint64
	classesTotal   atomic.Uint64
	profilesTotal  atomic.Uint64

	stageTiming sync.Map // map[string]*stageMetrics
}

type stageMetrics struct {
	invocations atomic.Uint64
	totalTime   atomic.Uint64 // nanoseconds
}

// NewMetrics creates a new Metrics instance.
func NewMetrics() *Metrics {
	m := &Metrics{}
	// Initialize min to max uint64 so first value becomes the minimum
	m.compileTimeMin.Store(^uint64(0))
	return m
}

// RecordRelease records one release compilation.
func (m *Metrics) RecordRelease(duration time.Duration, ok bool) {
	m.releasesTotal.Add(1)
	if ok {
		m.releasesSucceeded.Add(1)
	}

	ns := uint64(duration.Nanoseconds()) //nolint:gosec // durations are non-negative
	m.compileTimeTotal.Add(ns)

	for {
		old := m.compileTimeMin.Load()
		if ns >= old || m.compileTimeMin.CompareAndSwap(old, ns) {
			break
		}
	}
	for {
		old := m.compileTimeMax.Load()
		if ns <= old || m.compileTimeMax.CompareAndSwap(old, ns) {
			break
		}
	}
}

// RecordGraph records the size of a compiled graph.
func (m *Metrics) RecordGraph(fragments, classes, profiles int) {
	m.fragmentsTotal.Add(uint64(fragments)) //nolint:gosec // counts are non-negative
	m.classesTotal.Add(uint64(classes))     //nolint:gosec // counts are non-negative
	m.profilesTotal.Add(uint64(profiles))   //nolint:gosec // counts are non-negative
}

// RecordStage records the duration of one generator stage.
func (m *Metrics) RecordStage(name string, duration time.Duration) {
	sm := m.getOrCreateStage(name)
	sm.invocations.Add(1)
	sm.totalTime.Add(uint64(duration.Nanoseconds())) //nolint:gosec // durations are non-negative
}

func (m *Metrics) getOrCreateStage(name string) *stageMetrics {
	if v, ok := m.stageTiming.Load(name); ok {
		return v.(*stageMetrics)
	}
	actual, _ := m.stageTiming.LoadOrStore(name, &stageMetrics{})
	return actual.(*stageMetrics)
}

// ReleasesTotal returns the number of releases attempted.
func (m *Metrics) ReleasesTotal() uint64 {
	return m.releasesTotal.Load()
}

// ReleasesSucceeded returns the number of releases compiled without error.
func (m *Metrics) ReleasesSucceeded() uint64 {
	return m.releasesSucceeded.Load()
}

// AverageCompileTime returns the average release duration.
func (m *Metrics) AverageCompileTime() time.Duration {
	total := m.releasesTotal.Load()
	if total == 0 {
		return 0
	}
	return time.Duration(m.compileTimeTotal.Load() / total) //nolint:gosec // nanoseconds within int64 range
}

// MinCompileTime returns the shortest release duration.
func (m *Metrics) MinCompileTime() time.Duration {
	v := m.compileTimeMin.Load()
	if v == ^uint64(0) {
		return 0
	}
	return time.Duration(v) //nolint:gosec // nanoseconds within int64 range
}

// MaxCompileTime returns the longest release duration.
func (m *Metrics) MaxCompileTime() time.Duration {
	return time.Duration(m.compileTimeMax.Load()) //nolint:gosec // nanoseconds within int64 range
}

// StageStats holds the accumulated timing of one stage.
type StageStats struct {
	Name        string        `json:"name"`
	Invocations uint64        `json:"invocations"`
	TotalTime   time.Duration `json:"total_time"`
	AvgTime     time.Duration `json:"avg_time"`
}

// StageStats returns statistics for a specific stage.
func (m *Metrics) StageStats(name string) (StageStats, bool) {
	v, ok := m.stageTiming.Load(name)
	if !ok {
		return StageStats{Name: name}, false
	}
	return stageStats(name, v.(*stageMetrics)), true
}

// AllStageStats returns statistics for all stages, sorted by name.
func (m *Metrics) AllStageStats() []StageStats {
	var stats []StageStats
	m.stageTiming.Range(func(key, value any) bool {
		stats = append(stats, stageStats(key.(string), value.(*stageMetrics)))
		return true
	})
	sort.Slice(stats, func(i, j int) bool { return stats[i].Name < stats[j].Name })
	return stats
}

func stageStats(name string, sm *stageMetrics) StageStats {
	invocations := sm.invocations.Load()
	total := sm.totalTime.Load()
	var avg time.Duration
	if invocations > 0 {
		avg = time.Duration(total / invocations) //nolint:gosec // nanoseconds within int64 range
	}
	return StageStats{
		Name:        name,
		Invocations: invocations,
		TotalTime:   time.Duration(total), //nolint:gosec // nanoseconds within int64 range
		AvgTime:     avg,
	}
}

// Snapshot is a point-in-time copy of all metrics.
type Snapshot struct {
	Timestamp time.Time `json:"timestamp"`

	ReleasesTotal     uint64 `json:"releases_total"`
	ReleasesSucceeded uint64 `json:"releases_succeeded"`

	AvgCompileTimeNs uint64 `json:"avg_compile_time_ns"`
	MinCompileTimeNs uint64 `json:"min_compile_time_ns"`
	MaxCompileTimeNs uint64 `json:"max_compile_time_ns"`

	FragmentsTotal uint64 `json:"fragments_total"`
	ClassesTotal   uint64 `json:"classes_total"`
	ProfilesTotal  uint64 `json:"profiles_total"`

	Stages []StageStats `json:"stages,omitempty"`
}

// Snapshot returns a point-in-time snapshot of all metrics.
func (m *Metrics) Snapshot() Snapshot {
	return Snapshot{
		Timestamp:         time.Now(),
		ReleasesTotal:     m.releasesTotal.Load(),
		ReleasesSucceeded: m.releasesSucceeded.Load(),
		AvgCompileTimeNs:  uint64(m.AverageCompileTime().Nanoseconds()), //nolint:gosec // non-negative
		MinCompileTimeNs:  uint64(m.MinCompileTime().Nanoseconds()),     //nolint:gosec // non-negative
		MaxCompileTimeNs:  m.compileTimeMax.Load(),
		FragmentsTotal:    m.fragmentsTotal.Load(),
		ClassesTotal:      m.classesTotal.Load(),
		ProfilesTotal:     m.profilesTotal.Load(),
		Stages:            m.AllStageStats(),
	}
}

// Reset clears all metrics.
func (m *Metrics) Reset() {
	m.releasesTotal.Store(0)
	m.releasesSucceeded.Store(0)
	m.compileTimeTotal.Store(0)
	m.compileTimeMin.Store(^uint64(0))
	m.compileTimeMax.Store(0)
	m.fragmentsTotal.Store(0)
	m.classesTotal.Store(0)
	m.profilesTotal.Store(0)
	m.stageTiming.Range(func(key, _ any) bool {
		m.stageTiming.Delete(key)
		return true
	})
}
