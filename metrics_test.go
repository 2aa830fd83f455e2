package typegraph

import (
	"sync"
	"testing"
	"time"
)

func TestMetrics_Basic(t *testing.T) {
	m := NewMetrics()

	if m.ReleasesTotal() != 0 {
		t.Errorf("ReleasesTotal() = %d; want 0", m.ReleasesTotal())
	}

	m.RecordRelease(100*time.Millisecond, true)
	m.RecordRelease(300*time.Millisecond, false)

	if m.ReleasesTotal() != 2 {
		t.Errorf("ReleasesTotal() = %d; want 2", m.ReleasesTotal())
	}
	if m.ReleasesSucceeded() != 1 {
		t.Errorf("ReleasesSucceeded() = %d; want 1", m.ReleasesSucceeded())
	}
}

func TestMetrics_CompileTime(t *testing.T) {
	m := NewMetrics()

	if avg := m.AverageCompileTime(); avg != 0 {
		t.Errorf("AverageCompileTime() = %v; want 0", avg)
	}
	if min := m.MinCompileTime(); min != 0 {
		t.Errorf("MinCompileTime() = %v; want 0", min)
	}

	m.RecordRelease(100*time.Millisecond, true)
	m.RecordRelease(200*time.Millisecond, true)
	m.RecordRelease(300*time.Millisecond, true)

	if avg := m.AverageCompileTime(); avg != 200*time.Millisecond {
		t.Errorf("AverageCompileTime() = %v; want 200ms", avg)
	}
	if min := m.MinCompileTime(); min != 100*time.Millisecond {
		t.Errorf("MinCompileTime() = %v; want 100ms", min)
	}
	if max := m.MaxCompileTime(); max != 300*time.Millisecond {
		t.Errorf("MaxCompileTime() = %v; want 300ms", max)
	}
}

func TestMetrics_Stages(t *testing.T) {
	m := NewMetrics()

	if _, ok := m.StageStats(StageCompile); ok {
		t.Error("StageStats should report a missing stage")
	}

	m.RecordStage(StageCompile, 10*time.Millisecond)
	m.RecordStage(StageCompile, 30*time.Millisecond)
	m.RecordStage(StageLoad, 5*time.Millisecond)

	stats, ok := m.StageStats(StageCompile)
	if !ok {
		t.Fatal("StageStats(compile) not found")
	}
	if stats.Invocations != 2 || stats.AvgTime != 20*time.Millisecond {
		t.Errorf("StageStats(compile) = %+v", stats)
	}

	all := m.AllStageStats()
	if len(all) != 2 || all[0].Name != StageCompile || all[1].Name != StageLoad {
		t.Errorf("AllStageStats() = %+v; want compile, load", all)
	}
}

func TestMetrics_SnapshotAndReset(t *testing.T) {
	m := NewMetrics()
	m.RecordRelease(50*time.Millisecond, true)
	m.RecordGraph(10, 40, 12)
	m.RecordStage(StageDecode, time.Millisecond)

	s := m.Snapshot()
	if s.ReleasesTotal != 1 || s.FragmentsTotal != 10 || s.ClassesTotal != 40 || s.ProfilesTotal != 12 {
		t.Errorf("Snapshot() = %+v", s)
	}
	if s.MinCompileTimeNs != uint64((50 * time.Millisecond).Nanoseconds()) {
		t.Errorf("MinCompileTimeNs = %d", s.MinCompileTimeNs)
	}
	if len(s.Stages) != 1 {
		t.Errorf("Stages = %+v; want one", s.Stages)
	}

	m.Reset()
	s = m.Snapshot()
	if s.ReleasesTotal != 0 || s.ClassesTotal != 0 || s.MinCompileTimeNs != 0 || len(s.Stages) != 0 {
		t.Errorf("Snapshot() after Reset = %+v", s)
	}
}

func TestMetrics_Concurrent(t *testing.T) {
	m := NewMetrics()
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			m.RecordRelease(time.Duration(i+1)*time.Millisecond, i%2 == 0)
			m.RecordStage(StageCompile, time.Millisecond)
		}(i)
	}
	wg.Wait()

	if m.ReleasesTotal() != 50 || m.ReleasesSucceeded() != 25 {
		t.Errorf("totals = %d/%d; want 50/25", m.ReleasesTotal(), m.ReleasesSucceeded())
	}
	if m.MinCompileTime() != time.Millisecond || m.MaxCompileTime() != 50*time.Millisecond {
		t.Errorf("min/max = %v/%v", m.MinCompileTime(), m.MaxCompileTime())
	}
	if stats, _ := m.StageStats(StageCompile); stats.Invocations != 50 {
		t.Errorf("compile invocations = %d; want 50", stats.Invocations)
	}
}
