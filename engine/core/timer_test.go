package core

import (
	"testing"
	"time"
)

func TestTimerPoolEmpty(t *testing.T) {
	tp := NewTimerPool()
	perf := tp.Measure()
	if perf.Last != 0 || perf.Avg != 0 || perf.Peak != 0 || perf.Samples != nil {
		t.Errorf("empty pool measured %+v", perf)
	}
}

func TestTimerPoolNil(t *testing.T) {
	var tp *TimerPool
	if perf := tp.Measure(); perf.Avg != 0 {
		t.Errorf("nil pool measured %+v", perf)
	}
}

func TestTimerPoolSamples(t *testing.T) {
	tp := NewTimerPool()
	for i := 0; i < 3; i++ {
		tp.Start()
		time.Sleep(time.Millisecond)
		tp.Stop()
	}
	perf := tp.Measure()
	if len(perf.Samples) != 3 {
		t.Fatalf("got %d samples, want 3", len(perf.Samples))
	}
	if perf.Last <= 0 || perf.Avg <= 0 {
		t.Errorf("non-positive timings: %+v", perf)
	}
	if perf.Peak < perf.Avg {
		t.Errorf("peak %v below average %v", perf.Peak, perf.Avg)
	}
	if perf.Last != perf.Samples[2] {
		t.Errorf("Last = %v, want most recent sample %v", perf.Last, perf.Samples[2])
	}
}

func TestTimerPoolStopWithoutStart(t *testing.T) {
	tp := NewTimerPool()
	tp.Stop()
	if perf := tp.Measure(); len(perf.Samples) != 0 {
		t.Errorf("stray Stop recorded a sample: %+v", perf)
	}
}

func TestTimerPoolRingWrap(t *testing.T) {
	tp := NewTimerPool()
	for i := 0; i < int(perfSampleCount)+5; i++ {
		tp.Start()
		tp.Stop()
	}
	perf := tp.Measure()
	if len(perf.Samples) != int(perfSampleCount) {
		t.Errorf("got %d samples after wrap, want %d",
			len(perf.Samples), perfSampleCount)
	}
}
