package core

import "time"

const perfSampleCount uint8 = 32

// PassPerf is one timing sample set for a render/compute pass, consumed by
// the player's performance overlay.
type PassPerf struct {
	Last    time.Duration
	Avg     time.Duration
	Peak    time.Duration
	Samples []time.Duration
}

// TimerPool accumulates wall-clock durations of repeated executions of the
// same pass in a fixed ring.
type TimerPool struct {
	samples [perfSampleCount]time.Duration
	count   uint8
	index   uint8
	start   time.Time
	running bool
}

func NewTimerPool() *TimerPool {
	return &TimerPool{}
}

func (tp *TimerPool) Start() {
	tp.start = time.Now()
	tp.running = true
}

func (tp *TimerPool) Stop() {
	if !tp.running {
		return
	}
	tp.running = false
	tp.samples[tp.index] = time.Since(tp.start)
	tp.index = (tp.index + 1) % perfSampleCount
	if tp.count < perfSampleCount {
		tp.count++
	}
}

// Measure returns the aggregated timings over the recorded ring. A nil pool
// yields a zero sample, so failed dispatches can still report something.
func (tp *TimerPool) Measure() PassPerf {
	if tp == nil || tp.count == 0 {
		return PassPerf{}
	}
	perf := PassPerf{
		Samples: make([]time.Duration, tp.count),
	}
	var sum time.Duration
	for i := uint8(0); i < tp.count; i++ {
		s := tp.samples[i]
		perf.Samples[i] = s
		sum += s
		if s > perf.Peak {
			perf.Peak = s
		}
	}
	last := tp.index
	if last == 0 {
		last = tp.count
	}
	perf.Last = tp.samples[last-1]
	perf.Avg = sum / time.Duration(tp.count)
	return perf
}
