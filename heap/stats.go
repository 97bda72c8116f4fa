package heap

import (
	"sort"
	"time"

	"github.com/aclements/go-moremath/stats"
)

// Number of most recent stops kept for Stats.
const pauseHistory = 1024

type pauseRing struct {
	count int
	max   time.Duration
	buf   [pauseHistory]time.Duration
}

func (r *pauseRing) add(d time.Duration) {
	r.buf[r.count%pauseHistory] = d
	r.count++
	if d > r.max {
		r.max = d
	}
}

func (r *pauseRing) summary() PauseSummary {
	s := PauseSummary{Count: r.count, Max: r.max}
	n := r.count
	if n > pauseHistory {
		n = pauseHistory
	}
	if n == 0 {
		return s
	}
	xs := make([]float64, n)
	for i := range xs {
		xs[i] = float64(r.buf[i])
	}
	sort.Float64s(xs)
	sample := stats.Sample{Xs: xs, Sorted: true}
	s.Mean = time.Duration(sample.Mean())
	s.P50 = time.Duration(sample.Quantile(0.5))
	s.P99 = time.Duration(sample.Quantile(0.99))
	return s
}

// PauseSummary describes the durations of past stops. Mean and the
// percentiles cover the most recent stops only; Count and Max cover all of
// them.
type PauseSummary struct {
	Count int
	Mean  time.Duration
	P50   time.Duration
	P99   time.Duration
	Max   time.Duration
}

// Stats describes how long the world stayed stopped, from the stop request to
// Resume.
func (sp *Safepoint) Stats() PauseSummary {
	sp.statsLock.Lock()
	defer sp.statsLock.Unlock()
	return sp.pauses.summary()
}

// TimeToSafepoint describes how long stops waited for running threads to
// reach a checkpoint or park.
func (sp *Safepoint) TimeToSafepoint() PauseSummary {
	sp.statsLock.Lock()
	defer sp.statsLock.Unlock()
	return sp.ttsp.summary()
}

func (sp *Safepoint) record(r *pauseRing, d time.Duration) {
	sp.statsLock.Lock()
	r.add(d)
	sp.statsLock.Unlock()
}
