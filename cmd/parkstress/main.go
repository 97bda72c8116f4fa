// Parkstress runs mutator threads that block on parked locks, semaphores
// and joins while a collector thread keeps stopping the world, and reports
// how long the stops took.
//
// Usage:
//
//	parkstress [-threads n] [-duration d] [-interval d] [-debug settings] [-invert]
//
// The -debug settings use the PARKDEBUG syntax, for example
// "checks=1,lockgraph=1"; they default to the PARKDEBUG environment variable.
// With -invert the main thread takes two locks in both orders before the run
// starts, which the lock-order report flags as a potential deadlock.
package main

import (
	"flag"
	"fmt"
	"log"
	"math/rand/v2"
	"os"
	"sync/atomic"
	"time"

	"github.com/ilikethese/v8/heap"
	"github.com/ilikethese/v8/internal/task"
)

var (
	threads  = flag.Int("threads", 8, "number of mutator `threads`")
	duration = flag.Duration("duration", 2*time.Second, "how long to run")
	interval = flag.Duration("interval", 5*time.Millisecond, "time between stops")
	debug    = flag.String("debug", os.Getenv(heap.DebugEnv), "debug `settings`")
	invert   = flag.Bool("invert", false, "take two locks in both orders first")
)

func usage() {
	fmt.Fprintf(os.Stderr, "usage: parkstress [flags]\n")
	flag.PrintDefaults()
	os.Exit(2)
}

// fatalf prints a message and exits, like the go command's base.Fatalf.
func fatalf(format string, args ...any) {
	log.Printf(format, args...)
	os.Exit(1)
}

// shared is the state the mutators contend on.
type shared struct {
	mu        task.PMutex
	recursive task.RecursiveMutex
	table     task.SharedMutex
	tokens    *heap.ParkingSemaphore

	// Work done while Active, standing in for heap mutation.
	allocs atomic.Int64
}

func main() {
	log.SetFlags(0)
	log.SetPrefix("parkstress: ")
	flag.Usage = usage
	flag.Parse()
	if flag.NArg() != 0 || *threads <= 0 {
		usage()
	}

	cfg, err := heap.ParseDebug(*debug)
	if err != nil {
		fatalf("bad -debug: %v", err)
	}
	sp := heap.NewSafepoint(cfg)
	lh := sp.Attach(task.Init())
	defer lh.Detach()

	s := &shared{tokens: heap.NewParkingSemaphore(uint32(*threads/2 + 1))}
	if rec := sp.LockOrder(); rec != nil {
		rec.Name(&s.mu, "mu")
		rec.Name(&s.recursive, "recursive")
		rec.Name(&s.table, "table")
	}
	if *invert {
		lockBothWays(lh, s)
	}

	var quit atomic.Bool
	collector := task.Start(func(*task.Task) {
		for !quit.Load() {
			sp.RunStopped(nil, func(*heap.SafepointScope) {})
			time.Sleep(*interval)
		}
	})

	mutators := make([]*task.Task, *threads)
	var parks atomic.Uint64
	for i := range mutators {
		seed := uint64(i)
		mutators[i] = sp.Start(func(lh *heap.LocalHeap) {
			mutate(lh, s, rand.New(rand.NewPCG(seed, uint64(time.Now().UnixNano()))), &quit)
			parks.Add(lh.ParkCount())
		})
	}

	// Sleep parked: the main thread is attached too.
	lh.BlockWhileParked(func(*heap.ParkedScope) {
		time.Sleep(*duration)
	})
	quit.Store(true)
	heap.ParkedJoinAll(lh, mutators)
	heap.ParkedJoin(lh, collector)

	report(sp, s, parks.Load())
}

// mutate runs one mutator thread until quit is set.
func mutate(lh *heap.LocalHeap, s *shared, r *rand.Rand, quit *atomic.Bool) {
	for !quit.Load() {
		s.allocs.Add(1)
		switch r.IntN(6) {
		case 0:
			g := heap.LockParked(lh, &s.mu)
			s.allocs.Add(1)
			g.Unlock()
		case 1:
			outer := heap.LockParkedRecursive(lh, &s.recursive)
			inner := heap.LockParkedRecursive(lh, &s.recursive)
			g := heap.LockParked(lh, &s.mu)
			g.Unlock()
			inner.Unlock()
			outer.Unlock()
		case 2:
			g := heap.RLockParked(lh, &s.table)
			s.allocs.Add(1)
			g.Unlock()
		case 3:
			g := heap.LockSharedParkedIf(lh, &s.table, heap.Exclusive, heap.RequireNotNull, r.IntN(2) == 0)
			g.Unlock()
		case 4:
			s.tokens.ParkedWait(lh)
			s.tokens.Signal()
		case 5:
			helper := task.Start(func(*task.Task) {})
			heap.ParkedJoin(lh, helper)
		}
		lh.Safepoint()
	}
}

func lockBothWays(lh *heap.LocalHeap, s *shared) {
	a := heap.LockParked(lh, &s.mu)
	b := heap.LockExclusiveParked(lh, &s.table)
	b.Unlock()
	a.Unlock()

	b = heap.LockExclusiveParked(lh, &s.table)
	a = heap.LockParked(lh, &s.mu)
	a.Unlock()
	b.Unlock()
}

func report(sp *heap.Safepoint, s *shared, parks uint64) {
	log.Printf("config: %v", sp.Config())
	log.Printf("%d threads, %d operations, %d parks", *threads, s.allocs.Load(), parks)
	printSummary("pause", sp.Stats())
	printSummary("time to safepoint", sp.TimeToSafepoint())
	if rec := sp.LockOrder(); rec != nil {
		rec.ReportText(os.Stdout)
		if cycles := rec.Cycles(); len(cycles) > 0 {
			log.Printf("%d lock-order cycles", len(cycles))
		}
	}
}

func printSummary(name string, p heap.PauseSummary) {
	log.Printf("%s: %d stops, mean %v, p50 %v, p99 %v, max %v", name, p.Count, p.Mean, p.P50, p.P99, p.Max)
}
