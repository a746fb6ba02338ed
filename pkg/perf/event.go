package perf

import (
	"context"
	"math"
	"runtime"
	"sync"
	"time"

	"diagflow/pkg/metrics"
)

// Iteration is one Start/Stop run of an event.
type Iteration struct {
	Number    int       `json:"number"`
	Start     time.Time `json:"start"`
	End       time.Time `json:"end"`
	Hits      int       `json:"hits"`
	StartHeap uint64    `json:"start_heap"`
	EndHeap   uint64    `json:"end_heap"`
}

func (it Iteration) Duration() time.Duration {
	return it.End.Sub(it.Start)
}

// HitsPerSecond is NaN when the iteration recorded no hits.
func (it Iteration) HitsPerSecond() float64 {
	d := it.Duration()
	if it.Hits <= 0 || d <= 0 {
		return math.NaN()
	}
	return float64(it.Hits) / d.Seconds()
}

// HeapDelta is the change in allocated heap bytes over the iteration.
func (it Iteration) HeapDelta() int64 {
	return int64(it.EndHeap) - int64(it.StartHeap)
}

// ElapsedFunc is called with the event and the iteration that just ended.
type ElapsedFunc func(e *Event, it Iteration)

// Event times repeated runs of one named operation. Only one iteration runs
// at a time; starting a running event ends the current iteration first.
type Event struct {
	name    string
	manager *Manager

	mu              sync.Mutex
	maxTime         time.Duration
	reportExceeding bool
	onExceeded      ElapsedFunc
	iterations      []Iteration
	active          *Iteration
	timer           *time.Timer
	timerSeq        uint64
	timedFn         ElapsedFunc
	done            chan struct{}
}

func newEvent(name string, m *Manager) *Event {
	done := make(chan struct{})
	close(done)
	return &Event{name: name, manager: m, done: done}
}

func (e *Event) Name() string {
	return e.name
}

// SetMaxTime sets the longest acceptable iteration. Zero disables the check.
func (e *Event) SetMaxTime(d time.Duration) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.maxTime = d
}

func (e *Event) MaxTime() time.Duration {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.maxTime
}

// SetReportExceeding makes iterations over the maximum time report a warning
// through the manager's reporter.
func (e *Event) SetReportExceeding(v bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.reportExceeding = v
}

// OnExceeded sets the callback for iterations over the maximum time.
func (e *Event) OnExceeded(fn ElapsedFunc) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.onExceeded = fn
}

func (e *Event) Running() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.active != nil
}

// Start begins a new iteration.
func (e *Event) Start(ctx context.Context) {
	e.mu.Lock()
	prev, stopped := e.stopLocked()
	e.startLocked()
	e.mu.Unlock()

	if stopped {
		e.finish(ctx, prev)
	}
}

func (e *Event) startLocked() {
	e.active = &Iteration{Start: e.manager.now(), StartHeap: heapAlloc()}
	e.done = make(chan struct{})
}

// Hit counts one unit of work in the running iteration.
func (e *Event) Hit() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.active != nil {
		e.active.Hits++
	}
}

// Stop ends the running iteration and records it. ok is false when nothing
// was running. An iteration over the maximum time runs the exceeded callback
// and, when enabled, reports a warning with ctx.
func (e *Event) Stop(ctx context.Context) (Iteration, bool) {
	e.mu.Lock()
	r, ok := e.stopLocked()
	e.mu.Unlock()

	if !ok {
		return Iteration{}, false
	}
	e.finish(ctx, r)
	return r.it, true
}

// stopped carries what a stop has to do once the lock is released.
type stopped struct {
	it       Iteration
	exceeded bool
	maxTime  time.Duration
	report   bool
	fn       ElapsedFunc
}

func (e *Event) stopLocked() (stopped, bool) {
	if e.active == nil {
		return stopped{}, false
	}

	it := *e.active
	it.End = e.manager.now()
	it.EndHeap = heapAlloc()
	it.Number = len(e.iterations)
	e.iterations = append(e.iterations, it)
	e.active = nil
	e.stopTimerLocked()
	close(e.done)

	return stopped{
		it:       it,
		exceeded: e.maxTime > 0 && it.Duration() > e.maxTime,
		maxTime:  e.maxTime,
		report:   e.reportExceeding,
		fn:       e.onExceeded,
	}, true
}

func (e *Event) finish(ctx context.Context, r stopped) {
	metrics.ObservePerfEvent(e.name, r.it.Duration())
	if !r.exceeded {
		return
	}
	metrics.IncPerfEventExceeded(e.name)
	if r.fn != nil {
		r.fn(e, r.it)
	}
	if r.report {
		e.manager.reportExceeded(ctx, e.name, r.it.Duration(), r.maxTime)
	}
}

// StartTimed starts an iteration that stops itself after d, then calls fn.
// Stopping it earlier with Stop cancels fn.
func (e *Event) StartTimed(ctx context.Context, d time.Duration, fn ElapsedFunc) {
	e.mu.Lock()
	prev, stopped := e.stopLocked()
	e.startLocked()
	e.timedFn = fn
	e.timerSeq++
	seq := e.timerSeq
	e.timer = time.AfterFunc(d, func() { e.finishTimed(context.Background(), seq) })
	e.mu.Unlock()

	if stopped {
		e.finish(ctx, prev)
	}
}

// StopTimer ends a timed iteration early and runs its callback now.
func (e *Event) StopTimer(ctx context.Context) {
	e.mu.Lock()
	seq := e.timerSeq
	e.mu.Unlock()
	e.finishTimed(ctx, seq)
}

// finishTimed ignores a timer that fired after its iteration was already
// stopped or replaced.
func (e *Event) finishTimed(ctx context.Context, seq uint64) {
	e.mu.Lock()
	if e.timer == nil || e.timerSeq != seq {
		e.mu.Unlock()
		return
	}
	fn := e.timedFn
	e.timedFn = nil
	r, ok := e.stopLocked()
	e.mu.Unlock()

	if !ok {
		return
	}
	e.finish(ctx, r)
	if fn != nil {
		fn(e, r.it)
	}
}

func (e *Event) stopTimerLocked() {
	if e.timer != nil {
		e.timer.Stop()
		e.timer = nil
	}
}

// Wait blocks until the running iteration stops or ctx is done. It returns at
// once when nothing is running.
func (e *Event) Wait(ctx context.Context) error {
	e.mu.Lock()
	done := e.done
	e.mu.Unlock()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (e *Event) Iterations() []Iteration {
	e.mu.Lock()
	defer e.mu.Unlock()

	out := make([]Iteration, len(e.iterations))
	copy(out, e.iterations)
	return out
}

func (e *Event) IterationCount() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.iterations)
}

// AverageDuration is false until an iteration has completed.
func (e *Event) AverageDuration() (time.Duration, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if len(e.iterations) == 0 {
		return 0, false
	}
	var total time.Duration
	for _, it := range e.iterations {
		total += it.Duration()
	}
	return total / time.Duration(len(e.iterations)), true
}

func heapAlloc() uint64 {
	var ms runtime.MemStats
	runtime.ReadMemStats(&ms)
	return ms.HeapAlloc
}
