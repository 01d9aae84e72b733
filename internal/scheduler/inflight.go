package scheduler

import "sync"

// InFlight is the per-target concurrency guard: at most one check per
// target id may run at a time. It is injected into the Scheduler so
// tests can observe and pre-load it.
type InFlight struct {
	mu  sync.Mutex
	ids map[int64]struct{}
}

func NewInFlight() *InFlight {
	return &InFlight{ids: make(map[int64]struct{})}
}

// TryAcquire marks the target busy and reports whether it was free.
func (f *InFlight) TryAcquire(id int64) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, busy := f.ids[id]; busy {
		return false
	}
	f.ids[id] = struct{}{}
	return true
}

// Release frees the target; called on completion, success or failure.
func (f *InFlight) Release(id int64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.ids, id)
}

func (f *InFlight) Busy(id int64) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, busy := f.ids[id]
	return busy
}
