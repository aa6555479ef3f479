package events

import "sync"

// Recorder is an Emitter that retains the most recent events in memory so
// observers (RPC, tests) can read them back in emission order.
type Recorder struct {
	mu     sync.RWMutex
	buf    []Event
	limit  int
	offset uint64
}

const defaultRecorderLimit = 1024

// NewRecorder constructs a recorder that keeps up to limit events. A
// non-positive limit falls back to the default capacity.
func NewRecorder(limit int) *Recorder {
	if limit <= 0 {
		limit = defaultRecorderLimit
	}
	return &Recorder{limit: limit}
}

// Emit implements the Emitter interface.
func (r *Recorder) Emit(evt Event) {
	if r == nil || evt == nil {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.buf = append(r.buf, evt)
	if len(r.buf) > r.limit {
		drop := len(r.buf) - r.limit
		r.buf = append(r.buf[:0:0], r.buf[drop:]...)
		r.offset += uint64(drop)
	}
}

// Recent returns up to n of the most recently emitted events, oldest first.
func (r *Recorder) Recent(n int) []Event {
	if r == nil {
		return nil
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	if n <= 0 || n > len(r.buf) {
		n = len(r.buf)
	}
	out := make([]Event, n)
	copy(out, r.buf[len(r.buf)-n:])
	return out
}

// Len reports how many events are currently retained.
func (r *Recorder) Len() int {
	if r == nil {
		return 0
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.buf)
}
