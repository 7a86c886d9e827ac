package logging

import (
	"sync"
	"time"
)

// LogEntry is one record kept for the log stream.
type LogEntry struct {
	Seq        uint64         `json:"seq"`
	Timestamp  time.Time      `json:"timestamp"`
	Level      string         `json:"level"`
	Module     string         `json:"module"`
	Message    string         `json:"message"`
	Attributes map[string]any `json:"attributes,omitempty"`
}

// RingBuffer keeps the most recent entries. Entry n (1-based sequence) lives in slot
// (n-1) % capacity, so a reader that remembers the last sequence it saw can resume.
type RingBuffer struct {
	mu    sync.RWMutex
	slots []LogEntry
	seq   uint64
}

// NewRingBuffer creates a buffer holding up to size entries.
func NewRingBuffer(size int) *RingBuffer {
	return &RingBuffer{slots: make([]LogEntry, max(size, 1))}
}

// Write stores entry with the next sequence number and returns it.
func (rb *RingBuffer) Write(entry LogEntry) LogEntry {
	rb.mu.Lock()
	defer rb.mu.Unlock()

	rb.seq++
	entry.Seq = rb.seq
	rb.slots[rb.slot(rb.seq)] = entry
	return entry
}

// ReadAll returns the retained entries, oldest first.
func (rb *RingBuffer) ReadAll() []LogEntry {
	return rb.Since(0, "")
}

// Since returns retained entries with a sequence above seq, oldest first. A non-empty
// module keeps only that module's entries.
func (rb *RingBuffer) Since(seq uint64, module string) []LogEntry {
	rb.mu.RLock()
	defer rb.mu.RUnlock()

	first := rb.oldest()
	if seq+1 > first {
		first = seq + 1
	}
	var out []LogEntry
	for n := first; n <= rb.seq; n++ {
		e := rb.slots[rb.slot(n)]
		if module == "" || e.Module == module {
			out = append(out, e)
		}
	}
	return out
}

// Count returns the number of retained entries.
func (rb *RingBuffer) Count() int {
	rb.mu.RLock()
	defer rb.mu.RUnlock()
	return int(rb.seq - rb.oldest() + 1)
}

// LastSeq returns the sequence number of the newest entry, 0 if none was written.
func (rb *RingBuffer) LastSeq() uint64 {
	rb.mu.RLock()
	defer rb.mu.RUnlock()
	return rb.seq
}

func (rb *RingBuffer) slot(seq uint64) int {
	return int((seq - 1) % uint64(len(rb.slots)))
}

// oldest returns the sequence of the oldest retained entry. Callers hold mu.
func (rb *RingBuffer) oldest() uint64 {
	capacity := uint64(len(rb.slots))
	if rb.seq <= capacity {
		return 1
	}
	return rb.seq - capacity + 1
}
