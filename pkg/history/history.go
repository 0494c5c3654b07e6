// Package history keeps a bounded, in-memory log of daily simulation stats.
package history

import (
	"container/list"
	"sync"
	"time"

	"github.com/ryandielhenn/seirnet/pkg/seir"
)

type entry struct {
	stats    seir.Stats
	elapsed  time.Duration
	recorded time.Time
}

// Record is one logged day.
type Record struct {
	seir.Stats
	ElapsedMicros int64     `json:"elapsed_us"`
	RecordedAt    time.Time `json:"recorded_at"`
}

// Log holds the most recent days, evicting the oldest once cap is reached.
// Re-recording a day replaces the earlier record for it.
type Log struct {
	mu   sync.RWMutex
	days map[int]*list.Element
	ll   *list.List // front is newest
	cap  int
	now  func() time.Time
}

func New(capacity int) *Log {
	if capacity <= 0 {
		capacity = 1
	}
	return &Log{
		days: make(map[int]*list.Element),
		ll:   list.New(),
		cap:  capacity,
		now:  time.Now,
	}
}

// ObserveDay records st. It lets a Log be attached to a seir.Simulator.
func (l *Log) ObserveDay(st seir.Stats, elapsed time.Duration) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if el, ok := l.days[st.Day]; ok {
		e := el.Value.(*entry)
		e.stats = st
		e.elapsed = elapsed
		e.recorded = l.now()
		l.ll.MoveToFront(el)
	} else {
		e := &entry{stats: st, elapsed: elapsed, recorded: l.now()}
		l.days[st.Day] = l.ll.PushFront(e)
	}
	l.evictIfNeeded()
}

// Get returns the record for day.
func (l *Log) Get(day int) (Record, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	el, ok := l.days[day]
	if !ok {
		return Record{}, false
	}
	return el.Value.(*entry).record(), true
}

// Recent returns up to n records, oldest first. n <= 0 returns everything.
func (l *Log) Recent(n int) []Record {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if n <= 0 || n > l.ll.Len() {
		n = l.ll.Len()
	}
	out := make([]Record, n)
	el := l.ll.Front()
	for i := n - 1; i >= 0; i-- {
		out[i] = el.Value.(*entry).record()
		el = el.Next()
	}
	return out
}

// Latest returns the most recently recorded day.
func (l *Log) Latest() (Record, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if el := l.ll.Front(); el != nil {
		return el.Value.(*entry).record(), true
	}
	return Record{}, false
}

// Clear drops every record.
func (l *Log) Clear() {
	l.mu.Lock()
	defer l.mu.Unlock()
	clear(l.days)
	l.ll.Init()
}

func (l *Log) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.days)
}

func (l *Log) evictIfNeeded() {
	for l.ll.Len() > l.cap {
		el := l.ll.Back()
		delete(l.days, el.Value.(*entry).stats.Day)
		l.ll.Remove(el)
	}
}

func (e *entry) record() Record {
	return Record{Stats: e.stats, ElapsedMicros: e.elapsed.Microseconds(), RecordedAt: e.recorded}
}
