package core

import (
	"fmt"
	"sync"
)

// DefaultLogBufferSize bounds the in-memory log ring.
const DefaultLogBufferSize = 500

// LogBuffer is a bounded ring of recent log entries. It implements LogSink
// and feeds the dashboard log view and the log.tail control op. When full,
// the oldest entry is dropped.
type LogBuffer struct {
	mu      sync.Mutex
	entries []LogEntry
	max     int
	notify  chan struct{} // capacity 1, coalesced wakeup
}

// NewLogBuffer creates a buffer holding up to max entries.
// A max of zero or less falls back to DefaultLogBufferSize.
func NewLogBuffer(max int) *LogBuffer {
	if max <= 0 {
		max = DefaultLogBufferSize
	}
	return &LogBuffer{
		max:    max,
		notify: make(chan struct{}, 1),
	}
}

// WriteEntry implements LogSink.
func (b *LogBuffer) WriteEntry(e LogEntry) {
	b.mu.Lock()
	b.entries = append(b.entries, e)
	if len(b.entries) > b.max {
		b.entries = b.entries[len(b.entries)-b.max:]
	}
	b.mu.Unlock()

	select {
	case b.notify <- struct{}{}:
	default:
	}
}

// Tail returns up to n most recent entries, oldest first.
// n of zero or less returns everything buffered.
func (b *LogBuffer) Tail(n int) []LogEntry {
	b.mu.Lock()
	defer b.mu.Unlock()
	if n <= 0 || n > len(b.entries) {
		n = len(b.entries)
	}
	out := make([]LogEntry, n)
	copy(out, b.entries[len(b.entries)-n:])
	return out
}

// Wait returns a channel that receives a coalesced signal whenever new
// entries arrive. Readers re-Tail after each signal.
func (b *LogBuffer) Wait() <-chan struct{} {
	return b.notify
}

// FormatEntry renders an entry the way the console sink does, with a
// short timestamp. Used by the dashboard and log.tail output.
func FormatEntry(e LogEntry) string {
	return fmt.Sprintf("%s %-5s [%s] %s", e.Time.Format("15:04:05"), e.Level, e.Component, e.Message)
}
