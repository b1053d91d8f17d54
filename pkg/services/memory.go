package services

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/ekaya-inc/ekaya-sqlagent/pkg/metrics"
	"github.com/ekaya-inc/ekaya-sqlagent/pkg/models"
)

const (
	// DefaultMemorySize is the number of runs kept when the config leaves it unset.
	DefaultMemorySize = 10
	// MemoryPromptEntries is how many recent runs the generation prompt shows.
	MemoryPromptEntries = 5
)

// Memory is the bounded window of finished runs for one agent. The oldest
// entry is evicted once the window is full.
type Memory struct {
	mu      sync.RWMutex
	entries []models.MemoryEntry
	size    int
	now     func() time.Time
}

// NewMemory creates a memory holding at most size entries.
func NewMemory(size int) *Memory {
	if size <= 0 {
		size = DefaultMemorySize
	}
	return &Memory{
		entries: make([]models.MemoryEntry, 0, size),
		size:    size,
		now:     time.Now,
	}
}

// Add appends an entry, filling in ID and Timestamp when unset.
func (m *Memory) Add(entry models.MemoryEntry) models.MemoryEntry {
	if entry.ID == uuid.Nil {
		entry.ID = uuid.New()
	}
	if entry.Timestamp.IsZero() {
		entry.Timestamp = m.now().UTC()
	}

	m.mu.Lock()
	if len(m.entries) == m.size {
		copy(m.entries, m.entries[1:])
		m.entries = m.entries[:m.size-1]
	}
	m.entries = append(m.entries, entry)
	n := len(m.entries)
	m.mu.Unlock()

	metrics.SetMemoryEntries(n)
	return entry
}

// Entries returns a copy of every entry, oldest first.
func (m *Memory) Entries() []models.MemoryEntry {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]models.MemoryEntry(nil), m.entries...)
}

// Recent returns up to n of the newest entries, oldest first.
func (m *Memory) Recent(n int) []models.MemoryEntry {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if n <= 0 {
		return nil
	}
	if n > len(m.entries) {
		n = len(m.entries)
	}
	return append([]models.MemoryEntry(nil), m.entries[len(m.entries)-n:]...)
}

// RecentSQL returns the final SQL of up to n newest entries that have one.
func (m *Memory) RecentSQL(n int) []string {
	var out []string
	for _, e := range m.Recent(n) {
		if e.FinalSQL != "" {
			out = append(out, e.FinalSQL)
		}
	}
	return out
}

// Len returns the number of stored entries.
func (m *Memory) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.entries)
}

// Size returns the capacity.
func (m *Memory) Size() int {
	return m.size
}

// Clear drops every entry.
func (m *Memory) Clear() {
	m.mu.Lock()
	m.entries = m.entries[:0]
	m.mu.Unlock()
	metrics.SetMemoryEntries(0)
}

// PromptContext renders the newest entries for the generation prompt.
// It returns "" while the memory is empty.
func (m *Memory) PromptContext() string {
	recent := m.Recent(MemoryPromptEntries)
	if len(recent) == 0 {
		return ""
	}

	var b strings.Builder
	b.WriteString("## Recent Query History\n\n")
	for i, e := range recent {
		fmt.Fprintf(&b, "%d. Question: %s\n", i+1, e.NaturalLanguageQuery)
		if e.FinalSQL != "" {
			fmt.Fprintf(&b, "   SQL: %s\n", e.FinalSQL)
		}
		if e.Outcome == models.OutcomeSuccess {
			fmt.Fprintf(&b, "   Result: %d rows\n", e.RowCount)
		} else {
			fmt.Fprintf(&b, "   Error: %s\n", e.Error)
		}
	}
	return b.String()
}
