package quota

import (
	"sync"
	"time"
)

// MemoryCounter tracks anonymous exports per guest key for the current
// calendar month. It is process local and resets on restart.
type MemoryCounter struct {
	mu     sync.Mutex
	limit  int
	used   map[string]int
	period string
	now    func() time.Time
}

func NewMemoryCounter(limit int) *MemoryCounter {
	if limit <= 0 {
		limit = AnonymousExports
	}
	return &MemoryCounter{limit: limit, used: make(map[string]int), now: time.Now}
}

func (m *MemoryCounter) Limit() int {
	return m.limit
}

func (m *MemoryCounter) Remaining(key string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rollLocked()
	return max(m.limit-m.used[key], 0)
}

// Use consumes one export for key. It returns false and changes nothing
// once the limit is reached.
func (m *MemoryCounter) Use(key string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rollLocked()
	if m.used[key] >= m.limit {
		return false
	}
	m.used[key]++
	return true
}

// rollLocked drops every counter when the month changes.
func (m *MemoryCounter) rollLocked() {
	period := m.now().UTC().Format("2006-01")
	if period == m.period {
		return
	}
	m.period = period
	clear(m.used)
}
