// Package convmem holds the process-local conversation memory: a bounded
// per-(project, day) window of lightweight message records. It is a cache
// over durable chat history, rebuilt on restart, and owned by the
// application context rather than package-level state.
package convmem

import (
	"fmt"
	"sort"
	"sync"
)

// MaxEntriesPerDay bounds each (project, day) list. Inserts beyond the
// bound drop the oldest entries first.
const MaxEntriesPerDay = 50

// Entry is one remembered message.
type Entry struct {
	SenderID   string `json:"senderId"`
	SenderName string `json:"senderName"`
	SenderType string `json:"senderType"`
	Content    string `json:"content"`
	Timestamp  int64  `json:"timestamp"`
}

// Memory is the in-process conversation cache. Safe for concurrent use.
type Memory struct {
	mu   sync.RWMutex
	days map[string][]Entry // key: projectID "#" day
}

// New creates an empty conversation memory.
func New() *Memory {
	return &Memory{days: make(map[string][]Entry)}
}

func key(projectID string, day int) string {
	return fmt.Sprintf("%s#%d", projectID, day)
}

// Record appends an entry to the (project, day) window, trimming to the
// bound FIFO. Insertion order is preserved among the retained tail.
func (m *Memory) Record(projectID string, day int, e Entry) {
	m.mu.Lock()
	defer m.mu.Unlock()
	k := key(projectID, day)
	list := append(m.days[k], e)
	if len(list) > MaxEntriesPerDay {
		list = list[len(list)-MaxEntriesPerDay:]
	}
	m.days[k] = list
}

// History returns up to limit of the most recent entries for the day, in
// original chronological order. limit <= 0 returns the whole window.
func (m *Memory) History(projectID string, day, limit int) []Entry {
	m.mu.RLock()
	defer m.mu.RUnlock()
	list := m.days[key(projectID, day)]
	if limit > 0 && len(list) > limit {
		list = list[len(list)-limit:]
	}
	out := make([]Entry, len(list))
	copy(out, list)
	return out
}

// DayEntry tags an entry with the project day it belongs to.
type DayEntry struct {
	Day int
	Entry
}

// PriorDays returns up to limit entries from days strictly before
// currentDay, oldest dropped first, each tagged with its day number.
func (m *Memory) PriorDays(projectID string, currentDay, limit int) []DayEntry {
	m.mu.RLock()
	var all []DayEntry
	for day := 1; day < currentDay; day++ {
		for _, e := range m.days[key(projectID, day)] {
			all = append(all, DayEntry{Day: day, Entry: e})
		}
	}
	m.mu.RUnlock()

	sort.SliceStable(all, func(i, j int) bool {
		if all[i].Day != all[j].Day {
			return all[i].Day < all[j].Day
		}
		return all[i].Timestamp < all[j].Timestamp
	})
	if limit > 0 && len(all) > limit {
		all = all[len(all)-limit:]
	}
	return all
}

// Reset drops all cached entries. Test/teardown hook.
func (m *Memory) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.days = make(map[string][]Entry)
}
