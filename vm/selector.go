package vm

import "sync"

// SelectorTable interns selector keys to numeric IDs for fast lookup.
//
// A selector key is a method name followed by its parameter signature,
// e.g. "normalMethod(String,int,long)", so overloads get distinct IDs.
// The table is append-only and safe for concurrent use.
type SelectorTable struct {
	mu     sync.RWMutex
	byName map[string]int
	byID   []string
}

// NewSelectorTable creates a new empty selector table.
func NewSelectorTable() *SelectorTable {
	return &SelectorTable{
		byName: make(map[string]int),
		byID:   make([]string, 0, 64),
	}
}

// SelectorKey builds the selector key for a name and parameter list.
func SelectorKey(name string, params ...Type) string {
	return name + signature(params)
}

// Intern returns the ID for a selector key, creating a new ID if needed.
func (st *SelectorTable) Intern(key string) int {
	st.mu.RLock()
	if id, ok := st.byName[key]; ok {
		st.mu.RUnlock()
		return id
	}
	st.mu.RUnlock()

	st.mu.Lock()
	defer st.mu.Unlock()

	// Double-check after acquiring write lock
	if id, ok := st.byName[key]; ok {
		return id
	}
	id := len(st.byID)
	st.byName[key] = id
	st.byID = append(st.byID, key)
	return id
}

// Lookup returns the ID for a selector key, or -1 if not found.
func (st *SelectorTable) Lookup(key string) int {
	st.mu.RLock()
	defer st.mu.RUnlock()
	if id, ok := st.byName[key]; ok {
		return id
	}
	return -1
}

// Name returns the selector key for an ID, or "" if invalid.
func (st *SelectorTable) Name(id int) string {
	st.mu.RLock()
	defer st.mu.RUnlock()
	if id < 0 || id >= len(st.byID) {
		return ""
	}
	return st.byID[id]
}

// Len returns the number of interned selectors.
func (st *SelectorTable) Len() int {
	st.mu.RLock()
	defer st.mu.RUnlock()
	return len(st.byID)
}
