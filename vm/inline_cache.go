package vm

import (
	"fmt"
	"sync"
)

// Inline caching for virtual call sites.
//
// A call site remembers which descriptor each receiver class resolved to.
// Caches hold descriptors, never entries, so a hook installed after a
// lookup was cached is still observed on the very next call. Caches are
// flushed when the VM epoch changes (Compact bumps it).

// CacheState represents the current state of an inline cache.
type CacheState uint8

const (
	CacheEmpty       CacheState = iota // No cached lookup yet
	CacheMonomorphic                   // Single (class, method) cached
	CachePolymorphic                   // 2-6 entries
	CacheMegamorphic                   // Too many classes, use full lookup
)

// MaxPICEntries is the maximum number of entries in a polymorphic inline cache.
const MaxPICEntries = 6

// InlineCacheEntry holds a single cached method lookup result.
type InlineCacheEntry struct {
	Class  *Class
	Method *Method
}

// InlineCache is the cache state for a single call site. It progresses
// Empty -> Monomorphic -> Polymorphic -> Megamorphic. Not safe for
// concurrent use on its own; CallSite serializes access.
type InlineCache struct {
	State   CacheState
	Entries [MaxPICEntries]InlineCacheEntry
	Count   int

	Hits   uint64
	Misses uint64
}

// Lookup checks the cache for a method matching the given class.
// Returns the cached method on hit, nil on miss.
func (ic *InlineCache) Lookup(class *Class) *Method {
	switch ic.State {
	case CacheMonomorphic, CachePolymorphic:
		for i := 0; i < ic.Count; i++ {
			if ic.Entries[i].Class == class {
				ic.Hits++
				return ic.Entries[i].Method
			}
		}
	case CacheMegamorphic, CacheEmpty:
	}
	ic.Misses++
	return nil
}

// Update records a new (class, method) pair, potentially upgrading the cache state.
func (ic *InlineCache) Update(class *Class, method *Method) {
	if method == nil {
		return
	}
	switch ic.State {
	case CacheEmpty:
		ic.State = CacheMonomorphic
		ic.Entries[0] = InlineCacheEntry{Class: class, Method: method}
		ic.Count = 1

	case CacheMonomorphic, CachePolymorphic:
		for i := 0; i < ic.Count; i++ {
			if ic.Entries[i].Class == class {
				return
			}
		}
		if ic.Count < MaxPICEntries {
			ic.Entries[ic.Count] = InlineCacheEntry{Class: class, Method: method}
			ic.Count++
			ic.State = CachePolymorphic
		} else {
			ic.State = CacheMegamorphic
			ic.Entries = [MaxPICEntries]InlineCacheEntry{}
			ic.Count = 0
		}

	case CacheMegamorphic:
	}
}

// Reset clears the cache back to the empty state, keeping statistics.
func (ic *InlineCache) Reset() {
	ic.State = CacheEmpty
	ic.Entries = [MaxPICEntries]InlineCacheEntry{}
	ic.Count = 0
}

// HitRate returns the cache hit rate as a percentage (0-100).
func (ic *InlineCache) HitRate() float64 {
	total := ic.Hits + ic.Misses
	if total == 0 {
		return 0
	}
	return float64(ic.Hits) / float64(total) * 100
}

// ---------------------------------------------------------------------------
// CallSite: a virtual call through an inline cache
// ---------------------------------------------------------------------------

// CallSite performs virtual dispatch of one selector on whatever receiver
// it is given, caching the resolution per receiver class.
type CallSite struct {
	vm       *VM
	key      string
	selector int

	mu    sync.Mutex
	cache InlineCache
	epoch uint64
}

// NewCallSite creates a call site for the instance selector name(params).
func (v *VM) NewCallSite(name string, params ...Type) *CallSite {
	key := SelectorKey(name, params...)
	return &CallSite{vm: v, key: key, selector: v.Selectors.Intern(key)}
}

// Resolve returns the descriptor the receiver's class dispatches to.
func (s *CallSite) Resolve(receiver Value) (*Method, error) {
	class := s.vm.ClassOf(receiver)
	if class == nil {
		return nil, fmt.Errorf("%s: %w", s.key, ErrNilReceiver)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if epoch := s.vm.epoch.Load(); epoch != s.epoch {
		s.cache.Reset()
		s.epoch = epoch
	}
	if m := s.cache.Lookup(class); m != nil {
		return m, nil
	}
	m := class.resolve(s.selector)
	if m == nil {
		return nil, fmt.Errorf("%s does not understand %s: %w", class, s.key, ErrNoSuchMethod)
	}
	s.cache.Update(class, m)
	return m, nil
}

// Call dispatches on receiver and invokes the resolved method.
func (s *CallSite) Call(receiver Value, args ...Value) (Value, error) {
	m, err := s.Resolve(receiver)
	if err != nil {
		return Nil, err
	}
	full := make([]Value, 0, len(args)+1)
	full = append(full, receiver)
	full = append(full, args...)
	return m.Call(full)
}

// Stats returns a snapshot of the cache state and hit counters.
func (s *CallSite) Stats() (state CacheState, hits, misses uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cache.State, s.cache.Hits, s.cache.Misses
}
