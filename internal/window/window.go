// Package window provides the bounded, time-evicting activity log every
// detector builds on. Keys are namespaced by their owning detector
// (e.g. "spam:{guild}:{user}"); entries within one key keep insertion
// order, which is also temporal order since recorders always append with
// non-decreasing timestamps.
package window

import (
	"sync"
)

type Entry struct {
	At      int64 // unix ms
	Payload string
}

type Window struct {
	mu      sync.Mutex
	entries map[string][]Entry
}

func New() *Window {
	return &Window{
		entries: make(map[string][]Entry),
	}
}

// Record appends an entry and prunes the key against maxAgeMs. Pruning on
// every write keeps a hot key bounded even if the periodic sweep is late.
func (w *Window) Record(key string, at int64, payload string, maxAgeMs int64) {
	w.mu.Lock()
	defer w.mu.Unlock()

	pruned := pruneOlder(w.entries[key], at-maxAgeMs)
	w.entries[key] = append(pruned, Entry{At: at, Payload: payload})
}

// CountSince returns the number of entries within the trailing horizon.
// Entries older than now-horizonMs are discarded first, never counted.
func (w *Window) CountSince(key string, horizonMs, now int64) int {
	w.mu.Lock()
	defer w.mu.Unlock()

	kept := pruneOlder(w.entries[key], now-horizonMs)
	w.storeOrDelete(key, kept)
	return len(kept)
}

// EntriesSince returns a copy of the entries within the trailing horizon,
// oldest first.
func (w *Window) EntriesSince(key string, horizonMs, now int64) []Entry {
	w.mu.Lock()
	defer w.mu.Unlock()

	kept := pruneOlder(w.entries[key], now-horizonMs)
	w.storeOrDelete(key, kept)

	out := make([]Entry, len(kept))
	copy(out, kept)
	return out
}

// Evict drops entries older than the horizon without reading them.
func (w *Window) Evict(key string, horizonMs, now int64) {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.storeOrDelete(key, pruneOlder(w.entries[key], now-horizonMs))
}

// Clear removes a key entirely.
func (w *Window) Clear(key string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	delete(w.entries, key)
}

// SweepAll is the periodic garbage collection pass: every key is pruned
// against maxAgeMs and empty keys are removed. Runs on a timer independent
// of request traffic; the live event path still prunes on its own.
func (w *Window) SweepAll(maxAgeMs, now int64) {
	w.mu.Lock()
	defer w.mu.Unlock()

	cutoff := now - maxAgeMs
	for key, entries := range w.entries {
		kept := pruneOlder(entries, cutoff)
		if len(kept) == 0 {
			delete(w.entries, key)
		} else {
			w.entries[key] = kept
		}
	}
}

// KeyCount reports how many keys are live, for health reporting.
func (w *Window) KeyCount() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.entries)
}

func (w *Window) storeOrDelete(key string, kept []Entry) {
	if len(kept) == 0 {
		delete(w.entries, key)
	} else {
		w.entries[key] = kept
	}
}

// pruneOlder drops leading entries with At < cutoff. Entries are in
// non-decreasing time order, so the scan stops at the first survivor;
// cost is proportional to what gets evicted plus what remains.
func pruneOlder(entries []Entry, cutoff int64) []Entry {
	i := 0
	for i < len(entries) && entries[i].At < cutoff {
		i++
	}
	if i == 0 {
		return entries
	}
	kept := make([]Entry, len(entries)-i)
	copy(kept, entries[i:])
	return kept
}
