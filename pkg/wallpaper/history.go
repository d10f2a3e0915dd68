package wallpaper

import (
	"errors"
	"fmt"
	"os"
	"sync"
	"sync/atomic"

	"github.com/dixieflatline76/Easel/pkg/provider"
	"github.com/dixieflatline76/Easel/util/fsutil"
	"github.com/dixieflatline76/Easel/util/log"
)

// historySnapshot is immutable once published.
type historySnapshot struct {
	entries []provider.Metadata // newest first
	index   map[string]struct{}
}

func newHistorySnapshot(entries []provider.Metadata) *historySnapshot {
	index := make(map[string]struct{}, len(entries))
	for _, e := range entries {
		index[e.Key()] = struct{}{}
	}
	return &historySnapshot{entries: entries, index: index}
}

// HistoryLedger is the bounded, newest-first record of shown artworks backed by
// history.json. Reads use an atomically published snapshot and never block;
// writers are serialized and persist before publishing.
type HistoryLedger struct {
	path       string
	maxEntries int

	mu   sync.Mutex
	snap atomic.Pointer[historySnapshot]
}

// NewHistoryLedger loads the ledger at path. A missing file starts empty; a corrupt
// file is logged and replaced by an empty ledger.
func NewHistoryLedger(path string, maxEntries int) *HistoryLedger {
	h := &HistoryLedger{path: path, maxEntries: maxEntries}

	var entries []provider.Metadata
	if err := fsutil.ReadJSON(path, &entries); err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			log.Printf("History: %v: %v, starting empty", provider.ErrStateCorrupt, err)
		}
		entries = nil
	}
	if len(entries) > maxEntries {
		entries = entries[:maxEntries]
	}
	h.snap.Store(newHistorySnapshot(entries))
	return h
}

// IsKnown reports whether the identity key is in the ledger.
func (h *HistoryLedger) IsKnown(key string) bool {
	_, ok := h.snap.Load().index[key]
	return ok
}

// Len returns the number of entries.
func (h *HistoryLedger) Len() int {
	return len(h.snap.Load().entries)
}

// MostRecent returns up to n entries, newest first.
func (h *HistoryLedger) MostRecent(n int) []provider.Metadata {
	entries := h.snap.Load().entries
	if n > len(entries) {
		n = len(entries)
	}
	if n <= 0 {
		return nil
	}
	out := make([]provider.Metadata, n)
	copy(out, entries[:n])
	return out
}

// RecordShown prepends meta (moving an existing entry with the same key to the
// front) and truncates to the capacity.
func (h *HistoryLedger) RecordShown(meta provider.Metadata) error {
	return h.mutate(func(entries []provider.Metadata) []provider.Metadata {
		key := meta.Key()
		next := make([]provider.Metadata, 0, len(entries)+1)
		next = append(next, meta)
		for _, e := range entries {
			if e.Key() != key {
				next = append(next, e)
			}
		}
		if len(next) > h.maxEntries {
			next = next[:h.maxEntries]
		}
		return next
	})
}

// TrimTo keeps only the n newest entries.
func (h *HistoryLedger) TrimTo(n int) error {
	if n < 0 {
		n = 0
	}
	return h.mutate(func(entries []provider.Metadata) []provider.Metadata {
		if len(entries) <= n {
			return entries
		}
		return append([]provider.Metadata(nil), entries[:n]...)
	})
}

// ResetSource forgets every entry of one source. It is used when a source's catalog
// is exhausted so that it may repeat again. It returns the number of removed entries.
func (h *HistoryLedger) ResetSource(source string) (int, error) {
	removed := 0
	err := h.mutate(func(entries []provider.Metadata) []provider.Metadata {
		next := make([]provider.Metadata, 0, len(entries))
		for _, e := range entries {
			if e.Source == source {
				removed++
				continue
			}
			next = append(next, e)
		}
		return next
	})
	if err != nil {
		return 0, err
	}
	log.Printf("History: reset %d entries of %s", removed, source)
	return removed, nil
}

func (h *HistoryLedger) mutate(fn func([]provider.Metadata) []provider.Metadata) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	next := fn(h.snap.Load().entries)
	if next == nil {
		next = []provider.Metadata{}
	}
	if err := fsutil.WriteJSON(h.path, next); err != nil {
		return fmt.Errorf("%w: write history: %v", provider.ErrStorage, err)
	}
	h.snap.Store(newHistorySnapshot(next))
	return nil
}
