package store

import (
	"sort"
	"sync"

	"marketsnap/internal/snapshot"
)

// Persistence is the injected durable-storage capability. The format
// behind Load/Save is opaque to the store; it only requires round-trip
// fidelity of the symbol→history mapping.
type Persistence interface {
	Load() (map[string][]snapshot.Snapshot, error)
	Save(map[string][]snapshot.Snapshot) error
}

// Store keeps per-symbol snapshot histories sorted descending by asOf.
// The mutex guards the maps against torn reads; serializing concurrent
// upserts for the same symbol remains the caller's job (single writer per
// symbol).
type Store struct {
	mu        sync.RWMutex
	histories map[string][]snapshot.Snapshot
}

func New() *Store {
	return &Store{histories: make(map[string][]snapshot.Snapshot)}
}

// Load builds a store from the persistence capability. Histories are
// re-sorted on the way in; the on-disk order is not trusted.
func Load(p Persistence) (*Store, error) {
	m, err := p.Load()
	if err != nil {
		return nil, err
	}
	s := New()
	for sym, hist := range m {
		sortHistory(hist)
		s.histories[sym] = hist
	}
	return s, nil
}

// Upsert inserts snap into the symbol's history, replacing the whole
// record when an entry with the same asOf already exists. The history
// stays sorted descending by asOf; ISO dates make string comparison exact.
func (s *Store) Upsert(symbol string, snap snapshot.Snapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()

	hist := s.histories[symbol]
	replaced := false
	for i := range hist {
		if hist[i].AsOf == snap.AsOf {
			hist[i] = snap
			replaced = true
			break
		}
	}
	if !replaced {
		hist = append(hist, snap)
	}
	sortHistory(hist)
	s.histories[symbol] = hist
}

// Latest returns the newest snapshot for symbol.
func (s *Store) Latest(symbol string) (snapshot.Snapshot, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	hist := s.histories[symbol]
	if len(hist) == 0 {
		return snapshot.Snapshot{}, false
	}
	return hist[0], true
}

// At returns the snapshot captured on the exact asOf date. There is no
// silent fallback to a nearby date; the caller decides what "previous"
// means when no explicit baseline is selected.
func (s *Store) At(symbol, asOf string) (snapshot.Snapshot, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, snap := range s.histories[symbol] {
		if snap.AsOf == asOf {
			return snap, true
		}
	}
	return snapshot.Snapshot{}, false
}

// History returns a copy of the symbol's history, newest first.
func (s *Store) History(symbol string) []snapshot.Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	hist := s.histories[symbol]
	out := make([]snapshot.Snapshot, len(hist))
	copy(out, hist)
	return out
}

// Clear resets the symbol's history to empty. The key survives; clearing
// is not deletion, and the symbol can be repopulated by later upserts.
func (s *Store) Clear(symbol string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.histories[symbol] = nil
}

// Export returns a deep-enough copy of the full mapping for Save.
func (s *Store) Export() map[string][]snapshot.Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string][]snapshot.Snapshot, len(s.histories))
	for sym, hist := range s.histories {
		cp := make([]snapshot.Snapshot, len(hist))
		copy(cp, hist)
		out[sym] = cp
	}
	return out
}

// Persist writes the current state through the persistence capability.
func (s *Store) Persist(p Persistence) error {
	return p.Save(s.Export())
}

func sortHistory(hist []snapshot.Snapshot) {
	sort.Slice(hist, func(i, j int) bool { return hist[i].AsOf > hist[j].AsOf })
}
