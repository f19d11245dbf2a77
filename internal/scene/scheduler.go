package scene

import (
	"math/rand/v2"
)

// SeenStore persists the set of scene ids the device has already shown.
// Implementations are expected to fail open: a read error is reported as an
// empty set so scheduling keeps working with repeats at worst.
type SeenStore interface {
	Load() []string
	Save(ids []string)
	Clear()
}

// Scheduler selects the next scene without repetition until the catalog is
// exhausted, then resets the seen set and starts over.
type Scheduler struct {
	catalog []Scene
	seen    SeenStore
}

// NewScheduler creates a Scheduler over catalog. Pass scene.Catalog for the
// production set; tests use smaller catalogs.
func NewScheduler(catalog []Scene, seen SeenStore) *Scheduler {
	return &Scheduler{catalog: catalog, seen: seen}
}

// InitialScene returns the deterministic cold-start scene: the catalog's
// first entry when nothing has been seen yet, otherwise the next unseen one.
func (s *Scheduler) InitialScene() Scene {
	if len(s.seen.Load()) == 0 {
		return s.catalog[0]
	}
	return s.NextScene("")
}

// NextScene returns a uniformly random unseen scene. When every scene has
// been seen the seen set is cleared and a scene other than currentID is
// chosen (the full catalog if currentID is empty or unknown).
func (s *Scheduler) NextScene(currentID string) Scene {
	seen := make(map[string]bool)
	for _, id := range s.seen.Load() {
		seen[id] = true
	}

	var unseen []Scene
	for _, sc := range s.catalog {
		if !seen[sc.ID] {
			unseen = append(unseen, sc)
		}
	}

	if len(unseen) > 0 {
		return unseen[rand.IntN(len(unseen))]
	}

	// Pool exhausted: reset and avoid showing the current scene twice in a row.
	s.seen.Clear()
	candidates := s.catalog
	if currentID != "" && len(s.catalog) > 1 {
		filtered := make([]Scene, 0, len(s.catalog)-1)
		for _, sc := range s.catalog {
			if sc.ID != currentID {
				filtered = append(filtered, sc)
			}
		}
		candidates = filtered
	}
	return candidates[rand.IntN(len(candidates))]
}

// MarkSeen idempotently adds id to the seen set and persists it.
func (s *Scheduler) MarkSeen(id string) {
	ids := s.seen.Load()
	for _, existing := range ids {
		if existing == id {
			return
		}
	}
	s.seen.Save(append(ids, id))
}

// Reset clears the seen set.
func (s *Scheduler) Reset() {
	s.seen.Clear()
}
