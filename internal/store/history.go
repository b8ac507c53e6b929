package store

import "github.com/wmstack/blueprintgo/internal/models"

// pushHistory appends a snapshot of the live map after a mutation. Redo
// state beyond the cursor is discarded, and the oldest snapshot is dropped
// once the depth cap is hit. Callers hold s.mu.
func (s *Store) pushHistory() {
	s.history = append(s.history[:s.cursor+1], s.snapshotLocked())
	if len(s.history) > s.maxDepth+1 {
		s.history = s.history[1:]
	}
	s.cursor = len(s.history) - 1
}

// Undo steps the store back one snapshot. It returns deep copies of the map
// before and after the step so the caller can diff them for remote
// resynchronization. ok is false when there is nothing to undo.
func (s *Store) Undo() (prev, curr map[string]*models.StorageEntity, ok bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cursor == 0 {
		return nil, nil, false
	}
	prev = s.snapshotLocked()
	s.cursor--
	s.restoreLocked(s.history[s.cursor])
	return prev, s.snapshotLocked(), true
}

// Redo steps the store forward one snapshot. Same contract as Undo.
func (s *Store) Redo() (prev, curr map[string]*models.StorageEntity, ok bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cursor >= len(s.history)-1 {
		return nil, nil, false
	}
	prev = s.snapshotLocked()
	s.cursor++
	s.restoreLocked(s.history[s.cursor])
	return prev, s.snapshotLocked(), true
}

// CanUndo reports whether an undo step is available.
func (s *Store) CanUndo() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cursor > 0
}

// CanRedo reports whether a redo step is available.
func (s *Store) CanRedo() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cursor < len(s.history)-1
}

// restoreLocked replaces the live map with a deep copy of the snapshot.
func (s *Store) restoreLocked(snap map[string]*models.StorageEntity) {
	s.entities = make(map[string]*models.StorageEntity, len(snap))
	for id, e := range snap {
		s.entities[id] = e.Clone()
	}
}
