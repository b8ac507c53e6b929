package store

import (
	"fmt"
	"sort"
	"sync"

	"github.com/wmstack/blueprintgo/internal/geometry"
	"github.com/wmstack/blueprintgo/internal/models"
)

// DefaultHistoryDepth caps the undo stack. Snapshots are full map copies,
// so the cap bounds memory by session length.
const DefaultHistoryDepth = 100

// Store is the working copy: the authoritative in-memory map of placed
// entities keyed by local id. All mutation goes through AddEntity,
// UpdateEntity and RemoveEntity; that single writer path is what makes the
// history snapshots and the undo/redo diff reliable.
type Store struct {
	mu       sync.RWMutex
	entities map[string]*models.StorageEntity

	// pending holds local ids with unpersisted local changes.
	pending map[string]struct{}

	history  []map[string]*models.StorageEntity
	cursor   int
	maxDepth int
}

// New creates an empty store. maxDepth <= 0 uses DefaultHistoryDepth.
func New(maxDepth int) *Store {
	if maxDepth <= 0 {
		maxDepth = DefaultHistoryDepth
	}
	return &Store{
		entities: make(map[string]*models.StorageEntity),
		pending:  make(map[string]struct{}),
		history:  []map[string]*models.StorageEntity{{}},
		cursor:   0,
		maxDepth: maxDepth,
	}
}

// AddEntity inserts a new entity and pushes a history snapshot.
func (s *Store) AddEntity(e *models.StorageEntity) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if e.LocalID == "" {
		return fmt.Errorf("entity has no local id")
	}
	if !e.BlockType.Valid() {
		return fmt.Errorf("unknown block type %q", e.BlockType)
	}
	if _, exists := s.entities[e.LocalID]; exists {
		return fmt.Errorf("entity %s already exists", e.LocalID)
	}
	if err := s.checkParent(e.LocalID, e.ParentID); err != nil {
		return err
	}

	stored := e.Clone()
	s.entities[stored.LocalID] = stored
	s.refreshPaths(stored.LocalID)
	s.pushHistory()
	return nil
}

// UpdateEntity replaces the stored entity with the same local id and pushes
// a history snapshot. Parent reassignment is checked for cycles.
func (s *Store) UpdateEntity(e *models.StorageEntity) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.entities[e.LocalID]; !exists {
		return fmt.Errorf("entity %s not found", e.LocalID)
	}
	if err := s.checkParent(e.LocalID, e.ParentID); err != nil {
		return err
	}

	stored := e.Clone()
	s.entities[stored.LocalID] = stored
	s.refreshPaths(stored.LocalID)
	s.pushHistory()
	return nil
}

// RemoveEntity soft-deletes the entity. The record stays in the map so undo
// can restore it.
func (s *Store) RemoveEntity(localID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, exists := s.entities[localID]
	if !exists {
		return fmt.Errorf("entity %s not found", localID)
	}
	if e.IsDeleted {
		return fmt.Errorf("entity %s is already deleted", localID)
	}
	c := e.Clone()
	c.IsDeleted = true
	s.entities[localID] = c
	s.pushHistory()
	return nil
}

// RollbackEntity reverts a refused optimistic commit: refused is the state
// the remote rejected, prev the entity as it was before the apply. The
// live map is restored only while it still carries the refused state; a
// newer commit to the same entity supersedes the failed one and stays.
// Either way the snapshot the optimistic apply pushed is excised and the
// refused state is patched out of any snapshot that embeds it, so a failed
// commit leaves no trace in the undo stack. Commits to other entities that
// landed in between keep their own snapshots.
func (s *Store) RollbackEntity(prev, refused *models.StorageEntity) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := prev.LocalID
	if live, ok := s.entities[id]; ok && !entityChanged(live, refused) {
		s.entities[id] = prev.Clone()
		s.refreshPaths(id)
	}

	// Locate the run of snapshots carrying the refused state; the first of
	// the run is the one the optimistic apply pushed.
	m := -1
	for i := len(s.history) - 1; i >= 0; i-- {
		if snapshotHolds(s.history[i], id, refused) {
			m = i
			break
		}
	}
	if m < 0 {
		return
	}
	k := m
	for k > 0 && snapshotHolds(s.history[k-1], id, refused) {
		k--
	}
	for i := k; i <= m; i++ {
		s.history[i][id] = prev.Clone()
	}
	if k == 0 {
		// The pre-mutation snapshot was evicted by the depth cap; the
		// patched baseline is all that remains.
		return
	}
	s.history = append(s.history[:k], s.history[k+1:]...)
	if s.cursor >= k {
		s.cursor--
	}
}

// snapshotHolds reports whether the snapshot carries exactly this state
// for the given entity.
func snapshotHolds(snap map[string]*models.StorageEntity, localID string, e *models.StorageEntity) bool {
	got, ok := snap[localID]
	return ok && !entityChanged(got, e)
}

// Reconcile upserts an entity pushed by the remote subscription feed. Feed
// echoes are remote-authoritative, not local edits, so no history snapshot
// is pushed and no pending mark is set.
func (s *Store) Reconcile(e *models.StorageEntity) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.entities[e.LocalID] = e.Clone()
	s.refreshPaths(e.LocalID)
	// Keep the current history snapshot in step so undo does not silently
	// revert remote state.
	s.history[s.cursor] = s.snapshotLocked()
}

// Get returns a copy of the entity with the given local id.
func (s *Store) Get(localID string) (*models.StorageEntity, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.entities[localID]
	if !ok {
		return nil, false
	}
	return e.Clone(), true
}

// GetByRemoteID returns a copy of the entity with the given remote id.
func (s *Store) GetByRemoteID(remoteID string) (*models.StorageEntity, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, e := range s.entities {
		if e.RemoteID == remoteID && remoteID != "" {
			return e.Clone(), true
		}
	}
	return nil, false
}

// Children returns copies of the direct non-deleted children of a node.
func (s *Store) Children(localID string) []*models.StorageEntity {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*models.StorageEntity
	for _, e := range s.entities {
		if e.ParentID == localID && !e.IsDeleted {
			out = append(out, e.Clone())
		}
	}
	sortEntities(out)
	return out
}

// ByBlockType returns copies of all non-deleted entities of one type.
func (s *Store) ByBlockType(bt models.BlockType) []*models.StorageEntity {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*models.StorageEntity
	for _, e := range s.entities {
		if e.BlockType == bt && !e.IsDeleted {
			out = append(out, e.Clone())
		}
	}
	sortEntities(out)
	return out
}

// All returns copies of every non-deleted entity.
func (s *Store) All() []*models.StorageEntity {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*models.StorageEntity
	for _, e := range s.entities {
		if !e.IsDeleted {
			out = append(out, e.Clone())
		}
	}
	sortEntities(out)
	return out
}

// Snapshot returns a deep copy of the whole map, deleted entities included.
func (s *Store) Snapshot() map[string]*models.StorageEntity {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snapshotLocked()
}

// WorldPosition resolves an entity's world-space position: its local
// position plus every ancestor's, recursively.
func (s *Store) WorldPosition(localID string) (models.Vec3, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.worldPositionLocked(localID)
}

func (s *Store) worldPositionLocked(localID string) (models.Vec3, error) {
	var pos models.Vec3
	id := localID
	for hops := 0; id != ""; hops++ {
		if hops > len(s.entities) {
			return pos, fmt.Errorf("ancestry of %s does not terminate", localID)
		}
		e, ok := s.entities[id]
		if !ok {
			return pos, fmt.Errorf("entity %s not found", id)
		}
		pos = pos.Add(e.Geometry.Position)
		id = e.ParentID
	}
	return pos, nil
}

// WorldAABB returns the entity's axis-aligned world-space footprint.
func (s *Store) WorldAABB(localID string) (geometry.AABB, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.entities[localID]
	if !ok {
		return geometry.AABB{}, fmt.Errorf("entity %s not found", localID)
	}
	pos, err := s.worldPositionLocked(localID)
	if err != nil {
		return geometry.AABB{}, err
	}
	return geometry.NewOBB(pos, e.Geometry.Dimensions, e.Geometry.Yaw).AABB(), nil
}

// ContainingBounds returns the world-space bounds of the nearest ancestor
// zone or floor, or def when the entity has no containing ancestor.
func (s *Store) ContainingBounds(localID string, def geometry.AABB) geometry.AABB {
	s.mu.RLock()
	defer s.mu.RUnlock()

	e, ok := s.entities[localID]
	if !ok {
		return def
	}
	id := e.ParentID
	for hops := 0; id != "" && hops <= len(s.entities); hops++ {
		p, ok := s.entities[id]
		if !ok {
			break
		}
		if (p.BlockType == models.BlockZone || p.BlockType == models.BlockFloor) && !p.IsDeleted {
			pos, err := s.worldPositionLocked(id)
			if err != nil {
				break
			}
			return geometry.NewOBB(pos, p.Geometry.Dimensions, p.Geometry.Yaw).AABB()
		}
		id = p.ParentID
	}
	return def
}

// Collidables returns grid entries for every non-deleted rack and obstacle,
// bounds in world space. This is the broad-phase rebuild input.
func (s *Store) Collidables() []geometry.GridEntry {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []geometry.GridEntry
	for id, e := range s.entities {
		if e.IsDeleted || !e.BlockType.Collidable() {
			continue
		}
		pos, err := s.worldPositionLocked(id)
		if err != nil {
			continue
		}
		out = append(out, geometry.GridEntry{
			ID:     id,
			Bounds: geometry.NewOBB(pos, e.Geometry.Dimensions, e.Geometry.Yaw).AABB(),
		})
	}
	return out
}

// MarkPending records a local id as having unpersisted changes.
func (s *Store) MarkPending(localID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pending[localID] = struct{}{}
}

// ClearPending removes the unpersisted mark.
func (s *Store) ClearPending(localID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.pending, localID)
}

// Pending returns the local ids with unpersisted changes, sorted.
func (s *Store) Pending() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]string, 0, len(s.pending))
	for id := range s.pending {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

// Dirty reports whether any unpersisted local change exists.
func (s *Store) Dirty() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.pending) > 0
}

// checkParent verifies the parent reference for localID: the parent must
// exist, must not be soft-deleted, and must not be localID itself or one of
// its descendants. Cycles are rejected here at assignment time because the
// id-linked tree cannot forbid them structurally.
func (s *Store) checkParent(localID, parentID string) error {
	if parentID == "" {
		return nil
	}
	if parentID == localID {
		return fmt.Errorf("entity %s cannot be its own parent", localID)
	}
	p, ok := s.entities[parentID]
	if !ok {
		return fmt.Errorf("parent %s not found", parentID)
	}
	if p.IsDeleted {
		return fmt.Errorf("parent %s is deleted", parentID)
	}
	// Walk up from the proposed parent; reaching localID means the parent
	// is a descendant of the node being re-parented.
	id := p.ParentID
	for hops := 0; id != "" && hops <= len(s.entities); hops++ {
		if id == localID {
			return fmt.Errorf("assigning %s under %s would create a cycle", localID, parentID)
		}
		a, ok := s.entities[id]
		if !ok {
			break
		}
		id = a.ParentID
	}
	return nil
}

// refreshPaths recomputes the ancestry path of a node and all descendants.
func (s *Store) refreshPaths(localID string) {
	e, ok := s.entities[localID]
	if !ok {
		return
	}
	e.Path = s.buildPath(e)
	for id, child := range s.entities {
		if child.ParentID == localID {
			s.refreshPaths(id)
		}
	}
}

func (s *Store) buildPath(e *models.StorageEntity) string {
	seg := pathSegment(e)
	if e.ParentID == "" {
		return seg
	}
	p, ok := s.entities[e.ParentID]
	if !ok {
		return seg
	}
	return s.buildPath(p) + "." + seg
}

func pathSegment(e *models.StorageEntity) string {
	if e.Attributes != nil {
		if name, ok := e.Attributes["name"].(string); ok && name != "" {
			return name
		}
	}
	return e.LocalID
}

func (s *Store) snapshotLocked() map[string]*models.StorageEntity {
	snap := make(map[string]*models.StorageEntity, len(s.entities))
	for id, e := range s.entities {
		snap[id] = e.Clone()
	}
	return snap
}

func sortEntities(list []*models.StorageEntity) {
	sort.Slice(list, func(i, j int) bool { return list[i].LocalID < list[j].LocalID })
}
