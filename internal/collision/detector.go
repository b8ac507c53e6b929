package collision

import (
	"fmt"
	"sync"

	"github.com/wmstack/blueprintgo/internal/geometry"
	"github.com/wmstack/blueprintgo/internal/models"
	"github.com/wmstack/blueprintgo/internal/store"
)

// CheckRequest describes a proposed placement in world space. ExcludeID is
// the entity being moved so it never collides with itself; empty for new
// entities.
type CheckRequest struct {
	Position   models.Vec3
	Dimensions models.Dimensions
	Yaw        float64
	Bounds     geometry.AABB
	ExcludeID  string
}

// Result is the accept/reject decision. Collision failures carry the first
// colliding entity's display name for user feedback; one witness is enough
// for a rejection.
type Result struct {
	OK            bool
	OutOfBounds   bool
	CollidingID   string
	CollidingName string
	Message       string
}

// Detector runs the two-phase collision check: the spatial grid shortlists
// candidates, the OBB test decides. One instance is owned by the editor
// session. The grid is a read-mostly cache with no implicit refresh: any
// caller that structurally changes the store must call Reset, and the next
// Check rebuilds lazily. Keeping invalidation explicit keeps it visible in
// the calling code.
type Detector struct {
	mu    sync.Mutex
	store *store.Store
	grid  *geometry.Grid
	ready bool
}

// NewDetector creates a detector over the given store. cellSize <= 0 uses
// the grid default.
func NewDetector(st *store.Store, cellSize float64) *Detector {
	return &Detector{
		store: st,
		grid:  geometry.NewGrid(cellSize),
	}
}

// Reset invalidates the spatial grid. The next Check pays the O(n) rebuild.
func (d *Detector) Reset() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.ready = false
}

// Check validates a proposed placement: bounds containment first (cheap and
// independent of the grid), then broad-phase candidates, then the exact OBB
// test against current store state.
func (d *Detector) Check(req CheckRequest) Result {
	probe := geometry.NewOBB(req.Position, req.Dimensions, req.Yaw)
	probeAABB := probe.AABB()

	if !req.Bounds.Contains(probeAABB) {
		return Result{
			OutOfBounds: true,
			Message:     "placement leaves the containing area",
		}
	}

	d.mu.Lock()
	if !d.ready {
		d.grid.Rebuild(d.store.Collidables())
		d.ready = true
	}
	candidates := d.grid.Query(probeAABB)
	d.mu.Unlock()

	for id := range candidates {
		if id == req.ExcludeID {
			continue
		}
		other, ok := d.store.Get(id)
		if !ok || other.IsDeleted || !other.BlockType.Collidable() {
			continue
		}
		pos, err := d.store.WorldPosition(id)
		if err != nil {
			continue
		}
		obb := geometry.NewOBB(pos, other.Geometry.Dimensions, other.Geometry.Yaw)
		if geometry.Overlaps(probe, obb) {
			name := other.DisplayName()
			return Result{
				CollidingID:   id,
				CollidingName: name,
				Message:       fmt.Sprintf("placement overlaps %s", name),
			}
		}
	}

	return Result{OK: true}
}

// Grid exposes the broad-phase index for debug visualization. Not part of
// the check path.
func (d *Detector) Grid() *geometry.Grid {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.ready {
		d.grid.Rebuild(d.store.Collidables())
		d.ready = true
	}
	return d.grid
}
