package gesture

import (
	"context"
	"fmt"
	"sync"

	"github.com/wmstack/blueprintgo/internal/collision"
	"github.com/wmstack/blueprintgo/internal/geometry"
	"github.com/wmstack/blueprintgo/internal/models"
	"github.com/wmstack/blueprintgo/internal/pipeline"
	"github.com/wmstack/blueprintgo/internal/store"
)

// State names the gesture machine's phase.
type State string

const (
	// StateIdle: no active gesture.
	StateIdle State = "idle"
	// StateDragging: pointer actively manipulating a gizmo.
	StateDragging State = "dragging"
	// StatePending: gesture just ended; transient, reserved for multi-step
	// confirmation flows.
	StatePending State = "pending"
)

// Transform is the render-frame pose of the dragged entity, sampled in
// local space.
type Transform struct {
	Position models.Vec3 `json:"position"`
	Yaw      float64     `json:"yaw"`
}

// Result is the outcome of a drag end: the transform the view should show.
// On rejection that is the last committed pose (snap back), plus a
// user-facing message.
type Result struct {
	Accepted  bool      `json:"accepted"`
	Message   string    `json:"message,omitempty"`
	Transform Transform `json:"transform"`
}

// Machine governs drag/rotate gestures. Frames are sampled every render
// tick with no checks; the collision/commit cycle runs exactly once at drag
// end to bound cost.
type Machine struct {
	mu sync.Mutex

	state    State
	activeID string

	frame         Transform
	lastCommitted Transform

	// skipNextSync tells the render-sync pass to leave the visual
	// transform alone once after an accepted commit: the remote commit is
	// asynchronous and a stale store read must not flicker the view back
	// to the pre-drag pose.
	skipNextSync bool

	store         *store.Store
	detector      *collision.Detector
	pipe          *pipeline.Pipeline
	defaultBounds geometry.AABB
}

// NewMachine builds an idle gesture machine over the session's store,
// detector and pipeline.
func NewMachine(st *store.Store, det *collision.Detector, p *pipeline.Pipeline, defaultBounds geometry.AABB) *Machine {
	return &Machine{
		state:         StateIdle,
		store:         st,
		detector:      det,
		pipe:          p,
		defaultBounds: defaultBounds,
	}
}

// State returns the current phase.
func (m *Machine) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// ActiveID returns the entity being manipulated, empty when idle.
func (m *Machine) ActiveID() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.activeID
}

// DragStart begins a gesture on the given entity. Allowed from idle and
// from pending (a new drag cancels the pending confirmation).
func (m *Machine) DragStart(localID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.state == StateDragging {
		return fmt.Errorf("drag already in progress on %s", m.activeID)
	}
	e, ok := m.store.Get(localID)
	if !ok {
		return fmt.Errorf("entity %s not found", localID)
	}
	if e.IsDeleted {
		return fmt.Errorf("entity %s is deleted", localID)
	}

	m.state = StateDragging
	m.activeID = localID
	m.lastCommitted = Transform{Position: e.Geometry.Position, Yaw: e.Geometry.Yaw}
	m.frame = m.lastCommitted
	return nil
}

// SampleFrame records the render-frame pose during a drag. No collision
// check, no remote call: this runs once per animation frame.
func (m *Machine) SampleFrame(t Transform) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state != StateDragging {
		return
	}
	m.frame = t
}

// DragEnd finishes the gesture: one collision check on the final frame,
// then either the pipeline's update path or a snap back to the last
// committed pose. Either way the machine returns to idle.
func (m *Machine) DragEnd(ctx context.Context) Result {
	m.mu.Lock()
	if m.state != StateDragging {
		m.mu.Unlock()
		return Result{Accepted: false, Message: "no drag in progress"}
	}
	localID := m.activeID
	candidate := m.frame
	committed := m.lastCommitted
	m.state = StateIdle
	m.activeID = ""
	m.mu.Unlock()

	e, ok := m.store.Get(localID)
	if !ok {
		return Result{Accepted: false, Message: "entity vanished during drag", Transform: committed}
	}

	worldPos := candidate.Position
	if e.ParentID != "" {
		parentWorld, err := m.store.WorldPosition(e.ParentID)
		if err != nil {
			return Result{Accepted: false, Message: err.Error(), Transform: committed}
		}
		worldPos = parentWorld.Add(candidate.Position)
	}

	res := m.detector.Check(collision.CheckRequest{
		Position:   worldPos,
		Dimensions: e.Geometry.Dimensions,
		Yaw:        candidate.Yaw,
		Bounds:     m.store.ContainingBounds(localID, m.defaultBounds),
		ExcludeID:  localID,
	})
	if !res.OK {
		// Snap the visual transform back; the store was never touched.
		return Result{Accepted: false, Message: res.Message, Transform: committed}
	}

	geom := e.Geometry
	geom.Position = candidate.Position
	geom.Yaw = candidate.Yaw
	if err := m.pipe.CommitUpdate(ctx, localID, models.EntityPatch{Geometry: &geom}); err != nil {
		return Result{Accepted: false, Message: err.Error(), Transform: committed}
	}

	m.mu.Lock()
	m.skipNextSync = true
	m.mu.Unlock()
	return Result{Accepted: true, Transform: candidate}
}

// Deselect leaves the pending phase (click elsewhere, mode change).
func (m *Machine) Deselect() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state == StatePending {
		m.state = StateIdle
		m.activeID = ""
	}
}

// ConsumeSkipSync returns true exactly once after an accepted commit; the
// render-sync pass skips one store read when it does.
func (m *Machine) ConsumeSkipSync() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.skipNextSync {
		m.skipNextSync = false
		return true
	}
	return false
}
