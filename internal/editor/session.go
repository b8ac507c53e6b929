package editor

import (
	"context"
	"fmt"
	"log"
	"sync"

	"github.com/wmstack/blueprintgo/internal/collision"
	"github.com/wmstack/blueprintgo/internal/geometry"
	"github.com/wmstack/blueprintgo/internal/gesture"
	"github.com/wmstack/blueprintgo/internal/models"
	"github.com/wmstack/blueprintgo/internal/pipeline"
	"github.com/wmstack/blueprintgo/internal/remote"
	"github.com/wmstack/blueprintgo/internal/services/printer"
	"github.com/wmstack/blueprintgo/internal/store"
	"github.com/wmstack/blueprintgo/internal/validate"
)

// Camera is the editor viewpoint. The session only stores it; rendering
// happens elsewhere.
type Camera struct {
	Position models.Vec3 `json:"position"`
	Target   models.Vec3 `json:"target"`
	Zoom     float64     `json:"zoom"`
}

// DefaultCamera is the home viewpoint: an overview of the warehouse.
var DefaultCamera = Camera{
	Position: models.Vec3{X: 0, Y: 40, Z: 40},
	Zoom:     1,
}

// State is the snapshot handed to the surrounding UI.
type State struct {
	SelectionID string `json:"selection_id,omitempty"`
	Camera      Camera `json:"camera"`
	Dirty       bool   `json:"dirty"`
	LockedRacks int    `json:"locked_racks"`
	TotalRacks  int    `json:"total_racks"`
	CanUndo     bool   `json:"can_undo"`
	CanRedo     bool   `json:"can_redo"`
}

// Violation is one broken layout invariant found by ValidateLayout.
type Violation struct {
	Kind     string   `json:"kind"` // overlap or containment
	Message  string   `json:"message"`
	LocalIDs []string `json:"local_ids"`
}

// Options configures a session.
type Options struct {
	// Bounds is the warehouse volume used when an entity has no containing
	// zone or floor.
	Bounds geometry.AABB
	// GridCellSize tunes the broad-phase grid; <= 0 uses the default.
	GridCellSize float64
	// HistoryDepth caps the undo stack; <= 0 uses the store default.
	HistoryDepth int
	// Remote is the persistence service; nil runs a purely local session.
	Remote remote.Service
	// Validator checks attribute bags; nil uses the built-in schema.
	Validator validate.Validator
}

// Session owns one editor's working copy and all the machinery around it:
// store, collision detector, mutation pipeline and gesture machine. It is
// the single imperative handle the surrounding UI talks to.
type Session struct {
	mu        sync.Mutex
	selection string
	camera    Camera

	bounds   geometry.AABB
	store    *store.Store
	detector *collision.Detector
	pipe     *pipeline.Pipeline
	machine  *gesture.Machine
	remote   remote.Service
}

// NewSession wires a session from options.
func NewSession(opts Options) *Session {
	v := opts.Validator
	if v == nil {
		v = validate.NewDefault()
	}
	st := store.New(opts.HistoryDepth)
	det := collision.NewDetector(st, opts.GridCellSize)
	pipe := pipeline.New(st, det, v, opts.Remote, opts.Bounds)
	return &Session{
		camera:   DefaultCamera,
		bounds:   opts.Bounds,
		store:    st,
		detector: det,
		pipe:     pipe,
		machine:  gesture.NewMachine(st, det, pipe, opts.Bounds),
		remote:   opts.Remote,
	}
}

// Run hydrates the working copy and consumes the subscription feed until
// the context ends. Call it in its own goroutine.
func (s *Session) Run(ctx context.Context) error {
	if s.remote == nil {
		return nil
	}
	if err := s.pipe.Hydrate(ctx); err != nil {
		return fmt.Errorf("failed to hydrate working copy: %w", err)
	}
	log.Printf("✅ Editor session hydrated: %d entities", len(s.store.All()))

	feed := s.remote.Subscribe()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case blocks, ok := <-feed:
			if !ok {
				return nil
			}
			s.pipe.ApplyRemote(blocks)
		}
	}
}

// AddRack creates a rack. With a remote service the create path is
// remote-first and the returned id is the remote id; without one a local
// draft is created and the local id is returned.
func (s *Session) AddRack(ctx context.Context, parentID string, geom models.Geometry, attrs map[string]interface{}) (string, error) {
	if s.remote != nil {
		return s.pipe.CommitCreate(ctx, models.BlockRack, parentID, geom, attrs)
	}
	return s.pipe.CreateDraft(models.BlockRack, parentID, geom, attrs)
}

// AddBlock is AddRack for an arbitrary block type.
func (s *Session) AddBlock(ctx context.Context, bt models.BlockType, parentID string, geom models.Geometry, attrs map[string]interface{}) (string, error) {
	if s.remote != nil {
		return s.pipe.CommitCreate(ctx, bt, parentID, geom, attrs)
	}
	return s.pipe.CreateDraft(bt, parentID, geom, attrs)
}

// UpdateBlock runs the pipeline's update path.
func (s *Session) UpdateBlock(ctx context.Context, localID string, patch models.EntityPatch) error {
	return s.pipe.CommitUpdate(ctx, localID, patch)
}

// RemoveRack soft-deletes an entity through the pipeline.
func (s *Session) RemoveRack(ctx context.Context, localID string) error {
	err := s.pipe.CommitDelete(ctx, localID)
	if err == nil {
		s.mu.Lock()
		if s.selection == localID {
			s.selection = ""
		}
		s.mu.Unlock()
	}
	return err
}

// Undo steps the working copy back one snapshot and mirrors the restored
// state to the remote copy.
func (s *Session) Undo(ctx context.Context) bool {
	prev, curr, ok := s.store.Undo()
	if !ok {
		return false
	}
	s.pipe.SyncHistory(ctx, prev, curr)
	return true
}

// Redo steps forward one snapshot, mirroring like Undo.
func (s *Session) Redo(ctx context.Context) bool {
	prev, curr, ok := s.store.Redo()
	if !ok {
		return false
	}
	s.pipe.SyncHistory(ctx, prev, curr)
	return true
}

// CanUndo reports whether an undo step exists.
func (s *Session) CanUndo() bool { return s.store.CanUndo() }

// CanRedo reports whether a redo step exists.
func (s *Session) CanRedo() bool { return s.store.CanRedo() }

// GetEntities returns the non-deleted working copy.
func (s *Session) GetEntities() []*models.StorageEntity { return s.store.All() }

// Get returns one entity by local id.
func (s *Session) Get(localID string) (*models.StorageEntity, bool) { return s.store.Get(localID) }

// Select marks an entity as selected; empty clears the selection.
func (s *Session) Select(localID string) error {
	if localID != "" {
		if _, ok := s.store.Get(localID); !ok {
			return fmt.Errorf("entity %s not found", localID)
		}
	}
	s.mu.Lock()
	s.selection = localID
	s.mu.Unlock()
	return nil
}

// GetState snapshots the UI-facing session state.
func (s *Session) GetState() State {
	s.mu.Lock()
	selection := s.selection
	camera := s.camera
	s.mu.Unlock()

	racks := s.store.ByBlockType(models.BlockRack)
	locked := 0
	for _, r := range racks {
		if l, ok := r.Attributes["locked"].(bool); ok && l {
			locked++
		}
	}
	return State{
		SelectionID: selection,
		Camera:      camera,
		Dirty:       s.store.Dirty(),
		LockedRacks: locked,
		TotalRacks:  len(racks),
		CanUndo:     s.store.CanUndo(),
		CanRedo:     s.store.CanRedo(),
	}
}

// ResetCamera returns the viewpoint to the overview pose.
func (s *Session) ResetCamera() {
	s.mu.Lock()
	s.camera = DefaultCamera
	s.mu.Unlock()
}

// ZoomToEntity points the camera at an entity's world position, pulling in
// proportionally to its footprint.
func (s *Session) ZoomToEntity(localID string) error {
	e, ok := s.store.Get(localID)
	if !ok {
		return fmt.Errorf("entity %s not found", localID)
	}
	pos, err := s.store.WorldPosition(localID)
	if err != nil {
		return err
	}
	span := e.Geometry.Dimensions.Width
	if e.Geometry.Dimensions.Depth > span {
		span = e.Geometry.Dimensions.Depth
	}
	s.mu.Lock()
	s.camera.Target = pos
	s.camera.Position = pos.Add(models.Vec3{Y: span * 3, Z: span * 3})
	s.camera.Zoom = 1
	s.mu.Unlock()
	return nil
}

// CaptureScreenshot renders the current layout as a top-down blueprint
// sheet (PDF bytes).
func (s *Session) CaptureScreenshot() ([]byte, error) {
	return printer.GenerateBlueprintPDF(s.printBlocks(s.store.All()), s.worldExtent())
}

// RackLabels renders a printable QR label sheet for every rack.
func (s *Session) RackLabels() ([]byte, error) {
	return printer.GenerateRackLabelsPDF(s.printBlocks(s.store.ByBlockType(models.BlockRack)))
}

func (s *Session) printBlocks(entities []*models.StorageEntity) []printer.Block {
	blocks := make([]printer.Block, 0, len(entities))
	for _, e := range entities {
		pos, err := s.store.WorldPosition(e.LocalID)
		if err != nil {
			continue
		}
		blocks = append(blocks, printer.Block{
			Name:       e.DisplayName(),
			Type:       e.BlockType,
			Position:   pos,
			Dimensions: e.Geometry.Dimensions,
			Yaw:        e.Geometry.Yaw,
		})
	}
	return blocks
}

// ValidateLayout sweeps the whole store for broken invariants: overlapping
// rack/obstacle pairs and floor children out of bounds. A clean layout
// returns an empty slice.
func (s *Session) ValidateLayout() []Violation {
	var violations []Violation

	// Pairwise world-space OBB disjointness over collidable entities.
	type placed struct {
		e   *models.StorageEntity
		obb geometry.OBB2D
	}
	var collidables []placed
	for _, e := range s.store.All() {
		if !e.BlockType.Collidable() {
			continue
		}
		pos, err := s.store.WorldPosition(e.LocalID)
		if err != nil {
			continue
		}
		collidables = append(collidables, placed{
			e:   e,
			obb: geometry.NewOBB(pos, e.Geometry.Dimensions, e.Geometry.Yaw),
		})
	}
	for i := 0; i < len(collidables); i++ {
		for j := i + 1; j < len(collidables); j++ {
			if geometry.Overlaps(collidables[i].obb, collidables[j].obb) {
				violations = append(violations, Violation{
					Kind: "overlap",
					Message: fmt.Sprintf("%s overlaps %s",
						collidables[i].e.DisplayName(), collidables[j].e.DisplayName()),
					LocalIDs: []string{collidables[i].e.LocalID, collidables[j].e.LocalID},
				})
			}
		}
	}

	// Floor containment.
	for _, floor := range s.store.ByBlockType(models.BlockFloor) {
		floorBounds, err := s.store.WorldAABB(floor.LocalID)
		if err != nil {
			continue
		}
		for _, child := range s.store.Children(floor.LocalID) {
			childBounds, err := s.store.WorldAABB(child.LocalID)
			if err != nil {
				continue
			}
			if !floorBounds.Contains(childBounds) {
				violations = append(violations, Violation{
					Kind: "containment",
					Message: fmt.Sprintf("%s extends outside %s",
						child.DisplayName(), floor.DisplayName()),
					LocalIDs: []string{child.LocalID, floor.LocalID},
				})
			}
		}
	}
	return violations
}

// Gesture exposes the drag/rotate state machine.
func (s *Session) Gesture() *gesture.Machine { return s.machine }

// Events exposes the pipeline's delayed commit outcomes.
func (s *Session) Events() <-chan pipeline.Event { return s.pipe.Events() }

// Detector exposes the collision service, mainly for debug endpoints.
func (s *Session) Detector() *collision.Detector { return s.detector }

// worldExtent is the union of the warehouse bounds and every entity's
// footprint, so the blueprint never crops placed objects.
func (s *Session) worldExtent() geometry.AABB {
	ext := s.bounds
	for _, e := range s.store.All() {
		b, err := s.store.WorldAABB(e.LocalID)
		if err != nil {
			continue
		}
		if b.MinX < ext.MinX {
			ext.MinX = b.MinX
		}
		if b.MinZ < ext.MinZ {
			ext.MinZ = b.MinZ
		}
		if b.MaxX > ext.MaxX {
			ext.MaxX = b.MaxX
		}
		if b.MaxZ > ext.MaxZ {
			ext.MaxZ = b.MaxZ
		}
	}
	return ext
}
