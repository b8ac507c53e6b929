package editor

import (
	"bytes"
	"context"
	"testing"

	"github.com/wmstack/blueprintgo/internal/geometry"
	"github.com/wmstack/blueprintgo/internal/gesture"
	"github.com/wmstack/blueprintgo/internal/models"
)

func newLocalSession() *Session {
	return NewSession(Options{
		Bounds: geometry.AABB{MinX: -100, MinZ: -100, MaxX: 100, MaxZ: 100},
	})
}

func rackGeom(x, z float64) models.Geometry {
	return models.Geometry{
		Position:   models.Vec3{X: x, Z: z},
		Dimensions: models.Dimensions{Width: 2, Height: 2, Depth: 2},
	}
}

func rackAttrs(name string) map[string]interface{} {
	return map[string]interface{}{"name": name, "levels": 3.0}
}

func TestAddRemoveRackAndState(t *testing.T) {
	s := newLocalSession()
	ctx := context.Background()

	id, err := s.AddRack(ctx, "", rackGeom(0, 0), rackAttrs("R1"))
	if err != nil {
		t.Fatalf("AddRack: %v", err)
	}
	locked := rackAttrs("R2")
	locked["locked"] = true
	if _, err := s.AddRack(ctx, "", rackGeom(10, 10), locked); err != nil {
		t.Fatalf("AddRack R2: %v", err)
	}

	st := s.GetState()
	if st.TotalRacks != 2 || st.LockedRacks != 1 {
		t.Errorf("state racks = %d/%d locked, want 2/1", st.TotalRacks, st.LockedRacks)
	}
	if !st.Dirty {
		t.Error("drafts should mark the session dirty")
	}
	if !st.CanUndo || st.CanRedo {
		t.Error("after two adds: undo yes, redo no")
	}

	if err := s.RemoveRack(ctx, id); err != nil {
		t.Fatalf("RemoveRack: %v", err)
	}
	if got := len(s.GetEntities()); got != 1 {
		t.Errorf("entities after delete = %d, want 1", got)
	}
}

func TestSelectionTracksDeletion(t *testing.T) {
	s := newLocalSession()
	ctx := context.Background()

	id, err := s.AddRack(ctx, "", rackGeom(0, 0), rackAttrs("R1"))
	if err != nil {
		t.Fatal(err)
	}
	if err := s.Select(id); err != nil {
		t.Fatal(err)
	}
	if s.GetState().SelectionID != id {
		t.Error("selection not recorded")
	}
	if err := s.Select("ghost"); err == nil {
		t.Error("selecting an unknown entity must fail")
	}

	if err := s.RemoveRack(ctx, id); err != nil {
		t.Fatal(err)
	}
	if s.GetState().SelectionID != "" {
		t.Error("deleting the selected entity must clear the selection")
	}
}

func TestUndoRedoThroughHandle(t *testing.T) {
	s := newLocalSession()
	ctx := context.Background()

	if s.Undo(ctx) {
		t.Error("undo with no history must report false")
	}
	id, err := s.AddRack(ctx, "", rackGeom(0, 0), rackAttrs("R1"))
	if err != nil {
		t.Fatal(err)
	}

	if !s.Undo(ctx) {
		t.Fatal("undo failed")
	}
	if _, ok := s.Get(id); ok {
		t.Error("undo should remove the added rack")
	}
	if !s.Redo(ctx) {
		t.Fatal("redo failed")
	}
	if _, ok := s.Get(id); !ok {
		t.Error("redo should restore the rack")
	}
}

func TestCameraOperations(t *testing.T) {
	s := newLocalSession()
	ctx := context.Background()

	id, err := s.AddRack(ctx, "", rackGeom(15, -10), rackAttrs("R1"))
	if err != nil {
		t.Fatal(err)
	}
	if err := s.ZoomToEntity(id); err != nil {
		t.Fatal(err)
	}
	cam := s.GetState().Camera
	if cam.Target.X != 15 || cam.Target.Z != -10 {
		t.Errorf("camera target = %+v, want the rack position", cam.Target)
	}

	s.ResetCamera()
	if got := s.GetState().Camera; got != DefaultCamera {
		t.Errorf("camera after reset = %+v, want default", got)
	}

	if err := s.ZoomToEntity("ghost"); err == nil {
		t.Error("zooming to an unknown entity must fail")
	}
}

func TestValidateLayoutFindsSeededViolations(t *testing.T) {
	s := newLocalSession()
	ctx := context.Background()

	if _, err := s.AddRack(ctx, "", rackGeom(0, 0), rackAttrs("A")); err != nil {
		t.Fatal(err)
	}
	if _, err := s.AddRack(ctx, "", rackGeom(10, 10), rackAttrs("B")); err != nil {
		t.Fatal(err)
	}
	if len(s.ValidateLayout()) != 0 {
		t.Fatal("clean layout should validate")
	}

	// Force an overlap behind the pipeline's back, the way a bad remote
	// hydration could: the sweep must catch it.
	b, _ := s.Get(entityIDByName(s, "B"))
	moved := b.Clone()
	moved.Geometry.Position = models.Vec3{X: 1, Z: 1}
	moved.RemoteID = "srv-b"
	s.store.Reconcile(moved)

	violations := s.ValidateLayout()
	if len(violations) != 1 || violations[0].Kind != "overlap" {
		t.Fatalf("violations = %+v, want one overlap", violations)
	}
}

func entityIDByName(s *Session, name string) string {
	for _, e := range s.GetEntities() {
		if e.DisplayName() == name {
			return e.LocalID
		}
	}
	return ""
}

func gestureFrame(x, z float64) gesture.Transform {
	return gesture.Transform{Position: models.Vec3{X: x, Z: z}}
}

func TestGestureRoundTripThroughSession(t *testing.T) {
	s := newLocalSession()
	ctx := context.Background()

	id, err := s.AddRack(ctx, "", rackGeom(0, 0), rackAttrs("A"))
	if err != nil {
		t.Fatal(err)
	}
	if _, err := s.AddRack(ctx, "", rackGeom(10, 10), rackAttrs("B")); err != nil {
		t.Fatal(err)
	}

	g := s.Gesture()
	if err := g.DragStart(id); err != nil {
		t.Fatal(err)
	}
	g.SampleFrame(gestureFrame(9.5, 9.5))
	if res := g.DragEnd(ctx); res.Accepted {
		t.Fatal("drop onto B must be rejected")
	}

	if err := g.DragStart(id); err != nil {
		t.Fatal(err)
	}
	g.SampleFrame(gestureFrame(-20, -20))
	if res := g.DragEnd(ctx); !res.Accepted {
		t.Fatalf("clear drop rejected: %s", res.Message)
	}

	got, _ := s.Get(id)
	if got.Geometry.Position.X != -20 {
		t.Errorf("rack X = %v, want -20", got.Geometry.Position.X)
	}
	if len(s.ValidateLayout()) != 0 {
		t.Error("layout must stay valid after an accepted gesture")
	}
}

func TestCaptureScreenshotAndLabels(t *testing.T) {
	s := newLocalSession()
	ctx := context.Background()

	if _, err := s.AddRack(ctx, "", rackGeom(0, 0), rackAttrs("A-01")); err != nil {
		t.Fatal(err)
	}

	pdf, err := s.CaptureScreenshot()
	if err != nil {
		t.Fatalf("CaptureScreenshot: %v", err)
	}
	if !bytes.HasPrefix(pdf, []byte("%PDF")) {
		t.Error("screenshot is not a PDF")
	}

	labels, err := s.RackLabels()
	if err != nil {
		t.Fatalf("RackLabels: %v", err)
	}
	if !bytes.HasPrefix(labels, []byte("%PDF")) {
		t.Error("label sheet is not a PDF")
	}
}
