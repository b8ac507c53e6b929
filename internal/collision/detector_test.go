package collision

import (
	"strings"
	"testing"

	"github.com/wmstack/blueprintgo/internal/geometry"
	"github.com/wmstack/blueprintgo/internal/models"
	"github.com/wmstack/blueprintgo/internal/store"
)

var warehouse = geometry.AABB{MinX: -50, MinZ: -50, MaxX: 50, MaxZ: 50}

func rack(id string, x, z float64) *models.StorageEntity {
	return &models.StorageEntity{
		LocalID:   id,
		BlockType: models.BlockRack,
		Geometry: models.Geometry{
			Position:   models.Vec3{X: x, Z: z},
			Dimensions: models.Dimensions{Width: 2, Height: 2, Depth: 2},
		},
		Attributes: map[string]interface{}{"name": "Rack " + id},
	}
}

func checkAt(x, z float64, exclude string) CheckRequest {
	return CheckRequest{
		Position:   models.Vec3{X: x, Z: z},
		Dimensions: models.Dimensions{Width: 2, Height: 2, Depth: 2},
		Bounds:     warehouse,
		ExcludeID:  exclude,
	}
}

func TestCheckRejectsOverlap(t *testing.T) {
	st := store.New(0)
	if err := st.AddEntity(rack("a", 0, 0)); err != nil {
		t.Fatal(err)
	}
	d := NewDetector(st, 5)

	// Rack B at (1,0,1), same 2x2x2 dimensions: overlaps A.
	res := d.Check(checkAt(1, 1, ""))
	if res.OK {
		t.Fatal("expected collision")
	}
	if res.CollidingName != "Rack a" {
		t.Errorf("colliding name = %q, want %q", res.CollidingName, "Rack a")
	}
	if !strings.Contains(res.Message, "Rack a") {
		t.Errorf("message %q should name the colliding entity", res.Message)
	}
}

func TestCheckAcceptsClearPlacement(t *testing.T) {
	st := store.New(0)
	if err := st.AddEntity(rack("a", 0, 0)); err != nil {
		t.Fatal(err)
	}
	d := NewDetector(st, 5)

	if res := d.Check(checkAt(10, 10, "")); !res.OK {
		t.Errorf("expected acceptance, got %+v", res)
	}
}

func TestCheckExcludesSelf(t *testing.T) {
	st := store.New(0)
	if err := st.AddEntity(rack("a", 0, 0)); err != nil {
		t.Fatal(err)
	}
	d := NewDetector(st, 5)

	// Nudging the rack within its own footprint must not self-collide.
	if res := d.Check(checkAt(0.5, 0.5, "a")); !res.OK {
		t.Errorf("self-collision not excluded: %+v", res)
	}
}

func TestCheckOutOfBoundsPrecedesGrid(t *testing.T) {
	st := store.New(0)
	d := NewDetector(st, 5)

	res := d.Check(CheckRequest{
		Position:   models.Vec3{X: 49.5, Z: 0},
		Dimensions: models.Dimensions{Width: 2, Height: 2, Depth: 2},
		Bounds:     warehouse,
	})
	if res.OK || !res.OutOfBounds {
		t.Errorf("expected out-of-bounds failure, got %+v", res)
	}
}

func TestCheckIgnoresDeletedAndContainers(t *testing.T) {
	st := store.New(0)
	if err := st.AddEntity(rack("a", 0, 0)); err != nil {
		t.Fatal(err)
	}
	if err := st.RemoveEntity("a"); err != nil {
		t.Fatal(err)
	}
	zone := &models.StorageEntity{
		LocalID:   "z",
		BlockType: models.BlockZone,
		Geometry: models.Geometry{
			Dimensions: models.Dimensions{Width: 30, Depth: 30},
		},
	}
	if err := st.AddEntity(zone); err != nil {
		t.Fatal(err)
	}
	d := NewDetector(st, 5)

	if res := d.Check(checkAt(0, 0, "")); !res.OK {
		t.Errorf("deleted rack or zone wrongly collided: %+v", res)
	}
}

func TestResetPicksUpStoreChanges(t *testing.T) {
	st := store.New(0)
	if err := st.AddEntity(rack("a", 0, 0)); err != nil {
		t.Fatal(err)
	}
	d := NewDetector(st, 5)

	if res := d.Check(checkAt(1, 1, "")); res.OK {
		t.Fatal("expected collision before the move")
	}

	// Move A far away. The detector must not notice until Reset.
	moved, _ := st.Get("a")
	moved.Geometry.Position = models.Vec3{X: 10, Z: 10}
	if err := st.UpdateEntity(moved); err != nil {
		t.Fatal(err)
	}

	if res := d.Check(checkAt(20, 20, "")); !res.OK {
		t.Errorf("stale grid should still be clear at (20,20): %+v", res)
	}

	d.Reset()
	if res := d.Check(checkAt(1, 1, "")); !res.OK {
		t.Errorf("after reset the old cell must be free: %+v", res)
	}
	if res := d.Check(checkAt(10, 10, "")); res.OK {
		t.Error("after reset the new cell must collide")
	}

	// Old cell no longer lists the moved rack.
	if _, ok := d.Grid().Query(geometry.AABB{MinX: -1, MinZ: -1, MaxX: 1, MaxZ: 1})["a"]; ok {
		t.Error("grid still indexes a at its old cell after reset")
	}
}

func TestCheckUsesWorldSpaceOfChildren(t *testing.T) {
	st := store.New(0)
	floor := &models.StorageEntity{
		LocalID:   "f",
		BlockType: models.BlockFloor,
		Geometry: models.Geometry{
			Position:   models.Vec3{X: 20, Z: 20},
			Dimensions: models.Dimensions{Width: 40, Depth: 40},
		},
	}
	if err := st.AddEntity(floor); err != nil {
		t.Fatal(err)
	}
	child := rack("c", 0, 0) // world (20, 20)
	child.ParentID = "f"
	if err := st.AddEntity(child); err != nil {
		t.Fatal(err)
	}
	d := NewDetector(st, 5)

	if res := d.Check(checkAt(20, 20, "")); res.OK {
		t.Error("probe at the child's world position must collide")
	}
	if res := d.Check(checkAt(0, 0, "")); !res.OK {
		t.Errorf("probe at the child's local position must be clear: %+v", res)
	}
}
