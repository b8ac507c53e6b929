package store

import (
	"testing"

	"github.com/wmstack/blueprintgo/internal/geometry"
	"github.com/wmstack/blueprintgo/internal/models"
)

func rack(id string, x, z float64) *models.StorageEntity {
	return &models.StorageEntity{
		LocalID:   id,
		BlockType: models.BlockRack,
		Geometry: models.Geometry{
			Position:   models.Vec3{X: x, Z: z},
			Dimensions: models.Dimensions{Width: 2, Height: 2, Depth: 2},
		},
		Attributes: map[string]interface{}{"name": id},
	}
}

func TestAddGetRemove(t *testing.T) {
	s := New(0)
	if err := s.AddEntity(rack("r1", 0, 0)); err != nil {
		t.Fatalf("AddEntity: %v", err)
	}

	got, ok := s.Get("r1")
	if !ok {
		t.Fatal("r1 not found after add")
	}
	if got.Path != "r1" {
		t.Errorf("path = %q, want %q", got.Path, "r1")
	}

	if err := s.AddEntity(rack("r1", 1, 1)); err == nil {
		t.Error("duplicate local id should be rejected")
	}

	if err := s.RemoveEntity("r1"); err != nil {
		t.Fatalf("RemoveEntity: %v", err)
	}
	got, _ = s.Get("r1")
	if !got.IsDeleted {
		t.Error("removed entity should be soft-deleted, not gone")
	}
	if len(s.All()) != 0 {
		t.Error("All should exclude soft-deleted entities")
	}
	if err := s.RemoveEntity("r1"); err == nil {
		t.Error("double delete should error")
	}
}

func TestParentValidation(t *testing.T) {
	s := New(0)
	floor := &models.StorageEntity{
		LocalID:   "f1",
		BlockType: models.BlockFloor,
		Geometry: models.Geometry{
			Dimensions: models.Dimensions{Width: 20, Depth: 20},
		},
		Attributes: map[string]interface{}{"name": "Floor A"},
	}
	if err := s.AddEntity(floor); err != nil {
		t.Fatalf("add floor: %v", err)
	}

	r := rack("r1", 2, 2)
	r.ParentID = "f1"
	if err := s.AddEntity(r); err != nil {
		t.Fatalf("add child rack: %v", err)
	}
	got, _ := s.Get("r1")
	if got.Path != "Floor A.r1" {
		t.Errorf("path = %q, want %q", got.Path, "Floor A.r1")
	}

	// Dangling parent.
	bad := rack("r2", 0, 0)
	bad.ParentID = "nope"
	if err := s.AddEntity(bad); err == nil {
		t.Error("dangling parent should be rejected")
	}

	// Self parent.
	self, _ := s.Get("r1")
	self.ParentID = "r1"
	if err := s.UpdateEntity(self); err == nil {
		t.Error("self-parenting should be rejected")
	}
}

func TestCycleRejection(t *testing.T) {
	s := New(0)
	zoneA := &models.StorageEntity{LocalID: "a", BlockType: models.BlockZone}
	zoneB := &models.StorageEntity{LocalID: "b", BlockType: models.BlockZone, ParentID: "a"}
	zoneC := &models.StorageEntity{LocalID: "c", BlockType: models.BlockZone, ParentID: "b"}
	for _, z := range []*models.StorageEntity{zoneA, zoneB, zoneC} {
		if err := s.AddEntity(z); err != nil {
			t.Fatalf("add %s: %v", z.LocalID, err)
		}
	}

	// a -> c would close a -> b -> c -> a.
	a, _ := s.Get("a")
	a.ParentID = "c"
	if err := s.UpdateEntity(a); err == nil {
		t.Error("re-parenting a under its own descendant must be rejected")
	}

	// Moving c directly under a is fine.
	c, _ := s.Get("c")
	c.ParentID = "a"
	if err := s.UpdateEntity(c); err != nil {
		t.Errorf("legal re-parent rejected: %v", err)
	}
}

func TestWorldPosition(t *testing.T) {
	s := New(0)
	floor := &models.StorageEntity{
		LocalID:   "f",
		BlockType: models.BlockFloor,
		Geometry:  models.Geometry{Position: models.Vec3{X: 100, Z: 50}},
	}
	zone := &models.StorageEntity{
		LocalID:   "z",
		BlockType: models.BlockZone,
		ParentID:  "f",
		Geometry:  models.Geometry{Position: models.Vec3{X: 10, Z: -5}},
	}
	r := rack("r", 1, 2)
	r.ParentID = "z"
	for _, e := range []*models.StorageEntity{floor, zone, r} {
		if err := s.AddEntity(e); err != nil {
			t.Fatalf("add %s: %v", e.LocalID, err)
		}
	}

	pos, err := s.WorldPosition("r")
	if err != nil {
		t.Fatalf("WorldPosition: %v", err)
	}
	want := models.Vec3{X: 111, Z: 47}
	if pos != want {
		t.Errorf("world position = %+v, want %+v", pos, want)
	}
}

func TestContainingBounds(t *testing.T) {
	s := New(0)
	def := geometry.AABB{MinX: -100, MinZ: -100, MaxX: 100, MaxZ: 100}

	floor := &models.StorageEntity{
		LocalID:   "f",
		BlockType: models.BlockFloor,
		Geometry: models.Geometry{
			Position:   models.Vec3{X: 10, Z: 10},
			Dimensions: models.Dimensions{Width: 20, Depth: 20},
		},
	}
	if err := s.AddEntity(floor); err != nil {
		t.Fatal(err)
	}
	r := rack("r", 0, 0)
	r.ParentID = "f"
	if err := s.AddEntity(r); err != nil {
		t.Fatal(err)
	}

	got := s.ContainingBounds("r", def)
	want := geometry.AABB{MinX: 0, MinZ: 0, MaxX: 20, MaxZ: 20}
	if got != want {
		t.Errorf("containing bounds = %+v, want %+v", got, want)
	}

	// A root entity falls back to the default volume.
	lone := rack("lone", 0, 0)
	if err := s.AddEntity(lone); err != nil {
		t.Fatal(err)
	}
	if got := s.ContainingBounds("lone", def); got != def {
		t.Errorf("root bounds = %+v, want default", got)
	}
}

func TestCollidablesExcludesDeletedAndContainers(t *testing.T) {
	s := New(0)
	floor := &models.StorageEntity{LocalID: "f", BlockType: models.BlockFloor,
		Geometry: models.Geometry{Dimensions: models.Dimensions{Width: 50, Depth: 50}}}
	if err := s.AddEntity(floor); err != nil {
		t.Fatal(err)
	}
	if err := s.AddEntity(rack("r1", 0, 0)); err != nil {
		t.Fatal(err)
	}
	if err := s.AddEntity(rack("r2", 10, 10)); err != nil {
		t.Fatal(err)
	}
	if err := s.RemoveEntity("r2"); err != nil {
		t.Fatal(err)
	}

	entries := s.Collidables()
	if len(entries) != 1 || entries[0].ID != "r1" {
		t.Errorf("Collidables = %+v, want only r1", entries)
	}
}

func TestPendingTracking(t *testing.T) {
	s := New(0)
	if s.Dirty() {
		t.Error("new store should not be dirty")
	}
	s.MarkPending("a")
	s.MarkPending("b")
	s.MarkPending("a")
	if got := s.Pending(); len(got) != 2 || got[0] != "a" || got[1] != "b" {
		t.Errorf("Pending = %v", got)
	}
	s.ClearPending("a")
	s.ClearPending("a")
	if got := s.Pending(); len(got) != 1 || got[0] != "b" {
		t.Errorf("Pending after clear = %v", got)
	}
}

func TestGetByRemoteID(t *testing.T) {
	s := New(0)
	r := rack("r1", 0, 0)
	r.RemoteID = "srv-42"
	if err := s.AddEntity(r); err != nil {
		t.Fatal(err)
	}
	if err := s.AddEntity(rack("draft", 5, 5)); err != nil {
		t.Fatal(err)
	}

	got, ok := s.GetByRemoteID("srv-42")
	if !ok || got.LocalID != "r1" {
		t.Errorf("GetByRemoteID = %v, %v", got, ok)
	}
	if _, ok := s.GetByRemoteID(""); ok {
		t.Error("empty remote id must never match a draft")
	}
}
