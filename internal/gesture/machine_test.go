package gesture

import (
	"context"
	"testing"

	"github.com/wmstack/blueprintgo/internal/collision"
	"github.com/wmstack/blueprintgo/internal/geometry"
	"github.com/wmstack/blueprintgo/internal/models"
	"github.com/wmstack/blueprintgo/internal/pipeline"
	"github.com/wmstack/blueprintgo/internal/store"
	"github.com/wmstack/blueprintgo/internal/validate"
)

var warehouse = geometry.AABB{MinX: -100, MinZ: -100, MaxX: 100, MaxZ: 100}

func newMachine(t *testing.T) (*Machine, *store.Store) {
	t.Helper()
	st := store.New(0)
	det := collision.NewDetector(st, 5)
	p := pipeline.New(st, det, validate.NewDefault(), nil, warehouse)
	return NewMachine(st, det, p, warehouse), st
}

func addRack(t *testing.T, st *store.Store, id string, x, z float64) {
	t.Helper()
	err := st.AddEntity(&models.StorageEntity{
		LocalID:   id,
		BlockType: models.BlockRack,
		Geometry: models.Geometry{
			Position:   models.Vec3{X: x, Z: z},
			Dimensions: models.Dimensions{Width: 2, Height: 2, Depth: 2},
		},
		Attributes: map[string]interface{}{"name": id, "levels": 3.0},
	})
	if err != nil {
		t.Fatal(err)
	}
}

func TestDragAcceptCommits(t *testing.T) {
	m, st := newMachine(t)
	addRack(t, st, "a", 0, 0)

	if err := m.DragStart("a"); err != nil {
		t.Fatal(err)
	}
	if m.State() != StateDragging {
		t.Fatalf("state = %s, want dragging", m.State())
	}

	// Render frames sample freely; nothing is committed yet.
	m.SampleFrame(Transform{Position: models.Vec3{X: 3, Z: 3}})
	m.SampleFrame(Transform{Position: models.Vec3{X: 10, Z: 10}})
	if got, _ := st.Get("a"); got.Geometry.Position.X != 0 {
		t.Error("sampling frames must not mutate the store")
	}

	res := m.DragEnd(context.Background())
	if !res.Accepted {
		t.Fatalf("drag rejected: %s", res.Message)
	}
	if m.State() != StateIdle {
		t.Errorf("state after drag end = %s, want idle", m.State())
	}
	got, _ := st.Get("a")
	if got.Geometry.Position.X != 10 {
		t.Errorf("committed X = %v, want 10", got.Geometry.Position.X)
	}

	if !m.ConsumeSkipSync() {
		t.Error("accepted commit must arm the skip-next-sync flag")
	}
	if m.ConsumeSkipSync() {
		t.Error("skip-next-sync flag must be one-shot")
	}
}

func TestDragRejectSnapsBack(t *testing.T) {
	m, st := newMachine(t)
	addRack(t, st, "a", 0, 0)
	addRack(t, st, "b", 10, 10)

	if err := m.DragStart("a"); err != nil {
		t.Fatal(err)
	}
	m.SampleFrame(Transform{Position: models.Vec3{X: 9.5, Z: 9.5}})

	res := m.DragEnd(context.Background())
	if res.Accepted {
		t.Fatal("overlapping drop must be rejected")
	}
	if res.Transform.Position.X != 0 {
		t.Errorf("snap-back transform X = %v, want the last committed 0", res.Transform.Position.X)
	}
	if res.Message == "" {
		t.Error("rejection must carry a user-facing message")
	}
	if got, _ := st.Get("a"); got.Geometry.Position.X != 0 {
		t.Error("store must stay unchanged on rejection")
	}
	if m.ConsumeSkipSync() {
		t.Error("rejected drag must not arm skip-next-sync")
	}
	if m.State() != StateIdle {
		t.Errorf("state = %s, want idle", m.State())
	}
}

func TestDragSelfOverlapAllowed(t *testing.T) {
	m, st := newMachine(t)
	addRack(t, st, "a", 0, 0)

	if err := m.DragStart("a"); err != nil {
		t.Fatal(err)
	}
	// Nudge within its own footprint: must not self-collide.
	m.SampleFrame(Transform{Position: models.Vec3{X: 0.5, Z: 0.5}})
	if res := m.DragEnd(context.Background()); !res.Accepted {
		t.Errorf("self-overlap rejected: %s", res.Message)
	}
}

func TestDragStartGuards(t *testing.T) {
	m, st := newMachine(t)
	addRack(t, st, "a", 0, 0)

	if err := m.DragStart("missing"); err == nil {
		t.Error("dragging an unknown entity must fail")
	}
	if err := m.DragStart("a"); err != nil {
		t.Fatal(err)
	}
	if err := m.DragStart("a"); err == nil {
		t.Error("starting a second drag mid-gesture must fail")
	}
	m.DragEnd(context.Background())

	if err := st.RemoveEntity("a"); err != nil {
		t.Fatal(err)
	}
	if err := m.DragStart("a"); err == nil {
		t.Error("dragging a deleted entity must fail")
	}
}

func TestDragEndOutOfBounds(t *testing.T) {
	m, st := newMachine(t)
	addRack(t, st, "a", 0, 0)

	if err := m.DragStart("a"); err != nil {
		t.Fatal(err)
	}
	m.SampleFrame(Transform{Position: models.Vec3{X: 99.5, Z: 0}})
	res := m.DragEnd(context.Background())
	if res.Accepted {
		t.Error("drop outside the warehouse volume must be rejected")
	}
	if got, _ := st.Get("a"); got.Geometry.Position.X != 0 {
		t.Error("store must stay unchanged")
	}
}

func TestDragEndWithoutDrag(t *testing.T) {
	m, _ := newMachine(t)
	if res := m.DragEnd(context.Background()); res.Accepted {
		t.Error("drag end while idle must not accept")
	}
}
