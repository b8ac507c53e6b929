package pipeline

import (
	"context"
	"log"
	"sync/atomic"

	"github.com/google/uuid"

	"github.com/wmstack/blueprintgo/internal/collision"
	"github.com/wmstack/blueprintgo/internal/geometry"
	"github.com/wmstack/blueprintgo/internal/models"
	"github.com/wmstack/blueprintgo/internal/remote"
	"github.com/wmstack/blueprintgo/internal/store"
	"github.com/wmstack/blueprintgo/internal/validate"
)

// Event reports the delayed outcome of an optimistic commit: the remote
// call succeeded, or it failed and the store was rolled back.
type Event struct {
	LocalID    string
	Op         string // update, delete, history-sync
	Err        error
	RolledBack bool
}

// Pipeline is the mutation path of the working copy: validate, check
// bounds, check collisions, apply optimistically, persist remotely, roll
// back on failure. It is also the undo/redo-to-remote synchronizer.
type Pipeline struct {
	store     *store.Store
	detector  *collision.Detector
	validator validate.Validator
	remote    remote.Service

	// defaultBounds is the warehouse volume used when an entity has no
	// containing zone or floor.
	defaultBounds geometry.AABB

	// syncing suppresses the diff-and-sync routine and the feed applicator
	// while a sync triggered by the routine itself is in flight. Without it
	// the remote subscription echo would re-enter as another "mutation".
	syncing atomic.Bool

	events chan Event
}

// New wires a pipeline. remote may be nil for a purely local session;
// drafts then never leave the working copy.
func New(st *store.Store, det *collision.Detector, v validate.Validator, rs remote.Service, defaultBounds geometry.AABB) *Pipeline {
	return &Pipeline{
		store:         st,
		detector:      det,
		validator:     v,
		remote:        rs,
		defaultBounds: defaultBounds,
		events:        make(chan Event, 64),
	}
}

// Events delivers remote-commit outcomes. The channel is buffered and
// never blocks the mutation path; slow consumers lose old events.
func (p *Pipeline) Events() <-chan Event { return p.events }

// CommitUpdate runs the full update path for one entity. The returned
// error, if any, is a *Rejection; the remote leg is asynchronous and
// reports through Events.
func (p *Pipeline) CommitUpdate(ctx context.Context, localID string, patch models.EntityPatch) error {
	prior, ok := p.store.Get(localID)
	if !ok {
		return reject(RejectValidation, "entity %s not found", localID)
	}
	if prior.IsDeleted {
		return reject(RejectValidation, "entity %s is deleted", localID)
	}

	merged := applyPatch(prior, patch)

	// 1. Attribute schema.
	if err := p.validator.Validate(merged.BlockType, merged.Attributes); err != nil {
		return &Rejection{Kind: RejectValidation, Message: err.Error(), Err: err}
	}

	// 2. Floor resize containment.
	if merged.BlockType == models.BlockFloor && merged.Geometry.Dimensions != prior.Geometry.Dimensions {
		if err := p.checkFloorContainment(prior, merged); err != nil {
			return err
		}
	}

	// 3. Collision, only when placement changed and the type occupies
	// floor space. Re-parenting counts: the world position derives from
	// the ancestor chain, so a new parent moves the entity even when its
	// local geometry is untouched. Zone/floor resizing is governed by
	// containment above.
	placementChanged := merged.Geometry != prior.Geometry || merged.ParentID != prior.ParentID
	if placementChanged && merged.BlockType.Collidable() {
		worldPos, err := p.proposedWorldPosition(merged)
		if err != nil {
			return &Rejection{Kind: RejectValidation, Message: err.Error(), Err: err}
		}
		res := p.detector.Check(collision.CheckRequest{
			Position:   worldPos,
			Dimensions: merged.Geometry.Dimensions,
			Yaw:        merged.Geometry.Yaw,
			Bounds:     p.containingBoundsFor(merged.ParentID),
			ExcludeID:  localID,
		})
		if !res.OK {
			if res.OutOfBounds {
				return reject(RejectBounds, "%s", res.Message)
			}
			return &Rejection{Kind: RejectCollision, Message: res.Message, CollidingName: res.CollidingName}
		}
	}

	// 4. Optimistic local apply, visible to all readers immediately.
	if err := p.store.UpdateEntity(merged); err != nil {
		return &Rejection{Kind: RejectValidation, Message: err.Error(), Err: err}
	}
	p.detector.Reset()
	p.store.MarkPending(localID)

	// 5. Drafts stay local until creation completes.
	if merged.RemoteID == "" || p.remote == nil {
		return nil
	}

	go p.persistUpdate(ctx, prior, merged)
	return nil
}

func (p *Pipeline) persistUpdate(ctx context.Context, prior, merged *models.StorageEntity) {
	attrs := models.EncodeGeometry(merged.Clone().Attributes, merged.Geometry)
	err := p.remote.Update(ctx, merged.RemoteID, attrs, merged.DisplayName())
	if err != nil {
		log.Printf("⚠️ Remote update failed for %s, rolling back: %v", merged.LocalID, err)
		p.store.RollbackEntity(prior, merged)
		p.store.ClearPending(merged.LocalID)
		p.detector.Reset()
		p.emit(Event{LocalID: merged.LocalID, Op: "update", Err: err, RolledBack: true})
		return
	}
	p.store.ClearPending(merged.LocalID)
	p.emit(Event{LocalID: merged.LocalID, Op: "update"})
}

// CommitCreate validates and collision-checks a new entity, then persists
// it remotely first: the remote id must exist before the entity is
// addressable, so creation is deliberately not optimistic. The entity
// reaches the working copy through the subscription feed.
func (p *Pipeline) CommitCreate(ctx context.Context, blockType models.BlockType, parentID string, geom models.Geometry, attrs map[string]interface{}) (string, error) {
	if err := p.checkNewEntity(blockType, parentID, geom, attrs); err != nil {
		return "", err
	}
	if p.remote == nil {
		return "", reject(RejectRemote, "no remote service configured")
	}

	name, _ := attrs["name"].(string)
	parentRemoteID := ""
	path := name
	if parentID != "" {
		parent, ok := p.store.Get(parentID)
		if !ok {
			return "", reject(RejectValidation, "parent %s not found", parentID)
		}
		parentRemoteID = parent.RemoteID
		path = parent.Path + "." + name
	}

	remoteID, err := p.remote.Create(ctx, remote.CreateRequest{
		BlockType:      blockType,
		ParentRemoteID: parentRemoteID,
		Path:           path,
		Name:           name,
		Attributes:     models.EncodeGeometry(cloneAttrs(attrs), geom),
	})
	if err != nil {
		return "", &Rejection{Kind: RejectRemote, Message: "remote create failed", Err: err}
	}
	return remoteID, nil
}

// CreateDraft inserts a local-only entity with a fresh local id and no
// remote id. Used when the editor works ahead of the remote service.
func (p *Pipeline) CreateDraft(blockType models.BlockType, parentID string, geom models.Geometry, attrs map[string]interface{}) (string, error) {
	if err := p.checkNewEntity(blockType, parentID, geom, attrs); err != nil {
		return "", err
	}

	e := &models.StorageEntity{
		LocalID:    uuid.NewString(),
		ParentID:   parentID,
		BlockType:  blockType,
		Geometry:   geom,
		Attributes: cloneAttrs(attrs),
	}
	if err := p.store.AddEntity(e); err != nil {
		return "", &Rejection{Kind: RejectValidation, Message: err.Error(), Err: err}
	}
	p.detector.Reset()
	p.store.MarkPending(e.LocalID)
	return e.LocalID, nil
}

// CommitDelete soft-deletes optimistically, then mirrors the delete
// remotely. A failed remote delete restores the entity, keeping the delete
// path consistent with update and create.
func (p *Pipeline) CommitDelete(ctx context.Context, localID string) error {
	prior, ok := p.store.Get(localID)
	if !ok {
		return reject(RejectValidation, "entity %s not found", localID)
	}
	if prior.IsDeleted {
		return reject(RejectValidation, "entity %s is already deleted", localID)
	}

	if err := p.store.RemoveEntity(localID); err != nil {
		return &Rejection{Kind: RejectValidation, Message: err.Error(), Err: err}
	}
	p.detector.Reset()

	if prior.RemoteID == "" || p.remote == nil {
		// Draft: nothing to mirror.
		return nil
	}
	p.store.MarkPending(localID)

	deleted := prior.Clone()
	deleted.IsDeleted = true
	go func() {
		err := p.remote.SoftDelete(ctx, prior.RemoteID)
		if err != nil {
			log.Printf("⚠️ Remote delete failed for %s, restoring: %v", localID, err)
			p.store.RollbackEntity(prior, deleted)
			p.store.ClearPending(localID)
			p.detector.Reset()
			p.emit(Event{LocalID: localID, Op: "delete", Err: err, RolledBack: true})
			return
		}
		p.store.ClearPending(localID)
		p.emit(Event{LocalID: localID, Op: "delete"})
	}()
	return nil
}

// checkNewEntity is the shared validate+collide gate for creation. New
// entities never pre-exist in the store, so there is no self-exclusion.
func (p *Pipeline) checkNewEntity(blockType models.BlockType, parentID string, geom models.Geometry, attrs map[string]interface{}) error {
	if err := p.validator.Validate(blockType, attrs); err != nil {
		return &Rejection{Kind: RejectValidation, Message: err.Error(), Err: err}
	}

	if !blockType.Collidable() {
		return nil
	}

	worldPos := geom.Position
	if parentID != "" {
		parentWorld, err := p.store.WorldPosition(parentID)
		if err != nil {
			return &Rejection{Kind: RejectValidation, Message: err.Error(), Err: err}
		}
		worldPos = parentWorld.Add(geom.Position)
	}

	res := p.detector.Check(collision.CheckRequest{
		Position:   worldPos,
		Dimensions: geom.Dimensions,
		Yaw:        geom.Yaw,
		Bounds:     p.containingBoundsFor(parentID),
	})
	if !res.OK {
		if res.OutOfBounds {
			return reject(RejectBounds, "%s", res.Message)
		}
		return &Rejection{Kind: RejectCollision, Message: res.Message, CollidingName: res.CollidingName}
	}
	return nil
}

// checkFloorContainment verifies that every non-deleted child still fits
// inside the floor's proposed bounds. Child offsets are taken relative to
// the floor, so moving the floor moves its children with it.
func (p *Pipeline) checkFloorContainment(prior, merged *models.StorageEntity) error {
	oldWorld, err := p.store.WorldPosition(prior.LocalID)
	if err != nil {
		return &Rejection{Kind: RejectValidation, Message: err.Error(), Err: err}
	}
	newWorld := oldWorld.Add(models.Vec3{
		X: merged.Geometry.Position.X - prior.Geometry.Position.X,
		Y: merged.Geometry.Position.Y - prior.Geometry.Position.Y,
		Z: merged.Geometry.Position.Z - prior.Geometry.Position.Z,
	})
	floorBounds := geometry.NewOBB(newWorld, merged.Geometry.Dimensions, merged.Geometry.Yaw).AABB()

	for _, child := range p.store.Children(prior.LocalID) {
		childWorld, err := p.store.WorldPosition(child.LocalID)
		if err != nil {
			continue
		}
		// Re-anchor the child to the floor's proposed position.
		offset := models.Vec3{
			X: childWorld.X - oldWorld.X,
			Y: childWorld.Y - oldWorld.Y,
			Z: childWorld.Z - oldWorld.Z,
		}
		childBounds := geometry.NewOBB(newWorld.Add(offset), child.Geometry.Dimensions, child.Geometry.Yaw).AABB()
		if !floorBounds.Contains(childBounds) {
			return reject(RejectBounds, "resize would leave %s outside %s", child.DisplayName(), merged.DisplayName())
		}
	}
	return nil
}

// containingBoundsFor resolves the AABB an entity parented under parentID
// must stay inside: the footprint of the nearest zone or floor at or above
// the parent, or the warehouse envelope when there is none.
func (p *Pipeline) containingBoundsFor(parentID string) geometry.AABB {
	if parentID == "" {
		return p.defaultBounds
	}
	parent, ok := p.store.Get(parentID)
	if !ok {
		return p.defaultBounds
	}
	if (parent.BlockType == models.BlockZone || parent.BlockType == models.BlockFloor) && !parent.IsDeleted {
		if pos, err := p.store.WorldPosition(parentID); err == nil {
			return geometry.NewOBB(pos, parent.Geometry.Dimensions, parent.Geometry.Yaw).AABB()
		}
	}
	return p.store.ContainingBounds(parentID, p.defaultBounds)
}

func (p *Pipeline) proposedWorldPosition(merged *models.StorageEntity) (models.Vec3, error) {
	if merged.ParentID == "" {
		return merged.Geometry.Position, nil
	}
	parentWorld, err := p.store.WorldPosition(merged.ParentID)
	if err != nil {
		return models.Vec3{}, err
	}
	return parentWorld.Add(merged.Geometry.Position), nil
}

func (p *Pipeline) emit(ev Event) {
	select {
	case p.events <- ev:
	default:
		// Nobody is draining fast enough; drop rather than stall a commit.
	}
}

func applyPatch(prior *models.StorageEntity, patch models.EntityPatch) *models.StorageEntity {
	merged := prior.Clone()
	if patch.Geometry != nil {
		merged.Geometry = *patch.Geometry
	}
	if patch.ParentID != nil {
		merged.ParentID = *patch.ParentID
	}
	if len(patch.Attributes) > 0 {
		if merged.Attributes == nil {
			merged.Attributes = make(map[string]interface{}, len(patch.Attributes))
		}
		for k, v := range patch.Attributes {
			merged.Attributes[k] = v
		}
	}
	return merged
}

func cloneAttrs(attrs map[string]interface{}) map[string]interface{} {
	e := models.StorageEntity{Attributes: attrs}
	return e.Clone().Attributes
}
