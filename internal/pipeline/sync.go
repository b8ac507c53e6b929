package pipeline

import (
	"context"
	"log"

	"github.com/google/uuid"

	"github.com/wmstack/blueprintgo/internal/models"
	"github.com/wmstack/blueprintgo/internal/store"
)

// SyncHistory mirrors an undo or redo step to the remote service. The two
// snapshots are diffed, and every changed, already-persisted entity is
// re-submitted as an update or delete matching its new local state. No
// re-validation and no collision re-check happen here: undo/redo only ever
// restores states that were valid when first committed.
//
// The in-flight flag stays set until every remote call returns, so the
// subscription echo of our own writes cannot re-enter as a new mutation.
func (p *Pipeline) SyncHistory(ctx context.Context, prev, curr map[string]*models.StorageEntity) {
	p.detector.Reset()

	changes := store.Diff(prev, curr)
	if len(changes) == 0 || p.remote == nil {
		return
	}
	if !p.syncing.CompareAndSwap(false, true) {
		log.Printf("⚠️ History sync already in flight, skipping")
		return
	}

	go func() {
		defer p.syncing.Store(false)

		for _, ch := range changes {
			entity := ch.Entity
			if entity == nil {
				entity = prev[ch.LocalID]
			}
			if entity == nil || entity.RemoteID == "" {
				continue // drafts have no remote copy to fix up
			}

			var err error
			if ch.Op == store.ChangeRemoved || entity.IsDeleted {
				err = p.remote.SoftDelete(ctx, entity.RemoteID)
			} else {
				attrs := models.EncodeGeometry(entity.Clone().Attributes, entity.Geometry)
				err = p.remote.Update(ctx, entity.RemoteID, attrs, entity.DisplayName())
			}
			if err != nil {
				log.Printf("🔴 History sync failed for %s: %v", ch.LocalID, err)
				p.emit(Event{LocalID: ch.LocalID, Op: "history-sync", Err: err})
				continue
			}
			p.store.ClearPending(ch.LocalID)
		}
		p.emit(Event{Op: "history-sync"})
	}()
}

// Syncing reports whether a history sync is currently in flight.
func (p *Pipeline) Syncing() bool { return p.syncing.Load() }

// Hydrate replaces the working copy with the remote's current entity list.
// Called once at session start, before any local edit exists.
func (p *Pipeline) Hydrate(ctx context.Context) error {
	if p.remote == nil {
		return nil
	}
	blocks, err := p.remote.List(ctx)
	if err != nil {
		return err
	}
	p.applyBlocks(blocks)
	return nil
}

// ApplyRemote reconciles a subscription-feed push into the working copy.
// Pushes arriving while our own history sync is in flight are echoes of
// writes we just made and are dropped.
func (p *Pipeline) ApplyRemote(blocks []models.LayoutBlock) {
	if p.syncing.Load() {
		return
	}
	p.applyBlocks(blocks)
}

func (p *Pipeline) applyBlocks(blocks []models.LayoutBlock) {
	// Remote ids of entities we already track.
	localByRemote := make(map[string]string)
	for _, e := range p.store.All() {
		if e.RemoteID != "" {
			localByRemote[e.RemoteID] = e.LocalID
		}
	}
	// Deleted entities keep their mapping too.
	for id, e := range p.store.Snapshot() {
		if e.RemoteID != "" {
			localByRemote[e.RemoteID] = id
		}
	}

	// First pass: assign local ids to unseen blocks so parent links can
	// resolve regardless of feed order.
	for _, b := range blocks {
		if _, known := localByRemote[b.RemoteID]; !known {
			localByRemote[b.RemoteID] = uuid.NewString()
		}
	}

	for _, b := range blocks {
		attrs := map[string]interface{}(b.Attributes)
		geom, _ := models.DecodeGeometry(attrs)

		parentID := ""
		if b.ParentRemoteID != "" {
			parentID = localByRemote[b.ParentRemoteID]
		}

		e := &models.StorageEntity{
			LocalID:    localByRemote[b.RemoteID],
			RemoteID:   b.RemoteID,
			ParentID:   parentID,
			BlockType:  models.BlockType(b.BlockType),
			Geometry:   geom,
			Attributes: models.StripGeometry(attrs),
			Path:       b.Path,
			IsDeleted:  b.IsDeleted,
		}
		if e.Attributes == nil {
			e.Attributes = map[string]interface{}{}
		}
		if _, ok := e.Attributes["name"]; !ok && b.Name != "" {
			e.Attributes["name"] = b.Name
		}
		p.store.Reconcile(e)
	}
	p.detector.Reset()
}
