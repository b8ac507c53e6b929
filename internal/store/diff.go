package store

import (
	"reflect"
	"sort"

	"github.com/wmstack/blueprintgo/internal/models"
)

// ChangeOp classifies one entry of a snapshot diff.
type ChangeOp string

const (
	ChangeAdded   ChangeOp = "added"
	ChangeUpdated ChangeOp = "updated"
	ChangeRemoved ChangeOp = "removed"
)

// Change is one entity-level difference between two map snapshots. Entity
// is the current state, nil when the entity vanished from the map.
type Change struct {
	LocalID string
	Op      ChangeOp
	Entity  *models.StorageEntity
}

// Diff compares two snapshots and returns the set of changed local ids.
// Structural presence, the attribute bag (deep equality), geometry, parent
// link and the soft-delete flag all count as changes. This is what drives
// undo/redo remote resynchronization, so it must not miss anything the
// remote copy stores.
func Diff(prev, curr map[string]*models.StorageEntity) []Change {
	var changes []Change

	for id, c := range curr {
		p, existed := prev[id]
		if !existed {
			changes = append(changes, Change{LocalID: id, Op: ChangeAdded, Entity: c.Clone()})
			continue
		}
		if entityChanged(p, c) {
			changes = append(changes, Change{LocalID: id, Op: ChangeUpdated, Entity: c.Clone()})
		}
	}
	for id := range prev {
		if _, still := curr[id]; !still {
			changes = append(changes, Change{LocalID: id, Op: ChangeRemoved})
		}
	}

	sort.Slice(changes, func(i, j int) bool { return changes[i].LocalID < changes[j].LocalID })
	return changes
}

func entityChanged(a, b *models.StorageEntity) bool {
	if a.IsDeleted != b.IsDeleted ||
		a.ParentID != b.ParentID ||
		a.BlockType != b.BlockType ||
		a.RemoteID != b.RemoteID ||
		a.Geometry != b.Geometry {
		return true
	}
	return !reflect.DeepEqual(a.Attributes, b.Attributes)
}
