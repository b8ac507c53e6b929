package models

import (
	"encoding/json"
	"time"

	"gorm.io/datatypes"
)

// LayoutBlock is the remotely persisted form of a placed object. The
// attribute bag (including serialized geometry) lives in a JSON column so
// block types can evolve their schemas without migrations.
type LayoutBlock struct {
	ID             int64             `gorm:"primaryKey;autoIncrement" json:"id"`
	RemoteID       string            `gorm:"type:varchar(64);uniqueIndex;not null" json:"remote_id"`
	BlockType      string            `gorm:"type:varchar(20);not null;index" json:"block_type"`
	ParentRemoteID string            `gorm:"type:varchar(64);index" json:"parent_remote_id,omitempty"`
	Name           string            `gorm:"type:varchar(100)" json:"name"`
	Path           string            `gorm:"type:varchar(500)" json:"path"`
	Attributes     datatypes.JSONMap `json:"attributes"`
	IsDeleted      bool              `gorm:"default:false;index" json:"is_deleted"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (LayoutBlock) TableName() string { return "layout_blocks" }

const geometryAttrKey = "__geometry"

// EncodeGeometry stores g inside the attribute bag under a reserved key so
// the remote row carries placement alongside the open attributes.
func EncodeGeometry(attrs map[string]interface{}, g Geometry) map[string]interface{} {
	if attrs == nil {
		attrs = make(map[string]interface{})
	}
	raw, _ := json.Marshal(g)
	var m map[string]interface{}
	_ = json.Unmarshal(raw, &m)
	attrs[geometryAttrKey] = m
	return attrs
}

// DecodeGeometry extracts the geometry previously embedded by
// EncodeGeometry. ok is false when the bag carries none.
func DecodeGeometry(attrs map[string]interface{}) (Geometry, bool) {
	var g Geometry
	raw, ok := attrs[geometryAttrKey]
	if !ok {
		return g, false
	}
	b, err := json.Marshal(raw)
	if err != nil {
		return g, false
	}
	if err := json.Unmarshal(b, &g); err != nil {
		return g, false
	}
	return g, true
}

// StripGeometry returns a copy of attrs without the reserved geometry key.
func StripGeometry(attrs map[string]interface{}) map[string]interface{} {
	if attrs == nil {
		return nil
	}
	out := make(map[string]interface{}, len(attrs))
	for k, v := range attrs {
		if k == geometryAttrKey {
			continue
		}
		out[k] = v
	}
	return out
}
