package models

// BlockType classifies a placed object on the warehouse blueprint.
type BlockType string

const (
	BlockFloor    BlockType = "floor"
	BlockZone     BlockType = "zone"
	BlockRack     BlockType = "rack"
	BlockObstacle BlockType = "obstacle"
)

// Collidable reports whether this block type participates in collision
// detection. Zones and floors are containers; only racks and obstacles
// occupy floor space.
func (bt BlockType) Collidable() bool {
	return bt == BlockRack || bt == BlockObstacle
}

// Valid reports whether bt is one of the four known block types.
func (bt BlockType) Valid() bool {
	switch bt {
	case BlockFloor, BlockZone, BlockRack, BlockObstacle:
		return true
	}
	return false
}

// Vec3 is a position in warehouse space. Y is vertical; collision runs on
// the XZ ground plane only.
type Vec3 struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

// Add returns the component-wise sum of v and o.
func (v Vec3) Add(o Vec3) Vec3 {
	return Vec3{X: v.X + o.X, Y: v.Y + o.Y, Z: v.Z + o.Z}
}

// Dimensions holds an object's extent along each axis.
type Dimensions struct {
	Width  float64 `json:"width"`  // X
	Height float64 `json:"height"` // Y
	Depth  float64 `json:"depth"`  // Z
}

// Geometry is an entity's local-space placement: position relative to the
// parent, extents, and yaw rotation about the vertical axis in radians.
// There is no pitch or roll.
type Geometry struct {
	Position   Vec3       `json:"position"`
	Dimensions Dimensions `json:"dimensions"`
	Yaw        float64    `json:"yaw"`
}

// StorageEntity is a placed object in the working copy. LocalID is the
// primary key for the lifetime of the client session; RemoteID is assigned
// once the entity is durably persisted and stays empty for drafts.
type StorageEntity struct {
	LocalID    string                 `json:"local_id"`
	RemoteID   string                 `json:"remote_id,omitempty"`
	ParentID   string                 `json:"parent_id,omitempty"`
	BlockType  BlockType              `json:"block_type"`
	Geometry   Geometry               `json:"geometry"`
	Attributes map[string]interface{} `json:"attributes,omitempty"`
	Path       string                 `json:"path,omitempty"`
	IsDeleted  bool                   `json:"is_deleted,omitempty"`
}

// DisplayName returns the user-facing name for collision messages and
// labels: the "name" attribute when present, the ancestry path otherwise.
func (e *StorageEntity) DisplayName() string {
	if e.Attributes != nil {
		if name, ok := e.Attributes["name"].(string); ok && name != "" {
			return name
		}
	}
	if e.Path != "" {
		return e.Path
	}
	return e.LocalID
}

// Clone returns a deep copy of the entity. Attribute values are assumed to
// be JSON-shaped (maps, slices, scalars).
func (e *StorageEntity) Clone() *StorageEntity {
	c := *e
	c.Attributes = cloneAttributes(e.Attributes)
	return &c
}

func cloneAttributes(attrs map[string]interface{}) map[string]interface{} {
	if attrs == nil {
		return nil
	}
	out := make(map[string]interface{}, len(attrs))
	for k, v := range attrs {
		out[k] = cloneValue(v)
	}
	return out
}

func cloneValue(v interface{}) interface{} {
	switch t := v.(type) {
	case map[string]interface{}:
		return cloneAttributes(t)
	case []interface{}:
		out := make([]interface{}, len(t))
		for i, el := range t {
			out[i] = cloneValue(el)
		}
		return out
	default:
		return v
	}
}

// EntityPatch describes a partial update to an entity. Nil fields mean
// "leave unchanged"; Attributes entries are merged key-by-key into the
// existing bag.
type EntityPatch struct {
	Geometry   *Geometry              `json:"geometry,omitempty"`
	ParentID   *string                `json:"parent_id,omitempty"`
	Attributes map[string]interface{} `json:"attributes,omitempty"`
}
