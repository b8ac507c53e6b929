package geometry

import (
	"math"

	"github.com/wmstack/blueprintgo/internal/models"
)

// OBB2D is an oriented bounding box flattened onto the XZ ground plane.
// Cosine and sine of the yaw are precomputed once per box so a single
// collision query never repeats trig calls.
type OBB2D struct {
	CenterX   float64
	CenterZ   float64
	HalfWidth float64
	HalfDepth float64
	Cos       float64
	Sin       float64
}

// NewOBB builds the ground-plane box for an object at the given world-space
// position with the given extents and yaw (radians).
func NewOBB(worldPos models.Vec3, dims models.Dimensions, yaw float64) OBB2D {
	return OBB2D{
		CenterX:   worldPos.X,
		CenterZ:   worldPos.Z,
		HalfWidth: dims.Width / 2,
		HalfDepth: dims.Depth / 2,
		Cos:       math.Cos(yaw),
		Sin:       math.Sin(yaw),
	}
}

// axes returns the box's two face normals on the ground plane.
func (o OBB2D) axes() [2][2]float64 {
	return [2][2]float64{
		{o.Cos, o.Sin},
		{-o.Sin, o.Cos},
	}
}

// projectionRadius is the half-length of the box's projection onto the
// given axis.
func (o OBB2D) projectionRadius(ax, az float64) float64 {
	ux, uz := o.Cos, o.Sin
	vx, vz := -o.Sin, o.Cos
	return o.HalfWidth*math.Abs(ux*ax+uz*az) + o.HalfDepth*math.Abs(vx*ax+vz*az)
}

// Overlaps runs the separating-axis test over the four face normals of the
// two boxes. It returns false the instant any axis yields disjoint
// projection intervals; this runs on every pointer-move during a drag, so
// the early exit matters.
func Overlaps(a, b OBB2D) bool {
	dx := b.CenterX - a.CenterX
	dz := b.CenterZ - a.CenterZ

	for _, axis := range a.axes() {
		if sep := math.Abs(dx*axis[0] + dz*axis[1]); sep > a.projectionRadius(axis[0], axis[1])+b.projectionRadius(axis[0], axis[1]) {
			return false
		}
	}
	for _, axis := range b.axes() {
		if sep := math.Abs(dx*axis[0] + dz*axis[1]); sep > a.projectionRadius(axis[0], axis[1])+b.projectionRadius(axis[0], axis[1]) {
			return false
		}
	}
	return true
}

// AABB is an axis-aligned rectangle on the ground plane.
type AABB struct {
	MinX float64
	MinZ float64
	MaxX float64
	MaxZ float64
}

// NewAABB builds the axis-aligned rectangle for an unrotated box centered
// at the given world position.
func NewAABB(worldPos models.Vec3, dims models.Dimensions) AABB {
	return AABB{
		MinX: worldPos.X - dims.Width/2,
		MinZ: worldPos.Z - dims.Depth/2,
		MaxX: worldPos.X + dims.Width/2,
		MaxZ: worldPos.Z + dims.Depth/2,
	}
}

// AABB returns the tight axis-aligned extent of the oriented box. Used for
// grid cell membership only; the exact test stays with Overlaps.
func (o OBB2D) AABB() AABB {
	ex := o.HalfWidth*math.Abs(o.Cos) + o.HalfDepth*math.Abs(o.Sin)
	ez := o.HalfWidth*math.Abs(o.Sin) + o.HalfDepth*math.Abs(o.Cos)
	return AABB{
		MinX: o.CenterX - ex,
		MinZ: o.CenterZ - ez,
		MaxX: o.CenterX + ex,
		MaxZ: o.CenterZ + ez,
	}
}

// Intersects reports whether the two rectangles overlap.
func (r AABB) Intersects(o AABB) bool {
	return r.MinX <= o.MaxX && r.MaxX >= o.MinX && r.MinZ <= o.MaxZ && r.MaxZ >= o.MinZ
}

// Contains reports whether o lies entirely inside r.
func (r AABB) Contains(o AABB) bool {
	return o.MinX >= r.MinX && o.MaxX <= r.MaxX && o.MinZ >= r.MinZ && o.MaxZ <= r.MaxZ
}
