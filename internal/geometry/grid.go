package geometry

import "math"

// DefaultCellSize is the edge length of a grid cell in meters. Racks are a
// few meters wide, so a typical box spans one to four cells.
const DefaultCellSize = 5.0

// CellKey addresses one square region of the ground plane.
type CellKey struct {
	X int
	Z int
}

// GridEntry is one indexed object: an id plus the axis-aligned extent used
// for cell membership.
type GridEntry struct {
	ID     string
	Bounds AABB
}

// Grid is the uniform broad-phase partition of the ground plane. It is
// rebuilt wholesale from a store snapshot rather than patched in place:
// layouts stay in the low hundreds of objects, so a full O(n) rebuild is
// cheaper than getting incremental updates right.
type Grid struct {
	cellSize float64
	cells    map[CellKey]map[string]struct{}
}

// NewGrid creates an empty grid. A non-positive cellSize falls back to
// DefaultCellSize.
func NewGrid(cellSize float64) *Grid {
	if cellSize <= 0 {
		cellSize = DefaultCellSize
	}
	return &Grid{
		cellSize: cellSize,
		cells:    make(map[CellKey]map[string]struct{}),
	}
}

// Rebuild clears the grid and inserts every entry into each cell its
// bounds overlap.
func (g *Grid) Rebuild(entries []GridEntry) {
	g.cells = make(map[CellKey]map[string]struct{})
	for _, e := range entries {
		g.insert(e.ID, e.Bounds)
	}
}

func (g *Grid) insert(id string, bounds AABB) {
	minX, minZ := g.cellCoord(bounds.MinX), g.cellCoord(bounds.MinZ)
	maxX, maxZ := g.cellCoord(bounds.MaxX), g.cellCoord(bounds.MaxZ)
	for cx := minX; cx <= maxX; cx++ {
		for cz := minZ; cz <= maxZ; cz++ {
			key := CellKey{X: cx, Z: cz}
			cell, ok := g.cells[key]
			if !ok {
				cell = make(map[string]struct{})
				g.cells[key] = cell
			}
			cell[id] = struct{}{}
		}
	}
}

// Query returns the deduplicated union of all cell contents overlapping the
// rectangle. An object spanning several cells appears once.
func (g *Grid) Query(bounds AABB) map[string]struct{} {
	result := make(map[string]struct{})
	minX, minZ := g.cellCoord(bounds.MinX), g.cellCoord(bounds.MinZ)
	maxX, maxZ := g.cellCoord(bounds.MaxX), g.cellCoord(bounds.MaxZ)
	for cx := minX; cx <= maxX; cx++ {
		for cz := minZ; cz <= maxZ; cz++ {
			for id := range g.cells[CellKey{X: cx, Z: cz}] {
				result[id] = struct{}{}
			}
		}
	}
	return result
}

func (g *Grid) cellCoord(v float64) int {
	return int(math.Floor(v / g.cellSize))
}

// CellSize returns the configured cell edge length.
func (g *Grid) CellSize() float64 { return g.cellSize }

// Occupancy returns per-cell object counts. Debug/visualization only, not
// on the query path.
func (g *Grid) Occupancy() map[CellKey]int {
	out := make(map[CellKey]int, len(g.cells))
	for key, cell := range g.cells {
		out[key] = len(cell)
	}
	return out
}

// CellContents returns the ids stored in one cell, for inspection.
func (g *Grid) CellContents(key CellKey) []string {
	cell := g.cells[key]
	ids := make([]string, 0, len(cell))
	for id := range cell {
		ids = append(ids, id)
	}
	return ids
}
