package uv

import (
	"math"

	"github.com/chazu/uvkit/pkg/mesh"
	"github.com/go-gl/mathgl/mgl64"
)

const (
	// MinSnapLimit is the smallest snap distance the hash accepts.
	MinSnapLimit = 0.00005
	// DefaultSnapLimit is the merge distance used when none is given.
	DefaultSnapLimit = 0.001

	hashBoundsMin = -4.0
	hashBoundsMax = 4.0
	maxCellDimen  = 4096
)

// SpatialHash buckets loops by their UV into a square grid of cells over
// [hashBoundsMin, hashBoundsMax]². Points outside the bounds land in the
// edge cells.
type SpatialHash struct {
	limit float64
	dimen int
	mul   float64
	cells map[int][]mesh.LoopID
}

// NewSpatialHash returns an empty hash sized for limit.
func NewSpatialHash(limit float64) *SpatialHash {
	h := &SpatialHash{}
	h.Reset(limit)
	return h
}

// Reset clears every cell and resizes the grid for limit.
func (h *SpatialHash) Reset(limit float64) {
	h.cells = make(map[int][]mesh.LoopID)
	h.LoadSnapLimit(limit)
}

// LoadSnapLimit recomputes the cell size. The cell count is a quarter of
// the number of limit-sized steps across the bounds, so a cell spans
// about four snap distances.
func (h *SpatialHash) LoadSnapLimit(limit float64) {
	limit = math.Max(limit, MinSnapLimit)
	width := hashBoundsMax - hashBoundsMin

	dimen := int(math.Ceil(width/limit)) >> 2
	dimen = min(max(dimen, 1), maxCellDimen)

	h.limit = limit
	h.dimen = dimen
	h.mul = float64(dimen) / width
}

// Limit is the snap distance the hash was sized for.
func (h *SpatialHash) Limit() float64 { return h.limit }

// Dimen is the number of cells along each axis.
func (h *SpatialHash) Dimen() int { return h.dimen }

func (h *SpatialHash) cell(p mgl64.Vec2) (int, int) {
	clamp := func(f float64) int {
		if math.IsNaN(f) {
			return 0
		}
		i := int(math.Floor((f - hashBoundsMin) * h.mul))
		return min(max(i, 0), h.dimen-1)
	}
	return clamp(p[0]), clamp(p[1])
}

// Key maps p to its cell index.
func (h *SpatialHash) Key(p mgl64.Vec2) int {
	x, y := h.cell(p)
	return y*h.dimen + x
}

// Add files loop l under the cell containing p.
func (h *SpatialHash) Add(l mesh.LoopID, p mgl64.Vec2) {
	k := h.Key(p)
	h.cells[k] = append(h.cells[k], l)
}

// Near returns the loops in the cell of p and its eight neighbours.
func (h *SpatialHash) Near(p mgl64.Vec2) []mesh.LoopID {
	cx, cy := h.cell(p)
	var out []mesh.LoopID
	for y := cy - 1; y <= cy+1; y++ {
		if y < 0 || y >= h.dimen {
			continue
		}
		for x := cx - 1; x <= cx+1; x++ {
			if x < 0 || x >= h.dimen {
				continue
			}
			out = append(out, h.cells[y*h.dimen+x]...)
		}
	}
	return out
}
