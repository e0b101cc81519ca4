package uv

import (
	"math"
	"math/rand/v2"
	"slices"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/samber/lo"
)

// PackOptions tunes PackIslands.
type PackOptions struct {
	// IgnorePinned leaves islands with pinned loops where they are.
	IgnorePinned bool
	// SelLoopsOnly packs only islands with selected loops.
	SelLoopsOnly bool

	Margin        float64
	RotationSteps int
	MaxDepth      int
	// SkipChance is the probability a fitting candidate is passed over.
	SkipChance float64

	// Rand overrides the Wrangler's random source.
	Rand *rand.Rand
}

// DefaultPackOptions returns the stock packing parameters.
func DefaultPackOptions() PackOptions {
	return PackOptions{
		Margin:        0.001,
		RotationSteps: 16,
		MaxDepth:      10,
		SkipChance:    0.15,
	}
}

func (o PackOptions) eligible(is *Island) bool {
	if o.IgnorePinned && is.HasPins {
		return false
	}
	if o.SelLoopsOnly && !is.HasSelLoops {
		return false
	}
	return true
}

// PackIslands arranges the eligible islands inside the unit square. Each
// island first takes the rotation out of RotationSteps that minimises its
// AABB, then all are scaled so their boxes cover about 0.75² of the square
// and placed by a greedy recursive partition. Corner positions are updated
// in place; call Finish to write them to the mesh.
func (w *Wrangler) PackIslands(opts PackOptions) {
	rng := opts.Rand
	if rng == nil {
		rng = w.rng
	}
	if opts.RotationSteps <= 0 {
		opts.RotationSteps = 1
	}

	islands := lo.Filter(w.islands, func(is *Island, _ int) bool {
		return opts.eligible(is) && len(is.Corners) > 0
	})
	if len(islands) == 0 {
		return
	}

	for _, is := range islands {
		w.minimizeRotation(is, opts.RotationSteps)
	}

	total := lo.SumBy(islands, func(is *Island) float64 { return is.Area })
	if total == 0 || math.IsNaN(total) {
		w.log.Warn("skipping pack", "reason", "degenerate total area", "area", total)
		return
	}
	ratio := 0.75 / math.Sqrt(total)
	for _, is := range islands {
		w.scaleIsland(is, is.Min, ratio)
	}

	pending := slices.Clone(islands)
	slices.SortStableFunc(pending, func(a, b *Island) int {
		switch {
		case a.Area > b.Area:
			return -1
		case a.Area < b.Area:
			return 1
		}
		return 0
	})

	p := &partitioner{w: w, opts: opts, rng: rng, pending: pending}
	p.rec(mgl64.Vec2{0, 0}, mgl64.Vec2{1, 1}, 0, 0)

	if len(p.pending) > 0 {
		w.log.Debug("packing leftovers", "islands", len(p.pending))
		w.shelfLeftovers(p.pending, opts.Margin)
		w.fitUnitSquare(islands)
	}
}

// minimizeRotation rotates is about its AABB centre to the angle in
// [0, π/2) with the smallest AABB area.
func (w *Wrangler) minimizeRotation(is *Island, steps int) {
	w.UpdateAABB(is)
	for _, c := range is.Corners {
		w.Corners[c].Orig = w.Corners[c].Co
	}
	cent := is.Centre()
	dth := math.Pi * 0.5 / float64(steps)

	best, bestTh := math.Inf(1), 0.0
	for i := 0; i < steps; i++ {
		th := float64(i) * dth
		w.rotateFromOrig(is, cent, th)
		w.UpdateAABB(is)
		size := (is.Max[0] - is.Min[0]) * (is.Max[1] - is.Min[1])
		if size < best {
			best, bestTh = size, th
		}
	}
	w.rotateFromOrig(is, cent, bestTh)
	w.UpdateAABB(is)
}

func (w *Wrangler) rotateFromOrig(is *Island, cent mgl64.Vec2, th float64) {
	rot := mgl64.Rotate2D(th)
	for _, cid := range is.Corners {
		c := w.Corners[cid]
		c.Co = rot.Mul2x1(c.Orig.Sub(cent)).Add(cent)
	}
}

func (w *Wrangler) rotateIsland(is *Island, cent mgl64.Vec2, th float64) {
	rot := mgl64.Rotate2D(th)
	for _, cid := range is.Corners {
		c := w.Corners[cid]
		c.Co = rot.Mul2x1(c.Co.Sub(cent)).Add(cent)
	}
	w.UpdateAABB(is)
}

func (w *Wrangler) scaleIsland(is *Island, about mgl64.Vec2, s float64) {
	for _, cid := range is.Corners {
		c := w.Corners[cid]
		c.Co = c.Co.Sub(about).Mul(s).Add(about)
	}
	w.UpdateAABB(is)
}

func (w *Wrangler) translateIsland(is *Island, d mgl64.Vec2) {
	for _, cid := range is.Corners {
		w.Corners[cid].Co = w.Corners[cid].Co.Add(d)
	}
	w.UpdateAABB(is)
}

type partitioner struct {
	w       *Wrangler
	opts    PackOptions
	rng     *rand.Rand
	pending []*Island
}

func (p *partitioner) rec(a, b mgl64.Vec2, axis, depth int) {
	if len(p.pending) == 0 || depth > p.opts.MaxDepth {
		return
	}
	size := b.Sub(a)
	area := size[0] * size[1]

	best, pick := math.Inf(1), -1
	for i, is := range p.pending {
		if p.rng.Float64() < p.opts.SkipChance {
			continue
		}
		if is.Area <= area && math.Abs(area-is.Area) < best {
			best, pick = math.Abs(area-is.Area), i
		}
	}

	if pick < 0 || (best > area*0.5 && depth < p.opts.MaxDepth-1) {
		mid := a[axis] + size[axis]*0.5
		b1, a2 := b, a
		b1[axis] = mid
		a2[axis] = mid
		p.rec(a, b1, axis^1, depth+1)
		p.rec(a2, b, axis^1, depth+1)
		return
	}

	is := p.pending[pick]
	p.pending = slices.Delete(p.pending, pick, pick+1)
	p.place(is, a, size)
}

// place rotates is a quarter turn when its long axis disagrees with the
// rectangle's, then scales it into the rectangle minus the margin keeping
// its aspect.
func (p *partitioner) place(is *Island, origin, size mgl64.Vec2) {
	w := p.w
	islandAxis := 0
	if is.BoxSize[1] > is.BoxSize[0] {
		islandAxis = 1
	}
	rectAxis := 0
	if size[1] > size[0] {
		rectAxis = 1
	}
	if islandAxis != rectAxis {
		w.rotateIsland(is, is.Centre(), math.Pi*0.5)
	}

	margin := p.opts.Margin
	avail := mgl64.Vec2{
		math.Max(size[0]-margin*2, MinIslandSize),
		math.Max(size[1]-margin*2, MinIslandSize),
	}
	ratio := (is.BoxSize[0] / is.BoxSize[1]) / (avail[0] / avail[1])

	base, box := is.Min, is.BoxSize
	for _, cid := range is.Corners {
		c := w.Corners[cid]
		u := (c.Co[0] - base[0]) / box[0] * avail[0]
		v := (c.Co[1] - base[1]) / box[1] * avail[1]
		if ratio > 1 {
			v /= ratio
		} else {
			u *= ratio
		}
		c.Co = mgl64.Vec2{u + origin[0] + margin, v + origin[1] + margin}
	}
	w.UpdateAABB(is)
}

// shelfLeftovers lays islands the partition could not place in columns to
// the right of the unit square.
func (w *Wrangler) shelfLeftovers(rest []*Island, margin float64) {
	x, y, colW := 1+margin, 0.0, 0.0
	for _, is := range rest {
		if y > 0 && y+is.BoxSize[1] > 1 {
			x += colW + margin
			y, colW = 0, 0
		}
		w.translateIsland(is, mgl64.Vec2{x, y}.Sub(is.Min))
		y += is.BoxSize[1] + margin
		colW = math.Max(colW, is.BoxSize[0])
	}
}

// fitUnitSquare uniformly rescales islands so their union lies in [0,1]².
func (w *Wrangler) fitUnitSquare(islands []*Island) {
	bmin := mgl64.Vec2{math.Inf(1), math.Inf(1)}
	bmax := mgl64.Vec2{math.Inf(-1), math.Inf(-1)}
	for _, is := range islands {
		bmin = mgl64.Vec2{math.Min(bmin[0], is.Min[0]), math.Min(bmin[1], is.Min[1])}
		bmax = mgl64.Vec2{math.Max(bmax[0], is.Max[0]), math.Max(bmax[1], is.Max[1])}
	}
	ext := math.Max(bmax[0]-bmin[0], bmax[1]-bmin[1])
	if ext <= 0 || math.IsInf(ext, 0) {
		return
	}
	s := 1 / ext
	for _, is := range islands {
		for _, cid := range is.Corners {
			c := w.Corners[cid]
			c.Co = c.Co.Sub(bmin).Mul(s)
		}
		w.UpdateAABB(is)
	}
}
