// Package voxel segments a mesh into near-planar charts with a bounding
// volume hierarchy over its triangles and lays the charts out as an
// initial UV unwrap.
package voxel

import (
	"math"
	"slices"

	"github.com/chazu/uvkit/pkg/mesh"
	"github.com/go-gl/mathgl/mgl64"
)

// Options tunes segmentation.
type Options struct {
	// SplitVar is the normal variance above which a node splits.
	SplitVar float64
	// LeafLimit is the most triangles a leaf may hold.
	LeafLimit  int
	DepthLimit int
	// SetSeams flags mesh edges between charts as SEAM.
	SetSeams bool
}

// DefaultOptions returns the stock parameters.
func DefaultOptions() Options {
	return Options{SplitVar: 0.16, LeafLimit: 255, DepthLimit: 25, SetSeams: true}
}

// Tri is one triangle of a face's fan triangulation.
type Tri struct {
	Face     mesh.FaceID
	Loops    [3]mesh.LoopID
	No       mgl64.Vec3
	Area     float64
	Centroid mgl64.Vec3
}

// Node is a BVH node. Leaves have no children.
type Node struct {
	// Min and Max bound the centroids of the node's triangles.
	Min, Max mgl64.Vec3
	Depth    int
	Tris     []int
	Children []*Node

	// AvgNo is the area weighted normal sum, AvgNoTot the summed area.
	AvgNo    mgl64.Vec3
	AvgNoTot float64
}

// Leaf reports whether n has no children.
func (n *Node) Leaf() bool { return len(n.Children) == 0 }

// BVH is a triangle hierarchy split by normal variance.
type BVH struct {
	Root *Node
	Tris []Tri
	opts Options
}

// Build triangulates faces of m and splits the triangle set recursively.
func Build(m *mesh.Mesh, faces []mesh.FaceID, opts Options) *BVH {
	b := &BVH{opts: opts}
	for _, f := range faces {
		if !m.FaceAlive(f) {
			continue
		}
		for _, tri := range m.FaceTris(f) {
			p0 := m.Vert(m.Loop(tri[0]).V).Co
			p1 := m.Vert(m.Loop(tri[1]).V).Co
			p2 := m.Vert(m.Loop(tri[2]).V).Co
			no := p1.Sub(p0).Cross(p2.Sub(p0))
			if no.Len() > 0 {
				no = no.Normalize()
			}
			b.Tris = append(b.Tris, Tri{
				Face:     f,
				Loops:    tri,
				No:       no,
				Area:     mesh.TriArea(p0, p1, p2),
				Centroid: p0.Add(p1).Add(p2).Mul(1.0 / 3),
			})
		}
	}

	idx := make([]int, len(b.Tris))
	for i := range idx {
		idx[i] = i
	}
	b.Root = b.build(idx, 0)
	return b
}

func (b *BVH) build(idx []int, depth int) *Node {
	n := &Node{Depth: depth, Tris: idx}
	n.Min = mgl64.Vec3{math.Inf(1), math.Inf(1), math.Inf(1)}
	n.Max = mgl64.Vec3{math.Inf(-1), math.Inf(-1), math.Inf(-1)}
	for _, i := range idx {
		t := &b.Tris[i]
		n.AvgNo = n.AvgNo.Add(t.No.Mul(t.Area))
		n.AvgNoTot += t.Area
		for k := 0; k < 3; k++ {
			n.Min[k] = math.Min(n.Min[k], t.Centroid[k])
			n.Max[k] = math.Max(n.Max[k], t.Centroid[k])
		}
	}

	if !b.shouldSplit(n) {
		return n
	}

	// Median split on the longest axis of the centroid bounds.
	ext := n.Max.Sub(n.Min)
	axis := 0
	if ext[1] > ext[axis] {
		axis = 1
	}
	if ext[2] > ext[axis] {
		axis = 2
	}
	sorted := slices.Clone(idx)
	slices.SortStableFunc(sorted, func(a, c int) int {
		ca, cc := b.Tris[a].Centroid[axis], b.Tris[c].Centroid[axis]
		switch {
		case ca < cc:
			return -1
		case ca > cc:
			return 1
		}
		return 0
	})
	half := len(sorted) / 2
	n.Children = []*Node{
		b.build(sorted[:half], depth+1),
		b.build(sorted[half:], depth+1),
	}
	n.Tris = nil
	return n
}

func (b *BVH) shouldSplit(n *Node) bool {
	if n.Depth >= b.opts.DepthLimit || len(n.Tris) < 2 {
		return false
	}
	if len(n.Tris) > b.opts.LeafLimit {
		return true
	}
	return b.Variance(n) > b.opts.SplitVar
}

// Variance is the area weighted mean of (angle to the average normal / π)²
// over the node's triangles. Normals that cancel out count as maximal
// variance.
func (b *BVH) Variance(n *Node) float64 {
	if n.AvgNoTot == 0 {
		return 0
	}
	if n.AvgNo.Len() < 1e-5*n.AvgNoTot {
		return 1
	}
	avg := n.AvgNo.Normalize()

	sum, tot := 0.0, 0.0
	for _, i := range b.collect(n) {
		t := &b.Tris[i]
		th := math.Acos(mgl64.Clamp(t.No.Dot(avg), -1, 1)) / math.Pi
		sum += th * th * t.Area
		tot += t.Area
	}
	if tot == 0 {
		return 0
	}
	return sum / tot
}

func (b *BVH) collect(n *Node) []int {
	if n.Leaf() {
		return n.Tris
	}
	var out []int
	for _, c := range n.Children {
		out = append(out, b.collect(c)...)
	}
	return out
}

// Leaves returns the leaf nodes depth first, left to right.
func (b *BVH) Leaves() []*Node {
	var out []*Node
	var walk func(n *Node)
	walk = func(n *Node) {
		if n == nil {
			return
		}
		if n.Leaf() {
			out = append(out, n)
			return
		}
		for _, c := range n.Children {
			walk(c)
		}
	}
	walk(b.Root)
	return out
}

// Chart is a set of faces laid out together.
type Chart struct {
	Faces  []mesh.FaceID
	Normal mgl64.Vec3
}

// Charts turns every non-empty leaf into a chart. A face whose triangles
// landed in several leaves belongs to the first one.
func (b *BVH) Charts(m *mesh.Mesh) []*Chart {
	done := make(map[mesh.FaceID]struct{})
	var out []*Chart
	for _, leaf := range b.Leaves() {
		c := &Chart{}
		for _, i := range leaf.Tris {
			f := b.Tris[i].Face
			if _, ok := done[f]; ok {
				continue
			}
			done[f] = struct{}{}
			c.Faces = append(c.Faces, f)
			c.Normal = c.Normal.Add(m.FaceNormal(f))
		}
		if len(c.Faces) == 0 {
			continue
		}
		if c.Normal.Len() < 1e-12 {
			c.Normal = mgl64.Vec3{0, 0, 1}
		}
		c.Normal = c.Normal.Normalize()
		out = append(out, c)
	}
	return out
}
