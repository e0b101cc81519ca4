package mesh

import (
	"fmt"

	"github.com/chazu/uvkit/pkg/kernel"
	"github.com/go-gl/mathgl/mgl64"
)

// FromKernel builds a half-edge mesh from an indexed triangle mesh. The
// kernel mesh is expected to be welded already; triangles that repeat a
// vertex or have no area are skipped. A DefaultUVLayer is created with all
// UVs at the origin.
func FromKernel(km *kernel.Mesh) (*Mesh, error) {
	if km == nil || km.IsEmpty() {
		return nil, fmt.Errorf("mesh: import of empty kernel mesh: %w", ErrInvariant)
	}
	m := New()
	m.Name = km.Name
	m.AddUVLayer(DefaultUVLayer)

	verts := make([]VertID, km.VertexCount())
	for i := range verts {
		p := km.Vertex(uint32(i))
		verts[i] = m.MakeVert(mgl64.Vec3{p[0], p[1], p[2]})
	}

	skipped := 0
	for t := 0; t < km.TriangleCount(); t++ {
		a, b, c := km.Indices[t*3], km.Indices[t*3+1], km.Indices[t*3+2]
		if int(a) >= len(verts) || int(b) >= len(verts) || int(c) >= len(verts) {
			return nil, fmt.Errorf("mesh: triangle %d indexes past %d vertices: %w", t, len(verts), ErrInvariant)
		}
		if a == b || b == c || a == c {
			skipped++
			continue
		}
		if TriArea(m.verts[verts[a]].Co, m.verts[verts[b]].Co, m.verts[verts[c]].Co) < 1e-14 {
			skipped++
			continue
		}
		if _, err := m.MakeFace([]VertID{verts[a], verts[b], verts[c]}); err != nil {
			return nil, fmt.Errorf("mesh: triangle %d: %w", t, err)
		}
	}
	if m.FaceCount() == 0 {
		return nil, fmt.Errorf("mesh: all %d triangles degenerate: %w", skipped, ErrInvariant)
	}
	return m, nil
}
