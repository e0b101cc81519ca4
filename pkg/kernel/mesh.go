package kernel

import "math"

// Mesh is an indexed triangle mesh. Positions has 3 floats per vertex,
// Indices 3 entries per triangle.
type Mesh struct {
	Positions []float64 `json:"positions"`
	Indices   []uint32  `json:"indices"`
	Name      string    `json:"name"`
}

// VertexCount returns the number of vertices.
func (m *Mesh) VertexCount() int {
	return len(m.Positions) / 3
}

// TriangleCount returns the number of triangles.
func (m *Mesh) TriangleCount() int {
	return len(m.Indices) / 3
}

// IsEmpty returns true if the mesh has no triangles.
func (m *Mesh) IsEmpty() bool {
	return len(m.Indices) == 0
}

// Vertex returns the position of vertex i.
func (m *Mesh) Vertex(i uint32) [3]float64 {
	return [3]float64{m.Positions[i*3], m.Positions[i*3+1], m.Positions[i*3+2]}
}

type weldKey [3]int64

// Weld merges vertices closer than tol (by snapping to a tol-sized grid
// and probing the neighbouring cells) and drops triangles that collapse
// as a result. It returns a new mesh.
func (m *Mesh) Weld(tol float64) *Mesh {
	if tol <= 0 {
		tol = 1e-6
	}
	inv := 1 / tol
	cells := make(map[weldKey][]uint32)
	out := &Mesh{Name: m.Name}
	remap := make([]uint32, m.VertexCount())

	for i := 0; i < m.VertexCount(); i++ {
		p := m.Vertex(uint32(i))
		k := weldKey{
			int64(math.Floor(p[0] * inv)),
			int64(math.Floor(p[1] * inv)),
			int64(math.Floor(p[2] * inv)),
		}
		found := -1
	probe:
		for dx := int64(-1); dx <= 1; dx++ {
			for dy := int64(-1); dy <= 1; dy++ {
				for dz := int64(-1); dz <= 1; dz++ {
					for _, j := range cells[weldKey{k[0] + dx, k[1] + dy, k[2] + dz}] {
						q := out.Vertex(j)
						if math.Abs(p[0]-q[0]) <= tol && math.Abs(p[1]-q[1]) <= tol && math.Abs(p[2]-q[2]) <= tol {
							found = int(j)
							break probe
						}
					}
				}
			}
		}
		if found < 0 {
			found = out.VertexCount()
			out.Positions = append(out.Positions, p[0], p[1], p[2])
			cells[k] = append(cells[k], uint32(found))
		}
		remap[i] = uint32(found)
	}

	for t := 0; t < m.TriangleCount(); t++ {
		a, b, c := remap[m.Indices[t*3]], remap[m.Indices[t*3+1]], remap[m.Indices[t*3+2]]
		if a == b || b == c || a == c {
			continue
		}
		out.Indices = append(out.Indices, a, b, c)
	}
	return out
}
