package sdfx

import (
	"math"
	"testing"

	"github.com/chazu/uvkit/pkg/kernel"
	"github.com/chazu/uvkit/pkg/mesh"
)

// bounds returns the extent of the tessellated positions.
func bounds(km *kernel.Mesh) (lo, hi [3]float64) {
	for i := range lo {
		lo[i], hi[i] = math.Inf(1), math.Inf(-1)
	}
	for i := 0; i < km.VertexCount(); i++ {
		p := km.Vertex(uint32(i))
		for a := 0; a < 3; a++ {
			lo[a] = math.Min(lo[a], p[a])
			hi[a] = math.Max(hi[a], p[a])
		}
	}
	return lo, hi
}

func TestPrimitivesAreOriginCentred(t *testing.T) {
	k := New(24)
	tests := []struct {
		name  string
		solid kernel.Solid
		half  [3]float64
	}{
		{"box", k.Box(2, 2, 1), [3]float64{1, 1, 0.5}},
		{"cylinder", k.Cylinder(3, 0.4), [3]float64{0.4, 0.4, 1.5}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			min, max := tt.solid.BoundingBox()
			for a := 0; a < 3; a++ {
				if math.Abs(min[a]+tt.half[a]) > 1e-9 || math.Abs(max[a]-tt.half[a]) > 1e-9 {
					t.Errorf("axis %d: bounds [%g, %g], want ±%g", a, min[a], max[a], tt.half[a])
				}
			}

			km, err := k.ToMesh(tt.solid)
			if err != nil {
				t.Fatalf("ToMesh: %v", err)
			}
			// Marching cubes lands within a cell of the true surface.
			cell := 2 * tt.half[2] / 24
			for _, h := range tt.half {
				cell = math.Max(cell, 2*h/24)
			}
			lo, hi := bounds(km)
			for a := 0; a < 3; a++ {
				if c := (lo[a] + hi[a]) / 2; math.Abs(c) > cell {
					t.Errorf("axis %d: mesh centre %g, want ~0", a, c)
				}
				if math.Abs(hi[a]-tt.half[a]) > cell {
					t.Errorf("axis %d: mesh reaches %g, want ~%g", a, hi[a], tt.half[a])
				}
			}
		})
	}
}

func TestWeldedOutputImportsConnected(t *testing.T) {
	k := New(20)
	crate := k.Difference(k.Box(2, 2, 1), k.Cylinder(3, 0.4))
	km, err := k.ToMesh(crate)
	if err != nil {
		t.Fatalf("ToMesh: %v", err)
	}
	for i, idx := range km.Indices {
		if int(idx) >= km.VertexCount() {
			t.Fatalf("index %d = %d out of range (%d vertices)", i, idx, km.VertexCount())
		}
	}

	m, err := mesh.FromKernel(km)
	if err != nil {
		t.Fatalf("FromKernel: %v", err)
	}
	if findings := mesh.Validate(m); mesh.HasErrors(findings) {
		t.Fatalf("welded crate has structural errors: %v", findings)
	}
	// A closed triangle surface has about twice as many faces as vertices;
	// an unwelded soup has a third.
	if m.FaceCount() < len(m.Verts()) {
		t.Errorf("faces = %d, verts = %d: vertices are not shared", m.FaceCount(), len(m.Verts()))
	}
	if !m.UVLayer(mesh.DefaultUVLayer).Exists() {
		t.Error("imported mesh has no UV layer")
	}
}

func TestZeroValueUsesDefaults(t *testing.T) {
	box := func(k *SdfxKernel) *kernel.Mesh {
		km, err := k.ToMesh(k.Box(2, 1, 1))
		if err != nil {
			t.Fatalf("ToMesh: %v", err)
		}
		return km
	}
	zero := box(&SdfxKernel{})
	def := box(&SdfxKernel{Cells: DefaultCells, Weld: DefaultWeld})
	if zero.TriangleCount() != def.TriangleCount() || zero.VertexCount() != def.VertexCount() {
		t.Errorf("zero value: %d tris %d verts, defaults: %d tris %d verts",
			zero.TriangleCount(), zero.VertexCount(), def.TriangleCount(), def.VertexCount())
	}
}

func TestCellsAndWeldControlDensity(t *testing.T) {
	die := func(k *SdfxKernel) *kernel.Mesh {
		km, err := k.ToMesh(k.Box(1, 1, 1))
		if err != nil {
			t.Fatalf("ToMesh: %v", err)
		}
		return km
	}

	coarse, fine := die(New(12)), die(New(24))
	if fine.TriangleCount() <= coarse.TriangleCount() {
		t.Errorf("24 cells gave %d triangles, 12 cells gave %d", fine.TriangleCount(), coarse.TriangleCount())
	}

	loose := die(&SdfxKernel{Cells: 24, Weld: 0.05})
	if loose.VertexCount() >= fine.VertexCount() {
		t.Errorf("loose weld kept %d vertices, tight weld %d", loose.VertexCount(), fine.VertexCount())
	}
}

func TestPlacementOrder(t *testing.T) {
	// Rotation applies before translation, the order the tessellator uses.
	k := New(16)
	placed := k.Translate(k.Rotate(k.Box(2, 1, 1), 0, 0, 90), 0, 0, 3)
	min, max := placed.BoundingBox()

	want := [2][3]float64{{-0.5, -1, 2.5}, {0.5, 1, 3.5}}
	for a := 0; a < 3; a++ {
		if math.Abs(min[a]-want[0][a]) > 1e-6 || math.Abs(max[a]-want[1][a]) > 1e-6 {
			t.Errorf("axis %d: bounds [%g, %g], want [%g, %g]", a, min[a], max[a], want[0][a], want[1][a])
		}
	}

	u := k.Union(k.Box(1, 1, 1), k.Translate(k.Box(1, 1, 1), 1.5, 0, 0))
	min, max = u.BoundingBox()
	if math.Abs(min[0]+0.5) > 1e-9 || math.Abs(max[0]-2) > 1e-9 {
		t.Errorf("union x bounds [%g, %g], want [-0.5, 2]", min[0], max[0])
	}
}
