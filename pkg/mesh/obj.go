package mesh

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/go-gl/mathgl/mgl64"
)

// WriteOBJ writes the live faces of m as Wavefront OBJ with one `vt` per
// loop of layer ref.
func WriteOBJ(w io.Writer, m *Mesh, ref AttrRef) error {
	if !ref.Exists() {
		return fmt.Errorf("mesh: write obj: %w", ErrNoUVLayer)
	}
	bw := bufio.NewWriter(w)
	if m.Name != "" {
		fmt.Fprintf(bw, "o %s\n", m.Name)
	}

	vidx := make(map[VertID]int)
	for _, v := range m.Verts() {
		co := m.verts[v].Co
		vidx[v] = len(vidx) + 1
		fmt.Fprintf(bw, "v %g %g %g\n", co[0], co[1], co[2])
	}

	faces := m.Faces()
	tidx := make(map[LoopID]int)
	for _, f := range faces {
		for _, l := range m.FaceLoops(f) {
			uv := m.UV(ref, l).UV
			tidx[l] = len(tidx) + 1
			fmt.Fprintf(bw, "vt %g %g\n", uv[0], uv[1])
		}
	}

	for _, f := range faces {
		bw.WriteString("f")
		for _, l := range m.FaceLoops(f) {
			fmt.Fprintf(bw, " %d/%d", vidx[m.loops[l].V], tidx[l])
		}
		bw.WriteString("\n")
	}
	return bw.Flush()
}

// ReadOBJ parses positions, texture coordinates and polygons from a
// Wavefront OBJ stream. Normals, groups and materials are ignored. Faces
// without texture indices get UVs at the origin.
func ReadOBJ(r io.Reader) (*Mesh, error) {
	m := New()
	ref := m.AddUVLayer(DefaultUVLayer)

	var verts []VertID
	var uvs []mgl64.Vec2
	sc := bufio.NewScanner(r)
	line := 0
	for sc.Scan() {
		line++
		fields := strings.Fields(sc.Text())
		if len(fields) == 0 || strings.HasPrefix(fields[0], "#") {
			continue
		}
		switch fields[0] {
		case "o":
			if len(fields) > 1 {
				m.Name = fields[1]
			}
		case "v":
			p, err := parseFloats(fields[1:], 3)
			if err != nil {
				return nil, fmt.Errorf("mesh: obj line %d: %w", line, err)
			}
			verts = append(verts, m.MakeVert(mgl64.Vec3{p[0], p[1], p[2]}))
		case "vt":
			p, err := parseFloats(fields[1:], 2)
			if err != nil {
				return nil, fmt.Errorf("mesh: obj line %d: %w", line, err)
			}
			uvs = append(uvs, mgl64.Vec2{p[0], p[1]})
		case "f":
			fv := make([]VertID, 0, len(fields)-1)
			ft := make([]int, 0, len(fields)-1)
			for _, tok := range fields[1:] {
				parts := strings.Split(tok, "/")
				vi, err := objIndex(parts[0], len(verts))
				if err != nil {
					return nil, fmt.Errorf("mesh: obj line %d: vertex: %w", line, err)
				}
				ti := -1
				if len(parts) > 1 && parts[1] != "" {
					ti, err = objIndex(parts[1], len(uvs))
					if err != nil {
						return nil, fmt.Errorf("mesh: obj line %d: texcoord: %w", line, err)
					}
				}
				fv = append(fv, verts[vi])
				ft = append(ft, ti)
			}
			f, err := m.MakeFace(fv)
			if err != nil {
				return nil, fmt.Errorf("mesh: obj line %d: %w", line, err)
			}
			for i, l := range m.FaceLoops(f) {
				if ft[i] >= 0 {
					m.UV(ref, l).UV = uvs[ft[i]]
				}
			}
		}
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("mesh: read obj: %w", err)
	}
	return m, nil
}

func parseFloats(fields []string, n int) ([]float64, error) {
	if len(fields) < n {
		return nil, fmt.Errorf("want %d numbers, got %d", n, len(fields))
	}
	out := make([]float64, n)
	for i := 0; i < n; i++ {
		f, err := strconv.ParseFloat(fields[i], 64)
		if err != nil {
			return nil, err
		}
		out[i] = f
	}
	return out, nil
}

// objIndex converts a 1-based (or negative, relative) OBJ index.
func objIndex(s string, n int) (int, error) {
	i, err := strconv.Atoi(s)
	if err != nil {
		return 0, err
	}
	if i < 0 {
		i = n + i
	} else {
		i--
	}
	if i < 0 || i >= n {
		return 0, fmt.Errorf("index %s out of range (%d defined)", s, n)
	}
	return i, nil
}
