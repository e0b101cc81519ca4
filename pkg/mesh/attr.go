package mesh

import "github.com/go-gl/mathgl/mgl64"

// DefaultUVLayer is the name of the layer created by importers and
// primitives.
const DefaultUVLayer = "uv"

// UVFlag tags a single loop UV.
type UVFlag uint8

const (
	UVPin UVFlag = 1 << iota
	UVSelect
)

// UV is the per-loop texture coordinate value.
type UV struct {
	UV   mgl64.Vec2
	Flag UVFlag
}

// Pinned reports whether the UV is pinned.
func (u *UV) Pinned() bool { return u.Flag&UVPin != 0 }

type uvLayer struct {
	name string
	data []UV
}

func (l *uvLayer) grow(n int) {
	for len(l.data) < n {
		l.data = append(l.data, UV{})
	}
}

// AttrRef addresses one UV layer of a mesh. Refs stay valid for the life
// of the mesh; a negative ref means the layer does not exist.
type AttrRef int

// NoAttr is the ref of a missing layer.
const NoAttr AttrRef = -1

// Exists reports whether the ref points at a layer.
func (r AttrRef) Exists() bool { return r >= 0 }

// AddUVLayer appends a UV layer, or returns the existing one with the same
// name.
func (m *Mesh) AddUVLayer(name string) AttrRef {
	if ref := m.UVLayer(name); ref.Exists() {
		return ref
	}
	layer := &uvLayer{name: name}
	layer.grow(len(m.loops))
	m.uvLayers = append(m.uvLayers, layer)
	return AttrRef(len(m.uvLayers) - 1)
}

// UVLayer looks a layer up by name.
func (m *Mesh) UVLayer(name string) AttrRef {
	for i, layer := range m.uvLayers {
		if layer.name == name {
			return AttrRef(i)
		}
	}
	return NoAttr
}

// UVLayerName returns the name of the layer ref points at.
func (m *Mesh) UVLayerName(ref AttrRef) string {
	if !ref.Exists() || int(ref) >= len(m.uvLayers) {
		return ""
	}
	return m.uvLayers[ref].name
}

// UV returns the UV value of loop l in layer ref. It panics if the layer
// does not exist.
func (m *Mesh) UV(ref AttrRef, l LoopID) *UV {
	return &m.uvLayers[ref].data[l]
}
