package uv

import (
	"errors"
	"testing"

	"github.com/chazu/uvkit/pkg/mesh"
	"github.com/go-gl/mathgl/mgl64"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type loopState struct {
	corner CornerID
	co     mgl64.Vec2
	island int
}

func captureLoops(w *Wrangler) map[mesh.LoopID]loopState {
	out := make(map[mesh.LoopID]loopState)
	for _, f := range w.Faces() {
		for _, l := range w.Mesh.FaceLoops(f) {
			c, _ := w.CornerOf(l)
			out[l] = loopState{c, w.Corner(c).Co, w.IslandOfLoop(l).Index}
		}
	}
	return out
}

func TestSaveRestoreRoundTrip(t *testing.T) {
	m, ref := splitGrid(t)
	w := NewWrangler(m, nil, ref)
	w.BuildIslands(false)
	want := captureLoops(w)
	nIslands := len(w.Islands())

	snap := w.Save()
	assert.True(t, w.IsSaved())
	assert.Empty(t, w.Corners)

	require.True(t, w.Restore(m))
	assert.False(t, w.IsSaved())
	assert.Len(t, w.Islands(), nIslands)
	assert.Equal(t, want, captureLoops(w))
	assert.Equal(t, snap.SeamHash, w.SeamHash())
}

func TestSnapshotEncodeDecode(t *testing.T) {
	m, ref := splitGrid(t)
	w := NewWrangler(m, nil, ref)
	w.BuildIslands(false)
	want := captureLoops(w)

	b, err := w.Save().Encode()
	require.NoError(t, err)
	snap, err := DecodeSnapshot(b)
	require.NoError(t, err)
	assert.Equal(t, m.LibID.String(), snap.LibID)
	assert.Equal(t, mesh.DefaultUVLayer, snap.UVLayer)

	w2 := NewWranglerFromSnapshot(snap)
	require.True(t, w2.Restore(m))
	assert.Equal(t, want, captureLoops(w2))

	_, err = DecodeSnapshot([]byte{0xc1})
	assert.Error(t, err)
}

func TestRestoreDetectsStaleState(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(m *mesh.Mesh) *mesh.Mesh
	}{
		{"deleted face", func(m *mesh.Mesh) *mesh.Mesh {
			m.KillFace(m.Faces()[0])
			return m
		}},
		{"other mesh", func(*mesh.Mesh) *mesh.Mesh {
			return mesh.Grid(2)
		}},
		{"seam change", func(m *mesh.Mesh) *mesh.Mesh {
			m.Edge(m.Edges()[0]).Flag |= mesh.FlagSeam
			return m
		}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			m, ref := splitGrid(t)
			w := NewWrangler(m, nil, ref)
			w.BuildIslands(false)
			w.Save()

			target := tc.mutate(m)
			assert.False(t, w.Restore(target))
			assert.True(t, w.IsSaved(), "failed restore keeps the snapshot")
			assert.True(t, errors.Is(w.restore(target), ErrStale))
		})
	}
}

func TestRestoreWithoutSave(t *testing.T) {
	m := mesh.Quad()
	w := NewWrangler(m, nil, m.UVLayer(mesh.DefaultUVLayer))
	assert.False(t, w.Restore(m))
}

func TestRestoreOrRebuild(t *testing.T) {
	m, ref := splitGrid(t)
	w := NewWrangler(m, nil, ref)
	w.BuildIslands(false)
	w.Save()

	got, reused := RestoreOrRebuild(m, nil, ref, w, false)
	assert.True(t, reused)
	assert.Same(t, w, got)

	got.Save()
	faces := m.Faces()[:2]
	got2, reused := RestoreOrRebuild(m, faces, ref, got, false)
	assert.False(t, reused, "face set changed")
	assert.Len(t, got2.Faces(), 2)
	assert.NotEmpty(t, got2.Islands())

	got3, reused := RestoreOrRebuild(m, nil, ref, nil, false)
	assert.False(t, reused)
	assert.Len(t, got3.Islands(), 2)
}

func TestRestoreOrRebuildLiveSeamEdit(t *testing.T) {
	m := mesh.Grid(2)
	ref := m.UVLayer(mesh.DefaultUVLayer)
	w := NewWrangler(m, nil, ref)
	w.BuildIslands(true)
	require.Len(t, w.Islands(), 1)

	got, reused := RestoreOrRebuild(m, nil, ref, w, true)
	assert.True(t, reused, "unchanged mesh keeps the live graph")
	assert.Same(t, w, got)

	// Cut the grid down the middle column.
	for _, e := range m.Edges() {
		ed := m.Edge(e)
		if m.Vert(ed.V1).Co.X() == 1 && m.Vert(ed.V2).Co.X() == 1 {
			ed.Flag |= mesh.FlagSeam
		}
	}
	require.NotEqual(t, w.SeamHash(), SeamHash(m, m.Faces()))

	got, reused = RestoreOrRebuild(m, nil, ref, w, true)
	assert.False(t, reused)
	assert.NotSame(t, w, got)
	assert.Len(t, got.Islands(), 2)
}

func TestRestoreOrRebuildTopologyMode(t *testing.T) {
	m, ref := splitGrid(t)
	w := NewWrangler(m, nil, ref)
	w.BuildIslands(false)
	require.Len(t, w.Islands(), 2)

	got, reused := RestoreOrRebuild(m, nil, ref, w, true)
	assert.False(t, reused, "live graph built from UV proximity")
	assert.Len(t, got.Islands(), 1, "seam build ignores the UV gap")

	got.Save()
	again, reused := RestoreOrRebuild(m, nil, ref, got, false)
	assert.False(t, reused, "snapshot built from mesh seams")
	assert.Len(t, again.Islands(), 2)

	again.Save()
	b, err := again.Saved().Encode()
	require.NoError(t, err)
	snap, err := DecodeSnapshot(b)
	require.NoError(t, err)
	assert.False(t, snap.SeamTopo)
	_, reused = RestoreOrRebuild(m, nil, ref, NewWranglerFromSnapshot(snap), false)
	assert.True(t, reused)
}
