package uv

import (
	"encoding/binary"
	"hash/fnv"

	"github.com/chazu/uvkit/pkg/mesh"
)

// SeamHash digests (edge EID, seam flag) for every edge touching faces.
// The digest is a sum of per-edge hashes and so does not depend on face
// or loop order.
func SeamHash(m *mesh.Mesh, faces []mesh.FaceID) uint64 {
	seen := make(map[mesh.EdgeID]struct{})
	var sum uint64
	var buf [9]byte
	for _, f := range faces {
		if !m.FaceAlive(f) {
			continue
		}
		for _, l := range m.FaceLoops(f) {
			e := m.Loop(l).E
			if _, ok := seen[e]; ok {
				continue
			}
			seen[e] = struct{}{}

			ed := m.Edge(e)
			binary.LittleEndian.PutUint64(buf[:8], uint64(ed.EID))
			buf[8] = 0
			if ed.Flag&mesh.FlagSeam != 0 {
				buf[8] = 1
			}
			h := fnv.New64a()
			h.Write(buf[:])
			sum += h.Sum64()
		}
	}
	return sum
}
