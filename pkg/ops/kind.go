// Package ops composes the UV building blocks into the user level
// operations a script or the command line applies to a mesh.
package ops

import (
	"errors"
	"fmt"
	"strings"
)

// ErrUnknownOp is returned for operation names ParseKind does not know.
var ErrUnknownOp = errors.New("ops: unknown operation")

// Kind names an operation.
type Kind string

const (
	KindVoxelUnwrap Kind = "voxel_unwrap"
	KindUnwrapSolve Kind = "unwrap_solve"
	KindRelax       Kind = "relax_uvs"
	KindRandomize   Kind = "randomize_uvs"
	KindReset       Kind = "reset_uvs"
	KindGrid        Kind = "grid_uvs"
	KindPack        Kind = "pack_uvs"
	KindFixSeams    Kind = "fix_seams"
)

// Kinds lists every operation in a stable order.
var Kinds = []Kind{
	KindVoxelUnwrap, KindUnwrapSolve, KindRelax, KindRandomize,
	KindReset, KindGrid, KindPack, KindFixSeams,
}

// ParseKind accepts an operation name with either dashes or underscores.
func ParseKind(s string) (Kind, error) {
	k := Kind(strings.ReplaceAll(strings.ToLower(strings.TrimSpace(s)), "-", "_"))
	for _, known := range Kinds {
		if k == known {
			return k, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownOp, s)
}
