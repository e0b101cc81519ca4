// Package uv derives a UV graph from the per-corner texture coordinates of
// a face subset and operates on it.
//
// A Wrangler merges loop UVs that fall within a snap distance into corners,
// joins corners that are adjacent inside a face with graph edges, flood
// fills the graph into islands and tags seams. On top of that the package
// provides island packing, Laplacian relaxation and the UnwrapSolver, a
// constraint based conformal relaxation with velocity damping.
//
// Wranglers and solvers can be saved to a snapshot keyed by element EIDs
// and restored against a mesh that may have changed in the meantime; a
// restore that detects a stale snapshot fails and the caller rebuilds.
package uv
