// Package scene defines the object graph a script produces: named
// primitives, placements, booleans and groups, plus the ordered list of
// UV operations to run on the resulting meshes.
package scene
