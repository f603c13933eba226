// Package memory implements the engine's allocation layer: a linear arena
// for bump-pointer scratch allocation, a process-wide tracker enforcing the
// global memory ceiling, and a per-query allocator that layers a budget on
// top of an arena so one runaway query can't starve the rest of the engine.
package memory
