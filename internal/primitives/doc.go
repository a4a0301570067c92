// Package primitives provides the foundational, zero-dependency data
// structures for the HSM runtime: the event value type and its kind enum.
//
// This package uses ONLY the Go standard library. It sits at the bottom of
// the dependency order (core depends on primitives, never the reverse) so
// that the event shape stays a plain, allocation-cheap value usable from
// any context without pulling in the machine/registry/timer machinery.
package primitives
