// Package runs keeps the live packing runs of a process. A packing.Engine is
// single-writer, so every run carries its own mutex and the Manager only
// guards the id map.
package runs
