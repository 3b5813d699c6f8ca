// Package internaldefs exposes stable metric name and bucket definitions shared by
// exporter implementations.
//
// Counter and histogram definitions live here so every exporter reports identical
// metric names and bucket boundaries. Changes to definitions in this package affect
// all exporters simultaneously.
//
// # What this package must NOT do
//
//   - Perform I/O.
//   - Depend on any exporter package.
package internaldefs
