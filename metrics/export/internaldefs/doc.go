// Package internaldefs holds the metric names, help texts and bucket bounds
// shared by the Prometheus and OTel exporters, and [Read], which turns one
// store snapshot into a definition-ordered [Reading] both exporters walk.
//
// # What this package must NOT do
//
//   - Import any exporter package.
//   - Perform I/O beyond calling the Source.
package internaldefs
