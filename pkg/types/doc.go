// Package types defines the Go types shared by the agent and the server.
//
// Datum is the canonical in-memory event-count sample. RawDatum is the shape
// decoded from the wire, where any count may be missing, null or garbage;
// RawDatum.Normalize coerces it to a Datum once, at the boundary, so nothing
// downstream has to null-check.
package types
