// Package domain defines the core domain types for the lanmon network
// monitoring system.
//
// This package contains the entities and value objects the discovery
// pipeline operates on: observations produced by probe strategies,
// durable devices keyed by MAC address, lifecycle events recorded
// against devices, and scan sessions bounding each pipeline run.
//
// # Core Types
//
// Observation is a single ephemeral discovery result for one endpoint
// from one probe strategy within one scan session.
//
// Device is the durable, MAC-keyed record of an endpoint's identity and
// online state. The reconciler is the only writer of IsOnline and
// LastSeen; user-editable fields belong to the API layer.
//
// ScanEvent is an append-only connected/disconnected/ip_changed
// transition against a device.
//
// ScanSession records one end-to-end execution of the discovery
// pipeline: running, then exactly one of completed or failed.
//
// # Design Principles
//
// - No database or external dependencies
// - Canonical MAC form (uppercase hex, colon-separated) everywhere
// - Pure domain logic without infrastructure concerns
package domain
