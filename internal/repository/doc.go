// Package repository defines the data access interfaces for lanmon.
//
// This package provides the repository abstraction layer for persisting
// and retrieving domain entities. The actual implementation is in the
// sqlite subpackage.
//
// # Store Interface
//
// The Store interface defines all data access methods for devices, scan
// events and scan sessions, plus ApplyReconciliation, which applies a
// whole session's worth of device and event writes in one transaction
// so a mid-session fault never leaves partial state behind.
//
// # SQLite Implementation
//
// The sqlite implementation provides a complete store using SQLite with
// WAL mode for concurrency. The schema is migrated automatically on
// startup. Tests run against in-memory databases.
package repository
