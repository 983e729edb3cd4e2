// Package domain defines the core types of the lanwatch device inventory.
//
// This package contains the entities and value objects that flow through the
// discovery-report-reconcile-broadcast pipeline.
//
// # Core Types
//
// Device is the canonical record of a host seen on the LAN, keyed by its
// network address. Status is the policy verdict attached to a device.
//
// Observation is one sighting of a host reported by a scan agent, before it
// has been reconciled into a Device.
//
// ChangeSet collects the per-observation outcome of a reconciliation run so
// callers can tell "nothing happened" apart from "partially applied".
//
// # Errors
//
// The sentinel errors in errors.go form the error taxonomy shared by the
// classifier, the reconciler, the storage backends and the agent.
//
// # Design Principles
//
// - No database or transport dependencies
// - Addresses are always stored in canonical textual form
// - Status values are validated, never stored verbatim from input
package domain
