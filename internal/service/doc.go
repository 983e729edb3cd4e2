// Package service implements the business logic of the lanwatch collector.
//
// This package sits between the HTTP handlers (and the embedded agent) and
// the repository layer.
//
// # Services
//
// Reconciler merges a batch of observations into the device store. Each
// observation is normalized, classified by the policy range unless it
// asserts a status, and then inserted or updated. The per-address outcome is
// returned as a domain.ChangeSet. A storage failure aborts the rest of the
// batch.
//
// ReportService wraps the reconciler for agent submissions and publishes a
// fresh snapshot once a batch has been processed.
//
// DeviceService handles operator edits, keyword search and bulk import.
// Imports only add unknown addresses so they never overwrite operator
// changes.
//
// # Errors
//
// Storage failures are wrapped with the operation name and marked with
// domain.ErrStorageUnavailable so the API layer can map them to 500.
package service
