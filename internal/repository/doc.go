// Package repository defines the data access interface for lanwatch.
//
// # DeviceStore
//
// DeviceStore is the single storage contract used by the reconciler, the
// device API and the broadcast hub. It is keyed by canonical address.
// GetDevice returns (nil, nil) when a device is absent; mutating calls
// report domain.ErrNotFound or domain.ErrDuplicateKey instead.
//
// # Backends
//
//   - memory: a mutex guarded map, used by tests and ephemeral runs
//   - sqlite: embedded file database (modernc.org/sqlite) with WAL mode
//   - postgres: relational database through lib/pq
//   - natskv: NATS JetStream key-value bucket with revision checked updates
//
// Each backend enforces the uniqueness of address itself, so concurrent
// reconcilers racing on the same new address see exactly one insert
// succeed and the others receive domain.ErrDuplicateKey.
//
// # Testing
//
// The sqlite backend is tested against in-memory databases, postgres with
// go-sqlmock, and natskv against an embedded NATS server.
package repository
