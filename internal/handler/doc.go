// Package handler implements the HTTP API of the lanwatch collector.
//
// # Routes
//
// NewRouter wires every endpoint on a gorilla/mux router:
//
//   - POST /api/agent/report accepts a JSON array of observations
//   - GET, POST /api/devices lists (with ?q= search) and creates devices
//   - GET, PUT, DELETE /api/devices/{address} reads, edits and removes one
//   - GET /api/export/{format} downloads the inventory as json, yaml or ansible
//   - POST /api/import/{format} adds devices from an uploaded document
//   - GET /events and GET /ws stream device snapshots
//   - GET /healthz and GET /metrics
//
// Request bodies are decoded strictly; unknown fields are rejected.
//
// # Response Format
//
// Errors are returned as {success:false, error, details} with a status code
// derived from the domain error: 400 for invalid input, 404 for an unknown
// address, 409 for a duplicate address and 500 for storage failures. The
// device list carries an ETag so pollers can use If-None-Match.
//
// # Middleware
//
// Recover, CORS and Logger are applied with Chain. Logger assigns an
// X-Request-ID and writes one structured access log line per request.
package handler
