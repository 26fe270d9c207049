package storage

// Package storage persists scheduled broadcasts and the subscriber list.
//
// Two drivers share one semantic contract:
//   - sqlite (durable, default)
//   - memory (ephemeral; tests and dry runs)
