// Package contracts defines the small interfaces the cache facade depends on.
//
// The facade never talks to sockets directly. It asks a ConnectionPool for a
// CacheHandle, configures it, and checks it with a ping. Keeping these
// contracts here lets the facade be exercised against fakes and lets the
// concrete pool (pkg/pool) serve several client libraries.
//
// Interfaces:
//   - ConnectionPool: process-wide manager that creates or reuses connections
//   - CacheHandle: a live connection to one cache server
package contracts
