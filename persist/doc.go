// Package persist provides the key-value backends that keep a session alive
// across process restarts.
//
// A backend stores opaque byte values under string keys. The session layout
// (envelope, versioning) belongs to the caller; backends never inspect
// values.
//
// Backends:
//
//   - [Memory]: process-local, for tests and ephemeral tools.
//   - [Redis]: any redis.UniversalClient, optional key prefix and TTL.
//   - [SQLite]: a single-table store on modernc.org/sqlite.
//
// # What this package must NOT do
//
//   - Decode or validate stored values.
//   - Retry. Errors are returned to the caller, which decides whether a
//     failed write is fatal.
package persist
