// Package careauth is the client-side session store for the HuiGrowth
// family app backend.
//
// A [Store] owns the signed-in user and bearer token of one process. It is
// built explicitly through [New] and [Builder.Build] and passed to whatever
// needs it; there is no package-level instance.
//
// # State machine
//
// The store is Anonymous (no user, no token) or Authenticated (both set).
// Login and Register move it to Authenticated; Logout and a 401 reported by
// the HTTP client move it back. IsLoading and Error are transient and never
// persisted.
//
// # Persistence
//
// Every commit that changes the user or token is written to a
// [persist.KV] entry (default key "auth-storage") by a subscriber installed
// at build time. Build reads the entry back before returning.
//
// # What this package must NOT do
//
//   - Hold its lock across a network call.
//   - Return hydration or persistence failures to callers; they are logged
//     and counted.
//   - Render anything. User-visible messages go to a [Notifier].
package careauth
