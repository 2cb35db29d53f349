// Package api is the HTTP client for the HuiGrowth backend's /auth endpoints.
//
// Every response is wrapped in the backend's envelope ({success, message,
// data, code}). Non-2xx responses become [*Error]; network failures wrap
// [ErrTransport].
//
// # Session binding
//
// A [Client] has no credentials of its own. [Client.Attach] binds a
// [Session] that supplies the bearer token for each request and receives
// the authentication-rejected signal when the backend answers 401 to a
// request that carried a token.
//
// # What this package must NOT do
//
//   - Hold or persist tokens. The attached Session is the only source.
//   - Import the careauth root package (the root imports api).
package api
