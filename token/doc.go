// Package token inspects bearer tokens issued by the backend.
//
// The client never holds the signing key, so inspection is unverified: it
// reads registered claims (sub, iss, iat, exp) to schedule refreshes and to
// drop obviously expired sessions. It must never be used to make an
// authorization decision.
package token
