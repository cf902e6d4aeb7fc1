// Package session keeps the revocable session registry in Redis. A
// session is live while its registry key exists; logout deletes the
// key, which invalidates every token carrying that session id without
// waiting for JWT expiry. A per-user index set supports revoking all
// sessions at once.
package session
