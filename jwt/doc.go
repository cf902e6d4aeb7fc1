// Package jwt mints and parses the engine's signed tokens. Three token
// classes exist (access, refresh, login link), each signed with its own
// HMAC-SHA256 secret so a token of one class can never validate as
// another.
package jwt
