// Package middleware provides net/http guards over the engine: Protect
// authenticates requests, RestrictTo and the privilege guards
// authorize them by role rank.
package middleware
