// Package gorbac implements an embeddable authentication and
// role-based access control engine.
//
// The engine owns credential verification, JWT issuance for three token
// classes (access, refresh, login link), refresh rotation, a TOTP second
// factor, password reset, email verification and a revocable session
// registry backed by Redis. Durable user state lives behind the
// CredentialStore interface supplied by the host application, and
// outbound mail goes through the Mailer interface, so the engine stays
// independent of any particular database or SMTP stack.
//
// Construct an Engine with the Builder:
//
//	eng, err := gorbac.New().
//		WithConfig(cfg).
//		WithRedis(rdb).
//		WithStore(store).
//		WithMailer(mailer).
//		Build()
//
// HTTP integration lives in the middleware subpackage.
package gorbac
