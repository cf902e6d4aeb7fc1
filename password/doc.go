// Package password hashes and verifies secrets with argon2id using the
// PHC string format, so parameters travel with every digest and can be
// tightened without invalidating existing records.
package password
