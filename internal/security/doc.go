// Package security derives the security posture report of a configured
// Authenticator: which checks are active and how each behaves when its
// backing store is down.
package security
