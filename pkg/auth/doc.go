// Package auth holds the machine-readable authorization status that the
// smart CLI prints with `smart status --output json`.
package auth
