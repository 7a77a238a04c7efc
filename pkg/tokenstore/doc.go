// Package tokenstore persists SMART authorization state between runs.
//
// Three backends are provided: an in-memory map, JSON files under a private
// directory, and the operating system keyring. All of them implement Store
// and are keyed by the resource server a token authorizes against.
//
// SECURITY: token values are never logged. Saves and deletes are recorded
// as audit events carrying only the server and issuer URLs.
package tokenstore
