// Package apiclient performs authenticated JSON calls against the
// Subconscious AI REST backend.
//
// The client is transport only: it attaches the bearer token, applies a
// per-call timeout, decodes 2xx bodies and classifies every other outcome
// as an *apierror.Error. It never interprets business payloads and never
// retries; see package retry for that.
package apiclient
