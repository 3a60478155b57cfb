// Package dialogue models per-conversation dialogue state: a closed set of tagged
// state values, their self-describing encoding, a store keyed by conversation and
// a short-lived handle through which handlers read and change a conversation's state.
//
// The package does not lock. Callers that read, decide and write must hold the
// conversation's lock for the whole cycle; see package dispatch.
package dialogue
