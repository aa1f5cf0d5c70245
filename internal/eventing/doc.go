// Package eventing validates extracted KERI messages against locally known
// key state, escrows the ones that may validate later, and routes exchange
// messages.
//
// Ownership boundary:
// - per-prefix key state and anchor index (Validator)
// - escrow of recoverable failures with backoff (Escrow, Kevery)
// - exchange routing (Exchanger)
package eventing
