// Package chain is the sequential processor: it applies one message at a
// time, each inside its own SQL transaction, and appends every outcome to
// the transaction log.
//
// ARCHITECTURE:
//
// Single-Writer Loop:
// Submit enqueues a message and blocks until its receipt is ready. Run
// drains the queue on one goroutine, so at most one message touches the
// ledger at a time. Apply and Call bypass the queue and serialize on the
// same mutex instead.
//
// Message Lifecycle:
//  1. The clock stamps the message with the next sequence number
//  2. A flow token is drawn and combined with the message into a
//     content-addressed transaction id
//  3. The host executes the message inside a SQL transaction
//  4. On success the transaction commits with its records
//  5. On revert the transaction rolls back and only the revert is logged
//
// A reverted message therefore leaves no state behind but still has a
// receipt and a row in the transaction log.
//
// Thread-safety model:
//   - Apply and Call serialize on a mutex and may be called from any goroutine
//   - Submit enqueues for the Run loop and waits for the receipt
//   - Run must be called from exactly one goroutine
//
// REPLAY:
//
// Replay re-applies a logged history onto a fresh chain with the same
// genesis, keeping each logged flow token and sequence number. Identical
// execution yields identical transaction and record ids, so any
// divergence points at nondeterminism.
package chain
