// Package store provides SQLite-backed durable state for the ledger.
//
// It holds the deployed-component registry, the capability tables (roles,
// role members, role→action edges), balances and component slots, and the
// append-only transaction and change-record logs.
//
// # Atomicity
//
// One message is applied inside one SQL transaction (Tx). Nested call
// frames open SAVEPOINTs so a failing frame can be rolled back without
// abandoning the enclosing frame. Nothing a Tx writes is visible to a
// Reader over the database until Commit.
//
// # Deterministic reads
//
// Listings are built with internal/query and always carry an explicit
// ORDER BY, so identical state yields identical output across replays.
//
// # Database configuration
//
//   - WAL mode: concurrent readers during the single writer
//   - synchronous=NORMAL
//   - busy_timeout=5000
//   - foreign_keys=ON
package store
