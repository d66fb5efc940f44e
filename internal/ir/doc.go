// Package ir holds the value model shared by the store, the chain and the
// harness: constrained JSON values, RFC 8785 canonical encoding, and the
// content-addressed identities of transactions and change records.
//
// ir imports nothing internal. Constraints:
//   - no float types; amounts travel as decimal strings
//   - logical sequence numbers only, never wall-clock timestamps
//   - JSON tags use snake_case
package ir
