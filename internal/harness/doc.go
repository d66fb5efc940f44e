// Package harness runs conformance scenarios against a throwaway ledger.
//
// A scenario deploys one blueprint through the orchestrator, applies
// follow-up calls and checks the committed registry tables, balances and
// change records.
//
// # Scenario Format
//
//	name: acme_bootstrap
//	description: "Founding roles and the vault are wired, the orchestrator keeps nothing"
//	blueprint: ../../blueprint/testdata/acme.cue
//	sender: alice
//	calls:
//	  - from: bob
//	    to: "${vault}"
//	    method: withdrawEth
//	    args: [["${bob}"], ["1"]]
//	    expect: { status: reverted, error: Unauthorized }
//	assertions:
//	  - type: has_role
//	    role: EXECUTE
//	    account: "${orchestrator}"
//	    expect: false
//
// Addresses anywhere in a scenario may be hex literals or references:
// ${core}, ${registry}, ${orchestrator}, ${sender}, the well-known accounts
// ${alice}, ${bob} and ${carol}, and every named deploy step.
//
// # Assertion Types
//
//   - has_role: account holds role in the registry
//   - role_authorized: role may perform op on target
//   - action_authorized: account may perform op on target
//   - component: a component exists at address, optionally with code
//   - balance: the native balance of account equals expect
//   - record: count change records by name and optionally emitter
//
// # Deterministic Testing
//
// Every run uses an in-memory database, the standard genesis and numbered
// flow tokens, so identical scenarios produce identical transaction and
// record ids. Traces can be compared against golden files.
package harness
