// Package access implements the capability registry: role membership, the
// role→action authorization table and the queries every gated component
// consults.
//
// The registry owns no business logic beyond these tables. Each gated
// component holds the address of its registry (injected at initialization)
// and asks it one question: may this caller perform this operation on me?
//
// ROLES:
//
// Every role has an admin role whose holders may grant and revoke it.
// DAO_ROLE is the root admin and is held by the core executor, so a role
// change that is not delegated goes through core.execute. Any account may
// renounce its own roles.
//
// ACTIONS:
//
// An action is a (target, operation fingerprint) pair. The fingerprint is
// the first four bytes of keccak256 over the canonical signature, the same
// selector the ABI uses. ActionIsAuthorized reports whether the account
// holds at least one role bound to the action.
package access
