// Package query builds the store's read-side listings as a small,
// backend-neutral select tree and compiles it to parameterized SQLite.
//
// SHAPE:
//
// A Select reads one table, optionally inner-joined to a second on column
// equality, filtered by a conjunction of equalities:
//
//	Select{From: "role_members", Join: &Join{Table: "action_roles", ...},
//	       Where: Where("role_members.account", a), OrderBy: []string{"role"}}
//
// compiles to
//
//	SELECT ... FROM role_members INNER JOIN action_roles ON ...
//	WHERE role_members.account = ? ORDER BY role COLLATE BINARY ASC
//
// Every compiled query carries an explicit ORDER BY so listings come back
// in the same order on every run and every replay. Values are never
// interpolated into the SQL text; identifiers are checked against a
// lowercase snake_case pattern instead.
//
// The tree EXCLUDES outer joins, OR, aggregation and subqueries.
package query
