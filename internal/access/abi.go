package access

import "github.com/roach88/daokit/internal/vm"

const registryABI = `[
	{"type":"function","name":"initialize","inputs":[
		{"name":"dao","type":"address"},
		{"name":"roles","type":"string[]"},
		{"name":"roleAdmins","type":"string[]"},
		{"name":"members","type":"address[][]"},
		{"name":"targets","type":"address[]"},
		{"name":"ops","type":"bytes4[]"},
		{"name":"actionRoles","type":"string[][]"}],"outputs":[]},
	{"type":"function","name":"createRole","inputs":[{"name":"role","type":"string"},{"name":"adminRole","type":"string"}],"outputs":[]},
	{"type":"function","name":"grantRole","inputs":[{"name":"role","type":"string"},{"name":"account","type":"address"}],"outputs":[]},
	{"type":"function","name":"grantRoles","inputs":[{"name":"roles","type":"string[]"},{"name":"members","type":"address[][]"}],"outputs":[]},
	{"type":"function","name":"revokeRole","inputs":[{"name":"role","type":"string"},{"name":"account","type":"address"}],"outputs":[]},
	{"type":"function","name":"renounceRole","inputs":[{"name":"role","type":"string"},{"name":"account","type":"address"}],"outputs":[]},
	{"type":"function","name":"addActionsRoles","inputs":[{"name":"targets","type":"address[]"},{"name":"ops","type":"bytes4[]"},{"name":"roles","type":"string[][]"}],"outputs":[]},
	{"type":"function","name":"removeActionsRoles","inputs":[{"name":"targets","type":"address[]"},{"name":"ops","type":"bytes4[]"},{"name":"roles","type":"string[][]"}],"outputs":[]},
	{"type":"function","name":"hasRole","stateMutability":"view","inputs":[{"name":"role","type":"string"},{"name":"account","type":"address"}],"outputs":[{"name":"","type":"bool"}]},
	{"type":"function","name":"getRoleAdmin","stateMutability":"view","inputs":[{"name":"role","type":"string"}],"outputs":[{"name":"","type":"string"}]},
	{"type":"function","name":"isRoleAuthorized","stateMutability":"view","inputs":[{"name":"role","type":"string"},{"name":"target","type":"address"},{"name":"op","type":"bytes4"}],"outputs":[{"name":"","type":"bool"}]},
	{"type":"function","name":"actionIsAuthorized","stateMutability":"view","inputs":[{"name":"account","type":"address"},{"name":"target","type":"address"},{"name":"op","type":"bytes4"}],"outputs":[{"name":"","type":"bool"}]},
	{"type":"function","name":"getActionRoles","stateMutability":"view","inputs":[{"name":"target","type":"address"},{"name":"op","type":"bytes4"}],"outputs":[{"name":"","type":"string[]"}]},
	{"type":"function","name":"rolesOf","stateMutability":"view","inputs":[{"name":"account","type":"address"}],"outputs":[{"name":"","type":"string[]"}]},
	{"type":"function","name":"dao","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"address"}]}
]`

// ABI is the registry's callable surface.
var ABI = vm.MustABI(registryABI)
