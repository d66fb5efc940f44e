package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"

	"github.com/roach88/daokit/internal/ir"
	"github.com/roach88/daokit/internal/query"
)

// querier is satisfied by both *sql.DB and *sql.Tx.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Reader answers questions about ledger state. A Reader from Store.Reader
// sees committed state; the one embedded in a Tx sees the Tx's own writes.
type Reader struct {
	q querier
}

const componentColumns = "address, code, code_hash, args_hash, factory, deployer, salt, initialized, seq"

// Component returns the component deployed at addr.
func (r Reader) Component(ctx context.Context, addr common.Address) (ir.Component, bool, error) {
	row := r.q.QueryRowContext(ctx,
		"SELECT "+componentColumns+" FROM components WHERE address = ?", AddrKey(addr))
	c, err := scanComponent(row)
	if errors.Is(err, sql.ErrNoRows) {
		return ir.Component{}, false, nil
	}
	if err != nil {
		return ir.Component{}, false, fmt.Errorf("read component: %w", err)
	}
	return c, true, nil
}

// HasCode reports whether a component occupies addr.
func (r Reader) HasCode(ctx context.Context, addr common.Address) (bool, error) {
	return r.exists(ctx, "SELECT 1 FROM components WHERE address = ?", AddrKey(addr))
}

// Components lists every deployed component in deployment order.
func (r Reader) Components(ctx context.Context) ([]ir.Component, error) {
	return r.ComponentsWhere(ctx, "", common.Address{})
}

// ComponentsWhere lists components filtered by code identity and/or factory.
// Empty filters match everything.
func (r Reader) ComponentsWhere(ctx context.Context, code string, factory common.Address) ([]ir.Component, error) {
	factoryKey := ""
	if factory != (common.Address{}) {
		factoryKey = AddrKey(factory)
	}
	sqlText, params, err := query.Compile(query.Select{
		From: "components",
		Columns: []string{"address", "code", "code_hash", "args_hash", "factory",
			"deployer", "salt", "initialized", "seq"},
		Where:   query.Where("code", code, "factory", factoryKey),
		OrderBy: []string{"seq", "address"},
	})
	if err != nil {
		return nil, err
	}
	rows, err := r.q.QueryContext(ctx, sqlText, params...)
	if err != nil {
		return nil, fmt.Errorf("list components: %w", err)
	}
	defer rows.Close()

	out := []ir.Component{}
	for rows.Next() {
		c, err := scanComponent(rows)
		if err != nil {
			return nil, fmt.Errorf("scan component: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// RoleAdmin returns the admin role of role in registry.
func (r Reader) RoleAdmin(ctx context.Context, registry common.Address, role string) (string, bool, error) {
	var admin string
	err := r.q.QueryRowContext(ctx,
		"SELECT admin_role FROM roles WHERE registry = ? AND role = ?",
		AddrKey(registry), role).Scan(&admin)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("read role admin: %w", err)
	}
	return admin, true, nil
}

// Roles lists the roles defined in registry.
func (r Reader) Roles(ctx context.Context, registry common.Address) ([]string, error) {
	return r.strings(ctx, query.Select{
		From:    "roles",
		Columns: []string{"role"},
		Where:   query.Where("registry", AddrKey(registry)),
		OrderBy: []string{"role"},
	})
}

// HasRole reports whether account is a member of role.
func (r Reader) HasRole(ctx context.Context, registry common.Address, role string, account common.Address) (bool, error) {
	return r.exists(ctx,
		"SELECT 1 FROM role_members WHERE registry = ? AND role = ? AND account = ?",
		AddrKey(registry), role, AddrKey(account))
}

// Members lists the accounts holding role.
func (r Reader) Members(ctx context.Context, registry common.Address, role string) ([]common.Address, error) {
	keys, err := r.strings(ctx, query.Select{
		From:    "role_members",
		Columns: []string{"account"},
		Where:   query.Where("registry", AddrKey(registry), "role", role),
		OrderBy: []string{"account"},
	})
	if err != nil {
		return nil, err
	}
	return parseAddrs(keys), nil
}

// RolesOf lists the roles account holds in registry.
func (r Reader) RolesOf(ctx context.Context, registry, account common.Address) ([]string, error) {
	return r.strings(ctx, query.Select{
		From:    "role_members",
		Columns: []string{"role"},
		Where:   query.Where("registry", AddrKey(registry), "account", AddrKey(account)),
		OrderBy: []string{"role"},
	})
}

// IsRoleAuthorized reports whether the edge role → (target, op) exists.
func (r Reader) IsRoleAuthorized(ctx context.Context, registry common.Address, role string, target common.Address, op [4]byte) (bool, error) {
	return r.exists(ctx,
		"SELECT 1 FROM action_roles WHERE registry = ? AND target = ? AND op = ? AND role = ?",
		AddrKey(registry), AddrKey(target), OpKey(op), role)
}

// ActionIsAuthorized intersects account's roles with the roles authorized
// for (target, op) and stops at the first match. Both sides are index
// lookups, see idx_role_members_account and the action_roles primary key.
func (r Reader) ActionIsAuthorized(ctx context.Context, registry, account, target common.Address, op [4]byte) (bool, error) {
	sqlText, params, err := query.Compile(authorizedSelect(registry, account, target, op))
	if err != nil {
		return false, err
	}
	ok, err := r.exists(ctx, sqlText, params...)
	if err != nil {
		return false, fmt.Errorf("action is authorized: %w", err)
	}
	return ok, nil
}

func authorizedSelect(registry, account, target common.Address, op [4]byte) query.Select {
	return query.Select{
		From:    "role_members",
		Columns: []string{"role_members.role"},
		Join: &query.Join{Table: "action_roles", On: []query.On{
			{Left: "registry", Right: "registry"},
			{Left: "role", Right: "role"},
		}},
		Where: query.Where(
			"role_members.registry", AddrKey(registry),
			"role_members.account", AddrKey(account),
			"action_roles.target", AddrKey(target),
			"action_roles.op", OpKey(op)),
		OrderBy: []string{"role_members.role"},
		Limit:   1,
	}
}

// ActionRoles lists the roles authorized for (target, op).
func (r Reader) ActionRoles(ctx context.Context, registry, target common.Address, op [4]byte) ([]string, error) {
	return r.strings(ctx, query.Select{
		From:    "action_roles",
		Columns: []string{"role"},
		Where:   query.Where("registry", AddrKey(registry), "target", AddrKey(target), "op", OpKey(op)),
		OrderBy: []string{"role"},
	})
}

// ActionEdge is one row of the role→action table.
type ActionEdge struct {
	Target common.Address `json:"target"`
	Op     string         `json:"op"`
	Role   string         `json:"role"`
}

// ActionEdges lists every role→action edge in registry.
func (r Reader) ActionEdges(ctx context.Context, registry common.Address) ([]ActionEdge, error) {
	sqlText, params, err := query.Compile(query.Select{
		From:    "action_roles",
		Columns: []string{"target", "op", "role"},
		Where:   query.Where("registry", AddrKey(registry)),
		OrderBy: []string{"target", "op", "role"},
	})
	if err != nil {
		return nil, err
	}
	rows, err := r.q.QueryContext(ctx, sqlText, params...)
	if err != nil {
		return nil, fmt.Errorf("list action edges: %w", err)
	}
	defer rows.Close()

	out := []ActionEdge{}
	for rows.Next() {
		var target string
		var e ActionEdge
		if err := rows.Scan(&target, &e.Op, &e.Role); err != nil {
			return nil, err
		}
		e.Target = common.HexToAddress(target)
		out = append(out, e)
	}
	return out, rows.Err()
}

// Balance returns the native balance of addr (zero when unknown).
func (r Reader) Balance(ctx context.Context, addr common.Address) (*uint256.Int, error) {
	var amount string
	err := r.q.QueryRowContext(ctx, "SELECT amount FROM balances WHERE address = ?", AddrKey(addr)).Scan(&amount)
	if errors.Is(err, sql.ErrNoRows) {
		return new(uint256.Int), nil
	}
	if err != nil {
		return nil, fmt.Errorf("read balance: %w", err)
	}
	return parseAmount(amount)
}

// Slot returns a component's stored value under key.
func (r Reader) Slot(ctx context.Context, addr common.Address, key string) (string, bool, error) {
	var value string
	err := r.q.QueryRowContext(ctx,
		"SELECT value FROM slots WHERE address = ? AND key = ?", AddrKey(addr), key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("read slot: %w", err)
	}
	return value, true, nil
}

const transactionColumns = "seq, id, flow_token, from_addr, to_addr, value, data, status, return_data, error_kind, error"

// Transaction returns the logged transaction with the given id.
func (r Reader) Transaction(ctx context.Context, id string) (ir.Transaction, bool, error) {
	row := r.q.QueryRowContext(ctx, "SELECT "+transactionColumns+" FROM transactions WHERE id = ?", id)
	t, err := scanTransaction(row)
	if errors.Is(err, sql.ErrNoRows) {
		return ir.Transaction{}, false, nil
	}
	if err != nil {
		return ir.Transaction{}, false, fmt.Errorf("read transaction: %w", err)
	}
	return t, true, nil
}

// Transactions returns the whole transaction log in sequence order.
func (r Reader) Transactions(ctx context.Context) ([]ir.Transaction, error) {
	rows, err := r.q.QueryContext(ctx,
		"SELECT "+transactionColumns+" FROM transactions ORDER BY seq ASC, id ASC COLLATE BINARY")
	if err != nil {
		return nil, fmt.Errorf("list transactions: %w", err)
	}
	defer rows.Close()

	out := []ir.Transaction{}
	for rows.Next() {
		t, err := scanTransaction(rows)
		if err != nil {
			return nil, fmt.Errorf("scan transaction: %w", err)
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

// RecordFilter narrows Records. Zero fields match everything.
type RecordFilter struct {
	TxID    string
	Emitter common.Address
	Name    string
}

// Records lists change records in (seq, index) order.
func (r Reader) Records(ctx context.Context, f RecordFilter) ([]ir.Record, error) {
	emitter := ""
	if f.Emitter != (common.Address{}) {
		emitter = AddrKey(f.Emitter)
	}
	sqlText, params, err := query.Compile(query.Select{
		From:    "records",
		Columns: []string{"id", "tx_id", "seq", "log_index", "emitter", "name", "fields"},
		Where:   query.Where("tx_id", f.TxID, "emitter", emitter, "name", f.Name),
		OrderBy: []string{"seq", "log_index"},
	})
	if err != nil {
		return nil, err
	}
	rows, err := r.q.QueryContext(ctx, sqlText, params...)
	if err != nil {
		return nil, fmt.Errorf("list records: %w", err)
	}
	defer rows.Close()

	out := []ir.Record{}
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("scan record: %w", err)
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// MaxSeq returns the highest logged sequence number, 0 for an empty log.
func (r Reader) MaxSeq(ctx context.Context) (int64, error) {
	var seq sql.NullInt64
	if err := r.q.QueryRowContext(ctx, "SELECT MAX(seq) FROM transactions").Scan(&seq); err != nil {
		return 0, fmt.Errorf("read max seq: %w", err)
	}
	return seq.Int64, nil
}

// Meta returns a node-level metadata value.
func (r Reader) Meta(ctx context.Context, key string) (string, bool, error) {
	var value string
	err := r.q.QueryRowContext(ctx, "SELECT value FROM meta WHERE key = ?", key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("read meta: %w", err)
	}
	return value, true, nil
}

func (r Reader) exists(ctx context.Context, sqlText string, args ...any) (bool, error) {
	var one any
	err := r.q.QueryRowContext(ctx, sqlText, args...).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func (r Reader) strings(ctx context.Context, s query.Select) ([]string, error) {
	sqlText, params, err := query.Compile(s)
	if err != nil {
		return nil, err
	}
	rows, err := r.q.QueryContext(ctx, sqlText, params...)
	if err != nil {
		return nil, fmt.Errorf("query %s: %w", s.From, err)
	}
	return collectStrings(rows)
}
