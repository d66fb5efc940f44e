package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"

	"github.com/roach88/daokit/internal/ir"
)

// Tx is a write transaction. Its embedded Reader sees uncommitted writes.
type Tx struct {
	Reader
	tx        *sql.Tx
	savepoint int
	done      bool
}

// Commit makes every write visible.
func (t *Tx) Commit() error {
	if t.done {
		return fmt.Errorf("commit: transaction already finished")
	}
	t.done = true
	if err := t.tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// Rollback discards every write. Safe to call after Commit.
func (t *Tx) Rollback() error {
	if t.done {
		return nil
	}
	t.done = true
	return t.tx.Rollback()
}

// Savepoint opens a nested rollback scope and returns its name.
func (t *Tx) Savepoint(ctx context.Context) (string, error) {
	t.savepoint++
	name := fmt.Sprintf("frame_%d", t.savepoint)
	if _, err := t.tx.ExecContext(ctx, "SAVEPOINT "+name); err != nil {
		return "", fmt.Errorf("savepoint: %w", err)
	}
	return name, nil
}

// RollbackTo undoes everything since the named savepoint and closes it.
func (t *Tx) RollbackTo(ctx context.Context, name string) error {
	if _, err := t.tx.ExecContext(ctx, "ROLLBACK TO "+name); err != nil {
		return fmt.Errorf("rollback to %s: %w", name, err)
	}
	return t.Release(ctx, name)
}

// Release closes the named savepoint, keeping its writes.
func (t *Tx) Release(ctx context.Context, name string) error {
	if _, err := t.tx.ExecContext(ctx, "RELEASE "+name); err != nil {
		return fmt.Errorf("release %s: %w", name, err)
	}
	return nil
}

// InsertComponent registers a deployed component. The address must be free.
func (t *Tx) InsertComponent(ctx context.Context, c ir.Component) error {
	_, err := t.tx.ExecContext(ctx, `
		INSERT INTO components
		(address, code, code_hash, args_hash, factory, deployer, salt, initialized, seq)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		c.Address, c.Code, c.CodeHash, c.ArgsHash, c.Factory, c.Deployer, c.Salt,
		boolToInt(c.Initialized), c.Seq)
	if err != nil {
		return fmt.Errorf("insert component: %w", err)
	}
	return nil
}

// MarkInitialized flags the component at addr as initialized.
func (t *Tx) MarkInitialized(ctx context.Context, addr common.Address) error {
	res, err := t.tx.ExecContext(ctx,
		"UPDATE components SET initialized = 1 WHERE address = ?", AddrKey(addr))
	if err != nil {
		return fmt.Errorf("mark initialized: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("mark initialized: no component at %s", AddrKey(addr))
	}
	return nil
}

// CreateRole defines role with its admin. Returns false if it already existed.
func (t *Tx) CreateRole(ctx context.Context, registry common.Address, role, admin string) (bool, error) {
	return t.changed(ctx, "create role", `
		INSERT INTO roles (registry, role, admin_role) VALUES (?, ?, ?)
		ON CONFLICT(registry, role) DO NOTHING`,
		AddrKey(registry), role, admin)
}

// AddMember grants role to account. Returns false if already held.
func (t *Tx) AddMember(ctx context.Context, registry common.Address, role string, account common.Address) (bool, error) {
	return t.changed(ctx, "add member", `
		INSERT INTO role_members (registry, role, account) VALUES (?, ?, ?)
		ON CONFLICT(registry, role, account) DO NOTHING`,
		AddrKey(registry), role, AddrKey(account))
}

// RemoveMember removes account from role. Returns false if not held.
func (t *Tx) RemoveMember(ctx context.Context, registry common.Address, role string, account common.Address) (bool, error) {
	return t.changed(ctx, "remove member",
		"DELETE FROM role_members WHERE registry = ? AND role = ? AND account = ?",
		AddrKey(registry), role, AddrKey(account))
}

// AddActionRole inserts the edge role → (target, op). Returns false if present.
func (t *Tx) AddActionRole(ctx context.Context, registry, target common.Address, op [4]byte, role string) (bool, error) {
	return t.changed(ctx, "add action role", `
		INSERT INTO action_roles (registry, target, op, role) VALUES (?, ?, ?, ?)
		ON CONFLICT(registry, target, op, role) DO NOTHING`,
		AddrKey(registry), AddrKey(target), OpKey(op), role)
}

// RemoveActionRole deletes the edge role → (target, op). Returns false if absent.
func (t *Tx) RemoveActionRole(ctx context.Context, registry, target common.Address, op [4]byte, role string) (bool, error) {
	return t.changed(ctx, "remove action role",
		"DELETE FROM action_roles WHERE registry = ? AND target = ? AND op = ? AND role = ?",
		AddrKey(registry), AddrKey(target), OpKey(op), role)
}

// SetBalance overwrites the native balance of addr.
func (t *Tx) SetBalance(ctx context.Context, addr common.Address, amount *uint256.Int) error {
	_, err := t.tx.ExecContext(ctx, `
		INSERT INTO balances (address, amount) VALUES (?, ?)
		ON CONFLICT(address) DO UPDATE SET amount = excluded.amount`,
		AddrKey(addr), amount.Dec())
	if err != nil {
		return fmt.Errorf("set balance: %w", err)
	}
	return nil
}

// SetSlot stores a component value under key.
func (t *Tx) SetSlot(ctx context.Context, addr common.Address, key, value string) error {
	_, err := t.tx.ExecContext(ctx, `
		INSERT INTO slots (address, key, value) VALUES (?, ?, ?)
		ON CONFLICT(address, key) DO UPDATE SET value = excluded.value`,
		AddrKey(addr), key, value)
	if err != nil {
		return fmt.Errorf("set slot: %w", err)
	}
	return nil
}

// WriteTransaction appends a transaction to the log.
func (t *Tx) WriteTransaction(ctx context.Context, tr ir.Transaction) error {
	_, err := t.tx.ExecContext(ctx, `
		INSERT INTO transactions
		(seq, id, flow_token, from_addr, to_addr, value, data, status, return_data, error_kind, error)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		tr.Seq, tr.ID, tr.FlowToken, tr.From, tr.To, tr.Value, tr.Data,
		tr.Status, tr.Return, tr.ErrorKind, tr.Error)
	if err != nil {
		return fmt.Errorf("write transaction: %w", err)
	}
	return nil
}

// WriteRecord appends a change record. Duplicate ids are ignored.
func (t *Tx) WriteRecord(ctx context.Context, rec ir.Record) error {
	fields, err := marshalFields(rec.Fields)
	if err != nil {
		return fmt.Errorf("write record: %w", err)
	}
	_, err = t.tx.ExecContext(ctx, `
		INSERT INTO records (id, tx_id, seq, log_index, emitter, name, fields)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO NOTHING`,
		rec.ID, rec.TxID, rec.Seq, rec.Index, rec.Emitter, rec.Name, fields)
	if err != nil {
		return fmt.Errorf("write record: %w", err)
	}
	return nil
}

// SetMeta stores a node-level metadata value.
func (t *Tx) SetMeta(ctx context.Context, key, value string) error {
	_, err := t.tx.ExecContext(ctx, `
		INSERT INTO meta (key, value) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value`, key, value)
	if err != nil {
		return fmt.Errorf("set meta: %w", err)
	}
	return nil
}

func (t *Tx) changed(ctx context.Context, op, sqlText string, args ...any) (bool, error) {
	res, err := t.tx.ExecContext(ctx, sqlText, args...)
	if err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}
	return n > 0, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
