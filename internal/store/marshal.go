package store

import (
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/holiman/uint256"

	"github.com/roach88/daokit/internal/ir"
)

// AddrKey is the stored form of an address: lowercase, 0x-prefixed.
func AddrKey(a common.Address) string {
	return hexutil.Encode(a.Bytes())
}

// OpKey is the stored form of an operation fingerprint.
func OpKey(op [4]byte) string {
	return hexutil.Encode(op[:])
}

func parseAddrs(keys []string) []common.Address {
	out := make([]common.Address, len(keys))
	for i, k := range keys {
		out[i] = common.HexToAddress(k)
	}
	return out
}

func marshalFields(fields ir.Object) (string, error) {
	if fields == nil {
		fields = ir.Object{}
	}
	b, err := json.Marshal(fields)
	if err != nil {
		return "", fmt.Errorf("marshal fields: %w", err)
	}
	return string(b), nil
}

func unmarshalFields(s string) (ir.Object, error) {
	var obj ir.Object
	if err := json.Unmarshal([]byte(s), &obj); err != nil {
		return nil, fmt.Errorf("unmarshal fields: %w", err)
	}
	return obj, nil
}

func parseAmount(s string) (*uint256.Int, error) {
	v, err := uint256.FromDecimal(s)
	if err != nil {
		return nil, fmt.Errorf("parse amount %q: %w", s, err)
	}
	return v, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanComponent(row scanner) (ir.Component, error) {
	var c ir.Component
	var initialized int
	err := row.Scan(&c.Address, &c.Code, &c.CodeHash, &c.ArgsHash, &c.Factory,
		&c.Deployer, &c.Salt, &initialized, &c.Seq)
	c.Initialized = initialized != 0
	return c, err
}

func scanTransaction(row scanner) (ir.Transaction, error) {
	var t ir.Transaction
	err := row.Scan(&t.Seq, &t.ID, &t.FlowToken, &t.From, &t.To, &t.Value, &t.Data,
		&t.Status, &t.Return, &t.ErrorKind, &t.Error)
	return t, err
}

func scanRecord(row scanner) (ir.Record, error) {
	var r ir.Record
	var fields string
	if err := row.Scan(&r.ID, &r.TxID, &r.Seq, &r.Index, &r.Emitter, &r.Name, &fields); err != nil {
		return ir.Record{}, err
	}
	obj, err := unmarshalFields(fields)
	if err != nil {
		return ir.Record{}, err
	}
	r.Fields = obj
	return r, nil
}

func collectStrings(rows *sql.Rows) ([]string, error) {
	defer rows.Close()
	out := []string{}
	for rows.Next() {
		var s string
		if err := rows.Scan(&s); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}
