package chain

import (
	"context"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/holiman/uint256"

	"github.com/roach88/daokit/internal/ir"
	"github.com/roach88/daokit/internal/store"
	"github.com/roach88/daokit/internal/vm"
)

// Divergence is one difference between a logged transaction and its replay.
type Divergence struct {
	Seq   int64  `json:"seq"`
	TxID  string `json:"tx_id"`
	Field string `json:"field"`
	Want  string `json:"want"`
	Got   string `json:"got"`
}

// ReplayReport summarizes a replay.
type ReplayReport struct {
	Transactions int          `json:"transactions"`
	Divergences  []Divergence `json:"divergences"`
}

// OK reports whether the replay reproduced every receipt.
func (r ReplayReport) OK() bool { return len(r.Divergences) == 0 }

// Replay re-applies the transaction log of source onto c, which must hold
// the same genesis and no transactions. Each transaction keeps its logged
// flow token and sequence number, so identical execution yields identical
// transaction and record ids.
func Replay(ctx context.Context, source store.Reader, c *Chain) (ReplayReport, error) {
	report := ReplayReport{Divergences: []Divergence{}}

	last, err := c.store.Reader().MaxSeq(ctx)
	if err != nil {
		return report, err
	}
	if last != 0 {
		return report, fmt.Errorf("replay target already has %d transactions", last)
	}
	log, err := source.Transactions(ctx)
	if err != nil {
		return report, err
	}

	for _, logged := range log {
		msg, err := messageOf(logged)
		if err != nil {
			return report, fmt.Errorf("replay seq %d: %w", logged.Seq, err)
		}
		c.mu.Lock()
		c.clock.AdvanceTo(logged.Seq)
		receipt, err := c.apply(ctx, msg, logged.FlowToken, logged.Seq)
		c.mu.Unlock()
		if err != nil {
			return report, fmt.Errorf("replay seq %d: %w", logged.Seq, err)
		}
		report.Transactions++

		wantRecords, err := source.Records(ctx, store.RecordFilter{TxID: logged.ID})
		if err != nil {
			return report, err
		}
		report.Divergences = append(report.Divergences, compare(logged, wantRecords, receipt)...)
	}
	return report, nil
}

func messageOf(t ir.Transaction) (vm.Message, error) {
	value, err := uint256.FromDecimal(t.Value)
	if err != nil {
		return vm.Message{}, fmt.Errorf("value: %w", err)
	}
	data, err := hexutil.Decode(t.Data)
	if err != nil {
		return vm.Message{}, fmt.Errorf("data: %w", err)
	}
	return vm.Message{
		From:  common.HexToAddress(t.From),
		To:    common.HexToAddress(t.To),
		Value: value,
		Data:  data,
	}, nil
}

func compare(logged ir.Transaction, wantRecords []ir.Record, got Receipt) []Divergence {
	var out []Divergence
	diff := func(field, want, have string) {
		if want != have {
			out = append(out, Divergence{Seq: logged.Seq, TxID: logged.ID, Field: field, Want: want, Got: have})
		}
	}
	diff("id", logged.ID, got.TxID)
	diff("status", logged.Status, got.Status)
	diff("error_kind", logged.ErrorKind, string(vm.KindOf(got.Err)))
	if got.Status == ir.StatusApplied {
		diff("return", logged.Return, hexutil.Encode(got.Return))
	}
	diff("records", fmt.Sprint(len(wantRecords)), fmt.Sprint(len(got.Records)))
	for i := 0; i < len(wantRecords) && i < len(got.Records); i++ {
		diff(fmt.Sprintf("records[%d]", i), wantRecords[i].ID, got.Records[i].ID)
	}
	return out
}
