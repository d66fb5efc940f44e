package chain

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/holiman/uint256"

	"github.com/roach88/daokit/internal/ir"
	"github.com/roach88/daokit/internal/observability"
	"github.com/roach88/daokit/internal/store"
	"github.com/roach88/daokit/internal/vm"
)

// ErrStopped is returned by Submit once the processor has been stopped.
var ErrStopped = errors.New("chain: processor stopped")

// Receipt is the outcome of one applied message. A reverted message still
// has a receipt; its cause is in Err and none of its effects persisted.
type Receipt struct {
	TxID      string
	FlowToken string
	Seq       int64
	Status    string
	Return    []byte
	Records   []ir.Record
	Steps     int
	Err       error
}

// Reverted reports whether the message failed.
func (r Receipt) Reverted() bool { return r.Status == ir.StatusReverted }

// Hook observes every receipt after it is persisted.
type Hook func(msg vm.Message, r Receipt)

// Chain applies messages to a store through a host.
type Chain struct {
	store  *store.Store
	host   *vm.Host
	clock  *Clock
	flows  FlowTokenGenerator
	logger *slog.Logger
	hooks  []Hook

	mu    sync.Mutex
	queue *requestQueue
}

// Option configures a Chain.
type Option func(*Chain)

// WithFlowGenerator replaces the UUIDv7 flow token generator.
func WithFlowGenerator(g FlowTokenGenerator) Option {
	return func(c *Chain) {
		if g != nil {
			c.flows = g
		}
	}
}

// WithLogger sets the processor logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *Chain) {
		if l != nil {
			c.logger = l
		}
	}
}

// WithHook registers a receipt observer.
func WithHook(h Hook) Option {
	return func(c *Chain) {
		c.hooks = append(c.hooks, h)
	}
}

// New creates a Chain over s. The clock resumes after the highest logged
// sequence number.
func New(ctx context.Context, s *store.Store, h *vm.Host, opts ...Option) (*Chain, error) {
	last, err := s.Reader().MaxSeq(ctx)
	if err != nil {
		return nil, fmt.Errorf("resume clock: %w", err)
	}
	c := &Chain{
		store:  s,
		host:   h,
		clock:  NewClockAt(last),
		flows:  UUIDv7Generator{},
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
		queue:  newRequestQueue(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Store returns the underlying store.
func (c *Chain) Store() *store.Store { return c.store }

// Host returns the execution host.
func (c *Chain) Host() *vm.Host { return c.host }

// Clock returns the logical clock.
func (c *Chain) Clock() *Clock { return c.clock }

// Apply runs msg synchronously. The error is non-nil only when the outcome
// could not be persisted; a reverted message returns a receipt with Err.
func (c *Chain) Apply(ctx context.Context, msg vm.Message) (Receipt, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.apply(ctx, msg, c.flows.Generate(), c.clock.Next())
}

// Call simulates msg against committed state and discards every effect.
func (c *Chain) Call(ctx context.Context, from, to common.Address, data []byte) ([]byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.host.View(ctx, c.store, from, to, data)
}

// Submit hands msg to the Run loop and waits for its receipt.
func (c *Chain) Submit(ctx context.Context, msg vm.Message) (Receipt, error) {
	r := request{ctx: ctx, msg: msg, done: make(chan result, 1)}
	if !c.queue.Enqueue(r) {
		return Receipt{}, ErrStopped
	}
	select {
	case <-ctx.Done():
		return Receipt{}, ctx.Err()
	case res := <-r.done:
		return res.receipt, res.err
	}
}

// Run processes submitted messages in FIFO order until Stop is called or
// ctx is cancelled. After Stop, requests already queued are still applied.
func (c *Chain) Run(ctx context.Context) error {
	c.logger.Info("processor started", "seq", c.clock.Current())
	defer c.logger.Info("processor stopped", "seq", c.clock.Current())

	for {
		if r, ok := c.queue.TryDequeue(); ok {
			receipt, err := c.Apply(r.ctx, r.msg)
			r.done <- result{receipt: receipt, err: err}
			continue
		}
		select {
		case <-ctx.Done():
			c.queue.Close()
			c.failPending(ctx.Err())
			return ctx.Err()
		case _, open := <-c.queue.Wait():
			if !open && c.queue.Len() == 0 {
				return nil
			}
		}
	}
}

// Stop closes the queue. Run returns once it has drained.
func (c *Chain) Stop() {
	c.queue.Close()
}

func (c *Chain) failPending(err error) {
	for {
		r, ok := c.queue.TryDequeue()
		if !ok {
			return
		}
		r.done <- result{err: err}
	}
}

// apply runs msg with a fixed flow token and sequence number. Replay uses
// it with the logged values.
func (c *Chain) apply(ctx context.Context, msg vm.Message, flow string, seq int64) (Receipt, error) {
	start := time.Now()
	if msg.Value == nil {
		msg.Value = new(uint256.Int)
	}
	tr := ir.Transaction{
		FlowToken: flow,
		Seq:       seq,
		From:      store.AddrKey(msg.From),
		To:        store.AddrKey(msg.To),
		Value:     msg.Value.Dec(),
		Data:      hexutil.Encode(msg.Data),
	}
	id, err := ir.TransactionID(tr.FlowToken, tr.From, tr.To, tr.Value, tr.Data, tr.Seq)
	if err != nil {
		return Receipt{}, err
	}
	tr.ID = id

	receipt, err := c.commit(ctx, tr, msg)
	if err != nil {
		return Receipt{}, err
	}
	if receipt.Err != nil {
		if err := c.logRevert(ctx, tr, receipt.Err); err != nil {
			return Receipt{}, err
		}
		receipt.Status = ir.StatusReverted
		c.logger.Error("transaction reverted",
			"tx", id, "seq", seq, "to", tr.To, "kind", vm.KindOf(receipt.Err), "error", receipt.Err)
	} else {
		c.logger.Info("transaction applied",
			"tx", id, "seq", seq, "to", tr.To, "records", len(receipt.Records), "steps", receipt.Steps)
	}

	observability.RecordTransaction(receipt.Status, string(vm.KindOf(receipt.Err)), receipt.Steps, time.Since(start))
	for _, h := range c.hooks {
		h(msg, receipt)
	}
	return receipt, nil
}

// commit executes msg and, when it succeeds, persists its effects with its
// log entry and records in one SQL transaction.
func (c *Chain) commit(ctx context.Context, tr ir.Transaction, msg vm.Message) (Receipt, error) {
	tx, err := c.store.Begin(ctx)
	if err != nil {
		return Receipt{}, err
	}
	defer tx.Rollback()

	receipt := Receipt{TxID: tr.ID, FlowToken: tr.FlowToken, Seq: tr.Seq}
	res, execErr := c.host.Execute(ctx, tx, vm.Env{Seq: tr.Seq}, msg)
	receipt.Steps = res.Steps
	if execErr != nil {
		receipt.Err = execErr
		return receipt, nil
	}

	tr.Status = ir.StatusApplied
	tr.Return = hexutil.Encode(res.Return)
	if err := tx.WriteTransaction(ctx, tr); err != nil {
		return Receipt{}, err
	}
	records := make([]ir.Record, len(res.Records))
	for i, e := range res.Records {
		emitter := store.AddrKey(e.Emitter)
		rid, err := ir.RecordID(tr.ID, i, emitter, e.Name, e.Fields)
		if err != nil {
			return Receipt{}, err
		}
		records[i] = ir.Record{ID: rid, TxID: tr.ID, Seq: tr.Seq, Index: i, Emitter: emitter, Name: e.Name, Fields: e.Fields}
		if err := tx.WriteRecord(ctx, records[i]); err != nil {
			return Receipt{}, err
		}
	}
	if err := tx.Commit(); err != nil {
		return Receipt{}, err
	}

	receipt.Status = ir.StatusApplied
	receipt.Return = res.Return
	receipt.Records = records
	return receipt, nil
}

func (c *Chain) logRevert(ctx context.Context, tr ir.Transaction, cause error) error {
	tr.Status = ir.StatusReverted
	tr.ErrorKind = string(vm.KindOf(cause))
	tr.Error = cause.Error()
	return c.store.Update(ctx, func(tx *store.Tx) error {
		return tx.WriteTransaction(ctx, tr)
	})
}
