// Package vm is the execution host components run in.
//
// A Host owns the registry of component code and applies one message at a
// time inside a store transaction. Every call opens a Frame backed by a
// SAVEPOINT: when the frame fails, its state writes, value transfers and
// change records are discarded and the error propagates to the caller
// frame, which may fail in turn. Nothing escapes the enclosing transaction
// until the chain commits it.
//
// Dispatch follows the Ethereum calling convention: calldata is a 4-byte
// selector followed by ABI-encoded arguments, and results are ABI-encoded.
package vm

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sort"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"

	"github.com/roach88/daokit/internal/addressing"
	"github.com/roach88/daokit/internal/ir"
	"github.com/roach88/daokit/internal/store"
)

// Defaults for the per-transaction quota.
const (
	DefaultMaxSteps = 1000
	DefaultMaxDepth = 1024
)

// InitializerName is the method only reachable through Frame.Create.
const InitializerName = "initialize"

// Contract is the code of one component kind.
type Contract interface {
	// Code is the code identity; its hash is part of every deployment address.
	Code() string
	// ABI describes the callable surface.
	ABI() *abi.ABI
	// Call runs method m with decoded args in frame f and returns the
	// output values in ABI order.
	Call(f *Frame, m *abi.Method, args []any) ([]any, error)
}

// Message is one externally submitted call.
type Message struct {
	From  common.Address
	To    common.Address
	Value *uint256.Int
	Data  []byte
}

// Env carries per-transaction context visible to every frame.
type Env struct {
	Seq int64
}

// Emitted is a change record before it is assigned an identity.
type Emitted struct {
	Emitter common.Address
	Name    string
	Fields  ir.Object
}

// Result is the outcome of a successful Execute.
type Result struct {
	Return  []byte
	Records []Emitted
	Steps   int
}

// Host runs component code.
type Host struct {
	codes     map[string]Contract
	predictor addressing.Predictor
	maxSteps  int
	maxDepth  int
	logger    *slog.Logger
}

// Option configures a Host.
type Option func(*Host)

// WithMaxSteps bounds the number of frames per transaction.
func WithMaxSteps(n int) Option {
	return func(h *Host) {
		if n > 0 {
			h.maxSteps = n
		}
	}
}

// WithMaxDepth bounds call nesting.
func WithMaxDepth(n int) Option {
	return func(h *Host) {
		if n > 0 {
			h.maxDepth = n
		}
	}
}

// WithLogger sets the host logger.
func WithLogger(l *slog.Logger) Option {
	return func(h *Host) {
		if l != nil {
			h.logger = l
		}
	}
}

// NewHost returns a Host deriving addresses with predictor.
func NewHost(predictor addressing.Predictor, opts ...Option) *Host {
	h := &Host{
		codes:     make(map[string]Contract),
		predictor: predictor,
		maxSteps:  DefaultMaxSteps,
		maxDepth:  DefaultMaxDepth,
		logger:    slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Register adds component code. Code identities must be unique.
func (h *Host) Register(contracts ...Contract) error {
	for _, c := range contracts {
		if _, dup := h.codes[c.Code()]; dup {
			return fmt.Errorf("code %q already registered", c.Code())
		}
		h.codes[c.Code()] = c
	}
	return nil
}

// Contract returns the registered code for identity code.
func (h *Host) Contract(code string) (Contract, bool) {
	c, ok := h.codes[code]
	return c, ok
}

// Codes lists registered code identities in sorted order.
func (h *Host) Codes() []string {
	out := make([]string, 0, len(h.codes))
	for code := range h.codes {
		out = append(out, code)
	}
	sort.Strings(out)
	return out
}

// Predictor returns the address predictor.
func (h *Host) Predictor() addressing.Predictor { return h.predictor }

// Logger returns the host logger.
func (h *Host) Logger() *slog.Logger { return h.logger }

// Execute applies msg as the outermost frame inside tx. On error the caller
// must roll tx back; on success the returned records are the ones that
// survived every nested frame.
func (h *Host) Execute(ctx context.Context, tx *store.Tx, env Env, msg Message) (Result, error) {
	ex := &execution{
		ctx:    ctx,
		host:   h,
		tx:     tx,
		env:    env,
		origin: msg.From,
		quota:  newQuota(h.maxSteps, h.maxDepth),
	}
	value := msg.Value
	if value == nil {
		value = new(uint256.Int)
	}
	out, err := ex.call(msg.From, msg.To, value, msg.Data, 0, false)
	if err != nil {
		return Result{Steps: ex.quota.Steps()}, err
	}
	return Result{Return: out, Records: ex.journal, Steps: ex.quota.Steps()}, nil
}

// View runs a read-only call against committed state and always rolls back.
func (h *Host) View(ctx context.Context, s *store.Store, from, to common.Address, data []byte) ([]byte, error) {
	tx, err := s.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	res, err := h.Execute(ctx, tx, Env{}, Message{From: from, To: to, Data: data})
	if err != nil {
		return nil, err
	}
	return res.Return, nil
}
