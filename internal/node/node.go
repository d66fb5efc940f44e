// Package node assembles a ledger from configuration: the store, a host
// with every component kind, the processor and the standard genesis.
package node

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/roach88/daokit/internal/catalog"
	"github.com/roach88/daokit/internal/chain"
	"github.com/roach88/daokit/internal/config"
	"github.com/roach88/daokit/internal/observability"
	"github.com/roach88/daokit/internal/orchestrator"
	"github.com/roach88/daokit/internal/store"
	"github.com/roach88/daokit/internal/vm"
)

// Node is an opened ledger.
type Node struct {
	Config config.Config
	Store  *store.Store
	Chain  *chain.Chain
	Logger *slog.Logger
}

// Option configures Open.
type Option func(*options)

type options struct {
	logger *slog.Logger
	chain  []chain.Option
}

// WithLogger sets the logger for the node and its processor.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) { o.logger = l }
}

// WithChainOptions passes extra options to the processor.
func WithChainOptions(opts ...chain.Option) Option {
	return func(o *options) { o.chain = append(o.chain, opts...) }
}

// Open opens cfg.Database and applies the genesis the config describes.
// Reopening a ledger with a different genesis fails.
func Open(ctx context.Context, cfg config.Config, opts ...Option) (*Node, error) {
	o := options{logger: slog.New(slog.NewTextHandler(io.Discard, nil))}
	for _, opt := range opts {
		opt(&o)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	alloc, err := cfg.Alloc()
	if err != nil {
		return nil, err
	}

	s, err := store.Open(cfg.Database)
	if err != nil {
		return nil, err
	}
	h, err := catalog.NewHost(cfg.ChainID,
		vm.WithMaxSteps(cfg.MaxSteps),
		vm.WithMaxDepth(cfg.MaxDepth),
		vm.WithLogger(o.logger),
	)
	if err != nil {
		s.Close()
		return nil, err
	}

	chainOpts := append([]chain.Option{
		chain.WithLogger(o.logger),
		chain.WithHook(countOrchestrations),
	}, o.chain...)
	c, err := chain.New(ctx, s, h, chainOpts...)
	if err != nil {
		s.Close()
		return nil, err
	}
	if _, err := c.InitGenesis(ctx, catalog.Genesis(cfg.ChainID, alloc)); err != nil {
		s.Close()
		return nil, fmt.Errorf("open %s: %w", cfg.Database, err)
	}
	return &Node{Config: cfg, Store: s, Chain: c, Logger: o.logger}, nil
}

// Close closes the store.
func (n *Node) Close() error {
	return n.Store.Close()
}

// Reader returns a reader over committed state.
func (n *Node) Reader() store.Reader {
	return n.Store.Reader()
}

func countOrchestrations(msg vm.Message, r chain.Receipt) {
	if msg.To != orchestrator.Address {
		return
	}
	outcome := "created"
	if r.Reverted() {
		outcome = string(vm.RootKind(r.Err))
	}
	observability.RecordOrchestration(outcome)
}
