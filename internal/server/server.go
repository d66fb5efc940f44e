// Package server exposes committed ledger state over a read-only HTTP API.
package server

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/roach88/daokit/internal/access"
	"github.com/roach88/daokit/internal/observability"
	"github.com/roach88/daokit/internal/store"
)

// Server serves the read API.
type Server struct {
	reader  store.Reader
	router  *gin.Engine
	logger  *slog.Logger
	started time.Time
}

// New builds the router over reader. An empty corsOrigins allows the
// local development origin only.
func New(reader store.Reader, logger *slog.Logger, corsOrigins []string) *Server {
	observability.RegisterMetrics()
	gin.SetMode(gin.ReleaseMode)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(observability.RequestLogger(logger))
	r.Use(observability.RequestMetricsMiddleware())
	r.Use(cors.New(cors.Config{
		AllowOrigins: normalizeOrigins(corsOrigins),
		AllowMethods: []string{"GET"},
		AllowHeaders: []string{"Origin", "Content-Type"},
		MaxAge:       12 * time.Hour,
	}))
	_ = r.SetTrustedProxies([]string{"127.0.0.1", "::1"})

	s := &Server{reader: reader, router: r, logger: logger, started: time.Now()}
	s.routes()
	return s
}

// Handler returns the HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Serve listens on addr until ctx is done, then shuts down gracefully.
func (s *Server) Serve(ctx context.Context, addr string) error {
	srv := &http.Server{Addr: addr, Handler: s.router, ReadHeaderTimeout: 10 * time.Second}

	errc := make(chan error, 1)
	go func() {
		s.logger.Info("http server listening", "addr", addr)
		errc <- srv.ListenAndServe()
	}()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errc; !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) routes() {
	r := s.router
	r.GET("/healthz", s.health)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	r.GET("/components", s.components)
	r.GET("/components/:address", s.component)

	r.GET("/registries/:registry/roles", s.roles)
	r.GET("/registries/:registry/roles/:role/members", s.members)
	r.GET("/registries/:registry/roles/:role/members/:account", s.hasRole)
	r.GET("/registries/:registry/actions", s.actions)
	r.GET("/registries/:registry/authorized", s.authorized)

	r.GET("/transactions", s.transactions)
	r.GET("/transactions/:id", s.transaction)
}

func (s *Server) health(c *gin.Context) {
	seq, err := s.reader.MaxSeq(c.Request.Context())
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"status": "ok",
		"uptime": time.Since(s.started).String(),
		"seq":    seq,
	})
}

func (s *Server) components(c *gin.Context) {
	ctx := c.Request.Context()
	code := c.Query("code")
	factory, ok := optionalAddress(c, "factory")
	if !ok {
		return
	}
	comps, err := s.reader.ComponentsWhere(ctx, code, factory)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"components": comps})
}

func (s *Server) component(c *gin.Context) {
	addr, ok := pathAddress(c, "address")
	if !ok {
		return
	}
	comp, found, err := s.reader.Component(c.Request.Context(), addr)
	if err != nil {
		s.fail(c, err)
		return
	}
	if !found {
		c.JSON(http.StatusNotFound, gin.H{"error": "no component at " + store.AddrKey(addr)})
		return
	}
	bal, err := s.reader.Balance(c.Request.Context(), addr)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"component": comp, "balance": bal.Dec()})
}

func (s *Server) roles(c *gin.Context) {
	registry, ok := pathAddress(c, "registry")
	if !ok {
		return
	}
	roles, err := s.reader.Roles(c.Request.Context(), registry)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"roles": roles})
}

func (s *Server) members(c *gin.Context) {
	registry, ok := pathAddress(c, "registry")
	if !ok {
		return
	}
	role := c.Param("role")
	ctx := c.Request.Context()

	admin, exists, err := s.reader.RoleAdmin(ctx, registry, role)
	if err != nil {
		s.fail(c, err)
		return
	}
	if !exists {
		c.JSON(http.StatusNotFound, gin.H{"error": "role " + role + " does not exist"})
		return
	}
	members, err := s.reader.Members(ctx, registry, role)
	if err != nil {
		s.fail(c, err)
		return
	}
	out := make([]string, len(members))
	for i, m := range members {
		out[i] = store.AddrKey(m)
	}
	c.JSON(http.StatusOK, gin.H{"role": role, "admin": admin, "members": out})
}

func (s *Server) hasRole(c *gin.Context) {
	registry, ok := pathAddress(c, "registry")
	if !ok {
		return
	}
	account, ok := pathAddress(c, "account")
	if !ok {
		return
	}
	held, err := s.reader.HasRole(c.Request.Context(), registry, c.Param("role"), account)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"role": c.Param("role"), "account": store.AddrKey(account), "member": held})
}

func (s *Server) actions(c *gin.Context) {
	registry, ok := pathAddress(c, "registry")
	if !ok {
		return
	}
	edges, err := s.reader.ActionEdges(c.Request.Context(), registry)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"actions": edges})
}

// authorized answers actionIsAuthorized(account, target, op). op is a
// signature or a 0x-prefixed fingerprint.
func (s *Server) authorized(c *gin.Context) {
	registry, ok := pathAddress(c, "registry")
	if !ok {
		return
	}
	account, ok := queryAddress(c, "account")
	if !ok {
		return
	}
	target, ok := queryAddress(c, "target")
	if !ok {
		return
	}
	op, err := access.ParseFingerprint(c.Query("op"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	ctx := c.Request.Context()
	allowed, err := s.reader.ActionIsAuthorized(ctx, registry, account, target, op)
	if err != nil {
		s.fail(c, err)
		return
	}
	roles, err := s.reader.ActionRoles(ctx, registry, target, op)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"account":    store.AddrKey(account),
		"target":     store.AddrKey(target),
		"op":         op.String(),
		"authorized": allowed,
		"roles":      roles,
	})
}

func (s *Server) transactions(c *gin.Context) {
	txs, err := s.reader.Transactions(c.Request.Context())
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"transactions": txs})
}

func (s *Server) transaction(c *gin.Context) {
	ctx := c.Request.Context()
	id := c.Param("id")
	tx, found, err := s.reader.Transaction(ctx, id)
	if err != nil {
		s.fail(c, err)
		return
	}
	if !found {
		c.JSON(http.StatusNotFound, gin.H{"error": "transaction " + id + " not found"})
		return
	}
	records, err := s.reader.Records(ctx, store.RecordFilter{TxID: id})
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"transaction": tx, "records": records})
}

func (s *Server) fail(c *gin.Context, err error) {
	s.logger.Error("read failed", "path", c.FullPath(), "error", err)
	c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
}

func pathAddress(c *gin.Context, name string) (common.Address, bool) {
	return parseAddress(c, name, c.Param(name))
}

func queryAddress(c *gin.Context, name string) (common.Address, bool) {
	return parseAddress(c, name, c.Query(name))
}

func optionalAddress(c *gin.Context, name string) (common.Address, bool) {
	if c.Query(name) == "" {
		return common.Address{}, true
	}
	return queryAddress(c, name)
}

func parseAddress(c *gin.Context, name, raw string) (common.Address, bool) {
	if !common.IsHexAddress(raw) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid " + name + " address " + strings.TrimSpace(raw)})
		return common.Address{}, false
	}
	return common.HexToAddress(raw), true
}

func normalizeOrigins(origins []string) []string {
	if len(origins) == 0 {
		return []string{"http://localhost:3000"}
	}
	return origins
}
