// Package server exposes a node over HTTP: it accepts framed KERI messages,
// serves stored key event logs and reports failures by their error kind.
package server

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/benk79tb/keripy/internal/auth"
	"github.com/benk79tb/keripy/internal/config"
	"github.com/benk79tb/keripy/internal/db"
	"github.com/benk79tb/keripy/internal/eventing"
	"github.com/benk79tb/keripy/internal/observability"
	"github.com/benk79tb/keripy/internal/protocol"
	"github.com/benk79tb/keripy/kering"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
)

const (
	requestIDHeader = "X-Request-ID"
	requestIDKey    = "request_id"
	roleKey         = "role"
	maxBodyBytes    = 1 << 20
)

// Server is the HTTP surface of one node.
type Server struct {
	cfg      config.NodeConfig
	router   *gin.Engine
	baser    *db.Baser
	kevery   *eventing.Kevery
	authn    auth.Authenticator
	authz    auth.RoleAuthorizer
	logger   zerolog.Logger
	appeared time.Time

	// kevery state is not safe for concurrent batches
	mu sync.Mutex
}

// New builds the router for cfg. A non-empty AuthToken or SealKey guards
// the write routes: the static token acts as the node's own role, sealed
// tokens carry theirs, and every route checks the role against
// auth.DefaultGrants.
func New(cfg config.NodeConfig, baser *db.Baser, kevery *eventing.Kevery, logger zerolog.Logger) (*Server, error) {
	observability.RegisterMetrics()
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(requestID())
	r.Use(observability.RequestLogger(logger))
	r.Use(observability.RequestMetricsMiddleware(cfg.Alias))
	r.Use(cors.New(cors.Config{
		AllowOrigins: normalizeOrigins(cfg.CorsOrigins),
		AllowMethods: []string{"GET", "POST"},
		AllowHeaders: []string{"Origin", "Content-Type", "Authorization"},
		MaxAge:       12 * time.Hour,
	}))
	_ = r.SetTrustedProxies([]string{"127.0.0.1", "::1"})

	s := &Server{
		cfg:      cfg,
		router:   r,
		baser:    baser,
		kevery:   kevery,
		logger:   logger,
		appeared: time.Now(),
	}
	var chain auth.Chain
	if cfg.AuthToken != "" {
		chain = append(chain, auth.StaticToken{Token: cfg.AuthToken, Role: cfg.Role})
	}
	if len(cfg.SealKey) > 0 {
		sealer, err := auth.NewSealer(cfg.SealKey)
		if err != nil {
			return nil, err
		}
		chain = append(chain, sealer)
	}
	if len(chain) > 0 {
		s.authn = chain
		s.authz = auth.DefaultGrants()
	}
	s.registerRoutes()
	return s, nil
}

func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) registerRoutes() {
	s.router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":  "ok",
			"uptime":  time.Since(s.appeared).String(),
			"alias":   s.cfg.Alias,
			"role":    s.cfg.Role,
			"db_open": s.baser != nil && s.baser.Opened(),
		})
	})
	s.router.GET("/version", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"version": kering.Version().String(),
			"schemes": kering.Schemes(),
			"roles":   kering.Roles(),
		})
	})
	s.router.GET("/kinds", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"kinds": kindTree()})
	})
	s.router.GET("/kels/:prefix", s.getKel)
	if s.cfg.MetricsEnabled {
		s.router.GET("/metrics", gin.WrapH(promhttp.Handler()))
	}

	write := s.router.Group("/")
	write.Use(s.authenticate())
	write.POST("/messages", s.authorize(auth.ActionSubmit), s.postMessages)
	write.GET("/escrows", s.authorize(auth.ActionReadEscrows), s.listEscrows)
	write.POST("/escrows/process", s.authorize(auth.ActionProcessEscrows), s.processEscrows)
}

type kindEntry struct {
	Name   string `json:"name"`
	Parent string `json:"parent,omitempty"`
}

func kindTree() []kindEntry {
	kinds := kering.Kinds()
	out := make([]kindEntry, 0, len(kinds))
	for _, k := range kinds {
		entry := kindEntry{Name: k.String()}
		if p, ok := k.Parent(); ok {
			entry.Parent = p.String()
		}
		out = append(out, entry)
	}
	return out
}

// MessageResult reports what happened to one message of a batch.
type MessageResult struct {
	Ilk    string `json:"ilk"`
	Prefix string `json:"prefix"`
	Sn     string `json:"sn"`
	Said   string `json:"said"`
	Status string `json:"status"`
	Kind   string `json:"kind,omitempty"`
}

// postMessages reads the body through a protocol.Reader and processes the
// messages in order. Leading garbage is skipped by the reader. The first
// failure that cannot be escrowed ends the batch; the error body then lists
// the messages handled before it.
func (s *Server) postMessages(c *gin.Context) {
	buf, err := io.ReadAll(http.MaxBytesReader(c.Writer, c.Request.Body, maxBodyBytes))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			s.failWith(c, http.StatusRequestEntityTooLarge,
				kering.Wrap(kering.ErrExtraction, err, fmt.Sprintf("body exceeds %d bytes", tooLarge.Limit)), nil)
			return
		}
		s.fail(c, kering.Wrap(kering.ErrExtraction, err, "read body"))
		return
	}
	if len(buf) == 0 {
		s.fail(c, kering.New(kering.ErrShortage, "empty body"))
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	results := make([]MessageResult, 0, 1)
	escrowed := false
	reader := protocol.NewReader(bytes.NewReader(buf), s.logger)
	for {
		msg, err := reader.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			s.failWith(c, StatusFor(err), err, results)
			return
		}

		res := MessageResult{Ilk: msg.T, Prefix: msg.I, Sn: msg.S, Said: msg.D, Status: "accepted"}
		if err := s.kevery.Process(msg); err != nil {
			if !eventing.Escrowable(err) {
				s.failWith(c, StatusFor(err), err, results)
				return
			}
			kind, _ := kering.KindOf(err)
			res.Status = "escrowed"
			res.Kind = kind.String()
			escrowed = true
		}
		results = append(results, res)
	}
	if len(results) == 0 {
		s.fail(c, kering.New(kering.ErrShortage, "no message in body"))
		return
	}

	status := http.StatusOK
	if escrowed {
		status = http.StatusAccepted
	}
	c.JSON(status, gin.H{"messages": results, "request_id": c.GetString(requestIDKey)})
}

func (s *Server) getKel(c *gin.Context) {
	if s.baser == nil {
		s.fail(c, kering.New(kering.ErrClosed, "no database attached"))
		return
	}
	events, err := s.baser.Kel(c.Param("prefix"))
	if err != nil {
		s.fail(c, err)
		return
	}
	out := make([]string, 0, len(events))
	for _, raw := range events {
		out = append(out, string(raw))
	}
	c.JSON(http.StatusOK, gin.H{"prefix": c.Param("prefix"), "events": out})
}

type escrowEntry struct {
	Key         string    `json:"key"`
	Kind        string    `json:"kind"`
	Attempts    int       `json:"attempts"`
	QueuedAt    time.Time `json:"queued_at"`
	NextAttempt time.Time `json:"next_attempt_at"`
	LastError   string    `json:"last_error"`
}

func (s *Server) listEscrows(c *gin.Context) {
	items := s.kevery.Escrow().List()
	out := make([]escrowEntry, 0, len(items))
	for _, item := range items {
		out = append(out, escrowEntry{
			Key:         item.Key,
			Kind:        item.Kind.String(),
			Attempts:    item.Attempts,
			QueuedAt:    item.QueuedAt,
			NextAttempt: item.NextAttemptAt,
			LastError:   item.LastError,
		})
	}
	c.JSON(http.StatusOK, gin.H{"escrows": out})
}

func (s *Server) processEscrows(c *gin.Context) {
	accepted := s.ProcessEscrows()
	c.JSON(http.StatusOK, gin.H{"accepted": accepted, "remaining": len(s.kevery.Escrow().List())})
}

// ProcessEscrows retries due escrowed messages under the batch lock.
func (s *Server) ProcessEscrows() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.kevery.ProcessEscrows()
}

// RunEscrows retries escrows every interval until ctx is done.
func (s *Server) RunEscrows(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := s.ProcessEscrows(); n > 0 {
				s.logger.Info().Int("accepted", n).Msg("escrows_processed")
			}
		}
	}
}

// Serve listens on the configured address until ctx is done, then shuts
// down gracefully.
func (s *Server) Serve(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.cfg.ListenAddr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()
	s.logger.Info().Str("addr", s.cfg.ListenAddr).Msg("server started")

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return kering.Wrap(kering.ErrConfiguration, err, "listen "+s.cfg.ListenAddr)
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return kering.Wrap(kering.ErrKeri, err, "shutdown")
		}
		return nil
	}
}

func (s *Server) authenticate() gin.HandlerFunc {
	return func(c *gin.Context) {
		if s.authn == nil {
			c.Next()
			return
		}
		token, err := auth.Bearer(c.GetHeader("Authorization"))
		var role kering.Role
		if err == nil {
			role, err = s.authn.Authenticate(token)
		}
		if err != nil {
			s.fail(c, err)
			c.Abort()
			return
		}
		c.Set(roleKey, role)
		c.Next()
	}
}

// authorize checks the authenticated role against action. Open nodes
// skip the check.
func (s *Server) authorize(action string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if s.authz == nil {
			c.Next()
			return
		}
		role, _ := c.Get(roleKey)
		r, _ := role.(kering.Role)
		if err := s.authz.Authorize(r, action); err != nil {
			s.fail(c, err)
			c.Abort()
			return
		}
		c.Next()
	}
}

// fail attaches err for the request logger and writes the error body.
func (s *Server) fail(c *gin.Context, err error) {
	s.failWith(c, StatusFor(err), err, nil)
}

func (s *Server) failWith(c *gin.Context, status int, err error, done []MessageResult) {
	_ = c.Error(err)
	body := errorBody(err, c.GetString(requestIDKey))
	body.Messages = done
	c.JSON(status, body)
}

func requestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(requestIDHeader)
		if _, err := uuid.Parse(id); err != nil {
			id = uuid.NewString()
		}
		c.Set(requestIDKey, id)
		c.Header(requestIDHeader, id)
		c.Next()
	}
}

func normalizeOrigins(origins []string) []string {
	if len(origins) == 0 {
		return []string{"http://localhost:3000"}
	}
	return origins
}
