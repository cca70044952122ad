// Package server exposes mcvmd over HTTP: a synchronous resolve endpoint,
// a WebSocket stream of per-package resolve progress, and the health/metrics
// endpoints the platform's own api-server carries.
package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/mcvm-launcher/mcvm-sub000/internal/cache"
	"github.com/mcvm-launcher/mcvm-sub000/internal/lockfile"
	"github.com/mcvm-launcher/mcvm-sub000/internal/logging"
	"github.com/mcvm-launcher/mcvm-sub000/internal/pkgid"
	"github.com/mcvm-launcher/mcvm-sub000/internal/resolver"
	"github.com/mcvm-launcher/mcvm-sub000/internal/store"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// ProgressEvent is one line of a resolve run's WebSocket stream.
type ProgressEvent struct {
	RunID     string    `json:"run_id"`
	Type      string    `json:"type"` // "started", "package_resolved", "completed", "failed"
	PackageID string    `json:"package_id,omitempty"`
	Message   string    `json:"message,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// progressHub fans out ProgressEvents to every WebSocket connection
// subscribed to a run id, mirroring the platform's tenant/server connection
// registry shape but keyed by resolve-run id instead.
type progressHub struct {
	mu    sync.RWMutex
	conns map[string][]*websocket.Conn // run id -> subscribers
}

func newProgressHub() *progressHub {
	return &progressHub{conns: map[string][]*websocket.Conn{}}
}

func (h *progressHub) subscribe(runID string, c *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.conns[runID] = append(h.conns[runID], c)
}

func (h *progressHub) unsubscribe(runID string, c *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	conns := h.conns[runID]
	for i, existing := range conns {
		if existing == c {
			h.conns[runID] = append(conns[:i], conns[i+1:]...)
			break
		}
	}
	if len(h.conns[runID]) == 0 {
		delete(h.conns, runID)
	}
}

func (h *progressHub) publish(ev ProgressEvent) {
	h.mu.RLock()
	conns := append([]*websocket.Conn{}, h.conns[ev.RunID]...)
	h.mu.RUnlock()
	for _, c := range conns {
		_ = c.WriteJSON(ev)
	}
}

// Server is mcvmd's HTTP surface.
type Server struct {
	engine   *gin.Engine
	resolver *resolver.Resolver
	log      logging.Logger
	hub      *progressHub

	// cache and store are both optional: a Server with neither still
	// resolves correctly, just without a distributed plan cache or
	// durable run history (mirrors the degraded-mode startup in cmd/mcvmd).
	cache      *cache.Manager
	cacheKeys  *cache.Keys
	runHistory *store.Store

	mu          sync.RWMutex
	cacheHits   int64
	cacheMisses int64
}

// New builds a Server wired to r for evaluating requests.
func New(r *resolver.Resolver, log logging.Logger) *Server {
	engine := gin.New()
	engine.Use(gin.Recovery())

	s := &Server{engine: engine, resolver: r, log: log, hub: newProgressHub()}
	s.routes()
	return s
}

// WithCache attaches a distributed plan cache and returns s for chaining.
func (s *Server) WithCache(m *cache.Manager) *Server {
	s.cache = m
	s.cacheKeys = cache.NewKeys()
	return s
}

// WithStore attaches durable resolve-run history and returns s for chaining.
func (s *Server) WithStore(st *store.Store) *Server {
	s.runHistory = st
	return s
}

func (s *Server) Engine() *gin.Engine { return s.engine }

func (s *Server) routes() {
	s.engine.GET("/v1/health", s.handleHealth)
	s.engine.GET("/metrics", s.handleMetrics)
	s.engine.POST("/v1/resolve", s.handleResolve)
	s.engine.GET("/ws", s.handleWebSocket)
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (s *Server) handleMetrics(c *gin.Context) {
	s.mu.RLock()
	hits, misses := s.cacheHits, s.cacheMisses
	s.mu.RUnlock()
	if s.cache != nil {
		if stats, err := s.cache.Stats(c.Request.Context()); err == nil {
			hits, misses = stats.Hits, stats.Misses
		}
	}
	c.String(http.StatusOK,
		"# TYPE mcvm_cache_hits_total counter\nmcvm_cache_hits_total %d\n"+
			"# TYPE mcvm_cache_misses_total counter\nmcvm_cache_misses_total %d\n",
		hits, misses)
}

// resolveRequest is the wire shape for POST /v1/resolve.
type resolveRequest struct {
	Requests []struct {
		ID       string   `json:"id"`
		Features []string `json:"features,omitempty"`
	} `json:"requests"`
	Environment struct {
		MCVersion    string `json:"minecraft_version"`
		Side         string `json:"side"`
		Modloader    string `json:"modloader"`
		PluginLoader string `json:"plugin_loader"`
		OS           string `json:"os"`
		Arch         string `json:"arch"`
		Language     string `json:"language"`
		Permissions  string `json:"permissions"`
		Stability    string `json:"stability"`
		Versions     []string `json:"known_versions"`
	} `json:"environment"`
}

func (s *Server) handleResolve(c *gin.Context) {
	var req resolveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "parse_error", "message": err.Error()})
		return
	}

	runID := uuid.NewString()
	ctx := logging.WithRunID(c.Request.Context(), runID)
	s.log.Info(ctx, "resolve run started", logging.String("run_id", runID))
	s.hub.publish(ProgressEvent{RunID: runID, Type: "started", Timestamp: time.Now()})

	requestedIDs := make([]string, len(req.Requests))
	for i, r := range req.Requests {
		requestedIDs[i] = r.ID
	}
	if s.runHistory != nil {
		if _, err := s.runHistory.RecordRunStart(ctx, uuid.MustParse(runID), requestedIDs); err != nil {
			s.log.Warn(ctx, "failed to record run start", logging.Err(err))
		}
	}

	var planKey string
	if s.cache != nil {
		body, _ := json.Marshal(req)
		planKey = s.cacheKeys.ResolvePlan(pkgid.HashBytes(body))
		var cached lockfile.Lockfile
		if ok, err := s.cache.Get(ctx, planKey, &cached); err == nil && ok {
			cached.RunID = runID
			s.hub.publish(ProgressEvent{RunID: runID, Type: "completed", Message: "served from cache", Timestamp: time.Now()})
			s.recordOutcome(ctx, runID, store.RunStatusSucceeded, planPackageIDsOf(&cached), "", "", 0)
			c.JSON(http.StatusOK, cached)
			return
		}
	}

	started := time.Now()

	perm, _ := pkgid.ParsePermission(req.Environment.Permissions)
	stab, _ := pkgid.ParseStability(req.Environment.Stability)
	env := &pkgid.Environment{
		MCVersion:         req.Environment.MCVersion,
		Side:              pkgid.Side(req.Environment.Side),
		Modloader:         req.Environment.Modloader,
		PluginLoader:      req.Environment.PluginLoader,
		OS:                req.Environment.OS,
		Arch:              req.Environment.Arch,
		Language:          req.Environment.Language,
		Permissions:       perm,
		Stability:         stab,
		Versions:          pkgid.NewVersionList(req.Environment.Versions, nil),
		RequestedFeatures: map[string]struct{}{},
	}

	var requests []*pkgid.Request
	for _, r := range req.Requests {
		pr := pkgid.NewRequest(r.ID)
		for _, f := range r.Features {
			pr.Features[f] = struct{}{}
		}
		requests = append(requests, pr)
	}

	plan, perr := s.resolver.Resolve(ctx, requests, env)
	if perr != nil {
		s.hub.publish(ProgressEvent{RunID: runID, Type: "failed", Message: perr.Error(), Timestamp: time.Now()})
		s.recordOutcome(ctx, runID, store.RunStatusFailed, nil, string(perr.Code), perr.Message, time.Since(started))
		c.JSON(http.StatusUnprocessableEntity, gin.H{"run_id": runID, "error": string(perr.Code), "message": perr.Message, "path": perr.Path})
		return
	}

	for _, ep := range plan.Packages {
		s.hub.publish(ProgressEvent{RunID: runID, Type: "package_resolved", PackageID: ep.ID, Timestamp: time.Now()})
	}

	lf := lockfile.FromPlan(plan.Packages, plan.Notices, plan.Recommendations, func() string { return runID })
	s.hub.publish(ProgressEvent{RunID: runID, Type: "completed", Timestamp: time.Now()})
	s.recordOutcome(ctx, runID, store.RunStatusSucceeded, planPackageIDsOf(lf), "", "", time.Since(started))
	if s.cache != nil && planKey != "" {
		if err := s.cache.Set(ctx, planKey, lf); err != nil {
			s.log.Warn(ctx, "failed to cache resolve plan", logging.Err(err))
		}
	}
	c.JSON(http.StatusOK, lf)
}

func (s *Server) recordOutcome(ctx context.Context, runID string, status store.RunStatus, planIDs []string, errCode, errMessage string, duration time.Duration) {
	if s.runHistory == nil {
		return
	}
	id, err := uuid.Parse(runID)
	if err != nil {
		return
	}
	if err := s.runHistory.RecordRunOutcome(ctx, id, status, planIDs, errCode, errMessage, duration); err != nil {
		s.log.Warn(ctx, "failed to record run outcome", logging.Err(err))
	}
}

func planPackageIDsOf(lf *lockfile.Lockfile) []string {
	ids := make([]string, len(lf.Packages))
	for i, p := range lf.Packages {
		ids[i] = p.PackageID
	}
	return ids
}

func (s *Server) handleWebSocket(c *gin.Context) {
	runID := c.Query("run_id")
	if runID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "run_id query parameter is required"})
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		return
	}
	s.hub.subscribe(runID, conn)
	defer func() {
		s.hub.unsubscribe(runID, conn)
		conn.Close()
	}()

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}

// Run starts the HTTP server, blocking until ctx is cancelled.
func (s *Server) Run(ctx context.Context, addr string) error {
	srv := &http.Server{Addr: addr, Handler: s.engine}
	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe() }()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	case err := <-errCh:
		if err != nil && err != http.ErrServerClosed {
			return fmt.Errorf("server exited: %w", err)
		}
		return nil
	}
}
