// Package server exposes index, query and mutation operations over HTTP.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/skelly-dev/codr/internal/config"
	"github.com/skelly-dev/codr/internal/indexer"
	"github.com/skelly-dev/codr/internal/metadata"
	"github.com/skelly-dev/codr/internal/mutate"
	"github.com/skelly-dev/codr/internal/parser"
	"github.com/skelly-dev/codr/internal/query"
	"github.com/skelly-dev/codr/internal/store"
)

var requestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "codr",
	Name:      "http_requests_total",
	Help:      "HTTP requests by route and status",
}, []string{"route", "status"})

type Server struct {
	cfg       config.Config
	root      string
	languages *parser.Registry
	stores    *store.Registry
	logger    *slog.Logger
	engine    *gin.Engine

	// mu serializes builds and mutations; queries run concurrently.
	mu sync.Mutex
}

// New builds a server whose default project is root.
func New(cfg config.Config, root string, languages *parser.Registry, logger *slog.Logger) (*Server, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("resolve root %s: %w", root, err)
	}
	stores, err := store.NewRegistry(cfg.Server.CacheSize, store.Options{
		Dir:               cfg.MetadataDir,
		RetainGenerations: cfg.RetainGenerations,
	})
	if err != nil {
		return nil, err
	}
	if logger == nil {
		logger = slog.Default()
	}

	s := &Server{
		cfg:       cfg,
		root:      filepath.Clean(abs),
		languages: languages,
		stores:    stores,
		logger:    logger,
	}
	s.engine = s.routes()
	return s, nil
}

func (s *Server) Handler() http.Handler {
	return s.engine
}

func (s *Server) routes() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), s.observe())

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	v1 := r.Group("/v1")
	{
		v1.POST("/index", s.handleIndex)

		v1.GET("/functions/:name", s.handleFunction)
		v1.GET("/classes/:name", s.handleClass)
		v1.GET("/files", s.handleFile)
		v1.GET("/callgraph/:name", s.handleCallGraph)
		v1.GET("/records/:kind", s.handleRecords)

		v1.POST("/mutations/delete", s.handleDelete)
		v1.POST("/mutations/insert", s.handleInsert)
	}
	return r
}

func (s *Server) observe() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		requestsTotal.WithLabelValues(route, strconv.Itoa(c.Writer.Status())).Inc()
		s.logger.Debug("request", "method", c.Request.Method, "route", route,
			"status", c.Writer.Status(), "duration", time.Since(start))
	}
}

// Run serves on cfg.Server.Addr until ctx is cancelled.
func (s *Server) Run(ctx context.Context) error {
	if s.cfg.Server.Watch {
		st, err := s.stores.Get(s.root)
		if err != nil {
			return err
		}
		w, err := NewWatcher(st, s.languages, s.logger)
		if err != nil {
			s.logger.Warn("staleness watcher disabled", "error", err)
		} else {
			go func() {
				if err := w.Run(ctx); err != nil {
					s.logger.Warn("staleness watcher stopped", "error", err)
				}
			}()
		}
	}

	srv := &http.Server{
		Addr:              s.cfg.Server.Addr,
		Handler:           s.engine,
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("serving", "addr", s.cfg.Server.Addr, "root", s.root)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}

func (s *Server) resolveRoot(raw string) string {
	if raw == "" {
		return s.root
	}
	return raw
}

func (s *Server) querier(c *gin.Context) (*query.Service, bool) {
	st, err := s.stores.Get(s.resolveRoot(c.Query("root")))
	if err != nil {
		s.fail(c, err)
		return nil, false
	}
	return query.New(st), true
}

func wantSource(c *gin.Context) []query.Option {
	if ok, _ := strconv.ParseBool(c.Query("source")); ok {
		return []query.Option{query.WithSource()}
	}
	return nil
}

func (s *Server) handleIndex(c *gin.Context) {
	var req IndexRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err)
			return
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	ix := indexer.New(s.cfg, s.languages, s.logger, indexer.WithStores(s.stores))
	report, err := ix.Build(c.Request.Context(), s.resolveRoot(req.Root))
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, report)
}

func (s *Server) handleFunction(c *gin.Context) {
	q, ok := s.querier(c)
	if !ok {
		return
	}
	name := c.Param("name")

	if all, _ := strconv.ParseBool(c.Query("all")); all {
		res, err := q.Functions(name)
		s.reply(c, res, res.Found, err, "function "+name)
		return
	}
	res, err := q.Function(name, wantSource(c)...)
	s.reply(c, res, res.Found, err, "function "+name)
}

func (s *Server) handleClass(c *gin.Context) {
	q, ok := s.querier(c)
	if !ok {
		return
	}
	name := c.Param("name")
	res, err := q.Class(name, wantSource(c)...)
	s.reply(c, res, res.Found, err, "class "+name)
}

func (s *Server) handleFile(c *gin.Context) {
	fragment := c.Query("path")
	if fragment == "" {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "path parameter is required", Code: CodeInvalidRequest})
		return
	}
	q, ok := s.querier(c)
	if !ok {
		return
	}
	res, err := q.File(fragment, wantSource(c)...)
	s.reply(c, res, res.Found, err, "file matching "+fragment)
}

func (s *Server) handleCallGraph(c *gin.Context) {
	q, ok := s.querier(c)
	if !ok {
		return
	}
	name := c.Param("name")
	res, err := q.CallNeighborhood(name)
	s.reply(c, res, res.Found, err, "call graph node "+name)
}

func (s *Server) handleRecords(c *gin.Context) {
	st, err := s.stores.Get(s.resolveRoot(c.Query("root")))
	if err != nil {
		s.fail(c, err)
		return
	}
	records, err := st.Load(metadata.Kind(c.Param("kind")))
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, records)
}

func (s *Server) handleDelete(c *gin.Context) {
	var req DeleteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	s.mutate(c, req.Root, req.File, func(svc *mutate.Service, path string) (mutate.Result, error) {
		return svc.DeleteRange(path, req.StartLine, req.EndLine)
	})
}

func (s *Server) handleInsert(c *gin.Context) {
	var req InsertRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	s.mutate(c, req.Root, req.File, func(svc *mutate.Service, path string) (mutate.Result, error) {
		return svc.InsertAt(path, req.StartLine, req.Content)
	})
}

func (s *Server) mutate(c *gin.Context, rawRoot, file string, apply func(*mutate.Service, string) (mutate.Result, error)) {
	st, err := s.stores.Get(s.resolveRoot(rawRoot))
	if err != nil {
		s.fail(c, err)
		return
	}
	path, ok := withinRoot(st.Root(), file)
	if !ok {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error: fmt.Sprintf("%s is outside %s", file, st.Root()),
			Code:  CodePathOutsideRoot,
		})
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := apply(mutate.New(st), path)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

// withinRoot accepts file only if it stays under root both lexically and after
// symlinks in its existing prefix are resolved.
func withinRoot(root, file string) (string, bool) {
	path := file
	if !filepath.IsAbs(path) {
		path = filepath.Join(root, path)
	}
	path = filepath.Clean(path)
	if !contains(root, path) {
		return "", false
	}
	realRoot, err := filepath.EvalSymlinks(root)
	if err != nil {
		return "", false
	}
	resolved, err := resolveExisting(path)
	if err != nil || !contains(realRoot, resolved) {
		return "", false
	}
	return path, true
}

func contains(root, path string) bool {
	rel, err := filepath.Rel(root, path)
	return err == nil && rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}

// resolveExisting evaluates symlinks on the longest existing prefix of path and
// re-appends the missing tail.
func resolveExisting(path string) (string, error) {
	tail := ""
	for cur := path; ; {
		resolved, err := filepath.EvalSymlinks(cur)
		if err == nil {
			return filepath.Join(resolved, tail), nil
		}
		if !os.IsNotExist(err) {
			return "", err
		}
		parent := filepath.Dir(cur)
		if parent == cur {
			return "", err
		}
		tail = filepath.Join(filepath.Base(cur), tail)
		cur = parent
	}
}

func (s *Server) reply(c *gin.Context, body any, found bool, err error, what string) {
	if err != nil {
		s.fail(c, err)
		return
	}
	if !found {
		c.JSON(http.StatusNotFound, ErrorResponse{Error: what + " not found", Code: CodeNotFound})
		return
	}
	c.JSON(http.StatusOK, body)
}

func badRequest(c *gin.Context, err error) {
	c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error(), Code: CodeInvalidRequest})
}

// fail maps domain errors onto status codes.
func (s *Server) fail(c *gin.Context, err error) {
	status, code := http.StatusInternalServerError, CodeInternal
	var mErr *mutate.Error
	switch {
	case errors.Is(err, store.ErrUninitialized):
		status, code = http.StatusConflict, CodeStoreUninitialized
	case errors.Is(err, store.ErrUnknownKind):
		status, code = http.StatusNotFound, CodeNotFound
	case errors.Is(err, indexer.ErrInvalidRoot):
		status, code = http.StatusBadRequest, CodeInvalidRoot
	case errors.Is(err, mutate.ErrFileNotFound):
		status, code = http.StatusUnprocessableEntity, CodeFileNotFound
	case errors.Is(err, mutate.ErrInvalidRange):
		status, code = http.StatusUnprocessableEntity, CodeInvalidRange
	case errors.As(err, &mErr):
		status, code = http.StatusUnprocessableEntity, CodeMutationFailed
	}
	if status == http.StatusInternalServerError {
		s.logger.Error("request failed", "path", c.Request.URL.Path, "error", err)
	}
	c.JSON(status, ErrorResponse{Error: err.Error(), Code: code})
}
