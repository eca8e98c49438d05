// Package indexer runs the full build: walk, extract, resolve, generate, publish.
package indexer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/skelly-dev/codr/internal/config"
	"github.com/skelly-dev/codr/internal/graph"
	"github.com/skelly-dev/codr/internal/ignore"
	"github.com/skelly-dev/codr/internal/metadata"
	"github.com/skelly-dev/codr/internal/parser"
	"github.com/skelly-dev/codr/internal/store"
	"github.com/skelly-dev/codr/internal/walker"
)

// ErrInvalidRoot is returned when the build root is missing or not a directory.
var ErrInvalidRoot = errors.New("invalid root")

const (
	SeverityWarning = "warning"
	SeverityError   = "error"
)

// Report summarizes one build.
type Report struct {
	BuildID    string              `json:"build_id"`
	Generation int                 `json:"generation"`
	Root       string              `json:"root"`
	Processed  int                 `json:"processed"`
	Skipped    int                 `json:"skipped"`
	Failed     int                 `json:"failed"`
	Entities   int                 `json:"entities"`
	Functions  int                 `json:"functions"`
	Classes    int                 `json:"classes"`
	Nodes      int                 `json:"nodes"`
	Edges      int                 `json:"edges"`
	Issues     []parser.ParseIssue `json:"issues"`
	Duration   time.Duration       `json:"duration_ns"`
}

// ProgressFunc is called after each file is extracted.
type ProgressFunc func(done, total int)

type Indexer struct {
	cfg       config.Config
	languages *parser.Registry
	logger    *slog.Logger
	stores    *store.Registry
	progress  ProgressFunc
}

type Option func(*Indexer)

// WithStores publishes through r instead of opening a store per build.
func WithStores(r *store.Registry) Option {
	return func(ix *Indexer) { ix.stores = r }
}

func WithProgress(fn ProgressFunc) Option {
	return func(ix *Indexer) { ix.progress = fn }
}

func New(cfg config.Config, languages *parser.Registry, logger *slog.Logger, opts ...Option) *Indexer {
	if logger == nil {
		logger = slog.Default()
	}
	ix := &Indexer{cfg: cfg, languages: languages, logger: logger}
	for _, opt := range opts {
		opt(ix)
	}
	return ix
}

type outcome int

const (
	outcomeParsed outcome = iota
	outcomeSkipped
	outcomeFailed
)

type extraction struct {
	result   outcome
	analysis *parser.FileAnalysis
	issue    *parser.ParseIssue
}

// Build indexes root and publishes the result as the store's new generation.
// The previous generation stays readable until the publish completes.
func (ix *Indexer) Build(ctx context.Context, root string) (*Report, error) {
	start := time.Now()
	buildID := uuid.NewString()

	ctx, span := tracer.Start(ctx, "index.build", trace.WithAttributes(
		attribute.String("codr.build_id", buildID),
		attribute.String("codr.root", root),
	))
	defer span.End()

	report, err := ix.build(ctx, root, buildID)
	buildDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		buildsTotal.WithLabelValues("error").Inc()
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		ix.logger.Error("index build failed", "build_id", buildID, "root", root, "error", err)
		return nil, err
	}
	buildsTotal.WithLabelValues("success").Inc()
	span.SetStatus(codes.Ok, "")

	report.Duration = time.Since(start)
	ix.logger.Info("index built",
		"build_id", buildID,
		"root", report.Root,
		"generation", report.Generation,
		"processed", report.Processed,
		"skipped", report.Skipped,
		"failed", report.Failed,
		"duration", report.Duration,
	)
	return report, nil
}

func (ix *Indexer) build(ctx context.Context, root, buildID string) (*Report, error) {
	absRoot, err := resolveRoot(root)
	if err != nil {
		return nil, err
	}
	report := &Report{BuildID: buildID, Root: absRoot, Issues: []parser.ParseIssue{}}

	paths, err := ix.walk(absRoot, report)
	if err != nil {
		return nil, err
	}

	analyses, err := ix.extractAll(ctx, paths, report)
	if err != nil {
		return nil, err
	}

	_, resolveSpan := tracer.Start(ctx, "index.resolve")
	table := graph.BuildSymbolTable(analyses)
	for _, c := range table.Conflicts() {
		ix.logger.Warn("duplicate top-level name", "name", c.Name, "file", c.Winner, "shadowed", c.Others)
		report.Issues = append(report.Issues, parser.ParseIssue{
			File:     c.Winner,
			Severity: SeverityWarning,
			Message:  fmt.Sprintf("name %q also declared in %d other file(s); first declaration wins", c.Name, len(c.Others)),
		})
	}
	g := graph.Build(analyses, table)
	resolveSpan.SetAttributes(attribute.Int("codr.nodes", g.NodeCount()), attribute.Int("codr.edges", g.EdgeCount()))
	resolveSpan.End()

	sets, err := generate(ctx, analyses, g)
	if err != nil {
		return nil, err
	}

	st, err := ix.store(absRoot)
	if err != nil {
		return nil, err
	}
	publishCtx, publishSpan := tracer.Start(ctx, "index.publish")
	manifest, err := st.Publish(publishCtx, sets, store.Manifest{BuildID: buildID})
	if err != nil {
		publishSpan.RecordError(err)
		publishSpan.SetStatus(codes.Error, err.Error())
		publishSpan.End()
		return nil, fmt.Errorf("publish metadata: %w", err)
	}
	publishSpan.SetAttributes(attribute.Int("codr.generation", manifest.Generation))
	publishSpan.End()

	report.Generation = manifest.Generation
	report.Functions = len(sets.Functions)
	report.Classes = len(sets.Classes)
	report.Nodes = g.NodeCount()
	report.Edges = g.EdgeCount()
	for _, a := range analyses {
		report.Entities += len(a.Entities)
		for _, ent := range a.Entities {
			entitiesTotal.WithLabelValues(string(ent.Kind)).Inc()
		}
	}
	return report, nil
}

func resolveRoot(root string) (string, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return "", fmt.Errorf("%w: %s: %v", ErrInvalidRoot, root, err)
	}
	info, err := os.Stat(abs)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrInvalidRoot, err)
	}
	if !info.IsDir() {
		return "", fmt.Errorf("%w: %s is not a directory", ErrInvalidRoot, abs)
	}
	return filepath.Clean(abs), nil
}

// walk collects accepted files in walk order. Walk errors become warnings.
func (ix *Indexer) walk(root string, report *Report) ([]string, error) {
	matcher, err := ignore.Load(root, ix.cfg.Ignore, ix.cfg.RespectGitignore)
	if err != nil {
		return nil, fmt.Errorf("load ignore rules: %w", err)
	}

	paths := make([]string, 0)
	for path, err := range walker.Walk(root, walker.Options{
		Ignore:         matcher,
		Accept:         ix.accepts,
		FollowSymlinks: ix.cfg.FollowSymlinks,
	}) {
		if err != nil {
			ix.logger.Warn("walk problem", "error", err)
			report.Issues = append(report.Issues, parser.ParseIssue{
				Severity: SeverityWarning,
				Message:  err.Error(),
			})
			continue
		}
		paths = append(paths, path)
	}
	return paths, nil
}

func (ix *Indexer) accepts(path string) bool {
	p, ok := ix.languages.GetParserForFile(path)
	if !ok {
		return false
	}
	return len(ix.cfg.Languages) == 0 || ix.cfg.LanguageEnabled(p.Language())
}

// extractAll runs phase one on a bounded worker pool. Results keep walk order so
// symbol-table precedence does not depend on scheduling.
func (ix *Indexer) extractAll(ctx context.Context, paths []string, report *Report) ([]*parser.FileAnalysis, error) {
	ctx, span := tracer.Start(ctx, "index.extract", trace.WithAttributes(attribute.Int("codr.files", len(paths))))
	defer span.End()

	results := make([]extraction, len(paths))
	workers := ix.cfg.Workers
	if workers < 1 {
		workers = 1
	}

	var done atomic.Int64
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i, path := range paths {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			results[i] = ix.extract(path)
			if ix.progress != nil {
				ix.progress(int(done.Add(1)), len(paths))
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		span.RecordError(err)
		return nil, err
	}

	analyses := make([]*parser.FileAnalysis, 0, len(paths))
	for _, r := range results {
		switch r.result {
		case outcomeParsed:
			report.Processed++
			filesTotal.WithLabelValues("processed").Inc()
			analyses = append(analyses, r.analysis)
		case outcomeSkipped:
			report.Skipped++
			filesTotal.WithLabelValues("skipped").Inc()
		case outcomeFailed:
			report.Failed++
			filesTotal.WithLabelValues("failed").Inc()
		}
		if r.issue != nil {
			report.Issues = append(report.Issues, *r.issue)
		}
	}
	return analyses, nil
}

func (ix *Indexer) extract(path string) extraction {
	p, ok := ix.languages.GetParserForFile(path)
	if !ok {
		return extraction{result: outcomeSkipped}
	}
	issue := func(severity string, err error) *parser.ParseIssue {
		return &parser.ParseIssue{File: path, Language: p.Language(), Severity: severity, Message: err.Error()}
	}

	info, err := os.Stat(path)
	if err != nil {
		ix.logger.Warn("skipping unreadable file", "file", path, "error", err)
		return extraction{result: outcomeSkipped, issue: issue(SeverityWarning, err)}
	}
	if ix.cfg.MaxFileBytes > 0 && info.Size() > ix.cfg.MaxFileBytes {
		err := fmt.Errorf("file is %d bytes, over the %d byte limit", info.Size(), ix.cfg.MaxFileBytes)
		ix.logger.Warn("skipping large file", "file", path, "size", info.Size())
		return extraction{result: outcomeSkipped, issue: issue(SeverityWarning, err)}
	}

	content, err := os.ReadFile(path)
	if err != nil {
		ix.logger.Warn("skipping unreadable file", "file", path, "error", err)
		return extraction{result: outcomeSkipped, issue: issue(SeverityWarning, err)}
	}

	analysis, err := ix.languages.ParseContent(p, path, content)
	if err != nil {
		ix.logger.Warn("parse failed", "file", path, "error", err)
		return extraction{result: outcomeFailed, issue: issue(SeverityError, err)}
	}
	return extraction{result: outcomeParsed, analysis: analysis}
}

// generate runs the four independent generators concurrently.
func generate(ctx context.Context, analyses []*parser.FileAnalysis, g *graph.Graph) (metadata.RecordSets, error) {
	var sets metadata.RecordSets
	eg, _ := errgroup.WithContext(ctx)
	eg.Go(func() error { sets.Functions = metadata.Functions(analyses); return nil })
	eg.Go(func() error { sets.Classes = metadata.Classes(analyses); return nil })
	eg.Go(func() error { sets.Files = metadata.Files(analyses); return nil })
	eg.Go(func() error { sets.CallGraph = metadata.CallGraph(g); return nil })
	if err := eg.Wait(); err != nil {
		return metadata.RecordSets{}, err
	}
	return sets, ctx.Err()
}

func (ix *Indexer) store(root string) (*store.Store, error) {
	if ix.stores != nil {
		return ix.stores.Get(root)
	}
	return store.Open(root, store.Options{
		Dir:               ix.cfg.MetadataDir,
		RetainGenerations: ix.cfg.RetainGenerations,
	})
}
