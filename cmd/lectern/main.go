// Copyright 2026 Lectern Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Command lectern ingests course materials and serves hybrid retrieval.
//
// Usage:
//
//	lectern ingest --config config.yaml
//	lectern retrieve "how does quicksort partition" --week 3
//	lectern serve --config config.yaml
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"runtime/debug"
	"syscall"

	"github.com/alecthomas/kong"

	"github.com/lectern-ai/lectern/pkg/config"
	"github.com/lectern-ai/lectern/pkg/embedder"
	"github.com/lectern-ai/lectern/pkg/ingest"
	"github.com/lectern-ai/lectern/pkg/observability"
	"github.com/lectern-ai/lectern/pkg/search"
	"github.com/lectern-ai/lectern/pkg/server"
	"github.com/lectern-ai/lectern/pkg/store"
)

// CLI defines the command-line interface.
type CLI struct {
	Version  VersionCmd  `cmd:"" help:"Show version information."`
	Ingest   IngestCmd   `cmd:"" help:"Ingest the source directory into the index."`
	Retrieve RetrieveCmd `cmd:"" help:"Run a retrieval query."`
	Scope    ScopeCmd    `cmd:"" help:"Check whether a query is answerable from the index."`
	Status   StatusCmd   `cmd:"" help:"Show index statistics."`
	Serve    ServeCmd    `cmd:"" help:"Start the HTTP API server."`

	Config    string `short:"c" help:"Path to config file." type:"path"`
	LogLevel  string `help:"Log level (debug, info, warn, error)." default:""`
	LogFormat string `help:"Log format (text or json)." default:""`
}

// app bundles everything a command needs.
type app struct {
	cfg      *config.Config
	store    *store.HybridStore
	embedder embedder.Embedder
	pipeline *ingest.Pipeline
	engine   *search.Engine
	scope    *search.Scope
	metrics  *observability.Metrics
}

func (cli *CLI) loadConfig() (*config.Config, error) {
	var cfg *config.Config
	var err error
	if cli.Config != "" {
		cfg, err = config.Load(cli.Config)
		if err != nil {
			return nil, err
		}
	} else {
		cfg = config.Default()
	}

	if cli.LogLevel != "" {
		cfg.Logging.Level = cli.LogLevel
	}
	if cli.LogFormat != "" {
		cfg.Logging.Format = cli.LogFormat
	}
	observability.SetupLogging(cfg.Logging)
	return cfg, nil
}

func (cli *CLI) buildApp() (*app, error) {
	cfg, err := cli.loadConfig()
	if err != nil {
		return nil, err
	}

	st, err := store.Open(cfg)
	if err != nil {
		return nil, err
	}

	emb, err := embedder.New(cfg.Embedder)
	if err != nil {
		st.Close()
		return nil, err
	}

	pipeline, err := ingest.NewPipeline(cfg, st, emb)
	if err != nil {
		st.Close()
		return nil, err
	}

	engine := search.NewEngine(st, emb, cfg.Retrieval, cfg.Dedup)

	metrics := observability.NewMetrics()
	pipeline.SetMetrics(metrics)

	return &app{
		cfg:      cfg,
		store:    st,
		embedder: emb,
		pipeline: pipeline,
		engine:   engine,
		scope:    search.NewScope(engine, cfg.Scope),
		metrics:  metrics,
	}, nil
}

// VersionCmd shows version information.
type VersionCmd struct{}

func (c *VersionCmd) Run() error {
	version := "dev"
	if info, ok := debug.ReadBuildInfo(); ok {
		if info.Main.Version != "(devel)" && info.Main.Version != "" {
			version = info.Main.Version
		}
	}
	fmt.Printf("lectern version %s\n", version)
	return nil
}

// IngestCmd runs one synchronous ingest pass.
type IngestCmd struct {
	Source string `help:"Source directory (overrides config)." type:"path"`
	Force  bool   `help:"Reprocess documents already indexed."`
	Prefix string `help:"Only ingest files under this path prefix relative to the source root."`
	Week   int    `help:"Only ingest files for this week number."`
}

func (c *IngestCmd) Run(cli *CLI) error {
	a, err := cli.buildApp()
	if err != nil {
		return err
	}
	defer a.store.Close()

	if c.Source != "" {
		a.cfg.Source.Path = c.Source
	}
	if a.cfg.Source.Path == "" {
		return fmt.Errorf("no source directory configured; use --source or config")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	job, err := a.pipeline.Run(ctx, ingest.Options{
		Force:        c.Force,
		SourcePrefix: c.Prefix,
		Week:         c.Week,
	})
	if err != nil {
		return err
	}

	fmt.Printf("Ingest %s\n", job.State)
	fmt.Printf("  discovered: %d\n", job.Counts.FilesDiscovered)
	fmt.Printf("  processed:  %d\n", job.Counts.FilesProcessed)
	fmt.Printf("  skipped:    %d\n", job.Counts.FilesSkipped)
	fmt.Printf("  failed:     %d\n", job.Counts.FilesFailed)
	fmt.Printf("  chunks:     %d\n", job.Counts.ChunksIndexed)
	fmt.Printf("  duplicates: %d\n", job.Counts.DuplicatesDropped)
	if job.Counts.EmbeddingFailures > 0 {
		fmt.Printf("  embedding failures: %d\n", job.Counts.EmbeddingFailures)
	}
	for _, msg := range job.Errors {
		fmt.Printf("  error: %s\n", msg)
	}
	return nil
}

// RetrieveCmd runs one query and prints the results.
type RetrieveCmd struct {
	Query    string `arg:"" help:"Query text."`
	TopK     int    `help:"Number of results." default:"0"`
	Week     int    `help:"Restrict to a week number."`
	Module   string `help:"Restrict to a module name."`
	FileType string `name:"file-type" help:"Restrict to a file type (pdf, pptx, docx)."`
	Year     string `help:"Restrict to an academic year."`
	Document string `help:"Restrict to a document ID."`
}

func (c *RetrieveCmd) Run(cli *CLI) error {
	a, err := cli.buildApp()
	if err != nil {
		return err
	}
	defer a.store.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	resp, err := a.engine.Search(ctx, search.Request{
		Query:        c.Query,
		TopK:         c.TopK,
		WeekNumber:   c.Week,
		ModuleName:   c.Module,
		FileType:     c.FileType,
		AcademicYear: c.Year,
		DocumentID:   c.Document,
	})
	if err != nil {
		return err
	}

	fmt.Printf("%d results (%d candidates, %dms)\n\n",
		len(resp.Results), resp.TotalHits, resp.QueryTimeMs)
	for i, r := range resp.Results {
		ch := r.Chunk
		fmt.Printf("%d. [%.3f] %s (%s)\n", i+1, r.Score, ch.ChunkID, ch.Locator())
		if ch.Title != "" {
			fmt.Printf("   %s\n", ch.Title)
		}
		content := ch.Content
		if len(content) > 200 {
			content = content[:200] + "..."
		}
		fmt.Printf("   %s\n\n", content)
	}
	return nil
}

// ScopeCmd checks a query against the scope predicate.
type ScopeCmd struct {
	Query string `arg:"" help:"Query text."`
}

func (c *ScopeCmd) Run(cli *CLI) error {
	a, err := cli.buildApp()
	if err != nil {
		return err
	}
	defer a.store.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	res := a.scope.Check(ctx, c.Query)
	fmt.Printf("in_scope:   %v\n", res.InScope)
	fmt.Printf("confidence: %.2f\n", res.Confidence)
	fmt.Printf("reason:     %s\n", res.Reason)
	return nil
}

// StatusCmd prints index statistics.
type StatusCmd struct{}

func (c *StatusCmd) Run(cli *CLI) error {
	a, err := cli.buildApp()
	if err != nil {
		return err
	}
	defer a.store.Close()

	count, err := a.store.Count(context.Background())
	if err != nil {
		return err
	}
	fmt.Printf("indexed chunks: %d\n", count)
	fmt.Printf("vector store:   %s (collection %s)\n",
		a.cfg.VectorStore.Type, a.cfg.VectorStore.Collection)
	fmt.Printf("lexical index:  %s\n", a.cfg.Lexical.Path)
	return nil
}

// ServeCmd starts the HTTP API, with the source watcher when enabled.
type ServeCmd struct{}

func (c *ServeCmd) Run(cli *CLI) error {
	a, err := cli.buildApp()
	if err != nil {
		return err
	}
	defer a.store.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if a.cfg.Ingest.WatchEnabled && a.cfg.Source.Path != "" {
		watcher, err := ingest.NewWatcher(a.cfg.Source, a.pipeline)
		if err != nil {
			return err
		}
		if err := watcher.Start(ctx); err != nil {
			return err
		}
		defer func() {
			if err := watcher.Stop(); err != nil {
				slog.Warn("Failed to stop watcher", "error", err)
			}
		}()
	}

	srv := server.New(a.cfg.Server, a.pipeline, a.engine, a.scope, a.metrics)
	return srv.Start(ctx)
}

func main() {
	var cli CLI
	kctx := kong.Parse(&cli,
		kong.Name("lectern"),
		kong.Description("Course material ingestion and hybrid retrieval."),
		kong.UsageOnError(),
	)
	if err := kctx.Run(&cli); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}
