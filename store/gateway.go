// Package store is the retrieval gateway over the two datastores: a SQLite
// table for exact part-number lookups and a chromem-go vector index for
// semantic search. The gateway owns both connection lifecycles; callers
// never touch a backend handle directly.
//
// Both query paths fail open: an unavailable backend yields an empty result,
// never an error. The orchestrator layer always receives a well-typed
// (possibly empty) response.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"sync"

	chromem "github.com/philippgille/chromem-go"
	_ "modernc.org/sqlite"

	"github.com/konecto/actuator-agent/embed"
	"github.com/konecto/actuator-agent/observability"
)

// Config configures the gateway's backends.
type Config struct {
	// SQLitePath is the record store database file.
	SQLitePath string
	// ChromaDir is the persisted vector index directory. If it does not
	// exist at Open time, semantic search is disabled; that is a valid
	// exact-search-only deployment, not an error.
	ChromaDir  string
	Collection string
	Embedder   embed.Embedder
	Logger     *slog.Logger
	Metrics    *observability.Metrics
}

// Gateway unifies access to the record store and the similarity index.
// Safe for concurrent use by multiple in-flight conversations.
type Gateway struct {
	cfg    Config
	logger *slog.Logger

	mu         sync.RWMutex
	db         *sql.DB
	vectors    *chromem.DB
	collection *chromem.Collection
	opened     bool
}

func NewGateway(cfg Config) *Gateway {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Collection == "" {
		cfg.Collection = "actuators"
	}
	return &Gateway{cfg: cfg, logger: logger.With("component", "gateway")}
}

// Open establishes both backend connections. Idempotent: a second call on an
// open gateway is a no-op. The record store opens eagerly; the similarity
// index opens only when its persisted data is present.
func (g *Gateway) Open(ctx context.Context) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.opened {
		return nil
	}

	dsn := g.cfg.SQLitePath + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return fmt.Errorf("open sqlite: %w", err)
	}
	if err := ensureSchema(ctx, db); err != nil {
		db.Close()
		return err
	}
	g.db = db

	if info, err := os.Stat(g.cfg.ChromaDir); err == nil && info.IsDir() {
		vectors, err := chromem.NewPersistentDB(g.cfg.ChromaDir, false)
		if err != nil {
			db.Close()
			g.db = nil
			return fmt.Errorf("open vector index: %w", err)
		}
		collection, err := vectors.GetOrCreateCollection(g.cfg.Collection, nil, nil)
		if err != nil {
			db.Close()
			g.db = nil
			return fmt.Errorf("open vector collection: %w", err)
		}
		g.vectors = vectors
		g.collection = collection
		g.logger.Info("similarity index enabled", "dir", g.cfg.ChromaDir, "documents", collection.Count())
	} else {
		g.logger.Info("similarity index not present, semantic search disabled", "dir", g.cfg.ChromaDir)
	}

	g.opened = true
	return nil
}

// Close releases both connections. Safe to call multiple times; after Close
// both Lookup and Search behave per their unavailable contracts.
func (g *Gateway) Close() error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if !g.opened {
		return nil
	}
	g.opened = false

	var err error
	if g.db != nil {
		err = g.db.Close()
		g.db = nil
	}
	g.vectors = nil
	g.collection = nil
	return err
}

// SemanticAvailable reports whether the similarity index is open.
func (g *Gateway) SemanticAvailable() bool {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.collection != nil
}

func (g *Gateway) countQuery(backend, outcome string) {
	if g.cfg.Metrics == nil {
		return
	}
	g.cfg.Metrics.StoreQueries.WithLabelValues(backend, outcome).Inc()
}

func ensureSchema(ctx context.Context, db *sql.DB) error {
	const schema = `
	CREATE TABLE IF NOT EXISTS actuators (
	  base_part_number TEXT PRIMARY KEY,
	  data_json        TEXT NOT NULL
	);`
	if _, err := db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("ensure schema: %w", err)
	}
	return nil
}
