// Package ingest rebuilds the retrieval backends from a source CSV.
//
// A run is a full rebuild: the relational table is cleared and reloaded,
// and the vector collection is dropped and re-embedded. Both backends are
// derived from the same rows so lookups and semantic hits agree on the
// record contents.
package ingest

import (
	"context"
	"database/sql"
	"encoding/csv"
	"fmt"
	"io"
	"log/slog"
	"os"
	"slices"
	"strconv"
	"strings"
	"sync"

	"github.com/philippgille/chromem-go"
	"golang.org/x/sync/errgroup"
	_ "modernc.org/sqlite"

	"github.com/konecto/actuator-agent/core"
	"github.com/konecto/actuator-agent/embed"
)

const (
	defaultCollection  = "actuators"
	defaultConcurrency = 4
	embedBatchSize     = 64
)

// Config carries the pipeline wiring.
type Config struct {
	SQLitePath  string
	ChromaDir   string
	Collection  string
	Embedder    embed.Embedder
	Logger      *slog.Logger
	Concurrency int
}

// Summary reports what a run produced.
type Summary struct {
	Rows   int
	Chunks int
}

// Pipeline loads actuator rows into both retrieval backends.
type Pipeline struct {
	cfg    Config
	logger *slog.Logger
}

func NewPipeline(cfg Config) *Pipeline {
	if cfg.Collection == "" {
		cfg.Collection = defaultCollection
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = defaultConcurrency
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Pipeline{cfg: cfg, logger: logger.With("component", "ingest")}
}

// Run reads the CSV at path and rebuilds both backends.
func (p *Pipeline) Run(ctx context.Context, path string) (*Summary, error) {
	rows, err := readRows(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("no data rows in %s", path)
	}

	if err := p.loadRelational(ctx, rows); err != nil {
		return nil, err
	}
	p.logger.Info("relational store rebuilt", "rows", len(rows))

	chunks, err := p.loadVectors(ctx, rows)
	if err != nil {
		return nil, err
	}
	p.logger.Info("vector store rebuilt", "chunks", chunks)

	return &Summary{Rows: len(rows), Chunks: chunks}, nil
}

// Row is one actuator record with its columns in file order.
type Row struct {
	PartNumber string
	Attributes *core.Attributes
}

func readRows(path string) ([]Row, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	reader := csv.NewReader(f)
	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}

	columns := make([]string, len(header))
	partIdx := -1
	for i, name := range header {
		columns[i] = canonicalKey(NormalizeColumn(name))
		if columns[i] == "base_part_number" {
			partIdx = i
		}
	}
	if partIdx < 0 {
		return nil, fmt.Errorf("missing base_part_number column, have %v", columns)
	}

	var rows []Row
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read row: %w", err)
		}
		part := strings.TrimSpace(record[partIdx])
		if part == "" {
			continue
		}
		attrs := core.NewAttributes()
		for i, raw := range record {
			if i == partIdx || i >= len(columns) {
				continue
			}
			attrs.Set(columns[i], classifyCell(raw))
		}
		rows = append(rows, Row{PartNumber: part, Attributes: attrs})
	}
	return rows, nil
}

// NormalizeColumn maps a CSV header to a snake_case attribute key.
// "Output Torque (Nm)" becomes "output_torque_nm".
func NormalizeColumn(name string) string {
	s := strings.ToLower(strings.TrimSpace(name))
	s = strings.ReplaceAll(s, "%", "pct")
	replacer := strings.NewReplacer(" ", "_", "/", "_", "-", "_", "(", "", ")", "", "[", "", "]", "")
	s = replacer.Replace(s)
	for strings.Contains(s, "__") {
		s = strings.ReplaceAll(s, "__", "_")
	}
	return strings.Trim(s, "_")
}

// canonicalKey collapses the column namings used for the operating-context
// class onto the one key both tools read. Source CSVs carry it as either a
// Context_Type or a Voltage/Power column depending on the extraction run.
func canonicalKey(key string) string {
	if key == "voltage_power" {
		return "context_type"
	}
	return key
}

// classifyCell prefers numeric values so downstream JSON carries numbers,
// not numeric strings.
func classifyCell(raw string) core.Value {
	trimmed := strings.TrimSpace(raw)
	if f, err := strconv.ParseFloat(trimmed, 64); err == nil {
		return core.Number(f)
	}
	return core.String(trimmed)
}

func (p *Pipeline) loadRelational(ctx context.Context, rows []Row) error {
	dsn := p.cfg.SQLitePath + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return fmt.Errorf("open sqlite: %w", err)
	}
	defer db.Close()

	if _, err := db.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS actuators (
		base_part_number TEXT PRIMARY KEY,
		data_json TEXT NOT NULL
	)`); err != nil {
		return fmt.Errorf("ensure schema: %w", err)
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM actuators`); err != nil {
		return fmt.Errorf("clear table: %w", err)
	}
	stmt, err := tx.PrepareContext(ctx, `INSERT OR REPLACE INTO actuators (base_part_number, data_json) VALUES (?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare insert: %w", err)
	}
	defer stmt.Close()

	for _, row := range rows {
		payload, err := row.Attributes.MarshalJSON()
		if err != nil {
			return fmt.Errorf("encode %s: %w", row.PartNumber, err)
		}
		if _, err := stmt.ExecContext(ctx, row.PartNumber, string(payload)); err != nil {
			return fmt.Errorf("insert %s: %w", row.PartNumber, err)
		}
	}
	return tx.Commit()
}

func (p *Pipeline) loadVectors(ctx context.Context, rows []Row) (int, error) {
	if p.cfg.Embedder == nil {
		return 0, fmt.Errorf("embedder is required for vector ingest")
	}
	db, err := chromem.NewPersistentDB(p.cfg.ChromaDir, false)
	if err != nil {
		return 0, fmt.Errorf("open vector store: %w", err)
	}
	// Drop any stale collection so removed rows do not linger.
	_ = db.DeleteCollection(p.cfg.Collection)
	collection, err := db.GetOrCreateCollection(p.cfg.Collection, nil, nil)
	if err != nil {
		return 0, fmt.Errorf("create collection: %w", err)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.cfg.Concurrency)

	var mu sync.Mutex
	count := 0
	for batch := range slices.Chunk(rows, embedBatchSize) {
		g.Go(func() error {
			texts := make([]string, len(batch))
			for i, row := range batch {
				texts[i] = NarrativeText(row.PartNumber, row.Attributes)
			}
			embeddings, err := p.embedTexts(gctx, texts)
			if err != nil {
				return err
			}
			for i, row := range batch {
				doc := chromem.Document{
					ID:        row.PartNumber,
					Content:   texts[i],
					Embedding: embeddings[i],
					Metadata:  chunkMetadata(row),
				}
				if err := collection.AddDocument(gctx, doc); err != nil {
					return fmt.Errorf("add %s: %w", row.PartNumber, err)
				}
			}
			mu.Lock()
			count += len(batch)
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return 0, err
	}
	return count, nil
}

// embedTexts uses the bulk API when the embedder offers one.
func (p *Pipeline) embedTexts(ctx context.Context, texts []string) ([][]float32, error) {
	if batcher, ok := p.cfg.Embedder.(embed.BatchEmbedder); ok {
		embeddings, err := batcher.EmbedBatch(ctx, texts)
		if err != nil {
			return nil, fmt.Errorf("embed batch: %w", err)
		}
		return embeddings, nil
	}
	embeddings := make([][]float32, len(texts))
	for i, text := range texts {
		emb, err := p.cfg.Embedder.Embed(ctx, text)
		if err != nil {
			return nil, fmt.Errorf("embed %q: %w", text, err)
		}
		embeddings[i] = emb
	}
	return embeddings, nil
}

// NarrativeText renders a row as prose for embedding. Absent values are
// skipped so padding never dilutes the vector.
func NarrativeText(partNumber string, attrs *core.Attributes) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Base Part Number: %s.", partNumber)
	for _, key := range attrs.Keys() {
		value, _ := attrs.Get(key)
		if value.Omit() {
			continue
		}
		fmt.Fprintf(&b, " %s: %s.", displayColumn(key), value.Render())
	}
	return b.String()
}

func chunkMetadata(row Row) map[string]string {
	meta := map[string]string{
		"base_part_number": row.PartNumber,
		"identifier":       row.PartNumber,
		"context_type":     "specification",
		"source_table":     "actuators",
	}
	if v, ok := row.Attributes.Get("context_type"); ok && !v.Omit() {
		meta["context_type"] = v.Render()
	}
	for _, key := range row.Attributes.Keys() {
		value, _ := row.Attributes.Get(key)
		if value.Omit() {
			continue
		}
		if _, err := strconv.ParseFloat(value.Render(), 64); err == nil {
			meta[key] = value.Render()
		}
	}
	return meta
}

func displayColumn(key string) string {
	parts := strings.Split(key, "_")
	for i, part := range parts {
		if part == "" {
			continue
		}
		parts[i] = strings.ToUpper(part[:1]) + part[1:]
	}
	return strings.Join(parts, " ")
}
