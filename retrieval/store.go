package retrieval

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"
	pgxvector "github.com/pgvector/pgvector-go/pgx"

	"github.com/dataninja/ragchat/logging"
)

// searchTimeout bounds vector search queries so a slow database cannot stall
// an agent invocation indefinitely.
const searchTimeout = 10 * time.Second

// StoreOptions configure the document store.
type StoreOptions struct {
	// Table is the document table name.
	Table string
	// Dimensions is the embedding vector width, fixed at table creation.
	Dimensions int
	// Logger receives structured store events.
	Logger logging.Logger
}

// Store manages documents with vector search in Postgres + pgvector. It
// embeds content through the configured Embedder on write and embeds queries
// on search.
//
// Store is safe for concurrent use.
type Store struct {
	pool     *pgxpool.Pool
	embedder Embedder
	opts     StoreOptions
}

// NewPool creates a pgx pool with pgvector types registered on every
// connection.
func NewPool(ctx context.Context, dsn string) (*pgxpool.Pool, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}
	cfg.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		return pgxvector.RegisterTypes(ctx, conn)
	}
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	return pool, nil
}

// NewStore creates a store over an existing pool.
func NewStore(pool *pgxpool.Pool, embedder Embedder, optFns ...func(o *StoreOptions)) *Store {
	opts := StoreOptions{
		Table:      "document_chunks",
		Dimensions: 768,
		Logger:     logging.NoOpLogger{},
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	return &Store{pool: pool, embedder: embedder, opts: opts}
}

// EnsureSchema creates the pgvector extension and the document table when
// they do not exist yet. Fatal at startup on failure.
func (s *Store) EnsureSchema(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, "CREATE EXTENSION IF NOT EXISTS vector"); err != nil {
		return fmt.Errorf("create vector extension: %w", err)
	}
	ddl := fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
		id text PRIMARY KEY,
		content text NOT NULL,
		embedding vector(%d) NOT NULL,
		metadata jsonb NOT NULL DEFAULT '{}',
		created_at timestamptz NOT NULL DEFAULT now()
	)`, s.opts.Table, s.opts.Dimensions)
	if _, err := s.pool.Exec(ctx, ddl); err != nil {
		return fmt.Errorf("create table %s: %w", s.opts.Table, err)
	}
	return nil
}

// Upsert embeds the document content and inserts or updates the row.
func (s *Store) Upsert(ctx context.Context, doc Document) error {
	if doc.ID == "" {
		return fmt.Errorf("document id is empty")
	}

	vecs, err := s.embedder.Embed(ctx, []string{doc.Content})
	if err != nil {
		return fmt.Errorf("embed document %s: %w", doc.ID, err)
	}
	if len(vecs) == 0 || len(vecs[0]) == 0 {
		return fmt.Errorf("empty embedding for document %s", doc.ID)
	}

	metadata, err := json.Marshal(doc.Metadata)
	if err != nil {
		return fmt.Errorf("marshal metadata for %s: %w", doc.ID, err)
	}

	query := fmt.Sprintf(`INSERT INTO %s (id, content, embedding, metadata)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (id) DO UPDATE SET
			content = EXCLUDED.content,
			embedding = EXCLUDED.embedding,
			metadata = EXCLUDED.metadata`, s.opts.Table)
	if _, err := s.pool.Exec(ctx, query, doc.ID, doc.Content, pgvector.NewVector(vecs[0]), metadata); err != nil {
		return fmt.Errorf("upsert document %s: %w", doc.ID, err)
	}

	s.opts.Logger.Debug("store.upsert", "id", doc.ID, "content_length", len(doc.Content))
	return nil
}

// Retrieve implements Retriever: embed the query and return the topK most
// similar documents by cosine distance, best first.
func (s *Store) Retrieve(ctx context.Context, query string, topK int) ([]Result, error) {
	if topK <= 0 {
		topK = 3
	}

	vecs, err := s.embedder.Embed(ctx, []string{query})
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}
	if len(vecs) == 0 {
		return nil, fmt.Errorf("empty query embedding")
	}

	ctx, cancel := context.WithTimeout(ctx, searchTimeout)
	defer cancel()

	sql := fmt.Sprintf(`SELECT content, metadata, 1 - (embedding <=> $1) AS score
		FROM %s
		ORDER BY embedding <=> $1
		LIMIT $2`, s.opts.Table)
	rows, err := s.pool.Query(ctx, sql, pgvector.NewVector(vecs[0]), topK)
	if err != nil {
		return nil, fmt.Errorf("vector search: %w", err)
	}
	defer rows.Close()

	var results []Result
	for rows.Next() {
		var (
			content  string
			metadata []byte
			score    float32
		)
		if err := rows.Scan(&content, &metadata, &score); err != nil {
			return nil, fmt.Errorf("scan search row: %w", err)
		}
		r := Result{Text: content, Score: score}
		if len(metadata) > 0 {
			if err := json.Unmarshal(metadata, &r.Metadata); err != nil {
				return nil, fmt.Errorf("unmarshal metadata: %w", err)
			}
		}
		results = append(results, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate search rows: %w", err)
	}

	s.opts.Logger.Debug("store.search", "query_length", len(query), "top_k", topK, "results", len(results))
	return results, nil
}

// Count returns the number of stored documents.
func (s *Store) Count(ctx context.Context) (int64, error) {
	var n int64
	query := fmt.Sprintf("SELECT count(*) FROM %s", s.opts.Table)
	if err := s.pool.QueryRow(ctx, query).Scan(&n); err != nil {
		return 0, fmt.Errorf("count documents: %w", err)
	}
	return n, nil
}
