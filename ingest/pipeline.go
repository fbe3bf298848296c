// Package ingest walks a document tree, splits files into overlapping chunks
// and writes them to the vector store. Re-running the pipeline over unchanged
// files is a no-op at the store level: chunk IDs are content-addressed, so an
// unchanged chunk upserts onto itself.
package ingest

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/dataninja/ragchat/logging"
	"github.com/dataninja/ragchat/retrieval"
)

// supportedExtensions are the file types the pipeline ingests.
var supportedExtensions = map[string]bool{
	".md":  true,
	".txt": true,
}

// DocumentWriter is the slice of the store the pipeline needs.
type DocumentWriter interface {
	Upsert(ctx context.Context, doc retrieval.Document) error
}

// Stats summarize one pipeline run.
type Stats struct {
	FilesIngested int
	FilesSkipped  int
	FilesFailed   int
	ChunksWritten int
	Duration      time.Duration
}

// PipelineOptions configure the ingest pipeline.
type PipelineOptions struct {
	// ChunkSize is the target chunk length in runes.
	ChunkSize int
	// ChunkOverlap is the rune overlap between adjacent chunks.
	ChunkOverlap int
	// Logger receives structured pipeline events.
	Logger logging.Logger
}

// Pipeline ingests a directory of documents into a DocumentWriter.
type Pipeline struct {
	writer  DocumentWriter
	chunker *Chunker
	logger  logging.Logger
}

// NewPipeline creates an ingest pipeline over the given writer.
func NewPipeline(writer DocumentWriter, optFns ...func(o *PipelineOptions)) *Pipeline {
	opts := PipelineOptions{
		ChunkSize:    1000,
		ChunkOverlap: 200,
		Logger:       logging.NoOpLogger{},
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	return &Pipeline{
		writer:  writer,
		chunker: NewChunker(opts.ChunkSize, opts.ChunkOverlap),
		logger:  opts.Logger,
	}
}

// IngestDir walks root recursively and ingests every supported file. A file
// that fails to read, parse or write is counted and logged but does not stop
// the walk; only a broken walk itself (or a canceled context) aborts the run.
func (p *Pipeline) IngestDir(ctx context.Context, root string) (Stats, error) {
	start := time.Now()
	var stats Stats

	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if d.IsDir() {
			// Skip hidden directories like .git wholesale.
			if name := d.Name(); name != "." && strings.HasPrefix(name, ".") {
				return filepath.SkipDir
			}
			return nil
		}
		if !supportedExtensions[strings.ToLower(filepath.Ext(path))] {
			stats.FilesSkipped++
			return nil
		}

		n, ferr := p.IngestFile(ctx, path)
		if ferr != nil {
			stats.FilesFailed++
			p.logger.Error("ingest.file.failed", "path", path, "error", ferr.Error())
			return nil
		}
		stats.FilesIngested++
		stats.ChunksWritten += n
		return nil
	})
	stats.Duration = time.Since(start)
	if err != nil {
		return stats, fmt.Errorf("walk %s: %w", root, err)
	}

	p.logger.Info("ingest.done",
		"files", stats.FilesIngested,
		"skipped", stats.FilesSkipped,
		"failed", stats.FilesFailed,
		"chunks", stats.ChunksWritten,
		"duration_ms", stats.Duration.Milliseconds(),
	)
	return stats, nil
}

// IngestFile chunks and writes a single file, returning the number of chunks
// written.
func (p *Pipeline) IngestFile(ctx context.Context, path string) (int, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return 0, fmt.Errorf("read %s: %w", path, err)
	}

	meta, body, err := splitFrontmatter(raw)
	if err != nil {
		return 0, fmt.Errorf("parse frontmatter in %s: %w", path, err)
	}
	if meta == nil {
		meta = map[string]any{}
	}
	meta["source"] = filepath.ToSlash(path)

	chunks := p.chunker.Split(body)
	for i, chunk := range chunks {
		if ctx.Err() != nil {
			return i, ctx.Err()
		}
		chunkMeta := make(map[string]any, len(meta)+2)
		for k, v := range meta {
			chunkMeta[k] = v
		}
		chunkMeta["chunk"] = i
		chunkMeta["chunk_total"] = len(chunks)

		doc := retrieval.Document{
			ID:       chunkID(path, chunk),
			Content:  chunk,
			Metadata: chunkMeta,
		}
		if err := p.writer.Upsert(ctx, doc); err != nil {
			return i, fmt.Errorf("upsert chunk %d of %s: %w", i, path, err)
		}
	}

	p.logger.Debug("ingest.file", "path", path, "chunks", len(chunks))
	return len(chunks), nil
}

// chunkID derives a stable content-addressed ID so re-ingesting unchanged
// content maps onto the same row.
func chunkID(path, chunk string) string {
	h := sha256.Sum256([]byte(filepath.ToSlash(path) + "\x00" + chunk))
	return hex.EncodeToString(h[:16])
}

// splitFrontmatter separates an optional YAML frontmatter block (delimited by
// leading and trailing "---" lines) from the document body. Files without
// frontmatter pass through with nil metadata.
func splitFrontmatter(raw []byte) (map[string]any, string, error) {
	const delim = "---"
	text := string(raw)

	if !strings.HasPrefix(text, delim+"\n") && text != delim {
		return nil, text, nil
	}

	rest := text[len(delim)+1:]
	end := strings.Index(rest, "\n"+delim)
	if end < 0 {
		// Opening delimiter without a closing one: treat the whole
		// file as body rather than guessing.
		return nil, text, nil
	}

	var meta map[string]any
	if err := yaml.Unmarshal([]byte(rest[:end]), &meta); err != nil {
		return nil, "", err
	}

	body := rest[end+1+len(delim):]
	body = strings.TrimPrefix(body, "\n")
	return meta, body, nil
}
