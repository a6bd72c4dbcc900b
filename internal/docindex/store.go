package docindex

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"

	"github.com/hnrs/adaptive-quiz/internal/quiz"
)

var (
	// ErrIndexNotFound is returned when no index exists for a document hash.
	ErrIndexNotFound = fmt.Errorf("%w: document index not found", quiz.ErrConfigurationInvalid)
	// ErrUnsupportedFormat is returned for files the indexer cannot read.
	ErrUnsupportedFormat = errors.New("unsupported document format")
	// ErrEmptyDocument is returned when a document has no indexable text.
	ErrEmptyDocument = errors.New("document has no text content")
)

// AllowedExtensions are the upload formats the platform accepts. Only plain text is
// extracted locally; the rest must be converted to .txt before indexing.
var AllowedExtensions = []string{".pdf", ".docx", ".pptx", ".txt"}

var hashPattern = regexp.MustCompile(`^[0-9a-f]{64}$`)

const schema = `
CREATE TABLE IF NOT EXISTS meta (
	key   TEXT PRIMARY KEY,
	value TEXT NOT NULL
);
CREATE TABLE IF NOT EXISTS chunks (
	id       INTEGER PRIMARY KEY AUTOINCREMENT,
	position INTEGER NOT NULL,
	content  TEXT NOT NULL
);`

// DocumentInfo describes one stored index.
type DocumentInfo struct {
	Hash      string    `json:"file_hash"`
	Filename  string    `json:"filename"`
	Chunks    int       `json:"chunks"`
	IndexedAt time.Time `json:"indexed_at"`
}

// Store keeps one SQLite file per document under dir, named by content hash.
type Store struct {
	dir    string
	llm    Completer
	logger zerolog.Logger

	group singleflight.Group
	mu    sync.RWMutex
	open  map[string]*Index
}

func NewStore(dir string, llm Completer, logger zerolog.Logger) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create index dir: %w", err)
	}
	return &Store{
		dir:    dir,
		llm:    llm,
		logger: logger.With().Str("component", "docindex").Logger(),
		open:   make(map[string]*Index),
	}, nil
}

func (s *Store) path(hash string) string {
	return filepath.Join(s.dir, hash+".db")
}

// HashContent is the document reference used across the platform.
func HashContent(content []byte) string {
	sum := sha256.Sum256(content)
	return hex.EncodeToString(sum[:])
}

// CheckExtension rejects filenames the indexer cannot read. Only .txt is extracted locally.
func CheckExtension(filename string) error {
	ext := strings.ToLower(filepath.Ext(filename))
	for _, a := range AllowedExtensions {
		if ext != a {
			continue
		}
		if ext != ".txt" {
			return fmt.Errorf("%w: convert %s to .txt before indexing", ErrUnsupportedFormat, ext)
		}
		return nil
	}
	return fmt.Errorf("%w: %q", ErrUnsupportedFormat, ext)
}

// IndexFile reads a document from disk and indexes it.
func (s *Store) IndexFile(ctx context.Context, path string) (string, error) {
	if err := CheckExtension(path); err != nil {
		return "", err
	}
	content, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("read document: %w", err)
	}
	return s.Build(ctx, filepath.Base(path), content)
}

// Ingest indexes uploaded content under its original filename.
func (s *Store) Ingest(ctx context.Context, filename string, content []byte) (string, error) {
	if err := CheckExtension(filename); err != nil {
		return "", err
	}
	return s.Build(ctx, filepath.Base(filename), content)
}

// Build chunks content into a new index and returns its hash. Existing indexes are kept as is.
func (s *Store) Build(ctx context.Context, filename string, content []byte) (string, error) {
	chunks := Chunk(string(content), MaxChunkChars)
	if len(chunks) == 0 {
		return "", ErrEmptyDocument
	}

	hash := HashContent(content)
	final := s.path(hash)
	if _, err := os.Stat(final); err == nil {
		s.logger.Info().Str("file_hash", hash).Msg("document already indexed")
		return hash, nil
	}

	tmp := final + ".tmp"
	_ = os.Remove(tmp)
	if err := writeIndex(ctx, tmp, filename, chunks); err != nil {
		_ = os.Remove(tmp)
		return "", err
	}
	if err := os.Rename(tmp, final); err != nil {
		return "", fmt.Errorf("publish index: %w", err)
	}

	s.logger.Info().Str("file_hash", hash).Str("filename", filename).Int("chunks", len(chunks)).Msg("document indexed")
	return hash, nil
}

func writeIndex(ctx context.Context, path, filename string, chunks []string) error {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return fmt.Errorf("open index: %w", err)
	}
	defer db.Close()

	if _, err := db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("create index schema: %w", err)
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	meta := map[string]string{
		"filename":   filename,
		"indexed_at": time.Now().UTC().Format(time.RFC3339),
	}
	for k, v := range meta {
		if _, err := tx.ExecContext(ctx, `INSERT INTO meta (key, value) VALUES (?, ?)`, k, v); err != nil {
			return fmt.Errorf("write meta: %w", err)
		}
	}

	stmt, err := tx.PrepareContext(ctx, `INSERT INTO chunks (position, content) VALUES (?, ?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()
	for i, c := range chunks {
		if _, err := stmt.ExecContext(ctx, i, c); err != nil {
			return fmt.Errorf("write chunk %d: %w", i, err)
		}
	}
	return tx.Commit()
}

// Open loads the index for hash. Concurrent opens of the same hash share one load.
func (s *Store) Open(ctx context.Context, hash string) (*Index, error) {
	if !hashPattern.MatchString(hash) {
		return nil, ErrIndexNotFound
	}

	s.mu.RLock()
	ix, ok := s.open[hash]
	s.mu.RUnlock()
	if ok {
		return ix, nil
	}

	v, err, _ := s.group.Do(hash, func() (any, error) {
		path := s.path(hash)
		if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
			return nil, ErrIndexNotFound
		}
		loaded, err := s.load(ctx, hash, path)
		if err != nil {
			return nil, err
		}
		s.mu.Lock()
		s.open[hash] = loaded
		s.mu.Unlock()
		return loaded, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*Index), nil
}

func (s *Store) load(ctx context.Context, hash, path string) (*Index, error) {
	db, err := sql.Open("sqlite3", "file:"+path+"?mode=ro")
	if err != nil {
		return nil, fmt.Errorf("open index: %w", err)
	}
	defer db.Close()

	ix := &Index{hash: hash, llm: s.llm}
	if err := db.QueryRowContext(ctx, `SELECT value FROM meta WHERE key = 'filename'`).Scan(&ix.filename); err != nil {
		return nil, fmt.Errorf("read index meta: %w", err)
	}

	rows, err := db.QueryContext(ctx, `SELECT content FROM chunks ORDER BY position`)
	if err != nil {
		return nil, fmt.Errorf("read chunks: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var text string
		if err := rows.Scan(&text); err != nil {
			return nil, err
		}
		ix.chunks = append(ix.chunks, chunk{text: text, tokens: tokenize(text)})
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	s.logger.Debug().Str("file_hash", hash).Int("chunks", len(ix.chunks)).Msg("index loaded")
	return ix, nil
}

// List describes every index in the store.
func (s *Store) List(ctx context.Context) ([]DocumentInfo, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, err
	}

	var out []DocumentInfo
	for _, e := range entries {
		hash, ok := strings.CutSuffix(e.Name(), ".db")
		if !ok || !hashPattern.MatchString(hash) {
			continue
		}
		ix, err := s.Open(ctx, hash)
		if err != nil {
			s.logger.Warn().Err(err).Str("file_hash", hash).Msg("skipping unreadable index")
			continue
		}
		info := DocumentInfo{Hash: hash, Filename: ix.filename, Chunks: ix.Len()}
		if fi, err := e.Info(); err == nil {
			info.IndexedAt = fi.ModTime().UTC()
		}
		out = append(out, info)
	}
	return out, nil
}
