// Package store persists noise graphs in a SQLite database.
//
// Every save of a named graph with a new fingerprint adds a version. The
// canonical JSON document is stored zstd-compressed; loading decodes and
// validates it again, so a stored graph is always a valid document.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	"github.com/klauspost/compress/zstd"
	_ "modernc.org/sqlite"

	"github.com/gogpu/terrain"
	"github.com/gogpu/terrain/config"
	"github.com/gogpu/terrain/noise"
)

// SchemaVersion is the database layout this package reads and writes.
const SchemaVersion = 1

var (
	ErrNotFound = errors.New("store: graph not found")
	ErrUnnamed  = errors.New("store: graph has no name")
	ErrSchema   = errors.New("store: unsupported schema version")
)

// Record describes one stored version of a graph.
type Record struct {
	Name        string
	Version     int
	Fingerprint string
	// Size is the JSON document size and Stored the compressed size.
	Size    int
	Stored  int
	SavedAt time.Time
}

// Option configures Open.
type Option func(*options)

type options struct {
	busyTimeout time.Duration
	level       zstd.EncoderLevel
	now         func() time.Time
}

// WithBusyTimeout sets how long a statement waits on a locked database.
func WithBusyTimeout(d time.Duration) Option {
	return func(o *options) { o.busyTimeout = d }
}

// WithCompressionLevel sets the zstd level, 1 (fastest) to 4 (best).
func WithCompressionLevel(level int) Option {
	return func(o *options) { o.level = zstd.EncoderLevel(level) }
}

// WithClock sets the time source for Record.SavedAt.
func WithClock(now func() time.Time) Option {
	return func(o *options) { o.now = now }
}

// Store is a graph database. It is safe for concurrent use.
type Store struct {
	db  *sql.DB
	enc *zstd.Encoder
	dec *zstd.Decoder
	now func() time.Time
	log *slog.Logger

	once sync.Once
}

// Open opens or creates the database at path and migrates it.
func Open(path string, opts ...Option) (*Store, error) {
	o := options{busyTimeout: 5 * time.Second, level: zstd.SpeedDefault, now: time.Now}
	for _, opt := range opts {
		opt(&o)
	}
	if path == "" {
		return nil, errors.New("store: empty database path")
	}
	if o.level < zstd.SpeedFastest || o.level > zstd.SpeedBestCompression {
		return nil, fmt.Errorf("store: compression level %d out of range [1, 4]", o.level)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("store: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("store: open %s: %w", path, err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if err := initPragmas(db, o.busyTimeout); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("store: %w", err)
	}
	if err := migrate(db); err != nil {
		_ = db.Close()
		return nil, err
	}

	enc, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(o.level))
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("store: %w", err)
	}
	dec, err := zstd.NewReader(nil)
	if err != nil {
		_ = enc.Close()
		_ = db.Close()
		return nil, fmt.Errorf("store: %w", err)
	}

	s := &Store{db: db, enc: enc, dec: dec, now: o.now, log: terrain.Logger()}
	s.log.Info("store: opened", "path", path, "level", o.level.String())
	return s, nil
}

// FromConfig opens the database described by cfg.
func FromConfig(cfg config.Store) (*Store, error) {
	return Open(cfg.Path,
		WithBusyTimeout(cfg.BusyTimeout.Std()),
		WithCompressionLevel(cfg.CompressionLevel))
}

func initPragmas(db *sql.DB, busy time.Duration) error {
	pragmas := []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA synchronous=NORMAL;",
		"PRAGMA busy_timeout=" + strconv.FormatInt(busy.Milliseconds(), 10) + ";",
		"PRAGMA temp_store=MEMORY;",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			return err
		}
	}
	return nil
}

func migrate(db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS meta (
			key TEXT PRIMARY KEY,
			value TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS graphs (
			name TEXT NOT NULL,
			version INTEGER NOT NULL,
			fingerprint TEXT NOT NULL,
			size INTEGER NOT NULL,
			doc BLOB NOT NULL,
			saved_at TEXT NOT NULL,
			PRIMARY KEY (name, version)
		);`,
		`CREATE INDEX IF NOT EXISTS idx_graphs_fingerprint ON graphs(fingerprint);`,
		`INSERT OR IGNORE INTO meta(key, value) VALUES ('schema_version', '1');`,
	}
	for _, q := range stmts {
		if _, err := db.Exec(q); err != nil {
			return fmt.Errorf("store: migrate: %w", err)
		}
	}

	var v string
	if err := db.QueryRow(`SELECT value FROM meta WHERE key = 'schema_version'`).Scan(&v); err != nil {
		return fmt.Errorf("store: migrate: %w", err)
	}
	if n, err := strconv.Atoi(v); err != nil || n != SchemaVersion {
		return fmt.Errorf("%w: %q", ErrSchema, v)
	}
	return nil
}

// SaveGraph stores g under g.Name. Saving a graph equal to the latest
// version returns that version unchanged.
func (s *Store) SaveGraph(ctx context.Context, g noise.Graph) (Record, error) {
	if g.Name == "" {
		return Record{}, ErrUnnamed
	}
	doc, err := noise.Encode(g)
	if err != nil {
		return Record{}, fmt.Errorf("store: encode %s: %w", g.Name, err)
	}
	fp, err := noise.GraphFingerprint(g)
	if err != nil {
		return Record{}, fmt.Errorf("store: fingerprint %s: %w", g.Name, err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return Record{}, fmt.Errorf("store: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	latest, err := scanRecord(tx.QueryRowContext(ctx,
		`SELECT name, version, fingerprint, size, length(doc), saved_at
		 FROM graphs WHERE name = ? ORDER BY version DESC LIMIT 1`, g.Name))
	switch {
	case err == nil && latest.Fingerprint == fp.String():
		return latest, nil
	case err != nil && !errors.Is(err, ErrNotFound):
		return Record{}, err
	}

	blob := s.enc.EncodeAll(doc, nil)
	rec := Record{
		Name:        g.Name,
		Version:     latest.Version + 1,
		Fingerprint: fp.String(),
		Size:        len(doc),
		Stored:      len(blob),
		SavedAt:     s.now().UTC(),
	}
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO graphs(name, version, fingerprint, size, doc, saved_at) VALUES (?, ?, ?, ?, ?, ?)`,
		rec.Name, rec.Version, rec.Fingerprint, rec.Size, blob, rec.SavedAt.Format(time.RFC3339Nano)); err != nil {
		return Record{}, fmt.Errorf("store: save %s: %w", g.Name, err)
	}
	if err := tx.Commit(); err != nil {
		return Record{}, fmt.Errorf("store: save %s: %w", g.Name, err)
	}
	s.log.Info("store: saved graph", "name", rec.Name, "version", rec.Version, "bytes", rec.Stored)
	return rec, nil
}

// LoadGraph returns the latest version of the named graph.
func (s *Store) LoadGraph(ctx context.Context, name string) (noise.Graph, Record, error) {
	return s.load(ctx, name,
		`SELECT name, version, fingerprint, size, length(doc), saved_at, doc
		 FROM graphs WHERE name = ? ORDER BY version DESC LIMIT 1`, name)
}

// LoadVersion returns one version of the named graph.
func (s *Store) LoadVersion(ctx context.Context, name string, version int) (noise.Graph, Record, error) {
	return s.load(ctx, name,
		`SELECT name, version, fingerprint, size, length(doc), saved_at, doc
		 FROM graphs WHERE name = ? AND version = ?`, name, version)
}

func (s *Store) load(ctx context.Context, name, query string, args ...any) (noise.Graph, Record, error) {
	var (
		rec   Record
		saved string
		blob  []byte
	)
	err := s.db.QueryRowContext(ctx, query, args...).
		Scan(&rec.Name, &rec.Version, &rec.Fingerprint, &rec.Size, &rec.Stored, &saved, &blob)
	if errors.Is(err, sql.ErrNoRows) {
		return noise.Graph{}, Record{}, fmt.Errorf("%w: %s", ErrNotFound, name)
	}
	if err != nil {
		return noise.Graph{}, Record{}, fmt.Errorf("store: load %s: %w", name, err)
	}
	if rec.SavedAt, err = time.Parse(time.RFC3339Nano, saved); err != nil {
		return noise.Graph{}, Record{}, fmt.Errorf("store: load %s: %w", name, err)
	}

	doc, err := s.dec.DecodeAll(blob, nil)
	if err != nil {
		return noise.Graph{}, Record{}, fmt.Errorf("store: decompress %s v%d: %w", name, rec.Version, err)
	}
	g, err := noise.DecodeJSON(doc)
	if err != nil {
		return noise.Graph{}, Record{}, fmt.Errorf("store: decode %s v%d: %w", name, rec.Version, err)
	}
	return g, rec, nil
}

// ListGraphs returns the latest version of every graph, ordered by name.
func (s *Store) ListGraphs(ctx context.Context) ([]Record, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT g.name, g.version, g.fingerprint, g.size, length(g.doc), g.saved_at
		 FROM graphs g
		 JOIN (SELECT name, MAX(version) AS version FROM graphs GROUP BY name) latest
		   ON g.name = latest.name AND g.version = latest.version
		 ORDER BY g.name`)
	if err != nil {
		return nil, fmt.Errorf("store: list: %w", err)
	}
	defer rows.Close()

	var out []Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("store: list: %w", err)
	}
	return out, nil
}

// History returns every version of the named graph, oldest first.
func (s *Store) History(ctx context.Context, name string) ([]Record, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT name, version, fingerprint, size, length(doc), saved_at
		 FROM graphs WHERE name = ? ORDER BY version`, name)
	if err != nil {
		return nil, fmt.Errorf("store: history %s: %w", name, err)
	}
	defer rows.Close()

	var out []Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("store: history %s: %w", name, err)
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, name)
	}
	return out, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRecord(row scanner) (Record, error) {
	var (
		rec   Record
		saved string
	)
	err := row.Scan(&rec.Name, &rec.Version, &rec.Fingerprint, &rec.Size, &rec.Stored, &saved)
	if errors.Is(err, sql.ErrNoRows) {
		return Record{}, ErrNotFound
	}
	if err != nil {
		return Record{}, fmt.Errorf("store: scan: %w", err)
	}
	if rec.SavedAt, err = time.Parse(time.RFC3339Nano, saved); err != nil {
		return Record{}, fmt.Errorf("store: scan: %w", err)
	}
	return rec, nil
}

// Close closes the database. It is safe to call more than once.
func (s *Store) Close() error {
	var err error
	s.once.Do(func() {
		s.dec.Close()
		_ = s.enc.Close()
		err = s.db.Close()
	})
	return err
}
