package embedding

import (
	"context"
	"database/sql"
	"encoding/binary"
	"math"
	"path/filepath"

	_ "modernc.org/sqlite"

	lru "github.com/hashicorp/golang-lru/v2"
)

// Cache persists vectors keyed by exact core string. It layers a bounded
// in-memory hot set (golang-lru) in front of a single-file, WAL-mode
// sqlite table. Deleting the file forces full recomputation.
type Cache struct {
	db  *sql.DB
	hot *lru.Cache[string, []float64]
}

const defaultHotSize = 4096

// OpenCache opens (creating if necessary) the on-disk cache file at
// filepath.Join(dir, "embeddings.db").
func OpenCache(ctx context.Context, dir string) (*Cache, error) {
	hot, err := lru.New[string, []float64](defaultHotSize)
	if err != nil {
		return nil, err
	}

	path := filepath.Join(dir, "embeddings.db")
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	if _, err := db.ExecContext(ctx, "PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, err
	}
	const schema = `
CREATE TABLE IF NOT EXISTS embedding_cache (
	key TEXT PRIMARY KEY,
	vector BLOB NOT NULL
);`
	if _, err := db.ExecContext(ctx, schema); err != nil {
		db.Close()
		return nil, err
	}
	return &Cache{db: db, hot: hot}, nil
}

// Close releases the underlying database handle.
func (c *Cache) Close() error { return c.db.Close() }

// Get looks up a cached vector by key, checking the hot set first.
func (c *Cache) Get(ctx context.Context, key string) ([]float64, bool, error) {
	if v, ok := c.hot.Get(key); ok {
		return v, true, nil
	}
	var blob []byte
	err := c.db.QueryRowContext(ctx, `SELECT vector FROM embedding_cache WHERE key = ?`, key).Scan(&blob)
	if err == sql.ErrNoRows {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	vec := decodeVector(blob)
	c.hot.Add(key, vec)
	return vec, true, nil
}

// PutBatch persists a batch of (key, vector) pairs under one
// transaction and prepared statement.
func (c *Cache) PutBatch(ctx context.Context, keys []string, vectors [][]float64) error {
	tx, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
INSERT INTO embedding_cache (key, vector) VALUES (?, ?)
ON CONFLICT(key) DO UPDATE SET vector = excluded.vector;`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for i, key := range keys {
		if _, err := stmt.ExecContext(ctx, key, encodeVector(vectors[i])); err != nil {
			return err
		}
	}
	if err := tx.Commit(); err != nil {
		return err
	}
	for i, key := range keys {
		c.hot.Add(key, vectors[i])
	}
	return nil
}

func encodeVector(v []float64) []byte {
	buf := make([]byte, 8*len(v))
	for i, f := range v {
		binary.LittleEndian.PutUint64(buf[i*8:], math.Float64bits(f))
	}
	return buf
}

func decodeVector(b []byte) []float64 {
	n := len(b) / 8
	v := make([]float64, n)
	for i := 0; i < n; i++ {
		v[i] = math.Float64frombits(binary.LittleEndian.Uint64(b[i*8 : i*8+8]))
	}
	return v
}
