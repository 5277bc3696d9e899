package cachestore

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"
	_ "github.com/jackc/pgx/v5/stdlib"

	"promptstats/internal/stats"
	"promptstats/internal/util/jsonutil"
)

// ResultKey addresses one aggregated result. TopN is deliberately not part
// of the key: the store holds the full table and topN is applied at
// formatting time.
type ResultKey struct {
	Digest   string
	Sort     string
	MaxPages int
}

func (k ResultKey) String() string {
	return fmt.Sprintf("%s_%s_%d", k.Digest, k.Sort, k.MaxPages)
}

// Result is the persisted pair of ordered token-count lists.
type Result struct {
	PositiveCounts []stats.Entry `json:"positiveCounts"`
	NegativeCounts []stats.Entry `json:"negativeCounts"`
}

// ResultStore keeps one JSON file per key under the cache directory, or a
// single Postgres table when constructed with a DSN. A small LRU sits in
// front of either backend.
type ResultStore struct {
	dir string
	db  *sql.DB

	schemaOnce sync.Once
	schemaErr  error

	recent *lru.Cache[string, Result]
}

const resultSchema = `CREATE TABLE IF NOT EXISTS prompt_stats_results (
	key        TEXT PRIMARY KEY,
	payload    JSONB NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
)`

// NewResultStore opens a file-backed store rooted at dir.
func NewResultStore(dir string) (*ResultStore, error) {
	if err := ensureDir(dir); err != nil {
		return nil, fmt.Errorf("cachestore: create cache dir: %w", err)
	}
	recent, err := lru.New[string, Result](256)
	if err != nil {
		return nil, err
	}
	return &ResultStore{dir: dir, recent: recent}, nil
}

// NewResultStorePostgres opens a Postgres-backed store.
func NewResultStorePostgres(dsn string) (*ResultStore, error) {
	db, err := sql.Open("pgx", strings.TrimSpace(dsn))
	if err != nil {
		return nil, err
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, err
	}
	recent, err := lru.New[string, Result](256)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	return &ResultStore{db: db, recent: recent}, nil
}

// NewResultStoreFromEnv prefers Postgres when PROMPTSTATS_PG_DSN is set and
// reachable, falling back to the file store under dir.
func NewResultStoreFromEnv(dir string) (*ResultStore, error) {
	dsn := strings.TrimSpace(os.Getenv("PROMPTSTATS_PG_DSN"))
	if dsn != "" {
		s, err := NewResultStorePostgres(dsn)
		if err == nil {
			return s, nil
		}
		log.Printf("cachestore: postgres result store unavailable, using files: %v", err)
	}
	return NewResultStore(dir)
}

// Close releases the database handle, if any.
func (s *ResultStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Get returns the cached result for key. Absent and malformed entries are
// both reported as a miss.
func (s *ResultStore) Get(ctx context.Context, key ResultKey) (Result, bool) {
	if s == nil {
		return Result{}, false
	}
	ks := key.String()
	if res, ok := s.recent.Get(ks); ok {
		return res, true
	}
	var (
		res Result
		ok  bool
	)
	if s.db != nil {
		res, ok = s.getDB(ctx, ks)
	} else {
		ok = readJSON(s.entryPath(key), &res)
	}
	if ok {
		s.recent.Add(ks, res)
	}
	return res, ok
}

// Put stores the result for key, overwriting any previous (possibly
// corrupt) entry.
func (s *ResultStore) Put(ctx context.Context, key ResultKey, res Result) error {
	if s == nil {
		return fmt.Errorf("cachestore: result store is nil")
	}
	ks := key.String()
	if s.db != nil {
		if err := s.putDB(ctx, ks, res); err != nil {
			return err
		}
	} else if err := writeJSONAtomic(s.entryPath(key), res); err != nil {
		return err
	}
	s.recent.Add(ks, res)
	return nil
}

func (s *ResultStore) entryPath(key ResultKey) string {
	return filepath.Join(s.dir, key.String()+".json")
}

func (s *ResultStore) ensureSchema(ctx context.Context) error {
	s.schemaOnce.Do(func() {
		_, s.schemaErr = s.db.ExecContext(ctx, resultSchema)
	})
	return s.schemaErr
}

func (s *ResultStore) getDB(ctx context.Context, key string) (Result, bool) {
	if err := s.ensureSchema(ctx); err != nil {
		log.Printf("cachestore: ensure result schema: %v", err)
		return Result{}, false
	}
	var payload []byte
	err := s.db.QueryRowContext(ctx,
		`SELECT payload FROM prompt_stats_results WHERE key = $1`, key,
	).Scan(&payload)
	if err != nil {
		if err != sql.ErrNoRows {
			log.Printf("cachestore: read result %s: %v", key, err)
		}
		return Result{}, false
	}
	var res Result
	if err := json.Unmarshal(payload, &res); err != nil {
		return Result{}, false
	}
	return res, true
}

func (s *ResultStore) putDB(ctx context.Context, key string, res Result) error {
	if err := s.ensureSchema(ctx); err != nil {
		return err
	}
	payload, err := jsonutil.MarshalNoEscape(res)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO prompt_stats_results (key, payload, updated_at)
		 VALUES ($1, $2, now())
		 ON CONFLICT (key) DO UPDATE SET payload = EXCLUDED.payload, updated_at = now()`,
		key, payload)
	return err
}
