package runtime

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/tliron/commonlog"
	_ "modernc.org/sqlite"

	"github.com/chazu/wlr/lib/wire"
)

// ErrNotStored indicates the requested key has no stored expression
var ErrNotStored = errors.New("expression not stored")

// Store keeps serialized expressions in a local SQLite database, keyed by
// string. Values are stored in the binary expression format next to their
// input form, which keeps the database readable with the sqlite3 shell.
type Store struct {
	db     *sql.DB
	dbPath string
	mu     sync.Mutex
}

// OpenStore opens or creates the database at dbPath.
func OpenStore(dbPath string) (*Store, error) {
	if dir := filepath.Dir(dbPath); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("creating store directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	// A single connection serializes writers and keeps :memory: databases
	// from splitting across connections.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("setting busy timeout: %w", err)
	}

	_, err = db.Exec(`CREATE TABLE IF NOT EXISTS expressions (
		key     TEXT PRIMARY KEY,
		data    BLOB NOT NULL,
		form    TEXT NOT NULL,
		updated INTEGER NOT NULL
	)`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("creating table: %w", err)
	}

	return &Store{db: db, dbPath: dbPath}, nil
}

// Path returns the database location.
func (s *Store) Path() string {
	return s.dbPath
}

// Close closes the database connection
func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// Save stores an encoded expression under key, replacing any previous
// value.
func (s *Store) Save(key string, data []byte, form string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.Exec(
		"INSERT OR REPLACE INTO expressions (key, data, form, updated) VALUES (?, ?, ?, ?)",
		key, data, form, time.Now().Unix(),
	)
	if err != nil {
		return fmt.Errorf("saving %q: %w", key, err)
	}
	return nil
}

// Load returns the encoded expression stored under key.
func (s *Store) Load(key string) ([]byte, error) {
	var data []byte
	err := s.db.QueryRow("SELECT data FROM expressions WHERE key = ?", key).Scan(&data)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotStored
		}
		return nil, fmt.Errorf("querying %q: %w", key, err)
	}
	return data, nil
}

// Delete removes key. Deleting a missing key is not an error.
func (s *Store) Delete(key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.db.Exec("DELETE FROM expressions WHERE key = ?", key); err != nil {
		return fmt.Errorf("deleting %q: %w", key, err)
	}
	return nil
}

// Keys returns every stored key in sorted order.
func (s *Store) Keys() ([]string, error) {
	rows, err := s.db.Query("SELECT key FROM expressions ORDER BY key")
	if err != nil {
		return nil, fmt.Errorf("listing keys: %w", err)
	}
	defer rows.Close()

	var keys []string
	for rows.Next() {
		var key string
		if err := rows.Scan(&key); err != nil {
			return nil, fmt.Errorf("scanning key: %w", err)
		}
		keys = append(keys, key)
	}
	return keys, rows.Err()
}

// Size returns the total bytes of stored payloads.
func (s *Store) Size() (int64, error) {
	var size sql.NullInt64
	if err := s.db.QueryRow("SELECT SUM(LENGTH(data)) FROM expressions").Scan(&size); err != nil {
		return 0, fmt.Errorf("measuring store: %w", err)
	}
	return size.Int64, nil
}

// ---------------------------------------------------------------------------
// Runtime access
// ---------------------------------------------------------------------------

// UseStore opens the store at path, replacing the one configured at
// start-up.
func (r *Runtime) UseStore(path string) ErrorKind {
	if !r.started {
		return RuntimeNotStarted
	}
	store, err := OpenStore(path)
	if err != nil {
		log.Errorf("opening store: %s", err)
		return MiscellaneousError
	}
	if r.store != nil {
		r.store.Close()
	}
	r.store = store
	return Success
}

func (r *Runtime) storeReady() ErrorKind {
	switch {
	case !r.started:
		return RuntimeNotStarted
	case r.store == nil:
		log.Warning("no expression store is open")
		return MiscellaneousError
	}
	return Success
}

// StoreExpression saves e under key.
func (r *Runtime) StoreExpression(key string, e Expr) ErrorKind {
	if k := r.storeReady(); k != Success {
		return k
	}
	n, k := r.statusOperand(e)
	if k != Success {
		return k
	}
	data, err := wire.Encode(toWire(n))
	if err != nil {
		log.Errorf("encoding %q: %s", key, err)
		return MiscellaneousError
	}
	if err := r.store.Save(key, data, formatNode(n)); err != nil {
		log.Errorf("%s", err)
		return MiscellaneousError
	}
	if log.AllowLevel(commonlog.Debug) {
		log.Debugf("stored %q (%s)", key, humanize.Bytes(uint64(len(data))))
	}
	return Success
}

// FetchExpression loads the expression stored under key. A missing key
// yields Missing["KeyAbsent", key].
func (r *Runtime) FetchExpression(key string) Expr {
	if k := r.storeReady(); k != Success {
		return r.Error(k)
	}
	data, err := r.store.Load(key)
	if errors.Is(err, ErrNotStored) {
		return r.alloc(missingKey(stringNode(key), r.heads))
	}
	if err != nil {
		log.Errorf("%s", err)
		return r.Error(MiscellaneousError)
	}
	w, err := wire.Decode(data)
	if err != nil {
		log.Warningf("stored %q: %s", key, err)
		return r.Error(Malformed)
	}
	n, err := r.fromWire(w)
	if err != nil {
		log.Warningf("stored %q: %s", key, err)
		return r.Error(Malformed)
	}
	return r.alloc(n)
}

// DeleteStored removes key from the store.
func (r *Runtime) DeleteStored(key string) ErrorKind {
	if k := r.storeReady(); k != Success {
		return k
	}
	if err := r.store.Delete(key); err != nil {
		log.Errorf("%s", err)
		return MiscellaneousError
	}
	return Success
}

// StoredKeys lists the keys in the store.
func (r *Runtime) StoredKeys() ([]string, ErrorKind) {
	if k := r.storeReady(); k != Success {
		return nil, k
	}
	keys, err := r.store.Keys()
	if err != nil {
		log.Errorf("%s", err)
		return nil, MiscellaneousError
	}
	return keys, Success
}
