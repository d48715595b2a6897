// Package cubestore implements the CubeStore component from spec.md §4.3:
// admission, contest resolution, per-variant secondary indices, range
// iteration, notification retrieval, and eviction, backed by a sorted
// byte-keyed bbolt database exposing bucket "sublevels" — grounded on the
// teacher's node/store/db.go bbolt schema-and-bucket-lifecycle pattern.
package cubestore

import (
	"encoding/binary"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/EliasOenal/verity-sub007/cube"

	bolt "go.etcd.io/bbolt"
)

// bucketIndexDate and bucketIndexDiff each serve two purposes, keyed by
// prefix (spec.md §4.3): a zero-filled allRecipient prefix carries the
// store-wide eviction view over every admitted Cube, while a real
// recipient-key prefix carries that recipient's notification view. There
// is deliberately no separate notify bucket: the two views share a schema
// and only differ by the first 32 key bytes.
var (
	bucketCubes     = []byte("CUBES")
	bucketIndexDate = []byte("INDEX_DATE")
	bucketIndexDiff = []byte("INDEX_DIFF")
	bucketMeta      = []byte("meta")

	metaKeyDBVersion = []byte("db_version")
)

// Store is the CubeStore. It owns its backend handle and is the sole
// mutator; external readers use only the exported methods below.
type Store struct {
	cfg Config
	db  *bolt.DB

	tmpDir string // non-empty when InMemory, removed on Shutdown

	mu                sync.Mutex // serializes addCube contest resolution
	listenersMu       sync.RWMutex
	cubeAdded         map[int]func(cube.Key, *cube.Cube)
	notificationAdded map[int]func(cube.Key, *cube.Cube)
	nextListenerID    int

	closed bool
}

// Open opens (creating if absent) the backend and returns a ready Store.
// There is no asynchronous "readyPromise" in this implementation: bbolt's
// Open call is itself the suspension point, so Open returning success is
// equivalent to the spec's readyPromise resolving.
func Open(cfg Config) (*Store, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	path := cfg.DBName
	tmpDir := ""
	if cfg.InMemory {
		dir, err := os.MkdirTemp("", "cubestore-*")
		if err != nil {
			return nil, fmt.Errorf("cubestore: temp dir: %w", err)
		}
		tmpDir = dir
		path = filepath.Join(dir, "cubes.db")
	} else if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("cubestore: mkdir: %w", err)
		}
	}

	db, err := bolt.Open(path, 0o600, nil)
	if err != nil {
		if tmpDir != "" {
			_ = os.RemoveAll(tmpDir)
		}
		return nil, fmt.Errorf("cubestore: open bbolt: %w", err)
	}

	s := &Store{
		cfg:               cfg,
		db:                db,
		tmpDir:            tmpDir,
		cubeAdded:         make(map[int]func(cube.Key, *cube.Cube)),
		notificationAdded: make(map[int]func(cube.Key, *cube.Cube)),
	}

	if err := db.Update(func(tx *bolt.Tx) error {
		for _, b := range [][]byte{bucketCubes, bucketIndexDate, bucketIndexDiff, bucketMeta} {
			if _, err := tx.CreateBucketIfNotExists(b); err != nil {
				return fmt.Errorf("create bucket %s: %w", b, err)
			}
		}
		meta := tx.Bucket(bucketMeta)
		if meta.Get(metaKeyDBVersion) == nil {
			v := make([]byte, 4)
			binary.BigEndian.PutUint32(v, cfg.DBVersion)
			return meta.Put(metaKeyDBVersion, v)
		}
		return nil
	}); err != nil {
		_ = db.Close()
		if tmpDir != "" {
			_ = os.RemoveAll(tmpDir)
		}
		return nil, err
	}

	return s, nil
}

// Shutdown closes the backend and releases event listeners. Pending
// iterators must stop calling Next after this returns.
func (s *Store) Shutdown() error {
	s.listenersMu.Lock()
	s.cubeAdded = map[int]func(cube.Key, *cube.Cube){}
	s.notificationAdded = map[int]func(cube.Key, *cube.Cube){}
	s.listenersMu.Unlock()

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	err := s.db.Close()
	if s.tmpDir != "" {
		_ = os.RemoveAll(s.tmpDir)
	}
	return err
}

// OnCubeAdded registers a listener fired exactly once per successful
// admission (including replacements). It returns an unregister function.
func (s *Store) OnCubeAdded(fn func(cube.Key, *cube.Cube)) (unregister func()) {
	s.listenersMu.Lock()
	defer s.listenersMu.Unlock()
	id := s.nextListenerID
	s.nextListenerID++
	s.cubeAdded[id] = fn
	return func() {
		s.listenersMu.Lock()
		defer s.listenersMu.Unlock()
		delete(s.cubeAdded, id)
	}
}

// OnNotificationAdded registers a listener fired iff an admission newly
// added a notification index entry for that recipient.
func (s *Store) OnNotificationAdded(fn func(cube.Key, *cube.Cube)) (unregister func()) {
	s.listenersMu.Lock()
	defer s.listenersMu.Unlock()
	id := s.nextListenerID
	s.nextListenerID++
	s.notificationAdded[id] = fn
	return func() {
		s.listenersMu.Lock()
		defer s.listenersMu.Unlock()
		delete(s.notificationAdded, id)
	}
}

func (s *Store) fireCubeAdded(k cube.Key, c *cube.Cube) {
	s.listenersMu.RLock()
	defer s.listenersMu.RUnlock()
	for _, fn := range s.cubeAdded {
		fn(k, c)
	}
}

func (s *Store) fireNotificationAdded(recipient cube.Key, c *cube.Cube) {
	s.listenersMu.RLock()
	defer s.listenersMu.RUnlock()
	for _, fn := range s.notificationAdded {
		fn(recipient, c)
	}
}
