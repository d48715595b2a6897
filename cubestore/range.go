package cubestore

import (
	"bytes"
	"encoding/hex"

	"github.com/EliasOenal/verity-sub007/cube"

	bolt "go.etcd.io/bbolt"
)

// RangeOptions bounds and limits a secondary-index scan. A nil bound means
// unbounded on that side. Limit of 0 means unlimited.
type RangeOptions struct {
	Gte     *int64
	Lte     *int64
	Reverse bool
	Limit   int
}

// RangeByDate returns CubeInfos for recipient's date-index view (pass
// allRecipient's zero value via cube.Key{} for the store-wide eviction
// view) with DATE between Gte and Lte inclusive, ordered by DATE.
func (s *Store) RangeByDate(recipient cube.Key, opts RangeOptions) ([]*CubeInfo, error) {
	return s.rangeIndex(bucketIndexDate, recipient, opts, 32, 69, func(b []byte) int64 {
		return int64(uint64(b[0])<<32 | uint64(b[1])<<24 | uint64(b[2])<<16 | uint64(b[3])<<8 | uint64(b[4]))
	})
}

// RangeByDifficulty returns CubeInfos for recipient's difficulty-index
// view with achieved difficulty between Gte and Lte inclusive, ordered by
// difficulty.
func (s *Store) RangeByDifficulty(recipient cube.Key, opts RangeOptions) ([]*CubeInfo, error) {
	return s.rangeIndex(bucketIndexDiff, recipient, opts, 32, 65, func(b []byte) int64 {
		return int64(b[0])
	})
}

// rangeIndex walks bucket's recipient-prefixed rows. sortFieldOff is the
// byte offset of the sort field within a row key (right after the 32-byte
// recipient prefix); keyLen is the row key's total length.
func (s *Store) rangeIndex(bucket []byte, recipient cube.Key, opts RangeOptions, sortFieldOff, keyLen int, readSortField func([]byte) int64) ([]*CubeInfo, error) {
	var out []*CubeInfo
	err := s.db.View(func(tx *bolt.Tx) error {
		cur := tx.Bucket(bucket).Cursor()
		prefix := recipient[:]

		appendRow := func(k, v []byte) (stop bool, err error) {
			if len(k) != keyLen || !bytes.HasPrefix(k, prefix) {
				return true, nil
			}
			val := readSortField(k[sortFieldOff:])
			if opts.Gte != nil && val < *opts.Gte {
				if opts.Reverse {
					return true, nil
				}
				return false, nil
			}
			if opts.Lte != nil && val > *opts.Lte {
				if opts.Reverse {
					return false, nil
				}
				return true, nil
			}
			var ck cube.Key
			copy(ck[:], k[keyLen-32:])
			info, err := s.cubeInfoSkippingStale(ck)
			if err != nil {
				return false, err
			}
			if info == nil {
				return false, nil
			}
			out = append(out, info)
			if opts.Limit > 0 && len(out) >= opts.Limit {
				return true, nil
			}
			return false, nil
		}

		if !opts.Reverse {
			for k, v := cur.Seek(prefix); k != nil && bytes.HasPrefix(k, prefix); k, v = cur.Next() {
				stop, err := appendRow(k, v)
				if err != nil {
					return err
				}
				if stop {
					break
				}
			}
			return nil
		}

		// Reverse: bbolt's cursor has no "seek to last key with prefix"
		// primitive robust against the sort field's top byte being 0xff, so
		// collect every matching row forward and walk the slice backwards.
		var rows [][2][]byte
		for k, v := cur.Seek(prefix); k != nil && bytes.HasPrefix(k, prefix); k, v = cur.Next() {
			rows = append(rows, [2][]byte{append([]byte(nil), k...), append([]byte(nil), v...)})
		}
		for i := len(rows) - 1; i >= 0; i-- {
			stop, err := appendRow(rows[i][0], rows[i][1])
			if err != nil {
				return err
			}
			if stop {
				break
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// cubeInfoSkippingStale fetches k's CubeInfo, reporting (nil, nil) rather
// than an error when the index points at a key no longer present in
// CUBES — spec.md §4.3's "stale index entries are skipped, not surfaced
// as errors" for notification retrieval and the eviction walk.
func (s *Store) cubeInfoSkippingStale(k cube.Key) (*CubeInfo, error) {
	info, err := s.GetCubeInfo(k)
	if err != nil {
		if err == ErrNotFound {
			return nil, nil
		}
		return nil, err
	}
	return info, nil
}

// Sublevel selects which of the store's sorted byte-keyed buckets a
// generic range scan walks, per spec.md §4.3's "sublevel" option.
type Sublevel int

const (
	// SublevelCubes walks the primary store, keyed by the bare 32-byte
	// Cube key. This is the default.
	SublevelCubes Sublevel = iota
	// SublevelIndexDate walks the date index, keyed recipient(32) ||
	// date_be(5) || cube_key(32).
	SublevelIndexDate
	// SublevelIndexDiff walks the difficulty index, keyed recipient(32)
	// || difficulty(1) || cube_key(32).
	SublevelIndexDiff
)

func (sl Sublevel) bucketName() []byte {
	switch sl {
	case SublevelIndexDate:
		return bucketIndexDate
	case SublevelIndexDiff:
		return bucketIndexDiff
	default:
		return bucketCubes
	}
}

// KeyRangeOptions bounds a generic byte-key scan over a chosen sublevel,
// spec.md §4.3's getKeyRange/getCubeInfoRange contract. A nil bound is
// unbounded on that side; Gt/Lt are exclusive, Gte/Lte inclusive (setting
// both the gt/gte or lt/lte form of a side is the caller's error to
// avoid, same as the source API).
type KeyRangeOptions struct {
	Gt, Gte, Lt, Lte []byte
	Limit            int
	Reverse          bool

	// Wraparound continues a scan that yielded fewer than Limit items
	// from the start of the sublevel up to the lower bound (stopping before
	// a Gte bound's key, which the first pass already visited, and
	// including a Gt bound's key, which it skipped), never repeating a key. With no upper bound and Limit unbounded,
	// this yields every key in the sublevel exactly once.
	Wraparound bool

	Sublevel Sublevel

	// GetRawSublevelKeys returns the full composite index key rather
	// than trimming it down to the trailing 32-byte Cube key.
	GetRawSublevelKeys bool
}

func lowerBound(opts KeyRangeOptions) (bound []byte, set bool) {
	if opts.Gte != nil {
		return opts.Gte, true
	}
	if opts.Gt != nil {
		return opts.Gt, true
	}
	return nil, false
}

func seekLowerBound(cur *bolt.Cursor, opts KeyRangeOptions) (k, v []byte) {
	switch {
	case opts.Gte != nil:
		return cur.Seek(opts.Gte)
	case opts.Gt != nil:
		k, v = cur.Seek(opts.Gt)
		if k != nil && bytes.Equal(k, opts.Gt) {
			return cur.Next()
		}
		return k, v
	default:
		return cur.First()
	}
}

func withinUpperBound(k []byte, lt, lte []byte) bool {
	if lt != nil && bytes.Compare(k, lt) >= 0 {
		return false
	}
	if lte != nil && bytes.Compare(k, lte) > 0 {
		return false
	}
	return true
}

// walkRange visits bucket's keys from opts' lower bound up to opts' upper
// bound (or the end of the bucket if unbounded), then — if opts.Wraparound
// and fewer than opts.Limit rows were produced — continues from the start
// of the bucket back around to the lower bound, covering whatever the
// first pass excluded there so every key is visited exactly once overall.
// visit is called once per distinct key in order and should return false
// to stop early.
func walkRange(bucket *bolt.Bucket, opts KeyRangeOptions, visit func(k []byte) (keepGoing bool)) {
	if bucket == nil {
		return
	}
	cur := bucket.Cursor()
	seen := make(map[string]bool)
	count := 0
	limited := func() bool { return opts.Limit > 0 && count >= opts.Limit }

	wrap := func(k []byte) bool {
		if seen[string(k)] {
			return true
		}
		seen[string(k)] = true
		count++
		return visit(k)
	}

	for k, _ := seekLowerBound(cur, opts); k != nil && withinUpperBound(k, opts.Lt, opts.Lte); k, _ = cur.Next() {
		if limited() || !wrap(k) {
			return
		}
	}
	if limited() {
		return
	}

	low, hasLow := lowerBound(opts)
	if !opts.Wraparound || !hasLow {
		return
	}
	// Gte already included low in the first pass, so the wrap segment must
	// stop strictly before it; Gt excluded it, so the wrap segment must
	// reach it inclusively to still cover it exactly once overall.
	inclusive := opts.Gte == nil && opts.Gt != nil
	for k, _ := cur.First(); k != nil; k, _ = cur.Next() {
		cmp := bytes.Compare(k, low)
		if inclusive && cmp > 0 {
			break
		}
		if !inclusive && cmp >= 0 {
			break
		}
		if limited() || !wrap(k) {
			return
		}
	}
}

func trimToCubeKey(k []byte, opts KeyRangeOptions) []byte {
	row := append([]byte(nil), k...)
	if !opts.GetRawSublevelKeys && len(row) > 32 {
		row = row[len(row)-32:]
	}
	return row
}

// GetKeyRange returns the matching keys from opts.Sublevel (CUBES by
// default) in sublevel order, per spec.md §4.3. Results are collected
// forward and reversed afterward when opts.Reverse is set, matching the
// collect-then-reverse approach rangeIndex already uses to avoid relying
// on bbolt's prefix-unaware reverse-seek.
func (s *Store) GetKeyRange(opts KeyRangeOptions) ([][]byte, error) {
	var out [][]byte
	err := s.db.View(func(tx *bolt.Tx) error {
		walkRange(tx.Bucket(opts.Sublevel.bucketName()), opts, func(k []byte) bool {
			out = append(out, trimToCubeKey(k, opts))
			return true
		})
		return nil
	})
	if err != nil {
		return nil, err
	}
	if opts.Reverse {
		for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
			out[i], out[j] = out[j], out[i]
		}
	}
	return out, nil
}

// GetKeyRangeHex is GetKeyRange with every key hex-encoded, spec.md
// §4.3's asString option.
func (s *Store) GetKeyRangeHex(opts KeyRangeOptions) ([]string, error) {
	raw, err := s.GetKeyRange(opts)
	if err != nil {
		return nil, err
	}
	out := make([]string, len(raw))
	for i, k := range raw {
		out[i] = hex.EncodeToString(k)
	}
	return out, nil
}

// GetCubeInfoRange is GetKeyRange followed by a CubeInfo fetch per key,
// skipping (not erroring on) any row whose Cube is no longer present in
// CUBES — the same stale-index tolerance cubeInfoSkippingStale gives
// GetNotifications and EvictExpired.
func (s *Store) GetCubeInfoRange(opts KeyRangeOptions) ([]*CubeInfo, error) {
	keys, err := s.GetKeyRange(opts)
	if err != nil {
		return nil, err
	}
	out := make([]*CubeInfo, 0, len(keys))
	for _, kb := range keys {
		if len(kb) != 32 {
			continue
		}
		var k cube.Key
		copy(k[:], kb)
		info, err := s.cubeInfoSkippingStale(k)
		if err != nil {
			return nil, err
		}
		if info == nil {
			continue
		}
		out = append(out, info)
	}
	return out, nil
}
