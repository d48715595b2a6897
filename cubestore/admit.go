package cubestore

import (
	"context"
	"fmt"

	"github.com/EliasOenal/verity-sub007/cube"

	bolt "go.etcd.io/bbolt"
)

// AddCube admits a Cube, either a raw wire binary or an already-constructed
// (possibly uncompiled) *cube.Cube, per spec.md §4.3's admission algorithm.
//
// Propagation policy (spec.md §7): admission-time rejections — a malformed
// binary, a failed Validate, a difficulty below the configured floor, or a
// lost contest — are silent: AddCube returns (nil, nil). This is the
// adversarial wire-input path and none of those outcomes indicate a bug.
// A type conflict (two different lifecycle families claiming the same key)
// and a failed Compile on a caller-constructed Cube are reported as errors:
// both can only arise from a genuine programming mistake, never from
// untrusted wire data alone.
func (s *Store) AddCube(ctx context.Context, input any) (*CubeInfo, error) {
	var c *cube.Cube
	fromWire := false

	switch v := input.(type) {
	case []byte:
		fromWire = true
		parsed, err := cube.Parse(v)
		if err != nil {
			return nil, nil
		}
		c = parsed
	case *cube.Cube:
		c = v
	default:
		return nil, fmt.Errorf("cubestore: addCube: unsupported input type %T", input)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	// Auto-increment must happen before Compile, while the pending update
	// count is still mutable, so the contest below sees the post-increment
	// value (this reorders spec.md §4.3 steps 4 and 5 for
	// Cube-object PMUC input so a freshly authored update does not lose a
	// contest against its own predecessor purely because it still reads 0).
	if !fromWire && !c.IsCompiled() && c.Type().IsPMUC() {
		cur, err := c.GetUpdateCount()
		if err != nil {
			return nil, err
		}
		if cur == 0 {
			base, err := s.currentUpdateCount(c)
			if err != nil {
				return nil, err
			}
			if err := c.SetUpdateCount(base + 1); err != nil {
				return nil, err
			}
		}
	}

	if !c.IsCompiled() {
		if err := c.Compile(ctx); err != nil {
			return nil, fmt.Errorf("cubestore: compile: %w", err)
		}
	}

	if err := c.Validate(); err != nil {
		return nil, nil
	}

	diff, err := c.Difficulty()
	if err != nil {
		return nil, nil
	}
	if diff < int(s.cfg.RequiredDifficulty) {
		return nil, nil
	}

	key, err := c.GetKey()
	if err != nil {
		return nil, nil
	}

	existing, err := s.lookup(key)
	if err != nil {
		return nil, err
	}

	if existing != nil {
		if existing.Type().Lifecycle() != c.Type().Lifecycle() {
			return nil, storeErr(ErrTypeConflict, "%s at key %s already holds a %s",
				c.Type(), key, existing.Type())
		}
		wins, err := contestWinner(existing, c)
		if err != nil {
			return nil, err
		}
		if !wins {
			return nil, nil
		}
	}

	if err := s.write(key, existing, c); err != nil {
		return nil, err
	}

	info, err := infoFromCube(key, c, s)
	if err != nil {
		return nil, err
	}

	s.fireCubeAdded(key, c)
	if rec, ok := notifyRecipient(c); ok {
		oldRec, existingWasNotify := cube.Key{}, false
		if existing != nil {
			oldRec, existingWasNotify = notifyRecipient(existing)
		}
		if !existingWasNotify || oldRec != rec {
			s.fireNotificationAdded(rec, c)
		}
	}

	return info, nil
}

// currentUpdateCount returns the update count already on record for c's
// signing key, or 0 if nothing is stored yet. Used only for the
// pre-compile auto-increment above, so it works from the key material
// directly rather than calling the not-yet-available GetKey.
func (s *Store) currentUpdateCount(c *cube.Cube) (uint32, error) {
	pub, err := c.PublicKey()
	if err != nil {
		return 0, err
	}
	k, err := cube.KeyFromBytes(pub)
	if err != nil {
		return 0, err
	}
	existing, err := s.lookup(k)
	if err != nil {
		return 0, err
	}
	if existing == nil {
		return 0, nil
	}
	return existing.GetUpdateCount()
}

func (s *Store) lookup(k cube.Key) (*cube.Cube, error) {
	bin, err := s.getBinary(k)
	if err == ErrNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return cube.Parse(bin)
}

// contestWinner applies spec.md §4.3's per-lifecycle contest rule. existing
// and incoming are guaranteed to share a lifecycle family by the caller.
func contestWinner(existing, incoming *cube.Cube) (incomingWins bool, err error) {
	switch incoming.Type().Lifecycle() {
	case cube.LifecycleFrozen, cube.LifecyclePIC:
		return immutableContestWinner(existing, incoming)
	case cube.LifecycleMUC:
		ed, err := existing.GetDate()
		if err != nil {
			return false, err
		}
		id, err := incoming.GetDate()
		if err != nil {
			return false, err
		}
		return id.Unix() > ed.Unix(), nil
	default: // LifecyclePMUC
		ec, err := existing.GetUpdateCount()
		if err != nil {
			return false, err
		}
		ic, err := incoming.GetUpdateCount()
		if err != nil {
			return false, err
		}
		if ic != ec {
			return ic > ec, nil
		}
		ed, err := existing.GetDate()
		if err != nil {
			return false, err
		}
		id, err := incoming.GetDate()
		if err != nil {
			return false, err
		}
		return id.Unix() > ed.Unix(), nil
	}
}

// expirationBonusPerBit is the retention bonus, in seconds, awarded per
// trailing zero bit of achieved hashcash difficulty, used to turn a
// (date, difficulty) pair into the single monotonic "expiration" value
// spec.md §4.3 describes without pinning an exact formula for FROZEN/PIC
// contests. See DESIGN.md for this Open Question's resolution.
const expirationBonusPerBit = int64(86400)

func expiration(dateSecs int64, difficulty int) int64 {
	return dateSecs + int64(difficulty)*expirationBonusPerBit
}

func immutableContestWinner(existing, incoming *cube.Cube) (bool, error) {
	ed, err := existing.GetDate()
	if err != nil {
		return false, err
	}
	eDiff, err := existing.Difficulty()
	if err != nil {
		return false, err
	}
	id, err := incoming.GetDate()
	if err != nil {
		return false, err
	}
	iDiff, err := incoming.Difficulty()
	if err != nil {
		return false, err
	}

	eExp := expiration(ed.Unix(), eDiff)
	iExp := expiration(id.Unix(), iDiff)
	if iExp != eExp {
		return iExp > eExp, nil
	}
	if iDiff != eDiff {
		return iDiff > eDiff, nil
	}
	return id.Unix() > ed.Unix(), nil
}

// write persists incoming under key, replacing existing's index rows (if
// any) with incoming's.
func (s *Store) write(key cube.Key, existing, incoming *cube.Cube) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		if existing != nil {
			if err := removeIndexRows(tx, key, existing); err != nil {
				return err
			}
		}
		if err := tx.Bucket(bucketCubes).Put(key[:], incoming.Binary()); err != nil {
			return err
		}
		return addIndexRows(tx, key, incoming)
	})
}

// clipDifficulty saturates an achieved difficulty (0-256) to the index's
// single-byte key field. The only value that would overflow is 256 — an
// all-zero 32-byte hash — astronomically unlikely in practice.
func clipDifficulty(d int) uint8 {
	if d > 255 {
		return 255
	}
	return uint8(d)
}

func recipients(c *cube.Cube) []cube.Key {
	recs := []cube.Key{allRecipient}
	if rec, ok := notifyRecipient(c); ok {
		recs = append(recs, rec)
	}
	return recs
}

func addIndexRows(tx *bolt.Tx, key cube.Key, c *cube.Cube) error {
	date, err := c.GetDate()
	if err != nil {
		return err
	}
	diff, err := c.Difficulty()
	if err != nil {
		return err
	}
	dateBucket := tx.Bucket(bucketIndexDate)
	diffBucket := tx.Bucket(bucketIndexDiff)
	val := []byte{byte(c.Type())}
	for _, rec := range recipients(c) {
		if err := dateBucket.Put(dateIndexKey(rec, date.Unix(), key), val); err != nil {
			return err
		}
		if err := diffBucket.Put(diffIndexKey(rec, clipDifficulty(diff), key), val); err != nil {
			return err
		}
	}
	return nil
}

func removeIndexRows(tx *bolt.Tx, key cube.Key, c *cube.Cube) error {
	date, err := c.GetDate()
	if err != nil {
		return err
	}
	diff, err := c.Difficulty()
	if err != nil {
		return err
	}
	dateBucket := tx.Bucket(bucketIndexDate)
	diffBucket := tx.Bucket(bucketIndexDiff)
	for _, rec := range recipients(c) {
		if err := dateBucket.Delete(dateIndexKey(rec, date.Unix(), key)); err != nil {
			return err
		}
		if err := diffBucket.Delete(diffIndexKey(rec, clipDifficulty(diff), key)); err != nil {
			return err
		}
	}
	return nil
}
