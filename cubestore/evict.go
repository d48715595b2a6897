package cubestore

import (
	"time"

	"github.com/EliasOenal/verity-sub007/cube"

	bolt "go.etcd.io/bbolt"
)

// retentionWindow is the horizon the retention score is normalized over: a
// FROZEN/PIC Cube whose expiration is this far in the future or beyond
// scores 1.0 (definitely keep); one already past expiration scores 0.0.
// Only immutable variants are scored — MUC/PMUC turnover is governed
// entirely by contest resolution in admit.go, not eviction.
const retentionWindow = 30 * 24 * time.Hour

// retentionScore returns a 0..1 "how much longer does this deserve to
// live" score for an immutable Cube, given its (date, difficulty)-derived
// expiration and the current time.
func retentionScore(dateSecs int64, difficulty int, now time.Time) float64 {
	exp := expiration(dateSecs, difficulty)
	remaining := exp - now.Unix()
	if remaining <= 0 {
		return 0
	}
	window := int64(retentionWindow / time.Second)
	if remaining >= window {
		return 1
	}
	return float64(remaining) / float64(window)
}

// EvictExpired removes immutable (FROZEN/PIC family) Cubes whose retention
// score has fallen below Config.RetentionShouldKeepThreshold, up to limit
// removals (0 = unlimited). It is a no-op unless
// Config.EnableCubeRetentionPolicy is set: eviction in this implementation
// is caller-driven, not a background timer, matching the library's
// single-threaded cooperative concurrency model (see DESIGN.md).
func (s *Store) EvictExpired(now time.Time, limit int) (int, error) {
	if !s.cfg.EnableCubeRetentionPolicy {
		return 0, nil
	}

	candidates, err := s.RangeByDate(allRecipient, RangeOptions{})
	if err != nil {
		return 0, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for _, info := range candidates {
		if !info.CubeType.IsImmutable() {
			continue
		}
		if retentionScore(info.Date, info.Difficulty, now) >= s.cfg.RetentionShouldKeepThreshold {
			continue
		}
		c, err := info.Cube()
		if err != nil {
			return removed, err
		}
		if err := s.removeLocked(info.Key, c); err != nil {
			return removed, err
		}
		removed++
		if limit > 0 && removed >= limit {
			break
		}
	}
	return removed, nil
}

func (s *Store) removeLocked(key cube.Key, c *cube.Cube) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		if err := removeIndexRows(tx, key, c); err != nil {
			return err
		}
		return tx.Bucket(bucketCubes).Delete(key[:])
	})
}
