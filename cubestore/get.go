package cubestore

import (
	"fmt"

	"github.com/EliasOenal/verity-sub007/cube"

	bolt "go.etcd.io/bbolt"
)

// ErrNotFound is returned by the getters below when no Cube is stored
// under the requested key. It is a sentinel, not a cube.CubeError: a
// missing key is an ordinary, expected outcome on the read path, not a
// taxonomy-worthy failure.
var ErrNotFound = fmt.Errorf("cubestore: not found")

func (s *Store) getBinary(k cube.Key) ([]byte, error) {
	var bin []byte
	err := s.db.View(func(tx *bolt.Tx) error {
		v := tx.Bucket(bucketCubes).Get(k[:])
		if v == nil {
			return ErrNotFound
		}
		bin = append([]byte(nil), v...)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return bin, nil
}

// GetCube fetches and fully parses the Cube stored under k. A persisted
// binary that fails to parse is reported as ErrNotFound rather than
// propagating the parse error: spec.md §4.3 requires a corrupt entry be
// reported absent, not thrown as an exception.
func (s *Store) GetCube(k cube.Key) (*cube.Cube, error) {
	bin, err := s.getBinary(k)
	if err != nil {
		return nil, err
	}
	c, err := cube.Parse(bin)
	if err != nil {
		return nil, ErrNotFound
	}
	return c, nil
}

// GetCubeInfo fetches k's lightweight metadata without decoding the full
// binary beyond what GetDate/Difficulty/GetUpdateCount already require.
func (s *Store) GetCubeInfo(k cube.Key) (*CubeInfo, error) {
	c, err := s.GetCube(k)
	if err != nil {
		return nil, err
	}
	return infoFromCube(k, c, s)
}

// HasCube reports whether k is currently stored.
func (s *Store) HasCube(k cube.Key) (bool, error) {
	found := false
	err := s.db.View(func(tx *bolt.Tx) error {
		found = tx.Bucket(bucketCubes).Get(k[:]) != nil
		return nil
	})
	return found, err
}
