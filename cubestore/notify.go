package cubestore

import "github.com/EliasOenal/verity-sub007/cube"

// GetNotifications returns the CubeInfos of every currently-stored notify
// variant addressed to recipient, ordered by DATE. This is the same
// INDEX_DATE view used for store-wide eviction, scoped to recipient's
// non-zero prefix instead of the all-zero one.
func (s *Store) GetNotifications(recipient cube.Key, opts RangeOptions) ([]*CubeInfo, error) {
	return s.RangeByDate(recipient, opts)
}
