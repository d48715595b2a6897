package cubestore

import "github.com/EliasOenal/verity-sub007/cube"

// CubeInfo is the lightweight, index-resident summary of an admitted Cube:
// cheap metadata callers can sort and filter on without paying to decode
// the full 1024-byte binary. Binary and Cube both lazily fetch from the
// backend on first use.
type CubeInfo struct {
	Key         cube.Key
	CubeType    cube.Type
	Date        int64 // seconds since epoch
	Difficulty  int
	UpdateCount uint32 // only meaningful for PMUC/PMUC_NOTIFY

	store *Store
}

// Binary fetches the Cube's raw 1024-byte binary from the backend.
func (ci *CubeInfo) Binary() ([]byte, error) {
	return ci.store.getBinary(ci.Key)
}

// Cube fetches and parses the full Cube from the backend.
func (ci *CubeInfo) Cube() (*cube.Cube, error) {
	bin, err := ci.Binary()
	if err != nil {
		return nil, err
	}
	return cube.Parse(bin)
}

func infoFromCube(k cube.Key, c *cube.Cube, s *Store) (*CubeInfo, error) {
	date, err := c.GetDate()
	if err != nil {
		return nil, err
	}
	diff, err := c.Difficulty()
	if err != nil {
		return nil, err
	}
	var cnt uint32
	if c.Type().IsPMUC() {
		cnt, err = c.GetUpdateCount()
		if err != nil {
			return nil, err
		}
	}
	return &CubeInfo{
		Key:         k,
		CubeType:    c.Type(),
		Date:        date.Unix(),
		Difficulty:  diff,
		UpdateCount: cnt,
		store:       s,
	}, nil
}
