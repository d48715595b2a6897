package cubestore

import (
	"fmt"
	"time"

	"github.com/EliasOenal/verity-sub007/cube"
)

// Config mirrors the teacher's plain-struct-plus-Default*-constructor style
// (node.Config in the teacher repo) rather than reaching for a config
// framework; spec.md §6's "Config (subset)" maps directly onto these
// fields.
type Config struct {
	// DBName is the bbolt file path; ignored when InMemory is true.
	DBName    string
	DBVersion uint32

	InMemory                  bool
	CubeCacheEnabled          bool
	EnableCubeRetentionPolicy bool

	// RequiredDifficulty is the admission floor: addCube rejects any Cube
	// whose achieved difficulty is lower.
	RequiredDifficulty uint8

	// Family is the ordered list of variants tried top-down when decoding
	// an ambiguous binary. In this implementation the variant is always
	// explicit in the frame's header byte, so Family only matters for
	// forward-compatibility with additional variants; it defaults to the
	// eight variants in their natural order.
	Family []cube.Type

	ArgonCPUHardness    uint32
	ArgonMemoryHardness uint32 // KiB

	// MinMucRebuildDelay is checked by Validate but not read by the store;
	// Identity.Store coalesces using identity.Config.MinMucRebuildDelay.
	MinMucRebuildDelay time.Duration

	// RetentionShouldKeepThreshold is the minimum retention score (see
	// evict.go) below which an immutable Cube is eligible for eviction.
	RetentionShouldKeepThreshold float64
}

// DefaultConfig returns the zero-difficulty, in-memory configuration used
// by tests and by the scenarios in spec.md §8.
func DefaultConfig() Config {
	return Config{
		DBName:                       "cubes.db",
		DBVersion:                    1,
		InMemory:                     true,
		CubeCacheEnabled:             true,
		EnableCubeRetentionPolicy:    false,
		RequiredDifficulty:           0,
		Family:                       defaultFamily,
		ArgonCPUHardness:             3,
		ArgonMemoryHardness:          64 * 1024,
		MinMucRebuildDelay:           5 * time.Second,
		RetentionShouldKeepThreshold: 0.2,
	}
}

var defaultFamily = []cube.Type{
	cube.FROZEN, cube.PIC, cube.MUC, cube.PMUC,
	cube.FROZEN_NOTIFY, cube.PIC_NOTIFY, cube.MUC_NOTIFY, cube.PMUC_NOTIFY,
}

// Validate fails fast on an unusable configuration, in the same spirit as
// the teacher's node.Config validation helpers.
func (c Config) Validate() error {
	if !c.InMemory && c.DBName == "" {
		return fmt.Errorf("cubestore: db_name required when not in-memory")
	}
	if c.DBVersion == 0 {
		return fmt.Errorf("cubestore: db_version must be >= 1")
	}
	if len(c.Family) == 0 {
		return fmt.Errorf("cubestore: family must not be empty")
	}
	if c.MinMucRebuildDelay < 0 {
		return fmt.Errorf("cubestore: min_muc_rebuild_delay must be >= 0")
	}
	return nil
}
