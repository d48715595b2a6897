package cubestore

import (
	"github.com/EliasOenal/verity-sub007/cube"
	"github.com/EliasOenal/verity-sub007/fields"
)

// allRecipient is the fixed zero-filled "all" prefix shared by the global
// eviction view of INDEX_DATE/INDEX_DIFF (spec.md §4.3).
var allRecipient cube.Key

func putDate5(out []byte, secs int64) {
	u := uint64(secs)
	out[0] = byte(u >> 32)
	out[1] = byte(u >> 24)
	out[2] = byte(u >> 16)
	out[3] = byte(u >> 8)
	out[4] = byte(u)
}

func dateIndexKey(recipient cube.Key, secs int64, cubeKey cube.Key) []byte {
	out := make([]byte, 69)
	copy(out[0:32], recipient[:])
	putDate5(out[32:37], secs)
	copy(out[37:69], cubeKey[:])
	return out
}

func diffIndexKey(recipient cube.Key, diff uint8, cubeKey cube.Key) []byte {
	out := make([]byte, 65)
	copy(out[0:32], recipient[:])
	out[32] = diff
	copy(out[33:65], cubeKey[:])
	return out
}

// notifyRecipient returns the NOTIFY target key for a notify-variant Cube,
// or (zero, false) if the variant is not a notify variant or the NOTIFY
// value is malformed. Malformed NOTIFY values are never surfaced as
// errors — spec.md §4.3 requires they be silently ignored (no index
// entry), since they can only occur via a corrupted stored binary.
func notifyRecipient(c *cube.Cube) (cube.Key, bool) {
	if !c.Type().IsNotify() {
		return cube.Key{}, false
	}
	flds, err := c.Fields()
	if err != nil {
		return cube.Key{}, false
	}
	f, ok := fields.FirstOfType(flds, fields.NOTIFY)
	if !ok || len(f.Value) != 32 {
		return cube.Key{}, false
	}
	k, err := cube.KeyFromBytes(f.Value)
	if err != nil {
		return cube.Key{}, false
	}
	return k, true
}
