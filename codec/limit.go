package codec

import (
	"fmt"

	"github.com/unkn0wn-root/idgen/idset"
)

// Limit wraps another codec to enforce a maximum allowed payload size
// at Decode time. Encode is forwarded to Inner unchanged.
// If MaxDecode <= 0, size limiting is disabled.
//
// Typical use: protect against oversized inputs coming from a shared store.
type Limit struct {
	// Inner is the underlying codec being wrapped. It must be set.
	Inner Codec
	// MaxDecode is the maximum permitted payload length in bytes.
	MaxDecode int
}

func (c Limit) Encode(s *idset.Set) ([]byte, error) { return c.Inner.Encode(s) }
func (c Limit) Decode(cat idset.Category, b []byte) (*idset.Set, error) {
	if c.MaxDecode > 0 && len(b) > c.MaxDecode {
		return nil, fmt.Errorf("codec: decode %s: payload too large: %d > %d", cat, len(b), c.MaxDecode)
	}
	return c.Inner.Decode(cat, b)
}
