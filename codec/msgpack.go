package codec

import (
	"github.com/vmihailenco/msgpack/v5"

	"github.com/unkn0wn-root/idgen/idset"
)

// Msgpack is a Codec that serializes the span list using vmihailenco/msgpack/v5.
// The zero value is ready to use.
type Msgpack struct{}

func (Msgpack) Encode(s *idset.Set) ([]byte, error) {
	return msgpack.Marshal(toSpans(s))
}
func (Msgpack) Decode(c idset.Category, b []byte) (*idset.Set, error) {
	var spans []span
	if err := msgpack.Unmarshal(b, &spans); err != nil {
		return nil, err
	}
	return fromSpans(c, spans)
}
