package codec

import (
	"encoding/json"

	"github.com/unkn0wn-root/idgen/idset"
)

// JSON encodes a set as [{"start":1,"end":10},...].
type JSON struct{}

func (JSON) Encode(s *idset.Set) ([]byte, error) { return json.Marshal(toSpans(s)) }
func (JSON) Decode(c idset.Category, b []byte) (*idset.Set, error) {
	var spans []span
	if err := json.Unmarshal(b, &spans); err != nil {
		return nil, err
	}
	return fromSpans(c, spans)
}
