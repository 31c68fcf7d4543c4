package codec

import (
	"github.com/fxamacker/cbor/v2"

	"github.com/unkn0wn-root/idgen/idset"
)

type CBOR struct {
	enc cbor.EncMode
	dec cbor.DecMode
}

// NewCBOR builds a CBOR codec. Deterministic mode emits canonical encodings,
// so equal sets always produce identical payloads.
func NewCBOR(deterministic bool) (CBOR, error) {
	opts := cbor.EncOptions{}
	if deterministic {
		opts = cbor.CoreDetEncOptions()
	}
	enc, err := opts.EncMode()
	if err != nil {
		return CBOR{}, err
	}
	dec, err := cbor.DecOptions{}.DecMode()
	if err != nil {
		return CBOR{}, err
	}
	return CBOR{enc: enc, dec: dec}, nil
}

func (c CBOR) Encode(s *idset.Set) ([]byte, error) {
	return c.enc.Marshal(toSpans(s))
}
func (c CBOR) Decode(cat idset.Category, b []byte) (*idset.Set, error) {
	var spans []span
	if err := c.dec.Unmarshal(b, &spans); err != nil {
		return nil, err
	}
	return fromSpans(cat, spans)
}
