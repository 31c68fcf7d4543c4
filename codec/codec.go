// Package codec converts id sets to and from stored payloads.
//
// Text is the persisted format and the allocator default: one
// "<start>-<end>" line per range, ascending by end. The binary codecs encode
// the same list of spans for stores that prefer a compact payload; every
// process sharing a category must use the same codec.
package codec

import (
	"fmt"

	"github.com/unkn0wn-root/idgen/idset"
)

// Codec encodes/decodes id sets to []byte for storage.
type Codec interface {
	Encode(*idset.Set) ([]byte, error)
	Decode(idset.Category, []byte) (*idset.Set, error)
}

// span is the structured form of one range shared by the binary codecs.
type span struct {
	Start int64 `json:"start" msgpack:"s" cbor:"1,keyasint"`
	End   int64 `json:"end" msgpack:"e" cbor:"2,keyasint"`
}

func toSpans(s *idset.Set) []span {
	rs := s.PeekRanges()
	out := make([]span, len(rs))
	for i, r := range rs {
		out[i] = span{Start: r.Start(), End: r.End()}
	}
	return out
}

func fromSpans(category idset.Category, spans []span) (*idset.Set, error) {
	ranges := make([]*idset.Range, 0, len(spans))
	for _, sp := range spans {
		r, err := idset.NewRange(sp.Start, sp.End)
		if err != nil {
			return nil, fmt.Errorf("codec: decode %s: %w", category, err)
		}
		ranges = append(ranges, r)
	}
	s, err := idset.New(category, ranges...)
	if err != nil {
		return nil, fmt.Errorf("codec: decode %s: %w", category, err)
	}
	return s, nil
}

// ByName returns the codec registered under name: text, json, msgpack, cbor
// or protobuf. An empty name selects Text.
func ByName(name string) (Codec, error) {
	switch name {
	case "", "text":
		return Text{}, nil
	case "json":
		return JSON{}, nil
	case "msgpack":
		return Msgpack{}, nil
	case "cbor":
		c, err := NewCBOR(true)
		if err != nil {
			return nil, err
		}
		return c, nil
	case "protobuf", "proto":
		return Protobuf{}, nil
	}
	return nil, fmt.Errorf("codec: unknown codec %q", name)
}
