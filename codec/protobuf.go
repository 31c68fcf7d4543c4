package codec

import (
	"fmt"

	"google.golang.org/protobuf/encoding/protowire"

	"github.com/unkn0wn-root/idgen/idset"
)

// Protobuf encodes a set in protobuf wire format, compatible with:
//
//	message Range    { sint64 start = 1; sint64 end = 2; }
//	message RangeSet { repeated Range ranges = 1; }
//
// Unknown fields are skipped on decode.
type Protobuf struct{}

const (
	fieldRanges = 1
	fieldStart  = 1
	fieldEnd    = 2
)

func (Protobuf) Encode(s *idset.Set) ([]byte, error) {
	var out, msg []byte
	for _, sp := range toSpans(s) {
		msg = msg[:0]
		msg = protowire.AppendTag(msg, fieldStart, protowire.VarintType)
		msg = protowire.AppendVarint(msg, protowire.EncodeZigZag(sp.Start))
		msg = protowire.AppendTag(msg, fieldEnd, protowire.VarintType)
		msg = protowire.AppendVarint(msg, protowire.EncodeZigZag(sp.End))

		out = protowire.AppendTag(out, fieldRanges, protowire.BytesType)
		out = protowire.AppendBytes(out, msg)
	}
	return out, nil
}

func (Protobuf) Decode(c idset.Category, b []byte) (*idset.Set, error) {
	var spans []span
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return nil, protoErr(c, n)
		}
		b = b[n:]
		if num != fieldRanges || typ != protowire.BytesType {
			n = protowire.ConsumeFieldValue(num, typ, b)
			if n < 0 {
				return nil, protoErr(c, n)
			}
			b = b[n:]
			continue
		}
		msg, n := protowire.ConsumeBytes(b)
		if n < 0 {
			return nil, protoErr(c, n)
		}
		b = b[n:]
		sp, err := decodeSpan(c, msg)
		if err != nil {
			return nil, err
		}
		spans = append(spans, sp)
	}
	return fromSpans(c, spans)
}

func decodeSpan(c idset.Category, b []byte) (span, error) {
	var sp span
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return sp, protoErr(c, n)
		}
		b = b[n:]
		if (num == fieldStart || num == fieldEnd) && typ == protowire.VarintType {
			v, n := protowire.ConsumeVarint(b)
			if n < 0 {
				return sp, protoErr(c, n)
			}
			b = b[n:]
			if num == fieldStart {
				sp.Start = protowire.DecodeZigZag(v)
			} else {
				sp.End = protowire.DecodeZigZag(v)
			}
			continue
		}
		n = protowire.ConsumeFieldValue(num, typ, b)
		if n < 0 {
			return sp, protoErr(c, n)
		}
		b = b[n:]
	}
	return sp, nil
}

func protoErr(c idset.Category, n int) error {
	return fmt.Errorf("codec: decode %s: %w", c, protowire.ParseError(n))
}
