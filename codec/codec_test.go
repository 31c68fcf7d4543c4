package codec

import (
	"errors"
	"testing"

	"github.com/sebdah/goldie/v2"
	"github.com/stretchr/testify/require"

	"github.com/unkn0wn-root/idgen/idset"
)

const cat idset.Category = "users"

func mustSet(t *testing.T, ranges string) *idset.Set {
	t.Helper()
	s, err := idset.Parse(cat, ranges)
	require.NoError(t, err)
	return s
}

func TestTextEncodeGolden(t *testing.T) {
	s := mustSet(t, "11000-12000,1-100,1001-10000")
	b, err := Text{}.Encode(s)
	require.NoError(t, err)

	g := goldie.New(t)
	g.Assert(t, "text_encode", b)
}

func TestTextEncodeUsesCursor(t *testing.T) {
	s := mustSet(t, "1-10")
	_, err := s.TakeIDs(4)
	require.NoError(t, err)

	b, err := Text{}.Encode(s)
	require.NoError(t, err)
	require.Equal(t, "5-10\n", string(b))
}

func TestTextDecodeSortsAndMerges(t *testing.T) {
	s, err := Text{}.Decode(cat, []byte("401-600\n101-200\n201-400\n1001-2000\n"))
	require.NoError(t, err)
	require.Equal(t, "101-600,1001-2000", s.RangesString())
	require.Equal(t, cat, s.Category())
}

func TestTextDecodeEmptyPayload(t *testing.T) {
	s, err := Text{}.Decode(cat, nil)
	require.NoError(t, err)
	require.Zero(t, s.Size())
	require.False(t, s.HasMoreIDs())

	b, err := Text{}.Encode(s)
	require.NoError(t, err)
	require.Empty(t, b)
}

func TestTextDecodeRejectsMalformedLine(t *testing.T) {
	_, err := Text{}.Decode(cat, []byte("1-10\n20-x\n30-40\n"))
	require.Error(t, err)

	var pe *idset.ParseError
	require.True(t, errors.As(err, &pe))
	require.Equal(t, 2, pe.Line)
	require.Equal(t, "20-x", pe.Input)
	require.ErrorIs(t, err, idset.ErrParse)

	_, err = Text{}.Decode(cat, []byte("1-10\n\n"))
	require.ErrorIs(t, err, idset.ErrParse)

	_, err = Text{}.Decode(cat, []byte("9-1\n"))
	require.ErrorIs(t, err, idset.ErrParse)
}

func TestTextDecodeRejectsOverlap(t *testing.T) {
	_, err := Text{}.Decode(cat, []byte("1-10\n5-20\n"))
	require.ErrorIs(t, err, idset.ErrOverlap)
}

func TestRoundTripAllCodecs(t *testing.T) {
	cborc, err := NewCBOR(true)
	require.NoError(t, err)

	codecs := map[string]Codec{
		"text":     Text{},
		"json":     JSON{},
		"msgpack":  Msgpack{},
		"cbor":     cborc,
		"protobuf": Protobuf{},
		"limit":    Limit{Inner: Text{}, MaxDecode: 1 << 10},
	}
	inputs := []string{
		"",
		"1-1",
		"101-200,301-400,501-600,1001-2000",
		"-500--100,0-0,9223372036854775000-9223372036854775806",
		"-9223372036854775808--9223372036854775000,9223372036854775000-9223372036854775807",
		"0-9223372036854775807",
	}

	for name, c := range codecs {
		for _, in := range inputs {
			s := mustSet(t, in)
			b, err := c.Encode(s)
			require.NoError(t, err, "%s encode %q", name, in)

			got, err := c.Decode(cat, b)
			require.NoError(t, err, "%s decode %q", name, in)
			require.Equal(t, s.RangesString(), got.RangesString(), name)
			require.Equal(t, s.Size(), got.Size(), name)
		}
	}
}

func TestBinaryDecodersValidate(t *testing.T) {
	// a payload whose spans overlap must not produce a set
	bad := idset.Empty(cat)
	b, err := JSON{}.Encode(bad)
	require.NoError(t, err)
	require.Equal(t, "[]", string(b))

	_, err = JSON{}.Decode(cat, []byte(`[{"start":1,"end":10},{"start":5,"end":20}]`))
	require.ErrorIs(t, err, idset.ErrOverlap)

	_, err = JSON{}.Decode(cat, []byte(`[{"start":10,"end":1}]`))
	require.ErrorIs(t, err, idset.ErrInvalid)

	_, err = Protobuf{}.Decode(cat, []byte{0x0a, 0x05, 0x08})
	require.Error(t, err)
}

func TestProtobufSkipsUnknownFields(t *testing.T) {
	b, err := Protobuf{}.Encode(mustSet(t, "5-9"))
	require.NoError(t, err)

	// field 7, varint 1 appended to the outer message
	b = append(b, 0x38, 0x01)
	s, err := Protobuf{}.Decode(cat, b)
	require.NoError(t, err)
	require.Equal(t, "5-9", s.RangesString())
}

func TestLimitRejectsOversizedPayload(t *testing.T) {
	c := Limit{Inner: Text{}, MaxDecode: 4}
	_, err := c.Decode(cat, []byte("1-100\n"))
	require.Error(t, err)
	require.Contains(t, err.Error(), "payload too large")

	s, err := c.Decode(cat, []byte("1-9\n"))
	require.NoError(t, err)
	require.Equal(t, int64(9), s.Size())
}

func TestByName(t *testing.T) {
	for _, name := range []string{"", "text", "json", "msgpack", "cbor", "protobuf"} {
		c, err := ByName(name)
		require.NoError(t, err, name)
		require.NotNil(t, c, name)
	}
	_, err := ByName("yaml")
	require.Error(t, err)
}
