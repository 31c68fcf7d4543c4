package wire

import (
	"bytes"
	"encoding/binary"
	"errors"
)

const (
	formatVersion byte = 1
	kindBlob      byte = 1
	hdrLen             = 4 + 1 + 1 + 8 + 2
)

var (
	ErrCorrupt = errors.New("idgen: corrupt cache entry")
	magic4     = [...]byte{'I', 'D', 'G', 'N'}
)

func hasMagic(b []byte) bool {
	return len(b) >= 4 && bytes.Equal(b[:4], magic4[:])
}

// Entry is one cached store blob.
type Entry struct {
	Category string
	Version  uint64
	Payload  []byte
}

// Encode lays out:
//
//	magic(4) | fmt(1) | kind(1=blob) | version(u64 be) | clen(u16 be) | category(clen) | plen(u32 be) | payload(plen)
//
// Categories longer than 0xFFFF bytes are rejected with ErrCorrupt.
func Encode(e Entry) ([]byte, error) {
	if len(e.Category) > 0xFFFF {
		return nil, ErrCorrupt
	}
	var buf bytes.Buffer
	buf.Grow(hdrLen + len(e.Category) + 4 + len(e.Payload))

	buf.Write(magic4[:])
	buf.WriteByte(formatVersion)
	buf.WriteByte(kindBlob)

	var u8 [8]byte
	var u4 [4]byte
	var u2 [2]byte

	binary.BigEndian.PutUint64(u8[:], e.Version)
	buf.Write(u8[:])

	binary.BigEndian.PutUint16(u2[:], uint16(len(e.Category)))
	buf.Write(u2[:])
	buf.WriteString(e.Category)

	binary.BigEndian.PutUint32(u4[:], uint32(len(e.Payload)))
	buf.Write(u4[:])
	buf.Write(e.Payload)
	return buf.Bytes(), nil
}

// Decode parses an entry written by Encode. The returned payload aliases b.
// Truncated input, unknown headers and trailing bytes are ErrCorrupt.
func Decode(b []byte) (Entry, error) {
	if len(b) < hdrLen || !hasMagic(b) || b[4] != formatVersion || b[5] != kindBlob {
		return Entry{}, ErrCorrupt
	}
	off := 6

	ver := binary.BigEndian.Uint64(b[off : off+8])
	off += 8

	clen := int(binary.BigEndian.Uint16(b[off : off+2]))
	off += 2
	if clen > len(b)-off {
		return Entry{}, ErrCorrupt
	}
	cat := string(b[off : off+clen])
	off += clen

	if off+4 > len(b) {
		return Entry{}, ErrCorrupt
	}
	plen := int(binary.BigEndian.Uint32(b[off : off+4]))
	off += 4
	if plen < 0 || plen != len(b)-off { // exact: no trailing bytes
		return Entry{}, ErrCorrupt
	}

	return Entry{Category: cat, Version: ver, Payload: b[off : off+plen]}, nil
}
