package codec

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"

	"github.com/unkn0wn-root/idgen/idset"
)

// Text is the persisted line format: UTF-8, one "<start>-<end>" per line,
// newline-terminated, ascending by end. Decode accepts lines in any order.
// The zero value is ready to use.
type Text struct{}

func (Text) Encode(s *idset.Set) ([]byte, error) {
	var buf bytes.Buffer
	if _, err := s.WriteTo(&buf); err != nil {
		return nil, fmt.Errorf("codec: encode %s: %w", s.Category(), err)
	}
	return buf.Bytes(), nil
}

func (Text) Decode(category idset.Category, b []byte) (*idset.Set, error) {
	var ranges []*idset.Range
	sc := bufio.NewScanner(bytes.NewReader(b))
	for line := 1; sc.Scan(); line++ {
		r, err := idset.ParseRange(sc.Text())
		if err != nil {
			var pe *idset.ParseError
			if errors.As(err, &pe) {
				pe.Line = line
			}
			return nil, fmt.Errorf("codec: decode %s: %w", category, err)
		}
		ranges = append(ranges, r)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("codec: decode %s: %w", category, err)
	}
	s, err := idset.New(category, ranges...)
	if err != nil {
		return nil, fmt.Errorf("codec: decode %s: %w", category, err)
	}
	return s, nil
}
