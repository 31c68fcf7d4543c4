package util

import (
	"crypto/sha256"
	"fmt"
	"strings"
)

// MaxRawName is the longest category name embedded verbatim in a key.
const MaxRawName = 200

// Key returns "<prefix>:<namespace>:<name>". Names longer than MaxRawName are
// replaced by "#" and the first 16 hex chars of their sha256, so keys stay
// bounded for backends with key size limits. An empty namespace is omitted.
func Key(prefix, namespace, name string) string {
	if len(name) > MaxRawName {
		sum := sha256.Sum256([]byte(name))
		name = fmt.Sprintf("#%x", sum)[:1+16]
	}
	var b strings.Builder
	b.Grow(len(prefix) + len(namespace) + len(name) + 2)
	b.WriteString(prefix)
	b.WriteByte(':')
	if namespace != "" {
		b.WriteString(namespace)
		b.WriteByte(':')
	}
	b.WriteString(name)
	return b.String()
}
