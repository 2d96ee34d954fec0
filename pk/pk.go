// Package pk defines point keys: the user-facing identifiers of vectors.
//
// The kernel module only understands 64-bit integer IDs. Numeric keys pass
// through unchanged; string keys are hashed with FNV-64a and masked to 63
// bits so the result is always non-negative when interpreted as a signed
// integer. FNV-64a is stable across processes and restarts, unlike runtime
// map hashing, so a string key always maps to the same kernel ID.
package pk

import (
	"fmt"
	"hash/fnv"
)

// mask63 clears the sign bit of a hashed string key.
const mask63 = 1<<63 - 1

// Kind discriminates the key representations.
type Kind uint8

const (
	KindNone Kind = iota
	KindUint64
	KindString
)

// Key is a point identifier: either a uint64, a string, or absent.
// The zero Key is absent; absent keys are auto-assigned by the client.
type Key struct {
	kind Kind
	num  uint64
	str  string
}

// Uint64 returns a numeric key.
func Uint64(v uint64) Key {
	return Key{kind: KindUint64, num: v}
}

// String returns a string key.
func String(s string) Key {
	return Key{kind: KindString, str: s}
}

// Kind returns the key's kind.
func (k Key) Kind() Kind { return k.kind }

// IsZero reports whether the key is absent.
func (k Key) IsZero() bool { return k.kind == KindNone }

// Kernel derives the 64-bit identifier sent to the kernel module.
// Deterministic: the same key always yields the same identifier.
func (k Key) Kernel() uint64 {
	switch k.kind {
	case KindUint64:
		return k.num
	case KindString:
		h := fnv.New64a()
		h.Write([]byte(k.str))
		return h.Sum64() & mask63
	default:
		return 0
	}
}

func (k Key) String() string {
	switch k.kind {
	case KindUint64:
		return fmt.Sprintf("%d", k.num)
	case KindString:
		return k.str
	default:
		return "<auto>"
	}
}
