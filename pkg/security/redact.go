package security

import (
	"encoding/hex"
	"strings"

	"golang.org/x/crypto/blake2b"
)

const digestSize = 8

// Redactor turns client-supplied identifiers into short keyed digests so
// cart and user ids never reach the log sink in the clear.
type Redactor struct {
	key []byte
}

// NewRedactor builds a redactor keyed with key. Keys longer than BLAKE2b
// accepts are compressed first; an empty key yields an unkeyed digest.
func NewRedactor(key string) *Redactor {
	k := []byte(key)
	if len(k) > blake2b.Size {
		sum := blake2b.Sum512(k)
		k = sum[:]
	}
	return &Redactor{key: k}
}

// Hash returns the hex digest of id, or an empty string when id is blank.
func (r *Redactor) Hash(id string) string {
	id = strings.TrimSpace(id)
	if id == "" {
		return ""
	}
	var key []byte
	if r != nil {
		key = r.key
	}
	h, err := blake2b.New(digestSize, key)
	if err != nil {
		// unreachable: size and key length are bounded above
		return "redacted"
	}
	h.Write([]byte(id))
	return hex.EncodeToString(h.Sum(nil))
}
