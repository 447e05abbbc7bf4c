package util

import (
	"crypto/rand"
	"encoding/hex"
)

// NewID returns 128 random bits as lowercase hex, prefixed like
// "jti_4f2a..." when a prefix is given. Used for token JTIs, refresh
// tokens, and media object names.
func NewID(prefix string) string {
	buf := make([]byte, 16)
	_, _ = rand.Read(buf)
	id := hex.EncodeToString(buf)
	if prefix == "" {
		return id
	}
	return prefix + "_" + id
}
