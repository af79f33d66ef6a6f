// Package shared holds small helpers for handling secret material.
package shared

import (
	"crypto/rand"
	"encoding/hex"
)

// RandomHex returns n random bytes, hex encoded (2n characters).
func RandomHex(n int) (string, error) {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}

// Wipe zeroes b in place. Use it on password buffers once they are consumed.
func Wipe(b []byte) {
	clear(b)
}
