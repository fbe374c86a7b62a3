package utils

import (
	"crypto/rand"
	"encoding/hex"
)

// RandomHex returns 2n hex characters of crypto randomness, used for request
// ids.
func RandomHex(n int) string {
	if n <= 0 {
		return ""
	}
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		// rand.Read does not fail on supported platforms
		panic(err)
	}
	return hex.EncodeToString(b)
}
