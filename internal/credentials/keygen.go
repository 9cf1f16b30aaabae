package credentials

import (
	"crypto/rand"
	"fmt"
)

const keyAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789"

// NewStreamKey returns a cryptographically random key of length n drawn from
// the alphanumeric alphabet. Rejection sampling keeps the distribution
// uniform.
func NewStreamKey(n int) (string, error) {
	if n <= 0 {
		return "", fmt.Errorf("key length must be positive, got %d", n)
	}
	out := make([]byte, 0, n)
	buf := make([]byte, n)
	// Largest multiple of len(keyAlphabet) below 256.
	max := byte(256 - 256%len(keyAlphabet))
	for len(out) < n {
		if _, err := rand.Read(buf); err != nil {
			return "", fmt.Errorf("read random: %w", err)
		}
		for _, b := range buf {
			if b >= max {
				continue
			}
			out = append(out, keyAlphabet[int(b)%len(keyAlphabet)])
			if len(out) == n {
				break
			}
		}
	}
	return string(out), nil
}
