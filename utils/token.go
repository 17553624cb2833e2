package utils

import (
	"crypto/rand"
	"fmt"
	"math/big"
)

const (
	// DefaultTokenLength is the length of generated codes and tokens.
	DefaultTokenLength = 30

	tokenCharset = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
)

// GenerateToken returns an opaque random string of the given length drawn from
// ASCII letters and digits.
func GenerateToken(length int) (string, error) {
	if length <= 0 {
		length = DefaultTokenLength
	}
	limit := big.NewInt(int64(len(tokenCharset)))
	b := make([]byte, length)
	for i := range b {
		n, err := rand.Int(rand.Reader, limit)
		if err != nil {
			return "", fmt.Errorf("failed to generate token: %w", err)
		}
		b[i] = tokenCharset[n.Int64()]
	}
	return string(b), nil
}
