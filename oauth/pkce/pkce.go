// Package pkce implements Proof Key for Code Exchange (RFC 7636).
package pkce

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"fmt"
)

const (
	MethodPlain = "plain"
	MethodS256  = "S256"
)

// GenerateCodeVerifier returns a cryptographically-secure random string
// (code_verifier) conforming to RFC 7636 (length 43–128, unreserved chars).
func GenerateCodeVerifier() (string, error) {
	// 64 random bytes → 86-character base64url string (within 43–128)
	b := make([]byte, 64)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("pkce: failed to generate verifier: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

// SupportedMethod reports whether method is plain or S256.
func SupportedMethod(method string) bool {
	return method == MethodPlain || method == MethodS256
}

// Challenge derives the code_challenge for verifier. An empty method means plain.
func Challenge(method, verifier string) (string, error) {
	switch method {
	case MethodS256:
		sum := sha256.Sum256([]byte(verifier))
		return base64.RawURLEncoding.EncodeToString(sum[:]), nil
	case MethodPlain, "":
		return verifier, nil
	default:
		return "", fmt.Errorf("pkce: unsupported code_challenge_method %q", method)
	}
}

// Verify checks verifier against a stored challenge.
func Verify(method, verifier, challenge string) bool {
	if verifier == "" || challenge == "" {
		return false
	}
	got, err := Challenge(method, verifier)
	if err != nil {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(got), []byte(challenge)) == 1
}
