// Package token generates the opaque access/refresh strings handed to
// clients. Tokens are random identifiers resolved server-side, never
// self-contained payloads.
package token

import (
	"crypto/rand"
	"encoding/base64"
)

// Generate returns a random base64url string (no padding) built from
// nBytes of entropy.
func Generate(nBytes int) (string, error) {
	b := make([]byte, nBytes)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

// MustGenerate is Generate for call sites where an entropy failure is not
// recoverable anyway (test fixtures, seeding).
func MustGenerate(nBytes int) string {
	s, err := Generate(nBytes)
	if err != nil {
		panic("token: entropy unavailable: " + err.Error())
	}
	return s
}
