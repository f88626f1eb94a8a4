// Package reference generates short human-facing booking references.
package reference

import (
	"crypto/rand"
	"fmt"
	"strings"
)

const (
	// Prefix identifies booking references in support conversations and
	// bank transfer descriptions.
	Prefix = "BK-"

	alphabet   = "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz"
	codeLength = 8
)

// maxUnbiased is the largest multiple of len(alphabet) that fits in a byte.
// Bytes at or above it are rejected so every character is equally likely;
// reducing modulo 62 directly would skew toward the first 8 characters.
const maxUnbiased = 256 - 256%len(alphabet)

// New returns a fresh candidate reference, e.g. "BK-h3K9pQ2x". Candidates are
// random, so the caller must check uniqueness against storage and retry on
// collision.
func New() (string, error) {
	code := make([]byte, 0, codeLength)
	buf := make([]byte, codeLength)
	for len(code) < codeLength {
		if _, err := rand.Read(buf); err != nil {
			return "", fmt.Errorf("failed to generate reference: %w", err)
		}
		for _, b := range buf {
			if int(b) >= maxUnbiased {
				continue
			}
			code = append(code, alphabet[int(b)%len(alphabet)])
			if len(code) == codeLength {
				break
			}
		}
	}
	return Prefix + string(code), nil
}

// IsValid reports whether s has the expected shape. It does not check that
// the reference exists.
func IsValid(s string) bool {
	if !strings.HasPrefix(s, Prefix) {
		return false
	}
	code := s[len(Prefix):]
	if len(code) != codeLength {
		return false
	}
	for _, c := range code {
		if !strings.ContainsRune(alphabet, c) {
			return false
		}
	}
	return true
}
