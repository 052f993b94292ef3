// Package sha256 computes and verifies the hex SHA-256 digests recorded for
// each index artifact part.
package sha256

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
)

// MismatchError reports a digest that differs from the recorded one.
type MismatchError struct {
	Want string
	Got  string
}

func (e *MismatchError) Error() string {
	return fmt.Sprintf("checksum mismatch: want %s, got %s", e.Want, e.Got)
}

// Sum returns the lowercase hex digest of data.
func Sum(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// Verify checks data against a recorded hex digest.
func Verify(data []byte, want string) error {
	got := Sum(data)
	if !strings.EqualFold(got, strings.TrimSpace(want)) {
		return &MismatchError{Want: want, Got: got}
	}
	return nil
}
