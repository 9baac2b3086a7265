package util

import (
	"encoding/hex"
	"fmt"
	"strings"
)

// HashSize is the length in bytes of a DUCO-S1 digest.
const HashSize = 20

// HashHexLen is the length of a hex-encoded DUCO-S1 digest.
const HashHexLen = HashSize * 2

// DecodeHash decodes the first HashHexLen characters of s as a 20-byte digest.
// Characters past the digest are ignored; both hex cases are accepted.
func DecodeHash(s string) ([HashSize]byte, error) {
	var h [HashSize]byte
	if len(s) < HashHexLen {
		return h, fmt.Errorf("hash hex length %d, need %d: %w", len(s), HashHexLen, hex.ErrLength)
	}
	if _, err := hex.Decode(h[:], []byte(s[:HashHexLen])); err != nil {
		return [HashSize]byte{}, err
	}
	return h, nil
}

// EncodeHash encodes a digest as 40 uppercase hex characters, the form the
// coordinator sends.
func EncodeHash(h [HashSize]byte) string {
	return strings.ToUpper(hex.EncodeToString(h[:]))
}

// BytesToHex encodes bytes to a lowercase hex string.
func BytesToHex(b []byte) string {
	return hex.EncodeToString(b)
}
