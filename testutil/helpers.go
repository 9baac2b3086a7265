package testutil

import (
	"testing"

	"github.com/djkazic/ducominer/pkg/util"
)

// MustDecodeHash decodes a 40-character hex digest or fails the test.
func MustDecodeHash(t testing.TB, s string) [util.HashSize]byte {
	t.Helper()
	h, err := util.DecodeHash(s)
	if err != nil {
		t.Fatalf("invalid hash %q: %v", s, err)
	}
	return h
}
