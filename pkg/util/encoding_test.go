package util

import (
	"strings"
	"testing"
)

func TestHashHexRoundTrip(t *testing.T) {
	tests := []string{
		"0000000000000000000000000000000000000000",
		"FFFFFFFFFFFFFFFFFFFFFFFFFFFFFFFFFFFFFFFF",
		"A9993E364706816ABA3E25717850C26C9CD0D89D",
		"0123456789ABCDEF0123456789ABCDEF01234567",
	}

	for _, s := range tests {
		h, err := DecodeHash(s)
		if err != nil {
			t.Errorf("DecodeHash(%s) error: %v", s, err)
			continue
		}
		if got := EncodeHash(h); got != s {
			t.Errorf("round-trip %s -> %s", s, got)
		}
	}
}

func TestDecodeHash_Lowercase(t *testing.T) {
	h, err := DecodeHash("a9993e364706816aba3e25717850c26c9cd0d89d")
	if err != nil {
		t.Fatalf("DecodeHash lowercase: %v", err)
	}
	if h != SumS1([]byte("abc")) {
		t.Error("lowercase hex decoded to the wrong digest")
	}
}

func TestDecodeHash_IgnoresTrailing(t *testing.T) {
	s := "A9993E364706816ABA3E25717850C26C9CD0D89D" + "trailing"
	h, err := DecodeHash(s)
	if err != nil {
		t.Fatalf("DecodeHash: %v", err)
	}
	if EncodeHash(h) != s[:HashHexLen] {
		t.Error("trailing characters changed the digest")
	}
}

func TestDecodeHash_Invalid(t *testing.T) {
	valid := "A9993E364706816ABA3E25717850C26C9CD0D89D"

	tests := []struct {
		name string
		in   string
	}{
		{"short", valid[:38]},
		{"empty", ""},
		{"G in high nibble", "G" + valid[1:]},
		{"Z in low nibble", valid[:39] + "Z"},
		{"space", valid[:20] + " " + valid[21:]},
		{"punctuation", valid[:10] + ":" + valid[11:]},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := DecodeHash(tt.in); err == nil {
				t.Errorf("DecodeHash(%q) should fail", tt.in)
			}
		})
	}
}

func FuzzDecodeHash(f *testing.F) {
	f.Add("A9993E364706816ABA3E25717850C26C9CD0D89D")
	f.Add("zz993E364706816ABA3E25717850C26C9CD0D89D")
	f.Add("")

	f.Fuzz(func(t *testing.T, s string) {
		h, err := DecodeHash(s)
		if err != nil {
			return
		}
		if got := EncodeHash(h); got != strings.ToUpper(s[:HashHexLen]) {
			t.Errorf("decoded %q re-encodes to %q", s, got)
		}
	})
}
