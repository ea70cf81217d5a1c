package common

import (
	"bytes"
	"encoding/hex"
	"strings"
	"testing"
)

// ---------- MakeRandHexString ----------

func TestMakeRandHexString_LengthAndHex(t *testing.T) {
	const n = 16
	s, err := MakeRandHexString(n)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(s) != n*2 {
		t.Fatalf("expected hex length %d, got %d", n*2, len(s))
	}
	if _, err := hex.DecodeString(s); err != nil {
		t.Fatalf("string is not valid hex: %v", err)
	}
}

func TestMakeRandHexString_ZeroSize(t *testing.T) {
	s, err := MakeRandHexString(0)
	if err != nil {
		t.Fatalf("unexpected error for size=0: %v", err)
	}
	if s != "" {
		t.Fatalf("expected empty string for size=0, got %q", s)
	}
}

// ---------- RandomString ----------

func TestRandomString_DeterministicFromReader(t *testing.T) {
	// 0 -> 'a', 1 -> 'b', 36 -> 'a' (36 % 36), 35 -> '9'
	r := bytes.NewReader([]byte{0, 1, 36, 35})
	s, err := RandomString(r, LowerAlphanumeric, 4)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if s != "aba9" {
		t.Fatalf("got %q, want %q", s, "aba9")
	}
}

func TestRandomString_RejectsBiasedBytes(t *testing.T) {
	// 256 - 256%36 = 252, so 252..255 are skipped.
	r := bytes.NewReader([]byte{255, 252, 2})
	s, err := RandomString(r, LowerAlphanumeric, 1)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if s != "c" {
		t.Fatalf("got %q, want %q", s, "c")
	}
}

func TestRandomString_ShortReader(t *testing.T) {
	_, err := RandomString(bytes.NewReader([]byte{1}), LowerAlphanumeric, 4)
	if err == nil {
		t.Fatalf("expected error for exhausted reader")
	}
}

func TestRandomString_EmptyAlphabet(t *testing.T) {
	_, err := RandomString(strings.NewReader("abc"), "", 1)
	if err == nil {
		t.Fatalf("expected error for empty alphabet")
	}
}
