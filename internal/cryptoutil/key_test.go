package cryptoutil

import (
	"bytes"
	"testing"
)

func TestLegacyKeyPadsAndTruncates(t *testing.T) {
	short := LegacyKey("secret")
	if len(short) != KeySize {
		t.Fatalf("unexpected key length: %d", len(short))
	}
	if string(short) != "secret"+string(bytes.Repeat([]byte{'0'}, KeySize-6)) {
		t.Fatalf("unexpected padded key: %q", short)
	}
	long := LegacyKey("0123456789abcdef0123456789abcdefEXTRA")
	if string(long) != "0123456789abcdef0123456789abcdef" {
		t.Fatalf("unexpected truncated key: %q", long)
	}
}

func TestDeriveKeyDeterministicPerSalt(t *testing.T) {
	params, err := NewKDFParams()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	a, err := DeriveKey("passphrase", params)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	b, err := DeriveKey("passphrase", params)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(a) != KeySize || !bytes.Equal(a, b) {
		t.Fatalf("expected identical 32-byte keys")
	}

	other, err := NewKDFParams()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	c, err := DeriveKey("passphrase", other)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if bytes.Equal(a, c) {
		t.Fatalf("expected different keys for different salts")
	}
}

func TestDeriveKeyRejectsEmptySecret(t *testing.T) {
	params, _ := NewKDFParams()
	if _, err := DeriveKey("", params); err == nil {
		t.Fatalf("expected error for empty secret")
	}
	if _, err := DeriveKey("x", KDFParams{}); err == nil {
		t.Fatalf("expected error for missing salt")
	}
}
