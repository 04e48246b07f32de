package e2ee

import (
	"strings"
	"testing"
)

func testKey(t *testing.T) string {
	t.Helper()
	key, err := GenerateEncryptionKey()
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	return key
}

func TestEncryptDecryptRoundtrip(t *testing.T) {
	key := testKey(t)
	for _, plaintext := range []string{
		"x",
		"hello transfer",
		strings.Repeat("payload-", 1024),
		`{"module":"roomManager","method":"createRoom"}`,
	} {
		sealed, err := Encrypt(plaintext, key)
		if err != nil {
			t.Fatalf("encrypt %q: %v", plaintext[:min(8, len(plaintext))], err)
		}
		if len(sealed.IV) != 24 {
			t.Fatalf("expected 12-byte hex IV, got %q", sealed.IV)
		}
		if len(sealed.Tag) != 32 {
			t.Fatalf("expected 16-byte hex tag, got %q", sealed.Tag)
		}
		out, err := Decrypt(sealed, key)
		if err != nil {
			t.Fatalf("decrypt: %v", err)
		}
		if out != plaintext {
			t.Fatalf("roundtrip mismatch")
		}
	}
}

func TestDecryptTamperedTag(t *testing.T) {
	key := testKey(t)
	sealed, err := Encrypt("sensitive", key)
	if err != nil {
		t.Fatalf("encrypt: %v", err)
	}

	flipped := []byte(sealed.Tag)
	if flipped[0] == 'f' {
		flipped[0] = '0'
	} else {
		flipped[0] = 'f'
	}
	sealed.Tag = string(flipped)

	if _, err := Decrypt(sealed, key); CodeOf(err) != CodeDecryptionFailed {
		t.Fatalf("expected DecryptionFailed for flipped tag, got %v", err)
	}
}

func TestDecryptWrongKey(t *testing.T) {
	sealed, err := Encrypt("sensitive", testKey(t))
	if err != nil {
		t.Fatalf("encrypt: %v", err)
	}
	if _, err := Decrypt(sealed, testKey(t)); CodeOf(err) != CodeDecryptionFailed {
		t.Fatalf("expected DecryptionFailed for wrong key, got %v", err)
	}
}

func TestDecryptShortTag(t *testing.T) {
	key := testKey(t)
	sealed, err := Encrypt("sensitive", key)
	if err != nil {
		t.Fatalf("encrypt: %v", err)
	}
	sealed.Tag = sealed.Tag[:30]
	if _, err := Decrypt(sealed, key); CodeOf(err) != CodeInvalidAuthTag {
		t.Fatalf("expected InvalidAuthTag for 15-byte tag, got %v", err)
	}
}

func TestEncryptZeroLengthData(t *testing.T) {
	if _, err := Encrypt("", testKey(t)); CodeOf(err) != CodeZeroLengthData {
		t.Fatalf("expected ZeroLengthData, got %v", err)
	}
}

func TestEncryptZeroLengthKey(t *testing.T) {
	if _, err := Encrypt("data", ""); CodeOf(err) != CodeZeroLengthKey {
		t.Fatalf("expected ZeroLengthKey, got %v", err)
	}
}

func TestDeriveKey(t *testing.T) {
	key := testKey(t)

	a, err := DeriveKey(key, "relay", 32)
	if err != nil {
		t.Fatalf("derive: %v", err)
	}
	if len(a) != 64 {
		t.Fatalf("expected 32-byte hex subkey, got %q", a)
	}

	b, err := DeriveKey(key, "relay", 32)
	if err != nil {
		t.Fatalf("derive: %v", err)
	}
	if a != b {
		t.Fatalf("derivation must be deterministic for the same info")
	}

	c, err := DeriveKey(key, "other", 32)
	if err != nil {
		t.Fatalf("derive: %v", err)
	}
	if a == c {
		t.Fatalf("different info must yield a different subkey")
	}

	if _, err := DeriveKey("", "relay", 32); CodeOf(err) != CodeZeroLengthKey {
		t.Fatalf("expected ZeroLengthKey, got %v", err)
	}
	if _, err := DeriveKey(key, "relay", 0); CodeOf(err) != CodeInvalidLength {
		t.Fatalf("expected InvalidLength, got %v", err)
	}
}

func min(a, b int) int {
	if a < b {
		return a
	}
	return b
}
