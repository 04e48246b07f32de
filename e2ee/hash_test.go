package e2ee

import "testing"

func TestCreateAndVerifyHash(t *testing.T) {
	hash := CreateHash("integrity check")
	if len(hash) != 64 {
		t.Fatalf("expected 64 hex chars, got %q", hash)
	}
	if !VerifyHash("integrity check", hash) {
		t.Fatalf("expected hash to verify")
	}
	if VerifyHash("integrity  check", hash) {
		t.Fatalf("expected different data to fail verification")
	}
}

func TestSecureCompare(t *testing.T) {
	if !SecureCompare("abc123", "abc123") {
		t.Fatalf("expected equal strings to compare true")
	}
	if SecureCompare("abc123", "abc124") {
		t.Fatalf("expected unequal strings to compare false")
	}
	if SecureCompare("abc", "abcd") {
		t.Fatalf("expected length mismatch to compare false")
	}
	if !SecureCompare("", "") {
		t.Fatalf("expected two empty strings to compare true")
	}
}

func TestValidators(t *testing.T) {
	key, err := GenerateEncryptionKey()
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	if !IsValidKey(key) {
		t.Fatalf("expected generated key %q to validate", key)
	}
	if IsValidKey(key[:63]) {
		t.Fatalf("expected 63-char key to fail")
	}
	if IsValidKey(key[:63] + "g") {
		t.Fatalf("expected non-hex key to fail")
	}

	id, err := GenerateRoomID()
	if err != nil {
		t.Fatalf("generate room id: %v", err)
	}
	if !IsValidRoomID(id) {
		t.Fatalf("expected generated room id %q to validate", id)
	}
	for _, bad := range []string{"", "ABCDE", "ABCDE-FGH", "ABCDE_FGHJK", "ABCDE-FGHJK-LMNPQ", "abc!e-fghjk"} {
		if IsValidRoomID(bad) {
			t.Fatalf("expected %q to fail room id validation", bad)
		}
	}
}
