package e2ee

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"io"

	"golang.org/x/crypto/hkdf"
)

const (
	gcmIVSize  = 12
	gcmTagSize = 16
)

// EncryptedData is the wire form of an AES-256-GCM sealed payload. All
// fields are hex encoded.
type EncryptedData struct {
	Encrypted string `json:"encrypted"`
	IV        string `json:"iv"`
	Tag       string `json:"tag"`
}

func checkAESGCMInputs(iv, key, data []byte) error {
	if len(iv) == 0 {
		return NewError(CodeZeroLengthIV, "Zero-length iv is not supported")
	}
	if len(key) == 0 {
		return NewError(CodeZeroLengthKey, "Zero-length key is not supported")
	}
	if len(data) == 0 {
		return NewError(CodeZeroLengthData, "Zero-length data is not supported")
	}
	return nil
}

func newGCM(key []byte) (cipher.AEAD, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	return cipher.NewGCM(block)
}

// Encrypt seals data with AES-256-GCM under the hex-encoded key, using a
// fresh 12-byte random IV per call.
func Encrypt(data string, keyHex string) (*EncryptedData, error) {
	key, err := hex.DecodeString(keyHex)
	if err != nil {
		return nil, Errorf(CodeEncryptionFailed, "Encryption failed: %v", err)
	}

	iv := make([]byte, gcmIVSize)
	if _, err := rand.Read(iv); err != nil {
		return nil, Errorf(CodeEncryptionFailed, "Encryption failed: %v", err)
	}

	plaintext := []byte(data)
	if err := checkAESGCMInputs(iv, key, plaintext); err != nil {
		return nil, err
	}

	aead, err := newGCM(key)
	if err != nil {
		return nil, Errorf(CodeEncryptionFailed, "Encryption failed: %v", err)
	}

	sealed := aead.Seal(nil, iv, plaintext, nil)
	ciphertext := sealed[:len(sealed)-gcmTagSize]
	tag := sealed[len(sealed)-gcmTagSize:]

	return &EncryptedData{
		Encrypted: hex.EncodeToString(ciphertext),
		IV:        hex.EncodeToString(iv),
		Tag:       hex.EncodeToString(tag),
	}, nil
}

// Decrypt opens an AES-256-GCM payload. The tag must be exactly 16 bytes;
// ciphertext and tag are recombined for the AEAD verification. An empty
// plaintext result is treated as an integrity failure, not empty data.
func Decrypt(data *EncryptedData, keyHex string) (string, error) {
	key, err := hex.DecodeString(keyHex)
	if err != nil {
		return "", Errorf(CodeDecryptionFailed, "Decryption failed: %v", err)
	}
	iv, err := hex.DecodeString(data.IV)
	if err != nil {
		return "", Errorf(CodeDecryptionFailed, "Decryption failed: %v", err)
	}
	tag, err := hex.DecodeString(data.Tag)
	if err != nil {
		return "", Errorf(CodeDecryptionFailed, "Decryption failed: %v", err)
	}
	ciphertext, err := hex.DecodeString(data.Encrypted)
	if err != nil {
		return "", Errorf(CodeDecryptionFailed, "Decryption failed: %v", err)
	}

	if err := checkAESGCMInputs(iv, key, ciphertext); err != nil {
		return "", err
	}
	if len(tag) != gcmTagSize {
		return "", NewError(CodeInvalidAuthTag, "Invalid authentication tag")
	}

	aead, err := newGCM(key)
	if err != nil {
		return "", Errorf(CodeDecryptionFailed, "Decryption failed: %v", err)
	}

	plaintext, err := aead.Open(nil, iv, append(ciphertext, tag...), nil)
	if err != nil {
		return "", Errorf(CodeDecryptionFailed, "Decryption failed: %v", err)
	}
	if len(plaintext) == 0 {
		return "", NewError(CodeDecryptionFailed,
			"Decryption result is empty, possibly due to wrong key or corrupted data")
	}
	return string(plaintext), nil
}

// DeriveKey expands the hex-encoded root key into a purpose-bound subkey of
// the given byte length via HKDF-SHA256.
func DeriveKey(keyHex string, info string, length int) (string, error) {
	key, err := hex.DecodeString(keyHex)
	if err != nil {
		return "", Errorf(CodeKeyDerivationFailed, "Key derivation failed: %v", err)
	}
	if len(key) == 0 {
		return "", NewError(CodeZeroLengthKey, "Zero-length key is not supported")
	}
	if length <= 0 {
		return "", NewError(CodeInvalidLength, "Length must be a positive number")
	}

	out := make([]byte, length)
	reader := hkdf.New(sha256.New, key, nil, []byte(info))
	if _, err := io.ReadFull(reader, out); err != nil {
		return "", Errorf(CodeKeyDerivationFailed, "Key derivation failed: %v", err)
	}
	return hex.EncodeToString(out), nil
}
