package e2ee

import (
	"crypto/rand"
	"encoding/hex"
	"strings"
)

// Character sets accepted by RandomString. The base58 variants drop the
// ambiguous 0/O/I/l glyphs.
const (
	CharsBase58          = "123456789ABCDEFGHJKLMNPQRSTUVWXYZabcdefghijkmnopqrstuvwxyz"
	CharsBase58UpperCase = "123456789ABCDEFGHJKLMNPQRSTUVWXYZ"
	CharsBase58LowerCase = "123456789abcdefghijkmnopqrstuvwxyz"
	CharsNumberAndLetter = "0123456789abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ"
	CharsNumberOnly      = "0123456789"
	CharsLetterOnly      = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ"
)

// RandomStringOptions controls the character set and optional grouping of
// RandomString output.
type RandomStringOptions struct {
	Chars          string
	GroupSize      int
	GroupSeparator string
}

const randomBatchSize = 256

// RandomString returns a uniformly distributed random string of the given
// length over the configured character set. Bytes above the largest
// multiple of the set size are rejected before the modulo mapping, so no
// character is favored for set sizes that do not divide 256.
func RandomString(length int, opts RandomStringOptions) (string, error) {
	chars := opts.Chars
	if chars == "" {
		chars = CharsNumberAndLetter
	}
	separator := opts.GroupSeparator
	if separator == "" {
		separator = "-"
	}

	if length <= 0 {
		return "", NewError(CodeInvalidLength, "Length must be a positive number")
	}
	if len(chars) == 0 {
		return "", NewError(CodeEmptyCharacterSet, "Character set cannot be empty")
	}

	charsLength := len(chars)
	maxValidValue := byte(256/charsLength*charsLength - 1)

	var result strings.Builder
	result.Grow(length)

	remaining := length
	for remaining > 0 {
		batch := remaining
		if batch > randomBatchSize {
			batch = randomBatchSize
		}

		// Oversample so a single read usually covers the batch even with
		// rejections.
		buf := make([]byte, batch*2)
		if _, err := rand.Read(buf); err != nil {
			return "", Errorf(CodeOperationFailed, "random source failed: %v", err)
		}

		produced := 0
		for _, b := range buf {
			if produced == batch {
				break
			}
			if b <= maxValidValue {
				result.WriteByte(chars[int(b)%charsLength])
				produced++
			}
		}

		// Single-byte fallback so the loop terminates even under a high
		// rejection rate.
		single := make([]byte, 1)
		for produced < batch {
			if _, err := rand.Read(single); err != nil {
				return "", Errorf(CodeOperationFailed, "random source failed: %v", err)
			}
			if single[0] <= maxValidValue {
				result.WriteByte(chars[int(single[0])%charsLength])
				produced++
			}
		}

		remaining -= batch
	}

	out := result.String()
	if opts.GroupSize > 0 {
		return AddSeparator(out, opts.GroupSize, separator)
	}
	return out, nil
}

// AddSeparator inserts separator every groupSize characters.
func AddSeparator(s string, groupSize int, separator string) (string, error) {
	if s == "" {
		return s, nil
	}
	if groupSize <= 0 {
		return "", NewError(CodeInvalidGroupSize, "Group size must be a positive number")
	}
	segments := make([]string, 0, (len(s)+groupSize-1)/groupSize)
	for i := 0; i < len(s); i += groupSize {
		end := i + groupSize
		if end > len(s) {
			end = len(s)
		}
		segments = append(segments, s[i:end])
	}
	return strings.Join(segments, separator), nil
}

// GenerateEncryptionKey returns a fresh 256-bit key as 64 hex characters.
func GenerateEncryptionKey() (string, error) {
	key := make([]byte, 32)
	if _, err := rand.Read(key); err != nil {
		return "", Errorf(CodeOperationFailed, "random source failed: %v", err)
	}
	return hex.EncodeToString(key), nil
}

// GenerateRoomID returns a room id of two 5-character groups joined by "-",
// drawn from the uppercase ambiguity-reduced alphabet.
func GenerateRoomID() (string, error) {
	return RandomString(10, RandomStringOptions{
		Chars:          CharsBase58UpperCase,
		GroupSize:      5,
		GroupSeparator: "-",
	})
}

// GenerateUserID returns a 16-character alphanumeric token, a literal "--"
// separator, and a 6-digit verification code.
func GenerateUserID() (string, error) {
	verifyCode, err := RandomString(6, RandomStringOptions{Chars: CharsNumberOnly})
	if err != nil {
		return "", err
	}
	userID, err := RandomString(16, RandomStringOptions{Chars: CharsNumberAndLetter})
	if err != nil {
		return "", err
	}
	return userID + "--" + verifyCode, nil
}
