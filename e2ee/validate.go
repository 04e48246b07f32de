package e2ee

import "regexp"

var (
	// 64 hex characters: a 256-bit key.
	keyPattern = regexp.MustCompile(`^[a-fA-F0-9]{64}$`)

	// Two 5-character alphanumeric groups joined by one "-", e.g. ABC12-DEF34.
	roomIDPattern = regexp.MustCompile(`^[a-zA-Z0-9]{5}-[a-zA-Z0-9]{5}$`)
)

// IsValidKey reports whether key is a well-formed hex-encoded 256-bit key.
func IsValidKey(key string) bool {
	return keyPattern.MatchString(key)
}

// IsValidRoomID reports whether roomID matches the 5-5 grouped id format.
func IsValidRoomID(roomID string) bool {
	return roomIDPattern.MatchString(roomID)
}
