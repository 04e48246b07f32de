package e2ee

import "fmt"

// Stable numeric error codes shared with clients. Grouped by range; keep
// values in sync with the client implementations.
const (
	// General errors (1000-1099)
	CodeUnknownError     = 1000
	CodeInvalidParameter = 1001
	CodeOperationFailed  = 1002

	// Rate limiting errors (1100-1199)
	CodeRateLimitExceeded = 1100

	// Timeout errors (1200-1299)
	CodeOperationTimeout = 1200

	// String/data validation errors (1300-1399)
	CodeInvalidGroupSize  = 1300
	CodeInvalidLength     = 1301
	CodeEmptyCharacterSet = 1302
	CodeInvalidEncoding   = 1303

	// Remote API errors (1400-1499)
	CodeModuleRequired       = 1400
	CodeMethodNotImplemented = 1401
	CodeAPICallFailed        = 1402
	CodeDuplicateServiceName = 1403

	// Crypto errors (1500-1599)
	CodeZeroLengthIV        = 1500
	CodeZeroLengthKey       = 1501
	CodeZeroLengthData      = 1502
	CodeInvalidAuthTag      = 1503
	CodeHashFailed          = 1504
	CodeEncryptionFailed    = 1505
	CodeDecryptionFailed    = 1506
	CodeKeyDerivationFailed = 1507

	// Server API errors (1600-1699)
	CodeUnknownAPIModule = 1600

	// Room management errors (1700-1799)
	CodeContextRequired    = 1700
	CodeInvalidRoomID      = 1701
	CodeRoomNotFound       = 1702
	CodeConnectionRejected = 1703
	CodeUserNotFound       = 1704
	CodeSocketNotInRoom    = 1705
	CodeUsersNotInRoom     = 1706
)

// Error is a coded error that crosses the wire boundary as
// {message, code}. The message keeps the underlying cause text but never
// carries stack traces.
type Error struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (e *Error) Error() string {
	return e.Message
}

// NewError creates a coded error with a plain message.
func NewError(code int, message string) *Error {
	return &Error{Code: code, Message: message}
}

// Errorf creates a coded error with a formatted message.
func Errorf(code int, format string, args ...interface{}) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// CodeOf extracts the stable code from err, falling back to
// CodeUnknownError for uncoded errors.
func CodeOf(err error) int {
	if e, ok := err.(*Error); ok {
		return e.Code
	}
	return CodeUnknownError
}
