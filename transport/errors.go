package transport

import "strings"

// ErrorCategory classifies bridge failures for logs and status
// reports. The category decides whether retrying is worth anything:
// network errors usually heal, auth and payload errors do not.
type ErrorCategory int

const (
	// ErrCategoryNetwork is a connectivity failure (broker down,
	// timeout, DNS); reconnecting may help.
	ErrCategoryNetwork ErrorCategory = iota
	// ErrCategoryAuth is a credential or authorization failure;
	// reconnecting with the same credentials will not help.
	ErrCategoryAuth
	// ErrCategoryPayload is a malformed or unparseable bridge message;
	// the connection is fine, the publisher is not.
	ErrCategoryPayload
	// ErrCategoryUnknown is anything the keywords below miss.
	ErrCategoryUnknown
)

// String returns the category name.
func (e ErrorCategory) String() string {
	switch e {
	case ErrCategoryNetwork:
		return "network"
	case ErrCategoryAuth:
		return "auth"
	case ErrCategoryPayload:
		return "payload"
	default:
		return "unknown"
	}
}

// Classify buckets an error by message heuristics. The paho client and
// the broker report failures as opaque error strings, so keyword
// matching is what we have.
func Classify(err error) ErrorCategory {
	if err == nil {
		return ErrCategoryUnknown
	}
	msg := strings.ToLower(err.Error())

	// Auth first: its messages often also mention the connection.
	for _, kw := range authKeywords {
		if strings.Contains(msg, kw) {
			return ErrCategoryAuth
		}
	}
	for _, kw := range payloadKeywords {
		if strings.Contains(msg, kw) {
			return ErrCategoryPayload
		}
	}
	for _, kw := range networkKeywords {
		if strings.Contains(msg, kw) {
			return ErrCategoryNetwork
		}
	}
	return ErrCategoryUnknown
}

var authKeywords = []string{
	"not authorized",
	"bad user name or password",
	"bad username or password",
	"identifier rejected",
	"unauthorized",
	"credentials",
}

var payloadKeywords = []string{
	"json",
	"unmarshal",
	"payload",
	"snapshot",
	"unexpected end of",
}

var networkKeywords = []string{
	"connection refused",
	"connection reset",
	"connect timeout",
	"timeout",
	"broken pipe",
	"eof",
	"network",
	"no route",
	"unreachable",
	"dns",
	"lookup",
	"dial",
	"closed",
}
