package api

import (
	"crypto/rand"
	"math/big"
	"regexp"

	"github.com/google/uuid"
)

const (
	callIDLength = 24
	charset      = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

	callIDPrefix = "call_"
)

var (
	projectIDPattern = regexp.MustCompile(`^[a-f0-9]{8}$`)
	callIDPattern    = regexp.MustCompile(`^call_[a-zA-Z0-9]{24}$`)
)

// NewProjectID generates a short project identifier: the first eight hex
// characters of a random UUID. Short IDs keep repository names and
// deployment URLs readable.
func NewProjectID() string {
	return uuid.NewString()[:8]
}

// NewCallID generates a tool call ID with the "call_" prefix followed by
// 24 cryptographically random alphanumeric characters. Used when the
// backend omits IDs on streamed tool call fragments.
func NewCallID() string {
	return callIDPrefix + randomAlphanumeric(callIDLength)
}

// ValidateProjectID checks whether the given string is a valid project ID
// (eight lowercase hex characters).
func ValidateProjectID(id string) bool {
	return projectIDPattern.MatchString(id)
}

// ValidateCallID checks whether the given string is a valid tool call ID
// (matches "call_" + 24 alphanumeric characters).
func ValidateCallID(id string) bool {
	return callIDPattern.MatchString(id)
}

func randomAlphanumeric(n int) string {
	max := big.NewInt(int64(len(charset)))
	b := make([]byte, n)
	for i := range b {
		idx, err := rand.Int(rand.Reader, max)
		if err != nil {
			panic("crypto/rand failed: " + err.Error())
		}
		b[i] = charset[idx.Int64()]
	}
	return string(b)
}
