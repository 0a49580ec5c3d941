package etherscan

import (
	"errors"
	"strings"
)

// Kind classifies a verification failure.
type Kind int

// Set of failure kinds.
const (
	Unknown Kind = iota
	AlreadyVerified
	Pending
	Failed
	RateLimited
	InvalidAPIKey
	NotFound
)

var kindNames = map[Kind]string{
	Unknown:         "unknown",
	AlreadyVerified: "already verified",
	Pending:         "pending",
	Failed:          "failed",
	RateLimited:     "rate limited",
	InvalidAPIKey:   "invalid api key",
	NotFound:        "not found",
}

// String implements the fmt.Stringer interface.
func (k Kind) String() string {
	if name, exists := kindNames[k]; exists {
		return name
	}
	return "unknown"
}

// Error is returned by the API for a request it did not accept.
type Error struct {
	Kind    Kind
	Message string
}

// Error implements the error interface.
func (e *Error) Error() string {
	return "etherscan: " + e.Kind.String() + ": " + e.Message
}

// IsKind reports if the error is an etherscan error of the specified kind.
func IsKind(err error, kind Kind) bool {
	var e *Error
	if !errors.As(err, &e) {
		return false
	}
	return e.Kind == kind
}

// classify converts the text of a failed response into an error. The API
// only reports failures as text so the match is done on known phrases.
func classify(result string, message string) error {
	text := result
	if text == "" {
		text = message
	}

	return &Error{Kind: kindOf(text), Message: text}
}

func kindOf(text string) Kind {
	lower := strings.ToLower(text)

	switch {
	case strings.Contains(lower, "already verified"):
		return AlreadyVerified
	case strings.Contains(lower, "pending in queue"), strings.Contains(lower, "in progress"):
		return Pending
	case strings.Contains(lower, "rate limit"):
		return RateLimited
	case strings.Contains(lower, "invalid api key"), strings.Contains(lower, "missing/invalid api key"):
		return InvalidAPIKey
	case strings.Contains(lower, "unable to locate contractcode"):
		return NotFound
	case strings.HasPrefix(lower, "fail"):
		return Failed
	}

	return Unknown
}
