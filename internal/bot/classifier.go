package bot

import (
	"errors"
	"fmt"
	"strings"
)

// ResultError carries a numeric GC/Steam result code alongside a message,
// for errors a Classifier needs to inspect by code rather than substring.
type ResultError struct {
	Code    int
	Message string
}

func (e *ResultError) Error() string {
	return fmt.Sprintf("result %d: %s", e.Code, e.Message)
}

// Classifier decides whether a login error is retryable. It is exposed as
// a configurable predicate rather than hard-coded string matching (§9
// DESIGN NOTES: "known fragility inherited from the upstream library").
type Classifier func(err error) bool

// defaultRetryableSubstrings are error-message fragments the upstream
// client library is known to produce for transient conditions.
var defaultRetryableSubstrings = []string{
	"Proxy connection timed out",
	"LogonSessionReplaced",
	"ServiceUnavailable",
	"ConnectFailed",
	"Timeout",
}

// defaultRetryableCodes are numeric result codes treated as transient.
var defaultRetryableCodes = map[int]bool{
	84: true,
	85: true,
	86: true,
	87: true,
}

// DefaultClassifier implements the retryable-error heuristic from §4.3: a
// login error is retryable if it carries one of a known set of numeric
// result codes, or its message contains one of a known set of substrings.
func DefaultClassifier(err error) bool {
	if err == nil {
		return false
	}

	var re *ResultError
	if errors.As(err, &re) && defaultRetryableCodes[re.Code] {
		return true
	}

	msg := err.Error()
	for _, s := range defaultRetryableSubstrings {
		if strings.Contains(msg, s) {
			return true
		}
	}
	return false
}
