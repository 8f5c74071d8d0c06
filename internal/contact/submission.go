package contact

import (
	"bytes"
	"encoding/json"
	"errors"
	"regexp"
	"strings"
)

// Submission is one contact form post. It is never persisted.
type Submission struct {
	Name    string `json:"name"`
	Email   string `json:"email"`
	Subject string `json:"subject"`
	Message string `json:"message"`
}

// ErrNullSubmission rejects a body of JSON null, which carries no fields to
// validate.
var ErrNullSubmission = errors.New("submission body is null")

// UnmarshalJSON treats a null body as malformed rather than as an empty
// submission.
func (s *Submission) UnmarshalJSON(data []byte) error {
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		return ErrNullSubmission
	}
	type plain Submission
	return json.Unmarshal(data, (*plain)(s))
}

// ValidationError carries the reason shown to the visitor.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string { return e.Reason }

var (
	ErrMissingFields = &ValidationError{Reason: "Missing fields"}
	ErrInvalidEmail  = &ValidationError{Reason: "Invalid email address"}
)

// Loose shape check only: something@something.something, where
// "something" excludes Unicode whitespace, not just ASCII.
const nonSpace = `[^\s\v\p{Z}\x{FEFF}]+`

var emailPattern = regexp.MustCompile(nonSpace + `@` + nonSpace + `\.` + nonSpace)

// ValidEmail reports whether s looks like an email address.
func ValidEmail(s string) bool {
	return emailPattern.MatchString(s)
}

// Validate returns ErrMissingFields or ErrInvalidEmail, or nil when the
// submission may be forwarded to the mail relay.
func (s Submission) Validate() error {
	if s.Name == "" || s.Email == "" || s.Message == "" {
		return ErrMissingFields
	}
	if !ValidEmail(s.Email) {
		return ErrInvalidEmail
	}
	return nil
}

// SanitizedSubject strips CR and LF so the subject cannot inject headers.
func (s Submission) SanitizedSubject() string {
	return strings.NewReplacer("\r", "", "\n", "").Replace(s.Subject)
}

// EmailDomain is the part after the last '@', used for logging instead of
// the full address.
func (s Submission) EmailDomain() string {
	if i := strings.LastIndexByte(s.Email, '@'); i >= 0 {
		return s.Email[i+1:]
	}
	return ""
}
