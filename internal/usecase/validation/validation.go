// Package validation collects per-field input problems so handlers can report them together.
package validation

import (
	"net/mail"
	"regexp"
	"strings"
)

// MsgRequired is reported for missing or blank fields.
const MsgRequired = "Field required"

var (
	digitsOnly = regexp.MustCompile(`^\d+$`)
	hasDigit   = regexp.MustCompile(`\d`)
)

// FieldError describes a single invalid field.
type FieldError struct {
	Field   string `json:"fields"`
	Message string `json:"message"`
}

// Errors is a list of invalid fields. A non-empty Errors is an error.
type Errors []FieldError

func (e Errors) Error() string {
	var b strings.Builder
	b.WriteString("invalid input:")
	for _, fe := range e {
		b.WriteString(" ")
		b.WriteString(fe.Field)
		b.WriteString(": ")
		b.WriteString(fe.Message)
		b.WriteString(";")
	}
	return b.String()
}

// Add records a problem for field.
func (e *Errors) Add(field, message string) {
	*e = append(*e, FieldError{Field: field, Message: message})
}

// Required records field when value is blank and reports whether it was present.
func (e *Errors) Required(field, value string) bool {
	if strings.TrimSpace(value) == "" {
		e.Add(field, MsgRequired)
		return false
	}
	return true
}

// Err returns nil when nothing was recorded.
func (e Errors) Err() error {
	if len(e) == 0 {
		return nil
	}
	return e
}

// IsDigits reports whether s is a non-empty run of ASCII digits.
func IsDigits(s string) bool {
	return digitsOnly.MatchString(s)
}

// ContainsDigit reports whether s has any digit.
func ContainsDigit(s string) bool {
	return hasDigit.MatchString(s)
}

// IsEmail reports whether s is a bare RFC 5322 address such as "jane@example.com".
func IsEmail(s string) bool {
	addr, err := mail.ParseAddress(s)
	if err != nil {
		return false
	}
	return addr.Address == s && addr.Name == ""
}
