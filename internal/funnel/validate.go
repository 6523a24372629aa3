package funnel

import (
	"strings"

	"github.com/rotisserie/eris"
)

var (
	ErrInvalidEmail   = eris.New("valid email is required")
	ErrInvalidContact = eris.New("contact must be an @handle or an email address")
)

// ValidateContact accepts a social handle ("@" followed by at least one
// character) or an email address whose domain has a dot.
func ValidateContact(s string) error {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "@") {
		if len(s) > 1 && !strings.ContainsAny(s[1:], " @") {
			return nil
		}
		return ErrInvalidContact
	}
	if !isEmail(s) {
		return ErrInvalidContact
	}
	return nil
}

func isEmail(s string) bool {
	local, domain, ok := strings.Cut(s, "@")
	if !ok || local == "" || domain == "" || strings.ContainsAny(s, " \t") {
		return false
	}
	if strings.Contains(domain, "@") || !strings.Contains(domain, ".") {
		return false
	}
	for _, label := range strings.Split(domain, ".") {
		if label == "" {
			return false
		}
	}
	return true
}

// Submission is a waitlist form post.
type Submission struct {
	Email     string `json:"email"`
	Style     string `json:"style"`
	Contact   string `json:"contact,omitempty"`
	Timestamp string `json:"timestamp,omitempty"`
}

// Normalize trims input and maps an unknown style to DefaultStyle.
func (s Submission) Normalize() Submission {
	s.Email = strings.TrimSpace(s.Email)
	s.Contact = strings.TrimSpace(s.Contact)
	s.Style = NormalizeStyle(strings.TrimSpace(s.Style))
	return s
}

// Validate rejects the submission when the email has no "@" or an optional
// contact is malformed.
func (s Submission) Validate() error {
	if s.Email == "" || !strings.Contains(s.Email, "@") {
		return ErrInvalidEmail
	}
	if s.Contact != "" {
		if err := ValidateContact(s.Contact); err != nil {
			return err
		}
	}
	return nil
}
