// Package domain holds the registration entities shared between the
// conversation flows, the persistence sink and the identity bridge.
package domain

import "strings"

// Role is the identity-facing role tag attached to every profile.
type Role string

const (
	RoleParent  Role = "Parent"
	RoleStudent Role = "Student"
)

// ParentProfile is the assembled parent record handed to the sink and
// the identity API at confirmation time.
type ParentProfile struct {
	TelegramID int64
	FirstName  string
	LastName   string
	Phone      string
	City       string
	Email      string
}

// ChildProfile is the assembled child record. ExodeUserID is non-empty
// when the child was linked to an existing external identity.
type ChildProfile struct {
	FirstName   string
	LastName    string
	DOB         string // DD.MM.YYYY, as captured
	Grade       int
	City        string
	Interests   []string
	ExodeUserID string
	Phone       string
}

// EmailSkipped is the sentinel stored when a user declines to give an
// email. It must never leak into identity payloads.
const EmailSkipped = "Пропущено"

// HasEmail reports whether the profile carries a usable email address.
func (p ParentProfile) HasEmail() bool {
	e := strings.TrimSpace(p.Email)
	return e != "" && e != EmailSkipped
}

// Linked reports whether the child is bound to an existing external identity.
func (c ChildProfile) Linked() bool {
	return c.ExodeUserID != ""
}
