package service

import "strings"

// Actor represents the authenticated user performing an action.
type Actor struct {
	ID   uint
	Role string
}

// IsStaff reports whether the actor may see grading internals and act on any submission.
func (a Actor) IsStaff() bool {
	switch strings.ToLower(strings.TrimSpace(a.Role)) {
	case "admin", "teacher":
		return true
	default:
		return false
	}
}
