package models

import "strings"

func WithUsername(username string) UserOption {
	return func(u *User) { u.Username = username }
}

// WithFullName sets the full name; an empty value clears it.
func WithFullName(name *string) UserOption {
	return func(u *User) {
		if name == nil {
			return
		}
		trimmed := strings.TrimSpace(*name)
		if trimmed == "" {
			u.FullName = nil
			return
		}
		u.FullName = &trimmed
	}
}
