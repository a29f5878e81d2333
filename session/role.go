/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package session

import (
	"fmt"
	"strings"
)

// Role is one of the two fixed participant slots of a session.
type Role int

const (
	// English is the participant learning the target script.
	English Role = iota
	// Chinese is the participant learning English.
	Chinese
)

// Roles lists both roles in slot order.
var Roles = [2]Role{English, Chinese}

// ParseRole maps a locale identifier to a role by prefix.
func ParseRole(locale string) (Role, error) {
	switch {
	case strings.HasPrefix(locale, "en"):
		return English, nil
	case strings.HasPrefix(locale, "zh"):
		return Chinese, nil
	default:
		return 0, fmt.Errorf("%w: %s", ErrUnsupportedLocale, locale)
	}
}

// Other returns the peer role.
func (r Role) Other() Role {
	return 1 - r
}

func (r Role) String() string {
	switch r {
	case English:
		return "en"
	case Chinese:
		return "zh"
	default:
		return fmt.Sprintf("Role(%d)", int(r))
	}
}
