// Package security validates identifiers that flow from the module schema into
// URLs, HTML ids and stored row keys.
package security

import (
	"fmt"
	"regexp"
	"strings"
)

// ValidIdentifierRegex matches valid module and field ids.
// Only allows lowercase letters, digits, and underscores, starting with a letter or underscore
var ValidIdentifierRegex = regexp.MustCompile(`^[a-z_][a-z0-9_]*$`)

// reservedParams are query parameter names the transport uses itself, so no
// field may be named after them.
var reservedParams = map[string]bool{
	"page":      true,
	"limit":     true,
	"search":    true,
	"sortby":    true,
	"sortorder": true,
}

// ValidateIdentifier checks if a string is a usable module or field id
func ValidateIdentifier(name string) error {
	if name == "" {
		return fmt.Errorf("identifier cannot be empty")
	}
	if len(name) > 63 {
		return fmt.Errorf("identifier too long (max 63 characters)")
	}
	if !ValidIdentifierRegex.MatchString(name) {
		return fmt.Errorf("invalid identifier %q: must contain only lowercase letters, numbers, and underscores, starting with a letter or underscore", name)
	}
	return nil
}

// ValidateFieldID checks a field id, which additionally must not collide with
// a transport query parameter.
func ValidateFieldID(name string) error {
	if err := ValidateIdentifier(name); err != nil {
		return err
	}
	if IsReservedParam(name) {
		return fmt.Errorf("'%s' is a reserved query parameter", name)
	}
	return nil
}

// IsReservedParam reports whether a query parameter name belongs to the
// transport rather than to a filter.
func IsReservedParam(name string) bool {
	return reservedParams[strings.ToLower(name)]
}
