package session

import (
	"fmt"
	"regexp"
)

// Session names become directory and socket names, so they stay short and
// must start with a letter or digit.
var nameRegexp = regexp.MustCompile(`^[a-z0-9][a-z0-9_-]{0,31}$`)

// ValidateName checks that name is usable as a session name.
func ValidateName(name string) error {
	if !nameRegexp.MatchString(name) {
		return fmt.Errorf("invalid session name %q: must match %s", name, nameRegexp)
	}
	return nil
}
