package roster

import (
	"errors"
	"strings"
)

// MaxNameLength bounds display names, mirroring the original server's
// MAX_NAME_LEN.
const MaxNameLength = 256

// ErrInvalidName reports a name that is empty, too long, or contains a
// forbidden character ('$', ',', or a space) — forbidden because those
// characters would make sender-colon framing and "command$content" parsing
// ambiguous.
var ErrInvalidName = errors.New("roster: invalid name")

// ValidateName trims whitespace from name and checks it against spec.md
// §4.6's conn/rename validation rules: nonempty, within MaxNameLength, and
// free of '$', ',', and spaces.
func ValidateName(name string) (string, error) {
	trimmed := strings.TrimSpace(name)
	if trimmed == "" || len(trimmed) >= MaxNameLength {
		return "", ErrInvalidName
	}
	if strings.ContainsAny(trimmed, "$, ") {
		return "", ErrInvalidName
	}
	return trimmed, nil
}
