package cache

import (
	"errors"
	"fmt"
	"strings"

	"github.com/Sternrassler/gh-api-bridge/pkg/action"
)

// ErrInvalidKey indicates a key that cannot be mapped to a storage location safely.
var ErrInvalidKey = errors.New("invalid cache key")

// Key identifies one cached GitHub object.
type Key struct {
	// Username is the GitHub login (opaque, never a path)
	Username string

	// Action selects the sub-resource (action.Default for the profile)
	Action action.Action
}

// String generates the deterministic storage name for the key.
// Format: username.action
//
// Example:
//
//	torvalds._
//	torvalds.repos
func (k Key) String() string {
	a := k.Action
	if a == "" {
		a = action.Default
	}
	return k.Username + "." + string(a)
}

// Validate rejects keys that would escape the storage root or produce
// ambiguous storage names.
func (k Key) Validate() error {
	if err := validatePart("username", k.Username); err != nil {
		return err
	}
	if k.Action == "" {
		return nil
	}
	return validatePart("action", string(k.Action))
}

func validatePart(field, s string) error {
	switch {
	case s == "":
		return fmt.Errorf("%w: empty %s", ErrInvalidKey, field)
	case s == ".":
		return fmt.Errorf("%w: %s %q", ErrInvalidKey, field, s)
	case strings.Contains(s, ".."):
		return fmt.Errorf("%w: %s %q contains parent reference", ErrInvalidKey, field, s)
	case strings.ContainsAny(s, "/\\\x00"):
		return fmt.Errorf("%w: %s %q contains path separator", ErrInvalidKey, field, s)
	}
	return nil
}
