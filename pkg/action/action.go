// Package action defines the set of GitHub user sub-resources the bridge
// knows how to serve.
package action

import (
	"fmt"
	"sort"
)

// Action selects a sub-resource of a GitHub user.
type Action string

const (
	// Default is the sentinel for the user profile itself (GET /users/{name}).
	Default Action = "_"

	// Repos selects the user's public repositories (GET /users/{name}/repos).
	Repos Action = "repos"
)

// ErrUnknown is returned by Set.Parse for actions outside the set.
type ErrUnknown struct {
	Action string
}

// Error implements the error interface.
func (e *ErrUnknown) Error() string {
	return fmt.Sprintf("Invalid action %q", e.Action)
}

// Path returns the sub-path appended to the user endpoint.
// The default action maps to the user endpoint itself.
func (a Action) Path() string {
	if a == Default || a == "" {
		return ""
	}
	return "/" + string(a)
}

// String returns the action as used in cache keys and query strings.
func (a Action) String() string {
	return string(a)
}

// Set is a closed set of recognized actions.
// The zero value recognizes nothing; use DefaultSet or NewSet.
type Set struct {
	actions map[Action]struct{}
}

// NewSet creates a set recognizing the given actions.
func NewSet(actions ...Action) Set {
	s := Set{actions: make(map[Action]struct{}, len(actions))}
	for _, a := range actions {
		s.actions[a] = struct{}{}
	}
	return s
}

// DefaultSet returns the actions supported by the GitHub users API bridge.
func DefaultSet() Set {
	return NewSet(Default, Repos)
}

// With returns a copy of the set extended with more actions.
func (s Set) With(actions ...Action) Set {
	all := append(s.List(), actions...)
	return NewSet(all...)
}

// Contains reports whether a is recognized.
func (s Set) Contains(a Action) bool {
	_, ok := s.actions[a]
	return ok
}

// Parse validates raw against the set. An empty string selects Default.
func (s Set) Parse(raw string) (Action, error) {
	if raw == "" {
		raw = string(Default)
	}
	a := Action(raw)
	if !s.Contains(a) {
		return "", &ErrUnknown{Action: raw}
	}
	return a, nil
}

// List returns the recognized actions in sorted order.
func (s Set) List() []Action {
	out := make([]Action, 0, len(s.actions))
	for a := range s.actions {
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
