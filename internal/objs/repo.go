// Package objs defines the typed domain entities shared by every bodhi
// service: repository identifiers, aliases, hub files, download requests,
// auth contexts, and the role/scope lattices used for authorization.
package objs

import (
	"fmt"
	"regexp"
	"strings"
)

// segmentPattern matches a single Repo segment (the user or name half of
// "user/name"). Hugging Face repo segments are restricted to this charset.
var segmentPattern = regexp.MustCompile(`^[A-Za-z0-9_.-]+$`)

// Repo is a Hugging Face style repository identifier, (user, name).
// It renders as "user/name" and maps to the on-disk folder
// "models--{user}--{name}".
type Repo struct {
	user string
	name string
}

// NewRepo validates both segments and constructs a Repo. All construction
// paths — direct calls, JSON/YAML unmarshaling, CLI parsing — funnel
// through this constructor so the round-trip invariant in the testable
// properties holds: ParseRepo(r.String()) == r.
func NewRepo(user, name string) (Repo, error) {
	if !segmentPattern.MatchString(user) {
		return Repo{}, fmt.Errorf("%w: invalid repo user segment %q", ErrBadRequest, user)
	}
	if !segmentPattern.MatchString(name) {
		return Repo{}, fmt.Errorf("%w: invalid repo name segment %q", ErrBadRequest, name)
	}
	return Repo{user: user, name: name}, nil
}

// ParseRepo splits "user/name" and validates both halves.
func ParseRepo(s string) (Repo, error) {
	parts := strings.SplitN(s, "/", 2)
	if len(parts) != 2 {
		return Repo{}, fmt.Errorf("%w: repo %q must be of the form user/name", ErrBadRequest, s)
	}
	return NewRepo(parts[0], parts[1])
}

// User returns the repo owner segment.
func (r Repo) User() string { return r.user }

// Name returns the repo name segment.
func (r Repo) Name() string { return r.name }

// String renders the canonical "user/name" form.
func (r Repo) String() string {
	return r.user + "/" + r.name
}

// FolderName is the on-disk directory name for this repo under the hub
// cache root, e.g. "models--TheBloke--TinyLlama-1.1B-Chat-v0.3-GGUF".
func (r Repo) FolderName() string {
	return "models--" + r.user + "--" + r.name
}

// MarshalText implements encoding.TextMarshaler so Repo round-trips
// through JSON, YAML, and query-string binding uniformly.
func (r Repo) MarshalText() ([]byte, error) {
	return []byte(r.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler, routing through the
// same validation as NewRepo/ParseRepo.
func (r *Repo) UnmarshalText(text []byte) error {
	parsed, err := ParseRepo(string(text))
	if err != nil {
		return err
	}
	*r = parsed
	return nil
}

// IsZero reports whether r is the unset Repo value.
func (r Repo) IsZero() bool {
	return r.user == "" && r.name == ""
}
