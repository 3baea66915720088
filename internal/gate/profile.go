package gate

import "context"

// Profile represents a role with a set of capabilities.
type Profile interface {
	Name() string
	HasCapability(c Capability) bool
	Capabilities() []Capability
}

// ProfileResolver resolves a user to their profile.
// U is the user type (e.g. uint for userID, *User for a full struct).
type ProfileResolver[U any] interface {
	Resolve(ctx context.Context, user U) (Profile, error)
}

// StaticProfile is a simple in-memory profile implementation.
type StaticProfile struct {
	name string
	caps map[Capability]bool
}

// NewStaticProfile creates a profile with the given capabilities.
func NewStaticProfile(name string, caps ...Capability) *StaticProfile {
	p := &StaticProfile{name: name, caps: make(map[Capability]bool)}
	for _, c := range caps {
		p.caps[c] = true
	}
	return p
}

func (p *StaticProfile) Name() string { return p.name }

// Capabilities returns all capabilities in this profile.
func (p *StaticProfile) Capabilities() []Capability {
	out := make([]Capability, 0, len(p.caps))
	for c := range p.caps {
		out = append(out, c)
	}
	return out
}

// HasCapability checks against the profile, with wildcard matching.
func (p *StaticProfile) HasCapability(requested Capability) bool {
	for c := range p.caps {
		if c.Matches(requested) {
			return true
		}
	}
	return false
}

// StaticResolver is a simple in-memory resolver, useful for tests and
// static configuration.
type StaticResolver[U comparable] struct {
	profiles map[U]Profile
}

// NewStaticResolver creates a resolver with predefined mappings.
func NewStaticResolver[U comparable]() *StaticResolver[U] {
	return &StaticResolver[U]{profiles: make(map[U]Profile)}
}

// Set assigns a profile to a user.
func (r *StaticResolver[U]) Set(user U, profile Profile) {
	r.profiles[user] = profile
}

// Resolve returns the profile for the given user, or nil when unknown.
func (r *StaticResolver[U]) Resolve(_ context.Context, user U) (Profile, error) {
	if p, ok := r.profiles[user]; ok {
		return p, nil
	}
	return nil, nil
}
