package gate

import "context"

// Gate answers "may this actor perform this transition". U is the
// user/subject type and must be comparable for the zero-value check.
type Gate[U comparable] struct {
	resolver ProfileResolver[U]
}

// New creates a gate backed by the given profile resolver.
func New[U comparable](resolver ProfileResolver[U]) *Gate[U] {
	return &Gate[U]{resolver: resolver}
}

// Authorize returns ErrUnauthorized for a zero-value user, an unresolvable
// profile, or a profile lacking the capability.
func (g *Gate[U]) Authorize(ctx context.Context, user U, c Capability) error {
	var zero U
	if user == zero {
		return ErrUnauthorized
	}
	profile, err := g.resolver.Resolve(ctx, user)
	if err != nil || profile == nil {
		return ErrUnauthorized
	}
	if !profile.HasCapability(c) {
		return ErrUnauthorized
	}
	return nil
}

// Allows is a convenience wrapper returning bool instead of error.
func (g *Gate[U]) Allows(ctx context.Context, user U, c Capability) bool {
	return g.Authorize(ctx, user, c) == nil
}
