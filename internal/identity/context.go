// Package identity carries the authenticated requester through request context.
package identity

import "context"

// Principal is the authenticated requester attached to an API call.
type Principal struct {
	ID    string
	Email string
	Name  string
}

type ctxKey string

const principalKey ctxKey = "provision.requester"

// WithPrincipal stores the requester in context.
func WithPrincipal(ctx context.Context, p Principal) context.Context {
	return context.WithValue(ctx, principalKey, p)
}

// PrincipalFromContext extracts the requester if present.
func PrincipalFromContext(ctx context.Context) (Principal, bool) {
	val := ctx.Value(principalKey)
	if val == nil {
		return Principal{}, false
	}
	p, ok := val.(Principal)
	return p, ok && p.ID != ""
}
