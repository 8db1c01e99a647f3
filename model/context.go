// model/context.go
package model

import "context"

// RequestAuth is the closed set of authentication facts attached to a request
// context: the resolved identity, the raw bearer credential (logout needs it
// to revoke), and a request-scoped correlation id. Nothing else rides along.
type RequestAuth struct {
	Identity      Identity
	RawToken      string
	CorrelationID string
}

type requestAuthKey struct{}

func WithRequestAuth(ctx context.Context, auth RequestAuth) context.Context {
	return context.WithValue(ctx, requestAuthKey{}, auth)
}

func RequestAuthFromContext(ctx context.Context) (RequestAuth, bool) {
	auth, ok := ctx.Value(requestAuthKey{}).(RequestAuth)
	return auth, ok
}

// ActorFromContext returns the authenticated subject id, or "" for
// unauthenticated paths such as registration.
func ActorFromContext(ctx context.Context) string {
	auth, ok := RequestAuthFromContext(ctx)
	if !ok {
		return ""
	}
	return auth.Identity.ID
}
