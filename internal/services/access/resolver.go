package access

import "context"

// Resolver is the request-scoped view over the Service. It memoizes the
// decision so every check within one request reuses the same verdict, and
// it is never shared across requests: the middleware constructs a fresh
// Resolver per request and stores it on the context.
type Resolver struct {
	svc    *Service
	userID int64

	decision *Decision
}

// NewResolver creates a resolver for the given user. userID 0 means
// unauthenticated.
func NewResolver(svc *Service, userID int64) *Resolver {
	return &Resolver{svc: svc, userID: userID}
}

// GetAccess returns the memoized decision, computing it on first call.
func (r *Resolver) GetAccess(ctx context.Context) Decision {
	if r.decision == nil {
		dec, err := r.svc.Evaluate(ctx, r.userID)
		if err != nil {
			// A store failure denies for this request but is not memoized,
			// so a retry within the same request may still succeed.
			return dec
		}
		r.decision = &dec
	}
	return *r.decision
}

// Reset clears the memoized decision, forcing a recompute on the next
// call. Only test harnesses need this.
func (r *Resolver) Reset() {
	r.decision = nil
}

// Check reports whether access is granted.
func (r *Resolver) Check(ctx context.Context) bool {
	return r.GetAccess(ctx).Granted
}

// CanAccessTenant reports whether the caller may touch the target tenant.
func (r *Resolver) CanAccessTenant(ctx context.Context, targetID int64) bool {
	return r.svc.CanAccessTenant(ctx, r.GetAccess(ctx), targetID)
}

// ScopeClause renders the caller's scope as a SQL predicate over the given
// table alias.
func (r *Resolver) ScopeClause(ctx context.Context, alias string) ScopeClause {
	return r.GetAccess(ctx).Clause(alias)
}

type resolverContextKey struct{}

// WithResolver stores the request's resolver on the context.
func WithResolver(ctx context.Context, r *Resolver) context.Context {
	return context.WithValue(ctx, resolverContextKey{}, r)
}

// ResolverFromContext retrieves the request's resolver.
func ResolverFromContext(ctx context.Context) (*Resolver, bool) {
	r, ok := ctx.Value(resolverContextKey{}).(*Resolver)
	return r, ok
}
