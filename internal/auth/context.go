package auth

import "context"

type identityContextKey struct{}

// SetIdentityContext stores the authenticated identity on the context for
// downstream consumers.
func SetIdentityContext(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, identityContextKey{}, id)
}

// GetIdentityFromContext retrieves the authenticated identity from the
// context.
func GetIdentityFromContext(ctx context.Context) (Identity, bool) {
	id, ok := ctx.Value(identityContextKey{}).(Identity)
	return id, ok
}

type effectiveTenantContextKey struct{}

// SetEffectiveTenant stores the tenant the request operates against after
// the spoofing guard has ruled on any override header.
func SetEffectiveTenant(ctx context.Context, tenantID int64) context.Context {
	return context.WithValue(ctx, effectiveTenantContextKey{}, tenantID)
}

// EffectiveTenant returns the tenant the request operates against, falling
// back to the identity's home tenant when the guard never ran.
func EffectiveTenant(ctx context.Context) int64 {
	if tenantID, ok := ctx.Value(effectiveTenantContextKey{}).(int64); ok {
		return tenantID
	}
	if id, ok := GetIdentityFromContext(ctx); ok {
		return id.TenantID
	}
	return 0
}
