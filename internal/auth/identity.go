// Package auth carries the per-request identity model: the claims supplied
// by the identity subsystem, the closed admin-standing enum derived from
// them, and the context plumbing used by middleware and handlers.
package auth

// AdminStanding is the closed set of administrative standings a user can
// hold. Cross-tenant capability is decided from this enum in exactly one
// place (StandingOf) so a display role string can never widen access.
type AdminStanding int

const (
	// StandingNone is an ordinary member with no administrative rights.
	StandingNone AdminStanding = iota
	// StandingTenantAdmin administers a single tenant. Never cross-tenant.
	StandingTenantAdmin
	// StandingTenantSuperAdmin administers a tenant subtree.
	StandingTenantSuperAdmin
	// StandingPlatformSuperAdmin administers the whole platform.
	StandingPlatformSuperAdmin
)

// String returns the standing name for logs.
func (s AdminStanding) String() string {
	switch s {
	case StandingTenantAdmin:
		return "tenant_admin"
	case StandingTenantSuperAdmin:
		return "tenant_super_admin"
	case StandingPlatformSuperAdmin:
		return "platform_super_admin"
	default:
		return "none"
	}
}

// CrossTenant reports whether the standing permits acting outside the home
// tenant. Only the two super-admin standings qualify.
func (s AdminStanding) CrossTenant() bool {
	return s == StandingTenantSuperAdmin || s == StandingPlatformSuperAdmin
}

// Identity is the set of authenticated claims the identity subsystem
// supplies for a request. The trust core consumes these; it never issues
// or refreshes them.
type Identity struct {
	// UserID is the authenticated user, 0 when unauthenticated.
	UserID int64
	// TenantID is the user's home tenant from the token.
	TenantID int64
	// Role is the display role string (user, admin, tenant_admin,
	// super_admin). Display only: see StandingOf.
	Role string
	// IsSuperAdmin marks a platform-wide super admin.
	IsSuperAdmin bool
	// IsTenantSuperAdmin marks a super admin scoped to a tenant subtree.
	IsTenantSuperAdmin bool
}

// Authenticated reports whether the identity carries a user.
func (id Identity) Authenticated() bool {
	return id.UserID > 0
}

// StandingOf derives the admin standing from raw claims. The role string
// grants standing only for the exact value "super_admin"; "admin" and
// "tenant_admin" deliberately map to non-cross-tenant standings. This is
// the single place that rule lives.
func StandingOf(id Identity) AdminStanding {
	switch {
	case id.IsSuperAdmin:
		return StandingPlatformSuperAdmin
	case id.IsTenantSuperAdmin:
		return StandingTenantSuperAdmin
	case id.Role == "super_admin":
		return StandingPlatformSuperAdmin
	case id.Role == "admin" || id.Role == "tenant_admin":
		return StandingTenantAdmin
	default:
		return StandingNone
	}
}

// IsSuperAdminStanding reports whether the identity's claims grant
// cross-tenant capability. This is the predicate the spoofing guard and the
// access resolver both build on.
func (id Identity) IsSuperAdminStanding() bool {
	return StandingOf(id).CrossTenant()
}
