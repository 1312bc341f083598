package models

import (
	"strconv"
	"strings"
	"time"

	"github.com/uptrace/bun"
)

// Tenant is a node in the community hierarchy. Path is a materialized
// ancestor chain of the form "/1/5/12/" that always ends with the tenant's
// own ID, so subtree membership is a single prefix match.
type Tenant struct {
	bun.BaseModel `bun:"table:tenants,alias:t"`

	ID               int64      `bun:"id,pk,autoincrement"`
	Name             string     `bun:"name,notnull"`
	Slug             string     `bun:"slug,notnull,unique"`
	Domain           string     `bun:"domain"`
	ParentID         *int64     `bun:"parent_id"` // FK to tenants(id), nil for the master tenant
	Path             string     `bun:"path,notnull"`
	Depth            int        `bun:"depth,notnull,default:0"`
	AllowsSubtenants bool       `bun:"allows_subtenants,notnull,default:false"`
	MaxDepth         int        `bun:"max_depth,notnull,default:0"` // 0 means inherit the platform ceiling
	IsActive         bool       `bun:"is_active,notnull,default:true"`
	CreatedAt        time.Time  `bun:"created_at,notnull,default:current_timestamp"`
	UpdatedAt        time.Time  `bun:"updated_at,notnull,default:current_timestamp"`
	DeletedAt        *time.Time `bun:"deleted_at,soft_delete,nullzero"`
}

// MasterTenantID is the root of the hierarchy. It is seeded by the initial
// migration and can never be moved or deleted.
const MasterTenantID int64 = 1

// IsMaster reports whether this is the root tenant.
func (t *Tenant) IsMaster() bool {
	return t.ID == MasterTenantID
}

// ChildPath returns the path a direct child with the given ID would carry.
func (t *Tenant) ChildPath(childID int64) string {
	return t.Path + strconv.FormatInt(childID, 10) + "/"
}

// IsDescendantOf reports whether t sits strictly below other in the tree.
func (t *Tenant) IsDescendantOf(other *Tenant) bool {
	return t.ID != other.ID && strings.HasPrefix(t.Path, other.Path)
}

// RootPath is the path of a tenant with no parent.
func RootPath(id int64) string {
	return "/" + strconv.FormatInt(id, 10) + "/"
}

// User is a platform member. Role is a display string; the super-admin
// booleans are the authoritative cross-tenant markers.
type User struct {
	bun.BaseModel `bun:"table:users,alias:u"`

	ID                 int64      `bun:"id,pk,autoincrement"`
	TenantID           int64      `bun:"tenant_id,notnull"` // FK to tenants(id)
	Email              string     `bun:"email,notnull,unique"`
	Name               string     `bun:"name"`
	Role               string     `bun:"role,notnull,default:'user'"`
	IsSuperAdmin       bool       `bun:"is_super_admin,notnull,default:false"`
	IsTenantSuperAdmin bool       `bun:"is_tenant_super_admin,notnull,default:false"`
	CreatedAt          time.Time  `bun:"created_at,notnull,default:current_timestamp"`
	UpdatedAt          time.Time  `bun:"updated_at,notnull,default:current_timestamp"`
	DisabledAt         *time.Time `bun:"disabled_at"`
}
