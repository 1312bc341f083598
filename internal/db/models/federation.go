package models

import (
	"time"

	"github.com/uptrace/bun"
)

// Partner statuses. Anything other than active is rejected at the gateway.
const (
	PartnerStatusActive    = "active"
	PartnerStatusSuspended = "suspended"
	PartnerStatusRevoked   = "revoked"
)

// Partner is an external platform integrating through the federation
// gateway. Only the SHA-256 hash of the API key is stored; the plaintext
// key is shown once at creation. Permissions is the raw JSON array exactly
// as persisted, decoded at check time so a corrupt value can fail closed.
type Partner struct {
	bun.BaseModel `bun:"table:federation_partners,alias:fp"`

	ID                 int64      `bun:"id,pk,autoincrement"`
	PlatformID         string     `bun:"platform_id,notnull,unique"`
	TenantID           int64      `bun:"tenant_id,notnull"` // FK to tenants(id)
	Name               string     `bun:"name,notnull"`
	KeyHash            string     `bun:"key_hash,notnull,unique"`
	Permissions        string     `bun:"permissions,type:jsonb,notnull,default:'[]'"`
	Status             string     `bun:"status,notnull,default:'active'"`
	SigningSecret      string     `bun:"signing_secret"`
	SigningEnabled     bool       `bun:"signing_enabled,notnull,default:false"`
	RateLimit          int        `bun:"rate_limit,notnull,default:1000"` // requests per hour
	HourlyRequestCount int        `bun:"hourly_request_count,notnull,default:0"`
	RateLimitHour      string     `bun:"rate_limit_hour"` // UTC hour bucket, "2006-01-02 15:00:00"
	RequestCount       int64      `bun:"request_count,notnull,default:0"`
	LastUsedAt         *time.Time `bun:"last_used_at"`
	ExpiresAt          *time.Time `bun:"expires_at"`
	CreatedAt          time.Time  `bun:"created_at,notnull,default:current_timestamp"`
	UpdatedAt          time.Time  `bun:"updated_at,notnull,default:current_timestamp"`
}

// IsActive reports whether the partner may authenticate right now.
func (p *Partner) IsActive(now time.Time) bool {
	if p.Status != PartnerStatusActive {
		return false
	}
	if p.ExpiresAt != nil && now.After(*p.ExpiresAt) {
		return false
	}
	return true
}

// AuditEvent is an append-only record of access decisions and federation
// traffic. Writes are fire-and-forget; a failed insert never blocks a
// request.
type AuditEvent struct {
	bun.BaseModel `bun:"table:audit_events,alias:ae"`

	ID         int64     `bun:"id,pk,autoincrement"`
	Kind       string    `bun:"kind,notnull"` // access_denied, federation_request, ...
	ActorID    int64     `bun:"actor_id"`
	TenantID   int64     `bun:"tenant_id"`
	PlatformID string    `bun:"platform_id"`
	Method     string    `bun:"method"`
	Path       string    `bun:"path"`
	Status     int       `bun:"status"`
	Detail     string    `bun:"detail"`
	CreatedAt  time.Time `bun:"created_at,notnull,default:current_timestamp"`
}

// Audit event kinds.
const (
	AuditKindAccessDenied      = "access_denied"
	AuditKindFederationRequest = "federation_request"
	AuditKindTenantChange      = "tenant_change"
	AuditKindSpoofAttempt      = "tenant_spoof_attempt"
)
