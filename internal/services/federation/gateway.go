package federation

import (
	"context"
	"encoding/json"
	"log"
	"time"

	"github.com/jasperfordesq-ai/nexus-v1-sub029/internal/apierr"
	"github.com/jasperfordesq-ai/nexus-v1-sub029/internal/db/models"
	"github.com/jasperfordesq-ai/nexus-v1-sub029/internal/repository"
	"github.com/jasperfordesq-ai/nexus-v1-sub029/internal/services/audit"
)

// hourBucketLayout is the UTC hour bucket rate-limit windows key on.
const hourBucketLayout = "2006-01-02 15:00:00"

// RateInfo describes the partner's rate window after this request, used to
// populate the X-RateLimit-* response headers.
type RateInfo struct {
	Limit     int
	Remaining int
	Reset     int64 // Unix timestamp when the window resets
}

// RetryAfter returns the seconds until the window resets, at least 1.
func (ri RateInfo) RetryAfter(now time.Time) int64 {
	retry := ri.Reset - now.Unix()
	if retry < 1 {
		retry = 1
	}
	return retry
}

// Gateway runs the authenticator chain for inbound federation requests and
// enforces per-partner rate limits. A fresh request always starts
// unauthenticated; the resulting PartnerAuth is memoized on the request
// context, never in the gateway itself.
type Gateway struct {
	chain            []Authenticator
	partners         repository.PartnerRepository
	sink             audit.Sink
	defaultRateLimit int
	now              func() time.Time
}

// NewGateway wires the three schemes in priority order: HMAC, then JWT,
// then API key.
func NewGateway(partners repository.PartnerRepository, sink audit.Sink, tolerance time.Duration, defaultRateLimit int) *Gateway {
	if defaultRateLimit <= 0 {
		defaultRateLimit = 1000
	}
	return &Gateway{
		chain: []Authenticator{
			NewHMACAuthenticator(partners, tolerance),
			NewJWTAuthenticator(partners),
			NewAPIKeyAuthenticator(partners),
		},
		partners:         partners,
		sink:             sink,
		defaultRateLimit: defaultRateLimit,
		now:              time.Now,
	}
}

// Authenticate runs the chain first-match-wins, then charges the request
// against the partner's hourly window. RateInfo is non-nil whenever a
// partner was identified, including on rate-limit rejection.
func (g *Gateway) Authenticate(ctx context.Context, req *AuthRequest) (*PartnerAuth, *RateInfo, error) {
	var auth *PartnerAuth
	for _, authenticator := range g.chain {
		a, err := authenticator.Authenticate(ctx, req)
		if err != nil {
			return nil, nil, err
		}
		if a != nil {
			auth = a
			break
		}
	}
	if auth == nil {
		return nil, nil, authErr(apierr.MissingAPIKey, "API key required")
	}

	info, err := g.consumeRateSlot(ctx, auth.Partner)
	if err != nil {
		return nil, nil, err
	}
	if info.Remaining < 0 {
		info.Remaining = 0
		return nil, info, authErr(apierr.RateLimitExceeded, "Rate limit exceeded")
	}

	g.recordAccess(auth, req)
	return auth, info, nil
}

func (g *Gateway) consumeRateSlot(ctx context.Context, partner *models.Partner) (*RateInfo, error) {
	now := g.now().UTC()
	bucket := now.Truncate(time.Hour)
	count, err := g.partners.ConsumeRateSlot(ctx, partner.ID, bucket.Format(hourBucketLayout))
	if err != nil {
		return nil, err
	}

	limit := partner.RateLimit
	if limit <= 0 {
		limit = g.defaultRateLimit
	}
	return &RateInfo{
		Limit:     limit,
		Remaining: limit - count,
		Reset:     bucket.Add(time.Hour).Unix(),
	}, nil
}

// recordAccess bumps usage counters and writes the audit trail without
// blocking the request.
func (g *Gateway) recordAccess(auth *PartnerAuth, req *AuthRequest) {
	partnerID := auth.Partner.ID
	at := g.now().UTC()
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := g.partners.TouchUsage(ctx, partnerID, at); err != nil {
			log.Printf("federation: failed to touch partner %d usage: %v", partnerID, err)
		}
	}()
	g.sink.Record(models.AuditEvent{
		Kind:       models.AuditKindFederationRequest,
		TenantID:   auth.Partner.TenantID,
		PlatformID: auth.Partner.PlatformID,
		Method:     req.Method,
		Path:       req.Path,
		Detail:     auth.Method,
	})
}

// HasPermission checks the partner's capability set. No partner means no
// permission; "*" anywhere in the set grants everything. A permission blob
// that fails to decode denies every capability: corrupted grants must
// never widen access.
func HasPermission(auth *PartnerAuth, capability string) bool {
	if auth == nil || auth.Partner == nil {
		return false
	}
	perms, err := decodePermissions(auth.Partner.Permissions)
	if err != nil {
		log.Printf("federation: malformed permissions for partner %s, denying all: %v", auth.Partner.PlatformID, err)
		return false
	}
	for _, p := range perms {
		if p == "*" || p == capability {
			return true
		}
	}
	return false
}

func decodePermissions(raw string) ([]string, error) {
	if raw == "" {
		return nil, nil
	}
	var perms []string
	if err := json.Unmarshal([]byte(raw), &perms); err != nil {
		return nil, err
	}
	return perms, nil
}

func encodePermissions(perms []string) string {
	if perms == nil {
		perms = []string{}
	}
	raw, err := json.Marshal(perms)
	if err != nil {
		return "[]"
	}
	return string(raw)
}

type partnerAuthContextKey struct{}

// WithPartnerAuth memoizes the authenticated partner on the request
// context.
func WithPartnerAuth(ctx context.Context, auth *PartnerAuth) context.Context {
	return context.WithValue(ctx, partnerAuthContextKey{}, auth)
}

// PartnerAuthFromContext retrieves the authenticated partner.
func PartnerAuthFromContext(ctx context.Context) (*PartnerAuth, bool) {
	auth, ok := ctx.Value(partnerAuthContextKey{}).(*PartnerAuth)
	return auth, ok && auth != nil
}
