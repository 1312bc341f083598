package federation

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jasperfordesq-ai/nexus-v1-sub029/internal/apierr"
	"github.com/jasperfordesq-ai/nexus-v1-sub029/internal/repository"
)

// APIKeyAuthenticator is the fallback scheme: a static key presented as a
// bearer token or in the X-API-Key header. Keys are never read from query
// parameters: URLs end up in server logs, browser history, and Referer
// headers, which makes them unusable for secrets. That restriction is
// permanent, not a default.
type APIKeyAuthenticator struct {
	partners repository.PartnerRepository
	now      func() time.Time
}

// NewAPIKeyAuthenticator creates the API-key authenticator.
func NewAPIKeyAuthenticator(partners repository.PartnerRepository) *APIKeyAuthenticator {
	return &APIKeyAuthenticator{partners: partners, now: time.Now}
}

// Authenticate validates the presented key against its stored hash. A key
// whose partner requires request signing is rejected: possession of the
// key alone is no longer sufficient once HMAC is enabled. No key at all
// means the scheme passes; the gateway reports missing credentials when
// the whole chain comes up empty.
func (a *APIKeyAuthenticator) Authenticate(ctx context.Context, req *AuthRequest) (*PartnerAuth, error) {
	apiKey := extractAPIKey(req)
	if apiKey == "" {
		return nil, nil
	}

	partner, err := a.partners.GetByKeyHash(ctx, HashAPIKey(apiKey))
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, authErr(apierr.InvalidAPIKey, "Invalid API key")
		}
		return nil, fmt.Errorf("api key lookup: %w", err)
	}

	if !partner.IsActive(a.now()) {
		return nil, authErr(apierr.PartnerInactive, "Partner account is not active")
	}
	if partner.SigningEnabled {
		return nil, authErr(apierr.HMACRequired, "HMAC signing required for this API key")
	}

	return &PartnerAuth{Partner: partner, Method: MethodAPIKey}, nil
}

// extractAPIKey pulls the key from the request headers, preferring the
// Authorization bearer value over X-API-Key.
func extractAPIKey(req *AuthRequest) string {
	if key := bearerValue(req.Headers.Get("Authorization")); key != "" {
		return key
	}
	return strings.TrimSpace(req.Headers.Get(HeaderAPIKey))
}

// bearerValue returns the token from a bearer Authorization header value,
// matching the scheme case-insensitively.
func bearerValue(header string) string {
	if header == "" {
		return ""
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(strings.TrimSpace(parts[0]), "Bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}
