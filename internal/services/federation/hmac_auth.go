package federation

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jasperfordesq-ai/nexus-v1-sub029/internal/apierr"
	"github.com/jasperfordesq-ai/nexus-v1-sub029/internal/repository"
)

// HMACAuthenticator proves possession of the partner's shared signing
// secret. It is tried before the bearer schemes because it is the strongest
// guarantee: the signature covers method, path, timestamp and body.
type HMACAuthenticator struct {
	partners  repository.PartnerRepository
	tolerance time.Duration
	now       func() time.Time
}

// NewHMACAuthenticator creates the HMAC authenticator. tolerance is the
// replay window; zero means the 300s default.
func NewHMACAuthenticator(partners repository.PartnerRepository, tolerance time.Duration) *HMACAuthenticator {
	return &HMACAuthenticator{
		partners:  partners,
		tolerance: tolerance,
		now:       time.Now,
	}
}

// Authenticate verifies the three signing headers. All three must be
// present for this scheme to claim the request.
func (a *HMACAuthenticator) Authenticate(ctx context.Context, req *AuthRequest) (*PartnerAuth, error) {
	signature := req.Headers.Get(HeaderSignature)
	timestamp := req.Headers.Get(HeaderTimestamp)
	platformID := req.Headers.Get(HeaderPlatformID)
	if signature == "" || timestamp == "" || platformID == "" {
		return nil, nil
	}

	if !ValidateTimestamp(timestamp, a.tolerance, a.now()) {
		return nil, authErr(apierr.TimestampInvalid, "Request timestamp expired or invalid")
	}

	partner, err := a.partners.GetByPlatformID(ctx, platformID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, authErr(apierr.PlatformNotFound, "Unknown platform")
		}
		return nil, fmt.Errorf("hmac partner lookup: %w", err)
	}

	if !partner.IsActive(a.now()) {
		return nil, authErr(apierr.PartnerInactive, "Partner account is not active")
	}
	if partner.SigningSecret == "" {
		return nil, authErr(apierr.SigningNotConfigured, "HMAC signing not configured for this platform")
	}

	if !verifySignature(partner.SigningSecret, req.Method, req.Path, timestamp, string(req.Body), signature) {
		return nil, authErr(apierr.SignatureInvalid, "Invalid request signature")
	}

	return &PartnerAuth{Partner: partner, Method: MethodHMAC}, nil
}
