package federation

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/jasperfordesq-ai/nexus-v1-sub029/internal/apierr"
	"github.com/jasperfordesq-ai/nexus-v1-sub029/internal/repository"
)

// jwtBearerPattern matches a bearer value that is structurally a JWT:
// exactly three base64url segments. An opaque API key never matches, which
// is how the JWT and API-key schemes are told apart.
var jwtBearerPattern = regexp.MustCompile(`^[A-Za-z0-9\-_]+\.[A-Za-z0-9\-_]+\.[A-Za-z0-9\-_]+$`)

// PartnerClaims is the payload of a federation JWT. The issuer claim names
// the partner's platform ID so the verification key can be looked up
// before the signature is checked.
type PartnerClaims struct {
	Scope []string `json:"scope"`
	jwt.RegisteredClaims
}

// JWTAuthenticator validates bearer JWTs signed with the partner's signing
// secret (HS256). The token's scope claim narrows the stored permission set
// for the request; a partner cannot mint itself capabilities the admin
// never granted.
type JWTAuthenticator struct {
	partners repository.PartnerRepository
	now      func() time.Time
}

// NewJWTAuthenticator creates the JWT authenticator.
func NewJWTAuthenticator(partners repository.PartnerRepository) *JWTAuthenticator {
	return &JWTAuthenticator{partners: partners, now: time.Now}
}

// Authenticate claims the request only when the bearer value looks like a
// JWT; an opaque bearer string falls through to the API-key scheme.
func (a *JWTAuthenticator) Authenticate(ctx context.Context, req *AuthRequest) (*PartnerAuth, error) {
	tokenString := bearerValue(req.Headers.Get("Authorization"))
	if tokenString == "" || !jwtBearerPattern.MatchString(tokenString) {
		return nil, nil
	}

	var lookupErr error
	claims := &PartnerClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		c, ok := t.Claims.(*PartnerClaims)
		if !ok || c.Issuer == "" {
			return nil, fmt.Errorf("token missing issuer")
		}
		partner, err := a.partners.GetByPlatformID(ctx, c.Issuer)
		if err != nil {
			if !errors.Is(err, repository.ErrNotFound) {
				lookupErr = err
			}
			return nil, fmt.Errorf("unknown issuer")
		}
		if partner.SigningSecret == "" {
			return nil, fmt.Errorf("no signing secret")
		}
		return []byte(partner.SigningSecret), nil
	})
	if err != nil {
		if lookupErr != nil {
			return nil, fmt.Errorf("jwt partner lookup: %w", lookupErr)
		}
		return nil, authErr(apierr.InvalidToken, "Invalid or expired token")
	}
	if !token.Valid {
		return nil, authErr(apierr.InvalidToken, "Invalid or expired token")
	}

	partner, err := a.partners.GetByPlatformID(ctx, claims.Issuer)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, authErr(apierr.InvalidToken, "Token missing partner information")
		}
		return nil, fmt.Errorf("jwt partner lookup: %w", err)
	}
	if !partner.IsActive(a.now()) {
		return nil, authErr(apierr.PartnerInactive, "Partner account is not active")
	}

	// The token's scope narrows the stored permission set for this request.
	if claims.Scope != nil {
		scoped := *partner
		scoped.Permissions = encodePermissions(intersectScope(partner.Permissions, claims.Scope))
		partner = &scoped
	}

	return &PartnerAuth{Partner: partner, Method: MethodJWT}, nil
}

// intersectScope resolves the effective capabilities when a token carries a
// scope claim: only capabilities present in BOTH the stored grant and the
// scope survive. The scope can drop capabilities, never add them, and a
// stored blob that fails to decode yields no capabilities at all. A "*"
// scope entry means "everything granted" and leaves the stored set as is.
func intersectScope(stored string, scope []string) []string {
	granted, err := decodePermissions(stored)
	if err != nil {
		return nil
	}
	wildcard := false
	set := make(map[string]bool, len(granted))
	for _, g := range granted {
		if g == "*" {
			wildcard = true
		}
		set[g] = true
	}
	for _, s := range scope {
		if s == "*" {
			return granted
		}
	}
	effective := make([]string, 0, len(scope))
	for _, s := range scope {
		if wildcard || set[s] {
			effective = append(effective, s)
		}
	}
	return effective
}
