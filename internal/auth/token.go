package auth

import (
	"fmt"
	"strings"

	"github.com/golang-jwt/jwt/v5"
)

// Claims is the bearer-token payload the identity subsystem signs for
// platform users. The trust core only verifies and reads it.
type Claims struct {
	TenantID           int64  `json:"tenant_id"`
	Role               string `json:"role"`
	IsSuperAdmin       bool   `json:"is_super_admin"`
	IsTenantSuperAdmin bool   `json:"is_tenant_super_admin"`
	jwt.RegisteredClaims
}

// ParseIdentityToken verifies an HS256 bearer token and maps its claims to
// an Identity. Any signing method other than HMAC is rejected.
func ParseIdentityToken(signingKey, tokenString string) (Identity, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return []byte(signingKey), nil
	})
	if err != nil {
		return Identity{}, fmt.Errorf("parse identity token: %w", err)
	}
	if !token.Valid {
		return Identity{}, fmt.Errorf("identity token is not valid")
	}

	var userID int64
	if claims.Subject != "" {
		if _, err := fmt.Sscanf(claims.Subject, "%d", &userID); err != nil {
			return Identity{}, fmt.Errorf("identity token subject %q is not a user id", claims.Subject)
		}
	}
	if userID <= 0 {
		return Identity{}, fmt.Errorf("identity token has no subject")
	}

	return Identity{
		UserID:             userID,
		TenantID:           claims.TenantID,
		Role:               claims.Role,
		IsSuperAdmin:       claims.IsSuperAdmin,
		IsTenantSuperAdmin: claims.IsTenantSuperAdmin,
	}, nil
}

// BearerToken extracts the token from an Authorization header value,
// returning "" when the header is absent or not a bearer scheme.
func BearerToken(header string) string {
	if header == "" {
		return ""
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}
