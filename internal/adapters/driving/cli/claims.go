package cli

import (
	"strings"

	jwtlib "github.com/golang-jwt/jwt/v5"
)

// tokenClaims is the non-secret part of an access token worth showing.
type tokenClaims struct {
	Audience string
	AppID    string
	Roles    []string
}

// readClaims decodes the access token payload without verifying it. The
// signature is the identity provider's concern; this is only for display.
// Opaque (non-JWT) tokens, which ADFS may issue, yield ok=false.
func readClaims(rawToken string) (tokenClaims, bool) {
	token, _, err := jwtlib.NewParser().ParseUnverified(rawToken, jwtlib.MapClaims{})
	if err != nil {
		return tokenClaims{}, false
	}
	claims, ok := token.Claims.(jwtlib.MapClaims)
	if !ok {
		return tokenClaims{}, false
	}

	var out tokenClaims
	if aud, err := claims.GetAudience(); err == nil {
		out.Audience = strings.Join(aud, ",")
	}
	for _, key := range []string{"appid", "azp", "client_id"} {
		if v, ok := claims[key].(string); ok && v != "" {
			out.AppID = v
			break
		}
	}
	if roles, ok := claims["roles"].([]any); ok {
		for _, r := range roles {
			if s, ok := r.(string); ok {
				out.Roles = append(out.Roles, s)
			}
		}
	}
	return out, true
}
