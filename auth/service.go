package auth

import (
	"context"
	"fmt"
	"strings"

	"github.com/golang-jwt/jwt/v5"
	"github.com/viant/mcp-protocol/authorization"
)

// Service derives the caller namespace and granted scopes from a JWT carried in context.
// It falls back to DefaultNamespace when no token is present or extraction fails.
type Service struct {
	// DefaultNamespace is returned when no token is present or extractor fails.
	DefaultNamespace string
	// Parse turns a token string into jwt.MapClaims (unverified parse by default).
	Parse func(token string) (jwt.MapClaims, error)
	// Extract returns the namespace from claims; bool indicates success.
	Extract func(jwt.MapClaims) (string, bool)
}

// Token returns the raw bearer token placed in context by MCP auth middleware, or "".
func (s *Service) Token(ctx context.Context) (string, error) {
	tokenValue := ctx.Value(authorization.TokenKey)
	if tokenValue == nil {
		return "", nil
	}
	switch tv := tokenValue.(type) {
	case string:
		return tv, nil
	case *authorization.Token:
		if tv == nil {
			return "", nil
		}
		return tv.Token, nil
	default:
		return "", fmt.Errorf("unsupported token type %T", tokenValue)
	}
}

// Namespace extracts the subject/email from an auth token placed in context by MCP auth middleware.
func (s *Service) Namespace(ctx context.Context) (string, error) {
	if s == nil {
		return "default", nil
	}
	tokenString, err := s.Token(ctx)
	if err != nil {
		return "", err
	}
	if tokenString == "" {
		return s.DefaultNamespace, nil
	}
	if s.Parse != nil && s.Extract != nil {
		if claims, err := s.Parse(tokenString); err == nil {
			if ns, ok := s.Extract(claims); ok && ns != "" {
				return ns, nil
			}
		}
	}
	return s.DefaultNamespace, nil
}

// Scopes returns the permissions granted to token: delegated "scp" (space separated)
// and application "roles". ok is false when the token is opaque or carries neither claim.
func (s *Service) Scopes(token string) (scopes []string, ok bool) {
	if s == nil || s.Parse == nil || token == "" {
		return nil, false
	}
	claims, err := s.Parse(token)
	if err != nil {
		return nil, false
	}
	if scp, found := claims["scp"]; found {
		ok = true
		if v, _ := scp.(string); v != "" {
			scopes = append(scopes, strings.Fields(v)...)
		}
	}
	if roles, found := claims["roles"]; found {
		ok = true
		if list, _ := roles.([]interface{}); len(list) > 0 {
			for _, r := range list {
				if v, _ := r.(string); v != "" {
					scopes = append(scopes, v)
				}
			}
		}
	}
	return scopes, ok
}

// New returns a default Service that extracts "email", "preferred_username" or "sub" without verification.
func New() *Service {
	return &Service{
		DefaultNamespace: "default",
		Parse: func(tokenString string) (jwt.MapClaims, error) {
			var claimMap jwt.MapClaims
			_, _, err := new(jwt.Parser).ParseUnverified(tokenString, &claimMap)
			return claimMap, err
		},
		Extract: func(mc jwt.MapClaims) (string, bool) {
			if email, _ := mc["email"].(string); email != "" {
				return email, true
			}
			if upn, _ := mc["preferred_username"].(string); upn != "" {
				return upn, true
			}
			if sub, _ := mc["sub"].(string); sub != "" {
				return sub, true
			}
			return "", false
		},
	}
}
