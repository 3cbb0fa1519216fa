package graph

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/azcore/policy"
	oaauth "github.com/viant/mcp-teams/auth"
)

// StaticCredential serves a bearer token obtained by the host platform.
// It never refreshes: an expired token surfaces as Unauthorized from Graph.
type StaticCredential struct {
	Token     string
	ExpiresOn time.Time
}

func (c *StaticCredential) GetToken(_ context.Context, _ policy.TokenRequestOptions) (azcore.AccessToken, error) {
	token := strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(c.Token), "Bearer "))
	if token == "" {
		return azcore.AccessToken{}, errors.New("no access token configured")
	}
	expires := c.ExpiresOn
	if expires.IsZero() {
		expires = time.Now().Add(time.Hour)
	}
	return azcore.AccessToken{Token: token, ExpiresOn: expires}, nil
}

// ContextCredential serves the bearer token that arrived with the MCP request
// (placed in context by the server's OAuth middleware), falling back to Fallback.
type ContextCredential struct {
	Auth     *oaauth.Service
	Fallback azcore.TokenCredential
}

func (c *ContextCredential) GetToken(ctx context.Context, opts policy.TokenRequestOptions) (azcore.AccessToken, error) {
	if c.Auth != nil {
		token, err := c.Auth.Token(ctx)
		if err != nil {
			return azcore.AccessToken{}, err
		}
		if token != "" {
			return (&StaticCredential{Token: token}).GetToken(ctx, opts)
		}
	}
	if c.Fallback != nil {
		return c.Fallback.GetToken(ctx, opts)
	}
	return azcore.AccessToken{}, errors.New("no bearer token in request context")
}
