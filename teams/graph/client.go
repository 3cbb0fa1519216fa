package graph

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/azcore/policy"
	abstractions "github.com/microsoft/kiota-abstractions-go"
	absauth "github.com/microsoft/kiota-abstractions-go/authentication"
	msgraphsdk "github.com/microsoftgraph/msgraph-sdk-go"
)

// DefaultBaseURL is the Microsoft Graph v1.0 endpoint.
const DefaultBaseURL = "https://graph.microsoft.com/v1.0"

// Client issues Graph calls for one credential. Typed calls go through the
// Graph SDK; calls whose result lives in response headers use plain REST.
type Client struct {
	cred    azcore.TokenCredential
	scopes  []string
	baseURL string
	http    *http.Client
	sdk     *msgraphsdk.GraphServiceClient
}

// NewClient binds cred to a Graph endpoint. Empty baseURL selects DefaultBaseURL, empty scopes .default.
func NewClient(cred azcore.TokenCredential, baseURL string, scopes []string) (*Client, error) {
	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if len(scopes) == 0 {
		scopes = DefaultScopes()
	}
	ret := &Client{cred: cred, scopes: scopes, baseURL: baseURL, http: &http.Client{Timeout: 60 * time.Second}}
	adapter, err := msgraphsdk.NewGraphRequestAdapter(&bearerProvider{client: ret})
	if err != nil {
		return nil, err
	}
	// base URL must be set before the service client captures it
	adapter.SetBaseUrl(baseURL)
	ret.sdk = msgraphsdk.NewGraphServiceClient(adapter)
	return ret, nil
}

// BaseURL returns the Graph endpoint the client targets.
func (c *Client) BaseURL() string { return c.baseURL }

// Token returns a bearer token for the client's scopes; credential failures are Unauthorized.
func (c *Client) Token(ctx context.Context) (string, error) {
	if c.cred == nil {
		return "", Unauthorized("token", "no credential configured")
	}
	tok, err := c.cred.GetToken(ctx, policy.TokenRequestOptions{Scopes: c.scopes})
	if err != nil {
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		return "", &Error{Kind: KindUnauthorized, Op: "token", Message: err.Error(), Err: err}
	}
	return tok.Token, nil
}

// bearerProvider authenticates SDK requests with the client's credential.
type bearerProvider struct{ client *Client }

var _ absauth.AuthenticationProvider = (*bearerProvider)(nil)

func (p *bearerProvider) AuthenticateRequest(ctx context.Context, request *abstractions.RequestInformation, _ map[string]interface{}) error {
	token, err := p.client.Token(ctx)
	if err != nil {
		return err
	}
	request.Headers.Add("Authorization", "Bearer "+token)
	return nil
}

func ptr[T any](v T) *T { return &v }

func deref[T any](p *T) T {
	var zero T
	if p == nil {
		return zero
	}
	return *p
}
