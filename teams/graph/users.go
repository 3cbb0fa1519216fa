package graph

import (
	"context"
	"errors"
	"strings"

	"github.com/microsoftgraph/msgraph-sdk-go/models"
	"github.com/microsoftgraph/msgraph-sdk-go/users"
)

// Me returns the signed-in user.
func (c *Client) Me(ctx context.Context) (*User, error) {
	u, err := c.sdk.Me().Get(ctx, nil)
	if err != nil {
		return nil, wrapError("get me", err)
	}
	return toUser(u), nil
}

// User returns a user by object ID or user principal name.
func (c *Client) User(ctx context.Context, idOrUPN string) (*User, error) {
	if strings.TrimSpace(idOrUPN) == "" {
		return nil, InvalidInput("get user", "user id is required")
	}
	u, err := c.sdk.Users().ByUserId(idOrUPN).Get(ctx, nil)
	if err != nil {
		return nil, wrapError("get user", err)
	}
	return toUser(u), nil
}

// SearchUsers looks a user up by email, or filters the directory by given name / surname prefix.
// An email with no matching user yields an empty result rather than an error.
func (c *Client) SearchUsers(ctx context.Context, q UserQuery) ([]User, error) {
	if q.IsZero() {
		return nil, InvalidInput("search users", "at least one of email, first_name, or last_name must be provided")
	}
	if email := strings.TrimSpace(q.Email); email != "" {
		u, err := c.User(ctx, email)
		if errors.Is(err, ErrNotFound) {
			return []User{}, nil
		}
		if err != nil {
			return nil, err
		}
		return []User{*u}, nil
	}
	filter := userFilter(q)
	resp, err := c.sdk.Users().Get(ctx, &users.UsersRequestBuilderGetRequestConfiguration{
		QueryParameters: &users.UsersRequestBuilderGetQueryParameters{Filter: &filter},
	})
	if err != nil {
		return nil, wrapError("search users", err)
	}
	ret := make([]User, 0, len(resp.GetValue()))
	for _, u := range resp.GetValue() {
		ret = append(ret, *toUser(u))
	}
	return ret, nil
}

// userFilter builds the OData $filter for a name query.
func userFilter(q UserQuery) string {
	var clauses []string
	if v := strings.TrimSpace(q.FirstName); v != "" {
		clauses = append(clauses, "startswith(givenName,'"+odataQuote(v)+"')")
	}
	if v := strings.TrimSpace(q.LastName); v != "" {
		clauses = append(clauses, "startswith(surname,'"+odataQuote(v)+"')")
	}
	return strings.Join(clauses, " and ")
}

// odataQuote escapes a string literal for OData ('' for ').
func odataQuote(v string) string { return strings.ReplaceAll(v, "'", "''") }

func toUser(u models.Userable) *User {
	if u == nil {
		return &User{}
	}
	return &User{
		ID:                deref(u.GetId()),
		DisplayName:       deref(u.GetDisplayName()),
		GivenName:         deref(u.GetGivenName()),
		Surname:           deref(u.GetSurname()),
		Mail:              deref(u.GetMail()),
		UserPrincipalName: deref(u.GetUserPrincipalName()),
		JobTitle:          deref(u.GetJobTitle()),
	}
}
