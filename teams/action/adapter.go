package action

import (
	"context"
	"strings"

	oaauth "github.com/viant/mcp-teams/auth"
	"github.com/viant/mcp-teams/teams/graph"
)

// Adapter executes actions: validation, scope check, then the action's Graph calls in order.
// It keeps no state between invocations.
type Adapter struct {
	clients     ClientFunc
	auth        *oaauth.Service
	checkScopes bool
}

// NewAdapter creates an adapter; checkScopes enables the local scope check for inspectable tokens.
func NewAdapter(clients ClientFunc, checkScopes bool) *Adapter {
	return &Adapter{clients: clients, auth: oaauth.New(), checkScopes: checkScopes}
}

// Execute runs req. Failures are *graph.Error carrying NotFound, Unauthorized, UpstreamError or InvalidInput.
func (a *Adapter) Execute(ctx context.Context, req *Request, prompt func(string)) (*Result, error) {
	if req == nil {
		return nil, graph.InvalidInput("execute", "request is required")
	}
	def, ok := Lookup(req.Action)
	if !ok {
		return nil, graph.InvalidInput("execute", "unsupported action %q, expected one of: %s", req.Action, strings.Join(Names(), ", "))
	}
	if err := def.Validate(req.Params); err != nil {
		return nil, err
	}
	reqs := def.Requirements(req.Params)
	client, err := a.clients(ctx, req.Account, graph.TokenScopes(reqs), prompt)
	if err != nil {
		return nil, err
	}
	if a.checkScopes {
		if err := a.ensureScopes(ctx, client, def.Name, reqs); err != nil {
			return nil, err
		}
	}
	graph.Debugf("executing action=%s alias=%s", def.Name, req.Account.Alias)
	ret, err := def.run(ctx, client, req.Params)
	if err != nil {
		graph.Debugf("action=%s failed: %v", def.Name, err)
		return nil, err
	}
	return ret, nil
}

// ensureScopes rejects the call before any Graph request when the token is a JWT
// whose scp/roles claims do not grant every requirement. Opaque tokens defer to Graph.
func (a *Adapter) ensureScopes(ctx context.Context, client Graph, name Name, reqs []graph.Requirement) error {
	token, err := client.Token(ctx)
	if err != nil {
		return err
	}
	granted, ok := a.auth.Scopes(token)
	if !ok {
		return nil
	}
	if missing := graph.Missing(reqs, granted); len(missing) > 0 {
		return graph.Unauthorized(string(name), "token lacks required scope(s): %s", strings.Join(missing, ", "))
	}
	return nil
}
