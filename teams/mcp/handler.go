package mcp

import (
	"context"
	"time"

	"github.com/viant/jsonrpc"
	"github.com/viant/jsonrpc/transport"
	protoclient "github.com/viant/mcp-protocol/client"
	"github.com/viant/mcp-protocol/logger"
	"github.com/viant/mcp-protocol/schema"
	protoserver "github.com/viant/mcp-protocol/server"

	"github.com/viant/mcp-teams/teams/action"
	"github.com/viant/mcp-teams/teams/graph"
)

// Handler serves the Teams tools for one MCP session. The client operations
// are kept to ask the session's client to open the device login page.
type Handler struct {
	*protoserver.DefaultHandler
	service   *Service
	clientOps protoclient.Operations
}

// NewHandler returns the per-session handler factory that registers every Teams tool against service.
func NewHandler(service *Service) protoserver.NewHandler {
	return func(_ context.Context, notifier transport.Notifier, logger logger.Logger, clientOps protoclient.Operations) (protoserver.Handler, error) {
		base := protoserver.NewDefaultHandler(notifier, logger, clientOps)
		ret := &Handler{DefaultHandler: base, service: service, clientOps: clientOps}
		if err := registerTools(base, ret); err != nil {
			return nil, err
		}
		return ret, nil
	}
}

// call executes req and renders the outcome; action failures become tool errors, not protocol errors.
func (h *Handler) call(ctx context.Context, req *action.Request) (*schema.CallToolResult, *jsonrpc.Error) {
	out, err := h.service.Execute(ctx, req, h.elicitLogin)
	if err != nil {
		return buildToolErrorResult(h.service, err), nil
	}
	return buildSuccessResult(h.service, out)
}

// elicitLogin asks the client to open the device login page; false when the client cannot be reached.
func (h *Handler) elicitLogin(pageURL string) bool {
	ops := h.clientOps
	if ops == nil || !ops.Implements(schema.MethodElicitationCreate) {
		return false
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		if _, err := ops.Elicit(ctx, &jsonrpc.TypedRequest[*schema.ElicitRequest]{Request: &schema.ElicitRequest{
			Params: schema.ElicitRequestParams{ElicitationId: newUUID(), Message: "Sign in to Microsoft Teams", Mode: string(schema.ElicitRequestParamsModeUrl), Url: pageURL},
		}}); err != nil {
			graph.Debugf("elicitation failed: %v", err)
		}
	}()
	return true
}
