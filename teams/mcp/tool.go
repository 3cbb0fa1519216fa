package mcp

import (
	"context"
	_ "embed"
	"encoding/json"
	"errors"

	"github.com/google/uuid"
	"github.com/viant/jsonrpc"
	"github.com/viant/mcp-protocol/schema"
	protoserver "github.com/viant/mcp-protocol/server"

	"github.com/viant/mcp-teams/teams/action"
	"github.com/viant/mcp-teams/teams/graph"
)

//go:embed tools/teamsListTeams.md
var teamsListTeamsDesc string

//go:embed tools/teamsGetTeamMembers.md
var teamsGetTeamMembersDesc string

//go:embed tools/teamsGetTeamChannels.md
var teamsGetTeamChannelsDesc string

//go:embed tools/teamsSearchUsers.md
var teamsSearchUsersDesc string

//go:embed tools/teamsPostChannelMessage.md
var teamsPostChannelMessageDesc string

//go:embed tools/teamsListChannelMessages.md
var teamsListChannelMessagesDesc string

//go:embed tools/teamsCreateTeam.md
var teamsCreateTeamDesc string

//go:embed tools/teamsCreateChat.md
var teamsCreateChatDesc string

//go:embed tools/teamsSendMessage.md
var teamsSendMessageDesc string

//go:embed tools/teamsListChatMessages.md
var teamsListChatMessagesDesc string

//go:embed tools/teamsMessageUser.md
var teamsMessageUserDesc string

//go:embed tools/teamsAction.md
var teamsActionDesc string

func registerTools(base *protoserver.DefaultHandler, h *Handler) error {
	registrations := []func() error{
		func() error { return registerTool[*ListTeamsInput](base, h, "teamsListTeams", teamsListTeamsDesc) },
		func() error { return registerTool[*TeamMembersInput](base, h, "teamsGetTeamMembers", teamsGetTeamMembersDesc) },
		func() error { return registerTool[*TeamChannelsInput](base, h, "teamsGetTeamChannels", teamsGetTeamChannelsDesc) },
		func() error { return registerTool[*SearchUsersInput](base, h, "teamsSearchUsers", teamsSearchUsersDesc) },
		func() error {
			return registerTool[*PostChannelMessageInput](base, h, "teamsPostChannelMessage", teamsPostChannelMessageDesc)
		},
		func() error {
			return registerTool[*ListChannelMessagesInput](base, h, "teamsListChannelMessages", teamsListChannelMessagesDesc)
		},
		func() error { return registerTool[*CreateTeamInput](base, h, "teamsCreateTeam", teamsCreateTeamDesc) },
		func() error { return registerTool[*CreateChatInput](base, h, "teamsCreateChat", teamsCreateChatDesc) },
		func() error { return registerTool[*SendMessageInput](base, h, "teamsSendMessage", teamsSendMessageDesc) },
		func() error { return registerTool[*ListChatMessagesInput](base, h, "teamsListChatMessages", teamsListChatMessagesDesc) },
		func() error { return registerTool[*MessageUserInput](base, h, "teamsMessageUser", teamsMessageUserDesc) },
		func() error { return registerTool[*ActionInput](base, h, "teamsAction", teamsActionDesc) },
	}
	for _, register := range registrations {
		if err := register(); err != nil {
			return err
		}
	}
	return nil
}

func registerTool[I toolInput](base *protoserver.DefaultHandler, h *Handler, name, description string) error {
	return protoserver.RegisterTool[I, *action.Result](base.Registry, name, description, func(ctx context.Context, in I) (*schema.CallToolResult, *jsonrpc.Error) {
		return h.call(ctx, in.request())
	})
}

func buildSuccessResult(service *Service, payload any) (*schema.CallToolResult, *jsonrpc.Error) {
	if service.UseTextField() {
		b, _ := json.Marshal(payload)
		return &schema.CallToolResult{Content: []schema.CallToolResultContentElem{{Type: "text", Text: string(b)}}}, nil
	}
	return &schema.CallToolResult{StructuredContent: map[string]any{"result": payload}}, nil
}

// toolError is the failure payload: kind is NotFound, Unauthorized, UpstreamError or InvalidInput.
type toolError struct {
	Kind    graph.Kind `json:"kind"`
	Message string     `json:"message"`
	Status  int        `json:"status,omitempty"`
}

func newToolError(err error) *toolError {
	ret := &toolError{Kind: graph.KindOf(err), Message: err.Error()}
	var gErr *graph.Error
	if errors.As(err, &gErr) {
		ret.Status = gErr.Status
	}
	return ret
}

func buildToolErrorResult(service *Service, err error) *schema.CallToolResult {
	isErr := true
	payload := newToolError(err)
	if service.UseTextField() {
		b, _ := json.Marshal(payload)
		return &schema.CallToolResult{IsError: &isErr, Content: []schema.CallToolResultContentElem{{Type: "text", Text: string(b)}}}
	}
	return &schema.CallToolResult{IsError: &isErr, StructuredContent: map[string]any{"error": payload}}
}

func newUUID() string { return uuid.New().String() }
