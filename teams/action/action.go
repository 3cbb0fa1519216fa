// Package action maps named Teams actions onto sequences of Microsoft Graph calls
// and normalizes their outcome for the calling agent.
package action

import (
	"context"
	"strconv"
	"strings"

	"github.com/viant/mcp-teams/teams/graph"
)

// Name identifies a supported action.
type Name string

const (
	ListTeams           Name = "list_teams"
	GetTeamMembers      Name = "get_team_members"
	GetTeamChannels     Name = "get_team_channels"
	SearchUsers         Name = "search_users"
	PostChannelMessage  Name = "post_channel_message"
	ListChannelMessages Name = "list_channel_messages"
	CreateTeam          Name = "create_team"
	CreateChat          Name = "create_chat"
	SendMessage         Name = "send_message"
	ListChatMessages    Name = "list_chat_messages"
	MessageUser         Name = "message_user"
)

// Parameter keys.
const (
	ParamTeamID      = "team_id"
	ParamChannelID   = "channel_id"
	ParamChatID      = "chat_id"
	ParamMessage     = "message"
	ParamContentType = "content_type"
	ParamTop         = "top"
	ParamEmail       = "email"
	ParamFirstName   = "first_name"
	ParamLastName    = "last_name"
	ParamUserID1     = "user_id_1"
	ParamUserID2     = "user_id_2"
	ParamDisplayName = "display_name"
	ParamDescription = "description"
	ParamVisibility  = "visibility"
)

// Keys under which results expose resource identifiers for chaining.
const (
	IDTeam      = "teamId"
	IDChannel   = "channelId"
	IDChat      = "chatId"
	IDUser      = "userId"
	IDRequester = "requesterId"
	IDMessage   = "messageId"
	IDOperation = "operationId"
)

// Request is one action invocation issued by the agent host.
type Request struct {
	Action  Name          `json:"action" description:"action name"`
	Params  Params        `json:"params,omitempty" description:"named parameters"`
	Account graph.Account `json:"account"`
}

// Result is the normalized outcome of an action.
type Result struct {
	Action  Name              `json:"action"`
	Summary string            `json:"summary"`
	IDs     map[string]string `json:"ids,omitempty"`
	Data    interface{}       `json:"data,omitempty"`
}

func newResult(name Name, summary string, data interface{}) *Result {
	return &Result{Action: name, Summary: summary, Data: data, IDs: map[string]string{}}
}

func (r *Result) withID(key, value string) *Result {
	if value != "" {
		r.IDs[key] = value
	}
	return r
}

// Params maps parameter names to values.
type Params map[string]string

// Get returns the trimmed value of key.
func (p Params) Get(key string) string {
	if p == nil {
		return ""
	}
	return strings.TrimSpace(p[key])
}

// Raw returns the untrimmed value of key; message bodies keep their whitespace.
func (p Params) Raw(key string) string {
	if p == nil {
		return ""
	}
	return p[key]
}

// Int parses key as a non-negative integer, returning def when absent.
func (p Params) Int(key string, def int) (int, error) {
	v := p.Get(key)
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return 0, graph.InvalidInput("params", "%s must be a non-negative integer, got %q", key, v)
	}
	return n, nil
}

// userQuery builds a user search from email/first_name/last_name.
func (p Params) userQuery() graph.UserQuery {
	return graph.UserQuery{Email: p.Get(ParamEmail), FirstName: p.Get(ParamFirstName), LastName: p.Get(ParamLastName)}
}

func (p Params) messageBody() graph.MessageBody {
	return graph.MessageBody{Content: p.Raw(ParamMessage), ContentType: p.Get(ParamContentType)}
}

// Graph is the Microsoft Graph surface the actions use; *graph.Client implements it.
type Graph interface {
	Token(ctx context.Context) (string, error)
	Me(ctx context.Context) (*graph.User, error)
	SearchUsers(ctx context.Context, q graph.UserQuery) ([]graph.User, error)
	JoinedTeams(ctx context.Context) ([]graph.Team, error)
	TeamMembers(ctx context.Context, teamID string) ([]graph.Member, error)
	TeamChannels(ctx context.Context, teamID string) ([]graph.Channel, error)
	PostChannelMessage(ctx context.Context, teamID, channelID string, body graph.MessageBody) (*graph.ChatMessage, error)
	ChannelMessages(ctx context.Context, teamID, channelID string, top int) ([]graph.ChatMessage, error)
	CreateTeam(ctx context.Context, spec graph.TeamSpec) (*graph.TeamCreation, error)
	CreateChat(ctx context.Context, spec graph.ChatSpec) (*graph.Chat, error)
	SendChatMessage(ctx context.Context, chatID string, body graph.MessageBody) (*graph.ChatMessage, error)
	ChatMessages(ctx context.Context, chatID string, top int) ([]graph.ChatMessage, error)
}

var _ Graph = (*graph.Client)(nil)

// ClientFunc resolves the Graph client for an account and the token scopes an action needs.
type ClientFunc func(ctx context.Context, account graph.Account, scopes []string, prompt func(string)) (Graph, error)
