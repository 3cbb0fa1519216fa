package action

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/viant/mcp-teams/teams/graph"
)

// Param documents one action parameter.
type Param struct {
	Name        string `json:"name"`
	Required    bool   `json:"required,omitempty"`
	Description string `json:"description"`
}

// Definition declares an action: its parameters, scopes and Graph call sequence.
type Definition struct {
	Name        Name    `json:"name"`
	Description string  `json:"description"`
	Params      []Param `json:"params,omitempty"`
	// Scopes lists the declared scopes; requirements may narrow it per invocation.
	Scopes []string `json:"scopes"`

	validate     func(p Params) error
	requirements func(p Params) []string
	run          func(ctx context.Context, c Graph, p Params) (*Result, error)
}

// Requirements returns the scope requirements for p.
func (d *Definition) Requirements(p Params) []graph.Requirement {
	if d.requirements != nil {
		return graph.Require(d.requirements(p)...)
	}
	return graph.Require(d.Scopes...)
}

// Validate checks required parameters before any Graph call.
func (d *Definition) Validate(p Params) error {
	var missing []string
	for _, param := range d.Params {
		if param.Required && p.Get(param.Name) == "" {
			missing = append(missing, param.Name)
		}
	}
	if len(missing) > 0 {
		return graph.InvalidInput(string(d.Name), "missing required parameter(s): %s", strings.Join(missing, ", "))
	}
	if d.validate != nil {
		return d.validate(p)
	}
	return nil
}

var (
	paramTeamID      = Param{Name: ParamTeamID, Required: true, Description: "ID of the Microsoft Team (from list_teams)"}
	paramChannelID   = Param{Name: ParamChannelID, Required: true, Description: "ID of the channel within the team (from get_team_channels)"}
	paramChatID      = Param{Name: ParamChatID, Required: true, Description: "ID of the chat (from create_chat)"}
	paramMessage     = Param{Name: ParamMessage, Required: true, Description: "message content"}
	paramContentType = Param{Name: ParamContentType, Description: "text (default) or html"}
	paramTop         = Param{Name: ParamTop, Description: "maximum number of messages to return (default 20)"}
	paramEmail       = Param{Name: ParamEmail, Description: "email address or user principal name"}
	paramFirstName   = Param{Name: ParamFirstName, Description: "given name prefix"}
	paramLastName    = Param{Name: ParamLastName, Description: "surname prefix"}
)

const defaultTop = 20

var registry = map[Name]*Definition{}

func register(d *Definition) {
	registry[d.Name] = d
}

// Lookup returns the definition of name.
func Lookup(name Name) (*Definition, bool) {
	d, ok := registry[Name(strings.TrimSpace(string(name)))]
	return d, ok
}

// Definitions returns all definitions sorted by name.
func Definitions() []*Definition {
	ret := make([]*Definition, 0, len(registry))
	for _, d := range registry {
		ret = append(ret, d)
	}
	sort.Slice(ret, func(i, j int) bool { return ret[i].Name < ret[j].Name })
	return ret
}

// Names returns all action names sorted.
func Names() []string {
	var ret []string
	for _, d := range Definitions() {
		ret = append(ret, string(d.Name))
	}
	return ret
}

func requireUserQuery(p Params) error {
	if p.userQuery().IsZero() {
		return graph.InvalidInput("search users", "at least one of email, first_name, or last_name must be provided")
	}
	return nil
}

func describeQuery(q graph.UserQuery) string {
	var parts []string
	if q.Email != "" {
		parts = append(parts, "email "+q.Email)
	}
	if q.FirstName != "" {
		parts = append(parts, "first name "+q.FirstName)
	}
	if q.LastName != "" {
		parts = append(parts, "last name "+q.LastName)
	}
	return strings.Join(parts, ", ")
}

func displayNames[T any](items []T, name func(T) string) string {
	var names []string
	for _, item := range items {
		if n := name(item); n != "" {
			names = append(names, n)
		}
	}
	return strings.Join(names, ", ")
}

func countSummary(n int, noun, detail string) string {
	ret := fmt.Sprintf("Found %d %s", n, noun)
	if n != 1 {
		ret += "s"
	}
	if detail != "" {
		ret += ": " + detail
	}
	return ret
}

func init() {
	register(&Definition{
		Name:        ListTeams,
		Description: "Get all Teams the user is joined to with their details.",
		Scopes:      []string{graph.ScopeTeamReadBasicAll},
		run: func(ctx context.Context, c Graph, p Params) (*Result, error) {
			teams, err := c.JoinedTeams(ctx)
			if err != nil {
				return nil, err
			}
			ret := newResult(ListTeams, countSummary(len(teams), "team", displayNames(teams, func(t graph.Team) string { return t.DisplayName })), teams)
			if len(teams) == 1 {
				ret.withID(IDTeam, teams[0].ID)
			}
			return ret, nil
		},
	})

	register(&Definition{
		Name:        GetTeamMembers,
		Description: "Get the members of a specific Microsoft Team.",
		Params:      []Param{paramTeamID},
		Scopes:      []string{graph.ScopeTeamMemberReadAll},
		run: func(ctx context.Context, c Graph, p Params) (*Result, error) {
			members, err := c.TeamMembers(ctx, p.Get(ParamTeamID))
			if err != nil {
				return nil, err
			}
			summary := countSummary(len(members), "member", displayNames(members, func(m graph.Member) string { return m.DisplayName }))
			return newResult(GetTeamMembers, summary, members).withID(IDTeam, p.Get(ParamTeamID)), nil
		},
	})

	register(&Definition{
		Name:        GetTeamChannels,
		Description: "Get the channels of a specific Microsoft Team.",
		Params:      []Param{paramTeamID},
		Scopes:      []string{graph.ScopeChannelReadBasicAll},
		run: func(ctx context.Context, c Graph, p Params) (*Result, error) {
			channels, err := c.TeamChannels(ctx, p.Get(ParamTeamID))
			if err != nil {
				return nil, err
			}
			summary := countSummary(len(channels), "channel", displayNames(channels, func(ch graph.Channel) string { return ch.DisplayName }))
			return newResult(GetTeamChannels, summary, channels).withID(IDTeam, p.Get(ParamTeamID)), nil
		},
	})

	register(&Definition{
		Name:        SearchUsers,
		Description: "Search for a user by email, first name, or last name. The requesting user is listed first so its ID can be used to create chats.",
		Params:      []Param{paramEmail, paramFirstName, paramLastName},
		Scopes:      []string{graph.ScopeUserReadAll},
		validate:    requireUserQuery,
		run: func(ctx context.Context, c Graph, p Params) (*Result, error) {
			me, err := c.Me(ctx)
			if err != nil {
				return nil, err
			}
			q := p.userQuery()
			found, err := c.SearchUsers(ctx, q)
			if err != nil {
				return nil, err
			}
			users := append([]graph.User{*me}, found...)
			summary := countSummary(len(found), "user", displayNames(found, func(u graph.User) string { return u.DisplayName })) + " matching " + describeQuery(q)
			ret := newResult(SearchUsers, summary, users).withID(IDRequester, me.ID)
			if len(found) > 0 {
				ret.withID(IDUser, found[0].ID)
			}
			return ret, nil
		},
	})

	register(&Definition{
		Name:        PostChannelMessage,
		Description: "Post a message to a specific channel in a Microsoft Team. Always confirm by telling the Team name where the post is about to go.",
		Params:      []Param{paramTeamID, paramChannelID, paramMessage, paramContentType},
		Scopes:      []string{graph.ScopeChannelMessageSend},
		run: func(ctx context.Context, c Graph, p Params) (*Result, error) {
			teamID, channelID := p.Get(ParamTeamID), p.Get(ParamChannelID)
			msg, err := c.PostChannelMessage(ctx, teamID, channelID, p.messageBody())
			if err != nil {
				return nil, err
			}
			return newResult(PostChannelMessage, "Message posted to channel", msg).
				withID(IDTeam, teamID).withID(IDChannel, channelID).withID(IDMessage, msg.ID), nil
		},
	})

	register(&Definition{
		Name:        ListChannelMessages,
		Description: "List the most recent messages of a channel, newest first.",
		Params:      []Param{paramTeamID, paramChannelID, paramTop},
		Scopes:      []string{graph.ScopeChannelMessageRead},
		run: func(ctx context.Context, c Graph, p Params) (*Result, error) {
			top, err := p.Int(ParamTop, defaultTop)
			if err != nil {
				return nil, err
			}
			teamID, channelID := p.Get(ParamTeamID), p.Get(ParamChannelID)
			messages, err := c.ChannelMessages(ctx, teamID, channelID, top)
			if err != nil {
				return nil, err
			}
			return newResult(ListChannelMessages, countSummary(len(messages), "message", ""), messages).
				withID(IDTeam, teamID).withID(IDChannel, channelID), nil
		},
	})

	register(&Definition{
		Name:        CreateTeam,
		Description: "Create a new Microsoft Team using the standard template.",
		Params: []Param{
			{Name: ParamDisplayName, Required: true, Description: "display name of the team"},
			{Name: ParamDescription, Required: true, Description: "description of the team"},
			{Name: ParamVisibility, Description: "private (default) or public"},
		},
		Scopes: []string{graph.ScopeTeamCreate},
		validate: func(p Params) error {
			switch strings.ToLower(p.Get(ParamVisibility)) {
			case "", "private", "public":
				return nil
			}
			return graph.InvalidInput(string(CreateTeam), "visibility must be private or public, got %q", p.Get(ParamVisibility))
		},
		run: func(ctx context.Context, c Graph, p Params) (*Result, error) {
			spec := graph.TeamSpec{DisplayName: p.Get(ParamDisplayName), Description: p.Get(ParamDescription), Visibility: p.Get(ParamVisibility)}
			created, err := c.CreateTeam(ctx, spec)
			if err != nil {
				return nil, err
			}
			summary := fmt.Sprintf("Team %q creation accepted", spec.DisplayName)
			if created.TeamID == "" {
				summary = fmt.Sprintf("Team %q created successfully, no additional details provided", spec.DisplayName)
			}
			return newResult(CreateTeam, summary, created).withID(IDTeam, created.TeamID).withID(IDOperation, created.OperationID), nil
		},
	})

	register(&Definition{
		Name:        CreateChat,
		Description: "Create a one-on-one chat between two users. Pass both user IDs, only user_id_2 to chat with the requesting user, or email/first_name/last_name to look the other user up.",
		Params: []Param{
			{Name: ParamUserID1, Description: "ID of the first user (the one asking); defaults to the requesting user"},
			{Name: ParamUserID2, Description: "ID of the second user"},
			paramEmail, paramFirstName, paramLastName,
		},
		Scopes: []string{graph.ScopeChatCreate},
		validate: func(p Params) error {
			if p.Get(ParamUserID2) == "" {
				if p.Get(ParamUserID1) != "" && p.userQuery().IsZero() {
					return graph.InvalidInput(string(CreateChat), "user_id_2 is required when user_id_1 is given")
				}
				return requireUserQuery(p)
			}
			return nil
		},
		requirements: func(p Params) []string {
			switch {
			case p.Get(ParamUserID2) == "":
				// directory search for the peer
				return []string{graph.ScopeChatCreate, graph.ScopeUserReadAll}
			case p.Get(ParamUserID1) == "":
				// requester from /me
				return []string{graph.ScopeChatCreate, graph.ScopeUserRead}
			default:
				return []string{graph.ScopeChatCreate}
			}
		},
		run: func(ctx context.Context, c Graph, p Params) (*Result, error) {
			self, peer, err := resolvePair(ctx, c, p)
			if err != nil {
				return nil, err
			}
			chat, err := c.CreateChat(ctx, graph.ChatSpec{MemberIDs: []string{self, peer.ID}})
			if err != nil {
				return nil, err
			}
			summary := "Chat created"
			if peer.DisplayName != "" {
				summary = "Chat created with " + peer.DisplayName
			}
			return newResult(CreateChat, summary, chat).withID(IDChat, chat.ID).withID(IDUser, peer.ID).withID(IDRequester, self), nil
		},
	})

	register(&Definition{
		Name:        SendMessage,
		Description: "Send a message to a specific chat, which needs to be created first.",
		Params:      []Param{paramChatID, paramMessage, paramContentType},
		Scopes:      []string{graph.ScopeChatMessageSend},
		run: func(ctx context.Context, c Graph, p Params) (*Result, error) {
			chatID := p.Get(ParamChatID)
			msg, err := c.SendChatMessage(ctx, chatID, p.messageBody())
			if err != nil {
				return nil, err
			}
			return newResult(SendMessage, "Message sent to chat", msg).withID(IDChat, chatID).withID(IDMessage, msg.ID), nil
		},
	})

	register(&Definition{
		Name:        ListChatMessages,
		Description: "List the most recent messages of a chat, newest first.",
		Params:      []Param{paramChatID, paramTop},
		Scopes:      []string{graph.ScopeChatRead},
		run: func(ctx context.Context, c Graph, p Params) (*Result, error) {
			top, err := p.Int(ParamTop, defaultTop)
			if err != nil {
				return nil, err
			}
			chatID := p.Get(ParamChatID)
			messages, err := c.ChatMessages(ctx, chatID, top)
			if err != nil {
				return nil, err
			}
			return newResult(ListChatMessages, countSummary(len(messages), "message", ""), messages).withID(IDChat, chatID), nil
		},
	})

	register(&Definition{
		Name:        MessageUser,
		Description: "Look a user up by email or name, open a one-on-one chat with them and send a message.",
		Params:      []Param{paramEmail, paramFirstName, paramLastName, paramMessage, paramContentType},
		Scopes:      []string{graph.ScopeUserReadAll, graph.ScopeChatCreate, graph.ScopeChatMessageSend},
		validate:    requireUserQuery,
		run: func(ctx context.Context, c Graph, p Params) (*Result, error) {
			self, peer, err := resolvePair(ctx, c, p)
			if err != nil {
				return nil, err
			}
			chat, err := c.CreateChat(ctx, graph.ChatSpec{MemberIDs: []string{self, peer.ID}})
			if err != nil {
				return nil, err
			}
			msg, err := c.SendChatMessage(ctx, chat.ID, p.messageBody())
			if err != nil {
				return nil, err
			}
			summary := "Message sent to " + peer.ID
			if peer.DisplayName != "" {
				summary = "Message sent to " + peer.DisplayName
			}
			return newResult(MessageUser, summary, msg).
				withID(IDChat, chat.ID).withID(IDUser, peer.ID).withID(IDRequester, self).withID(IDMessage, msg.ID), nil
		},
	})
}

// resolvePair returns the requesting user's ID and the chat peer. IDs given as parameters
// are used as is; otherwise the requester comes from /me and the peer from a user search,
// skipping the requester itself.
func resolvePair(ctx context.Context, c Graph, p Params) (string, *graph.User, error) {
	self, peerID := p.Get(ParamUserID1), p.Get(ParamUserID2)
	if self != "" && peerID != "" {
		return self, &graph.User{ID: peerID}, nil
	}
	me, err := c.Me(ctx)
	if err != nil {
		return "", nil, err
	}
	if self == "" {
		self = me.ID
	}
	if peerID != "" {
		return self, &graph.User{ID: peerID}, nil
	}
	q := p.userQuery()
	found, err := c.SearchUsers(ctx, q)
	if err != nil {
		return "", nil, err
	}
	for i := range found {
		if found[i].ID != "" && found[i].ID != self {
			return self, &found[i], nil
		}
	}
	return "", nil, graph.NotFound("resolve user", "no user found matching %s", describeQuery(q))
}
