package mcp

import (
	"strconv"

	"github.com/viant/mcp-teams/teams/action"
	"github.com/viant/mcp-teams/teams/graph"
)

// toolInput converts typed tool arguments into an action request.
type toolInput interface {
	request() *action.Request
}

type ListTeamsInput struct {
	Account graph.Account `json:"account,omitempty" description:"account alias"`
}

func (i *ListTeamsInput) request() *action.Request {
	return newRequest(action.ListTeams, i.Account)
}

type TeamMembersInput struct {
	Account graph.Account `json:"account,omitempty" description:"account alias"`
	TeamID  string        `json:"team_id" description:"ID of the Microsoft Team"`
}

func (i *TeamMembersInput) request() *action.Request {
	return newRequest(action.GetTeamMembers, i.Account, action.ParamTeamID, i.TeamID)
}

type TeamChannelsInput struct {
	Account graph.Account `json:"account,omitempty" description:"account alias"`
	TeamID  string        `json:"team_id" description:"ID of the Microsoft Team"`
}

func (i *TeamChannelsInput) request() *action.Request {
	return newRequest(action.GetTeamChannels, i.Account, action.ParamTeamID, i.TeamID)
}

type SearchUsersInput struct {
	Account   graph.Account `json:"account,omitempty" description:"account alias"`
	Email     string        `json:"email,omitempty" description:"email address or user principal name"`
	FirstName string        `json:"first_name,omitempty" description:"given name prefix"`
	LastName  string        `json:"last_name,omitempty" description:"surname prefix"`
}

func (i *SearchUsersInput) request() *action.Request {
	return newRequest(action.SearchUsers, i.Account,
		action.ParamEmail, i.Email, action.ParamFirstName, i.FirstName, action.ParamLastName, i.LastName)
}

type PostChannelMessageInput struct {
	Account     graph.Account `json:"account,omitempty" description:"account alias"`
	TeamID      string        `json:"team_id" description:"ID of the Microsoft Team"`
	ChannelID   string        `json:"channel_id" description:"ID of the channel"`
	Message     string        `json:"message" description:"message content"`
	ContentType string        `json:"content_type,omitempty" description:"text (default) or html"`
}

func (i *PostChannelMessageInput) request() *action.Request {
	return newRequest(action.PostChannelMessage, i.Account,
		action.ParamTeamID, i.TeamID, action.ParamChannelID, i.ChannelID,
		action.ParamMessage, i.Message, action.ParamContentType, i.ContentType)
}

type ListChannelMessagesInput struct {
	Account   graph.Account `json:"account,omitempty" description:"account alias"`
	TeamID    string        `json:"team_id" description:"ID of the Microsoft Team"`
	ChannelID string        `json:"channel_id" description:"ID of the channel"`
	Top       int           `json:"top,omitempty" description:"maximum number of messages (default 20)"`
}

func (i *ListChannelMessagesInput) request() *action.Request {
	return newRequest(action.ListChannelMessages, i.Account,
		action.ParamTeamID, i.TeamID, action.ParamChannelID, i.ChannelID, action.ParamTop, topParam(i.Top))
}

type CreateTeamInput struct {
	Account     graph.Account `json:"account,omitempty" description:"account alias"`
	DisplayName string        `json:"display_name" description:"display name of the team"`
	Description string        `json:"description" description:"description of the team"`
	Visibility  string        `json:"visibility,omitempty" description:"private (default) or public"`
}

func (i *CreateTeamInput) request() *action.Request {
	return newRequest(action.CreateTeam, i.Account,
		action.ParamDisplayName, i.DisplayName, action.ParamDescription, i.Description, action.ParamVisibility, i.Visibility)
}

type CreateChatInput struct {
	Account   graph.Account `json:"account,omitempty" description:"account alias"`
	UserID1   string        `json:"user_id_1,omitempty" description:"ID of the requesting user; resolved from the token when empty"`
	UserID2   string        `json:"user_id_2,omitempty" description:"ID of the other user"`
	Email     string        `json:"email,omitempty" description:"email of the other user when user_id_2 is unknown"`
	FirstName string        `json:"first_name,omitempty" description:"given name prefix of the other user"`
	LastName  string        `json:"last_name,omitempty" description:"surname prefix of the other user"`
}

func (i *CreateChatInput) request() *action.Request {
	return newRequest(action.CreateChat, i.Account,
		action.ParamUserID1, i.UserID1, action.ParamUserID2, i.UserID2,
		action.ParamEmail, i.Email, action.ParamFirstName, i.FirstName, action.ParamLastName, i.LastName)
}

type SendMessageInput struct {
	Account     graph.Account `json:"account,omitempty" description:"account alias"`
	ChatID      string        `json:"chat_id" description:"ID of the chat"`
	Message     string        `json:"message" description:"message content"`
	ContentType string        `json:"content_type,omitempty" description:"text (default) or html"`
}

func (i *SendMessageInput) request() *action.Request {
	return newRequest(action.SendMessage, i.Account,
		action.ParamChatID, i.ChatID, action.ParamMessage, i.Message, action.ParamContentType, i.ContentType)
}

type ListChatMessagesInput struct {
	Account graph.Account `json:"account,omitempty" description:"account alias"`
	ChatID  string        `json:"chat_id" description:"ID of the chat"`
	Top     int           `json:"top,omitempty" description:"maximum number of messages (default 20)"`
}

func (i *ListChatMessagesInput) request() *action.Request {
	return newRequest(action.ListChatMessages, i.Account, action.ParamChatID, i.ChatID, action.ParamTop, topParam(i.Top))
}

type MessageUserInput struct {
	Account     graph.Account `json:"account,omitempty" description:"account alias"`
	Email       string        `json:"email,omitempty" description:"email of the recipient"`
	FirstName   string        `json:"first_name,omitempty" description:"given name prefix of the recipient"`
	LastName    string        `json:"last_name,omitempty" description:"surname prefix of the recipient"`
	Message     string        `json:"message" description:"message content"`
	ContentType string        `json:"content_type,omitempty" description:"text (default) or html"`
}

func (i *MessageUserInput) request() *action.Request {
	return newRequest(action.MessageUser, i.Account,
		action.ParamEmail, i.Email, action.ParamFirstName, i.FirstName, action.ParamLastName, i.LastName,
		action.ParamMessage, i.Message, action.ParamContentType, i.ContentType)
}

// ActionInput invokes any action by name.
type ActionInput struct {
	Account graph.Account     `json:"account,omitempty" description:"account alias"`
	Action  string            `json:"action" description:"action name"`
	Params  map[string]string `json:"params,omitempty" description:"named action parameters"`
}

func (i *ActionInput) request() *action.Request {
	return &action.Request{Action: action.Name(i.Action), Params: action.Params(i.Params), Account: i.Account}
}

// newRequest builds a request from key/value pairs, skipping empty values.
func newRequest(name action.Name, account graph.Account, kv ...string) *action.Request {
	params := action.Params{}
	for k := 0; k+1 < len(kv); k += 2 {
		if kv[k+1] != "" {
			params[kv[k]] = kv[k+1]
		}
	}
	return &action.Request{Action: name, Params: params, Account: account}
}

func topParam(top int) string {
	if top == 0 {
		return ""
	}
	return strconv.Itoa(top)
}
