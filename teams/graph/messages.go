package graph

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/microsoftgraph/msgraph-sdk-go/chats"
	"github.com/microsoftgraph/msgraph-sdk-go/models"
	"github.com/microsoftgraph/msgraph-sdk-go/teams"
)

const userBindFormat = "https://graph.microsoft.com/v1.0/users('%s')"

// maxMessagesPage is the largest $top Graph accepts on message listings.
const maxMessagesPage = 50

// pageSize returns the $top to request, nil leaving the page size to Graph.
func pageSize(top int) *int32 {
	if top <= 0 {
		return nil
	}
	if top > maxMessagesPage {
		top = maxMessagesPage
	}
	return ptr(int32(top))
}

// PostChannelMessage posts a top-level message to a channel.
func (c *Client) PostChannelMessage(ctx context.Context, teamID, channelID string, body MessageBody) (*ChatMessage, error) {
	const op = "post channel message"
	if strings.TrimSpace(teamID) == "" || strings.TrimSpace(channelID) == "" || body.Content == "" {
		return nil, InvalidInput(op, "the team_id, channel_id, and message must be provided")
	}
	msg, err := newChatMessage(op, body)
	if err != nil {
		return nil, err
	}
	created, err := c.sdk.Teams().ByTeamId(teamID).Channels().ByChannelId(channelID).Messages().Post(ctx, msg, nil)
	if err != nil {
		return nil, wrapError(op, err)
	}
	ret := toChatMessage(created)
	return &ret, nil
}

// ChannelMessages lists the most recent top-level messages of a channel, newest first.
// top > 0 is sent as $top (at most 50); top <= 0 returns the first page as served by Graph.
func (c *Client) ChannelMessages(ctx context.Context, teamID, channelID string, top int) ([]ChatMessage, error) {
	const op = "list channel messages"
	if strings.TrimSpace(teamID) == "" || strings.TrimSpace(channelID) == "" {
		return nil, InvalidInput(op, "the team_id and channel_id must be provided")
	}
	var cfg *teams.ItemChannelsItemMessagesRequestBuilderGetRequestConfiguration
	if size := pageSize(top); size != nil {
		cfg = &teams.ItemChannelsItemMessagesRequestBuilderGetRequestConfiguration{
			QueryParameters: &teams.ItemChannelsItemMessagesRequestBuilderGetQueryParameters{Top: size},
		}
	}
	resp, err := c.sdk.Teams().ByTeamId(teamID).Channels().ByChannelId(channelID).Messages().Get(ctx, cfg)
	if err != nil {
		return nil, wrapError(op, err)
	}
	return toChatMessages(resp.GetValue(), top), nil
}

// CreateChat creates a chat whose members all join as owners.
func (c *Client) CreateChat(ctx context.Context, spec ChatSpec) (*Chat, error) {
	const op = "create chat"
	if len(spec.MemberIDs) < 2 {
		return nil, InvalidInput(op, "a chat needs at least two members")
	}
	chatType := models.ONEONONE_CHATTYPE
	switch strings.ToLower(spec.ChatType) {
	case "", "oneonone":
		if len(spec.MemberIDs) > 2 {
			chatType = models.GROUP_CHATTYPE
		}
	case "group":
		chatType = models.GROUP_CHATTYPE
	default:
		return nil, InvalidInput(op, "unsupported chat type %q", spec.ChatType)
	}
	var members []models.ConversationMemberable
	for _, id := range spec.MemberIDs {
		if strings.TrimSpace(id) == "" {
			return nil, InvalidInput(op, "member user id is empty")
		}
		member := models.NewAadUserConversationMember()
		member.SetRoles([]string{"owner"})
		member.SetAdditionalData(map[string]interface{}{
			"user@odata.bind": fmt.Sprintf(userBindFormat, id),
		})
		members = append(members, member)
	}
	chat := models.NewChat()
	chat.SetChatType(&chatType)
	chat.SetMembers(members)
	if spec.Topic != "" && chatType == models.GROUP_CHATTYPE {
		chat.SetTopic(ptr(spec.Topic))
	}
	created, err := c.sdk.Chats().Post(ctx, chat, nil)
	if err != nil {
		return nil, wrapError(op, err)
	}
	ret := &Chat{ID: deref(created.GetId()), Topic: deref(created.GetTopic()), WebURL: deref(created.GetWebUrl())}
	if v := created.GetChatType(); v != nil {
		ret.ChatType = v.String()
	}
	return ret, nil
}

// SendChatMessage sends a message to an existing chat.
func (c *Client) SendChatMessage(ctx context.Context, chatID string, body MessageBody) (*ChatMessage, error) {
	const op = "send chat message"
	if strings.TrimSpace(chatID) == "" || body.Content == "" {
		return nil, InvalidInput(op, "the chat_id and message must be provided")
	}
	msg, err := newChatMessage(op, body)
	if err != nil {
		return nil, err
	}
	created, err := c.sdk.Chats().ByChatId(chatID).Messages().Post(ctx, msg, nil)
	if err != nil {
		return nil, wrapError(op, err)
	}
	ret := toChatMessage(created)
	return &ret, nil
}

// ChatMessages lists the most recent messages of a chat, newest first.
func (c *Client) ChatMessages(ctx context.Context, chatID string, top int) ([]ChatMessage, error) {
	const op = "list chat messages"
	if strings.TrimSpace(chatID) == "" {
		return nil, InvalidInput(op, "the chat_id must be provided")
	}
	var cfg *chats.ItemMessagesRequestBuilderGetRequestConfiguration
	if size := pageSize(top); size != nil {
		cfg = &chats.ItemMessagesRequestBuilderGetRequestConfiguration{
			QueryParameters: &chats.ItemMessagesRequestBuilderGetQueryParameters{Top: size},
		}
	}
	resp, err := c.sdk.Chats().ByChatId(chatID).Messages().Get(ctx, cfg)
	if err != nil {
		return nil, wrapError(op, err)
	}
	return toChatMessages(resp.GetValue(), top), nil
}

func newChatMessage(op string, body MessageBody) (models.ChatMessageable, error) {
	contentType := models.TEXT_BODYTYPE
	switch strings.ToLower(strings.TrimSpace(body.ContentType)) {
	case "", "text":
	case "html":
		contentType = models.HTML_BODYTYPE
	default:
		return nil, InvalidInput(op, "content_type must be text or html, got %q", body.ContentType)
	}
	itemBody := models.NewItemBody()
	itemBody.SetContent(ptr(body.Content))
	itemBody.SetContentType(&contentType)
	msg := models.NewChatMessage()
	msg.SetBody(itemBody)
	return msg, nil
}

func toChatMessages(items []models.ChatMessageable, top int) []ChatMessage {
	ret := make([]ChatMessage, 0, len(items))
	for _, item := range items {
		if top > 0 && len(ret) >= top {
			break
		}
		ret = append(ret, toChatMessage(item))
	}
	return ret
}

func toChatMessage(m models.ChatMessageable) ChatMessage {
	if m == nil {
		return ChatMessage{}
	}
	ret := ChatMessage{ID: deref(m.GetId()), WebURL: deref(m.GetWebUrl())}
	if b := m.GetBody(); b != nil {
		ret.Content = deref(b.GetContent())
		if ct := b.GetContentType(); ct != nil {
			ret.ContentType = ct.String()
		}
	}
	if from := m.GetFrom(); from != nil && from.GetUser() != nil {
		ret.From = deref(from.GetUser().GetDisplayName())
	}
	if ts := m.GetCreatedDateTime(); ts != nil {
		ret.CreatedAt = ts.UTC().Format(time.RFC3339)
	}
	return ret
}
