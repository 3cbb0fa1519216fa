package graph

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"strings"

	"github.com/microsoftgraph/msgraph-sdk-go/models"
)

const standardTemplate = "https://graph.microsoft.com/v1.0/teamsTemplates('standard')"

var (
	teamIDExpr      = regexp.MustCompile(`teams\('([^']+)'\)`)
	operationIDExpr = regexp.MustCompile(`operations\('([^']+)'\)`)
)

// JoinedTeams lists the Teams the signed-in user is a member of.
func (c *Client) JoinedTeams(ctx context.Context) ([]Team, error) {
	resp, err := c.sdk.Me().JoinedTeams().Get(ctx, nil)
	if err != nil {
		return nil, wrapError("list joined teams", err)
	}
	ret := make([]Team, 0, len(resp.GetValue()))
	for _, t := range resp.GetValue() {
		ret = append(ret, toTeam(t))
	}
	return ret, nil
}

// TeamMembers lists the members of a team.
func (c *Client) TeamMembers(ctx context.Context, teamID string) ([]Member, error) {
	if strings.TrimSpace(teamID) == "" {
		return nil, InvalidInput("list team members", "the team_id must be provided")
	}
	resp, err := c.sdk.Teams().ByTeamId(teamID).Members().Get(ctx, nil)
	if err != nil {
		return nil, wrapError("list team members", err)
	}
	ret := make([]Member, 0, len(resp.GetValue()))
	for _, m := range resp.GetValue() {
		ret = append(ret, toMember(m))
	}
	return ret, nil
}

// TeamChannels lists the channels of a team.
func (c *Client) TeamChannels(ctx context.Context, teamID string) ([]Channel, error) {
	if strings.TrimSpace(teamID) == "" {
		return nil, InvalidInput("list team channels", "the team_id must be provided")
	}
	resp, err := c.sdk.Teams().ByTeamId(teamID).Channels().Get(ctx, nil)
	if err != nil {
		return nil, wrapError("list team channels", err)
	}
	ret := make([]Channel, 0, len(resp.GetValue()))
	for _, ch := range resp.GetValue() {
		ret = append(ret, toChannel(ch))
	}
	return ret, nil
}

// CreateTeam provisions a team from the standard template. Graph accepts the request
// asynchronously (202) and only reports the new team through the Location header, so
// this call bypasses the SDK.
func (c *Client) CreateTeam(ctx context.Context, spec TeamSpec) (*TeamCreation, error) {
	const op = "create team"
	if strings.TrimSpace(spec.DisplayName) == "" {
		return nil, InvalidInput(op, "display_name is required")
	}
	visibility := strings.ToLower(strings.TrimSpace(spec.Visibility))
	switch visibility {
	case "":
		visibility = "private"
	case "private", "public":
	default:
		return nil, InvalidInput(op, "visibility must be private or public, got %q", spec.Visibility)
	}
	payload := map[string]any{
		"template@odata.bind": standardTemplate,
		"displayName":         spec.DisplayName,
		"description":         spec.Description,
		"visibility":          visibility,
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	token, err := c.Token(ctx)
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/teams", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Content-Type", "application/json")
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, wrapError(op, err)
	}
	defer resp.Body.Close()
	data, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			ret := statusError(op, resp.StatusCode, "", fmt.Sprintf("%s (reading response: %v)", http.StatusText(resp.StatusCode), err))
			ret.Err = err
			return nil, ret
		}
		return nil, wrapError(op, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		code, message := decodeRESTError(data)
		return nil, statusError(op, resp.StatusCode, code, message)
	}
	ret := &TeamCreation{Location: resp.Header.Get("Location")}
	if ret.Location == "" {
		ret.Location = resp.Header.Get("Content-Location")
	}
	if m := teamIDExpr.FindStringSubmatch(ret.Location); len(m) == 2 {
		ret.TeamID = m[1]
	}
	if m := operationIDExpr.FindStringSubmatch(ret.Location); len(m) == 2 {
		ret.OperationID = m[1]
	}
	// some tenants answer 201 with the team entity instead
	if ret.TeamID == "" && len(data) > 0 {
		var created struct {
			ID string `json:"id"`
		}
		if json.Unmarshal(data, &created) == nil {
			ret.TeamID = created.ID
		}
	}
	return ret, nil
}

// decodeRESTError extracts code/message from a Graph error envelope.
func decodeRESTError(data []byte) (string, string) {
	var envelope struct {
		Error struct {
			Code    string `json:"code"`
			Message string `json:"message"`
		} `json:"error"`
	}
	if err := json.Unmarshal(data, &envelope); err != nil {
		return "", strings.TrimSpace(string(data))
	}
	return envelope.Error.Code, envelope.Error.Message
}

func toTeam(t models.Teamable) Team {
	ret := Team{
		ID:          deref(t.GetId()),
		DisplayName: deref(t.GetDisplayName()),
		Description: deref(t.GetDescription()),
		WebURL:      deref(t.GetWebUrl()),
		IsArchived:  deref(t.GetIsArchived()),
	}
	if v := t.GetVisibility(); v != nil {
		ret.Visibility = v.String()
	}
	return ret
}

func toMember(m models.ConversationMemberable) Member {
	ret := Member{
		ID:          deref(m.GetId()),
		DisplayName: deref(m.GetDisplayName()),
		Roles:       m.GetRoles(),
	}
	if aad, ok := m.(models.AadUserConversationMemberable); ok {
		ret.UserID = deref(aad.GetUserId())
		ret.Email = deref(aad.GetEmail())
	}
	return ret
}

func toChannel(ch models.Channelable) Channel {
	ret := Channel{
		ID:          deref(ch.GetId()),
		DisplayName: deref(ch.GetDisplayName()),
		Description: deref(ch.GetDescription()),
		WebURL:      deref(ch.GetWebUrl()),
	}
	if v := ch.GetMembershipType(); v != nil {
		ret.MembershipType = v.String()
	}
	return ret
}
