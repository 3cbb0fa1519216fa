package action

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/viant/mcp-teams/teams/graph"
	"github.com/viant/mcp-teams/teams/graph/graphtest"
)

const opaqueToken = "EwB4A8l6BAAUopaque"

func newAdapter(t *testing.T, srv *graphtest.Server, token string, checkScopes bool) *Adapter {
	t.Helper()
	return NewAdapter(func(ctx context.Context, account graph.Account, scopes []string, prompt func(string)) (Graph, error) {
		client, err := graph.NewClient(&graph.StaticCredential{Token: token}, srv.URL, scopes)
		if err != nil {
			return nil, err
		}
		return client, nil
	}, checkScopes)
}

func jwtToken(t *testing.T, scp string) string {
	t.Helper()
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{"scp": scp, "email": "me@contoso.com"}).SignedString([]byte("k"))
	require.NoError(t, err)
	return token
}

func withDirectory(srv *graphtest.Server, matches ...map[string]interface{}) {
	srv.JSON(http.MethodGet, "/me", http.StatusOK, map[string]interface{}{"id": "me-1", "displayName": "Me Myself"})
	if matches == nil {
		matches = []map[string]interface{}{}
	}
	srv.JSON(http.MethodGet, "/users", http.StatusOK, map[string]interface{}{"value": matches})
}

func TestAdapter_MessageUserCallSequence(t *testing.T) {
	srv := graphtest.New()
	defer srv.Close()
	withDirectory(srv,
		map[string]interface{}{"id": "me-1", "displayName": "Me Myself", "givenName": "Me"},
		map[string]interface{}{"id": "u-2", "displayName": "Megan Bowen", "givenName": "Megan"},
	)
	srv.JSON(http.MethodPost, "/chats", http.StatusCreated, map[string]interface{}{"id": "chat-9", "chatType": "oneOnOne"})
	srv.JSON(http.MethodPost, "/chats/chat-9/messages", http.StatusCreated, map[string]interface{}{
		"id": "msg-1", "body": map[string]interface{}{"content": "lunch?", "contentType": "text"},
	})
	adapter := newAdapter(t, srv, opaqueToken, true)

	result, err := adapter.Execute(context.Background(), &Request{
		Action: MessageUser,
		Params: Params{ParamFirstName: "Me", ParamMessage: "lunch?"},
	}, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"GET /me", "GET /users", "POST /chats", "POST /chats/chat-9/messages"}, srv.Routes())
	assert.Equal(t, map[string]string{IDChat: "chat-9", IDUser: "u-2", IDRequester: "me-1", IDMessage: "msg-1"}, result.IDs)
	assert.Equal(t, "Message sent to Megan Bowen", result.Summary)

	members, _ := srv.LastBody(http.MethodPost, "/chats")["members"].([]interface{})
	require.Len(t, members, 2)
	second, _ := members[1].(map[string]interface{})
	assert.Equal(t, "https://graph.microsoft.com/v1.0/users('u-2')", second["user@odata.bind"])
}

func TestAdapter_CreateChat(t *testing.T) {
	t.Run("no match skips chat creation", func(t *testing.T) {
		srv := graphtest.New()
		defer srv.Close()
		withDirectory(srv)
		adapter := newAdapter(t, srv, opaqueToken, true)

		_, err := adapter.Execute(context.Background(), &Request{Action: CreateChat, Params: Params{ParamLastName: "Nobody"}}, nil)
		require.Error(t, err)
		assert.True(t, errors.Is(err, graph.ErrNotFound))
		assert.Equal(t, []string{"GET /me", "GET /users"}, srv.Routes())
	})

	t.Run("only requester matches", func(t *testing.T) {
		srv := graphtest.New()
		defer srv.Close()
		withDirectory(srv, map[string]interface{}{"id": "me-1", "displayName": "Me Myself"})
		adapter := newAdapter(t, srv, opaqueToken, true)

		_, err := adapter.Execute(context.Background(), &Request{Action: CreateChat, Params: Params{ParamFirstName: "Me"}}, nil)
		assert.True(t, errors.Is(err, graph.ErrNotFound))
		assert.NotContains(t, srv.Routes(), "POST /chats")
	})

	t.Run("explicit ids", func(t *testing.T) {
		srv := graphtest.New()
		defer srv.Close()
		srv.JSON(http.MethodPost, "/chats", http.StatusCreated, map[string]interface{}{"id": "chat-1", "chatType": "oneOnOne"})
		adapter := newAdapter(t, srv, opaqueToken, true)

		result, err := adapter.Execute(context.Background(), &Request{Action: CreateChat, Params: Params{ParamUserID1: "a", ParamUserID2: "b"}}, nil)
		require.NoError(t, err)
		assert.Equal(t, []string{"POST /chats"}, srv.Routes())
		assert.Equal(t, "chat-1", result.IDs[IDChat])
		chat, ok := result.Data.(*graph.Chat)
		require.True(t, ok)
		assert.Equal(t, "oneOnOne", chat.ChatType)
	})

	t.Run("peer id only", func(t *testing.T) {
		srv := graphtest.New()
		defer srv.Close()
		withDirectory(srv)
		srv.JSON(http.MethodPost, "/chats", http.StatusCreated, map[string]interface{}{"id": "chat-2"})
		adapter := newAdapter(t, srv, opaqueToken, true)

		result, err := adapter.Execute(context.Background(), &Request{Action: CreateChat, Params: Params{ParamUserID2: "b"}}, nil)
		require.NoError(t, err)
		assert.Equal(t, []string{"GET /me", "POST /chats"}, srv.Routes())
		assert.Equal(t, "me-1", result.IDs[IDRequester])
	})
}

func TestAdapter_ScopeCheck(t *testing.T) {
	t.Run("missing scope fails before any call", func(t *testing.T) {
		srv := graphtest.New()
		defer srv.Close()
		adapter := newAdapter(t, srv, jwtToken(t, "User.Read.All Chat.Create"), true)

		_, err := adapter.Execute(context.Background(), &Request{Action: SendMessage, Params: Params{ParamChatID: "c", ParamMessage: "hi"}}, nil)
		require.Error(t, err)
		assert.True(t, errors.Is(err, graph.ErrUnauthorized))
		assert.Contains(t, err.Error(), graph.ScopeChatMessageSend)
		assert.Empty(t, srv.Calls())
	})

	t.Run("granted scope proceeds", func(t *testing.T) {
		srv := graphtest.New()
		defer srv.Close()
		srv.JSON(http.MethodGet, "/me/joinedTeams", http.StatusOK, map[string]interface{}{"value": []interface{}{}})
		adapter := newAdapter(t, srv, jwtToken(t, "Team.ReadBasic.All"), true)

		result, err := adapter.Execute(context.Background(), &Request{Action: ListTeams}, nil)
		require.NoError(t, err)
		assert.Equal(t, "Found 0 teams", result.Summary)
	})

	t.Run("peer id needs only own profile", func(t *testing.T) {
		srv := graphtest.New()
		defer srv.Close()
		srv.JSON(http.MethodGet, "/me", http.StatusOK, map[string]interface{}{"id": "me-1"})
		srv.JSON(http.MethodPost, "/chats", http.StatusCreated, map[string]interface{}{"id": "chat-3"})
		adapter := newAdapter(t, srv, jwtToken(t, "User.Read Chat.Create"), true)

		result, err := adapter.Execute(context.Background(), &Request{Action: CreateChat, Params: Params{ParamUserID2: "b"}}, nil)
		require.NoError(t, err)
		assert.Equal(t, "chat-3", result.IDs[IDChat])
		assert.Equal(t, []string{"GET /me", "POST /chats"}, srv.Routes())
	})

	t.Run("peer search still needs directory read", func(t *testing.T) {
		srv := graphtest.New()
		defer srv.Close()
		adapter := newAdapter(t, srv, jwtToken(t, "User.Read Chat.Create"), true)

		_, err := adapter.Execute(context.Background(), &Request{Action: CreateChat, Params: Params{ParamEmail: "adele@contoso.com"}}, nil)
		assert.True(t, errors.Is(err, graph.ErrUnauthorized))
		assert.Contains(t, err.Error(), graph.ScopeUserReadAll)
		assert.Empty(t, srv.Calls())
	})

	t.Run("disabled check defers to graph", func(t *testing.T) {
		srv := graphtest.New()
		defer srv.Close()
		srv.Error(http.MethodPost, "/chats/c/messages", http.StatusForbidden, "Forbidden", "Missing scope permissions on the request.")
		adapter := newAdapter(t, srv, jwtToken(t, "User.Read.All"), false)

		_, err := adapter.Execute(context.Background(), &Request{Action: SendMessage, Params: Params{ParamChatID: "c", ParamMessage: "hi"}}, nil)
		assert.True(t, errors.Is(err, graph.ErrUnauthorized))
		assert.Equal(t, []string{"POST /chats/c/messages"}, srv.Routes())
	})
}

func TestAdapter_Validation(t *testing.T) {
	srv := graphtest.New()
	defer srv.Close()
	adapter := newAdapter(t, srv, opaqueToken, true)

	var testCases = []struct {
		description string
		request     *Request
	}{
		{description: "unknown action", request: &Request{Action: "delete_everything"}},
		{description: "missing team id", request: &Request{Action: GetTeamChannels}},
		{description: "missing message", request: &Request{Action: PostChannelMessage, Params: Params{ParamTeamID: "t", ParamChannelID: "c"}}},
		{description: "empty search", request: &Request{Action: SearchUsers, Params: Params{}}},
		{description: "bad visibility", request: &Request{Action: CreateTeam, Params: Params{ParamDisplayName: "x", ParamDescription: "y", ParamVisibility: "secret"}}},
		{description: "bad top", request: &Request{Action: ListChatMessages, Params: Params{ParamChatID: "c", ParamTop: "-1"}}},
		{description: "user one without peer", request: &Request{Action: CreateChat, Params: Params{ParamUserID1: "a"}}},
	}
	for _, testCase := range testCases {
		_, err := adapter.Execute(context.Background(), testCase.request, nil)
		assert.True(t, errors.Is(err, graph.ErrInvalidInput), testCase.description)
	}
	assert.Empty(t, srv.Calls())
}

func TestAdapter_ChannelMessageRoundTrip(t *testing.T) {
	srv := graphtest.New()
	defer srv.Close()
	var stored []interface{}
	srv.Handle(http.MethodPost, "/teams/t-1/channels/c-1/messages", func(w http.ResponseWriter, r *http.Request) {
		body := srv.LastBody(http.MethodPost, "/teams/t-1/channels/c-1/messages")
		msg := map[string]interface{}{"id": "posted-1", "body": body["body"]}
		stored = append(stored, msg)
		graphtest.WriteJSON(w, http.StatusCreated, msg)
	})
	srv.Handle(http.MethodGet, "/teams/t-1/channels/c-1/messages", func(w http.ResponseWriter, r *http.Request) {
		graphtest.WriteJSON(w, http.StatusOK, map[string]interface{}{"value": stored})
	})
	adapter := newAdapter(t, srv, opaqueToken, true)
	content := "  Deploy window: 18:00 UTC\n  owner: @ops  "

	posted, err := adapter.Execute(context.Background(), &Request{Action: PostChannelMessage, Params: Params{
		ParamTeamID: "t-1", ParamChannelID: "c-1", ParamMessage: content,
	}}, nil)
	require.NoError(t, err)
	assert.Equal(t, "posted-1", posted.IDs[IDMessage])

	listed, err := adapter.Execute(context.Background(), &Request{Action: ListChannelMessages, Params: Params{
		ParamTeamID: "t-1", ParamChannelID: "c-1",
	}}, nil)
	require.NoError(t, err)
	messages, ok := listed.Data.([]graph.ChatMessage)
	require.True(t, ok)
	require.Len(t, messages, 1)
	assert.Equal(t, content, messages[0].Content)
}

func TestAdapter_SearchUsers(t *testing.T) {
	srv := graphtest.New()
	defer srv.Close()
	srv.JSON(http.MethodGet, "/me", http.StatusOK, map[string]interface{}{"id": "me-1", "displayName": "Me Myself"})
	srv.JSON(http.MethodGet, "/users/adele@contoso.com", http.StatusOK, map[string]interface{}{"id": "u-7", "displayName": "Adele Vance"})
	adapter := newAdapter(t, srv, opaqueToken, true)

	result, err := adapter.Execute(context.Background(), &Request{Action: SearchUsers, Params: Params{ParamEmail: "adele@contoso.com"}}, nil)
	require.NoError(t, err)
	users, ok := result.Data.([]graph.User)
	require.True(t, ok)
	require.Len(t, users, 2)
	assert.Equal(t, "me-1", users[0].ID)
	assert.Equal(t, "u-7", users[1].ID)
	assert.Equal(t, "u-7", result.IDs[IDUser])
	assert.Equal(t, []string{"GET /me", "GET /users/adele@contoso.com"}, srv.Routes())
}

func TestAdapter_UpstreamErrors(t *testing.T) {
	var testCases = []struct {
		description string
		status      int
		expect      error
	}{
		{description: "not found", status: http.StatusNotFound, expect: graph.ErrNotFound},
		{description: "unauthorized", status: http.StatusUnauthorized, expect: graph.ErrUnauthorized},
		{description: "server error", status: http.StatusInternalServerError, expect: graph.ErrUpstream},
		{description: "conflict", status: http.StatusConflict, expect: graph.ErrUpstream},
	}
	for _, testCase := range testCases {
		t.Run(testCase.description, func(t *testing.T) {
			srv := graphtest.New()
			defer srv.Close()
			srv.Error(http.MethodGet, "/teams/t-1/members", testCase.status, "code", "failed")
			adapter := newAdapter(t, srv, opaqueToken, true)
			_, err := adapter.Execute(context.Background(), &Request{Action: GetTeamMembers, Params: Params{ParamTeamID: "t-1"}}, nil)
			assert.True(t, errors.Is(err, testCase.expect))
			assert.Len(t, srv.Calls(), 1)
		})
	}
}

func TestAdapter_CreateTeam(t *testing.T) {
	srv := graphtest.New()
	defer srv.Close()
	srv.Handle(http.MethodPost, "/teams", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Location", "/teams('team-1')/operations('op-1')")
		w.WriteHeader(http.StatusAccepted)
	})
	adapter := newAdapter(t, srv, opaqueToken, true)

	result, err := adapter.Execute(context.Background(), &Request{Action: CreateTeam, Params: Params{
		ParamDisplayName: "Launch", ParamDescription: "Launch crew", ParamVisibility: "Public",
	}}, nil)
	require.NoError(t, err)
	assert.Equal(t, map[string]string{IDTeam: "team-1", IDOperation: "op-1"}, result.IDs)
	assert.Equal(t, "public", srv.LastBody(http.MethodPost, "/teams")["visibility"])
}

func TestDefinitions(t *testing.T) {
	names := Names()
	assert.Len(t, names, 11)
	for _, d := range Definitions() {
		assert.NotEmpty(t, d.Scopes, d.Name)
		assert.NotEmpty(t, d.Description, d.Name)
		assert.NotNil(t, d.run, d.Name)
	}
	def, ok := Lookup(" create_chat ")
	require.True(t, ok)
	assert.Equal(t, []string{graph.ScopeChatCreate}, graph.Declared(def.Requirements(Params{ParamUserID1: "a", ParamUserID2: "b"})))
	assert.Equal(t, []string{graph.ScopeChatCreate, graph.ScopeUserReadAll}, graph.Declared(def.Requirements(Params{ParamEmail: "x@y"})))
	assert.Equal(t, []string{graph.ScopeChatCreate, graph.ScopeUserRead}, graph.Declared(def.Requirements(Params{ParamUserID2: "b"})))
}
