package graph

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMissing(t *testing.T) {
	var testCases = []struct {
		description string
		required    []string
		granted     []string
		expect      []string
	}{
		{description: "exact grant", required: []string{ScopeChatCreate}, granted: []string{"Chat.Create"}, expect: nil},
		{description: "case insensitive", required: []string{ScopeChatCreate}, granted: []string{"chat.create"}, expect: nil},
		{description: "broader grant", required: []string{ScopeChatCreate}, granted: []string{"Chat.ReadWrite"}, expect: nil},
		{description: "resource qualified", required: []string{ScopeTeamCreate}, granted: []string{"https://graph.microsoft.com/Team.Create"}, expect: nil},
		{description: "missing one", required: []string{ScopeUserReadAll, ScopeChatCreate, ScopeChatMessageSend}, granted: []string{"User.Read.All", "Chat.Create"}, expect: []string{ScopeChatMessageSend}},
		{description: "directory read implies own profile", required: []string{ScopeUserRead}, granted: []string{"User.Read.All"}, expect: nil},
		{description: "own profile is not directory read", required: []string{ScopeUserReadAll}, granted: []string{"User.Read"}, expect: []string{ScopeUserReadAll}},
		{description: "nothing granted", required: []string{ScopeTeamReadBasicAll}, granted: nil, expect: []string{ScopeTeamReadBasicAll}},
	}
	for _, testCase := range testCases {
		actual := Missing(Require(testCase.required...), testCase.granted)
		assert.Equal(t, testCase.expect, actual, testCase.description)
	}
}

func TestTokenScopes(t *testing.T) {
	reqs := Require(ScopeChatMessageSend, ScopeChatCreate, ScopeChatCreate)
	assert.Equal(t, []string{"Chat.Create", "ChatMessage.Send"}, Declared(reqs))
	assert.Equal(t, []string{"https://graph.microsoft.com/Chat.Create", "https://graph.microsoft.com/ChatMessage.Send"}, TokenScopes(reqs))
	assert.Equal(t, DefaultScopes(), TokenScopes(nil))
}
