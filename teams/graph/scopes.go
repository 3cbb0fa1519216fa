package graph

import (
	"sort"
	"strings"
)

// Permission strings used by the Teams actions.
const (
	ScopeTeamReadBasicAll    = "Team.ReadBasic.All"
	ScopeTeamMemberReadAll   = "TeamMember.Read.All"
	ScopeChannelReadBasicAll = "Channel.ReadBasic.All"
	ScopeUserRead            = "User.Read"
	ScopeUserReadAll         = "User.Read.All"
	ScopeChannelMessageSend  = "ChannelMessage.Send"
	ScopeChannelMessageRead  = "ChannelMessage.Read.All"
	ScopeTeamCreate          = "Team.Create"
	ScopeChatCreate          = "Chat.Create"
	ScopeChatMessageSend     = "ChatMessage.Send"
	ScopeChatRead            = "Chat.Read"
	ScopeDefault             = "https://graph.microsoft.com/.default"
	graphResourcePrefix      = "https://graph.microsoft.com/"
)

// Requirement is one permission an operation needs. Any of Accepts grants it; Declared is
// the scope requested from the identity platform.
type Requirement struct {
	Declared string
	Accepts  []string
}

// broader lists permissions that imply the declared one.
var broader = map[string][]string{
	ScopeTeamReadBasicAll:    {"TeamSettings.Read.All", "TeamSettings.ReadWrite.All", "Team.ReadWrite.All", "Directory.Read.All", "Directory.ReadWrite.All"},
	ScopeTeamMemberReadAll:   {"TeamMember.ReadWrite.All", "TeamMember.ReadWriteNonOwnerRole.All", "Group.Read.All", "Group.ReadWrite.All", "Directory.Read.All"},
	ScopeChannelReadBasicAll: {"ChannelSettings.Read.All", "ChannelSettings.ReadWrite.All", "Group.Read.All", "Directory.Read.All"},
	ScopeUserRead:            {"User.ReadWrite", "User.ReadBasic.All", "User.Read.All", "User.ReadWrite.All", "Directory.Read.All", "Directory.ReadWrite.All"},
	ScopeUserReadAll:         {"User.ReadBasic.All", "User.ReadWrite.All", "Directory.Read.All", "Directory.ReadWrite.All"},
	ScopeChannelMessageSend:  {"Group.ReadWrite.All", "Teamwork.Migrate.All"},
	ScopeChannelMessageRead:  {"ChannelMessage.ReadWrite", "Group.Read.All", "Group.ReadWrite.All"},
	ScopeTeamCreate:          {"Group.ReadWrite.All", "Directory.ReadWrite.All"},
	ScopeChatCreate:          {"Chat.ReadWrite", "Chat.ReadWrite.All", "Teamwork.Migrate.All"},
	ScopeChatMessageSend:     {"Chat.ReadWrite", "Chat.ReadWrite.All"},
	ScopeChatRead:            {"Chat.ReadWrite", "Chat.Read.All", "Chat.ReadWrite.All", "ChatMessage.Read", "ChatMessage.Read.All"},
}

// Require builds requirements for the declared scopes.
func Require(declared ...string) []Requirement {
	ret := make([]Requirement, 0, len(declared))
	for _, d := range declared {
		ret = append(ret, Requirement{Declared: d, Accepts: append([]string{d}, broader[d]...)})
	}
	return ret
}

// Declared returns the declared scope names of reqs, de-duplicated and sorted.
func Declared(reqs []Requirement) []string {
	seen := map[string]bool{}
	var ret []string
	for _, r := range reqs {
		if seen[r.Declared] {
			continue
		}
		seen[r.Declared] = true
		ret = append(ret, r.Declared)
	}
	sort.Strings(ret)
	return ret
}

// Missing returns declared scopes in reqs that granted does not satisfy.
// Granted entries may carry the resource prefix (https://graph.microsoft.com/Chat.Create).
func Missing(reqs []Requirement, granted []string) []string {
	have := map[string]bool{}
	for _, g := range granted {
		g = strings.TrimPrefix(g, graphResourcePrefix)
		have[strings.ToLower(g)] = true
	}
	var missing []string
	for _, r := range reqs {
		ok := false
		for _, a := range r.Accepts {
			if have[strings.ToLower(a)] {
				ok = true
				break
			}
		}
		if !ok {
			missing = append(missing, r.Declared)
		}
	}
	return missing
}

// TokenScopes qualifies declared scopes with the Graph resource, as azidentity expects.
func TokenScopes(reqs []Requirement) []string {
	declared := Declared(reqs)
	if len(declared) == 0 {
		return DefaultScopes()
	}
	ret := make([]string, 0, len(declared))
	for _, d := range declared {
		ret = append(ret, graphResourcePrefix+d)
	}
	return ret
}

// DefaultScopes requests whatever the app registration was consented for.
func DefaultScopes() []string {
	return []string{ScopeDefault}
}
