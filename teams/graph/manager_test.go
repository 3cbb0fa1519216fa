package graph

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/azcore/policy"
	"github.com/Azure/azure-sdk-for-go/sdk/azidentity"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/viant/mcp-protocol/authorization"

	"github.com/viant/mcp-teams/teams/graph/graphtest"
)

func TestClientCacheKeyNormalization(t *testing.T) {
	m := NewManager(ManagerConfig{})
	k1 := m.clientKey("ns", "aliasA", "tenantX", []string{"Scope2", "scope1", ""})
	k2 := m.clientKey("ns", "aliasA", "tenantX", []string{"scope1", "scope2"})
	assert.Equal(t, k1, k2)
	assert.Equal(t, "default|a|t|", m.clientKey("", "a", "t", nil))
}

func TestManager_ClientReturnsCachedInstance(t *testing.T) {
	m := NewManager(ManagerConfig{AccessToken: "static"})
	account := Account{Alias: "acc", TenantID: "ten"}
	first, err := m.Client(context.Background(), account, []string{"s1", "s2"}, nil)
	require.NoError(t, err)
	second, err := m.Client(context.Background(), account, []string{"s2", "s1"}, nil)
	require.NoError(t, err)
	assert.Same(t, first, second)
	assert.False(t, m.NeedsInteractive(context.Background(), "acc", "ten", nil))
}

func TestManager_ContextToken(t *testing.T) {
	srv := graphtest.New()
	defer srv.Close()
	srv.JSON(http.MethodGet, "/me", http.StatusOK, map[string]interface{}{"id": "me-1", "displayName": "Me"})
	m := NewManager(ManagerConfig{BaseURL: srv.URL, UseContextToken: true})
	ctx := context.WithValue(context.Background(), authorization.TokenKey, &authorization.Token{Token: "request-token"})

	client, err := m.Client(ctx, Account{Alias: "acc"}, nil, nil)
	require.NoError(t, err)
	me, err := client.Me(ctx)
	require.NoError(t, err)
	assert.Equal(t, "me-1", me.ID)
	assert.Equal(t, "Bearer request-token", srv.Calls()[0].Auth)
	assert.False(t, m.NeedsInteractive(ctx, "acc", "", nil))
}

func TestManager_DeviceLoginNeedsClientID(t *testing.T) {
	m := NewManager(ManagerConfig{StorageDir: t.TempDir()})
	_, err := m.Client(context.Background(), Account{Alias: "acc"}, nil, nil)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrUnauthorized))
	assert.Equal(t, "", m.DevicePrompt("", "acc"))
}

func TestManager_AuthRecordURL(t *testing.T) {
	m := NewManager(ManagerConfig{SecretsBase: "mem://localhost/mcp-teams/"})
	assert.Equal(t, "mem://localhost/mcp-teams/teams/ns_x.com_work_auth_record.json", m.authRecordURL("ns@x.com", "work"))
	m = NewManager(ManagerConfig{StorageDir: "/tmp/teams"})
	assert.Equal(t, "/tmp/teams/default_a_b_auth_record.json", m.authRecordURL("default", "a/b"))
	assert.Equal(t, "", NewManager(ManagerConfig{}).authRecordURL("default", "a"))
}

func TestManager_StartDeviceLogin(t *testing.T) {
	m := NewManager(ManagerConfig{})
	done := make(chan error, 1)
	started := m.StartDeviceLogin(context.Background(), "acc", "organizations", DefaultScopes(), func(err error) { done <- err })
	require.True(t, started)
	assert.Error(t, <-done)
}

type stubCredential struct {
	err error
}

func (s *stubCredential) GetToken(context.Context, policy.TokenRequestOptions) (azcore.AccessToken, error) {
	if s.err != nil {
		return azcore.AccessToken{}, s.err
	}
	return azcore.AccessToken{Token: "t", ExpiresOn: time.Now().Add(time.Hour)}, nil
}

func TestSilentToken(t *testing.T) {
	assert.NoError(t, silentToken(context.Background(), &stubCredential{}, []string{ScopeChatRead}))
	consent := errors.New("AADSTS65001: consent required")
	assert.Equal(t, consent, silentToken(context.Background(), &stubCredential{err: consent}, []string{ScopeChatRead}))
}

func TestManager_CachedCredentialWithoutConsent(t *testing.T) {
	m := NewManager(ManagerConfig{ClientID: "client", StorageDir: t.TempDir()})
	cred, err := azidentity.NewDeviceCodeCredential(&azidentity.DeviceCodeCredentialOptions{
		ClientID:                       "client",
		TenantID:                       "organizations",
		DisableInstanceDiscovery:       true,
		DisableAutomaticAuthentication: true,
	})
	require.NoError(t, err)
	m.creds["default|acc"] = cred

	// no signed-in account behind the cached credential: a login is still needed
	assert.True(t, m.NeedsInteractive(context.Background(), "acc", "organizations", []string{ScopeChannelMessageSend}))

	// without a prompt the cached credential is used as is
	got, err := m.Credential(context.Background(), "acc", "organizations", []string{ScopeChannelMessageSend}, nil)
	require.NoError(t, err)
	assert.Same(t, cred, got)
}
