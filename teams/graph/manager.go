package graph

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/azcore/policy"
	"github.com/Azure/azure-sdk-for-go/sdk/azidentity"
	"github.com/Azure/azure-sdk-for-go/sdk/azidentity/cache"
	"github.com/viant/afs"
	oaauth "github.com/viant/mcp-teams/auth"
)

// ManagerConfig selects how bearer tokens are obtained.
type ManagerConfig struct {
	// ClientID is the Entra ID application used for the device code flow.
	ClientID string
	// StorageDir holds auth records when SecretsBase is empty.
	StorageDir string
	// SecretsBase is an AFS URL root for auth records (mem://, file://, gs://...).
	SecretsBase string
	// BaseURL overrides the Graph endpoint.
	BaseURL string
	// AccessToken is a host-supplied bearer token; when set no device flow is used.
	AccessToken string
	// UseContextToken prefers the bearer token that arrived with the MCP request.
	UseContextToken bool
}

// Manager provides Graph clients per account alias.
type Manager struct {
	cfg  ManagerConfig
	auth *oaauth.Service

	mu sync.RWMutex
	// pending holds device-code prompts keyed by namespace+alias.
	pending map[string]*pendingAuth
	// clients caches Client instances per namespace+alias+tenant+scopes.
	clients map[string]*Client
	// creds caches device code credentials per namespace+alias until process restart.
	creds map[string]*azidentity.DeviceCodeCredential
}

type pendingAuth struct {
	mu      sync.Mutex
	message string
}

func NewManager(cfg ManagerConfig) *Manager {
	return &Manager{
		cfg:     cfg,
		auth:    oaauth.New(),
		pending: map[string]*pendingAuth{},
		clients: map[string]*Client{},
		creds:   map[string]*azidentity.DeviceCodeCredential{},
	}
}

// Auth returns the token inspection service shared with callers.
func (m *Manager) Auth() *oaauth.Service { return m.auth }

func (m *Manager) namespace(ctx context.Context) string {
	ns, _ := m.auth.Namespace(ctx)
	if ns == "" {
		ns = "default"
	}
	return ns
}

// Client returns a Graph client for account, resolving the credential in order:
// request token (when enabled), host-supplied token, device code flow.
func (m *Manager) Client(ctx context.Context, account Account, scopes []string, prompt func(string)) (*Client, error) {
	if m.cfg.UseContextToken {
		if token, _ := m.auth.Token(ctx); token != "" {
			// per request token: never cached
			return NewClient(&ContextCredential{Auth: m.auth}, m.cfg.BaseURL, scopes)
		}
	}
	ns := m.namespace(ctx)
	key := m.clientKey(ns, account.Alias, account.TenantID, scopes)
	m.mu.RLock()
	if cli, ok := m.clients[key]; ok {
		m.mu.RUnlock()
		return cli, nil
	}
	m.mu.RUnlock()

	var cred azcore.TokenCredential
	if m.cfg.AccessToken != "" {
		cred = &StaticCredential{Token: m.cfg.AccessToken}
	} else {
		dc, err := m.Credential(ctx, account.Alias, account.TenantID, scopes, prompt)
		if err != nil {
			return nil, &Error{Kind: KindUnauthorized, Op: "acquire credential", Message: err.Error(), Err: err}
		}
		cred = dc
	}
	client, err := NewClient(cred, m.cfg.BaseURL, scopes)
	if err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if existing, ok := m.clients[key]; ok {
		return existing, nil
	}
	m.clients[key] = client
	return client, nil
}

// NeedsInteractive checks quickly (non-interactive) whether a device flow is required.
func (m *Manager) NeedsInteractive(ctx context.Context, alias, tenantID string, scopes []string) bool {
	if m.cfg.AccessToken != "" {
		return false
	}
	if m.cfg.UseContextToken {
		if token, _ := m.auth.Token(ctx); token != "" {
			return false
		}
	}
	ns := m.namespace(ctx)
	m.mu.RLock()
	cached := m.creds[ns+"|"+alias]
	m.mu.RUnlock()
	if cached != nil {
		// a cached login may lack consent for these scopes
		return silentToken(ctx, cached, scopes) != nil
	}
	rec, haveRec := m.loadAuthRecord(ctx, ns, alias)
	if !haveRec {
		return true
	}
	cred, err := m.newDeviceCredential(ns, alias, tenantID, rec, true, func(context.Context, azidentity.DeviceCodeMessage) error { return nil })
	if err != nil {
		return true
	}
	return silentToken(ctx, cred, scopes) != nil
}

// silentToken tries to get a token for scopes from cache or refresh token only.
func silentToken(ctx context.Context, cred azcore.TokenCredential, scopes []string) error {
	ctx, cancel := context.WithTimeout(ctx, 500*time.Millisecond)
	defer cancel()
	_, err := cred.GetToken(ctx, policy.TokenRequestOptions{Scopes: scopes})
	return err
}

// Credential returns the cached DeviceCodeCredential for alias, acquiring and caching it if needed.
// With a prompt, a cached credential that cannot silently cover scopes is replaced by a new login
// (incremental consent); without one the cached credential is returned as is and a missing
// consent surfaces from GetToken as an authentication-required error.
func (m *Manager) Credential(ctx context.Context, alias, tenantID string, scopes []string, prompt func(string)) (*azidentity.DeviceCodeCredential, error) {
	if m.cfg.ClientID == "" {
		return nil, errors.New("device login requires a client id")
	}
	key := m.namespace(ctx) + "|" + alias
	m.mu.RLock()
	cached := m.creds[key]
	m.mu.RUnlock()
	if cached != nil && (prompt == nil || silentToken(ctx, cached, scopes) == nil) {
		return cached, nil
	}
	cred, err := m.acquireCredential(ctx, alias, tenantID, scopes, prompt)
	if err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.creds[key] = cred
	return cred, nil
}

// StartDeviceLogin launches the device code authentication in background and reports
// whether a new login was started. The prompt message becomes retrievable via DevicePrompt;
// onDone receives the outcome.
func (m *Manager) StartDeviceLogin(ctx context.Context, alias, tenantID string, scopes []string, onDone func(error)) bool {
	key := m.namespace(ctx) + "|" + alias
	m.mu.Lock()
	if _, ok := m.pending[key]; ok {
		m.mu.Unlock()
		return false
	}
	holder := &pendingAuth{}
	m.pending[key] = holder
	m.mu.Unlock()
	ctx = context.WithoutCancel(ctx)
	go func() {
		defer func() {
			m.mu.Lock()
			delete(m.pending, key)
			m.mu.Unlock()
		}()
		prompt := func(msg string) {
			holder.mu.Lock()
			holder.message = msg
			holder.mu.Unlock()
		}
		_, err := m.Credential(ctx, alias, tenantID, scopes, prompt)
		if err != nil {
			Debugf("device login failed; alias=%s: %v", alias, err)
		}
		if onDone != nil {
			onDone(err)
		}
	}()
	return true
}

// DevicePrompt returns the last device-code prompt message for namespace and alias.
func (m *Manager) DevicePrompt(ns, alias string) string {
	if ns == "" {
		ns = "default"
	}
	m.mu.RLock()
	p, ok := m.pending[ns+"|"+alias]
	m.mu.RUnlock()
	if !ok {
		return ""
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.message
}

// acquireCredential performs the device code flow, silently when a stored auth record still works.
func (m *Manager) acquireCredential(ctx context.Context, alias, tenantID string, scopes []string, prompt func(string)) (*azidentity.DeviceCodeCredential, error) {
	ns := m.namespace(ctx)
	rec, haveRec := m.loadAuthRecord(ctx, ns, alias)
	// always provide a prompt callback so the SDK never prints to stdout
	userPrompt := func(_ context.Context, msg azidentity.DeviceCodeMessage) error {
		if prompt != nil {
			prompt(msg.Message)
		}
		return nil
	}
	cred, err := m.newDeviceCredential(ns, alias, tenantID, rec, haveRec, userPrompt)
	if err != nil {
		return nil, err
	}
	if haveRec && silentToken(ctx, cred, scopes) == nil {
		return cred, nil
	}
	rec, err = cred.Authenticate(ctx, &policy.TokenRequestOptions{Scopes: scopes})
	if err != nil {
		return nil, err
	}
	m.saveAuthRecord(ctx, ns, alias, rec)
	return cred, nil
}

func (m *Manager) newDeviceCredential(ns, alias, tenantID string, rec azidentity.AuthenticationRecord, haveRec bool, userPrompt func(context.Context, azidentity.DeviceCodeMessage) error) (*azidentity.DeviceCodeCredential, error) {
	// persistent token cache (keychain/libsecret/DPAPI)
	aCache, err := cache.New(&cache.Options{Name: "mcp-teams-" + safePart(ns) + "-" + safePart(alias)})
	if err != nil {
		return nil, err
	}
	opts := &azidentity.DeviceCodeCredentialOptions{
		TenantID:   tenantID,
		ClientID:   m.cfg.ClientID,
		Cache:      aCache,
		UserPrompt: userPrompt,
		// GetToken never starts a device flow on its own; only Authenticate does
		DisableAutomaticAuthentication: true,
	}
	if haveRec {
		opts.AuthenticationRecord = rec
	}
	return azidentity.NewDeviceCodeCredential(opts)
}

// authRecordURL locates the auth record for ns+alias under SecretsBase, or StorageDir.
func (m *Manager) authRecordURL(ns, alias string) string {
	name := fmt.Sprintf("%s_%s_auth_record.json", safePart(ns), safePart(alias))
	if base := strings.TrimRight(m.cfg.SecretsBase, "/"); base != "" {
		return base + "/teams/" + name
	}
	if dir := expandPath(m.cfg.StorageDir); dir != "" {
		return filepath.Join(dir, name)
	}
	return ""
}

func (m *Manager) loadAuthRecord(ctx context.Context, ns, alias string) (azidentity.AuthenticationRecord, bool) {
	var rec azidentity.AuthenticationRecord
	URL := m.authRecordURL(ns, alias)
	if URL == "" {
		return rec, false
	}
	rc, err := afs.New().OpenURL(ctx, URL)
	if err != nil || rc == nil {
		return rec, false
	}
	defer rc.Close()
	data, err := io.ReadAll(rc)
	if err != nil || len(data) == 0 {
		return rec, false
	}
	if err := json.Unmarshal(data, &rec); err != nil {
		return rec, false
	}
	return rec, true
}

func (m *Manager) saveAuthRecord(ctx context.Context, ns, alias string, rec azidentity.AuthenticationRecord) {
	URL := m.authRecordURL(ns, alias)
	if URL == "" {
		return
	}
	data, err := json.Marshal(rec)
	if err != nil {
		return
	}
	if err := afs.New().Upload(ctx, URL, 0o600, bytes.NewReader(data)); err != nil {
		Debugf("failed to save auth record; ns=%s alias=%s: %v", ns, alias, err)
		return
	}
	Debugf("saved auth record; ns=%s alias=%s url=%s", ns, alias, URL)
}

// clientKey builds a stable cache key from namespace, alias, tenantID, and normalized scopes.
func (m *Manager) clientKey(ns, alias, tenantID string, scopes []string) string {
	norm := make([]string, 0, len(scopes))
	for _, s := range scopes {
		if s == "" {
			continue
		}
		norm = append(norm, strings.ToLower(s))
	}
	sort.Strings(norm)
	if ns == "" {
		ns = "default"
	}
	return ns + "|" + alias + "|" + tenantID + "|" + strings.Join(norm, ",")
}

func safePart(s string) string {
	s = strings.TrimSpace(os.ExpandEnv(s))
	repl := strings.NewReplacer("/", "_", "\\", "_", ":", "_", "|", "_", " ", "_", "@", "_")
	return repl.Replace(s)
}

func expandPath(p string) string {
	if p == "" {
		return p
	}
	p = os.ExpandEnv(p)
	if strings.HasPrefix(p, "~") {
		if home, err := os.UserHomeDir(); err == nil {
			if p == "~" {
				p = home
			} else if strings.HasPrefix(p, "~/") {
				p = filepath.Join(home, p[2:])
			}
		}
	}
	return p
}

func teamsDebug() bool {
	v := strings.ToLower(strings.TrimSpace(os.Getenv("TEAMS_MCP_DEBUG")))
	return v != "" && v != "0" && v != "false"
}

// Debugf logs when TEAMS_MCP_DEBUG is set.
func Debugf(format string, args ...interface{}) {
	if teamsDebug() {
		log.Printf("[teams] "+format, args...)
	}
}
