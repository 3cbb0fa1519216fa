package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"html"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/viant/scy"
	"github.com/viant/scy/cred"

	oa "github.com/viant/mcp-teams/auth"
	"github.com/viant/mcp-teams/teams/action"
	"github.com/viant/mcp-teams/teams/graph"
)

const (
	defaultAlias     = "default"
	defaultLoginWait = 2 * time.Minute
	promptWait       = 5 * time.Second
	devicePath       = "/teams/auth/device/"
	pendingPath      = "/teams/auth/pending"
	pendingClearPath = "/teams/auth/pending/clear"
)

var errLoginCancelled = errors.New("device login cancelled")

var (
	deviceURLExpr  = regexp.MustCompile(`https?://[^\s]+`)
	deviceCodeExpr = regexp.MustCompile(`(?i)code\s+([A-Z0-9-]+)`)
)

// Service wires the graph manager, the action adapter and device login bookkeeping.
type Service struct {
	graphMgr  *graph.Manager
	adapter   *action.Adapter
	baseURL   string
	useText   bool
	pending   *PendingAuths
	auth      *oa.Service
	tenantID  string
	clientID  string
	loginWait time.Duration
}

func NewService(cfg *Config) *Service {
	if cfg == nil {
		cfg = &Config{}
	}
	// Optionally resolve Azure OAuth2 client from scy EncodedResource.
	var az *cred.Azure
	if cfg.AzureRef != "" {
		res := cfg.AzureRef.Decode(context.Background(), cred.Azure{})
		if sec, err := scy.New().Load(context.Background(), res); err == nil {
			if v, ok := sec.Target.(*cred.Azure); ok {
				az = v
			}
		} else {
			graph.Debugf("failed to load azure ref: %v", err)
		}
	}
	clientID, tenantID := cfg.ClientID, cfg.TenantID
	if az != nil && az.ClientID != "" {
		clientID = az.ClientID
	}
	if az != nil && tenantID == "" {
		tenantID = az.TenantID
	}
	loginWait := defaultLoginWait
	if cfg.LoginWaitSec > 0 {
		loginWait = time.Duration(cfg.LoginWaitSec) * time.Second
	}
	mgr := graph.NewManager(graph.ManagerConfig{
		ClientID:        clientID,
		StorageDir:      cfg.StorageDir,
		SecretsBase:     cfg.SecretsBase,
		BaseURL:         cfg.GraphURL,
		AccessToken:     cfg.AccessToken,
		UseContextToken: cfg.UseContextToken,
	})
	clients := func(ctx context.Context, account graph.Account, scopes []string, prompt func(string)) (action.Graph, error) {
		client, err := mgr.Client(ctx, account, scopes, prompt)
		if err != nil {
			return nil, err
		}
		return client, nil
	}
	return &Service{
		graphMgr:  mgr,
		adapter:   action.NewAdapter(clients, !cfg.SkipScopeCheck),
		baseURL:   strings.TrimRight(cfg.CallbackBaseURL, "/"),
		useText:   !cfg.UseData,
		pending:   NewPendingAuths(),
		auth:      mgr.Auth(),
		tenantID:  tenantID,
		clientID:  clientID,
		loginWait: loginWait,
	}
}

// Execute runs one action, completing a device login first when the account has no usable credential.
// notify receives the device login page URL once a login is started and reports whether the user
// was reached; when it was not, Execute fails fast with the page URL instead of waiting.
func (s *Service) Execute(ctx context.Context, req *action.Request, notify func(pageURL string) bool) (*action.Result, error) {
	if req == nil {
		return nil, graph.InvalidInput("execute", "request is required")
	}
	if strings.TrimSpace(req.Account.Alias) == "" {
		req.Account.Alias = defaultAlias
	}
	if req.Account.TenantID == "" {
		req.Account.TenantID = s.tenantID
	}
	if def, ok := action.Lookup(req.Action); ok && def.Validate(req.Params) == nil {
		scopes := graph.TokenScopes(def.Requirements(req.Params))
		if err := s.ensureLogin(ctx, req.Account, scopes, notify); err != nil {
			return nil, err
		}
	}
	return s.adapter.Execute(ctx, req, nil)
}

// ensureLogin starts (or joins) a device login for account and waits for it to finish.
func (s *Service) ensureLogin(ctx context.Context, account graph.Account, scopes []string, notify func(string) bool) error {
	if !s.graphMgr.NeedsInteractive(ctx, account.Alias, account.TenantID, scopes) {
		return nil
	}
	ns := s.namespace(ctx)
	pend, created := s.pending.FindOrPut(ns, account.Alias, func() *PendingAuth {
		return NewPendingAuth(uuid.New().String(), ns, account.Alias, account.TenantID)
	})
	if created {
		id := pend.UUID
		if !s.graphMgr.StartDeviceLogin(ctx, account.Alias, account.TenantID, scopes, func(err error) { s.pending.Complete(id, err) }) {
			graph.Debugf("device login already running; ns=%s alias=%s", ns, account.Alias)
		}
	}
	pageURL := s.DevicePageURL(pend.UUID)
	wait := s.loginWait
	if notify == nil || !notify(pageURL) {
		wait = promptWait
	}
	timer := time.NewTimer(wait)
	defer timer.Stop()
	select {
	case <-pend.Done():
		if err := pend.Err(); err != nil {
			return graph.Unauthorized("device login", "sign-in for %q failed: %v", account.Alias, err)
		}
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		hint := s.graphMgr.DevicePrompt(ns, account.Alias)
		if hint != "" {
			hint = " (" + hint + ")"
		}
		return graph.Unauthorized("device login", "sign-in for %q is pending: open %s%s, complete it and retry", account.Alias, pageURL, hint)
	}
}

func (s *Service) namespace(ctx context.Context) string {
	ns, _ := s.auth.Namespace(ctx)
	if ns == "" {
		ns = "default"
	}
	return ns
}

// DevicePageURL returns the device login page of a pending auth.
func (s *Service) DevicePageURL(uuid string) string {
	base := s.baseURL
	if base == "" {
		base = "http://localhost"
	}
	return base + devicePath + uuid
}

func (s *Service) RegisterHTTP(mux *http.ServeMux) {
	mux.HandleFunc(devicePath, s.DeviceHandler())
	mux.HandleFunc(pendingPath, s.PendingListHandler())
	mux.HandleFunc(pendingClearPath, s.PendingClearHandler())
}

// DeviceHandler serves the device login page for a pending auth UUID.
func (s *Service) DeviceHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		// URL: /teams/auth/device/{uuid}
		parts := strings.Split(strings.Trim(r.URL.Path, "/"), "/")
		if len(parts) != 4 { // teams auth device {uuid}
			http.Error(w, "invalid path", http.StatusBadRequest)
			return
		}
		pend, ok := s.pending.Get(parts[3])
		if !ok {
			http.Error(w, "no pending auth", http.StatusNotFound)
			return
		}
		msg := s.graphMgr.DevicePrompt(pend.Namespace, pend.Alias)
		if msg == "" {
			deadline := time.Now().Add(8 * time.Second)
			for msg == "" && time.Now().Before(deadline) {
				select {
				case <-r.Context().Done():
					return
				case <-time.After(200 * time.Millisecond):
				}
				msg = s.graphMgr.DevicePrompt(pend.Namespace, pend.Alias)
			}
		}
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		if msg == "" {
			_, _ = fmt.Fprint(w, buildWaitingForDeviceHTML())
			return
		}
		_, _ = fmt.Fprint(w, buildDeviceLoginHTML(msg))
	}
}

// buildDeviceLoginHTML converts the Azure device prompt into a clickable HTML with copyable code.
func buildDeviceLoginHTML(msg string) string {
	url := "https://microsoft.com/devicelogin"
	code := ""
	if m := deviceURLExpr.FindString(msg); m != "" {
		url = m
	}
	if m := deviceCodeExpr.FindStringSubmatch(msg); len(m) == 2 {
		code = m[1]
	}
	escURL := html.EscapeString(url)
	escCode := html.EscapeString(code)
	if escCode == "" {
		return fmt.Sprintf(`<html><body>
<h3>Sign in to Microsoft Teams</h3>
<p>Open <a href="%[1]s" target="_blank" rel="noopener noreferrer">%[1]s</a> and follow the instructions.</p>
<pre>%[2]s</pre>
<p>Keep this tab open; return to your assistant after completing sign-in.</p>
</body></html>`, escURL, html.EscapeString(msg))
	}
	return fmt.Sprintf(`<html><body style="font-family: -apple-system, Segoe UI, Roboto, sans-serif;">
<h3>Sign in to Microsoft Teams</h3>
<p>Click to open: <a href="%[1]s" target="_blank" rel="noopener noreferrer">%[1]s</a></p>
<p>Then enter this code:</p>
<p style="font-size: 1.4em; font-weight: 600;"><code>%[2]s</code> <button onclick="navigator.clipboard.writeText('%[2]s')">Copy</button></p>
<p>Keep this tab open; return to your assistant after completing sign-in.</p>
</body></html>`, escURL, escCode)
}

func buildWaitingForDeviceHTML() string {
	url := html.EscapeString("https://microsoft.com/devicelogin")
	return fmt.Sprintf(`<!doctype html>
<html><head>
<meta http-equiv="refresh" content="2">
<meta charset="utf-8">
<title>Sign in to Microsoft Teams</title>
<style>body{font-family:-apple-system,Segoe UI,Roboto,sans-serif;margin:24px}</style>
</head><body>
<h3>Sign in to Microsoft Teams</h3>
<p>Preparing device login, this page refreshes automatically.</p>
<p>If it takes too long, you can open <a href="%[1]s" target="_blank" rel="noopener noreferrer">%[1]s</a> and follow the instructions.</p>
<p>Keep this tab open; return to your assistant after completing sign-in.</p>
</body></html>`, url)
}

// requestNamespace resolves ?namespace=, falling back to the request token identity.
func (s *Service) requestNamespace(r *http.Request) string {
	if ns := r.URL.Query().Get("namespace"); ns != "" {
		return ns
	}
	if v, err := s.auth.Namespace(r.Context()); err == nil {
		return v
	}
	return ""
}

// PendingListHandler returns JSON of pending auths for a namespace.
func (s *Service) PendingListHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		ns := s.requestNamespace(r)
		if ns == "" {
			http.Error(w, "namespace required", http.StatusBadRequest)
			return
		}
		list := s.pending.ListNamespace(ns)
		type row struct {
			UUID      string    `json:"uuid"`
			Alias     string    `json:"alias"`
			TenantID  string    `json:"tenantId,omitempty"`
			Namespace string    `json:"namespace"`
			Started   time.Time `json:"started"`
			URL       string    `json:"url"`
		}
		out := make([]row, 0, len(list))
		for _, v := range list {
			out = append(out, row{UUID: v.UUID, Alias: v.Alias, TenantID: v.TenantID, Namespace: v.Namespace, Started: v.Started, URL: s.DevicePageURL(v.UUID)})
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(out)
	}
}

// PendingClearHandler clears all pending auths for a namespace.
func (s *Service) PendingClearHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		ns := s.requestNamespace(r)
		if ns == "" {
			http.Error(w, "namespace required", http.StatusBadRequest)
			return
		}
		cleared := s.pending.ClearNamespace(ns)
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{"cleared": len(cleared), "uuids": cleared})
	}
}

func (s *Service) GraphManager() *graph.Manager { return s.graphMgr }
func (s *Service) UseTextField() bool           { return s.useText }
func (s *Service) BaseURL() string              { return s.baseURL }
func (s *Service) Pending() *PendingAuths       { return s.pending }
func (s *Service) TenantID() string             { return s.tenantID }
func (s *Service) ClientID() string             { return s.clientID }
