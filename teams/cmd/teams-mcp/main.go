package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"time"

	flags "github.com/jessevdk/go-flags"
	"github.com/viant/mcp-protocol/authorization"
	oauthmeta "github.com/viant/mcp-protocol/oauth2/meta"
	"github.com/viant/mcp-protocol/schema"
	mcpsrv "github.com/viant/mcp/server"
	serverauth "github.com/viant/mcp/server/auth"
	"github.com/viant/scy"
	"github.com/viant/scy/auth/flow"
	"github.com/viant/scy/cred"
	_ "github.com/viant/scy/kms/blowfish"

	"github.com/viant/mcp-teams/teams/action"
	"github.com/viant/mcp-teams/teams/graph"
	"github.com/viant/mcp-teams/teams/mcp"
	"github.com/viant/mcp-teams/teams/service"
)

// Options defines CLI flags for the Teams MCP server.
type Options struct {
	HTTPAddr        string   `short:"a" long:"addr" description:"HTTP listen address (empty disables HTTP)"`
	ClientID        string   `long:"client-id" description:"Entra ID application (client) ID"`
	TenantID        string   `long:"tenant-id" description:"Tenant ID or 'organizations'"`
	Storage         string   `long:"storage" description:"Directory for auth records when secretsBase is not set"`
	SecretsBase     string   `long:"secretsBase" description:"AFS/scy base URL for persisting auth records (e.g., mem://localhost/mcp-teams)"`
	AzureRef        string   `long:"azure-ref" description:"scy EncodedResource for Azure cred (e.g., gcp://...|blowfish://default)"`
	Oauth2Config    string   `short:"o" long:"oauth2config" description:"Path to JSON OAuth2 configuration file (scy EncodedResource)"`
	UseIdToken      bool     `short:"i" long:"use-id-token" description:"Use ID token (instead of access token) for identity scoping"`
	PublicBaseURL   string   `long:"public-base-url" description:"Public base URL for device login pages"`
	AccessToken     string   `long:"access-token" description:"Graph bearer token supplied by the host; disables device login"`
	UseContextToken bool     `long:"use-context-token" description:"Call Graph with the bearer token of the MCP request"`
	GraphURL        string   `long:"graph-url" description:"Microsoft Graph base URL"`
	SkipScopeCheck  bool     `long:"skip-scope-check" description:"Defer permission checks to Microsoft Graph"`
	UseData         bool     `long:"use-data" description:"Return structured tool results instead of text"`
	Action          string   `long:"action" description:"Run a single action and print its JSON result"`
	Params          []string `short:"p" long:"param" description:"Action parameter as key=value (repeatable)"`
	Alias           string   `long:"alias" default:"default" description:"Account alias for single-action mode"`
}

func main() {
	var opts Options
	if _, err := flags.NewParser(&opts, flags.Default).Parse(); err != nil {
		os.Exit(2)
	}
	if opts.SecretsBase == "" && opts.Storage == "" {
		opts.Storage = defaultStorageDir()
	}
	if opts.TenantID == "" {
		opts.TenantID = envOr("TEAMS_TENANT_ID", "organizations")
	}
	if opts.ClientID == "" {
		opts.ClientID = envOr("TEAMS_CLIENT_ID", "")
	}
	if opts.AzureRef == "" {
		opts.AzureRef = envOr("TEAMS_AZURE_REF", "")
	}
	if opts.AccessToken == "" {
		opts.AccessToken = envOr("TEAMS_ACCESS_TOKEN", "")
	}
	if opts.ClientID == "" && opts.AzureRef == "" && opts.AccessToken == "" && !opts.UseContextToken {
		log.Fatal("missing --client-id/TEAMS_CLIENT_ID (or provide --azure-ref, --access-token or --use-context-token)")
	}

	// If azure-ref provided, derive missing values from secret (clientID, tenantID).
	if opts.AzureRef != "" {
		res := scy.EncodedResource(opts.AzureRef).Decode(context.Background(), cred.Azure{})
		sec, err := scy.New().Load(context.Background(), res)
		if err != nil {
			log.Fatalf("failed to load azure-ref secret: %v", err)
		}
		az, ok := sec.Target.(*cred.Azure)
		if !ok {
			log.Fatal("azure-ref secret is not of type cred.Azure (expected JSON with ClientID, TenantID)")
		}
		if opts.ClientID == "" && az.ClientID != "" {
			opts.ClientID = az.ClientID
		}
		if (opts.TenantID == "" || opts.TenantID == "organizations") && az.TenantID != "" {
			opts.TenantID = az.TenantID
		}
	}

	svc := service.NewService(&service.Config{
		ClientID:        opts.ClientID,
		TenantID:        opts.TenantID,
		StorageDir:      opts.Storage,
		SecretsBase:     strings.Replace(opts.SecretsBase, "$HOME", os.Getenv("HOME"), 1),
		CallbackBaseURL: callbackBaseURL(opts),
		UseData:         opts.UseData,
		GraphURL:        opts.GraphURL,
		AccessToken:     opts.AccessToken,
		UseContextToken: opts.UseContextToken,
		SkipScopeCheck:  opts.SkipScopeCheck,
	})

	if opts.Action != "" {
		os.Exit(runAction(svc, opts, os.Stdout, os.Stderr))
	}
	if opts.HTTPAddr == "" {
		log.Fatal("either --addr or --action is required")
	}

	options := []mcpsrv.Option{
		mcpsrv.WithImplementation(schema.Implementation{Name: "mcp-teams", Version: "0.1.0"}),
		mcpsrv.WithNewHandler(mcp.NewHandler(svc)),
		mcpsrv.WithEndpointAddress(opts.HTTPAddr),
		mcpsrv.WithRootRedirect(true),
		mcpsrv.WithStreamableURI("/mcp"),
		mcpsrv.WithCustomHTTPHandler("/teams/auth/device/", svc.DeviceHandler()),
		mcpsrv.WithCustomHTTPHandler("/teams/auth/pending", svc.PendingListHandler()),
		mcpsrv.WithCustomHTTPHandler("/teams/auth/pending/clear", svc.PendingClearHandler()),
	}

	// Optional server-level OAuth2
	if v := strings.TrimSpace(opts.Oauth2Config); v != "" {
		res := scy.EncodedResource(v).Decode(context.Background(), cred.Oauth2Config{})
		sec, err := scy.New().Load(context.Background(), res)
		if err != nil {
			log.Fatalf("failed to load oauth2config: %v", err)
		}
		oc, ok := sec.Target.(*cred.Oauth2Config)
		if !ok {
			log.Fatalf("invalid oauth2config secret type")
		}
		authPolicy := &authorization.Policy{
			Global: &authorization.Authorization{
				UseIdToken: opts.UseIdToken,
				ProtectedResourceMetadata: &oauthmeta.ProtectedResourceMetadata{
					AuthorizationServers: []string{oc.Config.Endpoint.AuthURL},
				}},
			ExcludeURI: "/sse,/teams/auth/",
		}
		bff := &serverauth.BackendForFrontend{Client: &oc.Config, AuthorizationExchangeHeader: flow.AuthorizationExchangeHeader}
		authSvc, err := serverauth.New(&serverauth.Config{Policy: authPolicy, BackendForFrontend: bff})
		if err != nil {
			log.Fatalf("failed to init auth service: %v", err)
		}
		options = append(options,
			mcpsrv.WithAuthorizer(authSvc.Middleware),
			mcpsrv.WithProtectedResourcesHandler(authSvc.ProtectedResourcesHandler),
		)
	}

	server, err := mcpsrv.New(options...)
	if err != nil {
		log.Fatal(err)
	}
	// Enable streamable HTTP so /mcp endpoint is active
	server.UseStreamableHTTP(true)
	if err := server.HTTP(context.Background(), opts.HTTPAddr).ListenAndServe(); err != nil {
		log.Fatal(err)
	}
}

// runAction executes opts.Action once, printing the JSON result to stdout or the failure to stderr.
func runAction(svc *service.Service, opts Options, stdout, stderr io.Writer) int {
	params, err := parseParams(opts.Params)
	if err != nil {
		return printFailure(stderr, err)
	}
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()
	req := &action.Request{Action: action.Name(opts.Action), Params: params, Account: graph.Account{Alias: opts.Alias}}
	// no HTTP server in this mode: show the device prompt itself
	notify := func(string) bool {
		go func() {
			deadline := time.Now().Add(30 * time.Second)
			for time.Now().Before(deadline) {
				if msg := svc.GraphManager().DevicePrompt("", opts.Alias); msg != "" {
					_, _ = fmt.Fprintln(stderr, msg)
					return
				}
				time.Sleep(200 * time.Millisecond)
			}
		}()
		return true
	}
	result, err := svc.Execute(ctx, req, notify)
	if err != nil {
		return printFailure(stderr, err)
	}
	enc := json.NewEncoder(stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(result); err != nil {
		return printFailure(stderr, err)
	}
	return 0
}

func parseParams(pairs []string) (action.Params, error) {
	ret := action.Params{}
	for _, pair := range pairs {
		key, value, ok := strings.Cut(pair, "=")
		if !ok || strings.TrimSpace(key) == "" {
			return nil, graph.InvalidInput("params", "expected key=value, got %q", pair)
		}
		ret[strings.TrimSpace(key)] = value
	}
	return ret, nil
}

func printFailure(w io.Writer, err error) int {
	payload := map[string]string{"kind": string(graph.KindOf(err)), "message": err.Error()}
	data, _ := json.MarshalIndent(payload, "", "  ")
	_, _ = fmt.Fprintln(w, string(data))
	return 1
}

func callbackBaseURL(opts Options) string {
	if v := strings.TrimRight(strings.TrimSpace(opts.PublicBaseURL), "/"); v != "" {
		return v
	}
	baseURL := "http://localhost"
	if opts.HTTPAddr != "" {
		hostport := opts.HTTPAddr
		if hostport[0] == ':' {
			hostport = "localhost" + hostport
		}
		baseURL = "http://" + hostport
	}
	return baseURL
}

func envOr(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

func defaultStorageDir() string {
	dir, _ := os.UserConfigDir()
	if dir == "" {
		dir = "."
	}
	return filepath.Join(dir, "secret", "mcp-teams")
}
