package mcp

import (
	"github.com/viant/scy"
)

// Config controls Teams MCP server behaviour and authentication.
type Config struct {
	// Entra ID application (client) ID used for the device code flow.
	ClientID string `json:"clientID"`
	// Tenant ID or "organizations"/"common".
	TenantID string `json:"tenantID"`

	// StorageDir is where auth records are persisted per account alias when SecretsBase is empty.
	StorageDir string `json:"storageDir,omitempty"`
	// SecretsBase is an AFS base URL for auth records, e.g. mem://localhost/mcp-teams.
	SecretsBase string `json:"secretsBase,omitempty"`

	// CallbackBaseURL is used to generate absolute URLs for device login pages.
	// Example: http://localhost:7790
	CallbackBaseURL string `json:"callbackBaseURL,omitempty"`

	// If true, return tool results in the `data` field instead of `text`.
	UseData bool `json:"useData,omitempty"`

	// AzureRef optionally points to an Azure OAuth2 client config stored as a scy resource.
	// It uses EncodedResource syntax: "<URL>|<kmsKey>", where the key part is optional.
	// Examples:
	//  - file-based:    "~/.secret/azure.yaml|blowfish://default"
	//  - GCP secret:    "gcp://secretmanager/projects/myproj/secrets/azure-cred|blowfish://default"
	// The referenced content should unmarshal into github.com/viant/scy/cred.Azure.
	AzureRef scy.EncodedResource `json:"azureRef,omitempty"`

	// GraphURL overrides https://graph.microsoft.com/v1.0.
	GraphURL string `json:"graphURL,omitempty"`
	// AccessToken is a host-supplied Graph bearer token; disables the device code flow.
	AccessToken string `json:"-"`
	// UseContextToken uses the bearer token of the MCP request for Graph calls.
	UseContextToken bool `json:"useContextToken,omitempty"`
	// SkipScopeCheck defers every permission decision to Graph.
	SkipScopeCheck bool `json:"skipScopeCheck,omitempty"`
	// LoginWaitSec bounds how long a tool call waits for a device login to finish (default 120).
	LoginWaitSec int `json:"loginWaitSec,omitempty"`
}
