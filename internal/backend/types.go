package backend

import (
	"connectorctl/pkg/authconfig"
)

// Kind is the protocol a connector speaks.
type Kind string

const (
	KindMCP Kind = "mcp"
	KindA2A Kind = "a2a"
)

// Connector is a registered MCP server or A2A agent.
type Connector struct {
	ID          string              `json:"id"`
	Name        string              `json:"name"`
	Kind        Kind                `json:"kind"`
	URL         string              `json:"url"`
	Description string              `json:"description,omitempty"`
	Auth        authconfig.Envelope `json:"auth"`
}

// InitiateResponse is returned by POST /authorize/{id}.
type InitiateResponse struct {
	AuthorizationURL string `json:"authorization_url"`
	FlowID           string `json:"flow_id"`

	// RequiresAuth is reported by gateways that answer initiation requests for
	// connectors needing no authorization. Absent means true.
	RequiresAuth *bool `json:"requires_auth,omitempty"`
}

// NeedsAuthorization reports whether the response describes a flow to run.
func (r InitiateResponse) NeedsAuthorization() bool {
	if r.RequiresAuth != nil && !*r.RequiresAuth {
		return false
	}
	return r.AuthorizationURL != ""
}

// ActionResponse is returned by the reinitialize, cancel and revoke endpoints.
type ActionResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

// errorBody is the gateway's error document.
type errorBody struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}
