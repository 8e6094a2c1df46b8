package formatting

import (
	"encoding/json"
	"fmt"
	"strings"

	"connectorctl/pkg/authconfig"
)

// ValidationResult is the outcome of checking one auth config file.
type ValidationResult struct {
	File   string                 `json:"file"`
	Type   authconfig.Type        `json:"type,omitempty"`
	Valid  bool                   `json:"valid"`
	Errors authconfig.FieldErrors `json:"errors,omitempty"`

	// Scopes and ConsentURL preview a valid OAuth config.
	Scopes     []string `json:"scopes,omitempty"`
	ConsentURL string   `json:"consent_url,omitempty"`

	// Error is set when the file could not be read or decoded.
	Error string `json:"error,omitempty"`
}

// PrettyJSON formats any value as indented JSON for human-readable display.
// It falls back to fmt's %v form when v cannot be marshaled.
func PrettyJSON(v interface{}) string {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Sprintf("%v", v)
	}
	return string(b)
}

// Truncate shortens s to at most n runes, marking the cut with "...".
func Truncate(s string, n int) string {
	s = strings.TrimSpace(s)
	r := []rune(s)
	if n <= 3 || len(r) <= n {
		return s
	}
	return string(r[:n-3]) + "..."
}

// AuthFields lists the fields of an auth config in form order. Empty optional
// fields are skipped.
func AuthFields(c authconfig.Config) [][2]string {
	var out [][2]string
	add := func(name, value string) {
		if value != "" {
			out = append(out, [2]string{name, value})
		}
	}

	switch v := c.(type) {
	case authconfig.APIKey:
		add(authconfig.FieldSource, string(v.Source))
		add(authconfig.FieldKey, v.Key)
		add(authconfig.FieldHeaderStyle, string(v.HeaderStyle))
		add(authconfig.FieldCustomHeaderName, v.CustomHeaderName)
	case authconfig.OAuth:
		add(authconfig.FieldClientID, v.ClientID)
		add(authconfig.FieldClientSecret, v.ClientSecret)
		add(authconfig.FieldAuthorizationURL, v.AuthorizationURL)
		add(authconfig.FieldTokenURL, v.TokenURL)
		add(authconfig.FieldScope, v.Scope)
	}
	return out
}
