package authconfig

import (
	"encoding/base64"
	"fmt"
	"net/http"
	"strings"

	"golang.org/x/oauth2"
)

// Type is the discriminator of the Config sum type.
type Type string

const (
	TypeAuto   Type = "auto"
	TypeAPIKey Type = "apiKey"
	TypeOAuth  Type = "oauth"
)

// ParseType parses a discriminator value. An empty value means TypeAuto.
func ParseType(s string) (Type, error) {
	switch Type(strings.TrimSpace(s)) {
	case "", TypeAuto:
		return TypeAuto, nil
	case TypeAPIKey:
		return TypeAPIKey, nil
	case TypeOAuth:
		return TypeOAuth, nil
	default:
		return "", fmt.Errorf("unknown authentication type %q", s)
	}
}

// KeySource says who supplies an API key.
type KeySource string

const (
	// KeySourceAdmin means the key is stored with the connector.
	KeySourceAdmin KeySource = "admin"
	// KeySourceUser means every user supplies their own key.
	KeySourceUser KeySource = "user"
)

// HeaderStyle says how an API key is sent to the remote.
type HeaderStyle string

const (
	HeaderStyleBearer HeaderStyle = "bearer"
	HeaderStyleBasic  HeaderStyle = "basic"
	HeaderStyleCustom HeaderStyle = "custom"
)

// Config is implemented by Auto, APIKey and OAuth only.
type Config interface {
	Type() Type
	isConfig()
}

// Auto requires no credentials.
type Auto struct{}

func (Auto) Type() Type { return TypeAuto }
func (Auto) isConfig()  {}

// APIKey authenticates with a static key. An empty HeaderStyle means
// HeaderStyleBearer.
type APIKey struct {
	Source           KeySource   `json:"source"`
	Key              string      `json:"key,omitempty"`
	HeaderStyle      HeaderStyle `json:"authorization_type,omitempty"`
	CustomHeaderName string      `json:"custom_header_name,omitempty"`
}

func (APIKey) Type() Type { return TypeAPIKey }
func (APIKey) isConfig()  {}

// Header builds the header sent to the remote. userKey is used when the key
// source is KeySourceUser and ignored otherwise.
//
// For the basic style a "user:password" key is base64 encoded; any other key is
// assumed to be encoded already.
func (k APIKey) Header(userKey string) (http.Header, error) {
	key := k.Key
	if k.Source == KeySourceUser {
		key = userKey
	}
	key = strings.TrimSpace(key)
	if key == "" {
		return nil, fmt.Errorf("no API key available for source %q", k.Source)
	}

	h := http.Header{}
	switch k.HeaderStyle {
	case "", HeaderStyleBearer:
		h.Set("Authorization", "Bearer "+key)
	case HeaderStyleBasic:
		if strings.Contains(key, ":") {
			key = base64.StdEncoding.EncodeToString([]byte(key))
		}
		h.Set("Authorization", "Basic "+key)
	case HeaderStyleCustom:
		name := strings.TrimSpace(k.CustomHeaderName)
		if name == "" {
			return nil, fmt.Errorf("custom header style requires a header name")
		}
		h.Set(name, key)
	default:
		return nil, fmt.Errorf("unknown header style %q", k.HeaderStyle)
	}
	return h, nil
}

// OAuth authenticates with a pre-registered OAuth client.
type OAuth struct {
	ClientID         string `json:"client_id"`
	ClientSecret     string `json:"client_secret"`
	AuthorizationURL string `json:"authorization_url"`
	TokenURL         string `json:"token_url"`

	// Scope is free-form; providers use spaces or commas as delimiters.
	Scope string `json:"scope,omitempty"`
}

func (OAuth) Type() Type { return TypeOAuth }
func (OAuth) isConfig()  {}

// Scopes splits Scope on spaces and commas.
func (o OAuth) Scopes() []string {
	return strings.FieldsFunc(o.Scope, func(r rune) bool {
		return r == ',' || r == ' ' || r == '\t' || r == '\n'
	})
}

// OAuth2Config converts the variant into an oauth2.Config.
func (o OAuth) OAuth2Config(redirectURL string) *oauth2.Config {
	return &oauth2.Config{
		ClientID:     o.ClientID,
		ClientSecret: o.ClientSecret,
		Endpoint: oauth2.Endpoint{
			AuthURL:  o.AuthorizationURL,
			TokenURL: o.TokenURL,
		},
		RedirectURL: redirectURL,
		Scopes:      o.Scopes(),
	}
}

// ConsentURL returns the provider page a user is sent to for consent, asking
// for offline access. redirectURL may be empty.
func (o OAuth) ConsentURL(redirectURL, state string) string {
	return o.OAuth2Config(redirectURL).AuthCodeURL(state, oauth2.AccessTypeOffline)
}

// normalize dereferences pointer variants so switches only handle values.
func normalize(c Config) Config {
	switch v := c.(type) {
	case nil:
		return Auto{}
	case *Auto:
		if v == nil {
			return Auto{}
		}
		return *v
	case *APIKey:
		if v == nil {
			return APIKey{}
		}
		return *v
	case *OAuth:
		if v == nil {
			return OAuth{}
		}
		return *v
	default:
		return c
	}
}

const redactedValue = "********"

// Redact returns a copy with secret fields masked, for display.
func Redact(c Config) Config {
	switch v := normalize(c).(type) {
	case APIKey:
		if v.Key != "" {
			v.Key = redactedValue
		}
		return v
	case OAuth:
		if v.ClientSecret != "" {
			v.ClientSecret = redactedValue
		}
		return v
	default:
		return v
	}
}
