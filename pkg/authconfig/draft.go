package authconfig

// Draft is the working state of an authentication form. It keeps the fields of
// every variant so that switching Type back and forth does not lose input, but
// only the active variant is ever projected, validated or saved.
type Draft struct {
	Type   Type
	APIKey APIKey
	OAuth  OAuth
}

// NewDraft starts a draft from a saved Config.
func NewDraft(c Config) Draft {
	d := Draft{Type: TypeAuto}
	switch v := normalize(c).(type) {
	case APIKey:
		d.Type = TypeAPIKey
		d.APIKey = v
	case OAuth:
		d.Type = TypeOAuth
		d.OAuth = v
	}
	return d
}

// SetType switches the active variant. An API key draft without a source
// starts out as KeySourceAdmin.
func (d *Draft) SetType(t Type) {
	d.Type = t
	if t == TypeAPIKey && d.APIKey.Source == "" {
		d.APIKey.Source = KeySourceAdmin
	}
}

// Config projects the active variant.
func (d Draft) Config() Config {
	switch d.Type {
	case TypeAPIKey:
		return d.APIKey
	case TypeOAuth:
		return d.OAuth
	default:
		return Auto{}
	}
}

// Validate validates the active variant only.
func (d Draft) Validate() FieldErrors {
	return Validate(d.Config())
}

// Set updates a single form field by name, whichever variant it belongs to.
// It reports false for unknown field names.
func (d *Draft) Set(field, value string) bool {
	switch field {
	case FieldSource:
		d.APIKey.Source = KeySource(value)
	case FieldKey:
		d.APIKey.Key = value
	case FieldHeaderStyle:
		d.APIKey.HeaderStyle = HeaderStyle(value)
	case FieldCustomHeaderName:
		d.APIKey.CustomHeaderName = value
	case FieldClientID:
		d.OAuth.ClientID = value
	case FieldClientSecret:
		d.OAuth.ClientSecret = value
	case FieldAuthorizationURL:
		d.OAuth.AuthorizationURL = value
	case FieldTokenURL:
		d.OAuth.TokenURL = value
	case FieldScope:
		d.OAuth.Scope = value
	default:
		return false
	}
	return true
}

// FieldsFor lists the editable fields of a variant in form order.
func FieldsFor(t Type) []string {
	switch t {
	case TypeAPIKey:
		return []string{FieldSource, FieldKey, FieldHeaderStyle, FieldCustomHeaderName}
	case TypeOAuth:
		return []string{FieldClientID, FieldClientSecret, FieldAuthorizationURL, FieldTokenURL, FieldScope}
	default:
		return nil
	}
}
