package authconfig

import (
	"fmt"
	"net/url"
	"sort"
	"strings"
)

// Field names used as FieldErrors keys. They match the form field names.
const (
	FieldSource           = "source"
	FieldKey              = "key"
	FieldHeaderStyle      = "headerStyle"
	FieldCustomHeaderName = "customHeaderName"
	FieldClientID         = "clientId"
	FieldClientSecret     = "clientSecret"
	FieldAuthorizationURL = "authorizationUrl"
	FieldTokenURL         = "tokenUrl"
	FieldScope            = "scope"
)

// Validation messages.
const (
	MsgRequired    = "required"
	MsgAbsoluteURL = "must be an absolute URL"
)

// FieldErrors maps a form field to its error message. An empty map means valid.
type FieldErrors map[string]string

// Valid reports whether there are no field errors.
func (fe FieldErrors) Valid() bool {
	return len(fe) == 0
}

// Fields returns the failing field names in sorted order.
func (fe FieldErrors) Fields() []string {
	fields := make([]string, 0, len(fe))
	for f := range fe {
		fields = append(fields, f)
	}
	sort.Strings(fields)
	return fields
}

// Error renders the errors as "field: message" pairs so FieldErrors can be
// returned where an error is expected (for example a submit gate).
func (fe FieldErrors) Error() string {
	parts := make([]string, 0, len(fe))
	for _, f := range fe.Fields() {
		parts = append(parts, fmt.Sprintf("%s: %s", f, fe[f]))
	}
	return "invalid authentication config: " + strings.Join(parts, ", ")
}

// Validate checks the rules of the active variant only.
func Validate(c Config) FieldErrors {
	errs := FieldErrors{}

	switch v := normalize(c).(type) {
	case APIKey:
		validateAPIKey(v, errs)
	case OAuth:
		validateOAuth(v, errs)
	}

	return errs
}

func validateAPIKey(k APIKey, errs FieldErrors) {
	switch k.Source {
	case "":
		errs[FieldSource] = MsgRequired
	case KeySourceUser:
	case KeySourceAdmin:
		if blank(k.Key) {
			errs[FieldKey] = MsgRequired
		}
	default:
		errs[FieldSource] = fmt.Sprintf("must be one of %s, %s", KeySourceAdmin, KeySourceUser)
	}

	switch k.HeaderStyle {
	case "", HeaderStyleBearer, HeaderStyleBasic:
	case HeaderStyleCustom:
		if blank(k.CustomHeaderName) {
			errs[FieldCustomHeaderName] = MsgRequired
		}
	default:
		errs[FieldHeaderStyle] = fmt.Sprintf("must be one of %s, %s, %s",
			HeaderStyleBearer, HeaderStyleBasic, HeaderStyleCustom)
	}
}

func validateOAuth(o OAuth, errs FieldErrors) {
	if blank(o.ClientID) {
		errs[FieldClientID] = MsgRequired
	}
	if blank(o.ClientSecret) {
		errs[FieldClientSecret] = MsgRequired
	}
	checkURL(FieldAuthorizationURL, o.AuthorizationURL, errs)
	checkURL(FieldTokenURL, o.TokenURL, errs)
}

func checkURL(field, raw string, errs FieldErrors) {
	if blank(raw) {
		errs[field] = MsgRequired
		return
	}
	if !isAbsoluteURL(strings.TrimSpace(raw)) {
		errs[field] = MsgAbsoluteURL
	}
}

func isAbsoluteURL(raw string) bool {
	u, err := url.Parse(raw)
	if err != nil {
		return false
	}
	return u.IsAbs() && u.Host != ""
}

func blank(s string) bool {
	return strings.TrimSpace(s) == ""
}
