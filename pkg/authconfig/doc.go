// Package authconfig models how a connector authenticates against its remote
// MCP server or A2A agent.
//
// Config is a closed sum type with three variants:
//
//   - Auto: no credentials. If the remote requires authorization the gateway
//     attempts dynamic client registration (DCR) on its own.
//   - APIKey: a static key sent in a bearer, basic or custom header. The key is
//     either provided by the administrator (stored with the connector) or by
//     each user at connection time.
//   - OAuth: a pre-registered OAuth client.
//
// Envelope carries a Config across JSON and YAML with a "type" discriminator.
//
// Validate and Draft.Validate are pure: they return a FieldErrors map keyed by
// form field and never an error value, so callers can render the result inline
// on every keystroke and reuse it as the final pre-submit gate.
package authconfig
