package authconfig

import (
	"encoding/json"
	"fmt"
)

// Envelope carries a Config across JSON with a "type" discriminator:
//
//	{"type": "oauth", "client_id": "...", "client_secret": "...", ...}
//
// A missing type decodes as Auto. sigs.k8s.io/yaml goes through these methods
// as well, so YAML documents share the shape.
type Envelope struct {
	Config Config
}

// Wrap returns an Envelope for c.
func Wrap(c Config) Envelope {
	return Envelope{Config: normalize(c)}
}

// Type returns the discriminator of the wrapped Config.
func (e Envelope) Type() Type {
	return normalize(e.Config).Type()
}

// MarshalJSON implements json.Marshaler.
func (e Envelope) MarshalJSON() ([]byte, error) {
	switch v := normalize(e.Config).(type) {
	case Auto:
		return json.Marshal(struct {
			Type Type `json:"type"`
		}{TypeAuto})
	case APIKey:
		return json.Marshal(struct {
			Type Type `json:"type"`
			APIKey
		}{TypeAPIKey, v})
	case OAuth:
		return json.Marshal(struct {
			Type Type `json:"type"`
			OAuth
		}{TypeOAuth, v})
	default:
		return nil, fmt.Errorf("unsupported authentication config %T", v)
	}
}

// UnmarshalJSON implements json.Unmarshaler.
func (e *Envelope) UnmarshalJSON(data []byte) error {
	var head struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(data, &head); err != nil {
		return fmt.Errorf("failed to decode authentication config: %w", err)
	}

	t, err := ParseType(head.Type)
	if err != nil {
		return err
	}

	switch t {
	case TypeAPIKey:
		var v APIKey
		if err := json.Unmarshal(data, &v); err != nil {
			return fmt.Errorf("failed to decode apiKey config: %w", err)
		}
		e.Config = v
	case TypeOAuth:
		var v OAuth
		if err := json.Unmarshal(data, &v); err != nil {
			return fmt.Errorf("failed to decode oauth config: %w", err)
		}
		e.Config = v
	default:
		e.Config = Auto{}
	}
	return nil
}
