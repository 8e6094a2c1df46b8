// Package drafts keeps working drafts of connector authentication configs
// between CLI invocations.
//
// A draft is written as YAML to <config>/drafts/<connector>.yaml with its
// secret fields (the API key and the OAuth client secret) removed; those are
// kept in the OS keyring instead.
package drafts

import (
	"errors"
	"fmt"
	"time"

	"connectorctl/internal/config"
	"connectorctl/pkg/authconfig"
	"connectorctl/pkg/logging"

	"github.com/zalando/go-keyring"
	"sigs.k8s.io/yaml"
)

const (
	storageKind    = "drafts"
	keyringService = "connectorctl"

	secretKey          = "key"
	secretClientSecret = "client_secret"
)

// ErrNotFound is returned by Load for connectors without a draft.
var ErrNotFound = errors.New("no draft saved")

// document is the on-disk shape of a draft.
type document struct {
	ConnectorID string            `json:"connector_id"`
	UpdatedAt   time.Time         `json:"updated_at"`
	Type        authconfig.Type   `json:"type"`
	APIKey      authconfig.APIKey `json:"api_key"`
	OAuth       authconfig.OAuth  `json:"oauth"`
}

// Store persists drafts.
type Store struct {
	storage *config.Storage
	now     func() time.Time
}

// NewStore creates a Store on top of storage.
func NewStore(storage *config.Storage) *Store {
	return &Store{storage: storage, now: time.Now}
}

// Save writes the draft of connectorID.
func (s *Store) Save(connectorID string, d authconfig.Draft) error {
	doc := document{
		ConnectorID: connectorID,
		UpdatedAt:   s.now().UTC(),
		Type:        d.Type,
		APIKey:      d.APIKey,
		OAuth:       d.OAuth,
	}
	key, clientSecret := doc.APIKey.Key, doc.OAuth.ClientSecret
	doc.APIKey.Key = ""
	doc.OAuth.ClientSecret = ""

	if err := setSecret(connectorID, secretKey, key); err != nil {
		return err
	}
	if err := setSecret(connectorID, secretClientSecret, clientSecret); err != nil {
		return err
	}

	data, err := yaml.Marshal(doc)
	if err != nil {
		return fmt.Errorf("failed to encode draft for %s: %w", connectorID, err)
	}
	if err := s.storage.Save(storageKind, connectorID, data); err != nil {
		return fmt.Errorf("failed to save draft for %s: %w", connectorID, err)
	}
	logging.Debug("Drafts", "Saved %s draft for %s", d.Type, connectorID)
	return nil
}

// Load reads the draft of connectorID, secrets included.
func (s *Store) Load(connectorID string) (authconfig.Draft, error) {
	data, err := s.storage.Load(storageKind, connectorID)
	if err != nil {
		if errors.Is(err, config.ErrNotFound) {
			return authconfig.Draft{}, fmt.Errorf("%s: %w", connectorID, ErrNotFound)
		}
		return authconfig.Draft{}, err
	}

	var doc document
	if err := yaml.UnmarshalStrict(data, &doc); err != nil {
		return authconfig.Draft{}, fmt.Errorf("failed to decode draft for %s: %w", connectorID, err)
	}
	t, err := authconfig.ParseType(string(doc.Type))
	if err != nil {
		return authconfig.Draft{}, fmt.Errorf("draft for %s: %w", connectorID, err)
	}

	if doc.APIKey.Key, err = getSecret(connectorID, secretKey); err != nil {
		return authconfig.Draft{}, err
	}
	if doc.OAuth.ClientSecret, err = getSecret(connectorID, secretClientSecret); err != nil {
		return authconfig.Draft{}, err
	}

	return authconfig.Draft{Type: t, APIKey: doc.APIKey, OAuth: doc.OAuth}, nil
}

// Delete removes the draft of connectorID and its secrets.
// Without a draft file the keyring is not touched.
func (s *Store) Delete(connectorID string) error {
	if err := s.storage.Delete(storageKind, connectorID); err != nil {
		if errors.Is(err, config.ErrNotFound) {
			return fmt.Errorf("%s: %w", connectorID, ErrNotFound)
		}
		return err
	}
	for _, name := range []string{secretKey, secretClientSecret} {
		if err := setSecret(connectorID, name, ""); err != nil {
			return err
		}
	}
	return nil
}

// List returns the connectors that have a draft.
func (s *Store) List() ([]string, error) {
	return s.storage.List(storageKind)
}

func secretUser(connectorID, name string) string {
	return connectorID + "/" + name
}

// setSecret stores value, or removes the entry when value is empty.
func setSecret(connectorID, name, value string) error {
	user := secretUser(connectorID, name)
	if value == "" {
		if err := keyring.Delete(keyringService, user); err != nil && !errors.Is(err, keyring.ErrNotFound) {
			return fmt.Errorf("unable to remove %s from keyring: %w", user, err)
		}
		return nil
	}
	if err := keyring.Set(keyringService, user, value); err != nil {
		return fmt.Errorf("unable to save %s to keyring: %w", user, err)
	}
	return nil
}

func getSecret(connectorID, name string) (string, error) {
	user := secretUser(connectorID, name)
	value, err := keyring.Get(keyringService, user)
	if err != nil {
		if errors.Is(err, keyring.ErrNotFound) {
			return "", nil
		}
		return "", fmt.Errorf("unable to get %s from keyring: %w", user, err)
	}
	return value, nil
}
