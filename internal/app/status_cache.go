package app

import (
	"errors"
	"fmt"
	"sort"
	"time"

	"connectorctl/internal/config"
	"connectorctl/internal/drafts"
	"connectorctl/pkg/connection"
	"connectorctl/pkg/logging"

	"gopkg.in/yaml.v3"
)

const (
	statusCacheKind = "status"
	statusCacheName = "cache"
)

// statusSnapshot is the on-disk shape of the status cache.
type statusSnapshot struct {
	UpdatedAt time.Time                    `yaml:"updated_at"`
	Statuses  []connection.ConnectorStatus `yaml:"statuses"`
}

// CachedStatuses returns the statuses saved by earlier invocations, sorted by
// connector id, and the time they were saved. ok is false when nothing has
// been saved yet.
func (a *Application) CachedStatuses() (statuses []connection.ConnectorStatus, savedAt time.Time, ok bool, err error) {
	snap, ok, err := a.loadSnapshot()
	if err != nil || !ok {
		return nil, time.Time{}, ok, err
	}
	return snap.Statuses, snap.UpdatedAt, true, nil
}

// CachedStatus returns the saved status of one connector.
func (a *Application) CachedStatus(connectorID string) (connection.ConnectorStatus, bool, error) {
	snap, ok, err := a.loadSnapshot()
	if err != nil || !ok {
		return connection.ConnectorStatus{}, false, err
	}
	for _, s := range snap.Statuses {
		if s.ConnectorID == connectorID {
			return s, true, nil
		}
	}
	return connection.ConnectorStatus{}, false, nil
}

// ForgetConnector drops everything kept locally about a deleted connector:
// the in-memory status, the saved status and the auth draft.
func (a *Application) ForgetConnector(connectorID string) error {
	a.services.Orchestrator.Forget(connectorID)

	if err := a.services.Drafts.Delete(connectorID); err != nil && !errors.Is(err, drafts.ErrNotFound) {
		return err
	}

	snap, ok, err := a.loadSnapshot()
	if err != nil || !ok {
		return err
	}
	kept := snap.Statuses[:0]
	for _, s := range snap.Statuses {
		if s.ConnectorID != connectorID {
			kept = append(kept, s)
		}
	}
	snap.Statuses = kept
	return a.writeSnapshot(snap)
}

// saveStatuses merges the orchestrator's cache into the saved snapshot.
func (a *Application) saveStatuses() error {
	current := a.services.Orchestrator.Statuses()
	if len(current) == 0 {
		return nil
	}

	snap, _, err := a.loadSnapshot()
	if err != nil {
		logging.Warn("StatusCache", "Discarding unreadable status cache: %v", err)
		snap = statusSnapshot{}
	}

	byID := make(map[string]connection.ConnectorStatus, len(snap.Statuses)+len(current))
	for _, s := range snap.Statuses {
		byID[s.ConnectorID] = s
	}
	for _, s := range current {
		byID[s.ConnectorID] = s
	}

	merged := make([]connection.ConnectorStatus, 0, len(byID))
	for _, s := range byID {
		merged = append(merged, s)
	}
	snap.Statuses = merged
	return a.writeSnapshot(snap)
}

func (a *Application) loadSnapshot() (statusSnapshot, bool, error) {
	data, err := a.services.Storage.Load(statusCacheKind, statusCacheName)
	if errors.Is(err, config.ErrNotFound) {
		return statusSnapshot{}, false, nil
	}
	if err != nil {
		return statusSnapshot{}, false, err
	}

	var snap statusSnapshot
	if err := yaml.Unmarshal(data, &snap); err != nil {
		return statusSnapshot{}, false, fmt.Errorf("failed to parse status cache: %w", err)
	}
	return snap, true, nil
}

func (a *Application) writeSnapshot(snap statusSnapshot) error {
	sort.Slice(snap.Statuses, func(i, j int) bool {
		return snap.Statuses[i].ConnectorID < snap.Statuses[j].ConnectorID
	})
	snap.UpdatedAt = time.Now().UTC()

	data, err := yaml.Marshal(snap)
	if err != nil {
		return fmt.Errorf("failed to encode status cache: %w", err)
	}
	return a.services.Storage.Save(statusCacheKind, statusCacheName, data)
}
