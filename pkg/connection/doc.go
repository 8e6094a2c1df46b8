// Package connection provides the connection state types shared by the gateway
// client, the polling registry and the authorization orchestrator.
//
// A ConnectorStatus is owned by the gateway backend; clients hold a cached copy
// that may be stale and is refreshed on demand or by an active poller.
package connection
