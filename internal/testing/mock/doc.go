// Package mock provides test doubles for connectorctl components.
//
// Backend is an in-memory gateway implementing the connector registry and
// authorization REST API. Serve it with httptest.NewServer and point a
// backend.Client at the server URL:
//
//	gw := mock.NewBackend()
//	gw.AddConnector(backend.Connector{ID: "srv-1", Kind: backend.KindMCP}, true)
//	gw.ScriptStatus("srv-1", connection.StateConnecting, connection.StateConnected)
//	srv := httptest.NewServer(gw)
//	defer srv.Close()
//
// Status responses are scripted per connector, calls are counted per operation
// and connector, and failures or latency can be injected.
//
// MockClock is a controllable clock accepted wherever a poller.Clock is.
package mock
