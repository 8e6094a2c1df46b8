package mock

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sort"
	"sync"
	"time"

	"connectorctl/internal/backend"
	"connectorctl/pkg/authconfig"
	"connectorctl/pkg/connection"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"golang.org/x/oauth2"
)

// Operation names used by Backend.Calls.
const (
	OpInitiate     = "initiate"
	OpReinitialize = "reinitialize"
	OpCancel       = "cancel"
	OpRevoke       = "revoke"
	OpStatus       = "status"
)

// Backend is an in-memory gateway serving the REST API the backend client
// consumes. Status responses can be scripted per connector so tests can walk a
// flow through connecting -> connected one poll at a time.
type Backend struct {
	mu         sync.Mutex
	router     *mux.Router
	consent    *oauth2.Config
	connectors map[string]backend.Connector
	statuses   map[string]connection.ConnectorStatus
	scripts    map[string][]connection.ConnectorStatus
	reinit     map[string]backend.ActionResponse
	failures   map[string]int
	calls      map[string]int
	flows      map[string]string
	delay      time.Duration
}

// NewBackend creates an empty gateway. Serve it with httptest.NewServer.
func NewBackend() *Backend {
	b := &Backend{
		consent: &oauth2.Config{
			ClientID: "mock-gateway",
			Endpoint: oauth2.Endpoint{
				AuthURL:  "https://idp.example.com/oauth/authorize",
				TokenURL: "https://idp.example.com/oauth/token",
			},
			RedirectURL: "https://gateway.example.com/oauth/callback",
		},
		connectors: make(map[string]backend.Connector),
		statuses:   make(map[string]connection.ConnectorStatus),
		scripts:    make(map[string][]connection.ConnectorStatus),
		reinit:     make(map[string]backend.ActionResponse),
		failures:   make(map[string]int),
		calls:      make(map[string]int),
		flows:      make(map[string]string),
	}

	r := mux.NewRouter()
	r.HandleFunc("/connectors", b.handleListConnectors).Methods(http.MethodGet)
	r.HandleFunc("/connectors", b.handleCreateConnector).Methods(http.MethodPost)
	r.HandleFunc("/connectors/{id}", b.handleGetConnector).Methods(http.MethodGet)
	r.HandleFunc("/connectors/{id}", b.handleUpdateConnector).Methods(http.MethodPut)
	r.HandleFunc("/connectors/{id}", b.handleDeleteConnector).Methods(http.MethodDelete)
	r.HandleFunc("/connectors/{id}/status", b.handleStatus).Methods(http.MethodGet)
	r.HandleFunc("/authorize/{id}", b.handleInitiate).Methods(http.MethodPost)
	r.HandleFunc("/authorize/{id}/reinitialize", b.handleReinitialize).Methods(http.MethodPost)
	r.HandleFunc("/authorize/{id}/cancel", b.handleCancel).Methods(http.MethodPost)
	r.HandleFunc("/authorize/{id}/revoke", b.handleRevoke).Methods(http.MethodPost)
	b.router = r

	return b
}

// ServeHTTP implements http.Handler.
func (b *Backend) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	b.mu.Lock()
	delay := b.delay
	b.mu.Unlock()
	if delay > 0 {
		time.Sleep(delay)
	}
	b.router.ServeHTTP(w, r)
}

// AddConnector registers a connector with its initial status.
func (b *Backend) AddConnector(c backend.Connector, requiresAuth bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.connectors[c.ID] = c
	b.statuses[c.ID] = connection.ConnectorStatus{
		ConnectorID:  c.ID,
		State:        connection.StateDisconnected,
		RequiresAuth: requiresAuth,
	}
}

// SetStatus overrides the current status of a connector.
func (b *Backend) SetStatus(status connection.ConnectorStatus) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.statuses[status.ConnectorID] = status
}

// ScriptStatus queues states returned by successive status requests. Once the
// queue is drained the last scripted state sticks.
func (b *Backend) ScriptStatus(connectorID string, states ...connection.State) {
	b.mu.Lock()
	defer b.mu.Unlock()
	base := b.statuses[connectorID]
	for _, s := range states {
		st := base
		st.ConnectorID = connectorID
		st.State = s
		if s == connection.StateError {
			st.LastError = "provider rejected the authorization"
		}
		b.scripts[connectorID] = append(b.scripts[connectorID], st)
	}
}

// SetReinitializeResult sets the response of the reinitialize endpoint.
func (b *Backend) SetReinitializeResult(connectorID string, resp backend.ActionResponse) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.reinit[connectorID] = resp
}

// FailNext makes the next n calls of op answer with 503.
func (b *Backend) FailNext(op string, n int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.failures[op] = n
}

// SetDelay delays every response, to widen race windows in tests.
func (b *Backend) SetDelay(d time.Duration) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.delay = d
}

// Calls returns how often op was invoked for a connector.
func (b *Backend) Calls(op, connectorID string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.calls[op+"/"+connectorID]
}

// FlowID returns the flow id handed out by the last initiation for a connector.
func (b *Backend) FlowID(connectorID string) string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.flows[connectorID]
}

// record counts a call and reports whether it should fail.
func (b *Backend) record(op, connectorID string) bool {
	b.calls[op+"/"+connectorID]++
	if b.failures[op] > 0 {
		b.failures[op]--
		return true
	}
	return false
}

func (b *Backend) handleInitiate(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	b.mu.Lock()
	defer b.mu.Unlock()

	if b.record(OpInitiate, id) {
		writeError(w, http.StatusServiceUnavailable, "gateway unavailable")
		return
	}
	status, ok := b.statuses[id]
	if !ok {
		writeError(w, http.StatusNotFound, fmt.Sprintf("connector %s not found", id))
		return
	}
	if !status.RequiresAuth {
		no := false
		writeJSON(w, http.StatusOK, backend.InitiateResponse{RequiresAuth: &no})
		return
	}

	flowID := uuid.New().String()
	b.flows[id] = flowID
	status.State = connection.StateConnecting
	status.LastError = ""
	b.statuses[id] = status

	writeJSON(w, http.StatusOK, backend.InitiateResponse{
		AuthorizationURL: b.consent.AuthCodeURL(flowID, oauth2.AccessTypeOffline),
		FlowID:           flowID,
	})
}

func (b *Backend) handleReinitialize(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	b.mu.Lock()
	defer b.mu.Unlock()

	if b.record(OpReinitialize, id) {
		writeError(w, http.StatusServiceUnavailable, "gateway unavailable")
		return
	}
	status, ok := b.statuses[id]
	if !ok {
		writeError(w, http.StatusNotFound, fmt.Sprintf("connector %s not found", id))
		return
	}

	resp, ok := b.reinit[id]
	if !ok {
		resp = backend.ActionResponse{Success: true, Message: "Credentials refreshed"}
	}
	if resp.Success {
		status.State = connection.StateConnected
		status.LastError = ""
	} else {
		status.State = connection.StateError
		status.LastError = resp.Message
	}
	b.statuses[id] = status
	writeJSON(w, http.StatusOK, resp)
}

func (b *Backend) handleCancel(w http.ResponseWriter, r *http.Request) {
	b.resetFlow(w, r, OpCancel, "Authorization flow cancelled")
}

func (b *Backend) handleRevoke(w http.ResponseWriter, r *http.Request) {
	b.resetFlow(w, r, OpRevoke, "Credentials revoked")
}

func (b *Backend) resetFlow(w http.ResponseWriter, r *http.Request, op, message string) {
	id := mux.Vars(r)["id"]

	b.mu.Lock()
	defer b.mu.Unlock()

	if b.record(op, id) {
		writeError(w, http.StatusServiceUnavailable, "gateway unavailable")
		return
	}
	status, ok := b.statuses[id]
	if !ok {
		writeError(w, http.StatusNotFound, fmt.Sprintf("connector %s not found", id))
		return
	}
	status.State = connection.StateDisconnected
	status.LastError = ""
	b.statuses[id] = status
	delete(b.scripts, id)
	delete(b.flows, id)
	writeJSON(w, http.StatusOK, backend.ActionResponse{Success: true, Message: message})
}

func (b *Backend) handleStatus(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	b.mu.Lock()
	defer b.mu.Unlock()

	if b.record(OpStatus, id) {
		writeError(w, http.StatusServiceUnavailable, "gateway unavailable")
		return
	}
	status, ok := b.statuses[id]
	if !ok {
		writeError(w, http.StatusNotFound, fmt.Sprintf("connector %s not found", id))
		return
	}
	if queue := b.scripts[id]; len(queue) > 0 {
		status = queue[0]
		if len(queue) > 1 {
			b.scripts[id] = queue[1:]
		}
		b.statuses[id] = status
	}
	writeJSON(w, http.StatusOK, status)
}

func (b *Backend) handleListConnectors(w http.ResponseWriter, r *http.Request) {
	b.mu.Lock()
	defer b.mu.Unlock()

	list := make([]backend.Connector, 0, len(b.connectors))
	for _, c := range b.connectors {
		list = append(list, c)
	}
	sort.Slice(list, func(i, j int) bool { return list[i].ID < list[j].ID })
	writeJSON(w, http.StatusOK, list)
}

func (b *Backend) handleGetConnector(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	b.mu.Lock()
	defer b.mu.Unlock()

	c, ok := b.connectors[id]
	if !ok {
		writeError(w, http.StatusNotFound, fmt.Sprintf("connector %s not found", id))
		return
	}
	writeJSON(w, http.StatusOK, c)
}

func (b *Backend) handleCreateConnector(w http.ResponseWriter, r *http.Request) {
	var c backend.Connector
	if err := json.NewDecoder(r.Body).Decode(&c); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if c.ID == "" {
		c.ID = uuid.New().String()
	}
	if _, exists := b.connectors[c.ID]; exists {
		writeError(w, http.StatusConflict, fmt.Sprintf("connector %s already exists", c.ID))
		return
	}
	b.connectors[c.ID] = c
	b.statuses[c.ID] = connection.ConnectorStatus{
		ConnectorID:  c.ID,
		State:        connection.StateDisconnected,
		RequiresAuth: c.Auth.Type() != authconfig.TypeAuto,
	}
	writeJSON(w, http.StatusCreated, c)
}

func (b *Backend) handleUpdateConnector(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	var c backend.Connector
	if err := json.NewDecoder(r.Body).Decode(&c); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	c.ID = id

	b.mu.Lock()
	defer b.mu.Unlock()

	if _, ok := b.connectors[id]; !ok {
		writeError(w, http.StatusNotFound, fmt.Sprintf("connector %s not found", id))
		return
	}
	b.connectors[id] = c
	writeJSON(w, http.StatusOK, c)
}

func (b *Backend) handleDeleteConnector(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	b.mu.Lock()
	defer b.mu.Unlock()

	if _, ok := b.connectors[id]; !ok {
		writeError(w, http.StatusNotFound, fmt.Sprintf("connector %s not found", id))
		return
	}
	delete(b.connectors, id)
	delete(b.statuses, id)
	delete(b.scripts, id)
	w.WriteHeader(http.StatusNoContent)
}

func writeJSON(w http.ResponseWriter, code int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, message string) {
	writeJSON(w, code, map[string]string{"error": http.StatusText(code), "message": message})
}
