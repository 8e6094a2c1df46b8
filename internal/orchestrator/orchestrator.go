package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"connectorctl/internal/backend"
	"connectorctl/internal/browser"
	"connectorctl/internal/metrics"
	"connectorctl/internal/poller"
	"connectorctl/pkg/connection"
	"connectorctl/pkg/logging"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"
)

// DefaultLoadConcurrency bounds parallel status fetches in LoadAll.
const DefaultLoadConcurrency = 4

// Backend is the part of the gateway API the orchestrator calls.
// *backend.Client implements it.
type Backend interface {
	Initiate(ctx context.Context, connectorID string) (*backend.InitiateResponse, error)
	Reinitialize(ctx context.Context, connectorID string) (*backend.ActionResponse, error)
	Cancel(ctx context.Context, connectorID string) (*backend.ActionResponse, error)
	Revoke(ctx context.Context, connectorID string) (*backend.ActionResponse, error)
	Status(ctx context.Context, connectorID string) (connection.ConnectorStatus, error)
	ListConnectors(ctx context.Context) ([]backend.Connector, error)
}

// Config holds the configuration for the orchestrator.
type Config struct {
	// Opener opens authorization URLs. Defaults to browser.NoopOpener.
	Opener browser.Opener

	// Metrics is optional.
	Metrics *metrics.FlowMetrics

	// Polling configures the poller registry the orchestrator creates.
	Polling poller.Config

	// LoadConcurrency bounds LoadAll. Defaults to DefaultLoadConcurrency.
	LoadConcurrency int
}

// Flow is a snapshot of an authorization flow.
type Flow struct {
	ConnectorID      string    `json:"connector_id" yaml:"connector_id"`
	LocalID          string    `json:"local_id" yaml:"local_id"`
	BackendFlowID    string    `json:"flow_id,omitempty" yaml:"flow_id,omitempty"`
	AuthorizationURL string    `json:"authorization_url,omitempty" yaml:"authorization_url,omitempty"`
	StartedAt        time.Time `json:"started_at" yaml:"started_at"`
}

// InitiateResult is returned by InitiateAuthorization.
type InitiateResult struct {
	AuthorizationURL string
	FlowID           string

	// Existing is true when a flow was already running and its URL reused.
	Existing bool
}

// Sources of a StatusEvent.
const (
	SourcePoll         = "poll"
	SourceRefresh      = "refresh"
	SourceCancel       = "cancel"
	SourceRevoke       = "revoke"
	SourceReinitialize = "reinitialize"
	SourceTimeout      = "timeout"

	// SourcePollFailed marks a poll whose fetch failed. The event carries the
	// cached status unchanged and the error in Err.
	SourcePollFailed = "poll_failed"
)

// StatusEvent describes a change of a connector's cached status.
type StatusEvent struct {
	ConnectorID string                     `json:"connector_id"`
	OldState    connection.State           `json:"old_state"`
	Status      connection.ConnectorStatus `json:"status"`

	// Source is one of the Source constants.
	Source    string    `json:"source"`
	Timestamp time.Time `json:"timestamp"`

	// Err is set for SourcePollFailed events; Error is its text for
	// structured output.
	Err   error  `json:"-"`
	Error string `json:"error,omitempty"`
}

// Orchestrator drives authorization flows and owns the cached status map.
type Orchestrator struct {
	backend  Backend
	registry *poller.Registry
	opener   browser.Opener
	metrics  *metrics.FlowMetrics
	clock    poller.Clock
	loadN    int
	timeout  time.Duration

	group singleflight.Group

	mu          sync.Mutex
	statuses    map[string]connection.ConnectorStatus
	flows       map[string]*Flow
	generations map[string]uint64
	subscribers map[string]map[int]func(StatusEvent)
	nextSub     int
}

// New creates an orchestrator with its own poller registry.
func New(b Backend, cfg Config) *Orchestrator {
	o := &Orchestrator{
		backend:     b,
		opener:      cfg.Opener,
		metrics:     cfg.Metrics,
		clock:       cfg.Polling.Clock,
		loadN:       cfg.LoadConcurrency,
		timeout:     cfg.Polling.RequestTimeout,
		statuses:    make(map[string]connection.ConnectorStatus),
		flows:       make(map[string]*Flow),
		generations: make(map[string]uint64),
		subscribers: make(map[string]map[int]func(StatusEvent)),
	}
	if o.opener == nil {
		o.opener = browser.NoopOpener{}
	}
	if o.clock == nil {
		o.clock = poller.RealClock{}
	}
	if o.loadN <= 0 {
		o.loadN = DefaultLoadConcurrency
	}
	if o.timeout <= 0 {
		o.timeout = poller.DefaultRequestTimeout
	}

	pcfg := cfg.Polling
	pcfg.Clock = o.clock
	pcfg.OnStart = o.metrics.PollerStarted
	pcfg.OnStop = o.metrics.PollerStopped
	o.registry = poller.New(o.fetch, pcfg)

	return o
}

// Registry returns the poller registry owned by the orchestrator.
func (o *Orchestrator) Registry() *poller.Registry {
	return o.registry
}

// InitiateAuthorization starts an authorization flow and opens its consent
// URL. If a flow is already running for the connector its URL is returned
// and no request is made; concurrent calls share a single initiate request.
func (o *Orchestrator) InitiateAuthorization(ctx context.Context, connectorID string) (InitiateResult, error) {
	if res, ok := o.existingFlow(connectorID); ok {
		return res, nil
	}

	v, err := o.shared(ctx, "initiate/"+connectorID, func(ctx context.Context) (interface{}, error) {
		return o.initiate(ctx, connectorID)
	})
	if err != nil {
		return InitiateResult{}, err
	}
	return v.(InitiateResult), nil
}

func (o *Orchestrator) existingFlow(connectorID string) (InitiateResult, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	f, ok := o.flows[connectorID]
	if !ok || f.AuthorizationURL == "" {
		return InitiateResult{}, false
	}
	return InitiateResult{AuthorizationURL: f.AuthorizationURL, FlowID: f.BackendFlowID, Existing: true}, true
}

func (o *Orchestrator) initiate(ctx context.Context, connectorID string) (InitiateResult, error) {
	o.mu.Lock()
	if f, ok := o.flows[connectorID]; ok && f.AuthorizationURL != "" {
		o.mu.Unlock()
		return InitiateResult{AuthorizationURL: f.AuthorizationURL, FlowID: f.BackendFlowID, Existing: true}, nil
	}
	// The pending flow makes a cancel issued while the request is in flight
	// visible to the code below.
	gen := o.generations[connectorID]
	pending := &Flow{
		ConnectorID: connectorID,
		LocalID:     uuid.New().String(),
		StartedAt:   o.clock.Now(),
	}
	o.flows[connectorID] = pending
	o.mu.Unlock()

	logging.Debug("Orchestrator", "Initiating authorization for %s (flow %s)", connectorID, pending.LocalID)
	resp, err := o.backend.Initiate(ctx, connectorID)
	o.metrics.ActionSent("initiate", resultOf(err))

	o.mu.Lock()
	if o.generations[connectorID] != gen || o.flows[connectorID] != pending {
		o.mu.Unlock()
		o.discardStale(connectorID, "initiate")
		return InitiateResult{}, ErrFlowCanceled
	}
	if err != nil || !resp.NeedsAuthorization() {
		delete(o.flows, connectorID)
		o.mu.Unlock()
		if err != nil {
			return InitiateResult{}, fmt.Errorf("failed to initiate authorization for %s: %w", connectorID, err)
		}
		logging.Info("Orchestrator", "Connector %s does not require authorization", connectorID)
		return InitiateResult{}, ErrNoAuthorizationRequired
	}

	pending.AuthorizationURL = resp.AuthorizationURL
	pending.BackendFlowID = resp.FlowID
	o.registry.Register(connectorID, func(u poller.Update) {
		o.onPoll(connectorID, gen, u)
	})
	o.mu.Unlock()

	o.metrics.FlowStarted(connectorID)
	logging.Info("Orchestrator", "Authorization flow started for %s", connectorID)

	if err := o.opener.Open(resp.AuthorizationURL); err != nil {
		logging.Warn("Orchestrator", "Could not open browser for %s: %v", connectorID, err)
	}

	return InitiateResult{AuthorizationURL: resp.AuthorizationURL, FlowID: resp.FlowID}, nil
}

// onPoll applies a poller update captured under generation gen.
func (o *Orchestrator) onPoll(connectorID string, gen uint64, u poller.Update) {
	o.mu.Lock()
	if o.generations[connectorID] != gen {
		o.mu.Unlock()
		o.discardStale(connectorID, SourcePoll)
		return
	}
	if u.Status == nil {
		status, ok := o.statuses[connectorID]
		if !ok {
			status = connection.ConnectorStatus{ConnectorID: connectorID, State: connection.StateConnecting, RequiresAuth: true}
		}
		event := StatusEvent{
			ConnectorID: connectorID,
			OldState:    status.State,
			Status:      status,
			Source:      SourcePollFailed,
			Timestamp:   o.clock.Now(),
			Err:         u.Err,
		}
		if u.Err != nil {
			event.Error = u.Err.Error()
		}
		subs := o.subscribersLocked(connectorID)
		o.mu.Unlock()
		logging.Debug("Orchestrator", "Poll for %s failed, keeping cached status: %v", connectorID, u.Err)
		notify(subs, event)
		return
	}

	source := SourcePoll
	if errors.Is(u.Err, ErrFlowTimeout) {
		source = SourceTimeout
	}
	event := o.setStatusLocked(*u.Status, source)
	if u.Final {
		delete(o.flows, connectorID)
		o.generations[connectorID]++
	}
	subs := o.subscribersLocked(connectorID)
	o.mu.Unlock()

	if u.Final {
		outcome := metrics.OutcomeConnected
		switch {
		case source == SourceTimeout:
			outcome = metrics.OutcomeTimeout
		case u.Status.State == connection.StateError:
			outcome = metrics.OutcomeError
		}
		o.metrics.FlowFinished(connectorID, outcome)
		logging.Info("Orchestrator", "Authorization flow for %s finished: %s", connectorID, outcome)
	}
	notify(subs, event)
}

// ReinitializeAuthorization re-runs the credential exchange of a connected
// connector. The gateway performs the exchange synchronously, so the cached
// status moves to connected or error without polling. The gateway's message
// is returned verbatim in both cases; failure is reported as *ActionError.
func (o *Orchestrator) ReinitializeAuthorization(ctx context.Context, connectorID string) (string, error) {
	gen := o.generation(connectorID)

	resp, err := o.backend.Reinitialize(ctx, connectorID)
	o.metrics.ActionSent("reinitialize", actionResult(resp, err))
	if err != nil {
		return "", fmt.Errorf("failed to reinitialize authorization for %s: %w", connectorID, err)
	}

	status := connection.Connected(connectorID)
	if !resp.Success {
		status = connection.Failed(connectorID, resp.Message)
	}

	o.mu.Lock()
	if o.generations[connectorID] != gen {
		o.mu.Unlock()
		o.discardStale(connectorID, SourceReinitialize)
	} else {
		event := o.setStatusLocked(status, SourceReinitialize)
		subs := o.subscribersLocked(connectorID)
		o.mu.Unlock()
		notify(subs, event)
	}

	if !resp.Success {
		return resp.Message, &ActionError{ConnectorID: connectorID, Action: "reinitialize", Message: resp.Message}
	}
	return resp.Message, nil
}

// CancelAuthorization tears down the connector's flow and asks the gateway to
// invalidate it. The local teardown happens first and regardless of the
// gateway's answer; the returned error only reports the gateway call.
// Without an active flow this is a no-op.
func (o *Orchestrator) CancelAuthorization(ctx context.Context, connectorID string) error {
	o.mu.Lock()
	if _, ok := o.flows[connectorID]; !ok {
		o.mu.Unlock()
		logging.Debug("Orchestrator", "No authorization flow to cancel for %s", connectorID)
		return nil
	}
	o.endFlowLocked(connectorID)
	event := o.setStatusLocked(connection.Disconnected(connectorID), SourceCancel)
	subs := o.subscribersLocked(connectorID)
	o.mu.Unlock()

	o.registry.Stop(connectorID)
	o.metrics.FlowFinished(connectorID, metrics.OutcomeCanceled)
	logging.Info("Orchestrator", "Authorization flow for %s canceled", connectorID)
	notify(subs, event)

	resp, err := o.backend.Cancel(ctx, connectorID)
	o.metrics.ActionSent("cancel", actionResult(resp, err))
	if err != nil {
		logging.Warn("Orchestrator", "Gateway cancel for %s failed, flow was torn down locally: %v", connectorID, err)
		return fmt.Errorf("failed to cancel authorization on the gateway for %s: %w", connectorID, err)
	}
	if !resp.Success {
		return &ActionError{ConnectorID: connectorID, Action: "cancel", Message: resp.Message}
	}
	return nil
}

// RevokeAuthorization deletes the connector's stored credentials. On success
// the cached status becomes disconnected immediately and is then reconciled
// with a refresh. The gateway's message is returned verbatim.
func (o *Orchestrator) RevokeAuthorization(ctx context.Context, connectorID string) (string, error) {
	resp, err := o.backend.Revoke(ctx, connectorID)
	o.metrics.ActionSent("revoke", actionResult(resp, err))
	if err != nil {
		return "", fmt.Errorf("failed to revoke authorization for %s: %w", connectorID, err)
	}
	if !resp.Success {
		return resp.Message, &ActionError{ConnectorID: connectorID, Action: "revoke", Message: resp.Message}
	}

	o.mu.Lock()
	_, hadFlow := o.flows[connectorID]
	o.endFlowLocked(connectorID)
	event := o.setStatusLocked(connection.Disconnected(connectorID), SourceRevoke)
	subs := o.subscribersLocked(connectorID)
	o.mu.Unlock()

	if hadFlow {
		o.registry.Stop(connectorID)
		o.metrics.FlowFinished(connectorID, metrics.OutcomeCanceled)
	}
	notify(subs, event)

	if _, err := o.RefreshStatus(ctx, connectorID); err != nil {
		logging.Warn("Orchestrator", "Status refresh after revoking %s failed: %v", connectorID, err)
	}
	return resp.Message, nil
}

// GetStatus returns the cached status of a connector. It never blocks on
// the network.
func (o *Orchestrator) GetStatus(connectorID string) (connection.ConnectorStatus, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	s, ok := o.statuses[connectorID]
	return s, ok
}

// Statuses returns a snapshot of every cached status sorted by connector id.
func (o *Orchestrator) Statuses() []connection.ConnectorStatus {
	o.mu.Lock()
	defer o.mu.Unlock()
	out := make([]connection.ConnectorStatus, 0, len(o.statuses))
	for _, s := range o.statuses {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ConnectorID < out[j].ConnectorID })
	return out
}

// RefreshStatus fetches the connector's status now. Concurrent calls for the
// same connector share one request. The result is cached unless the
// connector's generation moved on while the request was in flight.
// Transport errors leave the cache untouched.
func (o *Orchestrator) RefreshStatus(ctx context.Context, connectorID string) (connection.ConnectorStatus, error) {
	gen := o.generation(connectorID)
	key := fmt.Sprintf("status/%s/%d", connectorID, gen)

	v, err := o.shared(ctx, key, func(ctx context.Context) (interface{}, error) {
		status, err := o.fetch(ctx, connectorID)
		if err != nil {
			return connection.ConnectorStatus{}, err
		}
		status = status.Normalize()
		o.apply(connectorID, gen, status, SourceRefresh)
		return status, nil
	})
	if err != nil {
		return connection.ConnectorStatus{}, fmt.Errorf("failed to refresh status of %s: %w", connectorID, err)
	}
	return v.(connection.ConnectorStatus), nil
}

// LoadAll lists the gateway's connectors and refreshes each status with
// bounded concurrency. Per-connector failures are joined into the returned
// error; the statuses that could be fetched are returned regardless.
func (o *Orchestrator) LoadAll(ctx context.Context) ([]connection.ConnectorStatus, error) {
	connectors, err := o.backend.ListConnectors(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list connectors: %w", err)
	}

	var (
		mu       sync.Mutex
		statuses []connection.ConnectorStatus
		errs     []error
	)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(o.loadN)
	for _, c := range connectors {
		g.Go(func() error {
			status, err := o.RefreshStatus(gctx, c.ID)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				errs = append(errs, err)
				return nil
			}
			statuses = append(statuses, status)
			return nil
		})
	}
	_ = g.Wait()

	sort.Slice(statuses, func(i, j int) bool { return statuses[i].ConnectorID < statuses[j].ConnectorID })
	logging.Debug("Orchestrator", "Loaded %d of %d connector statuses", len(statuses), len(connectors))
	return statuses, errors.Join(errs...)
}

// Forget drops everything known about a deleted connector: its cached
// status, its flow and its poller.
func (o *Orchestrator) Forget(connectorID string) {
	o.mu.Lock()
	_, hadFlow := o.flows[connectorID]
	o.endFlowLocked(connectorID)
	delete(o.statuses, connectorID)
	o.mu.Unlock()

	if hadFlow {
		o.registry.Stop(connectorID)
	}
}

// ActiveFlows returns the running flows sorted by connector id.
func (o *Orchestrator) ActiveFlows() []Flow {
	o.mu.Lock()
	defer o.mu.Unlock()
	out := make([]Flow, 0, len(o.flows))
	for _, f := range o.flows {
		out = append(out, *f)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ConnectorID < out[j].ConnectorID })
	return out
}

// Subscribe registers fn for status changes of one connector. The returned
// function unsubscribes.
func (o *Orchestrator) Subscribe(connectorID string, fn func(StatusEvent)) func() {
	o.mu.Lock()
	defer o.mu.Unlock()

	subs, ok := o.subscribers[connectorID]
	if !ok {
		subs = make(map[int]func(StatusEvent))
		o.subscribers[connectorID] = subs
	}
	id := o.nextSub
	o.nextSub++
	subs[id] = fn

	var once sync.Once
	return func() {
		once.Do(func() {
			o.mu.Lock()
			defer o.mu.Unlock()
			delete(o.subscribers[connectorID], id)
			if len(o.subscribers[connectorID]) == 0 {
				delete(o.subscribers, connectorID)
			}
		})
	}
}

// SubscribeAll registers fn for status changes of every connector.
func (o *Orchestrator) SubscribeAll(fn func(StatusEvent)) func() {
	return o.Subscribe(allConnectors, fn)
}

// Close stops every poller. Flows still running are dropped.
func (o *Orchestrator) Close() {
	o.mu.Lock()
	for id := range o.flows {
		o.endFlowLocked(id)
	}
	o.mu.Unlock()
	o.registry.StopAll()
}

const allConnectors = "*"

// shared runs fn once for all concurrent callers with the same key. fn gets a
// context detached from the first caller and bounded by the request timeout,
// so one caller giving up does not fail the others; each caller still
// returns as soon as its own ctx ends.
func (o *Orchestrator) shared(ctx context.Context, key string, fn func(context.Context) (interface{}, error)) (interface{}, error) {
	ch := o.group.DoChan(key, func() (interface{}, error) {
		callCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), o.timeout)
		defer cancel()
		return fn(callCtx)
	})
	select {
	case res := <-ch:
		return res.Val, res.Err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (o *Orchestrator) generation(connectorID string) uint64 {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.generations[connectorID]
}

// endFlowLocked removes the flow (if any) and moves the generation on.
func (o *Orchestrator) endFlowLocked(connectorID string) {
	delete(o.flows, connectorID)
	o.generations[connectorID]++
}

// apply caches status if the generation still matches.
func (o *Orchestrator) apply(connectorID string, gen uint64, status connection.ConnectorStatus, source string) bool {
	o.mu.Lock()
	if o.generations[connectorID] != gen {
		o.mu.Unlock()
		o.discardStale(connectorID, source)
		return false
	}
	event := o.setStatusLocked(status, source)
	subs := o.subscribersLocked(connectorID)
	o.mu.Unlock()

	notify(subs, event)
	return true
}

func (o *Orchestrator) setStatusLocked(status connection.ConnectorStatus, source string) StatusEvent {
	old, ok := o.statuses[status.ConnectorID]
	oldState := connection.StateDisconnected
	if ok {
		oldState = old.State
	}
	o.statuses[status.ConnectorID] = status
	return StatusEvent{
		ConnectorID: status.ConnectorID,
		OldState:    oldState,
		Status:      status,
		Source:      source,
		Timestamp:   o.clock.Now(),
	}
}

func (o *Orchestrator) subscribersLocked(connectorID string) []func(StatusEvent) {
	var out []func(StatusEvent)
	for _, key := range []string{connectorID, allConnectors} {
		ids := make([]int, 0, len(o.subscribers[key]))
		for id := range o.subscribers[key] {
			ids = append(ids, id)
		}
		sort.Ints(ids)
		for _, id := range ids {
			out = append(out, o.subscribers[key][id])
		}
	}
	return out
}

func notify(subs []func(StatusEvent), event StatusEvent) {
	for _, fn := range subs {
		fn(event)
	}
}

func (o *Orchestrator) discardStale(connectorID, source string) {
	logging.Debug("Orchestrator", "StaleResponseDiscarded: %s response for %s arrived after its flow ended", source, connectorID)
	o.metrics.StaleDiscarded(connectorID, source)
}

func (o *Orchestrator) fetch(ctx context.Context, connectorID string) (connection.ConnectorStatus, error) {
	status, err := o.backend.Status(ctx, connectorID)
	o.metrics.StatusFetched(resultOf(err))
	return status, err
}

func resultOf(err error) string {
	switch {
	case err == nil:
		return metrics.ResultOK
	case backend.IsTransportError(err), errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		return metrics.ResultTransport
	default:
		return metrics.ResultAPI
	}
}

func actionResult(resp *backend.ActionResponse, err error) string {
	if err == nil && resp != nil && !resp.Success {
		return metrics.ResultAPI
	}
	return resultOf(err)
}
