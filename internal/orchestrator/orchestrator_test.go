package orchestrator

import (
	"context"
	"errors"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"connectorctl/internal/backend"
	"connectorctl/internal/browser"
	"connectorctl/internal/metrics"
	"connectorctl/internal/poller"
	"connectorctl/internal/testing/mock"
	"connectorctl/pkg/connection"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type harness struct {
	orch    *Orchestrator
	gateway *mock.Backend
	server  *httptest.Server
	opener  *browser.RecordingOpener
	metrics *metrics.FlowMetrics
}

func newHarness(t *testing.T, polling poller.Config) *harness {
	t.Helper()

	gw := mock.NewBackend()
	srv := httptest.NewServer(gw)
	t.Cleanup(srv.Close)

	client, err := backend.NewClient(srv.URL, backend.WithRetryMax(0))
	require.NoError(t, err)

	if polling.Interval == 0 {
		polling.Interval = 5 * time.Millisecond
	}
	h := &harness{
		gateway: gw,
		server:  srv,
		opener:  &browser.RecordingOpener{},
		metrics: metrics.NewWithoutRuntime(),
	}
	h.orch = New(client, Config{Opener: h.opener, Metrics: h.metrics, Polling: polling})
	t.Cleanup(func() {
		h.orch.Close()
		h.orch.Registry().Wait()
	})
	return h
}

func (h *harness) state(t *testing.T, id string) connection.State {
	t.Helper()
	s, ok := h.orch.GetStatus(id)
	if !ok {
		return connection.State(-1)
	}
	return s.State
}

type eventLog struct {
	mu     sync.Mutex
	events []StatusEvent
}

func (l *eventLog) add(e StatusEvent) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.events = append(l.events, e)
}

func (l *eventLog) sources() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]string, 0, len(l.events))
	for _, e := range l.events {
		out = append(out, e.Source)
	}
	return out
}

func staleMetric(id, source string) string {
	return `
# HELP connectorctl_authorization_stale_responses_discarded_total Responses dropped because the connector's generation moved on.
# TYPE connectorctl_authorization_stale_responses_discarded_total counter
connectorctl_authorization_stale_responses_discarded_total{connector_id="` + id + `",source="` + source + `"} 1
`
}

func TestInitiateAuthorization_PollsUntilConnected(t *testing.T) {
	h := newHarness(t, poller.Config{Interval: 20 * time.Millisecond})
	h.gateway.AddConnector(backend.Connector{ID: "srv-1"}, true)
	h.gateway.ScriptStatus("srv-1",
		connection.StateConnecting,
		connection.StateConnecting,
		connection.StateConnecting,
		connection.StateConnected,
	)

	log := &eventLog{}
	defer h.orch.Subscribe("srv-1", log.add)()

	res, err := h.orch.InitiateAuthorization(context.Background(), "srv-1")
	require.NoError(t, err)
	assert.NotEmpty(t, res.AuthorizationURL)
	assert.False(t, res.Existing)
	assert.Equal(t, h.gateway.FlowID("srv-1"), res.FlowID)
	assert.True(t, h.orch.Registry().Active("srv-1"))
	assert.Equal(t, []string{res.AuthorizationURL}, h.opener.URLs())

	_, cached := h.orch.GetStatus("srv-1")
	assert.False(t, cached, "initiate must not touch the cached status")

	require.Eventually(t, func() bool {
		return h.state(t, "srv-1") == connection.StateConnected
	}, 2*time.Second, 5*time.Millisecond)
	require.Eventually(t, func() bool {
		return !h.orch.Registry().Active("srv-1")
	}, time.Second, 5*time.Millisecond)

	assert.Empty(t, h.orch.ActiveFlows())
	assert.Equal(t, 4, h.gateway.Calls(mock.OpStatus, "srv-1"))
	assert.Equal(t, []string{"poll", "poll", "poll", "poll"}, log.sources())
}

func TestInitiateAuthorization_Coalesces(t *testing.T) {
	h := newHarness(t, poller.Config{Interval: time.Hour})
	h.gateway.AddConnector(backend.Connector{ID: "srv-1"}, true)
	h.gateway.SetDelay(50 * time.Millisecond)

	var wg sync.WaitGroup
	results := make([]InitiateResult, 2)
	errs := make([]error, 2)
	for i := range results {
		wg.Add(1)
		go func() {
			defer wg.Done()
			results[i], errs[i] = h.orch.InitiateAuthorization(context.Background(), "srv-1")
		}()
	}
	wg.Wait()

	require.NoError(t, errs[0])
	require.NoError(t, errs[1])
	assert.Equal(t, results[0].AuthorizationURL, results[1].AuthorizationURL)
	assert.Equal(t, 1, h.gateway.Calls(mock.OpInitiate, "srv-1"))
	assert.Equal(t, 1, h.orch.Registry().Len())
	assert.Equal(t, 1, h.orch.Registry().Subscribers("srv-1"))
	assert.Len(t, h.orch.ActiveFlows(), 1)

	again, err := h.orch.InitiateAuthorization(context.Background(), "srv-1")
	require.NoError(t, err)
	assert.True(t, again.Existing)
	assert.Equal(t, results[0].AuthorizationURL, again.AuthorizationURL)
	assert.Equal(t, 1, h.gateway.Calls(mock.OpInitiate, "srv-1"))
}

func TestInitiateAuthorization_NoAuthorizationRequired(t *testing.T) {
	h := newHarness(t, poller.Config{})
	h.gateway.AddConnector(backend.Connector{ID: "open"}, false)

	_, err := h.orch.InitiateAuthorization(context.Background(), "open")
	require.ErrorIs(t, err, ErrNoAuthorizationRequired)

	assert.Empty(t, h.orch.ActiveFlows())
	assert.Equal(t, 0, h.orch.Registry().Len())
	assert.Empty(t, h.opener.URLs())
}

func TestInitiateAuthorization_BackendFailure(t *testing.T) {
	h := newHarness(t, poller.Config{})
	h.gateway.AddConnector(backend.Connector{ID: "srv-1"}, true)
	h.gateway.FailNext(mock.OpInitiate, 1)

	_, err := h.orch.InitiateAuthorization(context.Background(), "srv-1")
	require.Error(t, err)
	var apiErr *backend.APIError
	assert.True(t, errors.As(err, &apiErr))
	assert.Empty(t, h.orch.ActiveFlows())

	// A later attempt starts a fresh flow.
	_, err = h.orch.InitiateAuthorization(context.Background(), "srv-1")
	require.NoError(t, err)
	assert.Len(t, h.orch.ActiveFlows(), 1)
}

func TestInitiateAuthorization_BrowserFailureIsNotFatal(t *testing.T) {
	h := newHarness(t, poller.Config{Interval: time.Hour})
	h.opener.Err = errors.New("no display")
	h.gateway.AddConnector(backend.Connector{ID: "srv-1"}, true)

	res, err := h.orch.InitiateAuthorization(context.Background(), "srv-1")
	require.NoError(t, err)
	assert.NotEmpty(t, res.AuthorizationURL)
}

func TestInitiateAuthorization_CanceledWhileInFlight(t *testing.T) {
	h := newHarness(t, poller.Config{Interval: time.Hour})
	h.gateway.AddConnector(backend.Connector{ID: "srv-1"}, true)
	h.gateway.SetDelay(100 * time.Millisecond)

	errCh := make(chan error, 1)
	go func() {
		_, err := h.orch.InitiateAuthorization(context.Background(), "srv-1")
		errCh <- err
	}()

	require.Eventually(t, func() bool { return len(h.orch.ActiveFlows()) == 1 }, time.Second, time.Millisecond)
	require.NoError(t, h.orch.CancelAuthorization(context.Background(), "srv-1"))

	assert.ErrorIs(t, <-errCh, ErrFlowCanceled)
	assert.Equal(t, 0, h.orch.Registry().Len())
	assert.Empty(t, h.orch.ActiveFlows())
	assert.Equal(t, connection.StateDisconnected, h.state(t, "srv-1"))
	assert.NoError(t, testutil.GatherAndCompare(h.metrics.Registry(),
		strings.NewReader(staleMetric("srv-1", "initiate")),
		"connectorctl_authorization_stale_responses_discarded_total"))
}

func TestCancelAuthorization_AfterFirstTick(t *testing.T) {
	h := newHarness(t, poller.Config{Interval: 10 * time.Millisecond})
	h.gateway.AddConnector(backend.Connector{ID: "srv-1"}, true)
	h.gateway.ScriptStatus("srv-1", connection.StateConnecting)

	_, err := h.orch.InitiateAuthorization(context.Background(), "srv-1")
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		return h.state(t, "srv-1") == connection.StateConnecting
	}, time.Second, time.Millisecond)

	require.NoError(t, h.orch.CancelAuthorization(context.Background(), "srv-1"))

	assert.Equal(t, connection.StateDisconnected, h.state(t, "srv-1"))
	assert.Equal(t, 1, h.gateway.Calls(mock.OpCancel, "srv-1"))
	assert.False(t, h.orch.Registry().Active("srv-1"))
	assert.Empty(t, h.orch.ActiveFlows())

	// Late ticks must not bring the flow back.
	h.gateway.SetStatus(connection.Connected("srv-1"))
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, connection.StateDisconnected, h.state(t, "srv-1"))
}

func TestCancelAuthorization_NoFlowIsNoop(t *testing.T) {
	h := newHarness(t, poller.Config{})
	h.gateway.AddConnector(backend.Connector{ID: "srv-1"}, true)

	require.NoError(t, h.orch.CancelAuthorization(context.Background(), "srv-1"))
	assert.Equal(t, 0, h.gateway.Calls(mock.OpCancel, "srv-1"))
	_, cached := h.orch.GetStatus("srv-1")
	assert.False(t, cached)
}

func TestCancelAuthorization_GatewayFailureStillTearsDown(t *testing.T) {
	h := newHarness(t, poller.Config{Interval: time.Hour})
	h.gateway.AddConnector(backend.Connector{ID: "srv-1"}, true)
	_, err := h.orch.InitiateAuthorization(context.Background(), "srv-1")
	require.NoError(t, err)

	h.gateway.FailNext(mock.OpCancel, 1)
	err = h.orch.CancelAuthorization(context.Background(), "srv-1")
	require.Error(t, err)

	assert.Equal(t, connection.StateDisconnected, h.state(t, "srv-1"))
	assert.Equal(t, 0, h.orch.Registry().Len())
	assert.Empty(t, h.orch.ActiveFlows())
}

func TestRefreshStatus_StaleResponseDiscardedAfterCancel(t *testing.T) {
	h := newHarness(t, poller.Config{Interval: time.Hour})
	h.gateway.AddConnector(backend.Connector{ID: "srv-1"}, true)
	_, err := h.orch.InitiateAuthorization(context.Background(), "srv-1")
	require.NoError(t, err)

	h.gateway.SetStatus(connection.Connected("srv-1"))
	h.gateway.SetDelay(100 * time.Millisecond)

	done := make(chan struct{})
	go func() {
		defer close(done)
		_, _ = h.orch.RefreshStatus(context.Background(), "srv-1")
	}()

	time.Sleep(20 * time.Millisecond)
	require.NoError(t, h.orch.CancelAuthorization(context.Background(), "srv-1"))
	<-done

	assert.Equal(t, connection.StateDisconnected, h.state(t, "srv-1"))
	assert.NoError(t, testutil.GatherAndCompare(h.metrics.Registry(),
		strings.NewReader(staleMetric("srv-1", "refresh")),
		"connectorctl_authorization_stale_responses_discarded_total"))
}

func TestOnPoll_DiscardsOlderGeneration(t *testing.T) {
	h := newHarness(t, poller.Config{})
	h.orch.mu.Lock()
	h.orch.statuses["srv-1"] = connection.Disconnected("srv-1")
	h.orch.generations["srv-1"] = 3
	h.orch.mu.Unlock()

	status := connection.Connected("srv-1")
	h.orch.onPoll("srv-1", 2, poller.Update{ConnectorID: "srv-1", Status: &status, Final: true})

	assert.Equal(t, connection.StateDisconnected, h.state(t, "srv-1"))
	assert.NoError(t, testutil.GatherAndCompare(h.metrics.Registry(),
		strings.NewReader(staleMetric("srv-1", "poll")),
		"connectorctl_authorization_stale_responses_discarded_total"))
}

func TestFlowTimeout(t *testing.T) {
	clock := mock.NewMockClock(time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC))
	h := newHarness(t, poller.Config{Interval: 5 * time.Millisecond, MaxLifetime: time.Minute, Clock: clock})
	h.gateway.AddConnector(backend.Connector{ID: "srv-1"}, true)
	h.gateway.ScriptStatus("srv-1", connection.StateConnecting)

	log := &eventLog{}
	defer h.orch.Subscribe("srv-1", log.add)()

	_, err := h.orch.InitiateAuthorization(context.Background(), "srv-1")
	require.NoError(t, err)
	require.Eventually(t, func() bool {
		return h.state(t, "srv-1") == connection.StateConnecting
	}, time.Second, time.Millisecond)

	clock.Advance(2 * time.Minute)

	require.Eventually(t, func() bool {
		return h.state(t, "srv-1") == connection.StateError
	}, time.Second, time.Millisecond)

	status, _ := h.orch.GetStatus("srv-1")
	assert.Contains(t, status.LastError, "not completed within")
	assert.False(t, h.orch.Registry().Active("srv-1"))
	assert.Empty(t, h.orch.ActiveFlows())
	assert.Contains(t, log.sources(), "timeout")
}

func TestRevokeAuthorization(t *testing.T) {
	h := newHarness(t, poller.Config{})
	h.gateway.AddConnector(backend.Connector{ID: "srv-1"}, true)
	h.gateway.SetStatus(connection.Connected("srv-1"))
	_, err := h.orch.RefreshStatus(context.Background(), "srv-1")
	require.NoError(t, err)

	log := &eventLog{}
	defer h.orch.Subscribe("srv-1", log.add)()

	msg, err := h.orch.RevokeAuthorization(context.Background(), "srv-1")
	require.NoError(t, err)
	assert.Equal(t, "Credentials revoked", msg)
	assert.Equal(t, connection.StateDisconnected, h.state(t, "srv-1"))
	assert.Equal(t, []string{"revoke", "refresh"}, log.sources())
	assert.Equal(t, 2, h.gateway.Calls(mock.OpStatus, "srv-1"))
}

func TestRevokeAuthorization_FailureKeepsCache(t *testing.T) {
	h := newHarness(t, poller.Config{})
	h.gateway.AddConnector(backend.Connector{ID: "srv-1"}, true)
	h.gateway.SetStatus(connection.Connected("srv-1"))
	_, err := h.orch.RefreshStatus(context.Background(), "srv-1")
	require.NoError(t, err)

	h.gateway.FailNext(mock.OpRevoke, 1)
	_, err = h.orch.RevokeAuthorization(context.Background(), "srv-1")
	require.Error(t, err)
	assert.Equal(t, connection.StateConnected, h.state(t, "srv-1"))
}

func TestReinitializeAuthorization_Success(t *testing.T) {
	h := newHarness(t, poller.Config{})
	h.gateway.AddConnector(backend.Connector{ID: "srv-1"}, true)

	msg, err := h.orch.ReinitializeAuthorization(context.Background(), "srv-1")
	require.NoError(t, err)
	assert.Equal(t, "Credentials refreshed", msg)
	assert.Equal(t, connection.StateConnected, h.state(t, "srv-1"))
	assert.Equal(t, 0, h.orch.Registry().Len())
}

func TestReinitializeAuthorization_Failure(t *testing.T) {
	h := newHarness(t, poller.Config{})
	h.gateway.AddConnector(backend.Connector{ID: "srv-1"}, true)
	h.gateway.SetReinitializeResult("srv-1", backend.ActionResponse{
		Success: false,
		Message: "Token endpoint rejected the refresh token",
	})

	msg, err := h.orch.ReinitializeAuthorization(context.Background(), "srv-1")
	require.Error(t, err)
	assert.True(t, IsActionError(err))
	assert.Equal(t, "Token endpoint rejected the refresh token", msg)

	status, ok := h.orch.GetStatus("srv-1")
	require.True(t, ok)
	assert.Equal(t, connection.StateError, status.State)
	assert.Equal(t, "Token endpoint rejected the refresh token", status.LastError)
}

func TestRefreshStatus_Coalesces(t *testing.T) {
	h := newHarness(t, poller.Config{})
	h.gateway.AddConnector(backend.Connector{ID: "srv-1"}, true)
	h.gateway.SetDelay(50 * time.Millisecond)

	var wg sync.WaitGroup
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := h.orch.RefreshStatus(context.Background(), "srv-1")
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, h.gateway.Calls(mock.OpStatus, "srv-1"))
	assert.Equal(t, connection.StateDisconnected, h.state(t, "srv-1"))
}

func TestRefreshStatus_NormalizesNoAuthConnector(t *testing.T) {
	h := newHarness(t, poller.Config{})
	h.gateway.AddConnector(backend.Connector{ID: "open"}, false)

	status, err := h.orch.RefreshStatus(context.Background(), "open")
	require.NoError(t, err)
	assert.Equal(t, connection.StateConnected, status.State)
	assert.Equal(t, connection.StateConnected, h.state(t, "open"))
}

func TestRefreshStatus_TransportErrorKeepsCache(t *testing.T) {
	h := newHarness(t, poller.Config{})
	h.gateway.AddConnector(backend.Connector{ID: "srv-1"}, true)
	h.gateway.SetStatus(connection.Connected("srv-1"))
	_, err := h.orch.RefreshStatus(context.Background(), "srv-1")
	require.NoError(t, err)

	h.server.Close()

	_, err = h.orch.RefreshStatus(context.Background(), "srv-1")
	require.Error(t, err)
	assert.True(t, backend.IsTransportError(err))
	assert.Equal(t, connection.StateConnected, h.state(t, "srv-1"))
}

func TestLoadAll(t *testing.T) {
	h := newHarness(t, poller.Config{})
	h.gateway.AddConnector(backend.Connector{ID: "a"}, true)
	h.gateway.AddConnector(backend.Connector{ID: "b"}, false)
	h.gateway.AddConnector(backend.Connector{ID: "c"}, true)
	h.gateway.SetStatus(connection.Connected("c"))

	statuses, err := h.orch.LoadAll(context.Background())
	require.NoError(t, err)
	require.Len(t, statuses, 3)

	assert.Equal(t, "a", statuses[0].ConnectorID)
	assert.Equal(t, connection.StateDisconnected, statuses[0].State)
	assert.Equal(t, connection.StateConnected, statuses[1].State)
	assert.Equal(t, connection.StateConnected, statuses[2].State)
	assert.Len(t, h.orch.Statuses(), 3)
}

func TestLoadAll_PartialFailure(t *testing.T) {
	h := newHarness(t, poller.Config{})
	h.gateway.AddConnector(backend.Connector{ID: "a"}, true)
	h.gateway.AddConnector(backend.Connector{ID: "b"}, true)
	h.gateway.FailNext(mock.OpStatus, 1)

	statuses, err := h.orch.LoadAll(context.Background())
	require.Error(t, err)
	assert.Len(t, statuses, 1)
}

func TestSubscribe(t *testing.T) {
	h := newHarness(t, poller.Config{})
	h.gateway.AddConnector(backend.Connector{ID: "a"}, true)
	h.gateway.AddConnector(backend.Connector{ID: "b"}, true)

	one, all := &eventLog{}, &eventLog{}
	unsubscribe := h.orch.Subscribe("a", one.add)
	defer h.orch.SubscribeAll(all.add)()

	_, _ = h.orch.RefreshStatus(context.Background(), "a")
	_, _ = h.orch.RefreshStatus(context.Background(), "b")
	assert.Len(t, one.sources(), 1)
	assert.Len(t, all.sources(), 2)

	unsubscribe()
	unsubscribe()
	_, _ = h.orch.ReinitializeAuthorization(context.Background(), "a")
	assert.Len(t, one.sources(), 1)
	assert.Len(t, all.sources(), 3)
}

func TestForget(t *testing.T) {
	h := newHarness(t, poller.Config{Interval: time.Hour})
	h.gateway.AddConnector(backend.Connector{ID: "srv-1"}, true)
	_, err := h.orch.InitiateAuthorization(context.Background(), "srv-1")
	require.NoError(t, err)
	_, err = h.orch.RefreshStatus(context.Background(), "srv-1")
	require.NoError(t, err)

	h.orch.Forget("srv-1")

	_, cached := h.orch.GetStatus("srv-1")
	assert.False(t, cached)
	assert.Empty(t, h.orch.ActiveFlows())
	assert.Equal(t, 0, h.orch.Registry().Len())
}

func TestClose_StopsAllPollers(t *testing.T) {
	h := newHarness(t, poller.Config{Interval: time.Hour})
	for _, id := range []string{"a", "b"} {
		h.gateway.AddConnector(backend.Connector{ID: id}, true)
		_, err := h.orch.InitiateAuthorization(context.Background(), id)
		require.NoError(t, err)
	}
	require.Equal(t, 2, h.orch.Registry().Len())

	h.orch.Close()
	assert.Equal(t, 0, h.orch.Registry().Len())
	assert.Empty(t, h.orch.ActiveFlows())
	assert.NoError(t, testutil.GatherAndCompare(h.metrics.Registry(), strings.NewReader(`
# HELP connectorctl_poller_active Number of running status pollers.
# TYPE connectorctl_poller_active gauge
connectorctl_poller_active 0
`), "connectorctl_poller_active"))
}

func TestOnPoll_FetchFailureNotifiesSubscribers(t *testing.T) {
	h := newHarness(t, poller.Config{Interval: 10 * time.Millisecond})
	h.gateway.AddConnector(backend.Connector{ID: "srv-1"}, true)
	h.gateway.FailNext(mock.OpStatus, 2)

	log := &eventLog{}
	defer h.orch.Subscribe("srv-1", log.add)()

	_, err := h.orch.InitiateAuthorization(context.Background(), "srv-1")
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		sources := log.sources()
		return len(sources) >= 3 && sources[2] == SourcePoll
	}, 2*time.Second, 5*time.Millisecond)

	log.mu.Lock()
	failed := append([]StatusEvent(nil), log.events[:2]...)
	log.mu.Unlock()
	for _, ev := range failed {
		assert.Equal(t, SourcePollFailed, ev.Source)
		var apiErr *backend.APIError
		assert.True(t, errors.As(ev.Err, &apiErr), "got %v", ev.Err)
		assert.NotEmpty(t, ev.Error)
		assert.Equal(t, connection.StateConnecting, ev.Status.State)
	}
	assert.True(t, h.orch.Registry().Active("srv-1"), "polling continues after failed fetches")
}

func TestInitiateAuthorization_SharedCallOutlivesFirstCaller(t *testing.T) {
	h := newHarness(t, poller.Config{Interval: time.Hour})
	h.gateway.AddConnector(backend.Connector{ID: "srv-1"}, true)
	h.gateway.SetDelay(100 * time.Millisecond)

	ctxA, cancelA := context.WithCancel(context.Background())
	errA := make(chan error, 1)
	go func() {
		_, err := h.orch.InitiateAuthorization(ctxA, "srv-1")
		errA <- err
	}()
	require.Eventually(t, func() bool { return len(h.orch.ActiveFlows()) == 1 }, time.Second, time.Millisecond)

	type result struct {
		res InitiateResult
		err error
	}
	resB := make(chan result, 1)
	go func() {
		res, err := h.orch.InitiateAuthorization(context.Background(), "srv-1")
		resB <- result{res, err}
	}()

	time.Sleep(20 * time.Millisecond)
	cancelA()

	assert.ErrorIs(t, <-errA, context.Canceled)
	b := <-resB
	require.NoError(t, b.err)
	assert.NotEmpty(t, b.res.AuthorizationURL)
	assert.Equal(t, 1, h.gateway.Calls(mock.OpInitiate, "srv-1"))
	assert.True(t, h.orch.Registry().Active("srv-1"))
}

func TestRefreshStatus_SharedCallOutlivesFirstCaller(t *testing.T) {
	h := newHarness(t, poller.Config{})
	h.gateway.AddConnector(backend.Connector{ID: "srv-1"}, true)
	h.gateway.SetStatus(connection.Connected("srv-1"))
	h.gateway.SetDelay(100 * time.Millisecond)

	ctxA, cancelA := context.WithCancel(context.Background())
	errA := make(chan error, 1)
	go func() {
		_, err := h.orch.RefreshStatus(ctxA, "srv-1")
		errA <- err
	}()
	time.Sleep(20 * time.Millisecond)

	errB := make(chan error, 1)
	go func() {
		_, err := h.orch.RefreshStatus(context.Background(), "srv-1")
		errB <- err
	}()
	time.Sleep(20 * time.Millisecond)
	cancelA()

	assert.ErrorIs(t, <-errA, context.Canceled)
	require.NoError(t, <-errB)
	assert.Equal(t, 1, h.gateway.Calls(mock.OpStatus, "srv-1"))
	assert.Equal(t, connection.StateConnected, h.state(t, "srv-1"))
}

func TestGenerations_BumpWhenFlowEnds(t *testing.T) {
	h := newHarness(t, poller.Config{Interval: time.Hour})
	h.gateway.AddConnector(backend.Connector{ID: "srv-1"}, true)

	_, err := h.orch.InitiateAuthorization(context.Background(), "srv-1")
	require.NoError(t, err)
	assert.Equal(t, uint64(0), h.orch.generation("srv-1"), "initiate captures the generation without bumping it")
	_, cached := h.orch.GetStatus("srv-1")
	assert.False(t, cached)

	require.NoError(t, h.orch.CancelAuthorization(context.Background(), "srv-1"))
	assert.Equal(t, uint64(1), h.orch.generation("srv-1"))

	h.orch.Forget("srv-1")
	assert.Equal(t, uint64(2), h.orch.generation("srv-1"))
}
