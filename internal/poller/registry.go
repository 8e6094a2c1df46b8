package poller

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"connectorctl/pkg/connection"
	"connectorctl/pkg/logging"
)

const (
	// DefaultInterval is the fixed cadence of status checks.
	DefaultInterval = 3 * time.Second

	// DefaultMaxLifetime bounds how long a flow may stay unresolved.
	DefaultMaxLifetime = 5 * time.Minute

	// DefaultRequestTimeout bounds a single status fetch.
	DefaultRequestTimeout = 10 * time.Second
)

// ErrFlowTimeout is reported when a flow reaches no terminal state before
// its maximum lifetime.
var ErrFlowTimeout = errors.New("authorization flow timed out")

// FetchFunc fetches the current status of one connector.
type FetchFunc func(ctx context.Context, connectorID string) (connection.ConnectorStatus, error)

// Update is delivered to subscribers after every tick.
type Update struct {
	ConnectorID string

	// Status is set when the tick produced a status, including the synthetic
	// error status of a timed out flow.
	Status *connection.ConnectorStatus

	// Err is set when the fetch failed or the flow timed out.
	Err error

	// Final is true for the last update a poller delivers.
	Final bool
}

// Config configures a Registry. Zero values fall back to the defaults.
type Config struct {
	Interval       time.Duration
	MaxLifetime    time.Duration
	RequestTimeout time.Duration
	Clock          Clock

	// OnStart and OnStop observe poller creation and teardown.
	OnStart func(connectorID string)
	OnStop  func(connectorID string)
}

func (c Config) withDefaults() Config {
	if c.Interval <= 0 {
		c.Interval = DefaultInterval
	}
	if c.MaxLifetime <= 0 {
		c.MaxLifetime = DefaultMaxLifetime
	}
	if c.RequestTimeout <= 0 {
		c.RequestTimeout = DefaultRequestTimeout
	}
	if c.Clock == nil {
		c.Clock = RealClock{}
	}
	return c
}

// Registry is the table of active pollers keyed by connector id.
type Registry struct {
	fetch FetchFunc
	cfg   Config

	mu      sync.Mutex
	pollers map[string]*poller
	wg      sync.WaitGroup
}

type poller struct {
	connectorID string
	startedAt   time.Time
	cancel      context.CancelFunc

	nextSub int
	subs    map[int]func(Update)
}

// New creates an empty registry.
func New(fetch FetchFunc, cfg Config) *Registry {
	return &Registry{
		fetch:   fetch,
		cfg:     cfg.withDefaults(),
		pollers: make(map[string]*poller),
	}
}

// Register subscribes onUpdate to the poller for connectorID, starting one if
// none is running. The returned function detaches the subscriber and is safe
// to call more than once.
func (r *Registry) Register(connectorID string, onUpdate func(Update)) (stop func()) {
	r.mu.Lock()
	p, exists := r.pollers[connectorID]
	if !exists {
		ctx, cancel := context.WithCancel(context.Background())
		p = &poller{
			connectorID: connectorID,
			startedAt:   r.cfg.Clock.Now(),
			cancel:      cancel,
			subs:        make(map[int]func(Update)),
		}
		r.pollers[connectorID] = p
		r.wg.Add(1)
		go r.run(ctx, p)
	}
	subID := p.nextSub
	p.nextSub++
	p.subs[subID] = onUpdate
	r.mu.Unlock()

	if !exists {
		logging.Debug("Poller", "Started poller for %s", connectorID)
		if r.cfg.OnStart != nil {
			r.cfg.OnStart(connectorID)
		}
	} else {
		logging.Debug("Poller", "Attached subscriber to running poller for %s", connectorID)
	}

	var once sync.Once
	return func() {
		once.Do(func() { r.detach(p, subID) })
	}
}

func (r *Registry) detach(p *poller, subID int) {
	r.mu.Lock()
	delete(p.subs, subID)
	removed := false
	if len(p.subs) == 0 && r.pollers[p.connectorID] == p {
		delete(r.pollers, p.connectorID)
		p.cancel()
		removed = true
	}
	r.mu.Unlock()

	if removed {
		logging.Debug("Poller", "Stopped poller for %s (last subscriber detached)", p.connectorID)
		r.stopped(p.connectorID)
	}
}

// Stop removes the poller for connectorID regardless of its subscribers.
// It reports whether a poller was running.
func (r *Registry) Stop(connectorID string) bool {
	r.mu.Lock()
	p, ok := r.pollers[connectorID]
	if ok {
		delete(r.pollers, connectorID)
		p.cancel()
	}
	r.mu.Unlock()

	if ok {
		logging.Debug("Poller", "Stopped poller for %s", connectorID)
		r.stopped(connectorID)
	}
	return ok
}

// StopAll cancels every poller and empties the table before returning.
// In-flight fetches are aborted and their results never delivered.
func (r *Registry) StopAll() {
	r.mu.Lock()
	stopped := make([]string, 0, len(r.pollers))
	for id, p := range r.pollers {
		p.cancel()
		stopped = append(stopped, id)
	}
	r.pollers = make(map[string]*poller)
	r.mu.Unlock()

	for _, id := range stopped {
		r.stopped(id)
	}
	if len(stopped) > 0 {
		logging.Debug("Poller", "Stopped %d pollers", len(stopped))
	}
}

// Active reports whether a poller is running for connectorID.
func (r *Registry) Active(connectorID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.pollers[connectorID]
	return ok
}

// Len returns the number of running pollers.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.pollers)
}

// Subscribers returns the number of subscribers attached to connectorID.
func (r *Registry) Subscribers(connectorID string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	if p, ok := r.pollers[connectorID]; ok {
		return len(p.subs)
	}
	return 0
}

// Wait blocks until every poller goroutine has exited.
func (r *Registry) Wait() {
	r.wg.Wait()
}

func (r *Registry) stopped(connectorID string) {
	if r.cfg.OnStop != nil {
		r.cfg.OnStop(connectorID)
	}
}

func (r *Registry) run(ctx context.Context, p *poller) {
	defer r.wg.Done()

	ticker := time.NewTicker(r.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		if r.cfg.Clock.Now().Sub(p.startedAt) >= r.cfg.MaxLifetime {
			status := connection.Failed(p.connectorID,
				fmt.Sprintf("authorization was not completed within %s", r.cfg.MaxLifetime))
			logging.Warn("Poller", "Authorization flow for %s timed out after %s", p.connectorID, r.cfg.MaxLifetime)
			r.finish(p, Update{
				ConnectorID: p.connectorID,
				Status:      &status,
				Err:         ErrFlowTimeout,
				Final:       true,
			})
			return
		}

		if !r.tick(ctx, p) {
			return
		}
	}
}

// tick performs one fetch and reports whether polling continues.
func (r *Registry) tick(ctx context.Context, p *poller) bool {
	fetchCtx, cancel := context.WithTimeout(ctx, r.cfg.RequestTimeout)
	status, err := r.fetch(fetchCtx, p.connectorID)
	cancel()

	if ctx.Err() != nil {
		// Stopped while the request was in flight.
		return false
	}

	if err != nil {
		logging.Debug("Poller", "Status fetch for %s failed: %v", p.connectorID, err)
		r.deliver(p, Update{ConnectorID: p.connectorID, Err: err})
		return true
	}

	status = status.Normalize()
	if status.State.IsTerminal() {
		logging.Debug("Poller", "Connector %s reached terminal state %s", p.connectorID, status.State)
		r.finish(p, Update{ConnectorID: p.connectorID, Status: &status, Final: true})
		return false
	}

	r.deliver(p, Update{ConnectorID: p.connectorID, Status: &status})
	return true
}

// finish removes p from the table, then delivers its last update.
func (r *Registry) finish(p *poller, u Update) {
	r.mu.Lock()
	subs := snapshot(p)
	owned := r.pollers[p.connectorID] == p
	if owned {
		delete(r.pollers, p.connectorID)
	}
	p.cancel()
	r.mu.Unlock()

	if !owned {
		return
	}
	r.stopped(p.connectorID)
	for _, fn := range subs {
		fn(u)
	}
}

func (r *Registry) deliver(p *poller, u Update) {
	r.mu.Lock()
	if r.pollers[p.connectorID] != p {
		r.mu.Unlock()
		return
	}
	subs := snapshot(p)
	r.mu.Unlock()

	for _, fn := range subs {
		fn(u)
	}
}

// snapshot must be called with the registry lock held.
func snapshot(p *poller) []func(Update) {
	subs := make([]func(Update), 0, len(p.subs))
	for i := 0; i < p.nextSub; i++ {
		if fn, ok := p.subs[i]; ok {
			subs = append(subs, fn)
		}
	}
	return subs
}
