// Package orchestrator drives the OAuth authorization lifecycle of gateway
// connectors.
//
// The Orchestrator owns the cached ConnectorStatus of every connector it has
// seen and at most one authorization flow per connector. It talks to the
// gateway through the Backend interface, opens consent screens through a
// browser.Opener and watches flows through a poller.Registry it owns.
//
// # Lifecycle
//
//	disconnected --initiate--> connecting --poll:connected--> connected
//	disconnected --initiate--> connecting --poll:error------> error
//	connecting   --cancel----------------> disconnected
//	connected    --revoke-----------------> disconnected
//	connected    --reinitialize (fail)----> error
//	error        --initiate---------------> connecting
//
// InitiateAuthorization does not change the cached status itself. The
// gateway reports connecting on the next poll.
//
// # Generations
//
// Every connector has a generation counter that moves on whenever a flow
// ends (terminal state, cancel, revoke, forget). Responses captured under an
// older generation are dropped, logged and counted as stale, so a poll or
// refresh that was in flight during a cancel cannot bring the old flow's
// state back.
//
// # Subscriptions
//
// Subscribe and SubscribeAll register callbacks that receive a StatusEvent
// for every change of the cached status, whether it came from polling, a
// refresh or an optimistic local update. Callbacks run outside the
// orchestrator's lock and may call back into it.
package orchestrator
