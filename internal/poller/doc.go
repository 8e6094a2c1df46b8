// Package poller runs per-connector status polling for active authorization
// flows.
//
// A Registry keeps at most one poller per connector id. Registering a second
// subscriber for the same id attaches it to the running poller instead of
// starting another timer, and the poller stops once its last subscriber
// detaches:
//
//	reg := poller.New(client.Status, poller.Config{Interval: 3 * time.Second})
//	stop := reg.Register("srv-1", func(u poller.Update) {
//		// u.Status or u.Err
//	})
//	defer stop()
//
// Each poller ticks at a fixed interval and fetches only its own connector.
// Ticks for one id are strictly sequential. A poller tears itself down after
// delivering a terminal status (connected or error), or after delivering a
// synthetic error status once the flow outlives Config.MaxLifetime.
//
// StopAll cancels every poller synchronously and is meant for shutdown paths.
package poller
