// Package window coordinates fetching fixed-size windows of items for the
// index ranges a consumer is currently interested in.
//
// # State Machine
//
// A Coordinator is always in one of three states:
//
//	             Report                        pass done, nothing pending
//	  ┌──────┐ ─────────► ┌──────────┐ ──────────────────────────────► Idle
//	  │ Idle │            │ Fetching │
//	  └──────┘ ◄───────── └──────────┘ ◄──────────────┐
//	                        │   ▲                      │ pass done:
//	                 Report │   │ debounce fires,      │ debounce, then
//	                        ▼   │ pass on latest set   │ re-pass
//	               ┌───────────────────────────┐       │
//	               │ FetchingWithPendingRetry  │ ──────┘
//	               └───────────────────────────┘
//
// Reports arriving while a pass runs only overwrite the stored "latest"
// interval set; the running pass finishes against its own snapshot, or
// stops early after the window it is fetching. Once it completes, a single
// re-pass is scheduled after a short debounce delay using whatever set was
// reported last. Bursts of reports therefore collapse into one pass.
//
// # Fetch Pass
//
// A pass first evicts every cached window that no tracked interval
// intersects, then walks the tracked intervals in ascending order and
// fetches each window that is not cached. Every item of a freshly loaded
// window is announced through the ItemReplaced handler, in ascending index
// order. A failed fetch is reported through FetchFailed and leaves the
// window unloaded; the pass continues with the next window.
//
// # Thread Safety
//
// All methods are safe for concurrent use. The coordinator's mutex guards
// only state transitions and is never held while the fetcher runs or while
// handlers are called, so handlers may call back into the coordinator.
package window
