// Package engine schedules generation requests onto an inference backend and
// multiplexes the resulting text streams back to their clients. It is
// structured into small files by concern:
//
//   - types.go: request, status and sampling types.
//   - errors.go: error types and helpers (IsValidation, IsCapacityExceeded, ...).
//   - config.go: Config and package defaults; New applies defaults.
//   - queue.go: bounded FIFO RequestQueue.
//   - stream.go, registry.go: consumer streams and the StreamRegistry.
//   - streamer.go: ResponseStreamer, cumulative snapshot to delta conversion.
//   - backend.go: InferenceBackend contract and the session helper.
//   - scheduler.go: the scheduler actor (submit, admit, cancel, complete).
//   - driver.go: per-request goroutine bridging a backend session to its stream.
//   - history.go: short-lived retention of finished requests.
//   - events.go: lifecycle events and publishers.
//   - metrics.go: Prometheus collectors.
//
// All mutation of the queue, the running set and the slot counter happens on
// the scheduler goroutine. Other goroutines talk to it through Scheduler
// methods only.
package engine
