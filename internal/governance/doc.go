// Package governance coordinates runtime safety controls for pipeline
// execution: bounded retries with linear backoff and run-level deadlines.
//
// The engine depends on these primitives to keep transient node failures
// from killing a run without letting a broken node spin forever.
package governance
