// Package assist runs inference requests in the background and hands their
// outcomes back to the editing thread.
//
// The editing thread submits a request and keeps going. Each task runs on
// its own goroutine with a context bounded by the runner timeout; the
// outcome arrives on the Results channel. Before using an outcome the
// editing thread must Claim it: a task that was cancelled, or already
// claimed, is refused so that late results never reach the document.
package assist
