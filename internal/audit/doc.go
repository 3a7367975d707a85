// Package audit buffers security events and hands them to a Sink on a
// background goroutine. Which events to emit is decided by the engine; this
// package only moves them.
package audit
