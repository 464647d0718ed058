// Package events implements the bridge between work queue lifecycle
// transitions and their observers. Queue and worker publish typed JobEvent
// values; the bridge fans them out to in-process subscribers and forwards
// terminal events to an outbound webhook notifier. Event delivery is
// observability, never the source of truth for job state.
package events
