// Package queue implements the durable work queue that turns plan
// approvals into background jobs. It owns the job lifecycle end to end:
// payload validation at the enqueue boundary, leasing with time-bounded
// locks, exponential-backoff retries, dead-lettering after exhausted
// attempts, and retention of completed jobs.
package queue
