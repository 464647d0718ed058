// Package worker polls the work queue and executes leased jobs with
// bounded concurrency. Each attempt runs under the queue's per-attempt
// timeout, renews its lease at the half-life, and reports its outcome
// back through the queue's resolve operations. The worker never touches
// job storage directly.
package worker
