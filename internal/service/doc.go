// Package service provides application-level services for the approval
// pipeline: enqueueing task-creation jobs for approved plans, executing
// those jobs, and driving the task lifecycle. Services own transaction
// boundaries; domain types own the transition rules.
package service
