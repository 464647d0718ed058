// Package postgres provides PostgreSQL implementations of the store
// interfaces for jobs, dead letters and tasks.
package postgres
