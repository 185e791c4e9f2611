// Package history persists conversation turns per session so follow-up
// questions can be answered with prior context. Three stores are
// provided: an in-memory store for tests and single-process use, a
// Redis store for distributed deployments, and a SQL store backed by
// GORM for durable archives.
package history
