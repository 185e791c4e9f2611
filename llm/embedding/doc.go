// Package embedding provides the query embedding provider used to turn
// support questions into vectors for internal search, plus an optional
// Redis-backed cache that deduplicates concurrent identical lookups.
package embedding
