// Package types defines the shared data model for supportflow: retrieved
// evidence and its provenance, the per-question workflow state, routing
// decisions, and the unified error taxonomy used across packages.
package types
