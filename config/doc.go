// Package config provides unified configuration loading for supportflow.
//
// Precedence: defaults -> YAML file -> environment variables. Environment
// variables are derived from struct tags, e.g. SUPPORTFLOW_WORKFLOW_MAX_ITERATIONS
// overrides workflow.max_iterations.
//
// Validation happens once at load time; invalid thresholds (for example a
// non-positive max_iterations) fail construction, never mid-run.
package config
