// Package llm defines the synthesis port: a unified chat completion
// interface with synchronous and streaming variants, plus an
// OpenAI-compatible HTTP implementation.
//
// The workflow engine only ever sees the Provider interface; backend
// failures are mapped to coded llm.Error values so the caller can align
// HTTP status, retryability, and degradation behavior.
package llm
