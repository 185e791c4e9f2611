// Package websearch provides open web search backends used when the
// internal knowledge base cannot answer a question. Implementations
// wrap Google Custom Search and Tavily behind a common Provider
// interface and apply outbound rate limiting.
package websearch
