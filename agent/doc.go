/*
Package agent implements the three worker agents dispatched by the
workflow engine:

  - InternalSearchAgent: embeds the question and searches the internal
    knowledge base
  - WebSearchAgent: shapes the question into a web query and searches
    the open web
  - SynthesizerAgent: composes the final answer from collected
    evidence via the LLM provider

Search agents return provider failures as errors; the engine recovers
them by folding to empty evidence. Synthesis failures are fatal.
*/
package agent
