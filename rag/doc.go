/*
Package rag provides the internal knowledge base used for documentation
search.

Core interface:

  - VectorStore: unified vector database interface (AddDocuments /
    Search / DeleteDocuments / Count)

Two implementations are provided: QdrantStore speaks Qdrant's REST API
for production deployments, and InMemoryVectorStore keeps documents in
process for tests and small installations.
*/
package rag
