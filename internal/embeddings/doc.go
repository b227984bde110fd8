// Package embeddings provides embedding generation for retrieval and
// memory similarity search.
//
// Two providers are available: FastEmbed (local ONNX models, requires CGO)
// and a deterministic local hashing embedder that needs no model files.
// The local provider exists for offline setups and tests; FastEmbed is the
// quality option. The factory selects one at runtime.
package embeddings
