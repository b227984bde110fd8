package embeddings

import (
	"context"
	"hash/fnv"
	"math"
	"strings"
	"unicode"
)

// localDimension is the vector size of the hashing embedder.
const localDimension = 256

// LocalProvider is a deterministic hashing embedder: tokens are hashed into
// a fixed-size term-frequency vector which is then L2-normalized. It has no
// model files and no external calls, which makes it suitable for offline
// setups and tests. Lexically similar texts score high; it does not capture
// synonymy the way FastEmbed models do.
type LocalProvider struct{}

// NewLocalProvider creates the deterministic local embedder.
func NewLocalProvider() *LocalProvider {
	return &LocalProvider{}
}

// EmbedDocuments generates embeddings for multiple texts.
func (p *LocalProvider) EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, ErrEmptyInput
	}
	out := make([][]float32, len(texts))
	for i, text := range texts {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}
		out[i] = hashEmbed(text)
	}
	return out, nil
}

// EmbedQuery generates an embedding for a single query.
func (p *LocalProvider) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	if text == "" {
		return nil, ErrEmptyInput
	}
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}
	return hashEmbed(text), nil
}

// Dimension returns the embedding dimension.
func (p *LocalProvider) Dimension() int {
	return localDimension
}

// Close releases resources (none for the local provider).
func (p *LocalProvider) Close() error {
	return nil
}

// hashEmbed builds the normalized term-frequency vector for a text.
func hashEmbed(text string) []float32 {
	vec := make([]float32, localDimension)

	for _, tok := range tokenize(text) {
		h := fnv.New32a()
		_, _ = h.Write([]byte(tok))
		vec[h.Sum32()%localDimension] += 1.0
	}

	var norm float64
	for _, v := range vec {
		norm += float64(v) * float64(v)
	}
	if norm == 0 {
		return vec
	}
	scale := float32(1.0 / math.Sqrt(norm))
	for i := range vec {
		vec[i] *= scale
	}
	return vec
}

// tokenize lowercases and splits on everything that is neither a letter,
// a digit, nor a math operator. Operators are kept as their own tokens so
// "x^2" and "x2" embed differently.
func tokenize(text string) []string {
	var tokens []string
	var cur strings.Builder

	flush := func() {
		if cur.Len() > 0 {
			tokens = append(tokens, cur.String())
			cur.Reset()
		}
	}

	for _, r := range strings.ToLower(text) {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			cur.WriteRune(r)
		case strings.ContainsRune("+-*/^=<>", r):
			flush()
			tokens = append(tokens, string(r))
		default:
			flush()
		}
	}
	flush()
	return tokens
}
