package problem

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"unicode"
)

// Signature returns a stable key for memory lookups: a digest of the
// normalized problem text. Two statements that differ only in whitespace,
// case or punctuation produce the same signature.
func (p *Problem) Signature() string {
	return SignatureOf(p.Text)
}

// SignatureOf computes the signature for arbitrary problem text.
func SignatureOf(text string) string {
	norm := NormalizeForSignature(text)
	sum := sha256.Sum256([]byte(norm))
	return hex.EncodeToString(sum[:16])
}

// NormalizeForSignature lowercases, strips punctuation that carries no
// mathematical meaning, and collapses whitespace.
func NormalizeForSignature(text string) string {
	var b strings.Builder
	b.Grow(len(text))

	lastSpace := true
	for _, r := range strings.ToLower(text) {
		switch {
		case unicode.IsSpace(r):
			if !lastSpace {
				b.WriteByte(' ')
				lastSpace = true
			}
		case r == ',' || r == '.' || r == ';' || r == ':' || r == '!' || r == '?':
			// Sentence punctuation does not change the problem.
		default:
			b.WriteRune(r)
			lastSpace = false
		}
	}
	return strings.TrimSpace(b.String())
}
