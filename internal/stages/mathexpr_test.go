package stages

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParsePolynomial(t *testing.T) {
	tests := []struct {
		name string
		expr string
		want polynomial
	}{
		{"quadratic", "x^2 + 3x + 2", polynomial{2: 1, 1: 3, 0: 2}},
		{"negative leading", "-2x^2 - x + 5", polynomial{2: -2, 1: -1, 0: 5}},
		{"explicit multiply", "2*x^2 + 3*x", polynomial{2: 2, 1: 3}},
		{"constant", "7", polynomial{0: 7}},
		{"bare variable", "x", polynomial{1: 1}},
		{"fraction coefficient", "(1/2)x + 1", polynomial{1: 0.5, 0: 1}},
		{"merged terms", "x + x", polynomial{1: 2}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := parsePolynomial(tt.expr, "x")
			require.True(t, ok)
			assert.True(t, got.equal(tt.want), "got %v want %v", got, tt.want)
		})
	}

	_, ok := parsePolynomial("hello world", "x")
	assert.False(t, ok)
}

func TestExtractEquation(t *testing.T) {
	eq, ok := extractEquation("solve x^2 + 3x + 2 = 0", "x")
	require.True(t, ok)
	assert.True(t, eq.equal(polynomial{2: 1, 1: 3, 0: 2}))

	// Terms on both sides collapse into standard form.
	eq, ok = extractEquation("find x if 2x + 1 = 7", "x")
	require.True(t, ok)
	assert.True(t, eq.equal(polynomial{1: 2, 0: -6}))

	// Trailing prose after the right side is trimmed.
	eq, ok = extractEquation("solve x^2 - 4 = 0 where x is real", "x")
	require.True(t, ok)
	assert.True(t, eq.equal(polynomial{2: 1, 0: -4}))

	_, ok = extractEquation("a sentence with no equation", "x")
	assert.False(t, ok)
}

func TestPolynomialDeriveAndEval(t *testing.T) {
	poly, ok := parsePolynomial("x^3 + 2x", "x")
	require.True(t, ok)

	assert.InDelta(t, 12.0, poly.eval(2), 1e-9)

	deriv := poly.derive()
	assert.True(t, deriv.equal(polynomial{2: 3, 0: 2}))
	assert.Equal(t, "3x^2 + 2", deriv.format("x"))
}

func TestPolynomialFormat(t *testing.T) {
	assert.Equal(t, "x^2 + 3x + 2", polynomial{2: 1, 1: 3, 0: 2}.format("x"))
	assert.Equal(t, "-2x^2 - x + 5", polynomial{2: -2, 1: -1, 0: 5}.format("x"))
	assert.Equal(t, "0", polynomial{}.format("x"))
}

func TestParseRootsAndFormat(t *testing.T) {
	roots := parseRoots("x = -1, x = -2", "x")
	assert.Equal(t, []float64{-1, -2}, roots)

	roots = parseRoots("x = 1/2", "x")
	require.Len(t, roots, 1)
	assert.InDelta(t, 0.5, roots[0], 1e-9)

	assert.Equal(t, "x = -2, x = -1", formatRoots("x", []float64{-1, -2}))
	assert.Empty(t, parseRoots("no values here", "x"))
}

func TestSameRootSet(t *testing.T) {
	assert.True(t, sameRootSet([]float64{1, 2}, []float64{2, 1}))
	assert.False(t, sameRootSet([]float64{1}, []float64{1, 2}))
	assert.False(t, sameRootSet([]float64{1, 2}, []float64{1, 3}))
}

func TestNormalizeMathText(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"x² + 3x + 2 = 0", "x^2 + 3x + 2 = 0"},
		{"2 × 3 ÷ 4", "2 * 3 / 4"},
		{"x**2 − 1", "x^2 - 1"},
		{`solve $\frac{1}{2}x = 3$`, "solve (1)/(2)x = 3"},
		{`\sqrt{16}`, "sqrt(16)"},
		{"a   b\n\tc", "a b c"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, NormalizeMathText(tt.in), "input %q", tt.in)
	}
}
