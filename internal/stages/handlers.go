package stages

import (
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"

	"github.com/fyrsmithlabs/mentord/internal/problem"
	"github.com/fyrsmithlabs/mentord/internal/retrieval"
)

// Confidence levels assigned by the handlers. Two agreeing independent
// derivations score high; a single derivation scores lower; the reference
// fallback is further capped by snippet relevance.
const (
	confidenceAgreed   = 0.95
	confidenceDerived  = 0.75
	confidenceFallback = 0.5
)

// solveAlgebraic handles linear and quadratic equations in one variable.
func solveAlgebraic(in SolveInput, _ []retrieval.Snippet) (problem.Candidate, bool) {
	v := detectVariable(in.Problem.Text, in.Problem.Variables)
	eq, ok := extractEquation(strings.ToLower(in.Problem.Text), v)
	if !ok {
		return problem.Candidate{}, false
	}

	switch eq.degree() {
	case 1:
		return solveLinear(in, v, eq)
	case 2:
		return solveQuadratic(in, v, eq)
	default:
		return problem.Candidate{}, false
	}
}

func solveLinear(in SolveInput, v string, eq polynomial) (problem.Candidate, bool) {
	a, b := eq[1], eq[0]
	if a == 0 {
		return problem.Candidate{}, false
	}
	root := -b / a

	// Independent check: substitute back.
	residual := math.Abs(eq.eval(root))
	confidence := confidenceDerived
	if residual <= residualTolerance {
		confidence = confidenceAgreed
	}

	steps := []problem.Step{
		{
			Statement:     fmt.Sprintf("Rewrite the equation in standard form: %s = 0", eq.format(v)),
			Justification: "Move every term to one side.",
		},
		{
			Statement:     fmt.Sprintf("Isolate %s: %s = %s", v, v, formatNumber(roundClean(root))),
			Justification: fmt.Sprintf("Divide the constant term by the coefficient of %s.", v),
		},
		{
			Statement:     fmt.Sprintf("Substituting back gives residual %.2g", residual),
			Justification: "Substitution confirms the root satisfies the equation.",
		},
	}

	return problem.Candidate{
		Answer:     formatRoots(v, []float64{root}),
		Steps:      steps,
		Strategy:   in.Strategy,
		Confidence: confidence,
	}, true
}

func solveQuadratic(in SolveInput, v string, eq polynomial) (problem.Candidate, bool) {
	a, b, c := eq[2], eq[1], eq[0]
	disc := b*b - 4*a*c

	steps := []problem.Step{
		{
			Statement:     fmt.Sprintf("Standard form: %s = 0 with a=%s, b=%s, c=%s", eq.format(v), formatNumber(a), formatNumber(b), formatNumber(c)),
			Justification: "Collect all terms on one side.",
		},
		{
			Statement:     fmt.Sprintf("Discriminant: b^2 - 4ac = %s", formatNumber(roundClean(disc))),
			Justification: "The discriminant decides how many real roots exist.",
		},
	}

	if disc < 0 {
		steps = append(steps, problem.Step{
			Statement:     "The discriminant is negative, so no real solutions exist.",
			Justification: "A negative discriminant means the parabola never crosses the axis.",
		})
		return problem.Candidate{
			Answer:     "no real solutions",
			Steps:      steps,
			Strategy:   in.Strategy,
			Confidence: confidenceAgreed,
		}, true
	}

	sqrtD := math.Sqrt(disc)
	r1 := (-b + sqrtD) / (2 * a)
	r2 := (-b - sqrtD) / (2 * a)

	steps = append(steps, problem.Step{
		Statement:     fmt.Sprintf("Quadratic formula: %s = (-b ± sqrt(%s)) / (2a) giving %s", v, formatNumber(roundClean(disc)), formatRoots(v, []float64{r1, r2})),
		Justification: "Apply the quadratic formula.",
	})

	// Independent check via Vieta: the root sum and product must match the
	// coefficient ratios.
	sumOK := math.Abs((r1+r2)-(-b/a)) <= 1e-6*(1+math.Abs(b/a))
	prodOK := math.Abs((r1*r2)-(c/a)) <= 1e-6*(1+math.Abs(c/a))

	confidence := confidenceDerived
	notes := ""
	if sumOK && prodOK {
		confidence = confidenceAgreed
		steps = append(steps, problem.Step{
			Statement:     fmt.Sprintf("Vieta check: root sum %s and product %s match -b/a and c/a", formatNumber(roundClean(r1+r2)), formatNumber(roundClean(r1*r2))),
			Justification: "An independent identity confirms both roots.",
		})
	} else {
		notes = "Vieta cross-check did not confirm the roots"
	}

	return problem.Candidate{
		Answer:     formatRoots(v, []float64{r1, r2}),
		Steps:      steps,
		Strategy:   in.Strategy,
		Confidence: confidence,
		Notes:      notes,
	}, true
}

var derivativeRe = regexp.MustCompile(`(?:derivative of|differentiate)\s+([0-9a-z^+\-*/().\s]+)`)

// solveCalculus handles polynomial derivatives by the power rule, checked
// against a symmetric-difference numeric estimate.
func solveCalculus(in SolveInput, _ []retrieval.Snippet) (problem.Candidate, bool) {
	text := strings.ToLower(in.Problem.Text)
	m := derivativeRe.FindStringSubmatch(text)
	if m == nil {
		return problem.Candidate{}, false
	}

	v := detectVariable(m[1], in.Problem.Variables)
	expr := strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(m[1]), "."))

	// Trim trailing prose the loose capture may have picked up.
	tokens := strings.Fields(expr)
	var poly polynomial
	ok := false
	for j := len(tokens); j > 0; j-- {
		if p, parsed := parsePolynomial(strings.Join(tokens[:j], " "), v); parsed {
			poly, ok = p, true
			break
		}
	}
	if !ok {
		return problem.Candidate{}, false
	}

	deriv := poly.derive()

	// Numeric cross-check at x=2 with a symmetric difference quotient.
	const h = 1e-6
	numeric := (poly.eval(2+h) - poly.eval(2-h)) / (2 * h)
	symbolic := deriv.eval(2)
	agreed := math.Abs(numeric-symbolic) <= 1e-3*(1+math.Abs(symbolic))

	confidence := confidenceDerived
	if agreed {
		confidence = 0.93
	}

	steps := []problem.Step{
		{
			Statement:     fmt.Sprintf("Differentiate %s term by term.", poly.format(v)),
			Justification: "The derivative of a sum is the sum of derivatives.",
		},
		{
			Statement:     fmt.Sprintf("Power rule: d/d%s[%s^n] = n*%s^(n-1), giving %s", v, v, v, deriv.format(v)),
			Justification: "Apply the power rule to each term.",
		},
		{
			Statement:     fmt.Sprintf("Numeric check at %s=2: difference quotient %.6g vs %.6g", v, numeric, symbolic),
			Justification: "A symmetric difference quotient independently confirms the result.",
		},
	}

	return problem.Candidate{
		Answer:     deriv.format(v),
		Steps:      steps,
		Strategy:   in.Strategy,
		Confidence: confidence,
	}, true
}

var (
	chooseFnRe   = regexp.MustCompile(`c\s*\(\s*(\d+)\s*,\s*(\d+)\s*\)`)
	choosePhrase = regexp.MustCompile(`(\d+)\s+choose\s+(\d+)`)
	chooseFromRe = regexp.MustCompile(`choose\s+(\d+)\s+.*?from\s+(\d+)`)
	permFnRe     = regexp.MustCompile(`p\s*\(\s*(\d+)\s*,\s*(\d+)\s*\)`)
	arrangeRe    = regexp.MustCompile(`arrange\s+(\d+)\s+.*?(?:from|of)\s+(\d+)`)
	factorialRe  = regexp.MustCompile(`(\d+)\s*!`)
)

// solveProbability handles combinations, permutations and factorials.
func solveProbability(in SolveInput, _ []retrieval.Snippet) (problem.Candidate, bool) {
	text := strings.ToLower(in.Problem.Text)

	if n, k, ok := matchPair(text, chooseFnRe, choosePhrase); ok {
		return countCandidate(in, "C", n, k)
	}
	if m := chooseFromRe.FindStringSubmatch(text); m != nil {
		k, n := parseCount(m[1]), parseCount(m[2])
		return countCandidate(in, "C", n, k)
	}
	if m := permFnRe.FindStringSubmatch(text); m != nil {
		return countCandidate(in, "P", parseCount(m[1]), parseCount(m[2]))
	}
	if m := arrangeRe.FindStringSubmatch(text); m != nil {
		k, n := parseCount(m[1]), parseCount(m[2])
		return countCandidate(in, "P", n, k)
	}
	if m := factorialRe.FindStringSubmatch(text); m != nil {
		n := parseCount(m[1])
		val, ok := factorial(n)
		if !ok {
			return problem.Candidate{}, false
		}
		return problem.Candidate{
			Answer: fmt.Sprintf("%d! = %d", n, val),
			Steps: []problem.Step{{
				Statement:     fmt.Sprintf("%d! multiplies every integer from 1 to %d, giving %d.", n, n, val),
				Justification: "Definition of the factorial.",
			}},
			Strategy:   in.Strategy,
			Confidence: confidenceAgreed,
		}, true
	}
	return problem.Candidate{}, false
}

func matchPair(text string, res ...*regexp.Regexp) (n, k int, ok bool) {
	for _, re := range res {
		if m := re.FindStringSubmatch(text); m != nil {
			return parseCount(m[1]), parseCount(m[2]), true
		}
	}
	return 0, 0, false
}

func countCandidate(in SolveInput, kind string, n, k int) (problem.Candidate, bool) {
	if k < 0 || n < 0 || k > n || n > 62 {
		return problem.Candidate{}, false
	}
	// Falling factorials overflow uint64 much earlier than C(n, k) does.
	if kind == "P" && n > 20 {
		return problem.Candidate{}, false
	}

	var direct, cross uint64
	var formula, name string
	if kind == "C" {
		direct = combinationsMultiplicative(n, k)
		// Independent path: symmetry plus the complementary count.
		cross = combinationsMultiplicative(n, n-k)
		formula = fmt.Sprintf("C(%d, %d) = %d! / (%d! * %d!)", n, k, n, k, n-k)
		name = "combinations"
	} else {
		direct = permutationsMultiplicative(n, k)
		ck := combinationsMultiplicative(n, k)
		kf, _ := factorial(k)
		cross = ck * kf
		formula = fmt.Sprintf("P(%d, %d) = %d! / %d!", n, k, n, n-k)
		name = "permutations"
	}

	confidence := confidenceDerived
	steps := []problem.Step{
		{
			Statement:     formula,
			Justification: fmt.Sprintf("Counting %s of %d items taken %d at a time.", name, n, k),
		},
		{
			Statement:     fmt.Sprintf("Evaluating gives %d.", direct),
			Justification: "Multiply out the falling factorial and divide.",
		},
	}
	if direct == cross {
		confidence = 0.92
		steps = append(steps, problem.Step{
			Statement:     "An independent identity reproduces the same count.",
			Justification: "Two derivations agree.",
		})
	}

	return problem.Candidate{
		Answer:     fmt.Sprintf("%s(%d, %d) = %d", kind, n, k, direct),
		Steps:      steps,
		Strategy:   in.Strategy,
		Confidence: confidence,
	}, true
}

var matrix2Re = regexp.MustCompile(`\[\[\s*(-?\d+(?:\.\d+)?)\s*,\s*(-?\d+(?:\.\d+)?)\s*\]\s*,\s*\[\s*(-?\d+(?:\.\d+)?)\s*,\s*(-?\d+(?:\.\d+)?)\s*\]\]`)

// solveLinearAlgebra handles 2x2 determinants written as [[a,b],[c,d]].
func solveLinearAlgebra(in SolveInput, _ []retrieval.Snippet) (problem.Candidate, bool) {
	text := strings.ToLower(in.Problem.Text)
	if !strings.Contains(text, "determinant") {
		return problem.Candidate{}, false
	}
	m := matrix2Re.FindStringSubmatch(text)
	if m == nil {
		return problem.Candidate{}, false
	}

	a, _ := parseNumber(m[1])
	b, _ := parseNumber(m[2])
	c, _ := parseNumber(m[3])
	d, _ := parseNumber(m[4])

	det := a*d - b*c

	// Independent path: eliminate the first column and take the pivot
	// product.
	confidence := confidenceDerived
	var pivotDet float64
	eliminated := false
	if a != 0 {
		pivotDet = a * (d - c*b/a)
		eliminated = true
	} else if c != 0 {
		// Swapping rows flips the sign.
		pivotDet = -(c * (b - a*d/c))
		eliminated = true
	} else {
		pivotDet = 0
		eliminated = true
	}
	if eliminated && math.Abs(det-pivotDet) <= 1e-9*(1+math.Abs(det)) {
		confidence = confidenceAgreed
	}

	steps := []problem.Step{
		{
			Statement:     fmt.Sprintf("det [[%s, %s], [%s, %s]] = ad - bc", m[1], m[2], m[3], m[4]),
			Justification: "Cofactor expansion of a 2x2 matrix.",
		},
		{
			Statement:     fmt.Sprintf("= %s*%s - %s*%s = %s", m[1], m[4], m[2], m[3], formatNumber(roundClean(det))),
			Justification: "Multiply and subtract.",
		},
		{
			Statement:     fmt.Sprintf("Row reduction gives the same pivot product %s.", formatNumber(roundClean(pivotDet))),
			Justification: "Gaussian elimination independently confirms the value.",
		},
	}

	return problem.Candidate{
		Answer:     fmt.Sprintf("determinant = %s", formatNumber(roundClean(det))),
		Steps:      steps,
		Strategy:   in.Strategy,
		Confidence: confidence,
	}, true
}

// solveFromReferences is the fallback for strategy kinds without a handler
// and for problems the handlers cannot derive. It leans entirely on
// retrieved material, so its confidence never exceeds the relevance of the
// snippet it cites. Prior rejection hints advance to the next-ranked
// snippet.
func solveFromReferences(in SolveInput, snippets []retrieval.Snippet) (problem.Candidate, bool) {
	if len(snippets) == 0 {
		return problem.Candidate{
			Answer: "unable to derive an answer; no reference material available",
			Steps: []problem.Step{{
				Statement:     "No specialized derivation applies and the knowledge base returned nothing relevant.",
				Justification: "The problem shape is outside every registered handler.",
			}},
			Strategy:   in.Strategy,
			Confidence: 0.1,
			Notes:      "degraded: no references",
		}, true
	}

	idx := len(in.Hints)
	if idx >= len(snippets) {
		idx = len(snippets) - 1
	}
	snippet := snippets[idx]

	confidence := confidenceFallback
	if snippet.Relevance < confidence {
		confidence = snippet.Relevance
	}

	excerpt := snippet.Content
	if len(excerpt) > 160 {
		excerpt = excerpt[:160]
	}

	steps := []problem.Step{
		{
			Statement:     "Match the problem against retrieved reference material.",
			Justification: "No specialized derivation applies; the reference supplies the method.",
		},
		{
			Statement: "Apply the referenced method: " + excerpt,
			Citation: &problem.Citation{
				SourceID:  snippet.SourceID,
				Relevance: snippet.Relevance,
				Excerpt:   excerpt,
			},
		},
	}

	return problem.Candidate{
		Answer:     "apply the method from " + snippet.SourceID,
		Steps:      steps,
		Strategy:   in.Strategy,
		Confidence: confidence,
		Notes:      "derived from reference material, not independently verified",
	}, true
}

// parseCount parses a matched digit run as a counting operand. Anything
// longer than four digits is already far past every operand bound, so it
// returns -1 rather than risk int overflow wrapping into a valid range.
func parseCount(s string) int {
	if len(s) > 4 {
		return -1
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return -1
	}
	return n
}

// factorial computes n! in uint64, refusing inputs that overflow.
func factorial(n int) (uint64, bool) {
	if n < 0 || n > 20 {
		return 0, false
	}
	result := uint64(1)
	for i := 2; i <= n; i++ {
		result *= uint64(i)
	}
	return result, true
}

// combinationsMultiplicative computes C(n, k) without large factorials.
func combinationsMultiplicative(n, k int) uint64 {
	if k > n-k {
		k = n - k
	}
	result := uint64(1)
	for i := 1; i <= k; i++ {
		result = result * uint64(n-k+i) / uint64(i)
	}
	return result
}

// permutationsMultiplicative computes P(n, k) as a falling factorial.
func permutationsMultiplicative(n, k int) uint64 {
	result := uint64(1)
	for i := 0; i < k; i++ {
		result *= uint64(n - i)
	}
	return result
}
