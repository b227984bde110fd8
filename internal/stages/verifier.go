package stages

import (
	"context"
	"fmt"
	"math"
	"strings"

	"go.uber.org/zap"

	"github.com/fyrsmithlabs/mentord/internal/problem"
)

// Verifier independently re-derives answers from the problem text. It
// shares no state with the Solver: every check below starts from the raw
// statement, so agreement between the two is meaningful.
//
// Rejection confidence encodes certainty of the rejection: a demonstrably
// wrong answer rejects near 0.9 (worth an automatic re-solve), while an
// answer the verifier merely cannot interpret rejects near 0.4 (a human
// should look).
type Verifier struct {
	logger *zap.Logger
}

// NewVerifier builds a Verifier.
func NewVerifier(logger *zap.Logger) *Verifier {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Verifier{logger: logger}
}

// Rejection and acceptance confidence levels.
const (
	acceptConfident    = 0.95
	rejectConfident    = 0.9
	rejectUncertain    = 0.4
	acceptUnverifiable = 0.5
)

// Verify checks a candidate against a fresh derivation.
func (vf *Verifier) Verify(_ context.Context, prob *problem.Problem, candidate problem.Candidate) (problem.Verdict, error) {
	text := strings.ToLower(prob.Text)
	v := detectVariable(text, prob.Variables)

	var verdict problem.Verdict
	switch {
	case hasEquation(text, v):
		verdict = vf.verifyEquation(text, v, candidate)
	case derivativeRe.MatchString(text):
		verdict = vf.verifyDerivative(text, prob.Variables, candidate)
	case isCountingProblem(text):
		verdict = vf.verifyCount(text, candidate)
	case strings.Contains(text, "determinant") && matrix2Re.MatchString(text):
		verdict = vf.verifyDeterminant(text, candidate)
	default:
		// Nothing here can re-derive the answer. Accept without endorsing:
		// the low confidence routes the run through the trigger policy.
		verdict = problem.Verdict{
			Accept:     true,
			Confidence: acceptUnverifiable,
		}
	}

	vf.logger.Debug("verified candidate",
		zap.String("problem_id", prob.ID),
		zap.Bool("accept", verdict.Accept),
		zap.Float64("confidence", verdict.Confidence),
	)
	return verdict, nil
}

func hasEquation(text, v string) bool {
	_, ok := extractEquation(text, v)
	return ok
}

// verifyEquation re-derives the root set and compares.
func (vf *Verifier) verifyEquation(text, v string, candidate problem.Candidate) problem.Verdict {
	eq, _ := extractEquation(text, v)

	expected, expectedAnswer := expectedRoots(eq, v)

	if strings.Contains(strings.ToLower(candidate.Answer), "no real solution") {
		if expected == nil {
			return problem.Verdict{Accept: true, Confidence: acceptConfident, CheckedAnswer: expectedAnswer}
		}
		return problem.Verdict{
			Accept:     false,
			Confidence: rejectConfident,
			Flags: []problem.StepFlag{{
				Index:  len(candidate.Steps) - 1,
				Reason: "real solutions exist: " + expectedAnswer,
			}},
			CheckedAnswer: expectedAnswer,
		}
	}

	claimed := parseRoots(candidate.Answer, v)
	if len(claimed) == 0 {
		return problem.Verdict{
			Accept:     false,
			Confidence: rejectUncertain,
			Flags: []problem.StepFlag{{
				Index:  len(candidate.Steps) - 1,
				Reason: "answer does not state a value for " + v,
			}},
			CheckedAnswer: expectedAnswer,
		}
	}

	// Substitution check: every claimed root must satisfy the equation.
	for _, root := range claimed {
		if residual := math.Abs(eq.eval(root)); residual > 1e-3 {
			return problem.Verdict{
				Accept:     false,
				Confidence: rejectConfident,
				Flags: []problem.StepFlag{{
					Index:  len(candidate.Steps) - 1,
					Reason: fmt.Sprintf("substituting %s = %s leaves residual %.3g", v, formatNumber(roundClean(root)), residual),
				}},
				CheckedAnswer: expectedAnswer,
			}
		}
	}

	// Completeness: the claimed set must match the derived set.
	if expected != nil && !sameRootSet(dedupeRoots(claimed), expected) {
		return problem.Verdict{
			Accept:     false,
			Confidence: rejectConfident,
			Flags: []problem.StepFlag{{
				Index:  len(candidate.Steps) - 1,
				Reason: "root set incomplete; expected " + expectedAnswer,
			}},
			CheckedAnswer: expectedAnswer,
		}
	}

	return problem.Verdict{Accept: true, Confidence: acceptConfident, CheckedAnswer: expectedAnswer}
}

// expectedRoots derives the real root set for degree 1 or 2, nil when no
// real roots exist. The second return is the rendered answer.
func expectedRoots(eq polynomial, v string) ([]float64, string) {
	switch eq.degree() {
	case 1:
		if eq[1] == 0 {
			return nil, ""
		}
		root := -eq[0] / eq[1]
		return []float64{root}, formatRoots(v, []float64{root})
	case 2:
		a, b, c := eq[2], eq[1], eq[0]
		disc := b*b - 4*a*c
		if disc < 0 {
			return nil, "no real solutions"
		}
		sqrtD := math.Sqrt(disc)
		roots := dedupeRoots([]float64{(-b + sqrtD) / (2 * a), (-b - sqrtD) / (2 * a)})
		return roots, formatRoots(v, roots)
	default:
		return nil, ""
	}
}

func dedupeRoots(roots []float64) []float64 {
	out := roots[:0:0]
	for _, r := range roots {
		dup := false
		for _, seen := range out {
			if math.Abs(r-seen) <= 1e-9 {
				dup = true
				break
			}
		}
		if !dup {
			out = append(out, r)
		}
	}
	return out
}

// verifyDerivative recomputes the derivative and compares coefficients.
func (vf *Verifier) verifyDerivative(text string, declared []string, candidate problem.Candidate) problem.Verdict {
	m := derivativeRe.FindStringSubmatch(text)
	v := detectVariable(m[1], declared)

	tokens := strings.Fields(strings.TrimSpace(m[1]))
	var poly polynomial
	ok := false
	for j := len(tokens); j > 0; j-- {
		if p, parsed := parsePolynomial(strings.Join(tokens[:j], " "), v); parsed {
			poly, ok = p, true
			break
		}
	}
	if !ok {
		return problem.Verdict{Accept: true, Confidence: acceptUnverifiable}
	}
	expected := poly.derive()
	expectedAnswer := expected.format(v)

	claimed, ok := parsePolynomial(strings.ToLower(candidate.Answer), v)
	if !ok {
		return problem.Verdict{
			Accept:     false,
			Confidence: rejectUncertain,
			Flags: []problem.StepFlag{{
				Index:  len(candidate.Steps) - 1,
				Reason: "answer is not a polynomial in " + v,
			}},
			CheckedAnswer: expectedAnswer,
		}
	}

	if !expected.equal(claimed) {
		return problem.Verdict{
			Accept:     false,
			Confidence: rejectConfident,
			Flags: []problem.StepFlag{{
				Index:  len(candidate.Steps) - 1,
				Reason: "derivative mismatch; expected " + expectedAnswer,
			}},
			CheckedAnswer: expectedAnswer,
		}
	}
	return problem.Verdict{Accept: true, Confidence: 0.93, CheckedAnswer: expectedAnswer}
}

func isCountingProblem(text string) bool {
	return chooseFnRe.MatchString(text) || choosePhrase.MatchString(text) ||
		chooseFromRe.MatchString(text) || permFnRe.MatchString(text) ||
		arrangeRe.MatchString(text) || factorialRe.MatchString(text)
}

// verifyCount recomputes the combinatorial value and compares it with the
// last number in the answer.
func (vf *Verifier) verifyCount(text string, candidate problem.Candidate) problem.Verdict {
	expected, ok := recomputeCount(text)
	if !ok {
		return problem.Verdict{Accept: true, Confidence: acceptUnverifiable}
	}
	expectedAnswer := fmt.Sprintf("%d", expected)

	nums := numberRe.FindAllString(candidate.Answer, -1)
	if len(nums) == 0 {
		return problem.Verdict{
			Accept:     false,
			Confidence: rejectUncertain,
			Flags: []problem.StepFlag{{
				Index:  len(candidate.Steps) - 1,
				Reason: "answer states no numeric count",
			}},
			CheckedAnswer: expectedAnswer,
		}
	}
	claimed, claimedOK := parseNumber(nums[len(nums)-1])
	if !claimedOK || math.Abs(claimed-float64(expected)) > 0.5 {
		return problem.Verdict{
			Accept:     false,
			Confidence: rejectConfident,
			Flags: []problem.StepFlag{{
				Index:  len(candidate.Steps) - 1,
				Reason: "count mismatch; expected " + expectedAnswer,
			}},
			CheckedAnswer: expectedAnswer,
		}
	}
	return problem.Verdict{Accept: true, Confidence: 0.92, CheckedAnswer: expectedAnswer}
}

// recomputeCount mirrors the counting grammar independently of the solver's
// dispatch order.
func recomputeCount(text string) (uint64, bool) {
	if m := chooseFnRe.FindStringSubmatch(text); m != nil {
		return boundedC(parseCount(m[1]), parseCount(m[2]))
	}
	if m := choosePhrase.FindStringSubmatch(text); m != nil {
		return boundedC(parseCount(m[1]), parseCount(m[2]))
	}
	if m := chooseFromRe.FindStringSubmatch(text); m != nil {
		return boundedC(parseCount(m[2]), parseCount(m[1]))
	}
	if m := permFnRe.FindStringSubmatch(text); m != nil {
		return boundedP(parseCount(m[1]), parseCount(m[2]))
	}
	if m := arrangeRe.FindStringSubmatch(text); m != nil {
		return boundedP(parseCount(m[2]), parseCount(m[1]))
	}
	if m := factorialRe.FindStringSubmatch(text); m != nil {
		return factorial(parseCount(m[1]))
	}
	return 0, false
}

func boundedC(n, k int) (uint64, bool) {
	if k < 0 || n < 0 || k > n || n > 62 {
		return 0, false
	}
	return combinationsMultiplicative(n, k), true
}

func boundedP(n, k int) (uint64, bool) {
	if k < 0 || n < 0 || k > n || n > 20 {
		return 0, false
	}
	return permutationsMultiplicative(n, k), true
}

// verifyDeterminant recomputes the 2x2 determinant.
func (vf *Verifier) verifyDeterminant(text string, candidate problem.Candidate) problem.Verdict {
	m := matrix2Re.FindStringSubmatch(text)
	a, _ := parseNumber(m[1])
	b, _ := parseNumber(m[2])
	c, _ := parseNumber(m[3])
	d, _ := parseNumber(m[4])
	expected := a*d - b*c
	expectedAnswer := formatNumber(roundClean(expected))

	nums := numberRe.FindAllString(candidate.Answer, -1)
	if len(nums) == 0 {
		return problem.Verdict{
			Accept:     false,
			Confidence: rejectUncertain,
			Flags: []problem.StepFlag{{
				Index:  len(candidate.Steps) - 1,
				Reason: "answer states no numeric determinant",
			}},
			CheckedAnswer: expectedAnswer,
		}
	}
	claimed, claimedOK := parseNumber(nums[len(nums)-1])
	if !claimedOK || math.Abs(claimed-expected) > 1e-6*(1+math.Abs(expected)) {
		return problem.Verdict{
			Accept:     false,
			Confidence: rejectConfident,
			Flags: []problem.StepFlag{{
				Index:  len(candidate.Steps) - 1,
				Reason: "determinant mismatch; expected " + expectedAnswer,
			}},
			CheckedAnswer: expectedAnswer,
		}
	}
	return problem.Verdict{Accept: true, Confidence: acceptConfident, CheckedAnswer: expectedAnswer}
}
