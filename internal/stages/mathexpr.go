package stages

import (
	"fmt"
	"math"
	"regexp"
	"sort"
	"strconv"
	"strings"
)

// polynomial maps exponent to coefficient for a single-variable polynomial.
type polynomial map[int]float64

// residualTolerance is the relative residual below which a substitution
// check counts as exact.
const residualTolerance = 1e-6

var (
	// equationRe captures a candidate "lhs = rhs" span inside prose. The
	// sides are validated by actually parsing them, so the character class
	// can stay loose.
	equationRe = regexp.MustCompile(`([0-9a-zA-Z^+\-*/().\s]+)=([0-9a-zA-Z^+\-*/().\s]+)`)

	// numberRe matches a decimal or fraction literal.
	numberRe = regexp.MustCompile(`-?\d+(?:\.\d+)?(?:\s*/\s*-?\d+(?:\.\d+)?)?`)
)

// parseNumber parses a decimal or a/b fraction.
func parseNumber(s string) (float64, bool) {
	s = strings.ReplaceAll(s, " ", "")
	if num, den, ok := strings.Cut(s, "/"); ok {
		n, err1 := strconv.ParseFloat(num, 64)
		d, err2 := strconv.ParseFloat(den, 64)
		if err1 != nil || err2 != nil || d == 0 {
			return 0, false
		}
		return n / d, true
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, false
	}
	return f, true
}

// parseTerm parses one signed polynomial term in variable v, such as
// "3x^2", "-x", "4", "2*x" or "(1/2)x".
func parseTerm(term, v string) (coeff float64, exp int, ok bool) {
	term = strings.ReplaceAll(term, " ", "")
	term = strings.ReplaceAll(term, "*", "")
	if term == "" {
		return 0, 0, false
	}

	sign := 1.0
	for len(term) > 0 && (term[0] == '+' || term[0] == '-') {
		if term[0] == '-' {
			sign = -sign
		}
		term = term[1:]
	}
	if term == "" {
		return 0, 0, false
	}

	idx := strings.Index(term, v)
	if idx < 0 {
		c, numOK := parseNumber(strings.Trim(term, "()"))
		if !numOK {
			return 0, 0, false
		}
		return sign * c, 0, true
	}

	coeffPart := term[:idx]
	rest := term[idx+len(v):]

	coeff = 1.0
	if coeffPart != "" {
		c, numOK := parseNumber(strings.Trim(coeffPart, "()"))
		if !numOK {
			return 0, 0, false
		}
		coeff = c
	}

	exp = 1
	if rest != "" {
		if !strings.HasPrefix(rest, "^") {
			return 0, 0, false
		}
		e, err := strconv.Atoi(rest[1:])
		if err != nil || e < 0 {
			return 0, 0, false
		}
		exp = e
	}
	return sign * coeff, exp, true
}

// parsePolynomial parses an expression like "2x^2 - 3x + 1" in variable v.
func parsePolynomial(expr, v string) (polynomial, bool) {
	expr = strings.TrimSpace(expr)
	if expr == "" {
		return nil, false
	}

	// Split into signed terms, keeping the signs.
	var terms []string
	start := 0
	depth := 0
	for i, r := range expr {
		switch r {
		case '(':
			depth++
		case ')':
			depth--
		case '+', '-':
			if i > start && depth == 0 && expr[i-1] != '^' && expr[i-1] != '*' && expr[i-1] != '/' {
				terms = append(terms, expr[start:i])
				start = i
			}
		}
	}
	terms = append(terms, expr[start:])

	poly := make(polynomial)
	for _, term := range terms {
		if strings.TrimSpace(term) == "" {
			continue
		}
		coeff, exp, ok := parseTerm(term, v)
		if !ok {
			return nil, false
		}
		poly[exp] += coeff
	}
	if len(poly) == 0 {
		return nil, false
	}
	return poly, true
}

// degree returns the highest exponent with a nonzero coefficient.
func (p polynomial) degree() int {
	deg := 0
	for exp, coeff := range p {
		if coeff != 0 && exp > deg {
			deg = exp
		}
	}
	return deg
}

// eval computes p(x) by Horner's rule.
func (p polynomial) eval(x float64) float64 {
	result := 0.0
	for exp := p.degree(); exp >= 0; exp-- {
		result = result*x + p[exp]
	}
	return result
}

// derive returns the derivative polynomial (power rule).
func (p polynomial) derive() polynomial {
	d := make(polynomial)
	for exp, coeff := range p {
		if exp > 0 && coeff != 0 {
			d[exp-1] = coeff * float64(exp)
		}
	}
	if len(d) == 0 {
		d[0] = 0
	}
	return d
}

// sub returns p - q.
func (p polynomial) sub(q polynomial) polynomial {
	diff := make(polynomial)
	for exp, coeff := range p {
		diff[exp] += coeff
	}
	for exp, coeff := range q {
		diff[exp] -= coeff
	}
	return diff
}

// equal compares coefficients within tolerance.
func (p polynomial) equal(q polynomial) bool {
	deg := p.degree()
	if qd := q.degree(); qd > deg {
		deg = qd
	}
	for exp := 0; exp <= deg; exp++ {
		if math.Abs(p[exp]-q[exp]) > 1e-9 {
			return false
		}
	}
	return true
}

// format renders the polynomial in standard descending form, e.g.
// "3x^2 - 2x + 1".
func (p polynomial) format(v string) string {
	exps := make([]int, 0, len(p))
	for exp, coeff := range p {
		if coeff != 0 {
			exps = append(exps, exp)
		}
	}
	if len(exps) == 0 {
		return "0"
	}
	sort.Sort(sort.Reverse(sort.IntSlice(exps)))

	var b strings.Builder
	for i, exp := range exps {
		coeff := p[exp]
		if i == 0 {
			if coeff < 0 {
				b.WriteString("-")
			}
		} else {
			if coeff < 0 {
				b.WriteString(" - ")
			} else {
				b.WriteString(" + ")
			}
		}
		abs := math.Abs(coeff)
		switch {
		case exp == 0:
			b.WriteString(formatNumber(abs))
		case abs != 1:
			b.WriteString(formatNumber(abs))
		}
		if exp >= 1 {
			b.WriteString(v)
			if exp > 1 {
				fmt.Fprintf(&b, "^%d", exp)
			}
		}
	}
	return b.String()
}

// formatNumber renders integers without a decimal point and trims floats.
func formatNumber(f float64) string {
	if f == math.Trunc(f) && math.Abs(f) < 1e15 {
		return strconv.FormatInt(int64(f), 10)
	}
	return strconv.FormatFloat(f, 'g', 6, 64)
}

// extractEquation finds the first parseable single-variable equation in
// prose. The regexp over-captures leading words ("solve x^2 ... = 0"), so
// leading tokens are dropped from the left side until it parses.
func extractEquation(text, v string) (polynomial, bool) {
	for _, m := range equationRe.FindAllStringSubmatch(text, -1) {
		// Trailing prose after the right side is trimmed the same way.
		var rhs polynomial
		rhsOK := false
		rtokens := strings.Fields(m[2])
		for j := len(rtokens); j > 0; j-- {
			if p, ok := parsePolynomial(strings.Join(rtokens[:j], " "), v); ok {
				rhs, rhsOK = p, true
				break
			}
		}
		if !rhsOK {
			continue
		}

		tokens := strings.Fields(m[1])
		for i := 0; i < len(tokens); i++ {
			if lhs, ok := parsePolynomial(strings.Join(tokens[i:], " "), v); ok {
				return lhs.sub(rhs), true
			}
		}
	}
	return nil, false
}

// detectVariable picks the unknown: the first standalone letter adjacent to
// math context, defaulting to "x".
func detectVariable(text string, declared []string) string {
	if len(declared) > 0 {
		return declared[0]
	}
	for _, v := range []string{"x", "y", "z", "t", "n"} {
		if variableRe(v).MatchString(text) {
			return v
		}
	}
	return "x"
}

// variableRes is populated once at init; lookups are read-only afterwards
// so concurrent runs can share it.
var variableRes = func() map[string]*regexp.Regexp {
	res := make(map[string]*regexp.Regexp)
	for _, v := range []string{"x", "y", "z", "t", "n"} {
		res[v] = regexp.MustCompile(`(?:^|[^a-zA-Z])` + v + `(?:[^a-zA-Z]|$)`)
	}
	return res
}()

func variableRe(v string) *regexp.Regexp {
	if re, ok := variableRes[v]; ok {
		return re
	}
	return regexp.MustCompile(`(?:^|[^a-zA-Z])` + regexp.QuoteMeta(v) + `(?:[^a-zA-Z]|$)`)
}

// parseRoots extracts values from an answer like "x = -1, x = -2" or
// "x = 1/2".
func parseRoots(answer, v string) []float64 {
	re := regexp.MustCompile(regexp.QuoteMeta(v) + `\s*=\s*(` + numberRe.String() + `)`)
	matches := re.FindAllStringSubmatch(answer, -1)
	roots := make([]float64, 0, len(matches))
	for _, m := range matches {
		if val, ok := parseNumber(m[1]); ok {
			roots = append(roots, val)
		}
	}
	return roots
}

// formatRoots renders roots as "x = r1, x = r2" in ascending order.
func formatRoots(v string, roots []float64) string {
	sorted := append([]float64(nil), roots...)
	sort.Float64s(sorted)
	parts := make([]string, len(sorted))
	for i, r := range sorted {
		parts[i] = fmt.Sprintf("%s = %s", v, formatNumber(roundClean(r)))
	}
	return strings.Join(parts, ", ")
}

// roundClean snaps values within tolerance of an integer onto it, keeping
// answers like "x = 2.0000000001" readable.
func roundClean(f float64) float64 {
	if nearest := math.Round(f); math.Abs(f-nearest) < 1e-9 {
		return nearest
	}
	return f
}

// sameRootSet compares two root sets within tolerance, order-insensitive.
func sameRootSet(a, b []float64) bool {
	if len(a) != len(b) {
		return false
	}
	as := append([]float64(nil), a...)
	bs := append([]float64(nil), b...)
	sort.Float64s(as)
	sort.Float64s(bs)
	for i := range as {
		if math.Abs(as[i]-bs[i]) > 1e-6 {
			return false
		}
	}
	return true
}
