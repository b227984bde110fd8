package stages

import (
	"regexp"
	"strings"
)

// Unicode glyph cleanup, so the rest of the pipeline works on plain ASCII
// math notation.
var unicodeMath = strings.NewReplacer(
	"×", "*",
	"÷", "/",
	"−", "-",
	"—", "-",
	"·", "*",
	"²", "^2",
	"³", "^3",
	"⁴", "^4",
	"⁵", "^5",
	"⁶", "^6",
	"⁷", "^7",
	"⁸", "^8",
	"⁹", "^9",
	"√", "sqrt",
	"½", "1/2",
	"⅓", "1/3",
	"¼", "1/4",
	"⅔", "2/3",
	"¾", "3/4",
	"π", "pi",
	"≤", "<=",
	"≥", ">=",
	"≠", "!=",
	"∞", "infinity",
)

var (
	latexDelims  = regexp.MustCompile(`\$\$?|\\\[|\\\]|\\\(|\\\)`)
	latexFrac    = regexp.MustCompile(`\\frac\{([^}]+)\}\{([^}]+)\}`)
	latexSqrt    = regexp.MustCompile(`\\sqrt\{([^}]+)\}`)
	latexCommand = regexp.MustCompile(`\\([a-zA-Z]+)`)
	powOperator  = regexp.MustCompile(`\*\*`)
)

// latexOps maps commands that become operators rather than their own name.
var latexOps = map[string]string{
	"cdot":  "*",
	"times": "*",
	"div":   "/",
	"leq":   "<=",
	"geq":   ">=",
	"neq":   "!=",
	"infty": "infinity",
	"pm":    "+/-",
}

// NormalizeMathText rewrites LaTeX and unicode math notation into the plain
// ASCII form the parser grammar expects, and collapses whitespace.
func NormalizeMathText(text string) string {
	text = latexDelims.ReplaceAllString(text, "")
	text = latexFrac.ReplaceAllString(text, "($1)/($2)")
	text = latexSqrt.ReplaceAllString(text, "sqrt($1)")
	text = latexCommand.ReplaceAllStringFunc(text, func(cmd string) string {
		name := cmd[1:]
		if op, ok := latexOps[name]; ok {
			return op
		}
		return name
	})
	text = strings.ReplaceAll(text, "{", "(")
	text = strings.ReplaceAll(text, "}", ")")

	text = unicodeMath.Replace(text)
	text = powOperator.ReplaceAllString(text, "^")

	return strings.Join(strings.Fields(text), " ")
}
