package lexical

import (
	"fmt"

	"github.com/meridian-ai/meridian/pkg/apperror"
)

// SearchBoolean ranks documents against a query in which the uppercase
// operators AND, OR, NOT and NEAR are live. Operators are binary and
// left-associative; OR binds loosest. NOT subtracts the right side's
// matches from the left side's. NEAR ranks like AND. Runs of plain terms
// between operators are scored as a bag with BM25.
//
// Malformed input (leading, trailing or consecutive operators, or a query
// with no searchable terms) returns apperror.ErrQueryParse.
func (idx *Index) SearchBoolean(raw string, topK int) ([]Result, error) {
	p := &boolParser{idx: idx, tokens: lexQuery(raw)}
	if len(p.tokens) == 0 {
		return nil, apperror.ErrQueryParse.WithMessage("query contains no searchable terms")
	}

	scores, err := p.orExpr()
	if err != nil {
		return nil, err
	}

	return idx.rank(scores, topK), nil
}

type boolParser struct {
	idx    *Index
	tokens []queryToken
	pos    int
}

// orExpr := andExpr (OR andExpr)*
func (p *boolParser) orExpr() (map[int]float64, error) {
	left, err := p.andExpr()
	if err != nil {
		return nil, err
	}
	for p.peekOperator() == "OR" {
		p.pos++
		right, err := p.andExpr()
		if err != nil {
			return nil, err
		}
		left = unionScores(left, right)
	}
	return left, nil
}

// andExpr := termGroup ((AND | NEAR | NOT) termGroup)*
func (p *boolParser) andExpr() (map[int]float64, error) {
	left, err := p.termGroup()
	if err != nil {
		return nil, err
	}
	for {
		op := p.peekOperator()
		if op != "AND" && op != "NEAR" && op != "NOT" {
			return left, nil
		}
		p.pos++
		right, err := p.termGroup()
		if err != nil {
			return nil, err
		}
		switch op {
		case "NOT":
			left = subtractScores(left, right)
		default:
			// NEAR has no positional data to refine with, so it ranks
			// exactly like AND.
			left = intersectScores(left, right)
		}
	}
}

// termGroup consumes one or more consecutive term tokens and scores them
// as a bag.
func (p *boolParser) termGroup() (map[int]float64, error) {
	terms := make([]string, 0, 4)
	for p.pos < len(p.tokens) && !p.tokens[p.pos].operator {
		terms = append(terms, p.tokens[p.pos].text)
		p.pos++
	}
	if len(terms) == 0 {
		return nil, p.errAt("expected a term")
	}
	return p.idx.scoreTerms(terms), nil
}

func (p *boolParser) peekOperator() string {
	if p.pos >= len(p.tokens) || !p.tokens[p.pos].operator {
		return ""
	}
	return p.tokens[p.pos].text
}

func (p *boolParser) errAt(msg string) error {
	if p.pos >= len(p.tokens) {
		return apperror.ErrQueryParse.WithMessage(msg + " at end of query")
	}
	return apperror.ErrQueryParse.WithMessage(fmt.Sprintf("%s, found %q", msg, p.tokens[p.pos].text))
}

// intersectScores keeps documents present on both sides, summing their
// scores.
func intersectScores(a, b map[int]float64) map[int]float64 {
	out := make(map[int]float64)
	for docIdx, score := range a {
		if other, ok := b[docIdx]; ok {
			out[docIdx] = score + other
		}
	}
	return out
}

// unionScores keeps documents present on either side, summing where both
// match.
func unionScores(a, b map[int]float64) map[int]float64 {
	out := make(map[int]float64, len(a)+len(b))
	for docIdx, score := range a {
		out[docIdx] = score
	}
	for docIdx, score := range b {
		out[docIdx] += score
	}
	return out
}

// subtractScores removes documents matching the right side from the left.
func subtractScores(a, b map[int]float64) map[int]float64 {
	out := make(map[int]float64, len(a))
	for docIdx, score := range a {
		if _, ok := b[docIdx]; !ok {
			out[docIdx] = score
		}
	}
	return out
}
