package metric

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// Token kinds. A formula is an ordered, precedence-free token sequence
// authored through a token builder, so evaluation is strictly
// left-to-right: what the author arranged is what gets computed.
const (
	TokenMetric   = "metric"
	TokenNumber   = "number"
	TokenOperator = "operator"
)

// Token is one element of a formula: a metric reference, a numeric
// literal, or one of the four arithmetic operators.
type Token struct {
	Kind  string `json:"kind" yaml:"kind"`
	Value string `json:"value" yaml:"value"`
}

// Formula is an infix expression with no operator precedence,
// alternating operand/operator.
type Formula []Token

var operators = map[string]struct{}{
	"+": {},
	"-": {},
	"*": {},
	"/": {},
}

// ValidOperatorToken reports whether v is a supported operator.
func ValidOperatorToken(v string) bool {
	_, ok := operators[v]
	return ok
}

// Validate checks the token sequence shape: non-empty, operands at even
// positions, operators at odd positions, known kinds throughout.
// Evaluate does not require a valid formula (it degrades to zero); this
// is for rejecting bad definitions at load time instead.
func (f Formula) Validate() error {
	if len(f) == 0 {
		return fmt.Errorf("formula has no tokens")
	}
	if len(f)%2 == 0 {
		return fmt.Errorf("formula must have an odd number of tokens, got %d", len(f))
	}
	for i, tok := range f {
		if i%2 == 1 {
			if tok.Kind != TokenOperator {
				return fmt.Errorf("token %d: expected operator, got %s", i, tok.Kind)
			}
			if !ValidOperatorToken(tok.Value) {
				return fmt.Errorf("token %d: unsupported operator %q", i, tok.Value)
			}
			continue
		}
		switch tok.Kind {
		case TokenMetric:
			if tok.Value == "" {
				return fmt.Errorf("token %d: metric reference is empty", i)
			}
		case TokenNumber:
			if _, err := decimal.NewFromString(tok.Value); err != nil {
				return fmt.Errorf("token %d: invalid number %q", i, tok.Value)
			}
		default:
			return fmt.Errorf("token %d: expected operand, got %s", i, tok.Kind)
		}
	}
	return nil
}

// Evaluate computes the formula against a flat key→value bag.
// Unknown metrics and unparseable literals resolve to zero, division by
// zero yields zero, and a malformed or empty token list yields zero —
// bad data degrades, it never errors.
func (f Formula) Evaluate(data map[Key]decimal.Decimal) decimal.Decimal {
	if f.Validate() != nil {
		return decimal.Zero
	}

	result := resolveOperand(f[0], data)
	for i := 1; i+1 < len(f); i += 2 {
		operand := resolveOperand(f[i+1], data)
		switch f[i].Value {
		case "+":
			result = result.Add(operand)
		case "-":
			result = result.Sub(operand)
		case "*":
			result = result.Mul(operand)
		case "/":
			if operand.IsZero() {
				result = decimal.Zero
			} else {
				result = result.Div(operand)
			}
		}
	}
	return result
}

func resolveOperand(tok Token, data map[Key]decimal.Decimal) decimal.Decimal {
	switch tok.Kind {
	case TokenMetric:
		return data[Key(tok.Value)]
	case TokenNumber:
		d, err := decimal.NewFromString(tok.Value)
		if err != nil {
			return decimal.Zero
		}
		return d
	}
	return decimal.Zero
}
