package amount

import (
	"github.com/vanshika/debtbook/internal/domain"
)

type token struct {
	text string
	op   byte
}

func tokenize(expr string) ([]token, error) {
	var tokens []token
	for i := 0; i < len(expr); {
		c := expr[i]
		switch {
		case c == ' ' || c == '\t':
			i++
		case c == '+' || c == '-' || c == '*' || c == '/':
			tokens = append(tokens, token{op: c})
			i++
		case isDigit(c):
			start := i
			for i < len(expr) && (isDigit(expr[i]) || expr[i] == '.' || expr[i] == ',') {
				i++
			}
			tokens = append(tokens, token{text: expr[start:i]})
		default:
			return nil, domain.Errorf(domain.CodeMalformedExpression, "unexpected character %q", string(c))
		}
	}
	return tokens, nil
}

func isDigit(c byte) bool {
	return c >= '0' && c <= '9'
}
