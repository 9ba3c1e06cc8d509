package nodemap

import "strings"

// Wildcard is the filter token that matches any attribute value.
const Wildcard = ":all"

// negationPrefix marks a filter token as an exclusion.
const negationPrefix = "!"

// Token is one parsed filter token. Negation is decided here, at parse
// time, so matching never re-inspects string prefixes.
type Token struct {
	Value   string
	Negated bool
}

// String returns the token in its raw spelling, including the negation
// prefix when set.
func (t Token) String() string {
	if t.Negated {
		return negationPrefix + t.Value
	}
	return t.Value
}

func parseToken(raw string) Token {
	if rest, ok := strings.CutPrefix(raw, negationPrefix); ok {
		return Token{Value: rest, Negated: true}
	}
	return Token{Value: raw}
}

func parseTokens(raw []string) []Token {
	if len(raw) == 0 {
		return nil
	}
	tokens := make([]Token, 0, len(raw))
	for _, r := range raw {
		tokens = append(tokens, parseToken(r))
	}
	return tokens
}

func rawTokens(tokens []Token) []string {
	if tokens == nil {
		return nil
	}
	raw := make([]string, len(tokens))
	for i, t := range tokens {
		raw[i] = t.String()
	}
	return raw
}

// matchTokens reports whether got passes the token list. A matching
// negated token excludes immediately, regardless of what else the list
// allows. Otherwise the list passes when it holds no non-negated
// tokens, or when one of them is the wildcard or got itself.
func matchTokens(tokens []Token, got string) bool {
	for _, t := range tokens {
		if t.Negated && t.Value == got {
			return false
		}
	}
	allowed := 0
	for _, t := range tokens {
		if t.Negated {
			continue
		}
		allowed++
		if t.Value == Wildcard || t.Value == got {
			return true
		}
	}
	return allowed == 0
}
