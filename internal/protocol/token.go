package protocol

import (
	"strings"

	"github.com/yumeno-dev/musingd/internal/errkind"
)

// Tokenize splits a command line the shell-like way spec.md §6 requires:
// whitespace-separated tokens; single-quoted strings are literal;
// double-quoted strings allow \" \\ \$ \` escapes; square brackets are a
// third quoting context (carrying a filter expression unescaped, only
// \] and \\ are special inside); a trailing backslash-newline is a line
// continuation. Grounded on internal/filter/token.go's rune-cursor lexer
// shape, generalized from "produce typed tokens" to "produce bareword
// strings, splitting only on unquoted whitespace."
func Tokenize(src string) ([]string, error) {
	src = joinContinuations(src)
	r := []rune(src)
	var tokens []string
	i := 0
	for i < len(r) {
		if isSpace(r[i]) {
			i++
			continue
		}
		tok, n, err := lexToken(r[i:])
		if err != nil {
			return nil, err
		}
		tokens = append(tokens, tok)
		i += n
	}
	return tokens, nil
}

func joinContinuations(s string) string {
	return strings.ReplaceAll(s, "\\\n", "")
}

func isSpace(r rune) bool {
	return r == ' ' || r == '\t' || r == '\n' || r == '\r'
}

// lexToken consumes one bareword/quoted/bracketed token starting at r[0],
// which is guaranteed not to be whitespace. It returns the token's
// unescaped text and how many runes of r were consumed. A token that begins
// with '[' is a bracketed filter expression and is returned with the
// surrounding brackets stripped (`select [artist=="x"]` yields the token
// `artist=="x"`, as spec.md §8 S5 expects).
func lexToken(r []rune) (string, int, error) {
	switch r[0] {
	case '\'':
		return lexSingleQuoted(r)
	case '"':
		return lexDoubleQuoted(r)
	case '[':
		return lexBracketed(r)
	default:
		tok, n := lexBareword(r)
		return tok, n, nil
	}
}

func lexBareword(r []rune) (string, int) {
	i := 0
	for i < len(r) && !isSpace(r[i]) {
		i++
	}
	return string(r[:i]), i
}

func lexSingleQuoted(r []rune) (string, int, error) {
	var b strings.Builder
	i := 1
	for i < len(r) {
		if r[i] == '\'' {
			return b.String(), i + 1, nil
		}
		b.WriteRune(r[i])
		i++
	}
	return "", 0, errkind.Newf(errkind.Syntax, "unclosed single quote")
}

func lexDoubleQuoted(r []rune) (string, int, error) {
	var b strings.Builder
	i := 1
	for i < len(r) {
		c := r[i]
		if c == '"' {
			return b.String(), i + 1, nil
		}
		if c == '\\' && i+1 < len(r) {
			switch r[i+1] {
			case '"', '\\', '$', '`':
				b.WriteRune(r[i+1])
				i += 2
				continue
			}
		}
		b.WriteRune(c)
		i++
	}
	return "", 0, errkind.Newf(errkind.Syntax, "unclosed double quote")
}

// lexBracketed consumes a `[...]` filter-expression token, returning the
// text with the surrounding brackets stripped. Inside brackets only \]
// and \\ are escapes; everything else (including unescaped quotes, which
// filter-expression syntax itself relies on) passes through literally.
func lexBracketed(r []rune) (string, int, error) {
	var b strings.Builder
	i := 1
	for i < len(r) {
		c := r[i]
		if c == ']' {
			return b.String(), i + 1, nil
		}
		if c == '\\' && i+1 < len(r) && (r[i+1] == ']' || r[i+1] == '\\') {
			b.WriteRune(r[i+1])
			i += 2
			continue
		}
		b.WriteRune(c)
		i++
	}
	return "", 0, errkind.Newf(errkind.Syntax, "unclosed bracket")
}
