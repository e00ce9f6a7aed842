package filter

import (
	"fmt"
	"regexp"

	"github.com/yumeno-dev/musingd/internal/tag"
	"github.com/yumeno-dev/musingd/internal/transliterate"
)

// NodeKind distinguishes an RPN program entry. Per the REDESIGN FLAGS,
// leaves are a tagged variant rather than a trait object: this removes a
// heap allocation per leaf and lets Eval dispatch with a single switch.
type NodeKind int

const (
	NodeLeaf NodeKind = iota
	NodeAnd
	NodeOr
)

// Node is one RPN program entry.
type Node struct {
	Kind     NodeKind
	Tag      tag.Key
	Pattern  *regexp.Regexp
	Inverted bool
}

// Expr is a compiled filter: an RPN program that, evaluated as a stack
// machine against any Metadata, leaves exactly one boolean on the stack.
type Expr struct {
	Program []Node
}

// Always matches every song. It is the default (empty) expression.
func Always() *Expr {
	return &Expr{Program: []Node{{Kind: NodeLeaf, Pattern: nil}}}
}

// Compile tokenizes and compiles a filter expression string into an RPN
// program via shunting-yard. An empty string compiles to Always().
func Compile(src string) (*Expr, error) {
	if src == "" {
		return Always(), nil
	}

	toks, err := lex(src)
	if err != nil {
		return nil, err
	}
	if len(toks) == 0 {
		return Always(), nil
	}

	program, err := shuntingYard(toks)
	if err != nil {
		return nil, err
	}

	if err := validate(program); err != nil {
		return nil, err
	}

	return &Expr{Program: program}, nil
}

// opPrec gives '&' higher precedence than '|'; both are left-associative.
func opPrec(k tokenKind) int {
	switch k {
	case tokAnd:
		return 2
	case tokOr:
		return 1
	default:
		return 0
	}
}

func shuntingYard(toks []token) ([]Node, error) {
	var output []Node
	var opStack []tokenKind

	popOp := func() {
		op := opStack[len(opStack)-1]
		opStack = opStack[:len(opStack)-1]
		if op == tokAnd {
			output = append(output, Node{Kind: NodeAnd})
		} else {
			output = append(output, Node{Kind: NodeOr})
		}
	}

	for _, t := range toks {
		switch t.kind {
		case tokAtom:
			leaf, err := compileAtom(t)
			if err != nil {
				return nil, err
			}
			output = append(output, leaf)
		case tokAnd, tokOr:
			for len(opStack) > 0 {
				top := opStack[len(opStack)-1]
				if top == tokLParen {
					break
				}
				if opPrec(top) >= opPrec(t.kind) {
					popOp()
					continue
				}
				break
			}
			opStack = append(opStack, t.kind)
		case tokLParen:
			opStack = append(opStack, tokLParen)
		case tokRParen:
			found := false
			for len(opStack) > 0 {
				top := opStack[len(opStack)-1]
				if top == tokLParen {
					opStack = opStack[:len(opStack)-1]
					found = true
					break
				}
				popOp()
			}
			if !found {
				return nil, fmt.Errorf("Mismatched parentheses")
			}
		}
	}

	for len(opStack) > 0 {
		top := opStack[len(opStack)-1]
		if top == tokLParen {
			return nil, fmt.Errorf("Mismatched parentheses")
		}
		popOp()
	}

	if len(output) == 0 {
		return nil, fmt.Errorf("Incomplete filter")
	}

	return output, nil
}

func compileAtom(t token) (Node, error) {
	k, err := tag.Lookup(t.atomTag)
	if err != nil {
		return Node{}, fmt.Errorf("Invalid tag: %w", err)
	}
	// Patterns match case-insensitively.
	re, err := regexp.Compile("(?i)" + transliterate.ASCII(t.atomPattern))
	if err != nil {
		return Node{}, fmt.Errorf("Invalid regex: %w", err)
	}
	return Node{
		Kind:     NodeLeaf,
		Tag:      k,
		Pattern:  re,
		Inverted: t.atomCmp == "!=",
	}, nil
}

// validate simulates the RPN program as a stack-depth counter; after one
// pass the depth must be exactly 1.
func validate(program []Node) error {
	depth := 0
	for _, n := range program {
		switch n.Kind {
		case NodeLeaf:
			depth++
		case NodeAnd, NodeOr:
			depth--
			if depth < 1 {
				return fmt.Errorf("Incomplete filter")
			}
		}
	}
	if depth != 1 {
		return fmt.Errorf("Incomplete filter")
	}
	return nil
}

// Eval runs the RPN program as a stack machine against m.
func (e *Expr) Eval(m tag.Metadata) bool {
	var stack []bool
	for _, n := range e.Program {
		switch n.Kind {
		case NodeLeaf:
			stack = append(stack, evalLeaf(n, m))
		case NodeAnd:
			b := stack[len(stack)-1]
			a := stack[len(stack)-2]
			stack = stack[:len(stack)-2]
			stack = append(stack, a && b)
		case NodeOr:
			b := stack[len(stack)-1]
			a := stack[len(stack)-2]
			stack = stack[:len(stack)-2]
			stack = append(stack, a || b)
		}
	}
	return stack[len(stack)-1]
}

func evalLeaf(n Node, m tag.Metadata) bool {
	if n.Pattern == nil {
		return true // the Always() leaf
	}
	v, ok := m.Get(n.Tag)
	if !ok {
		v = ""
	}
	match := n.Pattern.MatchString(transliterate.ASCII(v))
	if n.Inverted {
		return !match
	}
	return match
}
