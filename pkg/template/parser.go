// Copyright 2024 Chainguard, Inc.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package template

import (
	"fmt"
	"strconv"
	"strings"
)

// ParseError is returned for any malformed expression. It carries the byte
// offset within the expression body so callers can map it back to the
// recipe span.
type ParseError struct {
	Message string
	Pos     int
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("template parse error at offset %d: %s", e.Pos, e.Message)
}

type parser struct {
	toks []token
	pos  int
}

// Parse parses a single expression (the contents of one ${{ ... }} site)
// into an AST. Statement constructs (assignment, for-loops, block tags) are
// not part of the grammar and surface as ParseError.
func Parse(expr string) (Node, error) {
	if looksLikeStatement(expr) {
		return nil, &ParseError{Message: "template statements ({% ... %}) are not supported, only ${{ expr }} sites"}
	}
	toks, err := lex(expr)
	if err != nil {
		return nil, &ParseError{Message: err.Error()}
	}
	p := &parser{toks: toks}
	node, err := p.parseTernary()
	if err != nil {
		return nil, err
	}
	if p.cur().kind != tokEOF {
		return nil, &ParseError{Message: fmt.Sprintf("unexpected trailing token %q", p.cur().val), Pos: p.cur().pos}
	}
	return node, nil
}

func (p *parser) cur() token  { return p.toks[p.pos] }
func (p *parser) advance() token {
	t := p.toks[p.pos]
	if p.pos < len(p.toks)-1 {
		p.pos++
	}
	return t
}

func (p *parser) isPunct(v string) bool { return p.cur().kind == tokPunct && p.cur().val == v }
func (p *parser) isIdent(v string) bool { return p.cur().kind == tokIdent && p.cur().val == v }

func (p *parser) expectPunct(v string) error {
	if !p.isPunct(v) {
		return &ParseError{Message: fmt.Sprintf("expected %q, got %q", v, p.cur().val), Pos: p.cur().pos}
	}
	p.advance()
	return nil
}

func (p *parser) parseTernary() (Node, error) {
	then, err := p.parseOr()
	if err != nil {
		return nil, err
	}
	if p.isIdent("if") {
		p.advance()
		cond, err := p.parseOr()
		if err != nil {
			return nil, err
		}
		if !p.isIdent("else") {
			return nil, &ParseError{Message: "expected 'else' in conditional expression", Pos: p.cur().pos}
		}
		p.advance()
		elseExpr, err := p.parseTernary()
		if err != nil {
			return nil, err
		}
		return TernaryNode{Cond: cond, Then: then, Else: elseExpr}, nil
	}
	return then, nil
}

func (p *parser) parseOr() (Node, error) {
	left, err := p.parseAnd()
	if err != nil {
		return nil, err
	}
	for p.isIdent("or") || p.isPunct("||") {
		p.advance()
		right, err := p.parseAnd()
		if err != nil {
			return nil, err
		}
		left = BinaryNode{Op: "or", Left: left, Right: right}
	}
	return left, nil
}

func (p *parser) parseAnd() (Node, error) {
	left, err := p.parseNot()
	if err != nil {
		return nil, err
	}
	for p.isIdent("and") || p.isPunct("&&") {
		p.advance()
		right, err := p.parseNot()
		if err != nil {
			return nil, err
		}
		left = BinaryNode{Op: "and", Left: left, Right: right}
	}
	return left, nil
}

func (p *parser) parseNot() (Node, error) {
	if p.isIdent("not") {
		p.advance()
		operand, err := p.parseNot()
		if err != nil {
			return nil, err
		}
		return UnaryNode{Op: "not", Operand: operand}, nil
	}
	return p.parseComparison()
}

var cmpOps = map[string]bool{"==": true, "!=": true, "<": true, "<=": true, ">": true, ">=": true}

func (p *parser) parseComparison() (Node, error) {
	left, err := p.parsePipe()
	if err != nil {
		return nil, err
	}
	for {
		if p.cur().kind == tokPunct && cmpOps[p.cur().val] {
			op := p.advance().val
			right, err := p.parsePipe()
			if err != nil {
				return nil, err
			}
			left = BinaryNode{Op: op, Left: left, Right: right}
			continue
		}
		if p.isIdent("is") {
			p.advance()
			negate := false
			if p.isIdent("not") {
				negate = true
				p.advance()
			}
			if p.cur().kind != tokIdent {
				return nil, &ParseError{Message: "expected test name after 'is'", Pos: p.cur().pos}
			}
			name := p.advance().val
			var args []Node
			if p.isPunct("(") {
				var err error
				args, _, err = p.parseArgs()
				if err != nil {
					return nil, err
				}
			}
			left = TestNode{Target: left, Name: name, Negate: negate, Args: args}
			continue
		}
		break
	}
	return left, nil
}

func (p *parser) parsePipe() (Node, error) {
	left, err := p.parseAdditive()
	if err != nil {
		return nil, err
	}
	for p.isPunct("|") {
		p.advance()
		if p.cur().kind != tokIdent {
			return nil, &ParseError{Message: "expected filter name after '|'", Pos: p.cur().pos}
		}
		name := p.advance().val
		var args []Node
		var kwargs map[string]Node
		if p.isPunct("(") {
			args, kwargs, err = p.parseArgs()
			if err != nil {
				return nil, err
			}
		}
		left = FilterNode{Target: left, Name: name, Args: args, Kwargs: kwargs}
	}
	return left, nil
}

func (p *parser) parseAdditive() (Node, error) {
	left, err := p.parseMultiplicative()
	if err != nil {
		return nil, err
	}
	for p.isPunct("+") || p.isPunct("-") {
		op := p.advance().val
		right, err := p.parseMultiplicative()
		if err != nil {
			return nil, err
		}
		left = BinaryNode{Op: op, Left: left, Right: right}
	}
	return left, nil
}

func (p *parser) parseMultiplicative() (Node, error) {
	left, err := p.parseUnary()
	if err != nil {
		return nil, err
	}
	for p.isPunct("*") || p.isPunct("/") || p.isPunct("%") {
		op := p.advance().val
		right, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		left = BinaryNode{Op: op, Left: left, Right: right}
	}
	return left, nil
}

func (p *parser) parseUnary() (Node, error) {
	if p.isPunct("-") {
		p.advance()
		operand, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		return UnaryNode{Op: "-", Operand: operand}, nil
	}
	return p.parsePostfix()
}

func (p *parser) parsePostfix() (Node, error) {
	node, err := p.parsePrimary()
	if err != nil {
		return nil, err
	}

	for {
		switch {
		case p.isPunct("."):
			p.advance()
			if p.cur().kind != tokIdent {
				return nil, &ParseError{Message: "expected identifier after '.'", Pos: p.cur().pos}
			}
			attr := p.advance().val
			node = AttrNode{Target: node, Attr: attr}
		case p.isPunct("["):
			p.advance()
			idx, err := p.parseTernary()
			if err != nil {
				return nil, err
			}
			if err := p.expectPunct("]"); err != nil {
				return nil, err
			}
			node = IndexNode{Target: node, Index: idx}
		case p.isPunct("("):
			name, ok := dottedName(node)
			if !ok {
				return nil, &ParseError{Message: "call target is not a function name", Pos: p.cur().pos}
			}
			args, kwargs, err := p.parseArgs()
			if err != nil {
				return nil, err
			}
			node = CallNode{Fn: name, Args: args, Kwargs: kwargs}
		default:
			return node, nil
		}
	}
}

// dottedName recovers a dotted function name ("env.get") from a chain of
// IdentNode/AttrNode, which is how the postfix parser represents it before
// it learns a call follows.
func dottedName(n Node) (string, bool) {
	switch t := n.(type) {
	case IdentNode:
		return t.Name, true
	case AttrNode:
		base, ok := dottedName(t.Target)
		if !ok {
			return "", false
		}
		return base + "." + t.Attr, true
	default:
		return "", false
	}
}

func (p *parser) parseArgs() ([]Node, map[string]Node, error) {
	if err := p.expectPunct("("); err != nil {
		return nil, nil, err
	}
	var args []Node
	var kwargs map[string]Node
	for !p.isPunct(")") {
		// kwarg form: ident = expr
		if p.cur().kind == tokIdent && p.toks[p.pos+1].kind == tokPunct && p.toks[p.pos+1].val == "=" {
			name := p.advance().val
			p.advance() // consume '='
			val, err := p.parseTernary()
			if err != nil {
				return nil, nil, err
			}
			if kwargs == nil {
				kwargs = map[string]Node{}
			}
			kwargs[name] = val
		} else {
			val, err := p.parseTernary()
			if err != nil {
				return nil, nil, err
			}
			args = append(args, val)
		}

		if p.isPunct(",") {
			p.advance()
			continue
		}
		break
	}
	if err := p.expectPunct(")"); err != nil {
		return nil, nil, err
	}
	return args, kwargs, nil
}

func (p *parser) parsePrimary() (Node, error) {
	t := p.cur()
	switch t.kind {
	case tokString:
		p.advance()
		return LiteralNode{Value: Str(t.val)}, nil
	case tokInt:
		p.advance()
		i, err := strconv.ParseInt(t.val, 10, 64)
		if err != nil {
			return nil, &ParseError{Message: err.Error(), Pos: t.pos}
		}
		return LiteralNode{Value: Int(i)}, nil
	case tokFloat:
		p.advance()
		f, err := strconv.ParseFloat(t.val, 64)
		if err != nil {
			return nil, &ParseError{Message: err.Error(), Pos: t.pos}
		}
		return LiteralNode{Value: Float(f)}, nil
	case tokIdent:
		switch t.val {
		case "true", "True":
			p.advance()
			return LiteralNode{Value: Bool(true)}, nil
		case "false", "False":
			p.advance()
			return LiteralNode{Value: Bool(false)}, nil
		case "none", "None", "null":
			p.advance()
			return LiteralNode{Value: Null()}, nil
		}
		p.advance()
		return IdentNode{Name: t.val}, nil
	case tokPunct:
		switch t.val {
		case "(":
			p.advance()
			inner, err := p.parseTernary()
			if err != nil {
				return nil, err
			}
			if err := p.expectPunct(")"); err != nil {
				return nil, err
			}
			return inner, nil
		case "[":
			p.advance()
			var items []Node
			for !p.isPunct("]") {
				item, err := p.parseTernary()
				if err != nil {
					return nil, err
				}
				items = append(items, item)
				if p.isPunct(",") {
					p.advance()
					continue
				}
				break
			}
			if err := p.expectPunct("]"); err != nil {
				return nil, err
			}
			return ListNode{Items: items}, nil
		}
	}
	return nil, &ParseError{Message: fmt.Sprintf("unexpected token %q", t.val), Pos: t.pos}
}

// looksLikeStatement reports whether expr contains a statement-style Jinja
// construct ({% ... %}) that the grammar forbids outside if/then/else maps.
func looksLikeStatement(expr string) bool {
	return strings.Contains(expr, "{%") || strings.Contains(expr, "%}")
}
