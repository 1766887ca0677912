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

import "fmt"

// Func is a domain function (compiler, stdlib, pin_subpackage, ...) or
// filter/test implementation. args and kwargs have already been evaluated.
type Func func(env *Env, args []Value, kwargs map[string]Value) (Value, error)

// Env carries the variable bindings and function registries an expression
// is evaluated against. The same Env type serves both Stage 0 (Symbolic)
// discovery and Stage 1 concrete rendering; the only behavioral difference
// is how an unresolved identifier and a deferred pin are treated.
type Env struct {
	// Vars holds every name an expression may reference: package.name,
	// version, build_number, target_platform, plus the current variant's
	// key/value bindings.
	Vars map[string]Value

	// VariantKeys marks which Vars entries are variant-config keys rather
	// than fixed context (package.name, target_platform, ...). Referencing
	// one of these records it in UsedKeys.
	VariantKeys map[string]bool

	// Symbolic is true during Stage 0 discovery: unresolved variant keys
	// evaluate to Undetermined instead of erroring, so both arms of a
	// conditional are explored.
	Symbolic bool

	// UsedKeys accumulates the variant-config keys actually referenced by
	// the expressions evaluated against this Env. The variant expander
	// uses this to prune keys that don't affect a given output.
	UsedKeys map[string]bool

	// Functions is the domain function registry (compiler, stdlib,
	// pin_subpackage, cdt, match, env.get, load_from_file, git.*).
	Functions map[string]Func

	// Filters and Tests are the builtin filter ("| lower") and test
	// ("is defined") registries.
	Filters map[string]Func
	Tests   map[string]Func

	// OSEnv backs the env.get/env.exists domain functions.
	OSEnv map[string]string

	// Experimental gates load_from_file and the git.* domain functions,
	// which reach outside the recipe tree.
	Experimental bool
}

// NewEnv returns an Env preloaded with the builtin filter and test
// registries and an empty Vars map. Callers add context/variant bindings
// and the domain function registry (DomainFunctions) before evaluating.
func NewEnv() *Env {
	return &Env{
		Vars:        map[string]Value{},
		VariantKeys: map[string]bool{},
		UsedKeys:    map[string]bool{},
		Functions:   map[string]Func{},
		Filters:     builtinFilters(),
		Tests:       builtinTests(),
	}
}

// markUsed records that name was referenced, if it is a variant-config key.
func (e *Env) markUsed(name string) {
	if e.VariantKeys[name] {
		e.UsedKeys[name] = true
	}
}

// MarkUsed records name as a referenced variant key if it is one, for
// callers outside this package that discover a reference by means other
// than evaluating an expression (e.g. a bare dependency name).
func (e *Env) MarkUsed(name string) {
	e.markUsed(name)
}

// Eval walks an expression AST against env and returns its value.
func Eval(node Node, env *Env) (Value, error) {
	switch n := node.(type) {
	case LiteralNode:
		return n.Value, nil

	case IdentNode:
		if v, ok := env.Vars[n.Name]; ok {
			env.markUsed(n.Name)
			return v, nil
		}
		if env.Symbolic {
			return Undetermined(), nil
		}
		return Value{}, fmt.Errorf("undefined variable %q", n.Name)

	case ListNode:
		vs := make([]Value, len(n.Items))
		for i, item := range n.Items {
			v, err := Eval(item, env)
			if err != nil {
				return Value{}, err
			}
			vs[i] = v
		}
		return List(vs), nil

	case AttrNode:
		target, err := Eval(n.Target, env)
		if err != nil {
			return Value{}, err
		}
		return evalAttr(target, n.Attr, env)

	case IndexNode:
		target, err := Eval(n.Target, env)
		if err != nil {
			return Value{}, err
		}
		idx, err := Eval(n.Index, env)
		if err != nil {
			return Value{}, err
		}
		return evalIndex(target, idx, env)

	case CallNode:
		return evalCall(n, env)

	case FilterNode:
		target, err := Eval(n.Target, env)
		if err != nil {
			return Value{}, err
		}
		fn, ok := env.Filters[n.Name]
		if !ok {
			return Value{}, fmt.Errorf("unknown filter %q", n.Name)
		}
		args, kwargs, err := evalArgs(n.Args, n.Kwargs, env)
		if err != nil {
			return Value{}, err
		}
		if target.IsUndetermined() {
			return Undetermined(), nil
		}
		return fn(env, append([]Value{target}, args...), kwargs)

	case TestNode:
		target, err := Eval(n.Target, env)
		if err != nil {
			return Value{}, err
		}
		fn, ok := env.Tests[n.Name]
		if !ok {
			return Value{}, fmt.Errorf("unknown test %q", n.Name)
		}
		args, _, err := evalArgs(n.Args, nil, env)
		if err != nil {
			return Value{}, err
		}
		if target.IsUndetermined() {
			return Undetermined(), nil
		}
		result, err := fn(env, append([]Value{target}, args...), nil)
		if err != nil {
			return Value{}, err
		}
		if n.Negate {
			return Bool(!result.Truthy()), nil
		}
		return result, nil

	case TernaryNode:
		cond, err := Eval(n.Cond, env)
		if err != nil {
			return Value{}, err
		}
		if cond.IsUndetermined() {
			// Both arms are explored during Stage 0 discovery by the
			// caller (the renderer re-evaluates each branch); here we
			// surface Undetermined so a templated scalar site resolves
			// to "unknown until variant is picked".
			return Undetermined(), nil
		}
		if cond.Truthy() {
			return Eval(n.Then, env)
		}
		return Eval(n.Else, env)

	case UnaryNode:
		operand, err := Eval(n.Operand, env)
		if err != nil {
			return Value{}, err
		}
		if operand.IsUndetermined() {
			return Undetermined(), nil
		}
		switch n.Op {
		case "not":
			return Bool(!operand.Truthy()), nil
		case "-":
			if operand.Kind == KindFloat {
				return Float(-operand.Float), nil
			}
			return Int(-operand.Int), nil
		default:
			return Value{}, fmt.Errorf("unknown unary operator %q", n.Op)
		}

	case BinaryNode:
		return evalBinary(n, env)
	}

	return Value{}, fmt.Errorf("unhandled node type %T", node)
}

func evalArgs(argNodes []Node, kwargNodes map[string]Node, env *Env) ([]Value, map[string]Value, error) {
	args := make([]Value, len(argNodes))
	for i, a := range argNodes {
		v, err := Eval(a, env)
		if err != nil {
			return nil, nil, err
		}
		args[i] = v
	}
	var kwargs map[string]Value
	if kwargNodes != nil {
		kwargs = make(map[string]Value, len(kwargNodes))
		for k, n := range kwargNodes {
			v, err := Eval(n, env)
			if err != nil {
				return nil, nil, err
			}
			kwargs[k] = v
		}
	}
	return args, kwargs, nil
}

func evalAttr(target Value, attr string, env *Env) (Value, error) {
	if target.IsUndetermined() {
		return Undetermined(), nil
	}
	if target.Kind != KindMap {
		if env.Symbolic {
			return Undetermined(), nil
		}
		return Value{}, fmt.Errorf("cannot access attribute %q of %s", attr, target.Kind)
	}
	if v, ok := target.Map[attr]; ok {
		return v, nil
	}
	if env.Symbolic {
		return Undetermined(), nil
	}
	return Value{}, fmt.Errorf("no such attribute %q", attr)
}

func evalIndex(target, idx Value, env *Env) (Value, error) {
	if target.IsUndetermined() || idx.IsUndetermined() {
		return Undetermined(), nil
	}
	switch target.Kind {
	case KindList:
		if idx.Kind != KindInt {
			return Value{}, fmt.Errorf("list index must be an integer, got %s", idx.Kind)
		}
		i := idx.Int
		if i < 0 {
			i += int64(len(target.List))
		}
		if i < 0 || i >= int64(len(target.List)) {
			return Value{}, fmt.Errorf("list index %d out of range", idx.Int)
		}
		return target.List[i], nil
	case KindMap:
		key := idx.AsString()
		if v, ok := target.Map[key]; ok {
			return v, nil
		}
		if env.Symbolic {
			return Undetermined(), nil
		}
		return Value{}, fmt.Errorf("no such key %q", key)
	default:
		return Value{}, fmt.Errorf("cannot index into %s", target.Kind)
	}
}

func evalCall(n CallNode, env *Env) (Value, error) {
	fn, ok := env.Functions[n.Fn]
	if !ok {
		return Value{}, fmt.Errorf("unknown function %q", n.Fn)
	}
	args, kwargs, err := evalArgs(n.Args, n.Kwargs, env)
	if err != nil {
		return Value{}, err
	}
	return fn(env, args, kwargs)
}

func evalBinary(n BinaryNode, env *Env) (Value, error) {
	// and/or short-circuit on a concrete left value before touching the
	// right side, so `defined_thing or expensive()` works even when
	// expensive() would itself error.
	if n.Op == "and" || n.Op == "or" {
		left, err := Eval(n.Left, env)
		if err != nil {
			return Value{}, err
		}
		if !left.IsUndetermined() {
			if n.Op == "and" && !left.Truthy() {
				return left, nil
			}
			if n.Op == "or" && left.Truthy() {
				return left, nil
			}
		}
		right, err := Eval(n.Right, env)
		if err != nil {
			return Value{}, err
		}
		if left.IsUndetermined() || right.IsUndetermined() {
			return Undetermined(), nil
		}
		return right, nil
	}

	left, err := Eval(n.Left, env)
	if err != nil {
		return Value{}, err
	}
	right, err := Eval(n.Right, env)
	if err != nil {
		return Value{}, err
	}
	if left.IsUndetermined() || right.IsUndetermined() {
		return Undetermined(), nil
	}

	switch n.Op {
	case "==":
		return Bool(left.Equal(right)), nil
	case "!=":
		return Bool(!left.Equal(right)), nil
	case "<", "<=", ">", ">=":
		lt, err := left.Less(right)
		if err != nil {
			return Value{}, err
		}
		eq := left.Equal(right)
		switch n.Op {
		case "<":
			return Bool(lt), nil
		case "<=":
			return Bool(lt || eq), nil
		case ">":
			return Bool(!lt && !eq), nil
		case ">=":
			return Bool(!lt || eq), nil
		}
	case "+":
		return evalAdd(left, right)
	case "-", "*", "/", "%":
		return evalArith(n.Op, left, right)
	}
	return Value{}, fmt.Errorf("unknown binary operator %q", n.Op)
}

func evalAdd(left, right Value) (Value, error) {
	if left.Kind == KindString || right.Kind == KindString {
		return Str(left.AsString() + right.AsString()), nil
	}
	if left.Kind == KindList && right.Kind == KindList {
		return List(append(append([]Value{}, left.List...), right.List...)), nil
	}
	return evalArith("+", left, right)
}

func evalArith(op string, left, right Value) (Value, error) {
	if left.Kind != KindInt && left.Kind != KindFloat {
		return Value{}, fmt.Errorf("cannot apply %q to %s", op, left.Kind)
	}
	if right.Kind != KindInt && right.Kind != KindFloat {
		return Value{}, fmt.Errorf("cannot apply %q to %s", op, right.Kind)
	}
	if left.Kind == KindInt && right.Kind == KindInt {
		switch op {
		case "+":
			return Int(left.Int + right.Int), nil
		case "-":
			return Int(left.Int - right.Int), nil
		case "*":
			return Int(left.Int * right.Int), nil
		case "/":
			if right.Int == 0 {
				return Value{}, fmt.Errorf("division by zero")
			}
			return Int(left.Int / right.Int), nil
		case "%":
			if right.Int == 0 {
				return Value{}, fmt.Errorf("division by zero")
			}
			return Int(left.Int % right.Int), nil
		}
	}
	l, r := left.asFloat(), right.asFloat()
	switch op {
	case "+":
		return Float(l + r), nil
	case "-":
		return Float(l - r), nil
	case "*":
		return Float(l * r), nil
	case "/":
		if r == 0 {
			return Value{}, fmt.Errorf("division by zero")
		}
		return Float(l / r), nil
	case "%":
		return Value{}, fmt.Errorf("modulo is not supported for floating point values")
	}
	return Value{}, fmt.Errorf("unknown arithmetic operator %q", op)
}
