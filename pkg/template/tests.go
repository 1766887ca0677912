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

import "strings"

// builtinTests returns the "is <name>" test registry. A test receives the
// target as args[0] and returns a boolean Value; TestNode negates it for
// "is not".
func builtinTests() map[string]Func {
	return map[string]Func{
		"defined": func(_ *Env, args []Value, _ map[string]Value) (Value, error) {
			return Bool(!args[0].IsUndefined()), nil
		},
		"undefined": func(_ *Env, args []Value, _ map[string]Value) (Value, error) {
			return Bool(args[0].IsUndefined()), nil
		},
		"none": func(_ *Env, args []Value, _ map[string]Value) (Value, error) {
			return Bool(args[0].Kind == KindNull), nil
		},
		"number": func(_ *Env, args []Value, _ map[string]Value) (Value, error) {
			return Bool(args[0].Kind == KindInt || args[0].Kind == KindFloat), nil
		},
		"integer": func(_ *Env, args []Value, _ map[string]Value) (Value, error) {
			return Bool(args[0].Kind == KindInt), nil
		},
		"float": func(_ *Env, args []Value, _ map[string]Value) (Value, error) {
			return Bool(args[0].Kind == KindFloat), nil
		},
		"string": func(_ *Env, args []Value, _ map[string]Value) (Value, error) {
			return Bool(args[0].Kind == KindString), nil
		},
		"sequence": func(_ *Env, args []Value, _ map[string]Value) (Value, error) {
			return Bool(args[0].Kind == KindList), nil
		},
		"boolean": func(_ *Env, args []Value, _ map[string]Value) (Value, error) {
			return Bool(args[0].Kind == KindBool), nil
		},
		"odd": func(_ *Env, args []Value, _ map[string]Value) (Value, error) {
			return Bool(args[0].Int%2 != 0), nil
		},
		"even": func(_ *Env, args []Value, _ map[string]Value) (Value, error) {
			return Bool(args[0].Int%2 == 0), nil
		},
		"startingwith": func(_ *Env, args []Value, _ map[string]Value) (Value, error) {
			if len(args) < 2 {
				return Bool(false), nil
			}
			return Bool(strings.HasPrefix(args[0].AsString(), args[1].AsString())), nil
		},
		"endingwith": func(_ *Env, args []Value, _ map[string]Value) (Value, error) {
			if len(args) < 2 {
				return Bool(false), nil
			}
			return Bool(strings.HasSuffix(args[0].AsString(), args[1].AsString())), nil
		},
	}
}
