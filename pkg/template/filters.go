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
	"sort"
	"strconv"
	"strings"
)

// builtinFilters returns the pipe-filter registry available to every
// expression: target|name(args...). args[0] is always the piped-in value.
func builtinFilters() map[string]Func {
	return map[string]Func{
		"lower": func(_ *Env, args []Value, _ map[string]Value) (Value, error) {
			return Str(strings.ToLower(args[0].AsString())), nil
		},
		"upper": func(_ *Env, args []Value, _ map[string]Value) (Value, error) {
			return Str(strings.ToUpper(args[0].AsString())), nil
		},
		"trim": func(_ *Env, args []Value, _ map[string]Value) (Value, error) {
			return Str(strings.TrimSpace(args[0].AsString())), nil
		},
		"replace": func(_ *Env, args []Value, _ map[string]Value) (Value, error) {
			if len(args) < 3 {
				return Value{}, fmt.Errorf("replace requires (old, new) arguments")
			}
			return Str(strings.ReplaceAll(args[0].AsString(), args[1].AsString(), args[2].AsString())), nil
		},
		"split": func(_ *Env, args []Value, _ map[string]Value) (Value, error) {
			sep := " "
			if len(args) > 1 {
				sep = args[1].AsString()
			}
			parts := strings.Split(args[0].AsString(), sep)
			vs := make([]Value, len(parts))
			for i, p := range parts {
				vs[i] = Str(p)
			}
			return List(vs), nil
		},
		"int": func(_ *Env, args []Value, _ map[string]Value) (Value, error) {
			v := args[0]
			switch v.Kind {
			case KindInt:
				return v, nil
			case KindFloat:
				return Int(int64(v.Float)), nil
			case KindBool:
				if v.Bool {
					return Int(1), nil
				}
				return Int(0), nil
			case KindString:
				i, err := strconv.ParseInt(strings.TrimSpace(v.Str), 10, 64)
				if err != nil {
					return Value{}, fmt.Errorf("cannot convert %q to int: %w", v.Str, err)
				}
				return Int(i), nil
			default:
				return Value{}, fmt.Errorf("cannot convert %s to int", v.Kind)
			}
		},
		"abs": func(_ *Env, args []Value, _ map[string]Value) (Value, error) {
			v := args[0]
			if v.Kind == KindFloat {
				if v.Float < 0 {
					return Float(-v.Float), nil
				}
				return v, nil
			}
			if v.Int < 0 {
				return Int(-v.Int), nil
			}
			return v, nil
		},
		"bool": func(_ *Env, args []Value, _ map[string]Value) (Value, error) {
			return Bool(args[0].Truthy()), nil
		},
		"default": func(_ *Env, args []Value, _ map[string]Value) (Value, error) {
			if args[0].IsUndefined() || args[0].Kind == KindNull {
				if len(args) > 1 {
					return args[1], nil
				}
				return Str(""), nil
			}
			return args[0], nil
		},
		"first": func(_ *Env, args []Value, _ map[string]Value) (Value, error) {
			v := args[0]
			if v.Kind != KindList || len(v.List) == 0 {
				return Value{}, fmt.Errorf("first: empty or non-sequence value")
			}
			return v.List[0], nil
		},
		"last": func(_ *Env, args []Value, _ map[string]Value) (Value, error) {
			v := args[0]
			if v.Kind != KindList || len(v.List) == 0 {
				return Value{}, fmt.Errorf("last: empty or non-sequence value")
			}
			return v.List[len(v.List)-1], nil
		},
		"length": func(_ *Env, args []Value, _ map[string]Value) (Value, error) {
			switch args[0].Kind {
			case KindList:
				return Int(int64(len(args[0].List))), nil
			case KindMap:
				return Int(int64(len(args[0].Map))), nil
			case KindString:
				return Int(int64(len(args[0].Str))), nil
			default:
				return Value{}, fmt.Errorf("length: unsupported type %s", args[0].Kind)
			}
		},
		"list": func(_ *Env, args []Value, _ map[string]Value) (Value, error) {
			if args[0].Kind == KindList {
				return args[0], nil
			}
			if args[0].Kind == KindString {
				vs := make([]Value, len(args[0].Str))
				for i, r := range []byte(args[0].Str) {
					vs[i] = Str(string(r))
				}
				return List(vs), nil
			}
			return Value{}, fmt.Errorf("list: unsupported type %s", args[0].Kind)
		},
		"join": func(_ *Env, args []Value, _ map[string]Value) (Value, error) {
			sep := ""
			if len(args) > 1 {
				sep = args[1].AsString()
			}
			if args[0].Kind != KindList {
				return Value{}, fmt.Errorf("join: expected a sequence")
			}
			parts := make([]string, len(args[0].List))
			for i, e := range args[0].List {
				parts[i] = e.AsString()
			}
			return Str(strings.Join(parts, sep)), nil
		},
		"min": func(_ *Env, args []Value, _ map[string]Value) (Value, error) { return extremum(args[0], true) },
		"max": func(_ *Env, args []Value, _ map[string]Value) (Value, error) { return extremum(args[0], false) },
		"reverse": func(_ *Env, args []Value, _ map[string]Value) (Value, error) {
			if args[0].Kind != KindList {
				return Value{}, fmt.Errorf("reverse: expected a sequence")
			}
			src := args[0].List
			out := make([]Value, len(src))
			for i, v := range src {
				out[len(src)-1-i] = v
			}
			return List(out), nil
		},
		"sort": func(_ *Env, args []Value, _ map[string]Value) (Value, error) {
			if args[0].Kind != KindList {
				return Value{}, fmt.Errorf("sort: expected a sequence")
			}
			out := append([]Value{}, args[0].List...)
			var sortErr error
			sort.SliceStable(out, func(i, j int) bool {
				less, err := out[i].Less(out[j])
				if err != nil {
					sortErr = err
				}
				return less
			})
			if sortErr != nil {
				return Value{}, sortErr
			}
			return List(out), nil
		},
		"unique": func(_ *Env, args []Value, _ map[string]Value) (Value, error) {
			if args[0].Kind != KindList {
				return Value{}, fmt.Errorf("unique: expected a sequence")
			}
			var out []Value
			for _, v := range args[0].List {
				dup := false
				for _, seen := range out {
					if seen.Equal(v) {
						dup = true
						break
					}
				}
				if !dup {
					out = append(out, v)
				}
			}
			return List(out), nil
		},
		"version_to_buildstring": func(_ *Env, args []Value, _ map[string]Value) (Value, error) {
			s := args[0].AsString()
			s = strings.ReplaceAll(s, "-", "_")
			if i := strings.IndexAny(s, "+"); i >= 0 {
				s = s[:i]
			}
			return Str(s), nil
		},
	}
}

func extremum(v Value, wantMin bool) (Value, error) {
	if v.Kind != KindList || len(v.List) == 0 {
		return Value{}, fmt.Errorf("empty or non-sequence value")
	}
	best := v.List[0]
	for _, e := range v.List[1:] {
		less, err := e.Less(best)
		if err != nil {
			return Value{}, err
		}
		if less == wantMin {
			best = e
		}
	}
	return best, nil
}
