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

// Package contextreader wraps an io.Reader so that, once a context is
// canceled, the next Read returns ctx.Err() instead of reading further. A
// Read already blocked in the underlying reader is not interrupted; the
// cancellation takes effect when it returns.
package contextreader

import (
	"context"
	"io"
)

type contextReader struct {
	ctx context.Context
	r   io.Reader
}

// New returns an io.Reader that checks ctx before every Read and returns
// ctx.Err() instead of delegating once the context is done.
func New(ctx context.Context, r io.Reader) io.Reader {
	return &contextReader{ctx: ctx, r: r}
}

func (c *contextReader) Read(p []byte) (int, error) {
	if err := c.ctx.Err(); err != nil {
		return 0, err
	}

	n, err := c.r.Read(p)
	if err != nil {
		return n, err
	}

	if cerr := c.ctx.Err(); cerr != nil {
		return n, cerr
	}

	return n, nil
}
