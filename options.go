/*
 * Copyright 2022 CloudWeGo Authors
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package peephole

import (
	"fmt"
	"log/slog"

	"github.com/cloudwego/peephole/internal/opts"
)

// Option is the property setter function for opts.Options.
type Option func(*opts.Options)

// WithMaxIterations limits the number of fixed-point iterations that change a single
// function. The last iteration, which only confirms that nothing is left to do, is not
// counted.
//
// Exceeding the limit means two rewrite rules keep undoing each other, which is a
// bug, so the optimizer panics instead of returning.
//
// The default value "0" means unlimited.
func WithMaxIterations(n int) Option {
	if n < 0 {
		panic(fmt.Sprintf("peephole: invalid max iterations: %d", n))
	} else {
		return func(o *opts.Options) { o.MaxIterations = n }
	}
}

// WithParallelism sets how many functions OptimizeModule processes concurrently.
//
// The default value of this option is "1".
func WithParallelism(n int) Option {
	if n < 1 {
		panic(fmt.Sprintf("peephole: invalid parallelism: %d", n))
	} else {
		return func(o *opts.Options) { o.Parallelism = n }
	}
}

// WithVerify runs the structural verifier on every function after it is optimized.
func WithVerify(v bool) Option {
	return func(o *opts.Options) { o.Verify = v }
}

// WithDevirtualize enables or disables the devirtualization pass, enabled by default.
func WithDevirtualize(v bool) Option {
	return func(o *opts.Options) { o.Devirtualize = v }
}

// WithLibrary provides a serialized library of external function summaries, produced by
// EncodeLibrary. It is decoded the first time an unknown function is looked up.
func WithLibrary(lib []byte) Option {
	return func(o *opts.Options) { o.Library = lib }
}

// WithLogger sets the logger every rewrite is traced to, at debug level.
func WithLogger(logger *slog.Logger) Option {
	return func(o *opts.Options) { o.Logger = logger }
}

// WithTrace traces every rewrite to stderr.
//
// This value can also be configured with the `PEEPHOLE_TRACE` environment variable.
func WithTrace(v bool) Option {
	return func(o *opts.Options) { o.Logger = opts.DefaultLogger(v) }
}

// SetMaxIterations sets the default iteration limit for all optimizations from now on.
//
// This value can also be configured with the `PEEPHOLE_MAX_ITERATIONS` environment
// variable.
//
// Returns the old opts.MaxIterations value.
func SetMaxIterations(n int) int {
	n, opts.MaxIterations = opts.MaxIterations, n
	return n
}
