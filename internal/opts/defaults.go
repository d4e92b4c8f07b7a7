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

package opts

import (
	"github.com/xyproto/env/v2"
)

const (
	_DefaultMaxIterations = 0 // no limit on fixed-point iterations
	_DefaultParallelism   = 1 // one function at a time
)

var (
	MaxIterations = parseOrDefault("PEEPHOLE_MAX_ITERATIONS", _DefaultMaxIterations, 0)
	Parallelism   = parseOrDefault("PEEPHOLE_PARALLELISM", _DefaultParallelism, 1)
	VerifyAfter   = env.Bool("PEEPHOLE_VERIFY")
	TraceEdits    = env.Bool("PEEPHOLE_TRACE")
)

func parseOrDefault(key string, def int, min int) int {
	if !env.Has(key) {
		return def
	} else if val := env.Int(key, -1); val < 0 {
		panic("peephole: invalid value for " + key)
	} else if val < min {
		panic("peephole: value too small for " + key)
	} else {
		return val
	}
}
