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

package debug

import (
	"sync/atomic"

	"github.com/cloudwego/peephole/internal/combine"
	"github.com/cloudwego/peephole/internal/specialize"
)

// A Stats records process-wide statistics about the optimizer.
type Stats struct {
	Combiner    CombinerStats
	Specializer CacheStats
}

// A CombinerStats records statistics about the instruction combiner.
type CombinerStats struct {
	Runs       int
	Iterations int
	Erased     int
	Simplified int
	Rewritten  int
}

// A CacheStats records statistics about the specialization cache.
type CacheStats struct {
	Hit  int
	Miss int
	Size int
}

// GetStats returns statistics of the optimizer.
func GetStats() Stats {
	return Stats{
		Combiner: CombinerStats{
			Runs:       int(atomic.LoadUint64(&combine.RunCount)),
			Iterations: int(atomic.LoadUint64(&combine.IterationCount)),
			Erased:     int(atomic.LoadUint64(&combine.EraseCount)),
			Simplified: int(atomic.LoadUint64(&combine.SimplifyCount)),
			Rewritten:  int(atomic.LoadUint64(&combine.RewriteCount)),
		},
		Specializer: CacheStats{
			Hit:  int(atomic.LoadUint64(&specialize.HitCount)),
			Miss: int(atomic.LoadUint64(&specialize.MissCount)),
			Size: int(atomic.LoadUint64(&specialize.CloneCount)),
		},
	}
}
