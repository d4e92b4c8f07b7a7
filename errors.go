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
	"github.com/cloudwego/peephole/internal/linker"
	"github.com/cloudwego/peephole/ir/verify"
)

// VerifyError occures when an optimized function is not well-formed anymore.
type VerifyError = verify.Error

// SummaryError occures when the library of external function summaries is malformed.
type SummaryError = linker.SummaryError
