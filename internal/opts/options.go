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
	"log/slog"
	"os"
)

type Options struct {
	MaxIterations int
	Parallelism   int
	Verify        bool
	Devirtualize  bool
	Library       []byte
	Logger        *slog.Logger
}

func GetDefaultOptions() Options {
	return Options{
		MaxIterations: MaxIterations,
		Parallelism:   Parallelism,
		Verify:        VerifyAfter,
		Devirtualize:  true,
		Logger:        DefaultLogger(TraceEdits),
	}
}

// DefaultLogger returns a debug-level stderr logger when tracing is enabled, nil otherwise.
func DefaultLogger(trace bool) *slog.Logger {
	if !trace {
		return nil
	} else {
		return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelDebug}))
	}
}
