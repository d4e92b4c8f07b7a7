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

package linker

import (
	"fmt"
)

// SummaryError occures when an external function library cannot be decoded.
type SummaryError struct {
	Path   string
	Reason string
	Err    error
}

func (self SummaryError) Error() string {
	if self.Err != nil {
		return fmt.Sprintf("SummaryError(%s): %v", self.Path, self.Err)
	} else {
		return fmt.Sprintf("SummaryError(%s): %s", self.Path, self.Reason)
	}
}

func (self SummaryError) Unwrap() error {
	return self.Err
}

func esyntax(path string, err error) SummaryError {
	return SummaryError{
		Path: path,
		Err:  err,
	}
}

func ereason(path string, reason string) SummaryError {
	return SummaryError{
		Path:   path,
		Reason: reason,
	}
}
