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

package ir

import (
	"fmt"
	"strings"
)

// Dump renders the function as text, one instruction per line.
func (self *Function) Dump() string {
	var buf []string
	if self.External {
		return fmt.Sprintf("func @%s : %s [%s] (external)", self.Name, self.Type, self.Effects)
	}

	/* function header */
	buf = append(buf, fmt.Sprintf("func @%s : %s {", self.Name, self.Type))

	/* dump every block */
	for _, bb := range self.Blocks() {
		args := make([]string, 0, len(bb.Args))
		for _, v := range bb.Args {
			args = append(args, fmt.Sprintf("%s : %s", v, self.TypeOf(v)))
		}

		/* block header */
		if len(args) == 0 {
			buf = append(buf, fmt.Sprintf("%s:", bb.ID))
		} else {
			buf = append(buf, fmt.Sprintf("%s(%s):", bb.ID, strings.Join(args, ", ")))
		}

		/* block body */
		for _, p := range self.Instrs(bb) {
			buf = append(buf, "    "+p.String())
		}
	}

	/* join them together */
	buf = append(buf, "}")
	return strings.Join(buf, "\n")
}

// Ops returns the op of every live instruction in layout order.
func (self *Function) Ops() []Op {
	ret := make([]Op, 0, self.live)
	for _, bb := range self.Blocks() {
		for _, p := range self.Instrs(bb) {
			ret = append(ret, p.Op)
		}
	}
	return ret
}
