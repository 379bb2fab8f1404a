// Copyright 2025 Zintix Labs
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

package qsim

import "math"

// Transpile 以 optimization level 0 把電路改寫到原生閘集合 {rz, sx, x}。
//
// 不做任何合併或消去，layout 為 identity（邏輯 qubit i 對應實體 qubit i）。
// 改寫規則（皆只差全域相位）：
//
//	h -> rz(π/2) · sx · rz(π/2)
//	y -> rz(π) · x
//	z -> rz(π)
func Transpile(c *Circuit) *Circuit {
	out := &Circuit{NumQubits: c.NumQubits, Gates: make([]Gate, 0, 3*len(c.Gates))}
	for _, g := range c.Gates {
		switch g.Kind {
		case GateH:
			out.RZ(math.Pi/2, g.Qubit).SX(g.Qubit).RZ(math.Pi/2, g.Qubit)
		case GateY:
			out.RZ(math.Pi, g.Qubit).X(g.Qubit)
		case GateZ:
			out.RZ(math.Pi, g.Qubit)
		default:
			out.add(g)
		}
	}
	return out
}

// NoisyGates 回傳會被套用閘誤差的閘索引（非 virtual 閘）。
func (c *Circuit) NoisyGates() []int {
	idx := make([]int, 0, len(c.Gates))
	for i, g := range c.Gates {
		if !g.Kind.Virtual() {
			idx = append(idx, i)
		}
	}
	return idx
}
