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

import (
	"math"
	"math/cmplx"
)

// matrix2 單 qubit 2x2 么正矩陣，row-major：[m00 m01; m10 m11]
type matrix2 [4]complex128

var (
	invSqrt2 = complex(1/math.Sqrt2, 0)

	matH = matrix2{invSqrt2, invSqrt2, invSqrt2, -invSqrt2}
	matX = matrix2{0, 1, 1, 0}
	matY = matrix2{0, -1i, 1i, 0}
	matZ = matrix2{1, 0, 0, -1}
	// sqrt(X) = ½ [[1+i, 1-i], [1-i, 1+i]]
	matSX = matrix2{
		complex(0.5, 0.5), complex(0.5, -0.5),
		complex(0.5, -0.5), complex(0.5, 0.5),
	}
)

func matRZ(theta float64) matrix2 {
	return matrix2{cmplx.Exp(complex(0, -theta/2)), 0, 0, cmplx.Exp(complex(0, theta/2))}
}

func gateMatrix(g Gate) matrix2 {
	switch g.Kind {
	case GateH:
		return matH
	case GateX:
		return matX
	case GateY:
		return matY
	case GateZ:
		return matZ
	case GateSX:
		return matSX
	case GateRZ:
		return matRZ(g.Theta)
	}
	panic("qsim: unknown gate " + g.Kind.String())
}

// pauliMatrix 1=X 2=Y 3=Z（對應 core.Pauli 的回傳值）
func pauliMatrix(p uint8) matrix2 {
	switch p {
	case 1:
		return matX
	case 2:
		return matY
	default:
		return matZ
	}
}

// Statevector n 個 qubit 的純態振幅。
//
// 索引 i 的第 q 個位元對應 qubit q，
// 因此把 i 以 n 位二進位寫出即為 qubit n-1 ... 0 的量測字串。
type Statevector struct {
	n   int
	amp []complex128
}

// NewStatevector 初始化為 |0...0>
func NewStatevector(n int) *Statevector {
	sv := &Statevector{n: n, amp: make([]complex128, 1<<n)}
	sv.amp[0] = 1
	return sv
}

func (sv *Statevector) NumQubits() int { return sv.n }

// Reset 回到 |0...0>，重用記憶體
func (sv *Statevector) Reset() {
	clear(sv.amp)
	sv.amp[0] = 1
}

// apply 對 qubit q 套用 2x2 矩陣
func (sv *Statevector) apply(m matrix2, q int) {
	stride := 1 << q
	for base := 0; base < len(sv.amp); base += stride << 1 {
		for i := base; i < base+stride; i++ {
			a0, a1 := sv.amp[i], sv.amp[i+stride]
			sv.amp[i] = m[0]*a0 + m[1]*a1
			sv.amp[i+stride] = m[2]*a0 + m[3]*a1
		}
	}
}

// ApplyGate 套用電路中的一個閘
func (sv *Statevector) ApplyGate(g Gate) {
	sv.apply(gateMatrix(g), g.Qubit)
}

// ApplyPauli 套用誤差 Pauli（1=X 2=Y 3=Z）
func (sv *Statevector) ApplyPauli(p uint8, q int) {
	sv.apply(pauliMatrix(p), q)
}

// Probabilities 各基底的量測機率 |amp|^2
func (sv *Statevector) Probabilities() []float64 {
	out := make([]float64, len(sv.amp))
	for i, a := range sv.amp {
		re, im := real(a), imag(a)
		out[i] = re*re + im*im
	}
	return out
}

// Amplitude 讀取單一振幅，測試用
func (sv *Statevector) Amplitude(i int) complex128 {
	return sv.amp[i]
}
