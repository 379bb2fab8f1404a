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

// Package qsim 是 qrnglab 的本地量子後端：單 qubit 閘電路、
// 轉譯到 {rz, sx, x} 原生閘、statevector 演化與帶雜訊的 shot 取樣。
//
// 只支援單 qubit 閘（本專案只需要 Hadamard 疊加），所有 qubit 在電路結尾量測。
package qsim

import (
	"fmt"
	"strings"

	"github.com/zintix-labs/qrnglab/errs"
)

// MaxQubits statevector 上限（2^20 個振幅，約 16MB）。
const MaxQubits = 20

// GateKind 閘種類
type GateKind uint8

const (
	GateH GateKind = iota + 1
	GateX
	GateY
	GateZ
	GateSX
	GateRZ
)

var gateNames = map[GateKind]string{
	GateH:  "h",
	GateX:  "x",
	GateY:  "y",
	GateZ:  "z",
	GateSX: "sx",
	GateRZ: "rz",
}

func (g GateKind) String() string {
	if s, ok := gateNames[g]; ok {
		return s
	}
	return fmt.Sprintf("gate(%d)", uint8(g))
}

// Virtual rz 在 IBM 類硬體上是「改參考座標」，不經過實體脈衝，因此不帶閘誤差。
func (g GateKind) Virtual() bool {
	return g == GateRZ
}

// Gate 作用在單一 qubit 的閘；Theta 只對 rz 有意義。
type Gate struct {
	Kind  GateKind
	Qubit int
	Theta float64
}

func (g Gate) String() string {
	if g.Kind == GateRZ {
		return fmt.Sprintf("rz(%.4f) q%d", g.Theta, g.Qubit)
	}
	return fmt.Sprintf("%s q%d", g.Kind, g.Qubit)
}

// Circuit 單 qubit 閘序列，結尾量測全部 qubit。
type Circuit struct {
	NumQubits int
	Gates     []Gate
}

// NewCircuit 建立 n 個 qubit 的空電路
func NewCircuit(n int) (*Circuit, error) {
	if n < 1 || n > MaxQubits {
		return nil, errs.InvalidArgument("qubits must be in [1,%d], got %d", MaxQubits, n)
	}
	return &Circuit{NumQubits: n, Gates: make([]Gate, 0, 3*n)}, nil
}

// HadamardCircuit 每個 qubit 一個 H 閘：|0...0> -> 等權疊加。
func HadamardCircuit(n int) (*Circuit, error) {
	c, err := NewCircuit(n)
	if err != nil {
		return nil, err
	}
	for q := 0; q < n; q++ {
		c.H(q)
	}
	return c, nil
}

func (c *Circuit) add(g Gate) *Circuit {
	if g.Qubit < 0 || g.Qubit >= c.NumQubits {
		panic(fmt.Sprintf("qsim: qubit %d out of range [0,%d)", g.Qubit, c.NumQubits))
	}
	c.Gates = append(c.Gates, g)
	return c
}

func (c *Circuit) H(q int) *Circuit  { return c.add(Gate{Kind: GateH, Qubit: q}) }
func (c *Circuit) X(q int) *Circuit  { return c.add(Gate{Kind: GateX, Qubit: q}) }
func (c *Circuit) Y(q int) *Circuit  { return c.add(Gate{Kind: GateY, Qubit: q}) }
func (c *Circuit) Z(q int) *Circuit  { return c.add(Gate{Kind: GateZ, Qubit: q}) }
func (c *Circuit) SX(q int) *Circuit { return c.add(Gate{Kind: GateSX, Qubit: q}) }
func (c *Circuit) RZ(theta float64, q int) *Circuit {
	return c.add(Gate{Kind: GateRZ, Qubit: q, Theta: theta})
}

// String 每行一個閘，方便除錯輸出
func (c *Circuit) String() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "circuit(%d qubits)\n", c.NumQubits)
	for _, g := range c.Gates {
		sb.WriteString("  ")
		sb.WriteString(g.String())
		sb.WriteByte('\n')
	}
	sb.WriteString("  measure all\n")
	return sb.String()
}
