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

package entropy

import (
	"github.com/zintix-labs/qrnglab/errs"
)

// Outcome 單一量測結果與其出現次數
type Outcome struct {
	Bits  string `json:"bits"`
	Count int    `json:"count"`
}

// Counts 量測計數，依首次觀測順序排列。
//
// 用有序切片而不是 map：多 qubit 模式下大量結果同票，
// 取「最先出現者」才不會系統性偏向某個字典序。
type Counts []Outcome

// Total 總 shot 數
func (c Counts) Total() int {
	n := 0
	for _, o := range c {
		n += o.Count
	}
	return n
}

// Get 取得某個位元字串的次數，不存在回傳 0。
func (c Counts) Get(bits string) int {
	for _, o := range c {
		if o.Bits == bits {
			return o.Count
		}
	}
	return 0
}

// MostFrequent 回傳次數最多的結果；同票取排在前面（較早出現）者。空集合回傳 false。
func (c Counts) MostFrequent() (Outcome, bool) {
	best := -1
	for i, o := range c {
		if best < 0 || o.Count > c[best].Count {
			best = i
		}
	}
	if best < 0 {
		return Outcome{}, false
	}
	return c[best], true
}

// validate 每個結果長度必須等於 qubit 數、只含 0/1、次數非負。
func (c Counts) validate(qubits int) error {
	for _, o := range c {
		if len(o.Bits) != qubits {
			return errs.SourceUnavailable("malformed counts", errs.InvalidArgument("outcome %q has %d bits, want %d", o.Bits, len(o.Bits), qubits))
		}
		if o.Count < 0 {
			return errs.SourceUnavailable("malformed counts", errs.InvalidArgument("outcome %q has negative count", o.Bits))
		}
		if _, err := ParseBits(o.Bits); err != nil {
			return errs.SourceUnavailable("malformed counts", err)
		}
	}
	return nil
}

// ParseBits 把 "1011" 轉成 []Bit{1,0,1,1}（順序不變）。
func ParseBits(s string) ([]Bit, error) {
	out := make([]Bit, len(s))
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '0':
		case '1':
			out[i] = 1
		default:
			return nil, errs.InvalidArgument("invalid bit %q at %d", s[i], i)
		}
	}
	return out, nil
}

// FormatBits ParseBits 的反向。
func FormatBits(bits []Bit) string {
	b := make([]byte, len(bits))
	for i, v := range bits {
		b[i] = '0' + byte(v&1)
	}
	return string(b)
}

// Uint64 以大端序把位元組成整數，len(bits) 需 <= 64。
func Uint64(bits []Bit) uint64 {
	var v uint64
	for _, b := range bits {
		v = v<<1 | uint64(b&1)
	}
	return v
}
