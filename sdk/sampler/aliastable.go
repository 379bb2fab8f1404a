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

package sampler

import (
	"math"
	"math/bits"

	"github.com/zintix-labs/qrnglab/sdk/core"
)

// DefaultProbScale 把 [0,1] 機率放大成整數權重的倍率。
//
// 2^32 讓最小可表示機率約 2.3e-10；搭配 2^20 個基底態時 total*n 仍遠小於 MaxInt64。
const DefaultProbScale = 1 << 32

// AliasTable 是 Vose Alias Method 的整數版本，O(1) 從離散分布抽樣。
//
// 模擬器用它對 statevector 的量測機率分布抽樣：每個 shot 固定 2 次 IntN。
//   - Prob: 每個槽位經 scaling 後的「留在自己」門檻。
//   - Aliases: 門檻以外要跳去的別名索引。
//   - Size: 槽位數（基底態數量）。
//   - Total: 權重總和。
//
// 全程整數運算，避免浮點誤差累積（0.999... != 1.0）。
type AliasTable struct {
	Prob    []int
	Aliases []int
	Size    int
	Total   int
}

// BuildAliasTable 根據非負整數權重建表。權重可為零，但全部為零、負權重或溢位會 panic。
//
// 流程：
//  1. prob[i] = w[i] * n（整數 scaling）。
//  2. 以 total 為界分到 small / large 兩桶。
//  3. 每次各取一個 s, l：s 的缺口由 l 補上（aliases[s] = l），並調整 prob[l]。
//  4. 直到其中一桶為空。
func BuildAliasTable(weights []int) *AliasTable {
	if len(weights) == 0 {
		return &AliasTable{
			Prob:    []int{},
			Aliases: []int{},
		}
	}

	n := len(weights)
	total := uint64(0)
	for _, w := range weights {
		if w < 0 {
			panic("AliasTable: negative weight encountered")
		}
		if total > uint64(math.MaxInt)-uint64(w) {
			panic("AliasTable: total weight overflow int range")
		}
		total += uint64(w)
	}

	if total == 0 {
		panic("AliasTable: all weights are zero")
	}

	if !isSafeMultiply(int(total), n) {
		panic("AliasTable: weights are too large, causing overflow")
	}

	prob := make([]int, n)
	aliases := make([]int, n)

	small := make([]int, 0, n)
	large := make([]int, 0, n)

	for i, w := range weights {
		prob[i] = w * n
		if prob[i] < int(total) {
			small = append(small, i)
		} else {
			large = append(large, i)
		}
	}

	for len(small) > 0 && len(large) > 0 {
		s := small[len(small)-1]
		small = small[:len(small)-1]
		l := large[len(large)-1]
		large = large[:len(large)-1]

		aliases[s] = l
		// 維持 sum(prob) = total * n
		prob[l] = prob[l] + prob[s] - int(total)

		if prob[l] < int(total) {
			small = append(small, l)
		} else {
			large = append(large, l)
		}
	}

	return &AliasTable{
		Prob:    prob,
		Aliases: aliases,
		Size:    n,
		Total:   int(total),
	}
}

// BuildAliasTableFromProbs 把浮點機率以 scale 四捨五入成整數權重後建表。
//
// probs 不需嚴格加總為 1（statevector 的數值誤差在 1e-12 量級），
// 負值與 NaN 視為 0。scale <= 0 時使用 DefaultProbScale。
func BuildAliasTableFromProbs[T Floaters](probs []T, scale int) *AliasTable {
	if scale <= 0 {
		scale = DefaultProbScale
	}
	weights := make([]int, len(probs))
	for i, p := range probs {
		f := float64(p)
		if !(f > 0) {
			continue
		}
		weights[i] = int(math.Round(f * float64(scale)))
	}
	return BuildAliasTable(weights)
}

// isSafeMultiply 檢查 a*b 是否超過 math.MaxInt64
func isSafeMultiply(a, b int) bool {
	hi, lo := bits.Mul64(uint64(a), uint64(b))
	return hi == 0 && (lo <= math.MaxInt64)
}

// Pick 抽取一個索引，若表為空則回傳 -1。
//
// 先用 IntN(Size) 選槽位，再以 IntN(Total) < Prob[idx] 決定留在自己或走 alias，
// 等價於浮點版的 U < p[idx]。
func (at *AliasTable) Pick(c *core.Core) int {
	if at.Size == 0 {
		return -1
	}
	idx := c.IntN(at.Size)
	if c.IntN(at.Total) < at.Prob[idx] {
		return idx
	}
	return at.Aliases[idx]
}
