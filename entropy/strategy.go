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
	"context"

	"github.com/zintix-labs/qrnglab/errs"
)

// Majority 單 qubit 模式：每個位元都是一次獨立的 1-qubit 實驗。
//
// 一次實驗重複 Shots 次後取多數決（只有 count0 > count1 時回傳 0，同票回傳 1）。
// 多數決把後端的隨機雜訊平均掉，但也會放大後端的系統性偏差，
// 輸出的偏差下限就是後端本身的偏差。
type Majority struct {
	backend Backend
	cfg     Config
}

// NewMajority 直接建立 Majority（cfg.Strategy 會被忽略）。
func NewMajority(b Backend, cfg Config) (*Majority, error) {
	cfg.Strategy = StrategyMajority
	src, err := NewSource(b, cfg)
	if err != nil {
		return nil, err
	}
	return src.(*Majority), nil
}

func (m *Majority) SampleBit(ctx context.Context) (Bit, error) {
	exp := Experiment{Qubits: 1, Shots: m.cfg.Shots, Noise: m.cfg.Noise}
	counts, err := run(ctx, m.backend, exp)
	if err != nil {
		return 0, err
	}
	if counts.Get("0") > counts.Get("1") {
		return 0, nil
	}
	return 1, nil
}

func (m *Majority) SampleBits(ctx context.Context, n int) ([]Bit, error) {
	if n < 0 {
		return nil, errs.InvalidArgument("bit count must be >= 0, got %d", n)
	}
	out := make([]Bit, n)
	for i := range out {
		b, err := m.SampleBit(ctx)
		if err != nil {
			return nil, err
		}
		out[i] = b
	}
	return out, nil
}

// Joint 多 qubit 模式：n 個 qubit 同一次實驗，取出現最多次的聯合位元字串。
//
// 注意：這是近似。只有當各 qubit 在實驗上彼此獨立、且雜訊不系統性偏好某個聯合態時，
// 結果才接近逐位元無偏；本實作不做任何修正。
// 大量同票時取最先觀測到的結果。超過 MaxQubits 的請求會切成多次實驗依序拼接。
type Joint struct {
	backend Backend
	cfg     Config
}

// NewJoint 直接建立 Joint（cfg.Strategy 會被忽略）。
func NewJoint(b Backend, cfg Config) (*Joint, error) {
	cfg.Strategy = StrategyJoint
	src, err := NewSource(b, cfg)
	if err != nil {
		return nil, err
	}
	return src.(*Joint), nil
}

func (j *Joint) SampleBit(ctx context.Context) (Bit, error) {
	bits, err := j.SampleBits(ctx, 1)
	if err != nil {
		return 0, err
	}
	return bits[0], nil
}

func (j *Joint) SampleBits(ctx context.Context, n int) ([]Bit, error) {
	if n < 0 {
		return nil, errs.InvalidArgument("bit count must be >= 0, got %d", n)
	}
	out := make([]Bit, 0, n)
	for left := n; left > 0; {
		k := min(left, j.cfg.MaxQubits)
		exp := Experiment{Qubits: k, Shots: j.cfg.Shots, Noise: j.cfg.Noise}
		counts, err := run(ctx, j.backend, exp)
		if err != nil {
			return nil, err
		}
		best, ok := counts.MostFrequent()
		if !ok {
			return nil, errs.EmptyResult("no outcome in counts")
		}
		bits, err := ParseBits(best.Bits)
		if err != nil {
			return nil, errs.SourceUnavailable("malformed outcome", err)
		}
		out = append(out, bits...)
		left -= k
	}
	return out, nil
}
