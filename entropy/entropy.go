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

// Package entropy 把量子（或任何機率性）後端包裝成統一的位元來源。
//
// 分兩層：
//   - Backend：只會做一件事，「對 N 個 qubit 各上一個 H 閘、量測、重複 Shots 次，回報計數」。
//   - Source：把 Backend 的計數轉成位元。有多種可互換的策略（Majority / Joint），
//     Sampler 只依賴 Source 介面，換策略不需要改 Sampler。
//
// 併發：Source 是否可重入完全取決於其 Backend；本地模擬器持有 PRNG 狀態，不可重入。
package entropy

import (
	"context"
	"strings"

	"github.com/zintix-labs/qrnglab/errs"
)

const (
	DefaultShots     = 10000
	DefaultMaxQubits = 16
)

// Bit 單次量測塌縮的結果，只會是 0 或 1。
type Bit uint8

// Experiment 一次 two-outcome 實驗的描述。
type Experiment struct {
	Qubits int    `json:"qubits"`
	Shots  int    `json:"shots"`
	Noise  string `json:"noise,omitempty"` // 雜訊設定名稱，對本包不透明，原樣交給 Backend
}

// Backend 量子（熵）後端。
//
// Run 回傳的 Counts 以「首次觀測到的順序」排列，位元字串為 qubit n-1 ... 0。
// 無法連線或回報無資料時應回傳 errs.KindSourceUnavailable 類錯誤。
type Backend interface {
	Run(ctx context.Context, exp Experiment) (Counts, error)
}

// BackendFunc 讓一般函數滿足 Backend。
type BackendFunc func(ctx context.Context, exp Experiment) (Counts, error)

func (f BackendFunc) Run(ctx context.Context, exp Experiment) (Counts, error) {
	return f(ctx, exp)
}

// Source 位元來源。
type Source interface {
	// SampleBit 回傳一個位元。
	SampleBit(ctx context.Context) (Bit, error)
	// SampleBits 回傳 n 個位元（大端序，index 0 為最高位）。n == 0 回傳空切片且不觸發實驗。
	SampleBits(ctx context.Context, n int) ([]Bit, error)
}

// Strategy 取樣策略名稱
type Strategy string

const (
	// StrategyMajority 每個位元各自跑一次單 qubit 實驗取多數決（單 qubit 模式）。
	StrategyMajority Strategy = "majority"
	// StrategyJoint n 個 qubit 一次實驗，取出現最多次的聯合結果（多 qubit 模式）。
	StrategyJoint Strategy = "joint"
)

// ParseStrategy 解析策略名稱，空字串為 StrategyMajority。
func ParseStrategy(s string) (Strategy, error) {
	switch Strategy(strings.ToLower(strings.TrimSpace(s))) {
	case "", StrategyMajority, "single":
		return StrategyMajority, nil
	case StrategyJoint, "multi":
		return StrategyJoint, nil
	default:
		return "", errs.InvalidArgument("unknown strategy %q: want majority|joint", s)
	}
}

// Config Source 的建構參數。
type Config struct {
	Shots     int      // 每次實驗重複次數，<=0 使用 DefaultShots
	Noise     string   // 雜訊設定名稱，原樣傳給 Backend
	Strategy  Strategy // 取樣策略
	MaxQubits int      // Joint 模式單次實驗最多 qubit 數，<=0 使用 DefaultMaxQubits
}

// Valid 補上預設值並檢查策略。
func (c *Config) Valid() error {
	if c.Shots <= 0 {
		c.Shots = DefaultShots
	}
	if c.MaxQubits <= 0 {
		c.MaxQubits = DefaultMaxQubits
	}
	st, err := ParseStrategy(string(c.Strategy))
	if err != nil {
		return err
	}
	c.Strategy = st
	return nil
}

// NewSource 依 cfg.Strategy 建立對應的 Source。
func NewSource(b Backend, cfg Config) (Source, error) {
	if b == nil {
		return nil, errs.SourceUnavailable("backend is required", nil)
	}
	if err := cfg.Valid(); err != nil {
		return nil, err
	}
	switch cfg.Strategy {
	case StrategyJoint:
		return &Joint{backend: b, cfg: cfg}, nil
	default:
		return &Majority{backend: b, cfg: cfg}, nil
	}
}

// run 執行實驗並把 Backend 的各種失敗一律收斂為 SourceUnavailable。
func run(ctx context.Context, b Backend, exp Experiment) (Counts, error) {
	if err := ctx.Err(); err != nil {
		return nil, errs.Wrap(err, "experiment canceled")
	}
	counts, err := b.Run(ctx, exp)
	if err != nil {
		if ctx.Err() != nil {
			return nil, errs.Wrap(err, "experiment canceled")
		}
		if errs.KindOf(err) == errs.KindSourceUnavailable || errs.KindOf(err) == errs.KindEmptyResult {
			return nil, err
		}
		return nil, errs.SourceUnavailable("backend run failed", err)
	}
	if counts.Total() == 0 {
		return nil, errs.EmptyResult("experiment returned zero counts")
	}
	if err := counts.validate(exp.Qubits); err != nil {
		return nil, err
	}
	return counts, nil
}
