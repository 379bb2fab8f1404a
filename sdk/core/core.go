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

// Package core 提供本地量子模擬器所需的古典亂數核心。
//
// 注意：這裡的 PRNG 只負責「模擬」量測塌縮與雜訊事件，本身不是熵源；
// 對外的隨機數一律經過 entropy 與 Sampler 取得。
package core

import (
	"strings"

	"github.com/zintix-labs/qrnglab/errs"
)

// PRNG 定義 Core 所需的亂數來源，需同時支援取樣與狀態保存/還原。
type PRNG interface {
	RAND
	Restorable
}

// Restorable 定義可快照與還原的狀態介面。
type Restorable interface {
	// Snapshot 回傳可用於還原的序列化狀態。
	Snapshot() ([]byte, error)
	// Restore 依序列化狀態還原 PRNG 內部狀態。
	Restore([]byte) error
}

// RAND 定義核心亂數取樣能力。
//
// 同時要求 Uint64 / Float64 / UintN / IntN，讓 32-bit 與 64-bit 原生輸出的實作
// 各自用最合適的 bounded 策略與浮點精度，而不是全部退化成「先產 uint64 再裁切」。
type RAND interface {
	// Uint64 回傳非負 uint64 亂數。
	Uint64() uint64
	// Float64 回傳 [0,1) 的浮點亂數。
	Float64() float64
	// UintN 回傳 [0,max) 的 uint 亂數，若 max == 0 回傳 0。
	UintN(uint) uint
	// IntN 回傳 [0,max) 的 int 亂數，若 max <= 0 回傳 -1。
	IntN(int) int
}

// PRNGFactory 以 seed 建立 PRNG。
//
// 合約：同一實作、同一版本下 New(seed) 必須是決定性的。
// 模擬器的每台 Device 都由 Lab 的 baseSeed 派生子 seed，重播時才能得到相同的量測序列。
type PRNGFactory interface {
	New(int64) PRNG
}

// PCG64Factory 預設工廠
type PCG64Factory struct{}

func (PCG64Factory) New(seed int64) PRNG {
	return newPCG64WithSeed(seed)
}

// PCG32Factory 32-bit 輸出版本，Float64 只有 32-bit 精度。
type PCG32Factory struct{}

func (PCG32Factory) New(seed int64) PRNG {
	return newPCG32WithSeed(seed)
}

func Default() PRNGFactory {
	return PCG64Factory{}
}

// FactoryByName 依名稱取得工廠：""/"pcg64" 或 "pcg32"。
func FactoryByName(name string) (PRNGFactory, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "pcg64":
		return PCG64Factory{}, nil
	case "pcg32":
		return PCG32Factory{}, nil
	default:
		return nil, errs.InvalidArgument("unknown prng %q: want pcg64|pcg32", name)
	}
}

// Core 封裝 PRNG，並提供模擬器常用的取樣工具。
type Core struct {
	PRNG
}

// New 允許使用外部自實現的 PRNG 建立 Core。
func New(rng PRNG) *Core {
	return &Core{rng}
}

// Bernoulli 以機率 p 回傳 true。p <= 0 永遠 false，p >= 1 永遠 true（不消耗亂數）。
func (c *Core) Bernoulli(p float64) bool {
	if p <= 0 {
		return false
	}
	if p >= 1 {
		return true
	}
	return c.Float64() < p
}

// Pauli 均勻回傳 1(X) / 2(Y) / 3(Z)，供去極化通道插入非單位 Pauli 錯誤。
func (c *Core) Pauli() uint8 {
	return uint8(c.IntN(3)) + 1
}
