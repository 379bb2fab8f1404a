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

package qrnglab

import (
	"context"
	"sync"

	"github.com/zintix-labs/qrnglab/entropy"
	"github.com/zintix-labs/qrnglab/errs"
	"github.com/zintix-labs/qrnglab/sdk/core"
)

// Device 一台「可對外提供亂數」的裝置：後端 + 取樣策略 + Sampler。
//
// 並發語意：
//   - 本地後端持有 PRNG 與分布表快取，同一台 Device 的呼叫以 mu 序列化。
//   - 要併發請建立多台 Device，或經由 DevicePool 借用。
//
// seed 是出生入口；要在任意時間點重現，請用 SnapshotCore / RestoreCore。
type Device struct {
	seed    int64
	backend entropy.Backend
	source  entropy.Source
	sampler *Sampler
	mu      sync.Mutex
}

func newDevice(cfg Config, bf BackendFactory, seed int64, opts []SamplerOption) (*Device, error) {
	backend, err := bf(seed)
	if err != nil {
		return nil, err
	}
	src, err := entropy.NewSource(backend, cfg.entropyConfig())
	if err != nil {
		return nil, err
	}
	smp, err := NewSampler(src, opts...)
	if err != nil {
		return nil, err
	}
	return &Device{seed: seed, backend: backend, source: src, sampler: smp}, nil
}

// Seed 出生 seed
func (d *Device) Seed() int64 {
	return d.seed
}

func (d *Device) Int(ctx context.Context, min, max int64) (int64, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.sampler.Int(ctx, min, max)
}

func (d *Device) Float(ctx context.Context, min, max float64, precision int) (float64, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.sampler.Float(ctx, min, max, precision)
}

func (d *Device) Bits(ctx context.Context, n int) ([]entropy.Bit, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.sampler.Bits(ctx, n)
}

func (d *Device) Ints(ctx context.Context, min, max int64, count int) ([]int64, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.sampler.Ints(ctx, min, max, count)
}

func (d *Device) Floats(ctx context.Context, min, max float64, precision, count int) ([]float64, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.sampler.Floats(ctx, min, max, precision, count)
}

// Experiment 直接把原始實驗交給後端，回傳計數（/v1/experiment 用）。
func (d *Device) Experiment(ctx context.Context, exp entropy.Experiment) (entropy.Counts, error) {
	if exp.Qubits < 1 {
		return nil, errs.InvalidArgument("qubits must be >= 1, got %d", exp.Qubits)
	}
	if exp.Shots < 1 {
		return nil, errs.InvalidArgument("shots must be >= 1, got %d", exp.Shots)
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.backend.Run(ctx, exp)
}

// SnapshotCore 匯出本地後端的 PRNG 狀態；遠端後端沒有可匯出的狀態。
func (d *Device) SnapshotCore() ([]byte, error) {
	r, ok := d.backend.(core.Restorable)
	if !ok {
		return nil, errs.InvalidArgument("backend has no restorable state")
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	return r.Snapshot()
}

// RestoreCore 把本地後端的 PRNG 設回某個快照
func (d *Device) RestoreCore(state []byte) error {
	r, ok := d.backend.(core.Restorable)
	if !ok {
		return errs.InvalidArgument("backend has no restorable state")
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	return r.Restore(state)
}
