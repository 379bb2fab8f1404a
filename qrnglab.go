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

// Package qrnglab 提供量子亂數實驗室的「組裝入口（assembler）」。
//
// 一次請求的資料流：
//  1. Backend：執行 n 個 qubit 各一道 Hadamard、量測 shots 次的實驗，回傳結果計數（本地 sdk/qsim 或遠端服務）。
//  2. Source：把計數轉成位元（Majority 一次一個位元，Joint 一次多個位元）。
//  3. Sampler：以拒絕取樣把位元映射成 [min, max] 的整數，或指定精度的浮點數。
//
// Lab 把 Config、ProfileSet 與 BackendFactory 組在一起，負責建出 Device / DevicePool / Bench。
//
//	lab, _ := qrnglab.New(qrnglab.Config{Noise: "almaden"})
//	d, _ := lab.NewDevice()
//	v, _ := d.Int(ctx, 1, 6)
package qrnglab

import (
	"crypto/rand"
	"log/slog"
	"math"
	"math/big"

	"github.com/zintix-labs/qrnglab/errs"
	"github.com/zintix-labs/qrnglab/sdk/qsim"
	"github.com/zintix-labs/qrnglab/sdk/qsim/profiles"
)

// Lab 組裝器：持有已驗證的 Config、後端工廠與 seed 派生器。
//
// 同一個 Lab 建出的裝置共用同一份 ProfileSet；各裝置的 seed 由主 seed 派生，
// 因此只要主 seed 相同，建出來的第 k 台裝置就相同。
type Lab struct {
	cfg      Config
	bf       BackendFactory
	profiles *qsim.ProfileSet
	log      *slog.Logger
	seeds    *seedMaker
}

// LabOption 調整 Lab 的組裝方式
type LabOption func(*labOptions)

type labOptions struct {
	bf       BackendFactory
	profiles *qsim.ProfileSet
	log      *slog.Logger
}

// UseBackends 直接指定後端工廠（測試或自訂後端），忽略 Config.Backend。
func UseBackends(bf BackendFactory) LabOption {
	return func(o *labOptions) { o.bf = bf }
}

// UseProfiles 指定噪聲設定集；未指定時使用內建的 profiles.FS。
func UseProfiles(ps *qsim.ProfileSet) LabOption {
	return func(o *labOptions) { o.profiles = ps }
}

// UseLogger 指定 logger；未指定時丟棄所有日誌。
func UseLogger(l *slog.Logger) LabOption {
	return func(o *labOptions) { o.log = l }
}

// New 驗證 Config 並組裝 Lab。Config.Seed 為 0 時由 crypto/rand 產生主 seed。
func New(cfg Config, opts ...LabOption) (*Lab, error) {
	o := &labOptions{}
	for _, opt := range opts {
		opt(o)
	}
	if o.log == nil {
		o.log = slog.New(slog.DiscardHandler)
	}
	if err := cfg.Valid(); err != nil {
		return nil, err
	}
	if o.profiles == nil {
		ps, err := qsim.NewProfileSet(profiles.FS)
		if err != nil {
			return nil, err
		}
		o.profiles = ps
	}
	if o.bf == nil {
		bf, err := cfg.Factory(o.profiles, o.log)
		if err != nil {
			return nil, err
		}
		o.bf = bf
	}
	if cfg.Seed == 0 {
		cfg.Seed = randSeed()
	}
	return &Lab{
		cfg:      cfg,
		bf:       o.bf,
		profiles: o.profiles,
		log:      o.log,
		seeds:    newSeedMaker(cfg.Seed),
	}, nil
}

func randSeed() int64 {
	seed, err := rand.Int(rand.Reader, big.NewInt(math.MaxInt64))
	if err != nil || seed.Int64() == 0 {
		return 1
	}
	return seed.Int64()
}

// Config 回傳補完預設值後的設定（含實際使用的主 seed）
func (l *Lab) Config() Config {
	return l.cfg
}

// Profiles 本地模擬器可用的噪聲設定
func (l *Lab) Profiles() *qsim.ProfileSet {
	return l.profiles
}

func (l *Lab) samplerOptions() []SamplerOption {
	return l.cfg.samplerOptions(l.log)
}

// NewDevice 以派生 seed 建立一台 Device。
func (l *Lab) NewDevice() (*Device, error) {
	return newDevice(l.cfg, l.bf, l.seeds.next(), l.samplerOptions())
}

// NewDeviceWithSeed 與 NewDevice 相同，但由呼叫端指定 seed（本地後端可重現）。
func (l *Lab) NewDeviceWithSeed(seed int64) (*Device, error) {
	return newDevice(l.cfg, l.bf, seed, l.samplerOptions())
}

// NewPool 建立 n 台裝置的 DevicePool，供對外服務併發取用。
func (l *Lab) NewPool(n int) (*DevicePool, error) {
	if n < 1 {
		return nil, errs.InvalidArgument("pool size must be >= 1, got %d", n)
	}
	return newDevicePool(n, l.cfg, l.bf, l.samplerOptions(), l.seeds.next())
}

// NewBench 以派生 seed 建立 Bench
func (l *Lab) NewBench() (*Bench, error) {
	return newBenchWithSeed(l.cfg, l.bf, l.samplerOptions(), l.seeds.next())
}

// NewBenchWithSeed 單線 Run 的結果只由 seed 決定（本地後端）。
func (l *Lab) NewBenchWithSeed(seed int64) (*Bench, error) {
	return newBenchWithSeed(l.cfg, l.bf, l.samplerOptions(), seed)
}
