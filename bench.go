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
	"fmt"
	"io"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cheggaaa/pb/v3"
	"github.com/zintix-labs/qrnglab/errs"
	"github.com/zintix-labs/qrnglab/recorder"
	"github.com/zintix-labs/qrnglab/stats"
)

const capPrepare int = 16

// Bench 大量取樣並檢驗輸出分布，可建立多台 Device 平行取樣。
type Bench struct {
	cfg       Config
	bf        BackendFactory
	opts      []SamplerOption
	initSeed  int64
	seedmaker *seedMaker
	dBuf      []*Device                  // 併發取樣裝置
	rBuf      []*recorder.SampleRecorder // 併發紀錄員
}

func newBenchWithSeed(cfg Config, bf BackendFactory, opts []SamplerOption, seed int64) (*Bench, error) {
	b := &Bench{
		cfg:       cfg,
		bf:        bf,
		opts:      opts,
		initSeed:  seed,
		seedmaker: newSeedMaker(seed),
		dBuf:      make([]*Device, 1, capPrepare),
		rBuf:      make([]*recorder.SampleRecorder, 0, capPrepare),
	}
	d, err := newDevice(cfg, bf, seed, opts)
	if err != nil {
		return nil, err
	}
	b.dBuf[0] = d
	return b, nil
}

// Seed 初始 seed；單線 Run 的第一台裝置就是用這個 seed 建立。
func (b *Bench) Seed() int64 {
	return b.initSeed
}

func (b *Bench) source() string {
	return fmt.Sprintf("%s/%s/%s", b.cfg.Backend, noiseName(b.cfg.Noise), b.cfg.Strategy)
}

func noiseName(n string) string {
	if n == "" {
		return "ideal"
	}
	return n
}

// Run 單線：以一台裝置連續取 samples 個 [min, max] 整數，回傳統計結果與用時。
func (b *Bench) Run(ctx context.Context, min, max int64, samples int, showpb bool) (*stats.Report, time.Duration, error) {
	return b.RunMP(ctx, min, max, samples, 1, showpb)
}

// RunMP 平行：samples 平均分給 workers 台裝置（各自的 seed 由 seedMaker 派生），合併統計後回傳。
//
// 任一 worker 出錯即取消其他 worker，回傳第一個錯誤。
func (b *Bench) RunMP(ctx context.Context, min, max int64, samples, workers int, showpb bool) (*stats.Report, time.Duration, error) {
	defer b.reset()
	if workers <= 0 {
		return nil, 0, errs.InvalidArgument("workers must > 0")
	}
	if samples < 1 {
		return nil, 0, errs.InvalidArgument("samples must > 0")
	}
	if max < min {
		return nil, 0, errs.InvalidRange("max (%d) < min (%d)", max, min)
	}
	workers = min2(workers, samples)
	for len(b.dBuf) < workers {
		d, err := newDevice(b.cfg, b.bf, b.seedmaker.next(), b.opts)
		if err != nil {
			return nil, 0, err
		}
		b.dBuf = append(b.dBuf, d)
	}
	for len(b.rBuf) < workers {
		r, err := recorder.NewSampleRecorder(b.source(), min, max)
		if err != nil {
			return nil, 0, err
		}
		b.rBuf = append(b.rBuf, r)
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var (
		wg       sync.WaitGroup
		firstErr atomic.Value
	)
	bar := pb.StartNew(samples)
	if !showpb {
		bar.SetWriter(io.Discard)
	}
	wg.Add(workers)
	for i := 0; i < workers; i++ {
		n := samples / workers
		if i < samples%workers {
			n++
		}
		go func(d *Device, r *recorder.SampleRecorder, n int) {
			defer wg.Done()
			for j := 0; j < n; j++ {
				v, err := d.Int(ctx, min, max)
				if err != nil {
					firstErr.CompareAndSwap(nil, err)
					cancel()
					return
				}
				r.Record(v)
				bar.Increment()
			}
		}(b.dBuf[i], b.rBuf[i], n)
	}
	wg.Wait()
	used := time.Since(bar.StartTime())
	bar.Finish()

	if v := firstErr.Load(); v != nil {
		return nil, used, v.(error)
	}

	rec, err := recorder.MergeSampleRecorder(b.rBuf[:workers])
	if err != nil {
		return nil, used, err
	}
	result := rec.Done()
	result.Done()
	return result, used, nil
}

func (b *Bench) reset() {
	b.rBuf = b.rBuf[:0]
}

func min2(a, b int) int {
	if a < b {
		return a
	}
	return b
}

const mask63 = uint64(1<<63) - 1

type seedMaker struct {
	state atomic.Uint64 // always in [0, 2^63)
}

func newSeedMaker(seed int64) *seedMaker {
	s := &seedMaker{}
	s.state.Store(uint64(seed) & mask63)
	return s
}

// next state 走全週期（不重複），再用可逆 mix63 打散。
//
// 可能被多 goroutine 同時呼叫（DevicePool 補機、Bench 擴充 worker），
// 以 CAS 迴圈確保每次呼叫取得唯一的下一個 state。
func (s *seedMaker) next() int64 {
	for {
		old := s.state.Load()
		next := (old*6364136223846793005 + 1442695040888963407) & mask63 // full-period LCG mod 2^63
		if s.state.CompareAndSwap(old, next) {
			return int64(mix63(next)) // 一定非負
		}
	}
}

// mix63：只用「可逆」的 bit 操作 + 乘奇數（mod 2^63）
func mix63(x uint64) uint64 {
	x &= mask63
	x ^= x >> 30
	x = (x * 0xBF58476D1CE4E5B9) & mask63
	x ^= x >> 27
	x = (x * 0x94D049BB133111EB) & mask63
	x ^= x >> 31
	return x & mask63
}
