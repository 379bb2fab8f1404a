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
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/zintix-labs/qrnglab/entropy"
	"github.com/zintix-labs/qrnglab/errs"
)

const brokenBacklog = 100

// DevicePool 管理一組 Device，讓多個 goroutine 併發取用不可重入的後端。
//
// 透過兩個通道管理裝置生命週期：
//  1. pool：健康可用的裝置，Do() 借出 / 歸還。
//  2. broken：發生 panic 或狀態不可信錯誤的裝置，送往此處並立即補上一台新裝置維持容量。
//
// 熵源暫時不可用（SourceUnavailable）不算壞機：那是後端的問題，換一台裝置也一樣，
// 因此只回傳錯誤、歸還裝置，不補機也不關池。
type DevicePool struct {
	cfg           Config
	bf            BackendFactory
	opts          []SamplerOption
	seeds         *seedMaker
	pool          chan *Device
	broken        chan *Device
	done          chan struct{}
	closeOnce     sync.Once
	poolsize      int
	rebuild       atomic.Int32
	inflight      atomic.Int32
	served        atomic.Int64 // 成功完成的借用次數
	panics        atomic.Int32
	fatals        atomic.Int32
	unavailable   atomic.Int32 // SourceUnavailable 次數
	closeReason   atomic.Value // string
	closeInflight atomic.Int32
	closeAvail    atomic.Int32
	closeBroken   atomic.Int32
}

// newDevicePool 預先建立 n 台裝置（至少 1 台）放入 pool。
func newDevicePool(n int, cfg Config, bf BackendFactory, opts []SamplerOption, seed int64) (*DevicePool, error) {
	n = max(1, n)
	p := &DevicePool{
		cfg:      cfg,
		bf:       bf,
		opts:     opts,
		seeds:    newSeedMaker(seed),
		pool:     make(chan *Device, n),
		broken:   make(chan *Device, brokenBacklog),
		done:     make(chan struct{}),
		poolsize: n,
	}
	p.closeReason.Store("")
	p.closeInflight.Store(-1)
	p.closeAvail.Store(-1)
	p.closeBroken.Store(-1)

	for i := 0; i < n; i++ {
		d, err := newDevice(cfg, bf, p.seeds.next(), opts)
		if err != nil {
			return nil, err
		}
		p.pool <- d
	}
	return p, nil
}

// Close 進入關閉狀態，之後的 Do() 直接回錯誤。可重複呼叫。
func (p *DevicePool) Close() {
	p.closeWithReason("closed")
}

func (p *DevicePool) Closed() bool {
	select {
	case <-p.done:
		return true
	default:
		return false
	}
}

// closeWithReason reason 只會被寫入一次
func (p *DevicePool) closeWithReason(reason string) {
	p.closeOnce.Do(func() {
		if reason == "" {
			reason = "closed"
		}
		p.closeReason.Store(reason)
		p.closeInflight.Store(p.inflight.Load())
		p.closeAvail.Store(int32(len(p.pool)))
		p.closeBroken.Store(int32(len(p.broken)))
		close(p.done)
	})
}

// isBrokenErr 錯誤是否代表「裝置狀態不可信」。
//
//   - 參數錯誤（Warn）不淘汰裝置
//   - SourceUnavailable / EmptyResult 是熵源的狀態，不是裝置的
//   - ctx 取消 / 逾時不淘汰裝置
//   - 其他未分類的 Fatal 視為裝置壞掉
func isBrokenErr(err error) bool {
	e, ok := err.(*errs.E)
	if !ok || e.ErrLv != errs.Fatal || e.Kind != errs.KindNone {
		return false
	}
	return !errors.Is(e, context.Canceled) && !errors.Is(e, context.DeadlineExceeded)
}

// Do 借出一台裝置執行 fn，結束後歸還（或淘汰補機）。
func (p *DevicePool) Do(ctx context.Context, fn func(*Device) error) (err error) {
	var d *Device
	select {
	case <-p.done:
		return errs.NewFatal("device pool closed: " + p.ClosedReason())
	case <-ctx.Done():
		return errs.Wrap(ctx.Err(), "device pool borrow canceled")
	case d = <-p.pool:
		p.inflight.Add(1)
	}
	if d == nil {
		return errs.NewFatal("device pool got nil device")
	}

	var isPanic bool
	defer func() {
		p.inflight.Add(-1)
		if r := recover(); r != nil {
			isPanic = true
			p.panics.Add(1)
			err = errs.NewFatal(fmt.Sprintf("device (seed %d) panic: %v", d.seed, r))
		}
		if err == nil {
			p.served.Add(1)
		} else if errs.KindOf(err) == errs.KindSourceUnavailable || errs.KindOf(err) == errs.KindEmptyResult {
			p.unavailable.Add(1)
		}

		if p.Closed() {
			return
		}

		if isPanic || isBrokenErr(err) {
			if !isPanic {
				p.fatals.Add(1)
			}
			select {
			case p.broken <- d:
			default:
				p.closeWithReason("overwhelmed_by_failures")
				return
			}
			nd, buildErr := newDevice(p.cfg, p.bf, p.seeds.next(), p.opts)
			p.rebuild.Add(1)
			if buildErr != nil {
				err = errs.Wrap(buildErr, "device rebuild failed")
				p.closeWithReason("rebuild_failed")
				return
			}
			select {
			case <-p.done:
			case p.pool <- nd:
			}
			return
		}

		select {
		case <-p.done:
		case p.pool <- d:
		}
	}()

	return fn(d)
}

func (p *DevicePool) Int(ctx context.Context, min, max int64) (v int64, err error) {
	err = p.Do(ctx, func(d *Device) error {
		v, err = d.Int(ctx, min, max)
		return err
	})
	return v, err
}

func (p *DevicePool) Float(ctx context.Context, min, max float64, precision int) (v float64, err error) {
	err = p.Do(ctx, func(d *Device) error {
		v, err = d.Float(ctx, min, max, precision)
		return err
	})
	return v, err
}

func (p *DevicePool) Ints(ctx context.Context, min, max int64, count int) (v []int64, err error) {
	err = p.Do(ctx, func(d *Device) error {
		v, err = d.Ints(ctx, min, max, count)
		return err
	})
	return v, err
}

func (p *DevicePool) Floats(ctx context.Context, min, max float64, precision, count int) (v []float64, err error) {
	err = p.Do(ctx, func(d *Device) error {
		v, err = d.Floats(ctx, min, max, precision, count)
		return err
	})
	return v, err
}

func (p *DevicePool) Bits(ctx context.Context, n int) (v []entropy.Bit, err error) {
	err = p.Do(ctx, func(d *Device) error {
		v, err = d.Bits(ctx, n)
		return err
	})
	return v, err
}

func (p *DevicePool) Experiment(ctx context.Context, exp entropy.Experiment) (v entropy.Counts, err error) {
	err = p.Do(ctx, func(d *Device) error {
		v, err = d.Experiment(ctx, exp)
		return err
	})
	return v, err
}

func (p *DevicePool) PoolSize() int { return p.poolsize }

func (p *DevicePool) Inflight() int { return int(p.inflight.Load()) }

func (p *DevicePool) Available() int { return len(p.pool) }

func (p *DevicePool) ClosedReason() string {
	if v := p.closeReason.Load(); v != nil {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return ""
}

// DevicePoolMetrics 拉取式觀測快照。
//
// Available / BrokenBacklog 來自 len(chan)，高併發下是近似值。
// Close* 欄位只在關閉當下寫入一次（-1 表示尚未關閉）。
type DevicePoolMetrics struct {
	Backend       BackendKind `json:"backend"`
	Strategy      string      `json:"strategy"`
	Noise         string      `json:"noise"`
	PoolSize      int         `json:"pool_size"`
	Available     int         `json:"available"`
	Inflight      int         `json:"inflight"`
	BrokenBacklog int         `json:"broken_backlog"`
	Served        int64       `json:"served"`
	Rebuild       int         `json:"rebuild"`
	Panics        int         `json:"panics"`
	Fatals        int         `json:"fatals"`
	Unavailable   int         `json:"unavailable"`
	Closed        bool        `json:"closed"`
	CloseReason   string      `json:"close_reason"`
	CloseInflight int         `json:"close_inflight"`
	CloseAvail    int         `json:"close_avail"`
	CloseBroken   int         `json:"close_broken"`
}

func (p *DevicePool) Metrics() DevicePoolMetrics {
	return DevicePoolMetrics{
		Backend:       p.cfg.Backend,
		Strategy:      string(p.cfg.Strategy),
		Noise:         p.cfg.Noise,
		PoolSize:      p.poolsize,
		Available:     len(p.pool),
		Inflight:      int(p.inflight.Load()),
		BrokenBacklog: len(p.broken),
		Served:        p.served.Load(),
		Rebuild:       int(p.rebuild.Load()),
		Panics:        int(p.panics.Load()),
		Fatals:        int(p.fatals.Load()),
		Unavailable:   int(p.unavailable.Load()),
		Closed:        p.Closed(),
		CloseReason:   p.ClosedReason(),
		CloseInflight: int(p.closeInflight.Load()),
		CloseAvail:    int(p.closeAvail.Load()),
		CloseBroken:   int(p.closeBroken.Load()),
	}
}
