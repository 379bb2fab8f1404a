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
	"log/slog"
	"math"
	"math/bits"

	"github.com/zintix-labs/qrnglab/entropy"
	"github.com/zintix-labs/qrnglab/errs"
)

const (
	// DefaultMaxRejects 拒絕取樣的保險上限。每輪接受率 >= 1/2，正常來源不可能用完。
	DefaultMaxRejects = 10000
	// MaxFloatPrecision float64 尾數可以完整表示的位元數
	MaxFloatPrecision = 53
	// MaxBits 單次 Bits 請求上限
	MaxBits = 1 << 16
)

// Sampler 把 entropy.Source 的位元轉成指定範圍內的均勻整數 / 浮點數。
//
// Int 使用最小位元長度 + 拒絕取樣，沒有取模偏差；Float 是一次取 precision 個位元的二進位小數。
// Sampler 本身不持有跨呼叫狀態，是否可併發取決於底下的 Source。
type Sampler struct {
	src        entropy.Source
	maxRejects int
	perBit     bool
	log        *slog.Logger
}

type SamplerOption func(*Sampler)

// WithMaxRejects 設定拒絕取樣上限，<=0 使用 DefaultMaxRejects。
func WithMaxRejects(n int) SamplerOption {
	return func(s *Sampler) {
		if n > 0 {
			s.maxRejects = n
		}
	}
}

// WithPerBitCalls 每個位元各呼叫一次 SampleBit，而不是一次 SampleBits(n)。
func WithPerBitCalls() SamplerOption {
	return func(s *Sampler) { s.perBit = true }
}

// WithLogger 設定 logger，預設丟棄。
func WithLogger(l *slog.Logger) SamplerOption {
	return func(s *Sampler) {
		if l != nil {
			s.log = l
		}
	}
}

// NewSampler 建立 Sampler；src 為 nil 時回傳 SourceUnavailable。
func NewSampler(src entropy.Source, opts ...SamplerOption) (*Sampler, error) {
	if src == nil {
		return nil, errs.SourceUnavailable("entropy source is required", nil)
	}
	s := &Sampler{
		src:        src,
		maxRejects: DefaultMaxRejects,
		log:        slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// BitLength 覆蓋 span 所需的最小位元數 n（2^n >= span）。
// span == 0 代表 2^64（完整 int64 範圍），回傳 64。
func BitLength(span uint64) int {
	if span == 0 {
		return 64
	}
	return bits.Len64(span - 1)
}

// Int 回傳 [min, max] 內的均勻整數。
//
// max < min 在取用任何熵之前就回傳 InvalidRange；min == max 直接回傳 min，不觸發熵源。
func (s *Sampler) Int(ctx context.Context, min, max int64) (int64, error) {
	if max < min {
		return 0, errs.InvalidRange("max (%d) < min (%d)", max, min)
	}
	// 以 uint64 計算，完整 int64 範圍時 span 溢位為 0
	span := uint64(max) - uint64(min) + 1
	if span == 1 {
		return min, nil
	}
	n := BitLength(span)
	for i := 0; i < s.maxRejects; i++ {
		b, err := s.bits(ctx, n)
		if err != nil {
			return 0, err
		}
		cand := entropy.Uint64(b)
		if span == 0 || cand < span {
			return int64(uint64(min) + cand), nil
		}
		s.log.Debug("sampler.reject",
			slog.Uint64("candidate", cand),
			slog.Uint64("span", span),
			slog.Int("attempt", i+1),
		)
	}
	s.log.Error("sampler.cap_exceeded",
		slog.Int64("min", min),
		slog.Int64("max", max),
		slog.Int("max_rejects", s.maxRejects),
	)
	return 0, errs.SourceUnavailable(fmt.Sprintf("no in-range candidate after %d attempts", s.maxRejects), nil)
}

// Float 回傳 [min, max) 內、間距 (max-min)/2^precision 的浮點數。
//
// 只做一次 precision 位元的請求，沒有拒絕；f 最大為 1-2^-precision，因此 max 本身取不到。
func (s *Sampler) Float(ctx context.Context, min, max float64, precision int) (float64, error) {
	if precision < 1 || precision > MaxFloatPrecision {
		return 0, errs.InvalidArgument("precision must be in [1,%d], got %d", MaxFloatPrecision, precision)
	}
	if !finite(min) || !finite(max) {
		return 0, errs.InvalidRange("bounds must be finite, got [%v, %v)", min, max)
	}
	if max < min {
		return 0, errs.InvalidRange("max (%v) < min (%v)", max, min)
	}
	b, err := s.bits(ctx, precision)
	if err != nil {
		return 0, err
	}
	// Σ bit_i·2^-(i+1) 等於把位元當整數再除以 2^precision（precision <= 53 時精確）
	f := float64(entropy.Uint64(b)) / float64(uint64(1)<<precision)
	width := max - min
	if math.IsInf(width, 0) {
		return min*(1-f) + max*f, nil
	}
	return min + width*f, nil
}

// Bits 直接回傳 n 個熵位元。
func (s *Sampler) Bits(ctx context.Context, n int) ([]entropy.Bit, error) {
	if n < 0 || n > MaxBits {
		return nil, errs.InvalidArgument("bit count must be in [0,%d], got %d", MaxBits, n)
	}
	return s.bits(ctx, n)
}

// Ints 連續取 count 個 [min, max] 整數。
func (s *Sampler) Ints(ctx context.Context, min, max int64, count int) ([]int64, error) {
	if count < 0 {
		return nil, errs.InvalidArgument("count must be >= 0, got %d", count)
	}
	if max < min {
		return nil, errs.InvalidRange("max (%d) < min (%d)", max, min)
	}
	out := make([]int64, count)
	for i := range out {
		v, err := s.Int(ctx, min, max)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

// Floats 連續取 count 個 [min, max) 浮點數。
func (s *Sampler) Floats(ctx context.Context, min, max float64, precision, count int) ([]float64, error) {
	if count < 0 {
		return nil, errs.InvalidArgument("count must be >= 0, got %d", count)
	}
	out := make([]float64, count)
	for i := range out {
		v, err := s.Float(ctx, min, max, precision)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

func (s *Sampler) bits(ctx context.Context, n int) ([]entropy.Bit, error) {
	if n == 0 {
		return []entropy.Bit{}, nil
	}
	if !s.perBit {
		b, err := s.src.SampleBits(ctx, n)
		if err != nil {
			return nil, err
		}
		if len(b) != n {
			return nil, errs.SourceUnavailable(fmt.Sprintf("source returned %d bits, want %d", len(b), n), nil)
		}
		return b, nil
	}
	out := make([]entropy.Bit, n)
	for i := range out {
		b, err := s.src.SampleBit(ctx)
		if err != nil {
			return nil, err
		}
		out[i] = b & 1
	}
	return out, nil
}

func finite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}
