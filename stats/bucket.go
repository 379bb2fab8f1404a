package stats

import (
	"fmt"

	"github.com/zintix-labs/qrnglab/errs"
)

// MaxExactBuckets 範圍內的值不超過這個數量時，每個值各自一格。
const MaxExactBuckets = 1024

// Buckets
//
// 用來快速定位取樣值 -> 直方圖位置 O(1)
//   - span <= MaxExactBuckets：每個值一格
//   - 否則切成最多 MaxExactBuckets 個等寬區間，最後一格可能較窄
type Buckets struct {
	Min   int64
	Span  uint64 // 0 代表 2^64（完整 int64 範圍）
	Width uint64 // 每格涵蓋幾個值
	Count int
}

// NewBuckets 建立 [min, max] 的格位配置
func NewBuckets(min, max int64) (*Buckets, error) {
	if max < min {
		return nil, errs.InvalidRange("max (%d) < min (%d)", max, min)
	}
	b := &Buckets{Min: min, Span: uint64(max) - uint64(min) + 1}
	switch {
	case b.Span != 0 && b.Span <= MaxExactBuckets:
		b.Width = 1
		b.Count = int(b.Span)
	case b.Span == 0:
		b.Width = 1 << 54 // 2^64 / 1024
		b.Count = MaxExactBuckets
	default:
		b.Width = (b.Span-1)/MaxExactBuckets + 1
		b.Count = int((b.Span-1)/b.Width + 1)
	}
	return b, nil
}

// Offset v 相對 Min 的位移，落在 [0, Span)
func (b *Buckets) Offset(v int64) uint64 {
	return uint64(v) - uint64(b.Min)
}

// Index 取樣值所屬格位；超出範圍回傳 -1。
func (b *Buckets) Index(v int64) int {
	off := b.Offset(v)
	if b.Span != 0 && off >= b.Span {
		return -1
	}
	return int(off / b.Width)
}

// Size 第 i 格涵蓋的值數量
func (b *Buckets) Size(i int) float64 {
	lo := uint64(i) * b.Width
	if b.Span == 0 {
		return float64(b.Width)
	}
	hi := min(lo+b.Width, b.Span)
	return float64(hi - lo)
}

// SpanFloat 以浮點表示的 span
func (b *Buckets) SpanFloat() float64 {
	if b.Span == 0 {
		return 1 << 64
	}
	return float64(b.Span)
}

// Labels 每格的顯示字串：單值格為 "v"，區間格為 "[lo,hi]"。
func (b *Buckets) Labels() []string {
	out := make([]string, b.Count)
	for i := range out {
		lo := int64(uint64(b.Min) + uint64(i)*b.Width)
		if b.Width == 1 {
			out[i] = fmt.Sprintf("%d", lo)
			continue
		}
		hi := int64(uint64(lo) + uint64(b.Size(i)) - 1)
		out[i] = fmt.Sprintf("[%d,%d]", lo, hi)
	}
	return out
}

// BitLength offset 需要幾個位元（與 Sampler 的最小位元長度一致）
func (b *Buckets) BitLength() int {
	if b.Span == 0 {
		return 64
	}
	n := 0
	for (b.Span-1)>>n != 0 {
		n++
	}
	return n
}

// ExpectedOnes offset 在 [0, Span) 均勻分布時，第 k 個位元（LSB 為 0）為 1 的機率。
func (b *Buckets) ExpectedOnes(k int) float64 {
	if b.Span == 0 {
		return 0.5
	}
	span := b.Span
	half := uint64(1) << k
	var ones uint64
	if k >= 63 {
		// 週期 2^64 > span，只有 offset >= 2^63 的部分為 1
		if span > half {
			ones = span - half
		}
	} else {
		period := half << 1
		ones = (span / period) * half
		if rem := span % period; rem > half {
			ones += rem - half
		}
	}
	return float64(ones) / float64(span)
}
