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

package recorder

import (
	"github.com/zintix-labs/qrnglab/errs"
	"github.com/zintix-labs/qrnglab/stats"
)

// SampleRecorder 取樣紀錄員
//
// 負責紀錄 [Min, Max] 範圍的整數取樣，並透過 Done 輸出統計報表。
// 不可併發寫入；多 worker 各持一個，最後用 MergeSampleRecorder 合併。
type SampleRecorder struct {
	Source string
	Basic  *BasicRecord
	Dist   *DistRecord
	Bits   *BitRecord
}

// BasicRecord 基本資料紀錄（Welford 累積，避免大範圍時平方和失真）
type BasicRecord struct {
	Samples    int
	Mean       float64 // offset 的平均
	M2         float64 // offset 離均差平方和
	OutOfRange int
}

// DistRecord 直方圖
type DistRecord struct {
	Bucket  *stats.Buckets
	Collect []int
}

// BitRecord offset 每個位元出現 1 的次數（index 0 為 LSB）
type BitRecord struct {
	Ones []int
}

func NewSampleRecorder(source string, min, max int64) (*SampleRecorder, error) {
	b, err := stats.NewBuckets(min, max)
	if err != nil {
		return nil, err
	}
	return &SampleRecorder{
		Source: source,
		Basic:  new(BasicRecord),
		Dist:   &DistRecord{Bucket: b, Collect: make([]int, b.Count)},
		Bits:   &BitRecord{Ones: make([]int, b.BitLength())},
	}, nil
}

func MergeSampleRecorder(r []*SampleRecorder) (*SampleRecorder, error) {
	if len(r) == 0 {
		return nil, errs.NewFatal("merge sample record err : no recorder")
	}
	r0 := r[0]
	b0 := r0.Dist.Bucket
	s, err := NewSampleRecorder(r0.Source, b0.Min, int64(uint64(b0.Min)+b0.Span-1))
	if err != nil {
		return nil, err
	}
	for _, v := range r {
		if *v.Dist.Bucket != *b0 {
			return nil, errs.NewFatal("merge sample record err : different range")
		}
		s.Basic.merge(v.Basic)
		for i, c := range v.Dist.Collect {
			s.Dist.Collect[i] += c
		}
		for i, c := range v.Bits.Ones {
			s.Bits.Ones[i] += c
		}
	}
	return s, nil
}

// Record 紀錄一個取樣值；範圍外的值只計入 OutOfRange。
func (s *SampleRecorder) Record(v int64) {
	idx := s.Dist.Bucket.Index(v)
	if idx < 0 {
		s.Basic.OutOfRange++
		return
	}
	off := s.Dist.Bucket.Offset(v)
	s.recordBasic(float64(off))
	s.Dist.Collect[idx]++
	for k := range s.Bits.Ones {
		if off>>k&1 == 1 {
			s.Bits.Ones[k]++
		}
	}
}

func (s *SampleRecorder) Done() *stats.Report {
	b := s.Dist.Bucket
	collect := append([]int(nil), s.Dist.Collect...)
	ones := append([]int(nil), s.Bits.Ones...)
	mean := float64(b.Min) + s.Basic.Mean
	return stats.NewReport(s.Source, b, s.Basic.Samples, mean, s.Basic.M2, collect, ones, s.Basic.OutOfRange)
}

func (s *SampleRecorder) recordBasic(x float64) {
	r := s.Basic
	r.Samples++
	d := x - r.Mean
	r.Mean += d / float64(r.Samples)
	r.M2 += d * (x - r.Mean)
}

// merge Chan 等人的平行合併公式
func (r *BasicRecord) merge(o *BasicRecord) {
	r.OutOfRange += o.OutOfRange
	if o.Samples == 0 {
		return
	}
	if r.Samples == 0 {
		r.Samples, r.Mean, r.M2 = o.Samples, o.Mean, o.M2
		return
	}
	n := float64(r.Samples + o.Samples)
	d := o.Mean - r.Mean
	r.M2 += o.M2 + d*d*float64(r.Samples)*float64(o.Samples)/n
	r.Mean += d * float64(o.Samples) / n
	r.Samples += o.Samples
}
