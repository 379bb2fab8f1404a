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

package stats_test

import (
	"bytes"
	"encoding/json"
	"math"
	"strings"
	"testing"
	"time"

	"github.com/zintix-labs/qrnglab/stats"
)

// buildReport 以一串取樣值直接組出報表（不經過 recorder）
func buildReport(t *testing.T, min, max int64, values []int64) *stats.Report {
	t.Helper()
	b, err := stats.NewBuckets(min, max)
	if err != nil {
		t.Fatalf("buckets: %v", err)
	}
	collect := make([]int, b.Count)
	ones := make([]int, b.BitLength())
	var sum, sq float64
	for _, v := range values {
		collect[b.Index(v)]++
		off := b.Offset(v)
		for k := range ones {
			if off>>k&1 == 1 {
				ones[k]++
			}
		}
		sum += float64(v)
		sq += float64(v) * float64(v)
	}
	n := float64(len(values))
	mean := sum / n
	m2 := sq - n*mean*mean
	r := stats.NewReport("test", b, len(values), mean, m2, collect, ones, 0)
	r.Done()
	return r
}

func TestBucketsLayout(t *testing.T) {
	b, err := stats.NewBuckets(-3, 3)
	if err != nil {
		t.Fatalf("buckets: %v", err)
	}
	if b.Count != 7 || b.Width != 1 || b.Index(-3) != 0 || b.Index(3) != 6 || b.Index(4) != -1 {
		t.Fatalf("exact layout wrong: %+v", b)
	}
	if got := b.Labels()[0]; got != "-3" {
		t.Fatalf("label: %q", got)
	}

	b, _ = stats.NewBuckets(0, 2999)
	if b.Width != 3 || b.Count != 1000 {
		t.Fatalf("grouped layout wrong: %+v", b)
	}
	if b.Labels()[1] != "[3,5]" {
		t.Fatalf("grouped label: %q", b.Labels()[1])
	}

	b, _ = stats.NewBuckets(math.MinInt64, math.MaxInt64)
	if b.Span != 0 || b.Count != stats.MaxExactBuckets || b.BitLength() != 64 {
		t.Fatalf("full range layout wrong: %+v", b)
	}
	if b.Index(math.MaxInt64) != stats.MaxExactBuckets-1 || b.Index(math.MinInt64) != 0 {
		t.Fatalf("full range index wrong")
	}

	if _, err := stats.NewBuckets(5, 4); err == nil {
		t.Fatalf("expected invalid range")
	}
}

func TestExpectedOnes(t *testing.T) {
	// span=13: offsets 0..12
	b, _ := stats.NewBuckets(0, 12)
	for k := 0; k < b.BitLength(); k++ {
		ones := 0
		for v := 0; v < 13; v++ {
			if v>>k&1 == 1 {
				ones++
			}
		}
		want := float64(ones) / 13
		if got := b.ExpectedOnes(k); math.Abs(got-want) > 1e-12 {
			t.Fatalf("bit %d: got %v want %v", k, got, want)
		}
	}
	b, _ = stats.NewBuckets(0, 1)
	if b.ExpectedOnes(0) != 0.5 {
		t.Fatalf("coin bit must be 0.5")
	}
}

func TestReportUniform(t *testing.T) {
	// 每個值剛好出現 100 次：卡方 = 0，p = 1
	values := make([]int64, 0, 1000)
	for i := 0; i < 100; i++ {
		for v := int64(10); v < 20; v++ {
			values = append(values, v)
		}
	}
	r := buildReport(t, 10, 19, values)
	if r.Uniformity.ChiSquare != 0 || r.Uniformity.DoF != 9 || math.Abs(r.Uniformity.PValue-1) > 1e-9 {
		t.Fatalf("unexpected uniformity %+v", r.Uniformity)
	}
	if !r.Uniform(0.01) {
		t.Fatalf("perfectly flat histogram must pass")
	}
	if math.Abs(r.Summary.Mean-14.5) > 1e-9 || r.Summary.ExpectedMean != 14.5 {
		t.Fatalf("mean: %+v", r.Summary)
	}
	if r.Summary.MeanCI.Lo > 14.5 || r.Summary.MeanCI.Hi < 14.5 {
		t.Fatalf("mean CI must cover expectation: %+v", r.Summary.MeanCI)
	}
	if math.Abs(r.Summary.ExpectedStd-math.Sqrt(99.0/12)) > 1e-12 {
		t.Fatalf("expected std: %v", r.Summary.ExpectedStd)
	}
}

func TestReportBiased(t *testing.T) {
	// 全部落在 0：卡方很大、p 幾乎為 0、最低位元偏差
	values := make([]int64, 2000)
	r := buildReport(t, 0, 3, values)
	if r.Uniform(0.01) {
		t.Fatalf("constant stream must fail uniformity, p=%v", r.Uniformity.PValue)
	}
	if len(r.Bits.Outside) != 2 {
		t.Fatalf("both bits should be flagged, got %v", r.Bits.Outside)
	}
	if r.Bits.CI[0].Lo != 0 || r.Bits.Rate[0] != 0 {
		t.Fatalf("zero ones must give [0, hi] CI, got %+v", r.Bits.CI[0])
	}
}

func TestProportionCI(t *testing.T) {
	p, ci := stats.ProportionCI(500, 1000)
	if p != 0.5 || ci.Lo >= 0.5 || ci.Hi <= 0.5 || ci.Hi-ci.Lo > 0.07 {
		t.Fatalf("unexpected CI %v %+v", p, ci)
	}
	if _, ci := stats.ProportionCI(0, 0); ci.Lo != 0 || ci.Hi != 1 {
		t.Fatalf("empty sample must give [0,1]")
	}
}

func TestRenders(t *testing.T) {
	r := buildReport(t, 0, 3, []int64{0, 1, 2, 3, 3, 2, 1, 0})

	var buf bytes.Buffer
	if err := r.WriteWith(&buf, &stats.JsonReportRender{}); err != nil {
		t.Fatalf("json: %v", err)
	}
	var decoded map[string]any
	if err := json.Unmarshal(buf.Bytes(), &decoded); err != nil {
		t.Fatalf("json decode: %v", err)
	}
	for _, k := range []string{"Summary", "Uniformity", "Bits", "Dist"} {
		if _, ok := decoded[k]; !ok {
			t.Fatalf("json missing %s", k)
		}
	}

	buf.Reset()
	rd, err := stats.RenderByName("yaml")
	if err != nil {
		t.Fatalf("render by name: %v", err)
	}
	if err := r.WriteWith(&buf, rd); err != nil {
		t.Fatalf("yaml: %v", err)
	}
	if !strings.Contains(buf.String(), "collect: [2, 2, 2, 2]") {
		t.Fatalf("inner lists should be flow style:\n%s", buf.String())
	}

	if _, err := stats.RenderByName("xml"); err == nil {
		t.Fatalf("expected unknown format error")
	}

	buf.Reset()
	r.StdOut(&buf, 1500*time.Millisecond)
	if !strings.Contains(buf.String(), "samples/sec") || !strings.Contains(buf.String(), "Chi-Square") {
		t.Fatalf("table output missing fields:\n%s", buf.String())
	}
}
