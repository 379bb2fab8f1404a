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

package qrnglab_test

import (
	"context"
	"errors"
	"math"
	"sync"
	"testing"

	"github.com/zintix-labs/qrnglab"
	"github.com/zintix-labs/qrnglab/entropy"
	"github.com/zintix-labs/qrnglab/errs"
)

// scriptSource 依序循環回傳預先寫好的位元，並記錄被呼叫幾次。
type scriptSource struct {
	bits  []entropy.Bit
	pos   int
	calls int
	err   error
}

func (s *scriptSource) next() entropy.Bit {
	b := s.bits[s.pos%len(s.bits)]
	s.pos++
	return b
}

func (s *scriptSource) SampleBit(ctx context.Context) (entropy.Bit, error) {
	s.calls++
	if s.err != nil {
		return 0, s.err
	}
	return s.next(), nil
}

func (s *scriptSource) SampleBits(ctx context.Context, n int) ([]entropy.Bit, error) {
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	out := make([]entropy.Bit, n)
	for i := range out {
		out[i] = s.next()
	}
	return out, nil
}

func newScripted(t *testing.T, bits []entropy.Bit, opts ...qrnglab.SamplerOption) (*qrnglab.Sampler, *scriptSource) {
	t.Helper()
	src := &scriptSource{bits: bits}
	s, err := qrnglab.NewSampler(src, opts...)
	if err != nil {
		t.Fatalf("new sampler: %v", err)
	}
	return s, src
}

// newLocalLab 本地 ideal 模擬器；shots 取奇數避免多數決同票。
func newLocalLab(t *testing.T, cfg qrnglab.Config) *qrnglab.Lab {
	t.Helper()
	if cfg.Shots == 0 {
		cfg.Shots = 11
	}
	if cfg.Seed == 0 {
		cfg.Seed = 20251019
	}
	lab, err := qrnglab.New(cfg)
	if err != nil {
		t.Fatalf("new lab: %v", err)
	}
	return lab
}

func TestBitLength(t *testing.T) {
	cases := map[uint64]int{2: 1, 3: 2, 4: 2, 5: 3, 13: 4, 16: 4, 17: 5, 1 << 32: 32, 0: 64}
	for span, want := range cases {
		if got := qrnglab.BitLength(span); got != want {
			t.Fatalf("BitLength(%d)=%d want %d", span, got, want)
		}
	}
}

func TestIntScriptedBits(t *testing.T) {
	s, src := newScripted(t, []entropy.Bit{1, 0, 1, 1})
	v, err := s.Int(context.Background(), 0, 12)
	if err != nil {
		t.Fatalf("int: %v", err)
	}
	if v != 11 || src.calls != 1 {
		t.Fatalf("got %d with %d calls, want 11 with 1 call", v, src.calls)
	}
}

func TestIntSingleValueSkipsSource(t *testing.T) {
	s, src := newScripted(t, []entropy.Bit{1})
	v, err := s.Int(context.Background(), 5, 5)
	if err != nil || v != 5 {
		t.Fatalf("got %d, %v", v, err)
	}
	if src.calls != 0 {
		t.Fatalf("degenerate range must not touch the source, calls=%d", src.calls)
	}
}

func TestIntInvalidRange(t *testing.T) {
	s, src := newScripted(t, []entropy.Bit{1})
	_, err := s.Int(context.Background(), 10, 5)
	if !errors.Is(err, errs.ErrInvalidRange) {
		t.Fatalf("want invalid range, got %v", err)
	}
	if _, err := s.Ints(context.Background(), 10, 5, 3); !errors.Is(err, errs.ErrInvalidRange) {
		t.Fatalf("ints: want invalid range, got %v", err)
	}
	if src.calls != 0 {
		t.Fatalf("invalid range must be rejected before sampling, calls=%d", src.calls)
	}
}

func TestIntRejectsThenAccepts(t *testing.T) {
	// 1111 = 15 超出 [0,12] 被拒絕，0011 = 3 接受
	s, src := newScripted(t, []entropy.Bit{1, 1, 1, 1, 0, 0, 1, 1})
	v, err := s.Int(context.Background(), 0, 12)
	if err != nil || v != 3 || src.calls != 2 {
		t.Fatalf("got %d, %v after %d calls", v, err, src.calls)
	}
}

func TestIntRejectCap(t *testing.T) {
	s, src := newScripted(t, []entropy.Bit{1}, qrnglab.WithMaxRejects(5))
	_, err := s.Int(context.Background(), 0, 12)
	if !errors.Is(err, errs.ErrSourceUnavailable) {
		t.Fatalf("want source unavailable, got %v", err)
	}
	if src.calls != 5 {
		t.Fatalf("want exactly 5 attempts, got %d", src.calls)
	}
}

func TestIntFullRange(t *testing.T) {
	s, src := newScripted(t, []entropy.Bit{1, 0})
	v, err := s.Int(context.Background(), math.MinInt64, math.MaxInt64)
	if err != nil {
		t.Fatalf("full range: %v", err)
	}
	// min + 0xAAAA...AA（mod 2^64）
	if v != 0x2AAAAAAAAAAAAAAA || src.calls != 1 {
		t.Fatalf("got %#x after %d calls", v, src.calls)
	}
}

func TestIntPerBitCalls(t *testing.T) {
	s, src := newScripted(t, []entropy.Bit{0, 1, 1}, qrnglab.WithPerBitCalls())
	v, err := s.Int(context.Background(), 100, 107)
	if err != nil || v != 103 {
		t.Fatalf("got %d, %v", v, err)
	}
	if src.calls != 3 {
		t.Fatalf("per-bit mode must call once per bit, got %d", src.calls)
	}
}

func TestSourceErrorPropagates(t *testing.T) {
	s, src := newScripted(t, []entropy.Bit{0})
	src.err = errs.SourceUnavailable("offline", nil)
	if _, err := s.Int(context.Background(), 0, 9); !errors.Is(err, errs.ErrSourceUnavailable) {
		t.Fatalf("int: %v", err)
	}
	if _, err := s.Float(context.Background(), 0, 1, 8); !errors.Is(err, errs.ErrSourceUnavailable) {
		t.Fatalf("float: %v", err)
	}
	if _, err := qrnglab.NewSampler(nil); !errors.Is(err, errs.ErrSourceUnavailable) {
		t.Fatalf("nil source: %v", err)
	}
}

func TestFloatScripted(t *testing.T) {
	s, src := newScripted(t, []entropy.Bit{0, 1})
	for _, want := range []float64{0, 0.5, 0, 0.5} {
		v, err := s.Float(context.Background(), 0, 1, 1)
		if err != nil || v != want {
			t.Fatalf("got %v, %v want %v", v, err, want)
		}
	}
	if src.calls != 4 {
		t.Fatalf("float must make one request per value, got %d", src.calls)
	}

	// 0.101 = 5/8
	s, _ = newScripted(t, []entropy.Bit{1, 0, 1})
	v, _ := s.Float(context.Background(), -4, 4, 3)
	if v != 1 {
		t.Fatalf("got %v want 1", v)
	}
}

func TestFloatArguments(t *testing.T) {
	s, src := newScripted(t, []entropy.Bit{1})
	ctx := context.Background()
	for _, p := range []int{0, -1, 54} {
		if _, err := s.Float(ctx, 0, 1, p); !errors.Is(err, errs.ErrInvalidArgument) {
			t.Fatalf("precision %d: %v", p, err)
		}
	}
	if _, err := s.Float(ctx, math.NaN(), 1, 8); !errors.Is(err, errs.ErrInvalidRange) {
		t.Fatalf("nan: %v", err)
	}
	if _, err := s.Float(ctx, 0, math.Inf(1), 8); !errors.Is(err, errs.ErrInvalidRange) {
		t.Fatalf("inf: %v", err)
	}
	if _, err := s.Float(ctx, 2, 1, 8); !errors.Is(err, errs.ErrInvalidRange) {
		t.Fatalf("reversed: %v", err)
	}
	if src.calls != 0 {
		t.Fatalf("argument errors must not touch the source, calls=%d", src.calls)
	}

	// 寬度溢位仍在範圍內
	v, err := s.Float(ctx, -math.MaxFloat64, math.MaxFloat64, 1)
	if err != nil || math.IsInf(v, 0) || math.IsNaN(v) {
		t.Fatalf("wide range: %v, %v", v, err)
	}
}

func TestBitsAndBatches(t *testing.T) {
	s, src := newScripted(t, []entropy.Bit{1, 0, 0})
	ctx := context.Background()
	b, err := s.Bits(ctx, 0)
	if err != nil || len(b) != 0 || src.calls != 0 {
		t.Fatalf("zero bits: %v %v calls=%d", b, err, src.calls)
	}
	b, _ = s.Bits(ctx, 3)
	if entropy.FormatBits(b) != "100" {
		t.Fatalf("bits: %v", b)
	}
	if _, err := s.Bits(ctx, -1); !errors.Is(err, errs.ErrInvalidArgument) {
		t.Fatalf("negative bits: %v", err)
	}
	vs, err := s.Ints(ctx, 0, 7, 2)
	if err != nil || len(vs) != 2 || vs[0] != 4 || vs[1] != 4 {
		t.Fatalf("ints: %v %v", vs, err)
	}
	fs, err := s.Floats(ctx, 0, 1, 1, 3)
	if err != nil || len(fs) != 3 {
		t.Fatalf("floats: %v %v", fs, err)
	}
}

func TestLocalIntRange(t *testing.T) {
	lab := newLocalLab(t, qrnglab.Config{})
	d, err := lab.NewDevice()
	if err != nil {
		t.Fatalf("device: %v", err)
	}
	ctx := context.Background()
	seen := map[int64]bool{}
	for i := 0; i < 400; i++ {
		v, err := d.Int(ctx, -3, 9)
		if err != nil {
			t.Fatalf("int: %v", err)
		}
		if v < -3 || v > 9 {
			t.Fatalf("out of range: %d", v)
		}
		seen[v] = true
	}
	if len(seen) != 13 {
		t.Fatalf("expected every value to appear, saw %d", len(seen))
	}
}

func TestLocalCoinFairness(t *testing.T) {
	lab := newLocalLab(t, qrnglab.Config{})
	d, _ := lab.NewDevice()
	vs, err := d.Ints(context.Background(), 0, 1, 10000)
	if err != nil {
		t.Fatalf("ints: %v", err)
	}
	ones := 0
	for _, v := range vs {
		ones += int(v)
	}
	if rate := float64(ones) / 10000; math.Abs(rate-0.5) > 0.02 {
		t.Fatalf("coin rate %.4f outside 0.5±0.02", rate)
	}
}

func TestLocalFloatGrid(t *testing.T) {
	for _, st := range []entropy.Strategy{entropy.StrategyMajority, entropy.StrategyJoint} {
		lab := newLocalLab(t, qrnglab.Config{Strategy: st})
		d, _ := lab.NewDevice()
		for i := 0; i < 50; i++ {
			v, err := d.Float(context.Background(), 10, 20, 8)
			if err != nil {
				t.Fatalf("%s float: %v", st, err)
			}
			if v < 10 || v >= 20 {
				t.Fatalf("%s out of range: %v", st, v)
			}
			k := (v - 10) / 10 * 256
			if math.Abs(k-math.Round(k)) > 1e-9 {
				t.Fatalf("%s off grid: %v", st, v)
			}
		}
	}
}

func TestDeviceSeedReproducible(t *testing.T) {
	lab := newLocalLab(t, qrnglab.Config{Noise: "almaden"})
	ctx := context.Background()
	a, _ := lab.NewDeviceWithSeed(42)
	b, _ := lab.NewDeviceWithSeed(42)
	snap, err := a.SnapshotCore()
	if err != nil {
		t.Fatalf("snapshot: %v", err)
	}
	va, _ := a.Ints(ctx, 0, 1000, 20)
	vb, _ := b.Ints(ctx, 0, 1000, 20)
	for i := range va {
		if va[i] != vb[i] {
			t.Fatalf("same seed must give same stream at %d", i)
		}
	}
	if err := a.RestoreCore(snap); err != nil {
		t.Fatalf("restore: %v", err)
	}
	again, _ := a.Ints(ctx, 0, 1000, 20)
	for i := range va {
		if va[i] != again[i] {
			t.Fatalf("restored core must replay stream at %d", i)
		}
	}
}

func TestConfigValid(t *testing.T) {
	var c qrnglab.Config
	if err := c.Valid(); err != nil {
		t.Fatalf("zero config: %v", err)
	}
	if c.Shots != entropy.DefaultShots || c.MaxRejects != qrnglab.DefaultMaxRejects ||
		c.Backend != qrnglab.BackendLocal || c.Strategy != entropy.StrategyMajority || c.PRNG != "pcg64" {
		t.Fatalf("defaults not applied: %+v", c)
	}
	bad := []qrnglab.Config{
		{Backend: "remote"},
		{Backend: "carrier-pigeon"},
		{Strategy: "vote"},
		{PRNG: "mt19937"},
		{MaxQubits: 64},
	}
	for _, c := range bad {
		if err := c.Valid(); !errors.Is(err, errs.ErrInvalidArgument) {
			t.Fatalf("%+v: want invalid argument, got %v", c, err)
		}
	}
	if _, err := qrnglab.New(qrnglab.Config{Noise: "no-such-device"}); !errors.Is(err, errs.ErrSourceUnavailable) {
		t.Fatalf("unknown noise profile: %v", err)
	}
}

// coinBackend 永遠讓 qubit 全為 1 的假後端，可以注入錯誤。
func coinBackend(fail *error) qrnglab.BackendFactory {
	return func(int64) (entropy.Backend, error) {
		return entropy.BackendFunc(func(ctx context.Context, exp entropy.Experiment) (entropy.Counts, error) {
			if *fail != nil {
				return nil, *fail
			}
			bits := make([]entropy.Bit, exp.Qubits)
			for i := range bits {
				bits[i] = 1
			}
			return entropy.Counts{{Bits: entropy.FormatBits(bits), Count: exp.Shots}}, nil
		}), nil
	}
}

func TestPoolConcurrent(t *testing.T) {
	var fail error
	lab, err := qrnglab.New(qrnglab.Config{Shots: 3, Seed: 7}, qrnglab.UseBackends(coinBackend(&fail)))
	if err != nil {
		t.Fatalf("lab: %v", err)
	}
	pool, err := lab.NewPool(3)
	if err != nil {
		t.Fatalf("pool: %v", err)
	}
	defer pool.Close()

	ctx := context.Background()
	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			// 全 1 位元：[0,7] 一定是 7
			if v, err := pool.Int(ctx, 0, 7); err != nil || v != 7 {
				t.Errorf("pool int: %d %v", v, err)
			}
		}()
	}
	wg.Wait()
	m := pool.Metrics()
	if m.Served != 16 || m.Available != 3 || m.Inflight != 0 {
		t.Fatalf("unexpected metrics %+v", m)
	}
}

func TestPoolFailures(t *testing.T) {
	var fail error
	lab, _ := qrnglab.New(qrnglab.Config{Shots: 3, Seed: 7}, qrnglab.UseBackends(coinBackend(&fail)))
	pool, _ := lab.NewPool(2)
	ctx := context.Background()

	// 熵源失效：回錯誤，不淘汰裝置
	fail = errs.SourceUnavailable("offline", nil)
	if _, err := pool.Int(ctx, 0, 7); !errors.Is(err, errs.ErrSourceUnavailable) {
		t.Fatalf("want source unavailable, got %v", err)
	}
	fail = nil

	// panic：淘汰並補機
	err := pool.Do(ctx, func(*qrnglab.Device) error { panic("boom") })
	if err == nil {
		t.Fatalf("panic must surface as error")
	}
	// 未分類 fatal：淘汰並補機
	_ = pool.Do(ctx, func(*qrnglab.Device) error { return errs.NewFatal("corrupted") })
	// 參數錯誤：不淘汰
	if _, err := pool.Int(ctx, 9, 1); !errors.Is(err, errs.ErrInvalidRange) {
		t.Fatalf("want invalid range, got %v", err)
	}

	m := pool.Metrics()
	if m.Unavailable != 1 || m.Panics != 1 || m.Fatals != 1 || m.Rebuild != 2 || m.Available != 2 || m.Closed {
		t.Fatalf("unexpected metrics %+v", m)
	}

	pool.Close()
	if _, err := pool.Int(ctx, 0, 7); err == nil {
		t.Fatalf("closed pool must refuse work")
	}
	if pool.ClosedReason() != "closed" {
		t.Fatalf("reason: %q", pool.ClosedReason())
	}
}

func TestPoolExperiment(t *testing.T) {
	lab := newLocalLab(t, qrnglab.Config{})
	pool, _ := lab.NewPool(1)
	defer pool.Close()
	counts, err := pool.Experiment(context.Background(), entropy.Experiment{Qubits: 3, Shots: 200})
	if err != nil {
		t.Fatalf("experiment: %v", err)
	}
	if counts.Total() != 200 {
		t.Fatalf("total %d", counts.Total())
	}
	for _, o := range counts {
		if len(o.Bits) != 3 {
			t.Fatalf("bitstring width: %q", o.Bits)
		}
	}
	if _, err := pool.Experiment(context.Background(), entropy.Experiment{Qubits: 0, Shots: 1}); !errors.Is(err, errs.ErrInvalidArgument) {
		t.Fatalf("zero qubits: %v", err)
	}
}

func TestBench(t *testing.T) {
	lab := newLocalLab(t, qrnglab.Config{})
	ctx := context.Background()

	b, err := lab.NewBenchWithSeed(99)
	if err != nil {
		t.Fatalf("bench: %v", err)
	}
	r1, _, err := b.Run(ctx, 0, 7, 2000, false)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if r1.Summary.Samples != 2000 || r1.Summary.OutOfRange != 0 {
		t.Fatalf("summary %+v", r1.Summary)
	}
	if !r1.Uniform(0.001) {
		t.Fatalf("ideal source should look uniform, p=%v", r1.Uniformity.PValue)
	}

	b2, _ := lab.NewBenchWithSeed(99)
	r2, _, _ := b2.Run(ctx, 0, 7, 2000, false)
	for i := range r1.Dist.Collect {
		if r1.Dist.Collect[i] != r2.Dist.Collect[i] {
			t.Fatalf("single-worker bench must be reproducible")
		}
	}

	rmp, _, err := b.RunMP(ctx, -10, 10, 3001, 4, false)
	if err != nil {
		t.Fatalf("run mp: %v", err)
	}
	if rmp.Summary.Samples != 3001 {
		t.Fatalf("mp samples %d", rmp.Summary.Samples)
	}

	if _, _, err := b.RunMP(ctx, 0, 7, 10, 0, false); !errors.Is(err, errs.ErrInvalidArgument) {
		t.Fatalf("zero workers: %v", err)
	}
}
