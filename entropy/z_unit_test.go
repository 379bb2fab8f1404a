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

package entropy

import (
	"context"
	"errors"
	"testing"

	"github.com/zintix-labs/qrnglab/errs"
)

// scripted 依序回傳預先準備的計數，並記錄收到的實驗
type scripted struct {
	replies []Counts
	seen    []Experiment
	err     error
}

func (s *scripted) Run(_ context.Context, exp Experiment) (Counts, error) {
	s.seen = append(s.seen, exp)
	if s.err != nil {
		return nil, s.err
	}
	if len(s.replies) == 0 {
		return nil, nil
	}
	c := s.replies[0]
	s.replies = s.replies[1:]
	return c, nil
}

func TestMajoritySampleBit(t *testing.T) {
	b := &scripted{replies: []Counts{
		{{Bits: "0", Count: 5100}, {Bits: "1", Count: 4900}},
		{{Bits: "1", Count: 5001}, {Bits: "0", Count: 4999}},
		{{Bits: "0", Count: 5000}, {Bits: "1", Count: 5000}},
		{{Bits: "0", Count: 10}},
	}}
	m, err := NewMajority(b, Config{Shots: 10000, Noise: "almaden"})
	if err != nil {
		t.Fatalf("new majority: %v", err)
	}
	want := []Bit{0, 1, 1, 0}
	got, err := m.SampleBits(context.Background(), 4)
	if err != nil {
		t.Fatalf("sample bits: %v", err)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("bit %d: got %d want %d", i, got[i], want[i])
		}
	}
	for _, exp := range b.seen {
		if exp.Qubits != 1 || exp.Shots != 10000 || exp.Noise != "almaden" {
			t.Fatalf("unexpected experiment %+v", exp)
		}
	}
}

func TestJointMostFrequentFirstSeen(t *testing.T) {
	b := &scripted{replies: []Counts{
		{{Bits: "0110", Count: 3}, {Bits: "1011", Count: 7}, {Bits: "0001", Count: 7}},
	}}
	j, err := NewJoint(b, Config{Shots: 17})
	if err != nil {
		t.Fatalf("new joint: %v", err)
	}
	got, err := j.SampleBits(context.Background(), 4)
	if err != nil {
		t.Fatalf("sample bits: %v", err)
	}
	if FormatBits(got) != "1011" {
		t.Fatalf("expected first of tied outcomes, got %s", FormatBits(got))
	}
	if len(b.seen) != 1 || b.seen[0].Qubits != 4 {
		t.Fatalf("expected one 4-qubit experiment, got %+v", b.seen)
	}
}

func TestJointSplitsWideRequests(t *testing.T) {
	b := &scripted{replies: []Counts{
		{{Bits: "111", Count: 2}},
		{{Bits: "000", Count: 2}},
		{{Bits: "1", Count: 2}},
	}}
	j, err := NewJoint(b, Config{MaxQubits: 3})
	if err != nil {
		t.Fatalf("new joint: %v", err)
	}
	got, err := j.SampleBits(context.Background(), 7)
	if err != nil {
		t.Fatalf("sample bits: %v", err)
	}
	if FormatBits(got) != "1110001" {
		t.Fatalf("unexpected assembly %s", FormatBits(got))
	}
	if len(b.seen) != 3 || b.seen[2].Qubits != 1 {
		t.Fatalf("unexpected chunking %+v", b.seen)
	}
}

func TestZeroBitsNoExperiment(t *testing.T) {
	b := &scripted{}
	for _, st := range []Strategy{StrategyMajority, StrategyJoint} {
		src, err := NewSource(b, Config{Strategy: st})
		if err != nil {
			t.Fatalf("new source: %v", err)
		}
		bits, err := src.SampleBits(context.Background(), 0)
		if err != nil || len(bits) != 0 {
			t.Fatalf("[%s] expected empty result, got %v %v", st, bits, err)
		}
	}
	if len(b.seen) != 0 {
		t.Fatalf("zero-bit request must not run experiments")
	}
}

func TestEmptyResultIsSourceUnavailable(t *testing.T) {
	b := &scripted{replies: []Counts{{}}}
	m, _ := NewMajority(b, Config{})
	_, err := m.SampleBit(context.Background())
	if !errors.Is(err, errs.ErrEmptyResult) || !errors.Is(err, errs.ErrSourceUnavailable) {
		t.Fatalf("expected empty result / source unavailable, got %v", err)
	}
}

func TestBackendErrorBecomesSourceUnavailable(t *testing.T) {
	b := &scripted{err: errors.New("connection refused")}
	j, _ := NewJoint(b, Config{})
	_, err := j.SampleBits(context.Background(), 2)
	if !errors.Is(err, errs.ErrSourceUnavailable) {
		t.Fatalf("expected source unavailable, got %v", err)
	}
}

func TestMalformedCounts(t *testing.T) {
	b := &scripted{replies: []Counts{{{Bits: "01", Count: 3}}}}
	m, _ := NewMajority(b, Config{})
	if _, err := m.SampleBit(context.Background()); !errors.Is(err, errs.ErrSourceUnavailable) {
		t.Fatalf("expected malformed counts to be rejected, got %v", err)
	}

	b = &scripted{replies: []Counts{{{Bits: "2", Count: 3}}}}
	m, _ = NewMajority(b, Config{})
	if _, err := m.SampleBit(context.Background()); !errors.Is(err, errs.ErrSourceUnavailable) {
		t.Fatalf("expected invalid symbol to be rejected, got %v", err)
	}
}

func TestCanceledContext(t *testing.T) {
	b := &scripted{replies: []Counts{{{Bits: "1", Count: 1}}}}
	m, _ := NewMajority(b, Config{})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := m.SampleBit(ctx)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if len(b.seen) != 0 {
		t.Fatalf("canceled ctx must not reach backend")
	}
}

func TestConfigValid(t *testing.T) {
	c := Config{}
	if err := c.Valid(); err != nil {
		t.Fatalf("valid: %v", err)
	}
	if c.Shots != DefaultShots || c.MaxQubits != DefaultMaxQubits || c.Strategy != StrategyMajority {
		t.Fatalf("defaults not applied: %+v", c)
	}
	c = Config{Strategy: "fastest"}
	if err := c.Valid(); !errors.Is(err, errs.ErrInvalidArgument) {
		t.Fatalf("expected invalid strategy, got %v", err)
	}
	if _, err := NewSource(nil, Config{}); !errors.Is(err, errs.ErrSourceUnavailable) {
		t.Fatalf("nil backend must be source unavailable, got %v", err)
	}
}

func TestBitHelpers(t *testing.T) {
	bits, err := ParseBits("1011")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if Uint64(bits) != 11 {
		t.Fatalf("expected 11, got %d", Uint64(bits))
	}
	if FormatBits(bits) != "1011" {
		t.Fatalf("format roundtrip mismatch")
	}
	if _, ok := (Counts{}).MostFrequent(); ok {
		t.Fatalf("empty counts has no most frequent")
	}
}
