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

package qsim

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/zintix-labs/qrnglab/entropy"
	"github.com/zintix-labs/qrnglab/errs"
	"github.com/zintix-labs/qrnglab/sdk/core"
	"github.com/zintix-labs/qrnglab/sdk/sampler"
)

const (
	// ctxCheckEvery 每抽多少個 shot 檢查一次 ctx
	ctxCheckEvery = 1024
	// maxCachedTables 跨呼叫快取的分布表上限，超過即整批清空
	maxCachedTables = 4096
)

// Simulator 帶雜訊的 statevector 取樣器，實作 entropy.Backend。
//
// 每個 shot 是一條 trajectory：對每個實體閘以 gate_error 機率插入隨機 Pauli，
// 演化後依 |amp|^2 抽出基底，再套用每個 qubit 的讀出翻轉。
// 相同的錯誤樣式共用同一張 alias 表，因此低雜訊時幾乎所有 shot 都落在無錯誤的那張表。
//
// Simulator 持有 PRNG 與快取，不可併發使用；多 goroutine 請各自建立或經由 DevicePool 借用。
type Simulator struct {
	core     *core.Core
	profiles *ProfileSet
	log      *slog.Logger
	cache    map[string]*sampler.AliasTable
}

type Option func(*Simulator)

// WithLogger 設定 logger，預設丟棄
func WithLogger(l *slog.Logger) Option {
	return func(s *Simulator) {
		if l != nil {
			s.log = l
		}
	}
}

// NewSimulator 以給定 PRNG 與雜訊設定集合建立模擬器；profiles 為 nil 時只有 ideal。
func NewSimulator(rng core.PRNG, profiles *ProfileSet, opts ...Option) (*Simulator, error) {
	if rng == nil {
		return nil, errs.InvalidArgument("simulator requires a PRNG")
	}
	if profiles == nil {
		var err error
		if profiles, err = NewProfileSet(); err != nil {
			return nil, err
		}
	}
	s := &Simulator{
		core:     core.New(rng),
		profiles: profiles,
		log:      slog.New(slog.DiscardHandler),
		cache:    make(map[string]*sampler.AliasTable, 16),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Profiles 目前可用的雜訊設定
func (s *Simulator) Profiles() *ProfileSet {
	return s.profiles
}

// Snapshot 匯出 PRNG 狀態。分布表快取只依電路與雜訊決定，不需要一起保存。
func (s *Simulator) Snapshot() ([]byte, error) {
	return s.core.Snapshot()
}

// Restore 還原 PRNG 狀態
func (s *Simulator) Restore(state []byte) error {
	return s.core.Restore(state)
}

// Run 對 exp.Qubits 個 qubit 各上一個 H 閘並量測 exp.Shots 次。
func (s *Simulator) Run(ctx context.Context, exp entropy.Experiment) (entropy.Counts, error) {
	if exp.Qubits < 1 {
		return nil, errs.InvalidArgument("experiment needs at least one qubit, got %d", exp.Qubits)
	}
	profile, err := s.profiles.Get(exp.Noise)
	if err != nil {
		return nil, err
	}
	if exp.Qubits > profile.NumQubits {
		return nil, errs.SourceUnavailable(fmt.Sprintf("backend %s has %d qubits, experiment needs %d", profile.Name, profile.NumQubits, exp.Qubits), nil)
	}
	c, err := HadamardCircuit(exp.Qubits)
	if err != nil {
		return nil, err
	}
	if len(s.cache) > maxCachedTables {
		clear(s.cache)
	}
	prefix := profile.Name + "/" + strconv.Itoa(exp.Qubits) + "|"
	return s.execute(ctx, c, profile, exp.Shots, s.cache, prefix)
}

// Execute 執行任意單 qubit 閘電路（先轉譯到原生閘），回傳依首次觀測排序的計數。
func (s *Simulator) Execute(ctx context.Context, c *Circuit, profile *NoiseProfile, shots int) (entropy.Counts, error) {
	if c == nil {
		return nil, errs.InvalidArgument("circuit required")
	}
	if profile == nil {
		profile = Ideal()
	}
	if c.NumQubits > profile.NumQubits {
		return nil, errs.SourceUnavailable(fmt.Sprintf("backend %s has %d qubits, circuit needs %d", profile.Name, profile.NumQubits, c.NumQubits), nil)
	}
	return s.execute(ctx, c, profile, shots, make(map[string]*sampler.AliasTable, 8), "")
}

func (s *Simulator) execute(ctx context.Context, c *Circuit, profile *NoiseProfile, shots int, cache map[string]*sampler.AliasTable, prefix string) (entropy.Counts, error) {
	if shots < 1 {
		return nil, errs.InvalidArgument("shots must be >= 1, got %d", shots)
	}
	t := Transpile(c)
	noisy := t.NoisyGates()
	n := t.NumQubits

	var (
		index   = make(map[int]int, 1<<min(n, 10)) // basis -> position in counts
		counts  = make(entropy.Counts, 0, 1<<min(n, 10))
		pattern = make([]byte, 0, 32)
		sv      *Statevector
		errored int
	)
	for shot := 0; shot < shots; shot++ {
		if shot%ctxCheckEvery == 0 {
			if err := ctx.Err(); err != nil {
				return nil, errs.Wrap(err, "simulation canceled")
			}
		}

		// trajectory：記錄這個 shot 上哪些閘出錯、出了哪個 Pauli
		pattern = pattern[:0]
		for _, gi := range noisy {
			q := t.Gates[gi].Qubit
			if s.core.Bernoulli(profile.Qubit(q).GateError) {
				pattern = strconv.AppendInt(pattern, int64(gi), 10)
				pattern = append(pattern, ':', '0'+s.core.Pauli(), ',')
			}
		}
		if len(pattern) > 0 {
			errored++
		}

		key := prefix + string(pattern)
		at, ok := cache[key]
		if !ok {
			if sv == nil {
				sv = NewStatevector(n)
			}
			at = buildTable(sv, t, pattern)
			cache[key] = at
		}

		basis := at.Pick(s.core)
		if basis < 0 {
			return nil, errs.EmptyResult("statevector has no probability mass")
		}
		basis = s.readout(profile, n, basis)

		if pos, ok := index[basis]; ok {
			counts[pos].Count++
			continue
		}
		index[basis] = len(counts)
		counts = append(counts, entropy.Outcome{Bits: formatBasis(basis, n), Count: 1})
	}

	s.log.Debug("qsim.run",
		slog.String("profile", profile.Name),
		slog.Int("qubits", n),
		slog.Int("shots", shots),
		slog.Int("errored_shots", errored),
		slog.Int("outcomes", len(counts)),
	)
	return counts, nil
}

// buildTable 依錯誤樣式演化 statevector 並建立量測分布表。
// pattern 格式為 "gateIndex:pauli," 的串接（由 execute 產生）。
func buildTable(sv *Statevector, t *Circuit, pattern []byte) *sampler.AliasTable {
	faults := parsePattern(pattern)
	sv.Reset()
	for gi, g := range t.Gates {
		sv.ApplyGate(g)
		if p, ok := faults[gi]; ok {
			sv.ApplyPauli(p, g.Qubit)
		}
	}
	return sampler.BuildAliasTableFromProbs(sv.Probabilities(), 0)
}

func parsePattern(pattern []byte) map[int]uint8 {
	if len(pattern) == 0 {
		return nil
	}
	out := make(map[int]uint8, 2)
	for _, item := range strings.Split(strings.TrimSuffix(string(pattern), ","), ",") {
		gi, p, _ := strings.Cut(item, ":")
		idx, err := strconv.Atoi(gi)
		if err != nil || len(p) != 1 {
			panic("qsim: malformed fault pattern " + string(pattern))
		}
		out[idx] = p[0] - '0'
	}
	return out
}

// readout 對每個 qubit 套用讀出翻轉
func (s *Simulator) readout(profile *NoiseProfile, n, basis int) int {
	for q := 0; q < n; q++ {
		qn := profile.Qubit(q)
		mask := 1 << q
		if basis&mask == 0 {
			if s.core.Bernoulli(qn.ReadoutP01) {
				basis |= mask
			}
		} else if s.core.Bernoulli(qn.ReadoutP10) {
			basis &^= mask
		}
	}
	return basis
}

// formatBasis 把基底索引寫成 n 位元字串，最左為 qubit n-1。
func formatBasis(basis, n int) string {
	s := strconv.FormatUint(uint64(basis), 2)
	if len(s) < n {
		s = strings.Repeat("0", n-len(s)) + s
	}
	return s
}
