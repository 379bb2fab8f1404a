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
	"fmt"
	"io/fs"
	"math"
	"path/filepath"
	"sort"
	"strings"

	"github.com/zintix-labs/qrnglab/errs"
	"gopkg.in/yaml.v3"
)

// IdealProfile 無雜訊設定的名稱；空字串也解析為它。
const IdealProfile = "ideal"

// QubitNoise 單一 qubit 的校正資料
type QubitNoise struct {
	Qubit      int     `yaml:"qubit" json:"qubit"`
	GateError  float64 `yaml:"gate_error" json:"gate_error"`   // 每個實體閘的 depolarizing 機率
	ReadoutP01 float64 `yaml:"readout_p01" json:"readout_p01"` // P(讀到 1 | 實際 0)
	ReadoutP10 float64 `yaml:"readout_p10" json:"readout_p10"` // P(讀到 0 | 實際 1)
}

func (q QubitNoise) valid() error {
	for name, p := range map[string]float64{
		"gate_error":  q.GateError,
		"readout_p01": q.ReadoutP01,
		"readout_p10": q.ReadoutP10,
	} {
		if math.IsNaN(p) || p < 0 || p > 1 {
			return errs.InvalidArgument("qubit %d: %s must be in [0,1], got %v", q.Qubit, name, p)
		}
	}
	return nil
}

// NoiseProfile 一組後端雜訊設定（類似 fake backend 的校正快照）。
type NoiseProfile struct {
	Name        string       `yaml:"name" json:"name"`
	Description string       `yaml:"description" json:"description"`
	NumQubits   int          `yaml:"num_qubits" json:"num_qubits"`
	Default     QubitNoise   `yaml:"default" json:"default"`
	Qubits      []QubitNoise `yaml:"qubits,omitempty" json:"qubits,omitempty"`

	byQubit []QubitNoise // init 後展開，長度 NumQubits
}

// Ideal 無雜訊、MaxQubits 寬的設定
func Ideal() *NoiseProfile {
	p := &NoiseProfile{Name: IdealProfile, Description: "noiseless statevector", NumQubits: MaxQubits}
	if err := p.init(); err != nil {
		panic(err)
	}
	return p
}

func (p *NoiseProfile) init() error {
	p.Name = strings.ToLower(strings.TrimSpace(p.Name))
	if p.Name == "" {
		return errs.InvalidArgument("noise profile name required")
	}
	if p.NumQubits < 1 || p.NumQubits > MaxQubits {
		return errs.InvalidArgument("profile %s: num_qubits must be in [1,%d], got %d", p.Name, MaxQubits, p.NumQubits)
	}
	if err := p.Default.valid(); err != nil {
		return errs.Wrap(err, "profile "+p.Name+" default")
	}
	p.byQubit = make([]QubitNoise, p.NumQubits)
	for i := range p.byQubit {
		p.byQubit[i] = p.Default
		p.byQubit[i].Qubit = i
	}
	seen := make(map[int]struct{}, len(p.Qubits))
	for _, q := range p.Qubits {
		if q.Qubit < 0 || q.Qubit >= p.NumQubits {
			return errs.InvalidArgument("profile %s: qubit %d out of range", p.Name, q.Qubit)
		}
		if _, dup := seen[q.Qubit]; dup {
			return errs.InvalidArgument("profile %s: qubit %d listed twice", p.Name, q.Qubit)
		}
		seen[q.Qubit] = struct{}{}
		if err := q.valid(); err != nil {
			return errs.Wrap(err, "profile "+p.Name)
		}
		p.byQubit[q.Qubit] = q
	}
	return nil
}

// Qubit 取得 qubit q 的雜訊參數
func (p *NoiseProfile) Qubit(q int) QubitNoise {
	return p.byQubit[q]
}

// Noiseless 所有 qubit 都沒有任何誤差
func (p *NoiseProfile) Noiseless() bool {
	for _, q := range p.byQubit {
		if q.GateError != 0 || q.ReadoutP01 != 0 || q.ReadoutP10 != 0 {
			return false
		}
	}
	return true
}

// ParseProfileYAML 解析並檢查單一雜訊設定
func ParseProfileYAML(data []byte) (*NoiseProfile, error) {
	p := &NoiseProfile{}
	if err := yaml.Unmarshal(data, p); err != nil {
		return nil, errs.Wrap(err, "failed to unmarshal noise profile yaml")
	}
	if err := p.init(); err != nil {
		return nil, err
	}
	return p, nil
}

// ProfileSet 依名稱索引的雜訊設定集合，建立後唯讀，可併發讀取。
type ProfileSet struct {
	byName map[string]*NoiseProfile
	names  []string
}

// NewProfileSet 讀取每個 fs.FS 根目錄下的 *.yaml / *.yml，合併成一個集合。
//
// ideal 一律內建；來源之間（或與 ideal）名稱重複即失敗。
func NewProfileSet(src ...fs.FS) (*ProfileSet, error) {
	ps := &ProfileSet{byName: make(map[string]*NoiseProfile, 8)}
	if err := ps.add(Ideal(), "builtin"); err != nil {
		return nil, err
	}
	for i, s := range src {
		if s == nil {
			return nil, errs.NewFatal(fmt.Sprintf("profile fs[%d] is nil", i))
		}
		entries, err := fs.ReadDir(s, ".")
		if err != nil {
			return nil, errs.Wrap(err, fmt.Sprintf("read profile fs[%d]", i))
		}
		for _, e := range entries {
			if e.IsDir() {
				continue
			}
			ext := strings.ToLower(filepath.Ext(e.Name()))
			if ext != ".yaml" && ext != ".yml" {
				continue
			}
			raw, err := fs.ReadFile(s, e.Name())
			if err != nil {
				return nil, errs.Wrap(err, "read profile "+e.Name())
			}
			p, err := ParseProfileYAML(raw)
			if err != nil {
				return nil, errs.WrapWithExtra(err, "invalid noise profile", e.Name())
			}
			if err := ps.add(p, fmt.Sprintf("fs[%d]/%s", i, e.Name())); err != nil {
				return nil, err
			}
		}
	}
	sort.Strings(ps.names)
	return ps, nil
}

func (ps *ProfileSet) add(p *NoiseProfile, from string) error {
	if _, dup := ps.byName[p.Name]; dup {
		return errs.NewFatal(fmt.Sprintf("duplicate noise profile %q (%s)", p.Name, from))
	}
	ps.byName[p.Name] = p
	ps.names = append(ps.names, p.Name)
	return nil
}

// Get 以名稱取得設定；空字串為 ideal。找不到回傳 SourceUnavailable。
func (ps *ProfileSet) Get(name string) (*NoiseProfile, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	if name == "" {
		name = IdealProfile
	}
	if p, ok := ps.byName[name]; ok {
		return p, nil
	}
	return nil, errs.SourceUnavailable(fmt.Sprintf("unknown noise profile %q", name), nil)
}

// Names 排序後的設定名稱
func (ps *ProfileSet) Names() []string {
	return append([]string(nil), ps.names...)
}

// All 依名稱排序的設定
func (ps *ProfileSet) All() []*NoiseProfile {
	out := make([]*NoiseProfile, 0, len(ps.names))
	for _, n := range ps.names {
		out = append(out, ps.byName[n])
	}
	return out
}
