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
	"log/slog"
	"strings"

	"github.com/zintix-labs/qrnglab/entropy"
	"github.com/zintix-labs/qrnglab/errs"
	"github.com/zintix-labs/qrnglab/remote"
	"github.com/zintix-labs/qrnglab/sdk/core"
	"github.com/zintix-labs/qrnglab/sdk/qsim"
)

// BackendKind 熵後端種類
type BackendKind string

const (
	// BackendLocal 本地 statevector 模擬器（sdk/qsim）
	BackendLocal BackendKind = "local"
	// BackendRemote 另一個 qrnglab 服務的 /v1/experiment
	BackendRemote BackendKind = "remote"
)

// Config 組裝 Device 所需的全部參數。零值可用：本地 ideal 後端、Majority 策略、10000 shots。
type Config struct {
	Shots      int              `json:"shots" yaml:"shots"`
	Noise      string           `json:"noise" yaml:"noise"`
	Strategy   entropy.Strategy `json:"strategy" yaml:"strategy"`
	MaxQubits  int              `json:"max_qubits" yaml:"max_qubits"`
	MaxRejects int              `json:"max_rejects" yaml:"max_rejects"`
	PerBit     bool             `json:"per_bit" yaml:"per_bit"` // Sampler 逐位元呼叫 SampleBit
	PRNG       string           `json:"prng" yaml:"prng"`       // 本地模擬器的 PRNG：pcg64 | pcg32
	Seed       int64            `json:"seed" yaml:"seed"`       // 0 表示由 crypto/rand 產生
	Backend    BackendKind      `json:"backend" yaml:"backend"`
	RemoteURL  string           `json:"remote_url" yaml:"remote_url"`
}

// Valid 補上預設值並檢查組合是否合法。
func (c *Config) Valid() error {
	ec := c.entropyConfig()
	if err := ec.Valid(); err != nil {
		return err
	}
	c.Shots, c.Strategy, c.MaxQubits = ec.Shots, ec.Strategy, ec.MaxQubits
	if c.MaxRejects <= 0 {
		c.MaxRejects = DefaultMaxRejects
	}
	if _, err := core.FactoryByName(c.PRNG); err != nil {
		return err
	}
	if c.PRNG == "" {
		c.PRNG = "pcg64"
	}
	c.Backend = BackendKind(strings.ToLower(strings.TrimSpace(string(c.Backend))))
	switch c.Backend {
	case "":
		c.Backend = BackendLocal
	case BackendLocal:
	case BackendRemote:
		if strings.TrimSpace(c.RemoteURL) == "" {
			return errs.InvalidArgument("remote backend requires remote_url")
		}
	default:
		return errs.InvalidArgument("unknown backend %q: want local|remote", c.Backend)
	}
	if c.MaxQubits > qsim.MaxQubits && c.Backend == BackendLocal {
		return errs.InvalidArgument("max_qubits %d exceeds local simulator limit %d", c.MaxQubits, qsim.MaxQubits)
	}
	return nil
}

func (c Config) entropyConfig() entropy.Config {
	return entropy.Config{
		Shots:     c.Shots,
		Noise:     c.Noise,
		Strategy:  c.Strategy,
		MaxQubits: c.MaxQubits,
	}
}

func (c Config) samplerOptions(log *slog.Logger) []SamplerOption {
	opts := []SamplerOption{WithMaxRejects(c.MaxRejects), WithLogger(log)}
	if c.PerBit {
		opts = append(opts, WithPerBitCalls())
	}
	return opts
}

// BackendFactory 以 seed 建立一個獨立的熵後端。
// 每個 Device 各自持有一個後端；seed 對不持有 PRNG 的後端（remote）沒有意義。
type BackendFactory func(seed int64) (entropy.Backend, error)

// LocalBackends 每次建立一台新的本地模擬器，PRNG 由 cf 以 seed 產生。
func LocalBackends(cf core.PRNGFactory, profiles *qsim.ProfileSet, opts ...qsim.Option) BackendFactory {
	return func(seed int64) (entropy.Backend, error) {
		if cf == nil {
			return nil, errs.NewFatal("prng factory required")
		}
		return qsim.NewSimulator(cf.New(seed), profiles, opts...)
	}
}

// RemoteBackends 共用同一個 HTTP client（resty client 可併發使用）。
func RemoteBackends(baseURL string, opts ...remote.Option) BackendFactory {
	var (
		client *remote.Client
		err    error
	)
	client, err = remote.New(baseURL, opts...)
	return func(int64) (entropy.Backend, error) {
		if err != nil {
			return nil, err
		}
		return client, nil
	}
}

// Factory 依 Config.Backend 選擇 BackendFactory。profiles 只給本地後端使用，nil 時只有 ideal。
func (c Config) Factory(profiles *qsim.ProfileSet, log *slog.Logger) (BackendFactory, error) {
	if err := c.Valid(); err != nil {
		return nil, err
	}
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	switch c.Backend {
	case BackendRemote:
		return RemoteBackends(c.RemoteURL, remote.WithLogger(log)), nil
	default:
		cf, err := core.FactoryByName(c.PRNG)
		if err != nil {
			return nil, err
		}
		if profiles == nil {
			if profiles, err = qsim.NewProfileSet(); err != nil {
				return nil, err
			}
		}
		if _, err := profiles.Get(c.Noise); err != nil {
			return nil, errs.Wrap(err, "local backend")
		}
		return LocalBackends(cf, profiles, qsim.WithLogger(log)), nil
	}
}
