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

package svrcfg

import (
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/zintix-labs/qrnglab"
	"github.com/zintix-labs/qrnglab/entropy"
	"github.com/zintix-labs/qrnglab/errs"
	"github.com/zintix-labs/qrnglab/server/logger"
)

// EnvPrefix 所有環境變數的前綴
const EnvPrefix = "QRNG_"

// EnvCfg 以環境變數描述的 server 設定（全部加上 QRNG_ 前綴，例如 QRNG_NOISE=almaden）。
type EnvCfg struct {
	Addr           string        `env:"ADDR"            envDefault:":5808"`
	LogMode        string        `env:"LOG_MODE"        envDefault:"ModeDev"`
	PoolSize       int           `env:"POOL_SIZE"       envDefault:"3"`
	RequestTimeout time.Duration `env:"REQUEST_TIMEOUT" envDefault:"30s"`
	MaxCount       int           `env:"MAX_COUNT"`
	MaxSamples     int           `env:"MAX_SAMPLES"`
	ProfilesDir    string        `env:"PROFILES_DIR"` // 額外的噪聲設定目錄（*.yaml）

	Shots      int    `env:"SHOTS"`
	Noise      string `env:"NOISE"`
	Strategy   string `env:"STRATEGY"`
	MaxQubits  int    `env:"MAX_QUBITS"`
	MaxRejects int    `env:"MAX_REJECTS"`
	PerBit     bool   `env:"PER_BIT"`
	PRNG       string `env:"PRNG"`
	Seed       int64  `env:"SEED"`
	Backend    string `env:"BACKEND"`
	RemoteURL  string `env:"REMOTE_URL"`
}

// LoadEnv 從行程環境變數讀取
func LoadEnv() (EnvCfg, error) {
	return parseEnv(env.Options{Prefix: EnvPrefix})
}

// LoadEnvFrom 從給定的 key/value 讀取（key 含前綴），測試用。
func LoadEnvFrom(environ map[string]string) (EnvCfg, error) {
	return parseEnv(env.Options{Prefix: EnvPrefix, Environment: environ})
}

func parseEnv(opts env.Options) (EnvCfg, error) {
	var cfg EnvCfg
	if err := env.ParseWithOptions(&cfg, opts); err != nil {
		return EnvCfg{}, errs.InvalidArgument("parse env: %v", err)
	}
	return cfg, nil
}

// LabConfig 轉成 qrnglab.Config（尚未 Valid）
func (e EnvCfg) LabConfig() qrnglab.Config {
	return qrnglab.Config{
		Shots:      e.Shots,
		Noise:      e.Noise,
		Strategy:   entropy.Strategy(e.Strategy),
		MaxQubits:  e.MaxQubits,
		MaxRejects: e.MaxRejects,
		PerBit:     e.PerBit,
		PRNG:       e.PRNG,
		Seed:       e.Seed,
		Backend:    qrnglab.BackendKind(e.Backend),
		RemoteURL:  e.RemoteURL,
	}
}

func (e EnvCfg) Mode() (logger.LogMode, error) {
	return logger.ParseLogMode(e.LogMode)
}

// Apply 把環境設定套到 SvrCfg（Log / Lab 仍由呼叫端組裝）
func (e EnvCfg) Apply(sc *SvrCfg) {
	sc.Addr = e.Addr
	sc.PoolSize = e.PoolSize
	sc.RequestTimeout = e.RequestTimeout
	sc.MaxCount = e.MaxCount
	sc.MaxSamples = e.MaxSamples
}
