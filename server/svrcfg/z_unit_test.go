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

package svrcfg_test

import (
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zintix-labs/qrnglab"
	"github.com/zintix-labs/qrnglab/entropy"
	"github.com/zintix-labs/qrnglab/server/logger"
	"github.com/zintix-labs/qrnglab/server/svrcfg"
)

func TestLoadEnvDefaults(t *testing.T) {
	cfg, err := svrcfg.LoadEnvFrom(map[string]string{})
	require.NoError(t, err)
	assert.Equal(t, ":5808", cfg.Addr)
	assert.Equal(t, 3, cfg.PoolSize)
	assert.Equal(t, 30*time.Second, cfg.RequestTimeout)
	mode, err := cfg.Mode()
	require.NoError(t, err)
	assert.Equal(t, logger.ModeDev, mode)
}

func TestLoadEnvValues(t *testing.T) {
	cfg, err := svrcfg.LoadEnvFrom(map[string]string{
		"QRNG_ADDR":            ":9000",
		"QRNG_LOG_MODE":        "prod",
		"QRNG_POOL_SIZE":       "8",
		"QRNG_REQUEST_TIMEOUT": "2s",
		"QRNG_NOISE":           "almaden",
		"QRNG_STRATEGY":        "joint",
		"QRNG_SHOTS":           "101",
		"QRNG_SEED":            "42",
		"QRNG_PER_BIT":         "true",
		"NOISE":                "ignored-without-prefix",
	})
	require.NoError(t, err)

	lc := cfg.LabConfig()
	assert.Equal(t, "almaden", lc.Noise)
	assert.Equal(t, entropy.StrategyJoint, lc.Strategy)
	assert.Equal(t, 101, lc.Shots)
	assert.Equal(t, int64(42), lc.Seed)
	assert.True(t, lc.PerBit)
	require.NoError(t, lc.Valid())

	sc := &svrcfg.SvrCfg{}
	cfg.Apply(sc)
	assert.Equal(t, ":9000", sc.Addr)
	assert.Equal(t, 8, sc.PoolSize)
	assert.Equal(t, 2*time.Second, sc.RequestTimeout)

	_, err = svrcfg.LoadEnvFrom(map[string]string{"QRNG_POOL_SIZE": "many"})
	assert.Error(t, err)
}

func TestSvrCfgVaild(t *testing.T) {
	sc := &svrcfg.SvrCfg{Log: slog.New(slog.DiscardHandler), PoolSize: 1000}
	assert.Error(t, sc.Vaild(), "lab is required")

	lab, err := qrnglab.New(qrnglab.Config{Seed: 1})
	require.NoError(t, err)
	sc.Lab = lab
	require.NoError(t, sc.Vaild())
	assert.Equal(t, svrcfg.MaxPoolSize, sc.PoolSize)
	assert.Equal(t, svrcfg.DefaultMaxCount, sc.MaxCount)
	assert.Equal(t, svrcfg.DefaultReqTimeout, sc.RequestTimeout)
}
